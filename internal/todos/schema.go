package todos

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://todo-backend.local/schemas/"

// requestSchemas holds the compiled request body schemas keyed by file stem.
type requestSchemas map[string]*jsonschema.Schema

func compileSchemas() (requestSchemas, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	for _, e := range entries {
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		if err := compiler.AddResource(schemaBaseURL+e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
	}

	out := make(requestSchemas, len(entries))
	for _, e := range entries {
		sch, err := compiler.Compile(schemaBaseURL + e.Name())
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".json")] = sch
	}
	return out, nil
}

// decode validates raw against the named schema and then unmarshals it into
// dst. An empty body counts as {}.
func (s requestSchemas) decode(name string, raw []byte, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return validationf("Invalid JSON")
	}

	sch, ok := s[name]
	if !ok {
		return fmt.Errorf("unknown request schema %q", name)
	}
	if err := sch.Validate(doc); err != nil {
		return schemaValidationError(err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return validationf("Invalid JSON")
	}
	return nil
}

func schemaValidationError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return validationf("Invalid request body")
	}
	leaf := firstLeaf(ve)
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if field == "" {
		return validationf("Invalid request body: %s", leaf.Message)
	}
	return validationf("Invalid %s: %s", strings.ReplaceAll(field, "/", "."), leaf.Message)
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}
