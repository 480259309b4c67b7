package analytics

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/todos", nil)
	r.Header.Set("X-Platform", " TUI ")
	r.Header.Set("X-App-Version", "1.2.0")
	r.Header.Set("X-Device-Locale", "de-DE")
	r.Header.Set("X-Session-Id", "s-1")

	env := FromRequest(r)
	assert.Equal(t, Envelope{SessionID: "s-1", Platform: "tui", AppVersion: "1.2.0", DeviceLocale: "de-DE"}, env)

	r.Header.Set("X-Platform", "toaster")
	r.Header.Set("Accept-Language", "en")
	env = FromRequest(r)
	assert.Equal(t, "unknown", env.Platform)
	assert.Equal(t, "en", env.DeviceLocale)
}

func TestSourceEventKeyFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/todos", nil)
	assert.Empty(t, SourceEventKeyFromRequest(r))

	r.Header.Set("X-Source-Event-Key", "fallback")
	assert.Equal(t, "fallback", SourceEventKeyFromRequest(r))

	r.Header.Set("Idempotency-Key", "preferred")
	assert.Equal(t, "preferred", SourceEventKeyFromRequest(r))
}

func TestRecorderRequest(t *testing.T) {
	var buf bytes.Buffer
	rec := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	r := httptest.NewRequest("POST", "/api/todos", nil)
	r.Header.Set("X-Platform", "web")
	r.Header.Set("Idempotency-Key", "k-1")
	rec.Request(r, "todo_created", map[string]any{"text_len": 8})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "todo_created", line["event"])
	assert.Equal(t, "web", line["platform"])
	assert.Equal(t, "k-1", line["source_event_key"])
	assert.Equal(t, "analytics", line["component"])
	assert.Equal(t, map[string]any{"text_len": float64(8)}, line["props"])
}

func TestNilRecorderDropsEvents(t *testing.T) {
	var rec *Recorder
	r := httptest.NewRequest("DELETE", "/api/todos/x", nil)
	assert.NotPanics(t, func() { rec.Request(r, "todo_deleted", nil) })
}
