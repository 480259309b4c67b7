// Package client talks to the todo REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"todo-backend/internal/todos"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	platform       = "tui"
)

// APIError is a non-2xx reply. Message is the server's user-facing text.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	appVersion string
	sessionID  string
	http       *http.Client
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = stripBearer(strings.TrimSpace(token)) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithAppVersion(v string) Option {
	return func(c *Client) { c.appVersion = v }
}

func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type CreateRequest struct {
	Text     string `json:"text"`
	Priority string `json:"priority,omitempty"`
	DueDate  string `json:"dueDate,omitempty"`
}

type UpdateRequest struct {
	Text     *string  `json:"text,omitempty"`
	Priority *string  `json:"priority,omitempty"`
	DueDate  *string  `json:"dueDate,omitempty"`
	Order    *float64 `json:"order,omitempty"`
}

type envelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Error   string       `json:"error"`
	Todo    *todos.Item  `json:"todo"`
	Todos   []todos.Item `json:"todos"`
}

func (c *Client) List(ctx context.Context) ([]todos.Item, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/todos", nil)
	if err != nil {
		return nil, err
	}
	return env.Todos, nil
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (todos.Item, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/todos", req)
	if err != nil {
		return todos.Item{}, err
	}
	return env.item()
}

func (c *Client) Get(ctx context.Context, id string) (todos.Item, error) {
	env, err := c.do(ctx, http.MethodGet, todoPath(id), nil)
	if err != nil {
		return todos.Item{}, err
	}
	return env.item()
}

func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) (todos.Item, error) {
	env, err := c.do(ctx, http.MethodPut, todoPath(id), req)
	if err != nil {
		return todos.Item{}, err
	}
	return env.item()
}

// SetCompleted sets the flag, or toggles it when completed is nil.
func (c *Client) SetCompleted(ctx context.Context, id string, completed *bool) (todos.Item, []todos.Item, error) {
	env, err := c.do(ctx, http.MethodPatch, todoPath(id)+"/completed", map[string]any{"completed": completed})
	if err != nil {
		return todos.Item{}, nil, err
	}
	it, err := env.item()
	return it, env.Todos, err
}

func (c *Client) Move(ctx context.Context, id string, index int) (todos.Item, []todos.Item, error) {
	env, err := c.do(ctx, http.MethodPatch, todoPath(id)+"/position", map[string]int{"index": index})
	if err != nil {
		return todos.Item{}, nil, err
	}
	it, err := env.item()
	return it, env.Todos, err
}

func (c *Client) Reorder(ctx context.Context, ids []string) ([]todos.Item, error) {
	env, err := c.do(ctx, http.MethodPut, "/api/todos/reorder", map[string][]string{"ids": ids})
	if err != nil {
		return nil, err
	}
	return env.Todos, nil
}

func (c *Client) Delete(ctx context.Context, id string) (todos.Item, error) {
	env, err := c.do(ctx, http.MethodDelete, todoPath(id), nil)
	if err != nil {
		return todos.Item{}, err
	}
	return env.item()
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Platform", platform)
	if c.appVersion != "" {
		req.Header.Set("X-App-Version", c.appVersion)
	}
	if c.sessionID != "" {
		req.Header.Set("X-Session-Id", c.sessionID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: env.Message, Detail: env.Error}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return &env, nil
}

func (e *envelope) item() (todos.Item, error) {
	if e.Todo == nil {
		return todos.Item{}, fmt.Errorf("response has no todo")
	}
	return *e.Todo, nil
}

func todoPath(id string) string {
	return "/api/todos/" + url.PathEscape(id)
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
