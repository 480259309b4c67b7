package todos

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-backend/internal/analytics"
)

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Todo    *Item  `json:"todo"`
	Todos   []Item `json:"todos"`
}

func newTestAPI(t *testing.T) (*httptest.Server, *countingStore) {
	t.Helper()
	cs := &countingStore{Store: NewMemoryStore()}
	svc := NewService(cs, WithClock(steppingClock()))

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewHandler(svc, analytics.New(quiet), quiet)
	require.NoError(t, err)

	r := mux.NewRouter()
	h.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, cs
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, apiResponse) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	var out apiResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func TestAPIEmptyList(t *testing.T) {
	srv, _ := newTestAPI(t)

	res, err := srv.Client().Get(srv.URL + "/api/todos")
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"success":true,"todos":[]}`, string(raw))
}

func TestAPICreateAndList(t *testing.T) {
	srv, _ := newTestAPI(t)

	code, out := call(t, srv, http.MethodPost, "/api/todos", `{"text":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, code)
	require.True(t, out.Success)
	require.NotNil(t, out.Todo)
	assert.Equal(t, "Buy milk", out.Todo.Text)
	assert.Equal(t, 1.0, out.Todo.Order)
	assert.False(t, out.Todo.Completed)

	code, out = call(t, srv, http.MethodGet, "/api/todos", "")
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, out.Todos, 1)
	assert.Equal(t, "Buy milk", out.Todos[0].Text)
}

func TestAPICreateValidation(t *testing.T) {
	srv, _ := newTestAPI(t)

	cases := map[string]string{
		"missing text":  `{}`,
		"blank text":    `{"text":"   "}`,
		"text not text": `{"text":42}`,
		"bad priority":  `{"text":"a","priority":"urgent"}`,
		"bad due date":  `{"text":"a","dueDate":"next week"}`,
		"broken json":   `{"text":`,
		"not an object": `["a"]`,
		"empty body":    ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			code, out := call(t, srv, http.MethodPost, "/api/todos", body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, out.Success)
			assert.NotEmpty(t, out.Message)
			assert.Empty(t, out.Error)
		})
	}

	_, out := call(t, srv, http.MethodPost, "/api/todos", `{"text":"  "}`)
	assert.Equal(t, "Text is required", out.Message)
	_, out = call(t, srv, http.MethodPost, "/api/todos", `{"text":"a","priority":"urgent"}`)
	assert.Contains(t, out.Message, "priority")
}

func TestAPICreateWithFields(t *testing.T) {
	srv, _ := newTestAPI(t)

	code, out := call(t, srv, http.MethodPost, "/api/todos", `{"text":"file taxes","priority":"high","dueDate":"2025-04-15"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, PriorityHigh, out.Todo.Priority)
	require.NotNil(t, out.Todo.DueDate)
	assert.Equal(t, "2025-04-15", out.Todo.DueDate.Format("2006-01-02"))
}

func TestAPIPriorityIsCaseInsensitive(t *testing.T) {
	srv, _ := newTestAPI(t)

	code, out := call(t, srv, http.MethodPost, "/api/todos", `{"text":"a","priority":"HIGH"}`)
	require.Equal(t, http.StatusCreated, code, out.Message)
	assert.Equal(t, PriorityHigh, out.Todo.Priority)

	code, out = call(t, srv, http.MethodPut, "/api/todos/"+out.Todo.ID, `{"priority":"Low"}`)
	require.Equal(t, http.StatusOK, code, out.Message)
	assert.Equal(t, PriorityLow, out.Todo.Priority)

	code, _ = call(t, srv, http.MethodPost, "/api/todos", `{"text":"a","priority":"HIGHEST"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPIMalformedIDIsBadRequest(t *testing.T) {
	srv, cs := newTestAPI(t)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/todos/abc", ""},
		{http.MethodPut, "/api/todos/abc", `{"text":"x"}`},
		{http.MethodPatch, "/api/todos/abc/completed", `{}`},
		{http.MethodPatch, "/api/todos/abc/position", `{"index":0}`},
		{http.MethodDelete, "/api/todos/abc", ""},
	} {
		code, out := call(t, srv, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, code, tc.method+" "+tc.path)
		assert.Equal(t, "Invalid id", out.Message)
	}
	assert.Zero(t, cs.calls)
}

func TestAPINotFound(t *testing.T) {
	srv, _ := newTestAPI(t)
	missing := "/api/todos/" + NewID()

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, missing, ""},
		{http.MethodPut, missing, `{"text":"x"}`},
		{http.MethodPatch, missing + "/completed", ``},
		{http.MethodPatch, missing + "/position", `{"index":0}`},
		{http.MethodDelete, missing, ""},
	} {
		code, out := call(t, srv, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, code, tc.method+" "+tc.path)
		assert.Equal(t, "Todo not found", out.Message)
	}
}

func TestAPIDeleteThenGet(t *testing.T) {
	srv, _ := newTestAPI(t)

	_, created := call(t, srv, http.MethodPost, "/api/todos", `{"text":"temp"}`)
	path := "/api/todos/" + created.Todo.ID

	code, out := call(t, srv, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Todo deleted", out.Message)
	assert.Equal(t, created.Todo.ID, out.Todo.ID)

	code, _ = call(t, srv, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPIUpdate(t *testing.T) {
	srv, _ := newTestAPI(t)

	_, created := call(t, srv, http.MethodPost, "/api/todos", `{"text":"draft","priority":"low"}`)
	path := "/api/todos/" + created.Todo.ID

	code, out := call(t, srv, http.MethodPut, path, `{"text":"  final ","priority":"","order":9}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "final", out.Todo.Text)
	assert.Equal(t, PriorityLow, out.Todo.Priority, "empty priority leaves it unchanged")
	assert.Equal(t, 9.0, out.Todo.Order)

	code, out = call(t, srv, http.MethodPut, path, `{"text":" "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Text is required", out.Message)

	code, _ = call(t, srv, http.MethodPut, path, `{"order":"first"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPIToggleReturnsSortedList(t *testing.T) {
	srv, _ := newTestAPI(t)

	_, first := call(t, srv, http.MethodPost, "/api/todos", `{"text":"first"}`)
	_, second := call(t, srv, http.MethodPost, "/api/todos", `{"text":"second"}`)

	code, out := call(t, srv, http.MethodPatch, "/api/todos/"+first.Todo.ID+"/completed", `{"completed":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, out.Todo.Completed)
	require.Len(t, out.Todos, 2)
	assert.Equal(t, second.Todo.ID, out.Todos[0].ID)
	assert.Equal(t, first.Todo.ID, out.Todos[1].ID)

	// an empty body toggles
	code, out = call(t, srv, http.MethodPatch, "/api/todos/"+first.Todo.ID+"/completed", "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, out.Todo.Completed)
	assert.Equal(t, first.Todo.ID, out.Todos[0].ID)

	code, _ = call(t, srv, http.MethodPatch, "/api/todos/"+first.Todo.ID+"/completed", `{"completed":"yes"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPIReorderAndMove(t *testing.T) {
	srv, _ := newTestAPI(t)

	_, a := call(t, srv, http.MethodPost, "/api/todos", `{"text":"a"}`)
	_, b := call(t, srv, http.MethodPost, "/api/todos", `{"text":"b"}`)

	code, out := call(t, srv, http.MethodPut, "/api/todos/reorder", `{"ids":["`+b.Todo.ID+`","`+a.Todo.ID+`"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{b.Todo.ID, a.Todo.ID}, ids(out.Todos))

	code, _ = call(t, srv, http.MethodPut, "/api/todos/reorder", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, srv, http.MethodPut, "/api/todos/reorder", `{"ids":["`+NewID()+`"]}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, out = call(t, srv, http.MethodPatch, "/api/todos/"+a.Todo.ID+"/position", `{"index":0}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{a.Todo.ID, b.Todo.ID}, ids(out.Todos))

	code, _ = call(t, srv, http.MethodPatch, "/api/todos/"+a.Todo.ID+"/position", `{"index":-2}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPIStoreFailure(t *testing.T) {
	srv, cs := newTestAPI(t)
	cs.fail = errors.New("no reachable servers")

	code, out := call(t, srv, http.MethodGet, "/api/todos", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, out.Success)
	assert.Equal(t, "Server error", out.Message)
	assert.Contains(t, out.Error, "no reachable servers")
}
