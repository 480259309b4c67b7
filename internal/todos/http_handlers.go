package todos

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"todo-backend/internal/analytics"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	svc     *Service
	events  *analytics.Recorder
	logger  *slog.Logger
	schemas requestSchemas
}

func NewHandler(svc *Service, events *analytics.Recorder, logger *slog.Logger) (*Handler, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, events: events, logger: logger, schemas: schemas}, nil
}

// Register mounts the todo routes. The literal /reorder route must come
// before /{id} so it is not taken for an id.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/todos", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/todos", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/todos/reorder", h.Reorder).Methods(http.MethodPut)
	r.HandleFunc("/api/todos/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/todos/{id}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/todos/{id}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/todos/{id}/completed", h.SetCompleted).Methods(http.MethodPatch)
	r.HandleFunc("/api/todos/{id}/position", h.Move).Methods(http.MethodPatch)
}

// -------------------------------
// HANDLERS
// -------------------------------

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "todos": nonNil(items)})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text     string  `json:"text"`
		Priority string  `json:"priority"`
		DueDate  *string `json:"dueDate"`
	}
	if err := h.readBody(w, r, "create", &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	due, err := optionalDueDate(body.DueDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	item, err := h.svc.Create(r.Context(), CreateInput{Text: body.Text, Priority: body.Priority, DueDate: due})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.events.Request(r, "todo_created", map[string]any{
		"todo_id":      item.ID,
		"text_len":     len(item.Text),
		"priority":     string(item.Priority),
		"has_due_date": item.DueDate != nil,
		"order":        item.Order,
	})

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "todo": item})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "todo": item})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !ValidID(id) {
		h.writeError(w, r, validationf("Invalid id"))
		return
	}

	var body struct {
		Text     *string  `json:"text"`
		Priority *string  `json:"priority"`
		DueDate  *string  `json:"dueDate"`
		Order    *float64 `json:"order"`
	}
	if err := h.readBody(w, r, "update", &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	// empty priority and dueDate mean "leave as is"
	p := Patch{Text: body.Text, Order: body.Order}
	if body.Priority != nil && *body.Priority != "" {
		p.Priority = body.Priority
	}
	due, err := optionalDueDate(body.DueDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p.DueDate = due

	item, err := h.svc.Update(r.Context(), id, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var fields []string
	if p.Text != nil {
		fields = append(fields, "text")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.DueDate != nil {
		fields = append(fields, "dueDate")
	}
	if p.Order != nil {
		fields = append(fields, "order")
	}
	h.events.Request(r, "todo_updated", map[string]any{
		"todo_id": item.ID,
		"fields":  fields,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "todo": item})
}

func (h *Handler) SetCompleted(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !ValidID(id) {
		h.writeError(w, r, validationf("Invalid id"))
		return
	}

	var body struct {
		Completed *bool `json:"completed"` // optional; omitted toggles
	}
	if err := h.readBody(w, r, "completed", &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, items, err := h.svc.SetCompleted(r.Context(), id, body.Completed)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	event := "todo_reopened"
	if item.Completed {
		event = "todo_completed"
	}
	h.events.Request(r, event, map[string]any{
		"todo_id":     item.ID,
		"order":       item.Order,
		"was_toggled": body.Completed == nil,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "todo": item, "todos": nonNil(items)})
}

func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !ValidID(id) {
		h.writeError(w, r, validationf("Invalid id"))
		return
	}

	var body struct {
		Index int `json:"index"`
	}
	if err := h.readBody(w, r, "position", &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	item, items, err := h.svc.Move(r.Context(), id, body.Index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.events.Request(r, "todo_moved", map[string]any{
		"todo_id": item.ID,
		"index":   body.Index,
		"order":   item.Order,
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "todo": item, "todos": nonNil(items)})
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := h.readBody(w, r, "reorder", &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	items, err := h.svc.Reorder(r.Context(), body.IDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.events.Request(r, "todos_reordered", map[string]any{"count": len(body.IDs)})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "todos": nonNil(items)})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.events.Request(r, "todo_deleted", map[string]any{"todo_id": item.ID})

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Todo deleted", "todo": item})
}

// -------------------------------
// helpers
// -------------------------------

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, schema string, dst any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return validationf("Request body too large")
		}
		return validationf("Invalid request body")
	}
	return h.schemas.decode(schema, raw, dst)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var te *Error
	if !errors.As(err, &te) {
		te = &Error{Kind: KindStore, Message: "Server error", Err: err}
	}

	resp := map[string]any{"success": false, "message": te.Message}
	if te.Kind == KindStore {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		if te.Err != nil {
			resp["error"] = te.Err.Error()
		}
	}
	writeJSON(w, te.Kind.Status(), resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func optionalDueDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseDueDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nonNil(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}
