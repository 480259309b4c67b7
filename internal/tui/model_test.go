package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-backend/internal/client"
	"todo-backend/internal/todos"
)

// serviceAPI serves the view from an in-memory service.
type serviceAPI struct {
	svc     *todos.Service
	fail    error
	reorder [][]string
}

func (s *serviceAPI) List(ctx context.Context) ([]todos.Item, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.svc.List(ctx)
}

func (s *serviceAPI) Create(ctx context.Context, req client.CreateRequest) (todos.Item, error) {
	if s.fail != nil {
		return todos.Item{}, s.fail
	}
	return s.svc.Create(ctx, todos.CreateInput{Text: req.Text, Priority: req.Priority})
}

func (s *serviceAPI) Update(ctx context.Context, id string, req client.UpdateRequest) (todos.Item, error) {
	if s.fail != nil {
		return todos.Item{}, s.fail
	}
	return s.svc.Update(ctx, id, todos.Patch{Text: req.Text, Priority: req.Priority, Order: req.Order})
}

func (s *serviceAPI) SetCompleted(ctx context.Context, id string, completed *bool) (todos.Item, []todos.Item, error) {
	if s.fail != nil {
		return todos.Item{}, nil, s.fail
	}
	return s.svc.SetCompleted(ctx, id, completed)
}

func (s *serviceAPI) Reorder(ctx context.Context, ids []string) ([]todos.Item, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	s.reorder = append(s.reorder, ids)
	return s.svc.Reorder(ctx, ids)
}

func (s *serviceAPI) Delete(ctx context.Context, id string) (todos.Item, error) {
	if s.fail != nil {
		return todos.Item{}, s.fail
	}
	return s.svc.Delete(ctx, id)
}

func newTestModel(t *testing.T, texts ...string) (Model, *serviceAPI) {
	t.Helper()
	api := &serviceAPI{svc: todos.NewService(todos.NewMemoryStore())}
	for _, text := range texts {
		_, err := api.svc.Create(context.Background(), todos.CreateInput{Text: text})
		require.NoError(t, err)
	}

	m := New(api, WithToastTTL(time.Millisecond))
	m = feed(t, m, m.Init()())
	require.False(t, m.loading)
	return m, api
}

// feed delivers msg and then every message its commands produce, except
// toast expiry, which tests deliver themselves.
func feed(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next, cmd := m.Update(queue[0])
		queue = queue[1:]
		m = next.(Model)
		for _, out := range collect(cmd) {
			if _, ok := out.(toastExpiredMsg); ok {
				continue
			}
			queue = append(queue, out)
		}
	}
	return m
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	case listedMsg, mutatedMsg, toastExpiredMsg:
		return []tea.Msg{msg}
	}
	// quit and cursor blink messages only matter to a running program
	return nil
}

func press(t *testing.T, m Model, ks ...string) Model {
	t.Helper()
	for _, k := range ks {
		m = feed(t, m, keyMsg(k))
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func texts(items []todos.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func TestInitialLoad(t *testing.T) {
	m, _ := newTestModel(t, "a", "b")
	assert.Equal(t, []string{"a", "b"}, texts(m.items))
	assert.Contains(t, m.View(), "a")
}

func TestAddTodo(t *testing.T) {
	m, api := newTestModel(t)

	m = press(t, m, "a")
	require.Equal(t, modeAdd, m.mode)

	m = press(t, m, "enter")
	assert.Equal(t, "Text cannot be empty", m.inputErr)
	assert.Equal(t, modeAdd, m.mode)

	m = feed(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("Buy milk")})
	m = press(t, m, "enter")

	assert.Equal(t, modeList, m.mode)
	assert.Equal(t, "Todo added", m.toast)
	require.Equal(t, []string{"Buy milk"}, texts(m.items))

	stored, err := api.svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored[0].Order)

	m = feed(t, m, toastExpiredMsg{seq: m.toastSeq})
	assert.Empty(t, m.toast)
}

func TestStaleToastExpiryIsIgnored(t *testing.T) {
	m, _ := newTestModel(t, "a")
	m = press(t, m, "space")
	m = press(t, m, "space")
	require.Equal(t, 2, m.toastSeq)

	m = feed(t, m, toastExpiredMsg{seq: 1})
	assert.Equal(t, "Todo reopened", m.toast)
}

func TestEditTodo(t *testing.T) {
	m, _ := newTestModel(t, "draft")

	m = press(t, m, "e")
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "draft", m.input.Value())

	m.input.SetValue("  final ")
	m = press(t, m, "enter")
	assert.Equal(t, "Todo updated", m.toast)
	assert.Equal(t, []string{"final"}, texts(m.items))

	m = press(t, m, "e", "esc")
	assert.Equal(t, modeList, m.mode)
	assert.Equal(t, []string{"final"}, texts(m.items))
}

func TestToggleMovesToCompletedGroup(t *testing.T) {
	m, _ := newTestModel(t, "first", "second")

	m = press(t, m, "space")
	assert.Equal(t, "Todo completed", m.toast)
	require.Equal(t, []string{"second", "first"}, texts(m.items))
	assert.True(t, m.items[1].Completed)

	m = press(t, m, "j", "space")
	assert.Equal(t, "Todo reopened", m.toast)
	assert.Equal(t, []string{"first", "second"}, texts(m.items))
}

func TestCyclePriority(t *testing.T) {
	m, _ := newTestModel(t, "a")
	require.Equal(t, todos.PriorityMedium, m.items[0].Priority)

	m = press(t, m, "p")
	assert.Equal(t, todos.PriorityHigh, m.items[0].Priority)
	m = press(t, m, "p")
	assert.Equal(t, todos.PriorityLow, m.items[0].Priority)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	m, _ := newTestModel(t, "keep", "drop")
	m = press(t, m, "j", "d")
	require.Equal(t, modeConfirmDelete, m.mode)
	assert.Contains(t, m.View(), `Delete "drop"? (y/n)`)

	m = press(t, m, "n")
	assert.Equal(t, modeList, m.mode)
	assert.Len(t, m.items, 2)

	m = press(t, m, "d", "y")
	assert.Equal(t, "Todo deleted", m.toast)
	assert.Equal(t, []string{"keep"}, texts(m.items))
	assert.Equal(t, 0, m.cursor)
}

func TestDraftOrderSavedWithReorder(t *testing.T) {
	m, api := newTestModel(t, "a", "b", "c")

	m = press(t, m, "j", "j", "K", "K")
	assert.True(t, m.draft)
	assert.Equal(t, []string{"c", "a", "b"}, texts(m.items))
	assert.Equal(t, 0, m.cursor)
	assert.Empty(t, api.reorder)

	m = press(t, m, "s")
	assert.False(t, m.draft)
	assert.Equal(t, "Order saved", m.toast)
	require.Len(t, api.reorder, 1)
	assert.Equal(t, []string{"c", "a", "b"}, texts(m.items))
	assert.Equal(t, 0.0, m.items[0].Order)
}

func TestDraftDoesNotCrossGroups(t *testing.T) {
	m, _ := newTestModel(t, "a", "b")
	m = press(t, m, "space")
	require.True(t, m.items[1].Completed)

	m = press(t, m, "J")
	assert.False(t, m.draft)
	assert.Equal(t, []string{"b", "a"}, texts(m.items))
}

func TestRefreshDiscardsDraft(t *testing.T) {
	m, _ := newTestModel(t, "a", "b")
	m = press(t, m, "J")
	require.True(t, m.draft)

	m = press(t, m, "r")
	assert.False(t, m.draft)
	assert.Equal(t, []string{"a", "b"}, texts(m.items))
}

func TestErrorBannerBlocksUntilDismissed(t *testing.T) {
	m, api := newTestModel(t, "a")
	api.fail = &client.APIError{Status: 500, Message: "Server error"}

	m = press(t, m, "space")
	require.NotEmpty(t, m.banner)
	assert.Contains(t, m.banner, "Server error")
	assert.Empty(t, m.toast)
	assert.Contains(t, m.View(), "enter to dismiss")

	m = press(t, m, "a")
	assert.Equal(t, modeList, m.mode, "keys are ignored while the banner is up")

	api.fail = nil
	m = press(t, m, "enter")
	assert.Empty(t, m.banner)

	m = press(t, m, "a")
	assert.Equal(t, modeAdd, m.mode)
}

func TestLoadFailureShowsBanner(t *testing.T) {
	api := &serviceAPI{svc: todos.NewService(todos.NewMemoryStore()), fail: errors.New("connection refused")}
	m := New(api)
	m = feed(t, m, m.Init()())

	assert.Contains(t, m.banner, "connection refused")
	assert.Empty(t, m.items)
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
