// Package tui is a terminal client for the todo API. It holds only
// transient view state and re-fetches the list after every change.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todo-backend/internal/client"
	"todo-backend/internal/todos"
)

// API is the subset of the REST client the view needs.
type API interface {
	List(ctx context.Context) ([]todos.Item, error)
	Create(ctx context.Context, req client.CreateRequest) (todos.Item, error)
	Update(ctx context.Context, id string, req client.UpdateRequest) (todos.Item, error)
	SetCompleted(ctx context.Context, id string, completed *bool) (todos.Item, []todos.Item, error)
	Reorder(ctx context.Context, ids []string) ([]todos.Item, error)
	Delete(ctx context.Context, id string) (todos.Item, error)
}

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeConfirmDelete
)

type listedMsg struct {
	items []todos.Item
	err   error
}

type mutatedMsg struct {
	toast string
	err   error
}

type toastExpiredMsg struct{ seq int }

type Model struct {
	api      API
	timeout  time.Duration
	toastTTL time.Duration

	items   []todos.Item
	cursor  int
	loading bool
	// draft is set while the local order differs from the server's.
	draft bool

	mode     mode
	input    textinput.Model
	inputErr string
	editID   string

	toast    string
	toastSeq int
	banner   string

	width, height int
}

type Option func(*Model)

func WithTimeout(d time.Duration) Option {
	return func(m *Model) { m.timeout = d }
}

func WithToastTTL(d time.Duration) Option {
	return func(m *Model) { m.toastTTL = d }
}

func New(api API, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 500

	m := Model{
		api:      api,
		timeout:  10 * time.Second,
		toastTTL: 3 * time.Second,
		input:    ti,
		loading:  true,
		width:    80,
		height:   24,
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Run starts the program in the alternate screen and blocks until it quits.
func Run(api API, opts ...Option) error {
	_, err := tea.NewProgram(New(api, opts...), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.fetch()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case listedMsg:
		m.loading = false
		if msg.err != nil {
			m.banner = describe("Could not load todos", msg.err)
			return m, nil
		}
		m.items = msg.items
		m.draft = false
		m.clampCursor()
		return m, nil

	case mutatedMsg:
		if msg.err != nil {
			m.loading = false
			m.banner = describe("Request failed", msg.err)
			return m, m.fetch()
		}
		m.toastSeq++
		m.toast = msg.toast
		return m, tea.Batch(m.fetch(), m.expireToast())

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.banner != "" {
			if key.Matches(msg, keys.Dismiss) {
				m.banner = ""
			}
			return m, nil
		}
		switch m.mode {
		case modeAdd, modeEdit:
			return m.updateInput(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}

	if m.mode == modeAdd || m.mode == modeEdit {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case key.Matches(msg, keys.MoveUp):
		m.moveSelected(-1)
	case key.Matches(msg, keys.MoveDown):
		m.moveSelected(1)

	case key.Matches(msg, keys.Save):
		if !m.draft {
			return m, nil
		}
		ids := make([]string, len(m.items))
		for i, it := range m.items {
			ids[i] = it.ID
		}
		return m.mutate("Order saved", func(ctx context.Context) error {
			_, err := m.api.Reorder(ctx, ids)
			return err
		})

	case key.Matches(msg, keys.Refresh):
		m.loading = true
		return m, m.fetch()

	case key.Matches(msg, keys.Add):
		m.mode = modeAdd
		m.inputErr = ""
		m.input.Placeholder = "What needs doing?"
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.Edit):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeEdit
		m.editID = it.ID
		m.inputErr = ""
		m.input.Placeholder = "Edit todo"
		m.input.SetValue(it.Text)
		m.input.CursorEnd()
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.Toggle):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		toast := "Todo completed"
		if it.Completed {
			toast = "Todo reopened"
		}
		return m.mutate(toast, func(ctx context.Context) error {
			_, _, err := m.api.SetCompleted(ctx, it.ID, nil)
			return err
		})

	case key.Matches(msg, keys.Priority):
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		next := string(nextPriority(it.Priority))
		return m.mutate("Priority set to "+next, func(ctx context.Context) error {
			_, err := m.api.Update(ctx, it.ID, client.UpdateRequest{Priority: &next})
			return err
		})

	case key.Matches(msg, keys.Delete):
		if _, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
		}
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			m.inputErr = "Text cannot be empty"
			return m, nil
		}
		mode, id := m.mode, m.editID
		m.closeInput()
		if mode == modeAdd {
			return m.mutate("Todo added", func(ctx context.Context) error {
				_, err := m.api.Create(ctx, client.CreateRequest{Text: text})
				return err
			})
		}
		return m.mutate("Todo updated", func(ctx context.Context) error {
			_, err := m.api.Update(ctx, id, client.UpdateRequest{Text: &text})
			return err
		})

	case msg.Type == tea.KeyEsc:
		m.closeInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Confirm):
		m.mode = modeList
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m.mutate("Todo deleted", func(ctx context.Context) error {
			_, err := m.api.Delete(ctx, it.ID)
			return err
		})
	case key.Matches(msg, keys.Cancel):
		m.mode = modeList
	}
	return m, nil
}

func (m *Model) closeInput() {
	m.mode = modeList
	m.editID = ""
	m.inputErr = ""
	m.input.SetValue("")
	m.input.Blur()
}

// moveSelected swaps the selected item with its neighbour. Items never cross
// between the incomplete and completed groups.
func (m *Model) moveSelected(delta int) {
	i, j := m.cursor, m.cursor+delta
	if i < 0 || i >= len(m.items) || j < 0 || j >= len(m.items) {
		return
	}
	if m.items[i].Completed != m.items[j].Completed {
		return
	}
	m.items[i], m.items[j] = m.items[j], m.items[i]
	m.cursor = j
	m.draft = true
}

func (m Model) selected() (todos.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return todos.Item{}, false
	}
	return m.items[m.cursor], true
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) fetch() tea.Cmd {
	api, timeout := m.api, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, err := api.List(ctx)
		return listedMsg{items: items, err: err}
	}
}

func (m Model) mutate(toast string, call func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	m.loading = true
	timeout := m.timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return mutatedMsg{toast: toast, err: call(ctx)}
	}
}

func (m Model) expireToast() tea.Cmd {
	seq := m.toastSeq
	return tea.Tick(m.toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
}

func nextPriority(p todos.Priority) todos.Priority {
	switch p {
	case todos.PriorityLow:
		return todos.PriorityMedium
	case todos.PriorityMedium:
		return todos.PriorityHigh
	}
	return todos.PriorityLow
}

func describe(prefix string, err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", prefix, apiErr.Message)
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}
