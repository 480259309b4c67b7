package tui

import (
	"fmt"
	"strings"

	"todo-backend/internal/todos"
)

func (m Model) View() string {
	var b strings.Builder

	done, pending := counts(m.items)
	fmt.Fprintf(&b, "%s   %s %d  %s %d  %s %d\n\n",
		titleStyle.Render("Todos"),
		successStyle.Render("✔"), done,
		pendingStyle.Render("•"), pending,
		accentStyle.Render("Total"), len(m.items),
	)

	switch {
	case m.loading && len(m.items) == 0:
		b.WriteString(mutedStyle.Render("Loading…") + "\n")
	case len(m.items) == 0:
		b.WriteString(mutedStyle.Render("Nothing to do. Press a to add a todo.") + "\n")
	}
	for i, it := range m.items {
		b.WriteString(m.renderItem(i, it) + "\n")
	}

	if m.draft {
		b.WriteString("\n" + pendingStyle.Render("Order changed. Press s to save or r to discard.") + "\n")
	}

	switch m.mode {
	case modeAdd, modeEdit:
		title := "Add todo"
		if m.mode == modeEdit {
			title = "Edit todo"
		}
		if m.inputErr != "" {
			title += "  " + errorStyle.Render(m.inputErr)
		}
		b.WriteString("\n" + panelStyle.Render(title+"\n"+m.input.View()) + "\n")
	case modeConfirmDelete:
		if it, ok := m.selected(); ok {
			b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Delete %q? (y/n)", it.Text)) + "\n")
		}
	}

	if m.banner != "" {
		b.WriteString("\n" + bannerStyle.Render(errorStyle.Render("✖ "+m.banner)+"\n"+helpStyle.Render("enter to dismiss")) + "\n")
	} else if m.toast != "" {
		b.WriteString("\n" + successStyle.Render("✔ "+m.toast) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(helpLine()))
	return panelStyle.Render(b.String())
}

func (m Model) renderItem(i int, it todos.Item) string {
	box := mutedStyle.Render(boxUnchecked)
	text := it.Text
	if it.Completed {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}

	line := fmt.Sprintf("%s %s %s", box, priorityBadge(it.Priority), text)
	if it.DueDate != nil {
		line += "  " + mutedStyle.Render("due "+it.DueDate.Format("2006-01-02"))
	}

	if i == m.cursor {
		return selectedStyle.Render("> ") + line
	}
	return "  " + line
}

func priorityBadge(p todos.Priority) string {
	switch p {
	case todos.PriorityHigh:
		return highStyle.Render("!!!")
	case todos.PriorityLow:
		return lowStyle.Render("!  ")
	}
	return mediumStyle.Render("!! ")
}

func helpLine() string {
	parts := make([]string, 0, len(keys.short()))
	for _, k := range keys.short() {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

func counts(items []todos.Item) (done, pending int) {
	for _, it := range items {
		if it.Completed {
			done++
		} else {
			pending++
		}
	}
	return done, pending
}
