package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/docfill/internal/session"
)

func (m *fillModel) openEditor(form session.EditForm) {
	m.editing = true
	m.form = form
	m.focus = 0
	m.fields = make([]textinput.Model, len(form.Fields))
	for i, f := range form.Fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.TextStyle = styleInput
		ti.CharLimit = 1024
		ti.Width = max(m.width-form.LabelWidth()-12, 20)
		ti.SetValue(f.Value)
		m.fields[i] = ti
	}
	if len(m.fields) > 0 {
		m.fields[0].Focus()
	}
}

func (m *fillModel) moveFocus(delta int) tea.Cmd {
	if len(m.fields) == 0 {
		return nil
	}
	m.fields[m.focus].Blur()
	m.focus = (m.focus + delta + len(m.fields)) % len(m.fields)
	return m.fields[m.focus].Focus()
}

func (m fillModel) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEsc:
		m.flow.CloseEditor()
		m.apply(m.buf.drain())
		return m, nil

	case key.Matches(msg, keys.Save):
		return m, m.saveEdits()

	case key.Matches(msg, keys.Enter):
		if m.focus == len(m.fields)-1 {
			return m, m.saveEdits()
		}
		return m, m.moveFocus(1)

	case key.Matches(msg, keys.Tab), msg.Type == tea.KeyDown:
		return m, m.moveFocus(1)

	case key.Matches(msg, keys.ShiftTab), msg.Type == tea.KeyUp:
		return m, m.moveFocus(-1)
	}

	if m.focus >= len(m.fields) {
		return m, nil
	}
	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

// saveEdits submits the inputs keyed by the original placeholder names.
func (m fillModel) saveEdits() tea.Cmd {
	form := session.EditForm{Fields: make([]session.EditField, len(m.form.Fields))}
	copy(form.Fields, m.form.Fields)
	for i, f := range m.fields {
		form.Fields[i].Value = f.Value()
	}
	flow := m.flow
	return m.run("edit", func(ctx context.Context) (string, error) {
		return "", flow.SaveEdits(ctx, form)
	})
}

func (m fillModel) editorView() string {
	labelW := m.form.LabelWidth()
	var rows []string
	rows = append(rows, styleTitle.Render("Edit values"), "")
	for i, f := range m.form.Fields {
		label := f.Label + strings.Repeat(" ", max(labelW-runewidth.StringWidth(f.Label), 0))
		marker := "  "
		if i == m.focus {
			marker = styleListSelected.Render("> ")
		}
		rows = append(rows, marker+styleLabel.Render(label)+"  "+m.fields[i].View())
	}
	if len(m.form.Fields) == 0 {
		rows = append(rows, lipgloss.NewStyle().Foreground(colorDim).Render("No values collected"))
	}
	box := styleActiveBorder.Padding(0, 1).Render(strings.Join(rows, "\n"))
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}
