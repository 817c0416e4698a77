package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/docfill/internal/render"
)

// linesPerItem is the number of terminal lines each entry occupies.
const linesPerItem = 2

// renderList renders the left panel with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.entries) == 0 {
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No sessions")
	}

	var lines []string
	for i, e := range m.entries {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		lines = append(lines, formatEntry(e, width, i == m.cursor)...)
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// formatEntry formats one entry as two lines:
//
//	line 1: [>] phase  MM-DD  template
//	line 2:    snippet (dimmed)
func formatEntry(e entry, width int, selected bool) []string {
	var phase string
	switch e.Phase {
	case "chat":
		phase = stylePhaseChat.Render(e.Progress)
	case "preview":
		phase = stylePhasePreview.Render("done")
	default:
		phase = e.Phase
	}
	phase = styleListPhase.Render(phase)

	date := "     "
	if !e.UpdatedAt.IsZero() {
		date = e.UpdatedAt.Local().Format("01-02")
	}

	title := e.Template
	if title == "" {
		title = e.SessionID
	}
	titleMax := max(width-2-8-6-2, 0) // prefix + phase + date + padding
	if runewidth.StringWidth(title) > titleMax {
		title = runewidth.Truncate(title, titleMax, "")
	}

	line1 := fmt.Sprintf("%s %s %s", phase, date, styleListNormal.Render(title))
	if selected {
		line1 = styleListSelected.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	snippet := strings.NewReplacer("\n", " ", "\t", " ").Replace(e.Snippet)
	snippet = render.HighlightSnippet(snippet, true)
	snippetMax := max(width-4, 0)
	if runewidth.StringWidth(snippet) > snippetMax {
		snippet = runewidth.Truncate(snippet, snippetMax, "")
	}
	line2 := "    " + lipgloss.NewStyle().Foreground(colorDim).Render(snippet)

	return []string{line1, line2}
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := max(listHeight/linesPerItem, 1)
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
