package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/docfill/internal/render"
	"github.com/Zuo-Peng/docfill/internal/session"
)

// renderChat lays out the transcript as bubbles: the user's on the right,
// the assistant's on the left, failed requests in red.
func renderChat(msgs []session.Message, width int) string {
	if width < 20 {
		width = 20
	}
	bubbleW := width * 3 / 4

	var rows []string
	for _, m := range msgs {
		text := render.Wrap(m.Text, bubbleW-2)
		switch {
		case m.Sender == session.SenderUser:
			rows = append(rows, lipgloss.PlaceHorizontal(width, lipgloss.Right, styleBubbleUser.Render(text)))
		case strings.HasPrefix(m.Text, "Error"):
			rows = append(rows, styleBubbleError.Render(text))
		default:
			rows = append(rows, styleBubbleAssistant.Render(text))
		}
		rows = append(rows, "")
	}
	return strings.Join(rows, "\n")
}
