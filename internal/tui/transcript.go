package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/docfill/internal/history"
	"github.com/Zuo-Peng/docfill/internal/render"
)

// transcriptRenderedMsg is sent when an async transcript render completes.
type transcriptRenderedMsg struct {
	sessionID string
	hit       int
	content   string
	hitLine   int
	err       error
}

// loadTranscriptCmd renders the session transcript off the update loop.
func loadTranscriptCmd(ctx context.Context, store *history.Store, e entry, query string, width int) tea.Cmd {
	return func() tea.Msg {
		msg := transcriptRenderedMsg{sessionID: e.SessionID, hit: e.Hit}
		row, err := store.GetSession(ctx, e.SessionID)
		if err == nil && row == nil {
			err = fmt.Errorf("session not found: %s", e.SessionID)
		}
		if err != nil {
			msg.err = err
			return msg
		}
		msgs, err := store.GetMessages(ctx, e.SessionID)
		if err != nil {
			msg.err = err
			return msg
		}
		msg.content, msg.hitLine = render.Transcript(msgs, render.Options{
			Header:  sessionHeader(row),
			Hit:     e.Hit,
			Context: -1,
			Width:   width,
			Query:   query,
		})
		return msg
	}
}

func sessionHeader(row *history.SessionRow) string {
	h := fmt.Sprintf("%s [%s %s] %s", row.SessionID, row.Phase, row.Progress, row.Template)
	if row.DownloadPath != "" {
		h += " -> " + row.DownloadPath
	}
	return h
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
