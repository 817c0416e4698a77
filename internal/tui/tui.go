// Package tui holds the two interactive screens: the document workflow
// (RunFill) and the history browser (RunBrowse).
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/docfill/internal/history"
)

const debounceDelay = 200 * time.Millisecond

// entry is one row of the browser: a recorded session, or a search hit
// inside one.
type entry struct {
	SessionID string
	Template  string
	Phase     string
	Progress  string
	UpdatedAt time.Time
	Snippet   string
	Hit       int // 1-based message position, 0 = none
}

func sessionEntries(rows []history.SessionRow) []entry {
	out := make([]entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, entry{
			SessionID: r.SessionID,
			Template:  r.Template,
			Phase:     r.Phase,
			Progress:  r.Progress.String(),
			UpdatedAt: r.UpdatedAt,
			Snippet:   fmt.Sprintf("%d messages", r.Messages),
		})
	}
	return out
}

func resultEntries(results []history.Result) []entry {
	out := make([]entry, 0, len(results))
	for _, r := range results {
		out = append(out, entry{
			SessionID: r.SessionID,
			Template:  r.Template,
			UpdatedAt: r.UpdatedAt,
			Snippet:   r.Snippet,
			Hit:       r.Seq + 1,
		})
	}
	return out
}

// message types

type entriesMsg struct {
	query   string
	entries []entry
	err     error
}

type debounceTickMsg struct {
	query string
}

// model

type model struct {
	ctx           context.Context
	store         *history.Store
	searchOpts    history.SearchOptions
	query         string
	entries       []entry
	cursor        int
	listOffset    int
	filterInput   textinput.Model
	transcript    viewport.Model
	transcriptKey string // "sessionID:hit" to avoid duplicate renders
	width         int
	height        int
	ready         bool
	quitting      bool
	chosen        *entry
}

func initialModel(ctx context.Context, store *history.Store, query string, opts history.SearchOptions) model {
	ti := textinput.New()
	ti.Placeholder = "Search transcripts..."
	ti.Focus()
	ti.SetValue(query)
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256

	return model{
		ctx:         ctx,
		store:       store,
		searchOpts:  opts,
		query:       query,
		filterInput: ti,
		transcript:  viewport.New(0, 0),
	}
}

// RunBrowse starts the history browser and blocks until it exits. With an
// empty query it lists sessions, newest first. On Enter the chosen session's
// download path (or id) is copied to the clipboard and returned.
func RunBrowse(ctx context.Context, store *history.Store, query string, opts history.SearchOptions) (string, error) {
	m := initialModel(ctx, store, query, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	finalModel, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("tui: %w", err)
	}

	fm := finalModel.(model)
	if fm.chosen == nil {
		return "", nil
	}
	return copySelection(ctx, store, fm.chosen.SessionID)
}

// copySelection copies the saved document path, or the session id when
// nothing was downloaded yet.
func copySelection(ctx context.Context, store *history.Store, sessionID string) (string, error) {
	row, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	if row == nil {
		return "", fmt.Errorf("session not found: %s", sessionID)
	}

	target := row.SessionID
	if row.DownloadPath != "" {
		target = row.DownloadPath
	}
	if err := clipboard.WriteAll(target); err != nil {
		fmt.Printf("%s\n", target)
		return target, nil
	}
	fmt.Printf("Copied to clipboard: %s\n", target)
	return target, nil
}

// Init triggers the initial list or search.
func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.doLoad(m.query))
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.transcript = newViewport(m.transcriptWidth(), m.panelHeight())
		m.transcriptKey = ""
		if len(m.entries) > 0 && m.cursor < len(m.entries) {
			cmds = append(cmds, loadTranscriptCmd(m.ctx, m.store, m.entries[m.cursor], m.query, m.transcriptWidth()))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Enter):
			if len(m.entries) > 0 && m.cursor < len(m.entries) {
				e := m.entries[m.cursor]
				m.chosen = &e
				m.quitting = true
				return m, tea.Quit
			}

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentTranscript())
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentTranscript())
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, keys.PreviewUp):
			m.transcript.LineUp(m.panelHeight() / 2)
			return m, nil

		case key.Matches(msg, keys.PreviewDn):
			m.transcript.LineDown(m.panelHeight() / 2)
			return m, nil

		case key.Matches(msg, keys.PageUp):
			m.transcript.LineUp(m.panelHeight())
			return m, nil

		case key.Matches(msg, keys.PageDown):
			m.transcript.LineDown(m.panelHeight())
			return m, nil
		}

		var tiCmd tea.Cmd
		m.filterInput, tiCmd = m.filterInput.Update(msg)
		cmds = append(cmds, tiCmd)

		if q := m.filterInput.Value(); q != m.query {
			m.query = q
			cmds = append(cmds, scheduleDebouncedLoad(q))
		}
		return m, tea.Batch(cmds...)

	case tea.MouseMsg:
		if !m.ready || len(m.entries) == 0 {
			return m, nil
		}

		region, itemIdx := m.hitTest(msg.X, msg.Y)

		switch {
		case region == regionList && msg.Button == tea.MouseButtonWheelUp:
			if m.listOffset > 0 {
				m.listOffset--
			}
			return m, nil

		case region == regionList && msg.Button == tea.MouseButtonWheelDown:
			maxOffset := max(len(m.entries)-m.panelHeight()/linesPerItem, 0)
			if m.listOffset < maxOffset {
				m.listOffset++
			}
			return m, nil

		case region == regionList && msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
			if itemIdx >= 0 && itemIdx < len(m.entries) && m.cursor != itemIdx {
				m.cursor = itemIdx
				m.adjustListScroll(m.panelHeight())
				cmds = append(cmds, m.loadCurrentTranscript())
			}
			return m, tea.Batch(cmds...)

		case region == regionTranscript && (msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown):
			var vpCmd tea.Cmd
			m.transcript, vpCmd = m.transcript.Update(msg)
			return m, vpCmd
		}
		return m, nil

	case debounceTickMsg:
		// fire only if the query is still current
		if msg.query == m.query {
			cmds = append(cmds, m.doLoad(msg.query))
		}
		return m, tea.Batch(cmds...)

	case entriesMsg:
		if msg.query != m.query {
			return m, nil
		}
		m.cursor = 0
		m.listOffset = 0
		m.transcriptKey = ""
		if msg.err != nil {
			m.entries = nil
			m.transcript.SetContent("Error: " + msg.err.Error())
			return m, nil
		}
		m.entries = msg.entries
		if len(m.entries) > 0 {
			cmds = append(cmds, m.loadCurrentTranscript())
		} else {
			m.transcript.SetContent("")
		}
		return m, tea.Batch(cmds...)

	case transcriptRenderedMsg:
		k := transcriptCacheKey(msg.sessionID, msg.hit)
		if k == m.transcriptKey {
			return m, nil
		}
		if len(m.entries) > 0 && m.cursor < len(m.entries) {
			e := m.entries[m.cursor]
			if k != transcriptCacheKey(e.SessionID, e.Hit) {
				return m, nil // stale
			}
		}
		if msg.err != nil {
			m.transcript.SetContent("Transcript error: " + msg.err.Error())
		} else {
			m.transcript.SetContent(msg.content)
			if msg.hitLine > 0 {
				m.transcript.SetYOffset(msg.hitLine)
			} else {
				m.transcript.GotoTop()
			}
		}
		m.transcriptKey = k
		return m, nil
	}

	return m, tea.Batch(cmds...)
}

// View renders the browser.
func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	listW := m.listWidth()
	transcriptW := m.transcriptWidth()
	panelH := m.panelHeight()

	listPanel := stylePanelBorder.
		Width(listW).
		Height(panelH).
		Render(m.renderList(listW, panelH))

	m.transcript.Width = transcriptW
	m.transcript.Height = panelH
	transcriptPanel := styleActiveBorder.
		Width(transcriptW).
		Height(panelH).
		Render(m.transcript.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, transcriptPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.filterInput.View(), panels, m.statusBar())
}

// layout

func (m model) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	// 40% for the list, minus border padding
	return max(m.width*40/100-4, 20)
}

func (m model) transcriptWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(m.width*60/100-4, 20)
}

func (m model) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	// input row (1) + status bar (1) + borders (4)
	return max(m.height-6, 5)
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionTranscript
)

// hitTest maps terminal coordinates to a panel region and list item index.
func (m model) hitTest(x, y int) (mouseRegion, int) {
	contentYStart := 2 // input row (1) + top border (1)
	contentYEnd := contentYStart + m.panelHeight() - 1
	if y < contentYStart || y > contentYEnd {
		return regionNone, -1
	}
	relY := y - contentYStart

	lw := m.listWidth()
	if x >= 1 && x <= lw {
		return regionList, m.listOffset + relY/linesPerItem
	}
	// col 0 = border, 1..lw = content, lw+1 = border
	if x > lw+2 {
		return regionTranscript, -1
	}
	return regionNone, -1
}

func (m model) statusBar() string {
	what := "sessions"
	if m.query != "" {
		what = "matches"
	}
	parts := []string{
		fmt.Sprintf("%d %s", len(m.entries), what),
		"click/up/dn navigate",
		"scroll/C-u/C-d transcript",
		"Enter copy",
		"Esc quit",
	}
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

func (m model) doLoad(query string) tea.Cmd {
	ctx, store := m.ctx, m.store
	opts := m.searchOpts
	opts.Query = query
	return func() tea.Msg {
		if strings.TrimSpace(query) == "" {
			rows, err := store.ListSessions(ctx, history.ListOptions{Since: opts.Since, Limit: opts.Limit})
			return entriesMsg{query: query, entries: sessionEntries(rows), err: err}
		}
		results, err := store.Search(ctx, opts)
		return entriesMsg{query: query, entries: resultEntries(results), err: err}
	}
}

func scheduleDebouncedLoad(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

func (m model) loadCurrentTranscript() tea.Cmd {
	if len(m.entries) == 0 || m.cursor >= len(m.entries) {
		return nil
	}
	e := m.entries[m.cursor]
	if transcriptCacheKey(e.SessionID, e.Hit) == m.transcriptKey {
		return nil
	}
	return loadTranscriptCmd(m.ctx, m.store, e, m.query, m.transcriptWidth())
}

func transcriptCacheKey(sessionID string, hit int) string {
	return fmt.Sprintf("%s:%d", sessionID, hit)
}
