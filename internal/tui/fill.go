package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zuo-Peng/docfill/internal/preview"
	"github.com/Zuo-Peng/docfill/internal/session"
	"github.com/Zuo-Peng/docfill/internal/workflow"
)

// pumpDelay is how often queued flow events are applied while a request
// is in flight.
const pumpDelay = 80 * time.Millisecond

type section int

const (
	sectionUpload section = iota
	sectionChat
	sectionPreview
)

// flowMsg is sent when a flow call returns.
type flowMsg struct {
	op     string
	result string
	events []event
	err    error
}

type pumpMsg struct{}

type FillOptions struct {
	File        string // uploaded on start when set
	StartDir    string // where the file picker opens
	DownloadDir string
}

type fillModel struct {
	ctx  context.Context
	flow *workflow.Flow
	buf  *eventBuffer
	opts FillOptions

	section     section
	picker      filepicker.Model
	pathInput   textinput.Model
	pathFocused bool

	chat     viewport.Model
	input    textinput.Model
	bar      progress.Model
	spin     spinner.Model
	progress session.Progress
	messages []session.Message

	doc         viewport.Model
	previewHTML string

	editing bool
	form    session.EditForm
	fields  []textinput.Model
	focus   int

	alerts    []string
	notice    string
	lastSaved string

	width    int
	height   int
	ready    bool
	quitting bool
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 1024
	return ti
}

func newFillModel(ctx context.Context, newFlow func(workflow.View) *workflow.Flow, opts FillOptions) fillModel {
	buf := &eventBuffer{}

	fp := filepicker.New()
	fp.AllowedTypes = []string{".docx"}
	fp.AutoHeight = true
	fp.CurrentDirectory = opts.StartDir
	if fp.CurrentDirectory == "" {
		fp.CurrentDirectory, _ = os.Getwd()
	}

	path := newInput("path/to/template.docx")
	input := newInput("Waiting for a template...")

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return fillModel{
		ctx:       ctx,
		flow:      newFlow(buf),
		buf:       buf,
		opts:      opts,
		picker:    fp,
		pathInput: path,
		chat:      viewport.New(0, 0),
		input:     input,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spin:      sp,
		doc:       viewport.New(0, 0),
	}
}

// RunFill runs the document workflow TUI until the user quits. newFlow
// receives the view the flow must render to.
func RunFill(ctx context.Context, newFlow func(workflow.View) *workflow.Flow, opts FillOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newFillModel(ctx, newFlow, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if fm := finalModel.(fillModel); fm.lastSaved != "" {
		fmt.Printf("Saved %s\n", fm.lastSaved)
	}
	return nil
}

func (m fillModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.picker.Init(), m.spin.Tick}
	if m.opts.File != "" {
		cmds = append(cmds, m.upload(m.opts.File))
	}
	return tea.Batch(cmds...)
}

// run calls fn off the update loop and reports back with whatever the
// flow rendered meanwhile.
func (m fillModel) run(op string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	ctx, buf := m.ctx, m.buf
	call := func() tea.Msg {
		result, err := fn(ctx)
		return flowMsg{op: op, result: result, err: err, events: buf.drain()}
	}
	return tea.Batch(call, pump())
}

func pump() tea.Cmd {
	return tea.Tick(pumpDelay, func(time.Time) tea.Msg { return pumpMsg{} })
}

func (m fillModel) busy() bool {
	for _, f := range []session.FlowKind{session.FlowUpload, session.FlowChat, session.FlowPreview, session.FlowEdit, session.FlowDownload} {
		if m.flow.Busy(f) {
			return true
		}
	}
	return false
}

func (m fillModel) upload(path string) tea.Cmd {
	flow := m.flow
	return m.run("upload", func(ctx context.Context) (string, error) {
		return "", flow.Upload(ctx, path)
	})
}

func (m fillModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case flowMsg:
		m.apply(msg.events)
		m.handleResult(msg)
		return m, nil

	case pumpMsg:
		m.apply(m.buf.drain())
		if m.busy() {
			return m, pump()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if len(m.alerts) > 0 {
			// alerts block everything until acknowledged
			if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
				m.alerts = m.alerts[1:]
			}
			return m, nil
		}
		if m.editing {
			return m.updateEditor(msg)
		}
		switch m.section {
		case sectionUpload:
			return m.updateUpload(msg)
		case sectionChat:
			return m.updateChat(msg)
		case sectionPreview:
			return m.updatePreview(msg)
		}
	}

	// everything else (blink, dir reads) goes to whatever is live
	var cmd tea.Cmd
	switch {
	case m.editing && m.focus < len(m.fields):
		m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	case m.section == sectionUpload:
		m.picker, cmd = m.picker.Update(msg)
		if ok, path := m.picker.DidSelectFile(msg); ok {
			cmds = append(cmds, m.upload(path))
		}
		cmds = append(cmds, cmd)
		m.pathInput, cmd = m.pathInput.Update(msg)
	case m.section == sectionChat:
		m.input, cmd = m.input.Update(msg)
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *fillModel) handleResult(msg flowMsg) {
	switch {
	case msg.err == nil:
		if msg.op == "download" {
			m.lastSaved = msg.result
		}
	case errors.Is(msg.err, workflow.ErrBusy):
		m.notice = "Still working on the previous request"
	case errors.Is(msg.err, workflow.ErrNotReady):
		m.notice = "Upload a template first"
	}
	// other failures were already rendered by the flow
}

// apply renders flow events in the order they were emitted.
func (m *fillModel) apply(events []event) {
	chatChanged := false
	for _, e := range events {
		switch e.kind {
		case evMessage:
			m.messages = append(m.messages, e.message)
			chatChanged = true
		case evProgress:
			m.progress = e.progress
		case evPhase:
			m.enter(e.phase)
		case evPreview:
			m.previewHTML = e.text
			m.refreshDoc()
		case evOpenEditor:
			m.openEditor(e.form)
		case evCloseEditor:
			m.editing = false
			m.fields = nil
		case evAlert:
			m.alerts = append(m.alerts, e.text)
		case evNotify:
			m.notice = e.text
		}
	}
	if chatChanged {
		m.chat.SetContent(renderChat(m.messages, m.chat.Width))
		m.chat.GotoBottom()
	}
}

func (m *fillModel) enter(p session.Phase) {
	switch p {
	case session.PhaseChat:
		if m.section != sectionChat {
			// a new upload starts a fresh transcript
			m.messages = nil
			m.previewHTML = ""
		}
		m.section = sectionChat
		m.pathInput.Blur()
		m.input.Placeholder = "Type your answer..."
		m.input.Focus()
	case session.PhasePreview:
		m.section = sectionPreview
		m.input.Blur()
	}
}

func (m *fillModel) resize() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	h := m.bodyHeight()
	m.chat.Width = w
	m.chat.Height = max(h-4, 3)
	m.doc.Width = w
	m.doc.Height = max(h-2, 3)
	m.bar.Width = min(w-12, 60)
	m.input.Width = w - 4
	m.pathInput.Width = w - 4
	m.chat.SetContent(renderChat(m.messages, w))
	m.chat.GotoBottom()
	m.refreshDoc()
}

func (m fillModel) bodyHeight() int {
	if m.height <= 0 {
		return 20
	}
	// header (1) + status bar (1)
	return max(m.height-2, 5)
}

func (m *fillModel) refreshDoc() {
	if m.previewHTML == "" {
		m.doc.SetContent("")
		return
	}
	text, err := preview.Text(m.previewHTML, m.doc.Width)
	if err != nil {
		text = "Preview error: " + err.Error()
	}
	m.doc.SetContent(text)
}

func (m fillModel) updateUpload(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Tab) {
		m.pathFocused = !m.pathFocused
		if m.pathFocused {
			return m, m.pathInput.Focus()
		}
		m.pathInput.Blur()
		return m, nil
	}

	if m.pathFocused {
		switch {
		case msg.Type == tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Enter):
			path := strings.TrimSpace(m.pathInput.Value())
			if path == "" {
				return m, nil
			}
			return m, m.upload(path)
		}
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	cmds = append(cmds, cmd)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		cmds = append(cmds, m.upload(path))
	}
	return m, tea.Batch(cmds...)
}

func (m fillModel) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Enter):
		flow := m.flow
		if m.previewPending() {
			m.notice = ""
			return m, m.run("preview", func(ctx context.Context) (string, error) {
				return "", flow.GeneratePreview(ctx)
			})
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" || !flow.Snapshot().InputEnabled() {
			return m, nil
		}
		m.input.Reset()
		m.notice = ""
		return m, m.run("chat", func(ctx context.Context) (string, error) {
			return "", flow.SendMessage(ctx, text)
		})

	case key.Matches(msg, keys.PageUp):
		m.chat.LineUp(m.chat.Height)
		return m, nil

	case key.Matches(msg, keys.PageDown):
		m.chat.LineDown(m.chat.Height)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// previewPending reports whether every value is in but no preview arrived,
// which happens when generation failed.
func (m fillModel) previewPending() bool {
	snap := m.flow.Snapshot()
	return snap.Phase == session.PhaseChat && snap.State == session.StateComplete && !m.flow.Busy(session.FlowPreview)
}

func (m fillModel) updatePreview(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	flow := m.flow
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Edit):
		if _, err := flow.OpenEditor(); err != nil {
			m.notice = err.Error()
		}
		m.apply(m.buf.drain())
		if m.focus < len(m.fields) {
			return m, m.fields[m.focus].Focus()
		}
		return m, nil

	case key.Matches(msg, keys.Download):
		m.notice = "Downloading..."
		dir := m.opts.DownloadDir
		return m, m.run("download", func(ctx context.Context) (string, error) {
			return flow.Download(ctx, dir)
		})

	case key.Matches(msg, keys.Copy):
		target := m.lastSaved
		if target == "" {
			target = flow.DownloadURL()
		}
		if err := clipboard.WriteAll(target); err != nil {
			m.notice = target
		} else {
			m.notice = "Copied " + target
		}
		return m, nil

	case key.Matches(msg, keys.SaveHTML):
		path := filepath.Join(m.opts.DownloadDir, previewFilename(flow.Snapshot()))
		if err := preview.Save(path, filepath.Base(path), m.previewHTML); err != nil {
			m.alerts = append(m.alerts, "Error saving preview: "+err.Error())
		} else {
			m.notice = "Saved " + path
		}
		return m, nil

	case key.Matches(msg, keys.PreviewUp):
		m.doc.LineUp(m.doc.Height / 2)
	case key.Matches(msg, keys.PreviewDn):
		m.doc.LineDown(m.doc.Height / 2)
	case key.Matches(msg, keys.PageUp):
		m.doc.LineUp(m.doc.Height)
	case key.Matches(msg, keys.PageDown):
		m.doc.LineDown(m.doc.Height)
	case key.Matches(msg, keys.Up):
		m.doc.LineUp(1)
	case key.Matches(msg, keys.Down):
		m.doc.LineDown(1)
	}
	return m, nil
}

// previewFilename is the document name with an .html extension.
func previewFilename(c session.Context) string {
	name := c.Filename
	if name == "" {
		name = "completed_" + c.SessionID + ".docx"
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".html"
}

func (m fillModel) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	var body string
	switch {
	case len(m.alerts) > 0:
		body = m.alertView()
	case m.editing:
		body = m.editorView()
	default:
		switch m.section {
		case sectionUpload:
			body = m.uploadView()
		case sectionChat:
			body = m.chatView()
		case sectionPreview:
			body = m.previewView()
		}
	}
	body = lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, m.header(), body, m.statusBar())
}

func (m fillModel) header() string {
	snap := m.flow.Snapshot()
	parts := []string{"docfill"}
	if snap.Ready() {
		parts = append(parts, "session "+snap.SessionID)
	}
	if m.busy() {
		parts = append(parts, m.spin.View()+" working")
	}
	return styleTitle.Render(strings.Join(parts, "  "))
}

func (m fillModel) uploadView() string {
	title := styleTitle.Render("Choose a .docx template (tab: type a path)")
	picker := m.picker.View()
	if m.pathFocused {
		picker = lipgloss.NewStyle().Foreground(colorDim).Render(picker)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, picker, m.pathInput.View())
}

func (m fillModel) chatView() string {
	bar := m.bar.ViewAs(m.progress.Fraction()) + " " + m.progress.String()
	panel := stylePanelBorder.Render(m.chat.View())
	input := m.input.View()
	if !m.flow.Snapshot().InputEnabled() {
		input = lipgloss.NewStyle().Foreground(colorDim).Render(input)
	}
	return lipgloss.JoinVertical(lipgloss.Left, bar, panel, input)
}

func (m fillModel) previewView() string {
	return styleActiveBorder.Render(m.doc.View())
}

func (m fillModel) alertView() string {
	box := styleModal.Render(m.alerts[0] + "\n\n" + styleTitle.Render("[Enter] OK"))
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}

func (m fillModel) statusBar() string {
	var parts []string
	switch {
	case len(m.alerts) > 0:
		parts = append(parts, "Enter dismiss")
	case m.editing:
		parts = append(parts, "tab/S-tab move", "Enter next", "C-s save", "Esc cancel")
	case m.section == sectionUpload:
		parts = append(parts, "Enter select", "tab path", "C-c quit")
	case m.section == sectionChat && m.previewPending():
		parts = append(parts, "Enter retry preview", "pgup/pgdn scroll", "Esc quit")
	case m.section == sectionChat:
		parts = append(parts, "Enter send", "pgup/pgdn scroll", "Esc quit")
	case m.section == sectionPreview:
		parts = append(parts, "e edit", "d download", "y copy", "s save html", "C-u/C-d scroll", "Esc quit")
	}
	status := styleStatusBar.Render(strings.Join(parts, " | "))
	if m.notice != "" {
		status += styleNotice.Render(m.notice)
	}
	return status
}
