package tui

import (
	"sync"

	"github.com/Zuo-Peng/docfill/internal/session"
)

type eventKind int

const (
	evMessage eventKind = iota
	evProgress
	evPhase
	evPreview
	evOpenEditor
	evCloseEditor
	evAlert
	evNotify
)

type event struct {
	kind     eventKind
	message  session.Message
	progress session.Progress
	phase    session.Phase
	text     string
	form     session.EditForm
}

// eventBuffer is the workflow.View the TUI hands to the flow. Flow calls
// run inside tea.Cmds, so events are queued and applied to the model on
// the update loop.
type eventBuffer struct {
	mu     sync.Mutex
	events []event
}

func (b *eventBuffer) push(e event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *eventBuffer) drain() []event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

func (b *eventBuffer) Message(m session.Message) {
	b.push(event{kind: evMessage, message: m})
}

func (b *eventBuffer) Progress(p session.Progress) {
	b.push(event{kind: evProgress, progress: p})
}

func (b *eventBuffer) Phase(p session.Phase) {
	b.push(event{kind: evPhase, phase: p})
}

func (b *eventBuffer) Preview(html string) {
	b.push(event{kind: evPreview, text: html})
}

func (b *eventBuffer) OpenEditor(form session.EditForm) {
	b.push(event{kind: evOpenEditor, form: form})
}

func (b *eventBuffer) CloseEditor() {
	b.push(event{kind: evCloseEditor})
}

func (b *eventBuffer) Alert(text string) {
	b.push(event{kind: evAlert, text: text})
}

func (b *eventBuffer) Notify(text string) {
	b.push(event{kind: evNotify, text: text})
}
