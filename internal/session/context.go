// Package session holds the client-side session context and the pure
// transitions that move it through upload, chat, preview and edit.
package session

import "maps"

type Phase int

const (
	PhaseUpload Phase = iota
	PhaseChat
	PhasePreview
)

func (p Phase) String() string {
	switch p {
	case PhaseUpload:
		return "upload"
	case PhaseChat:
		return "chat"
	case PhasePreview:
		return "preview"
	default:
		return "unknown"
	}
}

type ChatState string

const (
	StateAwaitingInput    ChatState = "awaiting_input"
	StateValidationFailed ChatState = "validation_failed"
	// StateAdvancing means an answer is in flight.
	StateAdvancing ChatState = "advancing"
	StateComplete  ChatState = "complete"
)

// Context is everything the client knows about the server-side session.
// The zero value is not usable; start from New.
type Context struct {
	SessionID          string
	CurrentPlaceholder string
	// CollectedValues is a cache of the server's authoritative values. It is
	// replaced wholesale, never merged.
	CollectedValues map[string]string
	Progress        Progress
	Phase           Phase
	State           ChatState
	Editing         bool
	PreviewHTML     string
	Filename        string
}

func New() Context {
	return Context{
		Phase:           PhaseUpload,
		CollectedValues: map[string]string{},
	}
}

// Ready reports whether an upload has succeeded.
func (c Context) Ready() bool {
	return c.SessionID != ""
}

// InputEnabled reports whether the chat input accepts a new answer.
func (c Context) InputEnabled() bool {
	if !c.Ready() || c.Phase != PhaseChat {
		return false
	}
	return c.State == StateAwaitingInput || c.State == StateValidationFailed
}

// Clone returns a copy that shares no mutable state with c.
func (c Context) Clone() Context {
	out := c
	out.CollectedValues = maps.Clone(c.CollectedValues)
	if out.CollectedValues == nil {
		out.CollectedValues = map[string]string{}
	}
	return out
}
