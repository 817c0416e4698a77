package session

import (
	"errors"
	"fmt"
	"maps"

	"github.com/Zuo-Peng/docfill/internal/api"
)

var (
	// ErrNoSession is returned for any step that needs a session before
	// an upload has succeeded.
	ErrNoSession = errors.New("no session: upload a template first")
	// ErrNotAccepting is returned when an answer is sent while the chat
	// cannot take one (in flight, complete, or not in the chat phase).
	ErrNotAccepting = errors.New("chat is not accepting input")
)

// Effect is follow-up work a transition asks the caller to run.
type Effect int

const (
	EffectNone Effect = iota
	EffectGeneratePreview
)

// ApplyUpload starts a session from a successful upload. On error c is
// returned untouched.
func ApplyUpload(c Context, resp *api.UploadResponse) (Context, []Message, error) {
	if resp == nil || resp.SessionID == "" {
		return c, nil, fmt.Errorf("upload response: missing session id")
	}
	p, err := ParseProgress(resp.Progress, resp.TotalPlaceholders)
	if err != nil {
		return c, nil, err
	}

	next := New()
	next.SessionID = resp.SessionID
	next.CurrentPlaceholder = resp.CurrentPlaceholder
	next.Progress = p
	next.Phase = PhaseChat
	next.State = StateAwaitingInput
	return next, []Message{AssistantMessage(resp.FirstQuestion)}, nil
}

// BeginSend marks an answer as in flight. A retry after a validation
// failure goes back through awaiting_input.
func BeginSend(c Context) (Context, error) {
	if !c.Ready() {
		return c, ErrNoSession
	}
	if !c.InputEnabled() {
		return c, ErrNotAccepting
	}
	next := c.Clone()
	next.State = StateAdvancing
	return next, nil
}

// ApplyChat applies one chat reply:
//
//	validation_error -> validation_failed, cursor and progress unchanged
//	next_question    -> awaiting_input, cursor and progress advanced
//	complete         -> complete, preview generation requested
func ApplyChat(c Context, resp *api.ChatResponse) (Context, Effect, []Message, error) {
	if resp == nil {
		return c, EffectNone, nil, fmt.Errorf("chat response: empty")
	}

	next := c.Clone()
	switch resp.Type {
	case api.TypeValidationError:
		next.State = StateValidationFailed
		return next, EffectNone, []Message{AssistantMessage(resp.Message)}, nil

	case api.TypeNextQuestion:
		p := c.Progress
		if resp.Progress != "" {
			var err error
			if p, err = ParseProgress(resp.Progress, c.Progress.Total); err != nil {
				return c, EffectNone, nil, err
			}
		}
		next.CurrentPlaceholder = resp.CurrentPlaceholder
		next.Progress = p
		next.State = StateAwaitingInput
		return next, EffectNone, []Message{AssistantMessage(resp.Question)}, nil

	case api.TypeComplete:
		next.State = StateComplete
		return next, EffectGeneratePreview, []Message{AssistantMessage(resp.Message)}, nil

	default:
		return c, EffectNone, nil, fmt.Errorf("chat response: unknown type %q", resp.Type)
	}
}

// ApplyPreview swaps in the server's snapshot and moves to the preview.
func ApplyPreview(c Context, resp *api.GenerateResponse) Context {
	next := c.Clone()
	next.CollectedValues = maps.Clone(resp.CollectedValues)
	if next.CollectedValues == nil {
		next.CollectedValues = map[string]string{}
	}
	next.PreviewHTML = resp.PreviewHTML
	if resp.Filename != "" {
		next.Filename = resp.Filename
	}
	next.Phase = PhasePreview
	next.Editing = false
	return next
}

// ApplyUpdate commits a successful edit. The server snapshot wins; local
// is used only when the server did not return one.
func ApplyUpdate(c Context, resp *api.UpdateResponse, local map[string]string) Context {
	next := c.Clone()
	next.PreviewHTML = resp.PreviewHTML
	if resp.CollectedValues != nil {
		next.CollectedValues = maps.Clone(resp.CollectedValues)
	} else {
		next.CollectedValues = maps.Clone(local)
	}
	if next.CollectedValues == nil {
		next.CollectedValues = map[string]string{}
	}
	next.Editing = false
	return next
}
