// Package workflow drives one document session against the server: upload,
// chat, preview, edit and download. State changes go through the pure
// transitions in package session; rendering goes through View.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/Zuo-Peng/docfill/internal/api"
	"github.com/Zuo-Peng/docfill/internal/logger"
	"github.com/Zuo-Peng/docfill/internal/session"
)

var (
	ErrNotReady = session.ErrNoSession
	ErrBusy     = session.ErrBusy
	// ErrStale is returned when a response arrived for a request that was
	// superseded; it has been discarded.
	ErrStale = errors.New("response superseded")
)

// API is the server contract. *api.Client implements it.
type API interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*api.UploadResponse, error)
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	Generate(ctx context.Context, sessionID string) (*api.GenerateResponse, error)
	UpdateValues(ctx context.Context, sessionID string, values map[string]string) (*api.UpdateResponse, error)
	Download(ctx context.Context, sessionID, dir string) (string, error)
	DownloadURL(sessionID string) string
}

// View renders state changes. Alert is blocking in spirit: the user has to
// acknowledge it. Chat failures never use Alert; they arrive as Message.
type View interface {
	Message(m session.Message)
	Progress(p session.Progress)
	Phase(p session.Phase)
	Preview(html string)
	OpenEditor(form session.EditForm)
	CloseEditor()
	Alert(text string)
	Notify(text string)
}

// Recorder keeps a local copy of the session. Failures are logged and
// otherwise ignored.
type Recorder interface {
	StartSession(ctx context.Context, sessionID, filename, serverURL string) error
	AppendMessage(ctx context.Context, sessionID string, m session.Message) error
	SaveProgress(ctx context.Context, sessionID string, p session.Progress, phase session.Phase) error
	SaveValues(ctx context.Context, sessionID string, values map[string]string) error
	MarkDownloaded(ctx context.Context, sessionID, path string) error
}

type Options struct {
	Recorder  Recorder
	Logger    *logger.Logger
	ServerURL string
}

type Flow struct {
	api       API
	view      View
	rec       Recorder
	log       *logger.Logger
	guard     *session.Guard
	serverURL string

	mu         sync.Mutex
	state      session.Context
	transcript []session.Message
}

func New(client API, view View, opts Options) *Flow {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Flow{
		api:       client,
		view:      view,
		rec:       opts.Recorder,
		log:       log,
		guard:     session.NewGuard(),
		serverURL: opts.ServerURL,
		state:     session.New(),
	}
}

// Snapshot returns a copy of the current session context.
func (f *Flow) Snapshot() session.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

// Transcript returns the messages rendered so far, oldest first.
func (f *Flow) Transcript() []session.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.Message, len(f.transcript))
	copy(out, f.transcript)
	return out
}

// Busy reports whether flow has a request in flight.
func (f *Flow) Busy(flow session.FlowKind) bool {
	return f.guard.Busy(flow)
}

const analyzingText = "Analyzing document..."

// Upload sends the template at path and starts a session. On failure the
// previous state is kept and the server's detail is alerted.
func (f *Flow) Upload(ctx context.Context, path string) error {
	t, err := f.guard.Begin(session.FlowUpload)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		f.guard.End(t)
		f.view.Alert("Error: " + err.Error())
		return fmt.Errorf("open template: %w", err)
	}
	defer file.Close()

	resp, err := f.api.Upload(ctx, path, file)
	if !f.guard.End(t) {
		return ErrStale
	}
	if err != nil {
		f.log.Warn("upload", "upload failed", map[string]interface{}{"error": err, "path": path})
		f.view.Alert("Error: " + api.Detail(err))
		return err
	}

	f.mu.Lock()
	next, msgs, err := session.ApplyUpload(f.state, resp)
	if err != nil {
		f.mu.Unlock()
		f.log.Warn("upload", "bad upload response", map[string]interface{}{"error": err})
		f.view.Alert("Error: " + err.Error())
		return err
	}
	if f.state.Ready() {
		// a new template replaces the old session outright
		f.guard.Reset()
	}
	f.state = next
	f.transcript = nil
	f.mu.Unlock()

	f.log.Info("upload", "session started", map[string]interface{}{
		"session_id": next.SessionID, "placeholder": next.CurrentPlaceholder, "progress": next.Progress.String(),
	})
	f.record(func(r Recorder) error {
		return r.StartSession(ctx, next.SessionID, path, f.serverURL)
	})
	f.view.Phase(session.PhaseChat)
	f.emit(ctx, next.SessionID, session.AssistantMessage(analyzingText))
	f.emit(ctx, next.SessionID, msgs...)
	f.setProgress(ctx, next)
	return nil
}

// SendMessage answers the current placeholder. Empty input is ignored.
// Transport and server failures are rendered inline as assistant messages.
func (f *Flow) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	t, err := f.guard.Begin(session.FlowChat)
	if err != nil {
		return err
	}

	f.mu.Lock()
	prev := f.state.State
	inFlight, err := session.BeginSend(f.state)
	if err != nil {
		f.mu.Unlock()
		f.guard.End(t)
		return err
	}
	f.state = inFlight
	req := api.ChatRequest{
		SessionID:   inFlight.SessionID,
		Message:     text,
		Placeholder: inFlight.CurrentPlaceholder,
	}
	f.mu.Unlock()

	f.emit(ctx, req.SessionID, session.UserMessage(text))

	resp, err := f.api.Chat(ctx, req)
	if !f.guard.End(t) {
		return ErrStale
	}
	if err != nil {
		f.restoreChatState(prev)
		f.log.Warn("chat", "chat request failed", map[string]interface{}{"error": err, "placeholder": req.Placeholder})
		f.emit(ctx, req.SessionID, session.AssistantMessage("Error: "+api.Detail(err)))
		return err
	}

	f.mu.Lock()
	next, effect, msgs, err := session.ApplyChat(f.state, resp)
	if err != nil {
		f.state.State = prev
		f.mu.Unlock()
		f.log.Warn("chat", "bad chat response", map[string]interface{}{"error": err, "type": resp.Type})
		f.emit(ctx, req.SessionID, session.AssistantMessage("Error: "+err.Error()))
		return err
	}
	advanced := next.CurrentPlaceholder != req.Placeholder || next.Progress != inFlight.Progress
	f.state = next
	f.mu.Unlock()

	f.log.Debug("chat", "chat reply", map[string]interface{}{
		"type": resp.Type, "placeholder": next.CurrentPlaceholder, "state": string(next.State),
	})
	f.emit(ctx, req.SessionID, msgs...)
	if advanced {
		f.setProgress(ctx, next)
	}

	if effect == session.EffectGeneratePreview {
		return f.GeneratePreview(ctx)
	}
	return nil
}

func (f *Flow) restoreChatState(prev session.ChatState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.State == session.StateAdvancing {
		f.state.State = prev
	}
}

// GeneratePreview asks the server to render the document and switches to
// the preview. Failures are alerted.
func (f *Flow) GeneratePreview(ctx context.Context) error {
	cur := f.Snapshot()
	if !cur.Ready() {
		return ErrNotReady
	}
	t, err := f.guard.Begin(session.FlowPreview)
	if err != nil {
		return err
	}

	f.emit(ctx, cur.SessionID, session.AssistantMessage("Generating your document preview..."))

	resp, err := f.api.Generate(ctx, cur.SessionID)
	if !f.guard.End(t) {
		return ErrStale
	}
	if err != nil {
		f.log.Warn("preview", "generate failed", map[string]interface{}{"error": err, "session_id": cur.SessionID})
		f.view.Alert("Error generating document: " + api.Detail(err))
		return err
	}

	f.mu.Lock()
	f.state = session.ApplyPreview(f.state, resp)
	next := f.state.Clone()
	f.mu.Unlock()

	f.log.Info("preview", "preview generated", map[string]interface{}{
		"session_id": next.SessionID, "values": len(next.CollectedValues),
	})
	f.record(func(r Recorder) error {
		return r.SaveValues(ctx, next.SessionID, next.CollectedValues)
	})
	f.record(func(r Recorder) error {
		return r.SaveProgress(ctx, next.SessionID, next.Progress, next.Phase)
	})
	f.view.Phase(session.PhasePreview)
	f.view.Preview(next.PreviewHTML)
	return nil
}

// OpenEditor builds the edit form from the current values.
func (f *Flow) OpenEditor() (session.EditForm, error) {
	f.mu.Lock()
	if f.state.Phase != session.PhasePreview {
		f.mu.Unlock()
		return session.EditForm{}, fmt.Errorf("nothing to edit before the preview")
	}
	f.state.Editing = true
	form := session.NewEditForm(f.state.CollectedValues)
	f.mu.Unlock()

	f.view.OpenEditor(form)
	return form, nil
}

func (f *Flow) CloseEditor() {
	f.mu.Lock()
	f.state.Editing = false
	f.mu.Unlock()
	f.view.CloseEditor()
}

// SaveEdits submits the form. Values are trimmed and keyed by the original
// placeholder names. Nothing local changes unless the server accepts them.
func (f *Flow) SaveEdits(ctx context.Context, form session.EditForm) error {
	cur := f.Snapshot()
	if !cur.Ready() {
		return ErrNotReady
	}
	t, err := f.guard.Begin(session.FlowEdit)
	if err != nil {
		return err
	}

	values := form.Values()
	f.log.Debug("edit", "sending updated values", map[string]interface{}{"session_id": cur.SessionID, "values": values})

	resp, err := f.api.UpdateValues(ctx, cur.SessionID, values)
	if !f.guard.End(t) {
		return ErrStale
	}
	if err != nil {
		f.log.Warn("edit", "update failed", map[string]interface{}{"error": err, "session_id": cur.SessionID})
		f.view.Alert("Error updating document: " + updateFailure(err))
		return err
	}

	f.mu.Lock()
	f.state = session.ApplyUpdate(f.state, resp, values)
	next := f.state.Clone()
	f.mu.Unlock()

	f.record(func(r Recorder) error {
		return r.SaveValues(ctx, next.SessionID, next.CollectedValues)
	})
	f.view.Preview(next.PreviewHTML)
	f.view.CloseEditor()
	f.view.Notify("Document updated successfully!")
	return nil
}

// updateFailure is the server detail, or a generic message when a non-2xx
// reply carried none.
func updateFailure(err error) string {
	if api.HasDetail(err) {
		return api.Detail(err)
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind == api.KindStatus {
		return "Update failed"
	}
	return api.Detail(err)
}

// Download saves the final document into dir.
func (f *Flow) Download(ctx context.Context, dir string) (string, error) {
	cur := f.Snapshot()
	if !cur.Ready() {
		return "", ErrNotReady
	}
	t, err := f.guard.Begin(session.FlowDownload)
	if err != nil {
		return "", err
	}

	path, err := f.api.Download(ctx, cur.SessionID, dir)
	if !f.guard.End(t) {
		return "", ErrStale
	}
	if err != nil {
		f.log.Warn("download", "download failed", map[string]interface{}{"error": err, "session_id": cur.SessionID})
		f.view.Alert("Error downloading document: " + api.Detail(err))
		return "", err
	}

	f.log.Info("download", "document saved", map[string]interface{}{"session_id": cur.SessionID, "path": path})
	f.record(func(r Recorder) error {
		return r.MarkDownloaded(ctx, cur.SessionID, path)
	})
	f.view.Notify("Saved " + path)
	return path, nil
}

// DownloadURL is the server URL of the final document, or "" before upload.
func (f *Flow) DownloadURL() string {
	cur := f.Snapshot()
	if !cur.Ready() {
		return ""
	}
	return f.api.DownloadURL(cur.SessionID)
}

func (f *Flow) emit(ctx context.Context, sessionID string, msgs ...session.Message) {
	for _, m := range msgs {
		f.mu.Lock()
		f.transcript = append(f.transcript, m)
		f.mu.Unlock()

		f.view.Message(m)
		f.record(func(r Recorder) error {
			return r.AppendMessage(ctx, sessionID, m)
		})
	}
}

func (f *Flow) setProgress(ctx context.Context, c session.Context) {
	f.view.Progress(c.Progress)
	f.record(func(r Recorder) error {
		return r.SaveProgress(ctx, c.SessionID, c.Progress, c.Phase)
	})
}

func (f *Flow) record(fn func(Recorder) error) {
	if f.rec == nil {
		return
	}
	if err := fn(f.rec); err != nil {
		f.log.Warn("history", "record failed", map[string]interface{}{"error": err})
	}
}
