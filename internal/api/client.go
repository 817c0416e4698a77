// Package api is the HTTP client for the document-generation service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks to one document-generation server. It keeps no session
// state; callers pass the session id on every call.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client (tests use the
// httptest server client).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends the template as multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	const op = "upload"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResponse
	if err := c.doJSON(ctx, op, req, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, newDecodeError(op, fmt.Errorf("missing session_id"))
	}
	return &out, nil
}

// Chat submits one answer for the current placeholder.
func (c *Client) Chat(ctx context.Context, chat ChatRequest) (*ChatResponse, error) {
	const op = "chat"

	body, err := json.Marshal(chat)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out ChatResponse
	if err := c.doJSON(ctx, op, req, &out); err != nil {
		return nil, err
	}
	switch out.Type {
	case TypeValidationError, TypeNextQuestion, TypeComplete:
		return &out, nil
	default:
		return nil, newDecodeError(op, fmt.Errorf("unknown response type %q", out.Type))
	}
}

// Generate renders the document from the collected values.
func (c *Client) Generate(ctx context.Context, sessionID string) (*GenerateResponse, error) {
	const op = "generate"

	u := c.baseURL + "/api/generate?" + url.Values{"session_id": {sessionID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var out GenerateResponse
	if err := c.doJSON(ctx, op, req, &out); err != nil {
		return nil, err
	}
	if out.CollectedValues == nil {
		out.CollectedValues = map[string]string{}
	}
	return &out, nil
}

// UpdateValues replaces placeholder values and re-renders the preview.
func (c *Client) UpdateValues(ctx context.Context, sessionID string, values map[string]string) (*UpdateResponse, error) {
	const op = "update-values"

	body, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	u := c.baseURL + "/api/update-values?" + url.Values{"session_id": {sessionID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out UpdateResponse
	if err := c.doJSON(ctx, op, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DownloadURL(sessionID string) string {
	return c.baseURL + "/api/download/" + url.PathEscape(sessionID)
}

// Download saves the generated document into dir and returns its path.
// The file name comes from the attachment header when the server sends one.
func (c *Client) Download(ctx context.Context, sessionID, dir string) (string, error) {
	const op = "download"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(sessionID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	ctx, span := startSpan(ctx, op, req)
	defer span.End()

	resp, err := c.send(req)
	if err != nil {
		apiErr := newTransportError(op, err)
		recordError(span, apiErr)
		return "", apiErr
	}
	defer resp.Body.Close()
	recordStatus(span, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := newStatusError(op, resp.StatusCode, parseDetail(respBody))
		recordError(span, apiErr)
		return "", apiErr
	}

	name := attachmentName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = "completed_" + sessionID + ".docx"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := writeFileAtomic(ctx, path, resp.Body); err != nil {
		recordError(span, err)
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

// Ping reports the status of GET on the server root. Any reply counts as
// reachable; only transport failures are errors.
func (c *Client) Ping(ctx context.Context) (int, error) {
	const op = "ping"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	_, span := startSpan(ctx, op, req)
	defer span.End()

	resp, err := c.send(req)
	if err != nil {
		apiErr := newTransportError(op, err)
		recordError(span, apiErr)
		return 0, apiErr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	recordStatus(span, resp.StatusCode)
	return resp.StatusCode, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	return c.httpClient.Do(req)
}

// doJSON executes req and decodes a 2xx JSON body into out.
func (c *Client) doJSON(ctx context.Context, op string, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	_, span := startSpan(ctx, op, req)
	defer span.End()

	resp, err := c.send(req)
	if err != nil {
		apiErr := newTransportError(op, err)
		recordError(span, apiErr)
		return apiErr
	}
	defer resp.Body.Close()
	recordStatus(span, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := newTransportError(op, fmt.Errorf("failed to read response: %w", err))
		recordError(span, apiErr)
		return apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newStatusError(op, resp.StatusCode, parseDetail(respBody))
		recordError(span, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		apiErr := newDecodeError(op, err)
		recordError(span, apiErr)
		return apiErr
	}
	return nil
}

func parseDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.text()
}

// attachmentName extracts a safe base name from a Content-Disposition header.
func attachmentName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return ""
	}
	return name
}

func writeFileAtomic(ctx context.Context, path string, r io.Reader) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".docfill-*")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_ = os.Remove(path)
	return os.Rename(tmpPath, path)
}
