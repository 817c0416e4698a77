package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", time.Second, WithHTTPClient(server.Client()))
}

func TestClientUpload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Fatalf("missing X-Request-ID header")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file field: %v", err)
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "nda.docx" || string(data) != "template bytes" {
			t.Fatalf("unexpected upload: %s %q", header.Filename, data)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"session_id":"s1","current_placeholder":"full_name","first_question":"What is your name?","progress":"1/5","total_placeholders":5}`)
	})

	resp, err := client.Upload(context.Background(), "/tmp/templates/nda.docx", strings.NewReader("template bytes"))
	require.NoError(t, err)
	assert.Equal(t, &UploadResponse{
		SessionID:          "s1",
		CurrentPlaceholder: "full_name",
		FirstQuestion:      "What is your name?",
		Progress:           "1/5",
		TotalPlaceholders:  5,
	}, resp)
}

func TestClientUploadStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"detail":"Only .docx files are supported"}`)
	})

	_, err := client.Upload(context.Background(), "notes.txt", strings.NewReader("x"))
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindStatus, apiErr.Kind)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Only .docx files are supported", Detail(err))
	assert.True(t, HasDetail(err))
}

func TestClientUploadMissingSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"first_question":"?"}`)
	})

	_, err := client.Upload(context.Background(), "a.docx", strings.NewReader("x"))
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindDecode, apiErr.Kind)
}

func TestClientChatVariants(t *testing.T) {
	replies := []string{
		`{"type":"validation_error","message":"Please enter a valid date","current_placeholder":"p1","progress":"1/5"}`,
		`{"type":"next_question","current_placeholder":"p2","question":"Q2?","progress":"2/5"}`,
		`{"type":"complete","message":"Done","total_collected":5}`,
	}
	var got []ChatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		got = append(got, req)
		fmt.Fprint(w, replies[len(got)-1])
	})

	ctx := context.Background()
	r1, err := client.Chat(ctx, ChatRequest{SessionID: "s1", Message: "yesterday", Placeholder: "p1"})
	require.NoError(t, err)
	assert.Equal(t, TypeValidationError, r1.Type)
	assert.Equal(t, "Please enter a valid date", r1.Message)

	r2, err := client.Chat(ctx, ChatRequest{SessionID: "s1", Message: "2024-01-01", Placeholder: "p1"})
	require.NoError(t, err)
	assert.Equal(t, &ChatResponse{Type: TypeNextQuestion, CurrentPlaceholder: "p2", Question: "Q2?", Progress: "2/5"}, r2)

	r3, err := client.Chat(ctx, ChatRequest{SessionID: "s1", Message: "Acme", Placeholder: "p2"})
	require.NoError(t, err)
	assert.Equal(t, TypeComplete, r3.Type)
	assert.Equal(t, 5, r3.TotalCollected)

	want := []ChatRequest{
		{SessionID: "s1", Message: "yesterday", Placeholder: "p1"},
		{SessionID: "s1", Message: "2024-01-01", Placeholder: "p1"},
		{SessionID: "s1", Message: "Acme", Placeholder: "p2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chat requests mismatch (-want +got):\n%s", diff)
	}
}

func TestClientChatUnknownType(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"type":"surprise"}`)
	})

	_, err := client.Chat(context.Background(), ChatRequest{SessionID: "s1", Message: "x"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindDecode, apiErr.Kind)
}

func TestClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second)
	_, err := client.Chat(context.Background(), ChatRequest{SessionID: "s1", Message: "x"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.False(t, HasDetail(err))
}

func TestClientGenerate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.URL.Query().Get("session_id") != "s 1" {
			t.Fatalf("unexpected url: %s", r.URL.String())
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		fmt.Fprint(w, `{"collected_values":{"city":"NYC"},"preview_html":"<p>NYC</p>","filename":"completed_nda.docx"}`)
	})

	resp, err := client.Generate(context.Background(), "s 1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"city": "NYC"}, resp.CollectedValues)
	assert.Equal(t, "<p>NYC</p>", resp.PreviewHTML)
	assert.Equal(t, "completed_nda.docx", resp.Filename)
}

func TestClientUpdateValues(t *testing.T) {
	var body map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/update-values" || r.URL.Query().Get("session_id") != "s1" {
			t.Fatalf("unexpected url: %s", r.URL.String())
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		fmt.Fprint(w, `{"preview_html":"<p>LA</p>"}`)
	})

	resp, err := client.UpdateValues(context.Background(), "s1", map[string]string{"city": "LA"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"city": "LA"}, body)
	assert.Equal(t, "<p>LA</p>", resp.PreviewHTML)
	assert.Nil(t, resp.CollectedValues)
}

func TestClientUpdateValuesValidationDetailList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"detail":[{"loc":["query","session_id"],"msg":"field required"}]}`)
	})

	_, err := client.UpdateValues(context.Background(), "", map[string]string{})
	require.Error(t, err)
	assert.Equal(t, "field required", Detail(err))
}

func TestClientStatusWithoutDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "bad gateway")
	})

	_, err := client.Generate(context.Background(), "s1")
	require.Error(t, err)
	assert.False(t, HasDetail(err))
	assert.Equal(t, "generate: status 502", err.Error())
}

func TestClientDownload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/download/s1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="completed_nda.docx"`)
		fmt.Fprint(w, "docx bytes")
	})

	dir := t.TempDir()
	path, err := client.Download(context.Background(), "s1", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "completed_nda.docx"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "docx bytes", string(data))
}

func TestClientDownloadNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"Generated document not found"}`)
	})

	dir := t.TempDir()
	_, err := client.Download(context.Background(), "s1", dir)
	require.Error(t, err)
	assert.Equal(t, "Generated document not found", Detail(err))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestAttachmentName(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`attachment; filename="completed_nda.docx"`, "completed_nda.docx"},
		{`attachment; filename="../../etc/passwd"`, "passwd"},
		{`attachment`, ""},
		{``, ""},
		{`;;`, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, attachmentName(tt.header), tt.header)
	}
}

func TestDownloadURLEscapes(t *testing.T) {
	client := NewClient("http://example.test/", time.Second)
	assert.Equal(t, "http://example.test/api/download/a%2Fb", client.DownloadURL("a/b"))
}

func TestClientPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	})

	status, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	down := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	_, err = down.Ping(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindTransport, apiErr.Kind)
}
