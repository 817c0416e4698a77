package open

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/docfill/internal/history"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos, editor string
		want         []string
	}{
		{"linux", "", []string{"xdg-open", "a.docx"}},
		{"darwin", "", []string{"open", "a.docx"}},
		{"windows", "", []string{"cmd", "/c", "start", "", "a.docx"}},
		{"linux", "libreoffice", []string{"libreoffice", "--writer", "a.docx"}},
		{"linux", "code", []string{"code", "--reuse-window", "a.docx"}},
		{"linux", "vim", []string{"vim", "a.docx"}},
	}
	for _, tt := range tests {
		cmd := Command(tt.goos, tt.editor, "a.docx")
		assert.Equal(t, tt.want, cmd.Args, tt.goos+"/"+tt.editor)
	}
}

func TestOpenSessionErrors(t *testing.T) {
	ctx := context.Background()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	err = OpenSession(ctx, store, "missing", "")
	assert.EqualError(t, err, "session not found: missing")

	require.NoError(t, store.StartSession(ctx, "s1", "nda.docx", "http://localhost:8000"))
	err = OpenSession(ctx, store, "s1", "")
	assert.ErrorContains(t, err, "no saved document")

	require.NoError(t, store.MarkDownloaded(ctx, "s1", filepath.Join(t.TempDir(), "gone.docx")))
	err = OpenSession(ctx, store, "s1", "")
	assert.ErrorContains(t, err, "file not found")
}
