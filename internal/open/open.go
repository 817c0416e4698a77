package open

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/Zuo-Peng/docfill/internal/history"
)

// OpenSession opens the document saved for sessionID. editor overrides the
// system opener when set.
func OpenSession(ctx context.Context, store *history.Store, sessionID, editor string) error {
	row, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if row == nil {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if row.DownloadPath == "" {
		return fmt.Errorf("session %s has no saved document; run 'docfill download %s' first", sessionID, sessionID)
	}
	return OpenFile(row.DownloadPath, editor)
}

// OpenFile opens path with editor, or with the platform's default
// application.
func OpenFile(path, editor string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}

	cmd := Command(runtime.GOOS, editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Command builds the opener for path on goos.
func Command(goos, editor, path string) *exec.Cmd {
	if editor != "" {
		switch {
		case strings.Contains(editor, "code"):
			return exec.Command(editor, "--reuse-window", path)
		case strings.Contains(editor, "soffice") || strings.Contains(editor, "libreoffice"):
			return exec.Command(editor, "--writer", path)
		default:
			return exec.Command(editor, path)
		}
	}

	switch goos {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path)
	default:
		return exec.Command("xdg-open", path)
	}
}
