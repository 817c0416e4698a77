package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DOCFILL_SERVER", "")
	t.Setenv("DOCFILL_TIMEOUT", "")
	t.Setenv("DOCFILL_DOWNLOAD_DIR", "")

	cfg, err := LoadFrom(filepath.Join(home, "missing.toml"), home)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, filepath.Join(home, ".config", "docfill", "history.db"), cfg.HistoryPath)
	assert.True(t, cfg.RecordHistory)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	home := t.TempDir()
	cfgPath := filepath.Join(home, "config.toml")
	content := `
server_url = "http://docs.internal:9000"
timeout = "45s"
history_path = "~/state/history.db"
record_history = false
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	t.Setenv("DOCFILL_SERVER", "")
	t.Setenv("DOCFILL_TIMEOUT", "")
	t.Setenv("DOCFILL_DOWNLOAD_DIR", "~/Downloads")

	cfg, err := LoadFrom(cfgPath, home)
	require.NoError(t, err)

	assert.Equal(t, "http://docs.internal:9000", cfg.ServerURL)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.Equal(t, filepath.Join(home, "state", "history.db"), cfg.HistoryPath)
	assert.Equal(t, filepath.Join(home, "Downloads"), cfg.DownloadDir)
	assert.False(t, cfg.RecordHistory)

	t.Setenv("DOCFILL_SERVER", "http://override:1")
	cfg, err = LoadFrom(cfgPath, home)
	require.NoError(t, err)
	assert.Equal(t, "http://override:1", cfg.ServerURL)
}

func TestLoadFromBadTimeout(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DOCFILL_SERVER", "")
	t.Setenv("DOCFILL_DOWNLOAD_DIR", "")
	t.Setenv("DOCFILL_TIMEOUT", "soon")

	_, err := LoadFrom(filepath.Join(home, "missing.toml"), home)
	assert.Error(t, err)
}
