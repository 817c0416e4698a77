package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsCarryModuleAndError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))

	l.Error("chat", "send failed", map[string]interface{}{
		"error":      errors.New("connection refused"),
		"session_id": "s1",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "chat", ctx["module"])
	assert.Equal(t, "connection refused", ctx["error"])
	assert.Equal(t, map[string]interface{}{"session_id": "s1"}, ctx["details"])
}

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docfill.log")
	l := New(path, "debug")
	l.Info("upload", "session created", map[string]interface{}{"session_id": "abc"})
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"message":"session created"`), line)
	assert.True(t, strings.Contains(line, `"module":"upload"`), line)
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Warn("x", "ignored", nil)
	assert.NoError(t, l.Sync())
}
