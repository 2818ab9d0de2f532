package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jjenkins/readiness/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromString("debug"))
	assert.Equal(t, slog.LevelWarn, LevelFromString("warn"))
	assert.Equal(t, slog.LevelError, LevelFromString("error"))
	assert.Equal(t, slog.LevelInfo, LevelFromString("info"))
	assert.Equal(t, slog.LevelInfo, LevelFromString("verbose"))
}

func TestLoggerWritesJSONToStdoutAndFile(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "readiness.log")
	logger := newLogger(config.LogConfig{Level: "warn", File: path, MaxSize: 1}, &out)

	logger.Info("dropped")
	logger.Warn("kept", "response_id", "r1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "r1", entry["response_id"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.NotContains(t, string(data), "dropped")
}
