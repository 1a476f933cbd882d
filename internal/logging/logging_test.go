package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForService(t *testing.T) {
	Init(false)

	logger := ForService("api")
	require.NotNil(t, logger)

	// debug suppressed at the default level
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))

	Init(true)
	assert.True(t, Structured().Enabled(context.Background(), slog.LevelDebug))
}

func TestForServiceBeforeInit(t *testing.T) {
	saved := structuredLogger
	structuredLogger = nil
	t.Cleanup(func() { structuredLogger = saved })

	assert.Nil(t, Structured())
	assert.Nil(t, ForService("api"))
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "svc.log")

	logger, closeFunc, err := NewFileLogger(path, "svc", slog.LevelInfo)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFunc() })

	logger.Info("hello", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "svc", entry["service"])
	assert.Equal(t, "value", entry["key"])
}
