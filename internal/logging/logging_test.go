package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestSetup(t *testing.T) {
	t.Cleanup(func() { _ = Close() })

	t.Run("text to stdout", func(t *testing.T) {
		assert.NoError(t, Setup(Config{Level: "debug", Format: "text", Output: "stdout"}))
	})

	t.Run("json to stderr", func(t *testing.T) {
		assert.NoError(t, Setup(Config{Level: "warn", Format: "json", Output: "stderr"}))
	})

	t.Run("file output with nested dir", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "nested", "radiogate.log")
		require.NoError(t, Setup(Config{Level: "info", Format: "text", Output: path}))

		Info("hello file")
		require.NoError(t, Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello file")
	})

	t.Run("invalid level", func(t *testing.T) {
		err := Setup(Config{Level: "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown log level")
	})

	t.Run("invalid format", func(t *testing.T) {
		err := Setup(Config{Format: "xml"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown log format")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		hasError bool
	}{
		{"trace", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestTraceAndPacket(t *testing.T) {
	var buf bytes.Buffer
	handler, err := NewHandler(&buf, Config{Level: "trace", Format: "text"})
	require.NoError(t, err)
	logger := slog.New(handler)

	Trace(logger, "packet", Packet([]byte{0x45, 0x00, 0xbe, 0xef}))

	out := buf.String()
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "data=4500beef")
}

func TestTraceFilteredAtDebug(t *testing.T) {
	var buf bytes.Buffer
	handler, err := NewHandler(&buf, Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	logger := slog.New(handler)

	Trace(logger, "packet", Packet([]byte{1}))
	assert.Empty(t, buf.String())

	logger.Debug("visible")
	assert.Contains(t, buf.String(), `"msg":"visible"`)
}

func TestWithComponent(t *testing.T) {
	assert.NotNil(t, WithComponent("gateway"))
}

func TestContextLogger(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, Default(), FromContext(ctx))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx = WithContext(ctx, logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Level: "TRACE", Format: "JSON"}.Validate())
	assert.Error(t, Config{Level: "loud"}.Validate())
	assert.Error(t, Config{Level: "info", Format: "xml"}.Validate())
}
