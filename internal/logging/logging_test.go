package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		lvl, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, lvl, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestSetupTextFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("info", "text", &buf))

	slog.Info("hello", "component", "test")
	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "component=test")
}

func TestSetupJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup("warn", "json", &buf))

	slog.Info("quiet")
	assert.Empty(t, buf.String(), "info must be filtered at warn level")

	slog.Warn("loud", "component", "test")
	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "loud", entry["msg"])
	assert.Equal(t, "test", entry["component"])
}

func TestSetupRejectsUnknown(t *testing.T) {
	assert.Error(t, Setup("nope", "text", nil))
	assert.Error(t, Setup("info", "xml", nil))
}
