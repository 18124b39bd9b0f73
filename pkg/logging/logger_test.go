package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARN", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewLogger_RejectsUnknownFormat(t *testing.T) {
	_, err := NewLogger(Options{Format: "xml"})
	require.Error(t, err)
}

func TestFileLogger_WritesComponentTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redismux.log")

	logger, err := NewLogger(Options{Level: "info", OutputFile: path, EnableColors: true})
	require.NoError(t, err)

	logger.ComponentInfo(ComponentMux, "subscriber created", zap.String("id", "abc"))
	logger.ComponentDebug(ComponentMux, "filtered out by level")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "[MUX] subscriber created")
	assert.Contains(t, out, "abc")
	assert.NotContains(t, out, "filtered out by level")
	// colours are disabled for files
	assert.False(t, strings.Contains(out, "\033["))
}

func TestJSONLogger_For(t *testing.T) {
	path := filepath.Join(t.TempDir(), "json.log")

	logger, err := NewLogger(Options{Level: "debug", Format: "json", OutputFile: path})
	require.NoError(t, err)

	logger.For(ComponentReader).Warn("transient read failure")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"READER"`)
	assert.Contains(t, string(data), `"msg":"transient read failure"`)
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.ComponentError(ComponentStore, "ignored")
	assert.NotNil(t, logger.For(ComponentStore))
}
