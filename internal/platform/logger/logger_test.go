package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxcase/internal/platform/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.Server{Environment: "production", LogLevel: "info"})

	log.Debug("hidden")
	log.Info("revision requested", "revision_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "revision requested", entry["msg"])
	assert.Equal(t, "abc", entry["revision_id"])
	assert.Equal(t, "taxcase", entry["service"])
}

func TestDevelopmentLoggerWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.Server{Environment: "development", LogLevel: "debug"})

	log.Debug("gate evaluated")

	assert.Contains(t, buf.String(), "msg=\"gate evaluated\"")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
