package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLoggerJSONCarriesStage(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "info", "json").With("stage", "news:ai")
	l.Info("fetched", "count", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "news:ai", line["stage"])
	assert.Equal(t, "fetched", line["msg"])
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "text")
	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
