package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestGetInitializesOnce(t *testing.T) {
	defaultLogger = nil
	t.Cleanup(func() { defaultLogger = nil })

	l := Get()
	require.NotNil(t, l)
	assert.Same(t, l, Get())
}

func TestJSONOutputCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("debug", "json", &buf)
	t.Cleanup(func() { defaultLogger = nil })

	ctx := ContextWithRequestID(context.Background(), "req-123")
	InfoContext(ctx, "layout computed", "nodes", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "layout computed", entry["msg"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, float64(4), entry["nodes"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", "text", &buf)
	t.Cleanup(func() { defaultLogger = nil })

	Info("hidden")
	Debug("hidden")
	assert.Empty(t, buf.String())

	Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", "text", &buf)
	t.Cleanup(func() { defaultLogger = nil })

	WithComponent("quadtree").Info("built")
	assert.Contains(t, buf.String(), "component=quadtree")
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	ctx := ContextWithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}
