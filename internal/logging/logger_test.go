package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{input: "debug", want: LevelDebug},
		{input: "INFO", want: LevelInfo},
		{input: "warn", want: LevelWarn},
		{input: "warning", want: LevelWarn},
		{input: "error", want: LevelError},
		{input: "nonsense", want: LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestJSONEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelDebug, "json", &buf).WithComponent("router")

	logger.Info("request handled", "method", "ping", "status", 200)

	var e map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "request handled", e["message"])
	assert.Equal(t, "router", e["component"])
	fields := e["fields"].(map[string]any)
	assert.Equal(t, "ping", fields["method"])
	assert.Equal(t, float64(200), fields["status"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelWarn, "json", &buf)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "visible")
}

func TestTraceIDPropagation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelDebug, "json", &buf)

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.InfoContext(ctx, "with trace")

	var e map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "trace-123", e["trace_id"])
}

func TestWithTraceIDGenerates(t *testing.T) {
	ctx := WithTraceID(context.Background(), "")
	assert.NotEmpty(t, TraceID(ctx))
	assert.Empty(t, TraceID(context.Background()))
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(LevelInfo, "text", &buf).WithComponent("sse")

	logger.Info("stream opened", "session_id", "s1")

	line := buf.String()
	assert.Contains(t, line, "[INFO]")
	assert.Contains(t, line, "component:sse")
	assert.Contains(t, line, "session_id=s1")
}

func TestComponentDerivationIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(LevelInfo, "json", &buf)
	derived := base.WithComponent("notify")

	base.Info("from base")
	derived.Info("from derived")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "notify")
	assert.Contains(t, lines[1], "notify")
}
