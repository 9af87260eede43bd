// Package logging provides structured logging with component and trace-id
// support for the gateway.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is the structured logging interface used across the gateway.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// Context-aware variants pick up the trace id carried by the context.
	DebugContext(ctx context.Context, msg string, fields ...any)
	InfoContext(ctx context.Context, msg string, fields ...any)
	WarnContext(ctx context.Context, msg string, fields ...any)
	ErrorContext(ctx context.Context, msg string, fields ...any)

	WithComponent(component string) Logger
}

// Level represents logging levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string onto a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

type traceKey struct{}

// WithTraceID returns a context carrying the given trace id, generating one
// when empty.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID returns the trace id carried by the context, if any.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceKey{}).(string); ok {
		return id
	}
	return ""
}

type entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	TraceID   string         `json:"trace_id,omitempty"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// structuredLogger writes one JSON or text line per entry to an injected
// writer. The writer is shared between derived component loggers.
type structuredLogger struct {
	level     Level
	component string
	json      bool
	mu        *sync.Mutex
	out       io.Writer
}

// New creates a logger writing to stderr. format is "json" or "text".
func New(level Level, format string) Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a logger writing to the given writer.
func NewWithWriter(level Level, format string, out io.Writer) Logger {
	return &structuredLogger{
		level: level,
		json:  format != "text",
		mu:    &sync.Mutex{},
		out:   out,
	}
}

// WithComponent derives a logger tagging every entry with a component name.
func (l *structuredLogger) WithComponent(component string) Logger {
	derived := *l
	derived.component = component
	return &derived
}

func (l *structuredLogger) Debug(msg string, fields ...any) { l.log(LevelDebug, "DEBUG", "", msg, fields) }
func (l *structuredLogger) Info(msg string, fields ...any)  { l.log(LevelInfo, "INFO", "", msg, fields) }
func (l *structuredLogger) Warn(msg string, fields ...any)  { l.log(LevelWarn, "WARN", "", msg, fields) }
func (l *structuredLogger) Error(msg string, fields ...any) { l.log(LevelError, "ERROR", "", msg, fields) }

func (l *structuredLogger) DebugContext(ctx context.Context, msg string, fields ...any) {
	l.log(LevelDebug, "DEBUG", TraceID(ctx), msg, fields)
}

func (l *structuredLogger) InfoContext(ctx context.Context, msg string, fields ...any) {
	l.log(LevelInfo, "INFO", TraceID(ctx), msg, fields)
}

func (l *structuredLogger) WarnContext(ctx context.Context, msg string, fields ...any) {
	l.log(LevelWarn, "WARN", TraceID(ctx), msg, fields)
}

func (l *structuredLogger) ErrorContext(ctx context.Context, msg string, fields ...any) {
	l.log(LevelError, "ERROR", TraceID(ctx), msg, fields)
}

func (l *structuredLogger) log(level Level, name, traceID, msg string, fields []any) {
	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     name,
		Message:   msg,
		TraceID:   traceID,
		Component: l.component,
		Fields:    pairFields(fields),
	}

	var line string
	if l.json {
		data, err := json.Marshal(e)
		if err != nil {
			line = fmt.Sprintf(`{"level":"ERROR","message":"marshaling log entry: %v"}`, err)
		} else {
			line = string(data)
		}
	} else {
		line = formatText(e)
	}

	l.mu.Lock()
	_, _ = fmt.Fprintln(l.out, line)
	l.mu.Unlock()
}

// pairFields turns a variadic key/value list into a map, tolerating a
// trailing unpaired value.
func pairFields(fields []any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]any, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if i+1 < len(fields) {
			m[key] = fields[i+1]
		} else {
			m[key] = "(missing)"
		}
	}
	return m
}

func formatText(e entry) string {
	parts := []string{e.Timestamp, "[" + e.Level + "]"}
	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}
	if e.TraceID != "" && len(e.TraceID) >= 8 {
		parts = append(parts, "trace:"+e.TraceID[:8])
	}
	parts = append(parts, e.Message)
	for k, v := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}
