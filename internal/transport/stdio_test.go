package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/notify"
	"mcp-memory-gateway/internal/protocol"
	"mcp-memory-gateway/internal/session"
)

// echoDispatcher answers every request with its method name.
type echoDispatcher struct{}

func (echoDispatcher) Dispatch(_ context.Context, _ string, req *protocol.Request) *protocol.Response {
	return protocol.NewResponse(req.ID, map[string]any{"method": req.Method})
}

// syncBuffer makes bytes.Buffer safe for the notification drain goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runStdio(t *testing.T, input string) []map[string]any {
	t.Helper()

	registry := session.NewRegistry()
	out := &syncBuffer{}
	srv := NewStdioServer(strings.NewReader(input), out, registry, echoDispatcher{}, logging.NoOp())

	require.NoError(t, srv.Run(context.Background()))

	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
		lines = append(lines, decoded)
	}
	return lines
}

func TestStdioRoundTrip(t *testing.T) {
	out := runStdio(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n")

	require.Len(t, out, 1)
	assert.Equal(t, float64(1), out[0]["id"])
	result := out[0]["result"].(map[string]any)
	assert.Equal(t, "ping", result["method"])
}

func TestStdioParseErrorContinues(t *testing.T) {
	input := "{not json}\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n"
	out := runStdio(t, input)

	require.Len(t, out, 2)
	errObj := out[0]["error"].(map[string]any)
	assert.Equal(t, float64(protocol.ParseError), errObj["code"])
	assert.Nil(t, out[0]["id"])
	assert.Equal(t, float64(2), out[1]["id"])
}

func TestStdioNotificationsUnanswered(t *testing.T) {
	input := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","method":"initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":3,"method":"ping"}` + "\n"
	out := runStdio(t, input)

	// Only the id-carrying request produced output.
	require.Len(t, out, 1)
	assert.Equal(t, float64(3), out[0]["id"])
}

func TestStdioBlankLinesSkipped(t *testing.T) {
	out := runStdio(t, "\n  \n"+`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n")
	require.Len(t, out, 1)
}

func TestStdioSessionClosedAfterEOF(t *testing.T) {
	registry := session.NewRegistry()
	srv := NewStdioServer(strings.NewReader(""), io.Discard, registry, echoDispatcher{}, logging.NoOp())

	require.NoError(t, srv.Run(context.Background()))
	assert.Equal(t, 0, registry.Len())
}

func TestStdioDeliversQueuedNotifications(t *testing.T) {
	registry := session.NewRegistry()
	pump := notify.NewPump(registry, logging.NoOp())
	out := &syncBuffer{}

	pr, pw := io.Pipe()
	srv := NewStdioServer(pr, out, registry, echoDispatcher{}, logging.NoOp())

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	// Wait for the implicit session to exist, then publish to it.
	var sessionID string
	require.Eventually(t, func() bool {
		sessions := registry.List()
		if len(sessions) == 0 {
			return false
		}
		sessionID = sessions[0].ID
		return true
	}, time.Second, 5*time.Millisecond)

	pump.Publish(sessionID, notify.MethodMemoryCreated, map[string]any{"memory_id": "m1"})

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), notify.MethodMemoryCreated)
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, pw.Close())
	require.NoError(t, <-done)
}
