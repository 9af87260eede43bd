package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/protocol"
	"mcp-memory-gateway/internal/session"
)

type recordingBroadcaster struct {
	methods []string
}

func (r *recordingBroadcaster) Broadcast(method string, _ any) {
	r.methods = append(r.methods, method)
}

func TestPublishEnqueuesInFIFOOrder(t *testing.T) {
	registry := session.NewRegistry()
	registry.Create("s1")
	pump := NewPump(registry, logging.NoOp())

	pump.Publish("s1", MethodMemoryCreated, map[string]any{"memory_id": "m1"})
	pump.Publish("s1", MethodMemoryCreated, map[string]any{"memory_id": "m2"})

	q, ok := registry.Queue("s1")
	require.True(t, ok)

	for _, wantID := range []string{"m1", "m2"} {
		msg, res := q.Next(context.Background(), time.Second)
		require.Equal(t, session.NextItem, res)
		notification, ok := msg.(*protocol.Notification)
		require.True(t, ok)
		assert.Equal(t, MethodMemoryCreated, notification.Method)
		params, ok := notification.Params.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, wantID, params["memory_id"])
	}
}

func TestPublishToMissingSessionIsNoOp(t *testing.T) {
	registry := session.NewRegistry()
	pump := NewPump(registry, logging.NoOp())

	// Must not panic or block.
	pump.Publish("ghost", MethodMemoryCreated, nil)
}

func TestPublishMirrorsToBroadcaster(t *testing.T) {
	registry := session.NewRegistry()
	registry.Create("s1")
	pump := NewPump(registry, logging.NoOp())

	b := &recordingBroadcaster{}
	pump.AttachBroadcaster(b)

	pump.Publish("s1", MethodMemoryCreated, nil)
	pump.Publish("ghost", MethodSessionDisconnected, nil)

	assert.Equal(t, []string{MethodMemoryCreated, MethodSessionDisconnected}, b.methods)
}
