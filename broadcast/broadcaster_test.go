package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalgrand/roomstream/component"
)

func startBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()

	b, err := NewBroadcaster(Config{Addr: "127.0.0.1:0", Path: "/ws"}, &component.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, b.Initialize())
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(2 * time.Second) })
	return b
}

func dial(t *testing.T, b *Broadcaster) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+b.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBroadcaster_PublishEnvelope(t *testing.T) {
	b := startBroadcaster(t)
	conn := dial(t, b)

	require.Eventually(t, func() bool { return b.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	b.Publish("roomUpdate:3", map[string]any{"roomNum": "301", "status": "occupied"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "roomUpdate:3", msg.Event)
	assert.Equal(t, "301", msg.Data["roomNum"])
	assert.Equal(t, "occupied", msg.Data["status"])
}

func TestBroadcaster_FanOutToAllClients(t *testing.T) {
	b := startBroadcaster(t)
	first := dial(t, b)
	second := dial(t, b)

	require.Eventually(t, func() bool { return b.ClientCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	b.Publish("activityUpdate:1", map[string]any{"action": "Guest checked in to Room 101"})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), "activityUpdate:1")
	}
}

func TestBroadcaster_DeadClientDropped(t *testing.T) {
	b := startBroadcaster(t)
	conn := dial(t, b)

	require.Eventually(t, func() bool { return b.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	// The read pump notices the closed connection and removes the client;
	// publishing afterwards must not block or panic.
	require.Eventually(t, func() bool { return b.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)
	b.Publish("roomUpdate:1", map[string]any{"roomNum": "101"})
}

func TestBroadcaster_PublishWithoutClients(t *testing.T) {
	b := startBroadcaster(t)
	b.Publish("roomUpdate:2", map[string]any{"roomNum": "202"})
}

func TestBroadcaster_StopClosesClients(t *testing.T) {
	b, err := NewBroadcaster(Config{Addr: "127.0.0.1:0", Path: "/ws"}, &component.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, b.Initialize())
	require.NoError(t, b.Start(context.Background()))

	conn := dial(t, b)
	require.Eventually(t, func() bool { return b.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop(2*time.Second))
	assert.Zero(t, b.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestBroadcaster_DoubleStartRejected(t *testing.T) {
	b := startBroadcaster(t)
	err := b.Start(context.Background())
	assert.Error(t, err)
}
