package ingress

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalgrand/roomstream/component"
)

// recorder collects handler invocations for assertions.
type recorder struct {
	mu       sync.Mutex
	received []receivedMsg
}

type receivedMsg struct {
	topic   string
	payload string
}

func (r *recorder) handler(topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, receivedMsg{topic: topic, payload: string(payload)})
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func (r *recorder) first() receivedMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.received[0]
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func startLocal(t *testing.T, h Handler) *Local {
	t.Helper()

	local, err := NewLocal(LocalConfig{Addr: freeAddr(t)}, h, &component.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, local.Initialize())
	require.NoError(t, local.Start(context.Background()))
	t.Cleanup(func() { _ = local.Stop(2 * time.Second) })
	return local
}

func TestLocal_InlinePublishReachesHandler(t *testing.T) {
	rec := &recorder{}
	local := startLocal(t, rec.handler)

	payload := `{"card_uid":"04A1B2C3","role":"Guest","check_in":"2026-03-14T09:26:00Z"}`
	require.NoError(t, local.Publish("campus/room/A/2/204/attendances", []byte(payload)))

	require.Eventually(t, func() bool { return rec.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	got := rec.first()
	assert.Equal(t, "campus/room/A/2/204/attendances", got.topic)
	assert.Equal(t, payload, got.payload)
}

func TestLocal_ExternalClientPublish(t *testing.T) {
	rec := &recorder{}
	local := startLocal(t, rec.handler)

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", local.cfg.Addr)).
		SetClientID("bench-device").
		SetConnectTimeout(2 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())
	defer client.Disconnect(250)

	token = client.Publish("campus/room/B/5/110/denied_access", 0, false,
		`{"card_uid":"BAD1","denial_reason":"card expired"}`)
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())

	require.Eventually(t, func() bool { return rec.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "campus/room/B/5/110/denied_access", rec.first().topic)
}

func TestLocal_NonMatchingTopicIgnored(t *testing.T) {
	rec := &recorder{}
	local := startLocal(t, rec.handler)

	require.NoError(t, local.Publish("other/topic", []byte(`{}`)))
	require.NoError(t, local.Publish("campus/room/A/2/204/attendances", []byte(`{}`)))

	require.Eventually(t, func() bool { return rec.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "campus/room/A/2/204/attendances", rec.first().topic)
}

func TestRemote_ReceivesFromBroker(t *testing.T) {
	brokerRec := &recorder{}
	local := startLocal(t, brokerRec.handler)

	rec := &recorder{}
	remote, err := NewRemote(RemoteConfig{
		BrokerURL: fmt.Sprintf("tcp://%s", local.cfg.Addr),
		ClientID:  "roomstream-test",
	}, rec.handler, &component.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, remote.Initialize())
	require.NoError(t, remote.Start(context.Background()))
	t.Cleanup(func() { _ = remote.Stop(time.Second) })

	// Wait for the remote adapter's wildcard subscription to land.
	require.Eventually(t, func() bool { return remote.client.IsConnected() },
		5*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, local.Publish("campus/room/A/3/301/attendances",
		[]byte(`{"card_uid":"X","role":"Manager","check_in":"2026-03-14T09:00:00Z"}`)))

	require.Eventually(t, func() bool { return rec.count() == 1 },
		5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "campus/room/A/3/301/attendances", rec.first().topic)
}

func TestRemote_RequiresBrokerURL(t *testing.T) {
	remote, err := NewRemote(RemoteConfig{}, func(string, []byte) {}, &component.Dependencies{})
	require.NoError(t, err)
	assert.Error(t, remote.Initialize())
}

func TestNewRemote_RequiresHandler(t *testing.T) {
	_, err := NewRemote(RemoteConfig{BrokerURL: "tcp://127.0.0.1:1883"}, nil, &component.Dependencies{})
	assert.Error(t, err)
}

func TestNewLocal_RequiresHandler(t *testing.T) {
	_, err := NewLocal(LocalConfig{}, nil, &component.Dependencies{})
	assert.Error(t, err)
}
