package ingress

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/coastalgrand/roomstream/component"
	"github.com/coastalgrand/roomstream/errors"
	"github.com/coastalgrand/roomstream/telemetry"
)

// LocalConfig holds the embedded broker's listen settings.
type LocalConfig struct {
	Addr string `json:"addr"` // host:port for the TCP listener
}

// Local runs an embedded MQTT broker for development, so door-reader
// firmware on the bench can publish to localhost without a production
// broker. An inline subscription feeds the same handler as the remote
// adapter. Not started in production.
type Local struct {
	cfg     LocalConfig
	handler Handler
	server  *mochi.Server

	logger  *slog.Logger
	metrics *ingressMetrics

	running    atomic.Bool
	startedAt  time.Time
	errorCount atomic.Int64
	lastError  atomic.Value // string
}

// NewLocal creates the embedded broker adapter.
func NewLocal(cfg LocalConfig, handler Handler, deps *component.Dependencies) (*Local, error) {
	if handler == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "local", "NewLocal", "handler required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":1883"
	}

	m, err := newIngressMetrics(deps.MetricsRegistry, "local")
	if err != nil {
		return nil, errors.WrapFatal(err, "local", "NewLocal", "register metrics")
	}

	return &Local{
		cfg:     cfg,
		handler: handler,
		logger:  deps.GetLoggerWithComponent("ingress.local"),
		metrics: m,
	}, nil
}

// Meta implements component.Discoverable.
func (l *Local) Meta() component.Metadata {
	return component.Metadata{
		Name:        "ingress.local",
		Type:        "ingress",
		Description: "embedded MQTT broker for local development",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable.
func (l *Local) Health() component.HealthStatus {
	lastErr, _ := l.lastError.Load().(string)
	var uptime time.Duration
	if l.running.Load() {
		uptime = time.Since(l.startedAt)
	}
	return component.HealthStatus{
		Healthy:    l.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(l.errorCount.Load()),
		LastError:  lastErr,
		Uptime:     uptime,
	}
}

// Initialize builds the broker, its listener and the inline subscription.
func (l *Local) Initialize() error {
	l.server = mochi.New(&mochi.Options{InlineClient: true})

	// Bench devices carry no credentials
	if err := l.server.AddHook(new(auth.AllowHook), nil); err != nil {
		return errors.WrapFatal(err, "local", "Initialize", "add auth hook")
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "local", Address: l.cfg.Addr})
	if err := l.server.AddListener(tcp); err != nil {
		return errors.WrapFatal(err, "local", "Initialize", "add TCP listener")
	}

	err := l.server.Subscribe(telemetry.WildcardTopic, 1,
		func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
			l.metrics.received(len(pk.Payload))
			l.handler(pk.TopicName, pk.Payload)
		})
	if err != nil {
		return errors.WrapFatal(err, "local", "Initialize", "inline subscribe")
	}

	return nil
}

// Start begins serving the broker's listeners.
func (l *Local) Start(_ context.Context) error {
	if l.server == nil {
		return errors.Wrap(errors.ErrNotStarted, "local", "Start", "initialize before start")
	}
	if !l.running.CompareAndSwap(false, true) {
		return errors.Wrap(errors.ErrAlreadyStarted, "local", "Start", "start broker")
	}

	if err := l.server.Serve(); err != nil {
		l.running.Store(false)
		return errors.WrapFatal(err, "local", "Start", "serve broker")
	}
	l.startedAt = time.Now()
	l.metrics.connectionEvent("connected")

	l.logger.Info("local broker started", "addr", l.cfg.Addr)
	return nil
}

// Stop closes the broker and all device connections.
func (l *Local) Stop(_ time.Duration) error {
	if !l.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := l.server.Close(); err != nil {
		return errors.Wrap(err, "local", "Stop", "close broker")
	}
	l.logger.Info("local broker stopped")
	return nil
}

// Publish injects a message through the broker's inline client. Used by
// development tooling and tests to simulate a door reader.
func (l *Local) Publish(topic string, payload []byte) error {
	if l.server == nil {
		return errors.Wrap(errors.ErrNotStarted, "local", "Publish", "initialize before publish")
	}
	if err := l.server.Publish(topic, payload, false, 0); err != nil {
		return errors.Wrap(err, "local", "Publish", "inline publish")
	}
	return nil
}

var _ component.LifecycleComponent = (*Local)(nil)
