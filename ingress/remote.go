package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/coastalgrand/roomstream/component"
	"github.com/coastalgrand/roomstream/errors"
	"github.com/coastalgrand/roomstream/telemetry"
)

const (
	// reconnectInterval matches the door readers' own retry cadence
	reconnectInterval = 1 * time.Second

	connectTimeout = 10 * time.Second
)

// RemoteConfig holds the remote broker connection settings.
type RemoteConfig struct {
	BrokerURL string `json:"broker_url"` // tcp://host:port
	ClientID  string `json:"client_id"`  // empty = generated
}

// Remote subscribes to the production broker that the deployed door
// readers publish to. It reconnects forever at a fixed interval; the
// readers buffer nothing, so missed messages are simply lost.
type Remote struct {
	cfg     RemoteConfig
	handler Handler
	client  mqtt.Client

	logger  *slog.Logger
	metrics *ingressMetrics

	running    atomic.Bool
	startedAt  time.Time
	errorCount atomic.Int64
	lastError  atomic.Value // string
}

// NewRemote creates the remote ingress adapter.
func NewRemote(cfg RemoteConfig, handler Handler, deps *component.Dependencies) (*Remote, error) {
	if handler == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "remote", "NewRemote", "handler required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "roomstream-" + uuid.NewString()[:8]
	}

	m, err := newIngressMetrics(deps.MetricsRegistry, "remote")
	if err != nil {
		return nil, errors.WrapFatal(err, "remote", "NewRemote", "register metrics")
	}

	return &Remote{
		cfg:     cfg,
		handler: handler,
		logger:  deps.GetLoggerWithComponent("ingress.remote"),
		metrics: m,
	}, nil
}

// Meta implements component.Discoverable.
func (r *Remote) Meta() component.Metadata {
	return component.Metadata{
		Name:        "ingress.remote",
		Type:        "ingress",
		Description: "MQTT client of the remote production broker",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable.
func (r *Remote) Health() component.HealthStatus {
	lastErr, _ := r.lastError.Load().(string)
	healthy := r.running.Load() && r.client != nil && r.client.IsConnected()
	var uptime time.Duration
	if r.running.Load() {
		uptime = time.Since(r.startedAt)
	}
	return component.HealthStatus{
		Healthy:    healthy,
		LastCheck:  time.Now(),
		ErrorCount: int(r.errorCount.Load()),
		LastError:  lastErr,
		Uptime:     uptime,
	}
}

// Initialize validates configuration and builds the client options.
func (r *Remote) Initialize() error {
	if r.cfg.BrokerURL == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "remote", "Initialize", "broker URL required")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(r.cfg.BrokerURL).
		SetClientID(r.cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(reconnectInterval).
		SetConnectRetry(true).
		SetConnectRetryInterval(reconnectInterval).
		// Messages from distinct devices have no ordering contract, so let
		// paho dispatch callbacks concurrently
		SetOrderMatters(false).
		SetOnConnectHandler(r.onConnect).
		SetConnectionLostHandler(r.onConnectionLost)

	r.client = mqtt.NewClient(opts)
	return nil
}

// Start connects to the broker. The subscription happens in the connect
// handler so it is re-established after every reconnect.
func (r *Remote) Start(ctx context.Context) error {
	if r.client == nil {
		return errors.Wrap(errors.ErrNotStarted, "remote", "Start", "initialize before start")
	}
	if !r.running.CompareAndSwap(false, true) {
		return errors.Wrap(errors.ErrAlreadyStarted, "remote", "Start", "start adapter")
	}
	r.startedAt = time.Now()

	token := r.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			// ConnectRetry keeps trying in the background; report but stay up
			r.recordError(err)
			r.logger.Warn("initial connect failed, retrying",
				"broker", r.cfg.BrokerURL, "error", err)
		}
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "remote", "Start", "connect to broker")
	case <-time.After(connectTimeout):
		r.logger.Warn("initial connect still pending, retrying in background",
			"broker", r.cfg.BrokerURL)
	}

	r.logger.Info("remote ingress started", "broker", r.cfg.BrokerURL, "client_id", r.cfg.ClientID)
	return nil
}

// Stop disconnects from the broker.
func (r *Remote) Stop(timeout time.Duration) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil
	}
	quiesce := uint(timeout / time.Millisecond)
	if quiesce == 0 {
		quiesce = 250
	}
	r.client.Disconnect(quiesce)
	r.logger.Info("remote ingress stopped")
	return nil
}

func (r *Remote) onConnect(c mqtt.Client) {
	r.metrics.connectionEvent("connected")
	r.logger.Info("connected to broker", "broker", r.cfg.BrokerURL)

	token := c.Subscribe(telemetry.WildcardTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		r.metrics.received(len(msg.Payload()))
		r.handler(msg.Topic(), msg.Payload())
	})
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			r.recordError(err)
			r.logger.Error("subscribe failed", "topic", telemetry.WildcardTopic, "error", err)
		}
	}()
}

func (r *Remote) onConnectionLost(_ mqtt.Client, err error) {
	r.metrics.connectionEvent("lost")
	r.recordError(fmt.Errorf("%w: %w", errors.ErrConnectionLost, err))
	r.logger.Warn("broker connection lost", "broker", r.cfg.BrokerURL, "error", err)
}

func (r *Remote) recordError(err error) {
	r.errorCount.Add(1)
	r.lastError.Store(err.Error())
}

var _ component.LifecycleComponent = (*Remote)(nil)
