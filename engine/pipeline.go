package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coastalgrand/roomstream/component"
	"github.com/coastalgrand/roomstream/errors"
	"github.com/coastalgrand/roomstream/pkg/worker"
	"github.com/coastalgrand/roomstream/store"
	"github.com/coastalgrand/roomstream/telemetry"
)

// Publisher fans a payload out to live subscribers of a channel. The
// broadcast package provides the WebSocket implementation; tests supply
// fakes.
type Publisher interface {
	Publish(channel string, payload any)
}

// RoomCacheInvalidator drops cached room listings for a hotel after a room
// upsert so the query API never serves a state older than the broadcast.
type RoomCacheInvalidator interface {
	InvalidateRooms(ctx context.Context, hotelID string)
}

// Broadcast channel prefixes. The hotel id is appended so dashboard
// clients can filter on the property they display.
const (
	RoomUpdateChannel     = "roomUpdate:"
	ActivityUpdateChannel = "activityUpdate:"
)

// inbound is one raw message handed off by an ingress adapter.
type inbound struct {
	topic   string
	payload []byte
}

// PipelineConfig sizes the dispatch pool.
type PipelineConfig struct {
	Workers   int `json:"workers"`
	QueueSize int `json:"queue_size"`
}

// Pipeline is the single processing path shared by both ingresses.
type Pipeline struct {
	stores     store.Stores
	pub        Publisher
	norm       *telemetry.Normalizer
	invalidate RoomCacheInvalidator

	pool    *worker.Pool[inbound]
	metrics *pipelineMetrics
	logger  *slog.Logger
	now     func() time.Time

	startedAt  time.Time
	errorCount atomic.Int64
	lastError  atomic.Value // string
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock overrides the pipeline clock, used by tests for stable
// activity ids and createdAt stamps.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithRoomCacheInvalidator wires cache invalidation into room upserts.
func WithRoomCacheInvalidator(inv RoomCacheInvalidator) PipelineOption {
	return func(p *Pipeline) { p.invalidate = inv }
}

// NewPipeline creates the pipeline. A nil metrics registry on deps
// disables metrics; deps supplies the logger.
func NewPipeline(
	cfg PipelineConfig,
	stores store.Stores,
	pub Publisher,
	norm *telemetry.Normalizer,
	deps *component.Dependencies,
	opts ...PipelineOption,
) (*Pipeline, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	p := &Pipeline{
		stores: stores,
		pub:    pub,
		norm:   norm,
		logger: deps.GetLoggerWithComponent("pipeline"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	m, err := newPipelineMetrics(deps.MetricsRegistry)
	if err != nil {
		return nil, errors.WrapFatal(err, "pipeline", "NewPipeline", "register metrics")
	}
	p.metrics = m

	p.pool = worker.NewPool(cfg.Workers, cfg.QueueSize,
		func(ctx context.Context, in inbound) error {
			return p.Handle(ctx, in.topic, in.payload)
		},
		worker.WithMetricsRegistry[inbound](deps.MetricsRegistry, "pipeline"))

	return p, nil
}

// Meta implements component.Discoverable.
func (p *Pipeline) Meta() component.Metadata {
	return component.Metadata{
		Name:        "pipeline",
		Type:        "pipeline",
		Description: "routes, normalizes, transitions and persists telemetry events",
		Version:     "1.0.0",
	}
}

// Health implements component.Discoverable.
func (p *Pipeline) Health() component.HealthStatus {
	lastErr, _ := p.lastError.Load().(string)
	var uptime time.Duration
	if !p.startedAt.IsZero() {
		uptime = time.Since(p.startedAt)
	}
	return component.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: int(p.errorCount.Load()),
		LastError:  lastErr,
		Uptime:     uptime,
	}
}

// Initialize implements component.LifecycleComponent.
func (p *Pipeline) Initialize() error {
	if p.pub == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "pipeline", "Initialize", "publisher required")
	}
	if p.norm == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "pipeline", "Initialize", "normalizer required")
	}
	return nil
}

// Start launches the dispatch pool.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "pipeline", "Start", "start worker pool")
	}
	p.startedAt = time.Now()
	p.logger.Info("pipeline started")
	return nil
}

// Stop drains the dispatch pool.
func (p *Pipeline) Stop(timeout time.Duration) error {
	if err := p.pool.Stop(timeout); err != nil {
		return errors.Wrap(err, "pipeline", "Stop", "stop worker pool")
	}
	p.logger.Info("pipeline stopped")
	return nil
}

// Submit queues one raw message for processing. Non-blocking: when the
// queue is full the message is dropped and counted, matching the
// at-most-once delivery contract.
func (p *Pipeline) Submit(topic string, payload []byte) {
	err := p.pool.Submit(inbound{topic: topic, payload: payload})
	if err != nil {
		p.metrics.dropped("queue_full")
		p.logger.Warn("message dropped", "topic", topic, "error", err)
	}
}

// Handle processes one raw message end to end. Exposed for tests and for
// callers that manage their own dispatch.
func (p *Pipeline) Handle(ctx context.Context, topic string, payload []byte) error {
	start := time.Now()
	defer func() { p.metrics.observeHandle(time.Since(start)) }()

	route, err := telemetry.ParseTopic(topic)
	if err != nil {
		p.metrics.dropped("malformed_topic")
		p.logger.Warn("unroutable topic", "topic", topic, "error", err)
		return err
	}

	ev, err := p.norm.Normalize(route, payload)
	if err != nil {
		p.metrics.dropped("malformed_payload")
		p.logger.Warn("malformed payload", "topic", topic, "error", err)
		return err
	}

	p.metrics.message(string(ev.Type))
	if ev.Type == telemetry.EventUnknown {
		p.logger.Debug("unknown event type", "topic", topic, "event", route.RawEvent)
		return nil
	}

	now := p.now()
	if ev.Type == telemetry.EventAttendance {
		p.persistAttendance(ctx, ev, now)
	}

	out := Transition(ev, now)

	if out.Delta != nil {
		if _, err := p.stores.Rooms.UpsertState(ctx, *out.Delta); err != nil {
			p.recordError("room", err)
		} else {
			p.metrics.transition(string(out.Delta.Status))
			if p.invalidate != nil {
				p.invalidate.InvalidateRooms(ctx, out.Delta.HotelID)
			}
			p.pub.Publish(RoomUpdateChannel+out.Delta.HotelID, out.Delta)
		}
	}

	if out.Denial != nil {
		if err := p.stores.Denials.Append(ctx, out.Denial); err != nil {
			p.recordError("denial", err)
		}
	}

	if out.Activity != nil {
		if err := p.stores.Activity.Append(ctx, *out.Activity); err != nil {
			p.recordError("activity", err)
		} else {
			p.pub.Publish(ActivityUpdateChannel+out.Activity.HotelID, out.Activity)
		}
	}

	return nil
}

// persistAttendance writes the audit trail for an attendance event. The
// three writes are independent; each failure is logged and counted
// without touching the others.
func (p *Pipeline) persistAttendance(ctx context.Context, ev *telemetry.CanonicalEvent, now time.Time) {
	if err := p.stores.Attendance.Append(ctx, attendanceRecord(ev, now)); err != nil {
		p.recordError("attendance", err)
	}
	if err := p.stores.Devices.Upsert(ctx, deviceRecord(ev, now)); err != nil {
		p.recordError("device", err)
	}
	if err := p.stores.Presence.Upsert(ctx, presenceRecord(ev, now)); err != nil {
		p.recordError("presence", err)
	}
}

func (p *Pipeline) recordError(storeName string, err error) {
	p.metrics.persistError(storeName)
	p.errorCount.Add(1)
	p.lastError.Store(err.Error())
	p.logger.Error("persistence failed", "store", storeName, "error", err)
}

func attendanceRecord(ev *telemetry.CanonicalEvent, now time.Time) telemetry.AttendanceRecord {
	loc := ev.Location
	return telemetry.AttendanceRecord{
		HotelID:     loc.HotelID,
		CardUID:     ev.CardUID,
		Role:        ev.Role,
		CheckIn:     ev.CheckIn,
		CheckOut:    ev.CheckOut,
		Duration:    ev.Duration,
		Room:        loc.RoomNumber,
		Building:    loc.Building,
		FloorNumber: loc.FloorNumber,
		Timestamp:   ev.Timestamp,
		IsCheckedIn: ev.CheckedIn(),
		DeviceInfo:  ev.Device,
		CreatedAt:   now,
	}
}

func deviceRecord(ev *telemetry.CanonicalEvent, now time.Time) telemetry.DeviceRecord {
	loc := ev.Location
	return telemetry.DeviceRecord{
		DeviceID:        ev.DeviceID,
		HotelID:         loc.HotelID,
		Room:            loc.RoomNumber,
		Building:        loc.Building,
		FloorNumber:     loc.FloorNumber,
		SSID:            ev.Device.SSID,
		MQTTServer:      ev.Device.MQTTServer,
		MQTTPort:        ev.Device.MQTTPort,
		LastSeen:        now,
		FirmwareVersion: ev.Firmware,
		Uptime:          ev.Uptime,
		FreeHeap:        ev.FreeHeap,
		WifiSignal:      ev.WifiSignal,
		IsOnline:        true,
	}
}

func presenceRecord(ev *telemetry.CanonicalEvent, now time.Time) telemetry.PresenceRecord {
	loc := ev.Location
	return telemetry.PresenceRecord{
		HotelID:          loc.HotelID,
		CardUID:          ev.CardUID,
		Room:             loc.RoomNumber,
		Building:         loc.Building,
		FloorNumber:      loc.FloorNumber,
		IsPresent:        ev.CheckedIn(),
		LastDetected:     now,
		PresenceDuration: ev.Duration,
		CardAbsentCount:  ev.CardAbsentCount,
		DeviceID:         ev.DeviceID,
	}
}

var _ component.LifecycleComponent = (*Pipeline)(nil)
