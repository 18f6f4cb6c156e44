package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coastalgrand/roomstream/metric"
)

// pipelineMetrics holds Prometheus metrics for pipeline operations.
type pipelineMetrics struct {
	messagesTotal  *prometheus.CounterVec // By event type (attendance/denied_access/unknown)
	droppedTotal   *prometheus.CounterVec // By reason (malformed_topic/malformed_payload/queue_full)
	persistErrors  *prometheus.CounterVec // By store (attendance/device/presence/room/denial/activity)
	transitions    *prometheus.CounterVec // By resulting room status
	handleDuration prometheus.Histogram
}

// newPipelineMetrics creates and registers pipeline metrics with the
// provided registry. A nil registry disables metrics.
func newPipelineMetrics(registry *metric.MetricsRegistry) (*pipelineMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &pipelineMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "pipeline",
			Name:      "messages_total",
			Help:      "Total number of messages processed by event type",
		}, []string{"event"}),

		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "pipeline",
			Name:      "dropped_total",
			Help:      "Total number of messages dropped without processing",
		}, []string{"reason"}),

		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "pipeline",
			Name:      "persistence_errors_total",
			Help:      "Total number of failed persistence calls by store",
		}, []string{"store"}),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "pipeline",
			Name:      "transitions_total",
			Help:      "Total number of room state transitions by resulting status",
		}, []string{"status"}),

		handleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roomstream",
			Subsystem: "pipeline",
			Name:      "handle_duration_seconds",
			Help:      "End-to-end handle duration per message in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	if err := registry.RegisterCounterVec("pipeline", "messages_total", m.messagesTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("pipeline", "dropped_total", m.droppedTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("pipeline", "persistence_errors_total", m.persistErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("pipeline", "transitions_total", m.transitions); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("pipeline", "handle_duration_seconds", m.handleDuration); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *pipelineMetrics) message(event string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(event).Inc()
}

func (m *pipelineMetrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(reason).Inc()
}

func (m *pipelineMetrics) persistError(store string) {
	if m == nil {
		return
	}
	m.persistErrors.WithLabelValues(store).Inc()
}

func (m *pipelineMetrics) transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *pipelineMetrics) observeHandle(d time.Duration) {
	if m == nil {
		return
	}
	m.handleDuration.Observe(d.Seconds())
}
