package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coastalgrand/roomstream/metric"
)

// broadcastMetrics holds Prometheus metrics for the dispatcher.
type broadcastMetrics struct {
	clientsConnected prometheus.Gauge
	connectionsTotal prometheus.Counter
	messagesSent     prometheus.Counter
	sendErrors       *prometheus.CounterVec // By reason (write/marshal/upgrade)
}

// newBroadcastMetrics creates and registers dispatcher metrics. A nil
// registry disables metrics.
func newBroadcastMetrics(registry *metric.MetricsRegistry) (*broadcastMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &broadcastMetrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomstream",
			Subsystem: "broadcast",
			Name:      "clients_connected",
			Help:      "Number of currently connected WebSocket clients",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "broadcast",
			Name:      "connections_total",
			Help:      "Total number of WebSocket connections accepted",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "broadcast",
			Name:      "messages_sent_total",
			Help:      "Total number of messages written to clients",
		}),
		sendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "broadcast",
			Name:      "errors_total",
			Help:      "Total number of dispatch errors by reason",
		}, []string{"reason"}),
	}

	if err := registry.RegisterGauge("broadcast", "clients_connected", m.clientsConnected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("broadcast", "connections_total", m.connectionsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("broadcast", "messages_sent_total", m.messagesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("broadcast", "errors_total", m.sendErrors); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *broadcastMetrics) setClients(n int) {
	if m == nil {
		return
	}
	m.clientsConnected.Set(float64(n))
}

func (m *broadcastMetrics) connection() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
}

func (m *broadcastMetrics) sent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *broadcastMetrics) sendError(reason string) {
	if m == nil {
		return
	}
	m.sendErrors.WithLabelValues(reason).Inc()
}
