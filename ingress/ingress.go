package ingress

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coastalgrand/roomstream/metric"
)

// Handler receives one raw MQTT message. Both adapters invoke it once per
// message; implementations must not block (the pipeline's Submit queues
// and returns).
type Handler func(topic string, payload []byte)

// ingressMetrics holds Prometheus metrics for one adapter. Metric names
// carry the adapter name so remote and local register independently.
type ingressMetrics struct {
	messagesReceived prometheus.Counter
	bytesReceived    prometheus.Counter
	connectionEvents *prometheus.CounterVec // By event (connected/lost)
}

func newIngressMetrics(registry *metric.MetricsRegistry, adapter string) (*ingressMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &ingressMetrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "ingress",
			Name:      adapter + "_messages_received_total",
			Help:      "Total MQTT messages received by the " + adapter + " adapter",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "ingress",
			Name:      adapter + "_bytes_received_total",
			Help:      "Total MQTT payload bytes received by the " + adapter + " adapter",
		}),
		connectionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomstream",
			Subsystem: "ingress",
			Name:      adapter + "_connection_events_total",
			Help:      "Broker connection events for the " + adapter + " adapter",
		}, []string{"event"}),
	}

	if err := registry.RegisterCounter(adapter, "messages_received_total", m.messagesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(adapter, "bytes_received_total", m.bytesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(adapter, "connection_events_total", m.connectionEvents); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *ingressMetrics) received(payloadLen int) {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
	m.bytesReceived.Add(float64(payloadLen))
}

func (m *ingressMetrics) connectionEvent(event string) {
	if m == nil {
		return
	}
	m.connectionEvents.WithLabelValues(event).Inc()
}
