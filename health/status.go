package health

import (
	"time"

	"github.com/coastalgrand/roomstream/component"
)

// StateHealthy, StateDegraded and StateUnhealthy are the reported states.
// Degraded means some sub-component is down but the system still serves.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status is the health of one component or of the whole system.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	ErrorCount  int       `json:"error_count,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// NewHealthy creates a healthy status.
func NewHealthy(name, message string) Status {
	return Status{Component: name, Healthy: true, Status: StateHealthy, Message: message, Timestamp: time.Now()}
}

// NewUnhealthy creates an unhealthy status.
func NewUnhealthy(name, message string) Status {
	return Status{Component: name, Healthy: false, Status: StateUnhealthy, Message: message, Timestamp: time.Now()}
}

// FromComponent converts a component's self-report into a Status.
func FromComponent(c component.Discoverable) Status {
	meta := c.Meta()
	h := c.Health()

	s := Status{
		Component:  meta.Name,
		Healthy:    h.Healthy,
		Status:     StateHealthy,
		Message:    h.LastError,
		ErrorCount: h.ErrorCount,
		Timestamp:  h.LastCheck,
	}
	if !h.Healthy {
		s.Status = StateUnhealthy
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	return s
}

// Aggregate rolls sub-statuses up into a system status. All healthy is
// healthy; any unhealthy sub-component makes the system degraded, and a
// system with no healthy sub-component at all is unhealthy.
func Aggregate(name string, subStatuses []Status) Status {
	agg := Status{
		Component:   name,
		Timestamp:   time.Now(),
		SubStatuses: subStatuses,
	}
	if len(subStatuses) == 0 {
		agg.Healthy = true
		agg.Status = StateHealthy
		return agg
	}

	healthy := 0
	for _, s := range subStatuses {
		if s.Healthy {
			healthy++
		}
	}

	switch healthy {
	case len(subStatuses):
		agg.Healthy = true
		agg.Status = StateHealthy
	case 0:
		agg.Status = StateUnhealthy
	default:
		agg.Status = StateDegraded
	}
	return agg
}
