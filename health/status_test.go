package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/coastalgrand/roomstream/component"
)

type fakeComponent struct {
	name   string
	status component.HealthStatus
}

func (c fakeComponent) Meta() component.Metadata {
	return component.Metadata{Name: c.name, Type: "test"}
}

func (c fakeComponent) Health() component.HealthStatus { return c.status }

func TestFromComponent(t *testing.T) {
	up := fakeComponent{name: "pipeline", status: component.HealthStatus{
		Healthy:   true,
		LastCheck: time.Now(),
	}}
	s := FromComponent(up)
	assert.True(t, s.Healthy)
	assert.Equal(t, StateHealthy, s.Status)
	assert.Equal(t, "pipeline", s.Component)

	down := fakeComponent{name: "remote-mqtt", status: component.HealthStatus{
		Healthy:    false,
		ErrorCount: 3,
		LastError:  "connection lost",
	}}
	s = FromComponent(down)
	assert.False(t, s.Healthy)
	assert.Equal(t, StateUnhealthy, s.Status)
	assert.Equal(t, 3, s.ErrorCount)
	assert.Equal(t, "connection lost", s.Message)
	assert.False(t, s.Timestamp.IsZero())
}

func TestAggregate(t *testing.T) {
	healthy := NewHealthy("a", "")
	unhealthy := NewUnhealthy("b", "broken")

	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"empty is healthy", nil, StateHealthy},
		{"all healthy", []Status{healthy, healthy}, StateHealthy},
		{"partial outage degrades", []Status{healthy, unhealthy}, StateDegraded},
		{"total outage", []Status{unhealthy, unhealthy}, StateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := Aggregate("roomstream", tt.subs)
			assert.Equal(t, tt.want, agg.Status)
			assert.Equal(t, tt.want == StateHealthy, agg.Healthy)
			assert.Len(t, agg.SubStatuses, len(tt.subs))
		})
	}
}

func TestCheckerPollsComponents(t *testing.T) {
	checker := NewChecker("roomstream", []component.Discoverable{
		fakeComponent{name: "broadcaster", status: component.HealthStatus{Healthy: true}},
		fakeComponent{name: "pipeline", status: component.HealthStatus{Healthy: false, LastError: "queue full"}},
	})

	s := checker.Check()
	assert.Equal(t, StateDegraded, s.Status)
	assert.Len(t, s.SubStatuses, 2)
	assert.Equal(t, "broadcaster", s.SubStatuses[0].Component)
	assert.Equal(t, "queue full", s.SubStatuses[1].Message)
}
