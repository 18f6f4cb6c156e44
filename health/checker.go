package health

import (
	"github.com/coastalgrand/roomstream/component"
)

// Checker polls a fixed set of components for their current health.
type Checker struct {
	system     string
	components []component.Discoverable
}

// NewChecker creates a Checker. The system name labels the aggregate.
func NewChecker(system string, components []component.Discoverable) *Checker {
	return &Checker{system: system, components: components}
}

// Check polls every component and returns the aggregate with per-component
// sub-statuses attached.
func (c *Checker) Check() Status {
	subs := make([]Status, 0, len(c.components))
	for _, comp := range c.components {
		subs = append(subs, FromComponent(comp))
	}
	return Aggregate(c.system, subs)
}
