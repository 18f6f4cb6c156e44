package component

import (
	"log/slog"

	"github.com/coastalgrand/roomstream/metric"
)

// Dependencies provides the shared external dependencies components need.
// Components receive this struct at construction instead of reaching for
// globals; every field except the logger may be nil and each component
// degrades accordingly (nil registry = metrics disabled).
type Dependencies struct {
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
}

// GetLogger returns the configured logger or the default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger scoped with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
