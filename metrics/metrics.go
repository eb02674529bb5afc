// Package metrics exposes engine activity as Prometheus collectors fed by
// the notification bus, so embedding applications can observe runs without
// touching the engine itself.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/procflow/procflow/events"
)

// Collector counts run lifecycle notifications.
type Collector struct {
	runsStarted   prometheus.Counter
	eventsApplied *prometheus.CounterVec
	runsCompleted prometheus.Counter
}

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procflow_runs_started_total",
			Help: "Total number of workflow runs started",
		}),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procflow_events_applied_total",
			Help: "Total number of events applied to runs",
		}, []string{"event_type"}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procflow_runs_completed_total",
			Help: "Total number of workflow runs completed",
		}),
	}
	reg.MustRegister(c.runsStarted, c.eventsApplied, c.runsCompleted)
	return c
}

// Handle implements events.Handler.
func (c *Collector) Handle(_ context.Context, n events.Notification) error {
	switch n.Type {
	case events.NotifyRunStarted:
		c.runsStarted.Inc()
	case events.NotifyEventApplied:
		eventType, _ := n.Data["event_type"].(string)
		c.eventsApplied.WithLabelValues(eventType).Inc()
	case events.NotifyRunCompleted:
		c.runsCompleted.Inc()
	default:
		return fmt.Errorf("unknown notification type %q", n.Type)
	}
	return nil
}

// Bind subscribes the collector to every notification type it understands.
func (c *Collector) Bind(bus *events.Bus) {
	bus.Subscribe(events.NotifyRunStarted, c)
	bus.Subscribe(events.NotifyEventApplied, c)
	bus.Subscribe(events.NotifyRunCompleted, c)
}
