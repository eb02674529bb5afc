package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procflow/procflow/events"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, events.Notification{Type: events.NotifyRunStarted, RunID: "r1"}))
	require.NoError(t, c.Handle(ctx, events.Notification{
		Type:  events.NotifyEventApplied,
		RunID: "r1",
		Data:  map[string]interface{}{"event_type": "task_completed"},
	}))
	require.NoError(t, c.Handle(ctx, events.Notification{
		Type:  events.NotifyEventApplied,
		RunID: "r1",
		Data:  map[string]interface{}{"event_type": "task_completed"},
	}))
	require.NoError(t, c.Handle(ctx, events.Notification{Type: events.NotifyRunCompleted, RunID: "r1"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventsApplied.WithLabelValues("task_completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsCompleted))
}

func TestCollectorRejectsUnknownType(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	assert.Error(t, c.Handle(context.Background(), events.Notification{Type: "bogus"}))
}
