package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/internal/eventbus"
)

func TestEventCollectorFeedsSink(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	bus := eventbus.NewTyped[lane.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := StartEventCollector(ctx, bus, sink, nil)

	// the collector subscribes synchronously, so publishes are not lost
	bus.Publish(lane.Event{Kind: lane.EventEntered, Entry: lane.Entry{Plate: "A"}, Occupancy: 1})
	bus.Publish(lane.Event{Kind: lane.EventExited, Entry: closedEntry(10), Occupancy: 0})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(sink.exits) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.entries))
	assert.Equal(t, 270.0, testutil.ToFloat64(sink.co2))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.occupancy))

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after bus close")
	}
}

func TestEventCollectorStopsOnCancel(t *testing.T) {
	bus := eventbus.NewTyped[lane.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, nopRecorder{}, nil)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after cancel")
	}

	// nil inputs return an already closed channel
	<-StartEventCollector(context.Background(), nil, nopRecorder{}, nil)
}

type nopRecorder struct{}

func (nopRecorder) RecordEntered(lane.Entry) error { return nil }
func (nopRecorder) RecordExited(lane.Entry) error  { return nil }
