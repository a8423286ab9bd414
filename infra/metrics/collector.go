package metrics

import (
	"context"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/logger"
	coremetrics "github.com/kilianp07/carbonlane/core/metrics"
	"github.com/kilianp07/carbonlane/internal/eventbus"
)

// StartEventCollector feeds lane events from bus into sink until ctx is
// canceled or the bus is closed. The returned channel closes when the
// collector has stopped.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[lane.Event], sink coremetrics.LaneSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev, log)
			}
		}
	}()
	return done
}

func record(sink coremetrics.LaneSink, ev lane.Event, log logger.Logger) {
	var err error
	switch ev.Kind {
	case lane.EventEntered:
		err = sink.RecordEntered(ev.Entry)
	case lane.EventExited:
		err = sink.RecordExited(ev.Entry)
	}
	if err != nil {
		log.Warnf("record %s event for entry %d: %v", ev.Kind, ev.Entry.ID, err)
	}
	if r, ok := sink.(coremetrics.OccupancyRecorder); ok && ev.Occupancy >= 0 {
		if err := r.RecordOccupancy(ev.Occupancy); err != nil {
			log.Warnf("record occupancy: %v", err)
		}
	}
}
