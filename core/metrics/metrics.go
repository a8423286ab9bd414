package metrics

import (
	"errors"

	"github.com/kilianp07/carbonlane/core/lane"
)

// LaneSink records lane traffic for observability backends.
type LaneSink interface {
	RecordEntered(e lane.Entry) error
	RecordExited(e lane.Entry) error
}

// OccupancyRecorder is implemented by sinks that track vehicles in the lane.
type OccupancyRecorder interface {
	RecordOccupancy(n int) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordEntered(lane.Entry) error { return nil }
func (NopSink) RecordExited(lane.Entry) error  { return nil }
func (NopSink) RecordOccupancy(int) error      { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []LaneSink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...LaneSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordEntered forwards to every sink and joins their errors.
func (m *MultiSink) RecordEntered(e lane.Entry) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordEntered(e))
	}
	return errors.Join(errs...)
}

// RecordExited forwards to every sink and joins their errors.
func (m *MultiSink) RecordExited(e lane.Entry) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordExited(e))
	}
	return errors.Join(errs...)
}

// RecordOccupancy forwards to the sinks that implement OccupancyRecorder.
func (m *MultiSink) RecordOccupancy(n int) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(OccupancyRecorder); ok {
			errs = append(errs, r.RecordOccupancy(n))
		}
	}
	return errors.Join(errs...)
}

// Close releases sinks that hold connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
