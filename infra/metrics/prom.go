package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/carbonlane/core/lane"
	coremetrics "github.com/kilianp07/carbonlane/core/metrics"
)

// IdleBuckets are the histogram bounds, in minutes, for lane dwell time.
var IdleBuckets = []float64{1, 3, 5, 7.5, 10, 15, 20, 30}

// PromSink exposes lane traffic as Prometheus metrics.
type PromSink struct {
	entries   prometheus.Counter
	exits     prometheus.Counter
	co2       prometheus.Counter
	fuel      prometheus.Counter
	idle      prometheus.Histogram
	occupancy prometheus.Gauge
}

// NewPromSink registers the lane metrics on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the lane metrics on reg. Metrics that are
// already registered are reused, so several sinks can share one registry.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	s := &PromSink{}
	if s.entries, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carbonlane_entries_total",
		Help: "Vehicles that entered the lane",
	})); err != nil {
		return nil, err
	}
	if s.exits, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carbonlane_exits_total",
		Help: "Vehicles that left the lane",
	})); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carbonlane_co2_grams_total",
		Help: "CO2 produced by vehicles while in the lane",
	})); err != nil {
		return nil, err
	}
	if s.fuel, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carbonlane_fuel_grams_total",
		Help: "Fuel burned by vehicles while in the lane",
	})); err != nil {
		return nil, err
	}
	if s.idle, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "carbonlane_idle_minutes",
		Help:    "Minutes each vehicle spent in the lane",
		Buckets: IdleBuckets,
	})); err != nil {
		return nil, err
	}
	if s.occupancy, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "carbonlane_occupancy",
		Help: "Vehicles currently in the lane",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// RecordEntered counts an entry.
func (s *PromSink) RecordEntered(lane.Entry) error {
	s.entries.Inc()
	return nil
}

// RecordExited counts an exit and observes its derived fields.
func (s *PromSink) RecordExited(e lane.Entry) error {
	s.exits.Inc()
	if e.Derived == nil {
		return nil
	}
	s.idle.Observe(e.Derived.ElapsedMinutes)
	s.co2.Add(e.Derived.CO2Grams)
	s.fuel.Add(e.Derived.FuelGrams)
	return nil
}

// RecordOccupancy sets the occupancy gauge.
func (s *PromSink) RecordOccupancy(n int) error {
	s.occupancy.Set(float64(n))
	return nil
}

var _ coremetrics.OccupancyRecorder = (*PromSink)(nil)
