package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/carbonlane/core/logger"
	"github.com/kilianp07/carbonlane/core/metrics/eco"
)

// DefaultSnapshotInterval is used when Snapshotter gets a non-positive interval.
const DefaultSnapshotInterval = 30 * time.Second

// SummaryViews computes the dashboard summary.
type SummaryViews interface {
	Summary(ctx context.Context, loc *time.Location) (eco.Summary, error)
}

// Snapshotter publishes the dashboard summary as gauges on a fixed interval.
type Snapshotter struct {
	views    SummaryViews
	interval time.Duration
	log      logger.Logger

	score    prometheus.Gauge
	co2      prometheus.Gauge
	idle     prometheus.Gauge
	trees    prometheus.Gauge
	last     prometheus.Gauge
	failures prometheus.Counter
}

// NewSnapshotter registers the summary gauges on reg (default registerer when nil).
func NewSnapshotter(v SummaryViews, interval time.Duration, reg prometheus.Registerer, log logger.Logger) (*Snapshotter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	s := &Snapshotter{views: v, interval: interval, log: log}
	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&s.score, "carbonlane_sustainability_score", "Efficiency score of the latest hour"},
		{&s.co2, "carbonlane_summary_co2_kg", "CO2 of closed entries in the rolling window"},
		{&s.idle, "carbonlane_summary_avg_idle_minutes", "Average minutes in the lane over the rolling window"},
		{&s.trees, "carbonlane_trees_required", "Trees needed for a year to absorb the rolling CO2"},
		{&s.last, "carbonlane_snapshot_timestamp_seconds", "Unix time of the last successful snapshot"},
	}
	for _, g := range gauges {
		got, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: g.name, Help: g.help}))
		if err != nil {
			return nil, err
		}
		*g.dst = got
	}
	var err error
	if s.failures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carbonlane_snapshot_failures_total",
		Help: "Summary computations that failed",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// Run snapshots immediately and then on every tick until ctx is done.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.Snapshot(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

// Snapshot computes one summary and updates the gauges.
func (s *Snapshotter) Snapshot(ctx context.Context) {
	sum, err := s.views.Summary(ctx, time.UTC)
	if err != nil {
		if ctx.Err() == nil {
			s.failures.Inc()
			s.log.Warnf("summary snapshot: %v", err)
		}
		return
	}
	s.score.Set(sum.SustainabilityScore)
	s.co2.Set(sum.TotalCO2Kg)
	s.idle.Set(sum.AvgIdleMinutes)
	s.trees.Set(sum.TreesRequired)
	s.last.SetToCurrentTime()
}
