package export

import (
	"context"
	"time"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/metrics/eco"
)

// Views is the subset of the dashboard engine a report reads.
type Views interface {
	Summary(ctx context.Context, loc *time.Location) (eco.Summary, error)
	HourlyTrend(ctx context.Context, window time.Duration, loc *time.Location) ([]eco.HourBucket, error)
	IdleHistogram(ctx context.Context) ([]eco.IdleBucket, error)
}

// Lister returns the newest lane entries.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]lane.Entry, error)
}

// Build collects a Report. limit bounds the number of entries included.
func Build(ctx context.Context, v Views, l Lister, loc *time.Location, now time.Time, limit int) (Report, error) {
	if loc == nil {
		loc = time.UTC
	}
	summary, err := v.Summary(ctx, loc)
	if err != nil {
		return Report{}, err
	}
	hourly, err := v.HourlyTrend(ctx, eco.DefaultTrendWindow, loc)
	if err != nil {
		return Report{}, err
	}
	idle, err := v.IdleHistogram(ctx)
	if err != nil {
		return Report{}, err
	}
	entries, err := l.Recent(ctx, limit)
	if err != nil {
		return Report{}, err
	}
	return Report{
		GeneratedAt: now.UTC(),
		TimeZone:    loc.String(),
		Summary:     summary,
		Hourly:      hourly,
		Idle:        idle,
		Entries:     entries,
	}, nil
}
