// Package eco builds the dashboard views over closed lane entries: rolling
// totals, hourly series, peak hour, emissions series, idle histogram,
// hotspot grid, efficiency score and trends.
//
// Views are recomputed from the store on every call. A view either returns
// completely or returns an error.
package eco

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/logger"
	"github.com/kilianp07/carbonlane/core/timebucket"
)

const (
	// DefaultTotalsWindow is the rolling window used by the summary.
	DefaultTotalsWindow = 24 * time.Hour
	// DefaultPeakLookback is the first window searched for a peak hour.
	DefaultPeakLookback = 7 * 24 * time.Hour
	// DefaultTrendWindow bounds the hourly series used for trends and score.
	DefaultTrendWindow = 24 * time.Hour
	// DefaultEmissionsBucket is the emissions series slot width.
	DefaultEmissionsBucket = 5 * time.Minute
	// EmissionsSpan is the range covered by the emissions series.
	EmissionsSpan = time.Hour
)

// Engine computes aggregate views from a lane.Store.
type Engine struct {
	store lane.Store
	clock lane.Clock
	log   logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the system clock.
func WithClock(c lane.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine returns an Engine reading from store.
func NewEngine(store lane.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("eco: store is required")
	}
	e := &Engine{store: store, clock: lane.SystemClock{}, log: logger.NopLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) closed(ctx context.Context, op string, f lane.ClosedFilter) ([]lane.Entry, error) {
	entries, err := e.store.QueryClosed(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("eco: %s: %w", op, err)
	}
	return entries, nil
}

func (e *Engine) since(window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return e.clock.Now().Add(-window)
}

// RollingTotals summarises closed entries that entered within window. A
// zero window means all history.
func (e *Engine) RollingTotals(ctx context.Context, window time.Duration) (Totals, error) {
	entries, err := e.closed(ctx, "totals", lane.ClosedFilter{EnteredSince: e.since(window)})
	if err != nil {
		return Totals{}, err
	}
	return totalsOf(entries), nil
}

// TotalsWithFallback returns RollingTotals over window, or over all history
// when the window holds no closed entries.
func (e *Engine) TotalsWithFallback(ctx context.Context, window time.Duration) (Totals, error) {
	t, err := e.RollingTotals(ctx, window)
	if err != nil || t.Cars > 0 || window <= 0 {
		return t, err
	}
	e.log.Debugf("no closed entries in the last %s, using all history", window)
	return e.RollingTotals(ctx, 0)
}

func totalsOf(entries []lane.Entry) Totals {
	if len(entries) == 0 {
		return Totals{}
	}
	minutes := make([]float64, 0, len(entries))
	co2 := make([]float64, 0, len(entries))
	fuel := make([]float64, 0, len(entries))
	for _, en := range entries {
		if en.Derived == nil {
			continue
		}
		minutes = append(minutes, en.Derived.ElapsedMinutes)
		co2 = append(co2, en.Derived.CO2Grams)
		fuel = append(fuel, en.Derived.FuelGrams)
	}
	if len(minutes) == 0 {
		return Totals{}
	}
	return Totals{
		Cars:       len(minutes),
		AvgMinutes: stat.Mean(minutes, nil),
		CO2Kg:      floats.Sum(co2) / 1000,
		FuelGrams:  floats.Sum(fuel),
	}
}

// HourlyTrend groups closed entries that entered within window by local enter
// hour. Only hours with data are returned, oldest first.
func (e *Engine) HourlyTrend(ctx context.Context, window time.Duration, loc *time.Location) ([]HourBucket, error) {
	if loc == nil {
		return nil, lane.InvalidInput("tz", "time zone is required")
	}
	entries, err := e.closed(ctx, "hourly trend", lane.ClosedFilter{EnteredSince: e.since(window)})
	if err != nil {
		return nil, err
	}
	groups := map[time.Time][]lane.Entry{}
	for _, en := range entries {
		h := timebucket.Hour(en.EnterTime, loc)
		groups[h] = append(groups[h], en)
	}
	out := make([]HourBucket, 0, len(groups))
	for start, group := range groups {
		t := totalsOf(group)
		var idle float64
		for _, en := range group {
			idle += en.Derived.ElapsedMinutes * 60
		}
		out = append(out, HourBucket{
			Start:       start,
			Hour:        start.Format("15:04"),
			Cars:        t.Cars,
			IdleSeconds: int64(lane.Round(idle, 0)),
			AvgMinutes:  t.AvgMinutes,
			CO2Kg:       t.CO2Kg,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// PeakHour finds the local hour with the highest CO2 among entries that
// entered within lookback (zero means all history). Ties go to the earliest
// hour. ok is false when no hour has positive CO2.
func (e *Engine) PeakHour(ctx context.Context, lookback time.Duration, loc *time.Location) (PeakHour, bool, error) {
	if loc == nil {
		return PeakHour{}, false, lane.InvalidInput("tz", "time zone is required")
	}
	entries, err := e.closed(ctx, "peak hour", lane.ClosedFilter{EnteredSince: e.since(lookback)})
	if err != nil {
		return PeakHour{}, false, err
	}
	grams := map[time.Time]float64{}
	for _, en := range entries {
		grams[timebucket.Hour(en.EnterTime, loc)] += en.Derived.CO2Grams
	}
	var (
		best  time.Time
		top   float64
		found bool
	)
	for h, g := range grams {
		if g <= 0 {
			continue
		}
		if !found || g > top || (g == top && h.Before(best)) {
			best, top, found = h, g, true
		}
	}
	if !found {
		return PeakHour{}, false, nil
	}
	end := best.Add(time.Hour)
	return PeakHour{
		Start: best,
		End:   end,
		Label: best.Format("15:04") + "-" + end.Format("15:04"),
		CO2Kg: lane.Round(top/1000, 2),
	}, true, nil
}

// PeakHourWithFallback searches the last DefaultPeakLookback, then all history.
func (e *Engine) PeakHourWithFallback(ctx context.Context, loc *time.Location) (PeakHour, bool, error) {
	p, ok, err := e.PeakHour(ctx, DefaultPeakLookback, loc)
	if err != nil || ok {
		return p, ok, err
	}
	return e.PeakHour(ctx, 0, loc)
}

// EmissionsSeries sums CO2 by exit time in width-long slots over the hour
// ending at the latest exit (or now when nothing has exited). Each slot is
// [start, start+width) and empty slots are zero, so the series always has
// one hour divided by width points.
func (e *Engine) EmissionsSeries(ctx context.Context, width time.Duration, loc *time.Location) ([]EmissionPoint, error) {
	if width < time.Minute || width%time.Minute != 0 || EmissionsSpan%width != 0 {
		return nil, lane.InvalidInput("bucket", "width %s must be whole minutes dividing one hour", width)
	}
	if loc == nil {
		loc = time.UTC
	}
	end, ok, err := e.store.LatestExit(ctx)
	if err != nil {
		return nil, fmt.Errorf("eco: emissions: %w", err)
	}
	if !ok {
		end = e.clock.Now()
	}
	start := end.Add(-EmissionsSpan)
	entries, err := e.closed(ctx, "emissions", lane.ClosedFilter{ExitedFrom: start, ExitedBefore: end})
	if err != nil {
		return nil, err
	}
	n := int(EmissionsSpan / width)
	grams := make([]float64, n)
	for _, en := range entries {
		i := int(en.ExitTime.Sub(start) / width)
		if i >= 0 && i < n {
			grams[i] += en.Derived.CO2Grams
		}
	}
	out := make([]EmissionPoint, n)
	for i := range out {
		s := start.Add(time.Duration(i) * width)
		out[i] = EmissionPoint{
			Start: s.UTC(),
			Time:  s.In(loc).Format("15:04"),
			CO2Kg: lane.Round(grams[i]/1000, 2),
		}
	}
	return out, nil
}

// IdleHistogram counts all closed entries by elapsed minutes.
func (e *Engine) IdleHistogram(ctx context.Context) ([]IdleBucket, error) {
	entries, err := e.closed(ctx, "idle histogram", lane.ClosedFilter{})
	if err != nil {
		return nil, err
	}
	out := []IdleBucket{{Range: IdleUnder5}, {Range: Idle5To10}, {Range: Idle10AndMore}}
	for _, en := range entries {
		if en.Derived == nil {
			continue
		}
		switch m := en.Derived.ElapsedMinutes; {
		case m < 5:
			out[0].Count++
		case m < 10:
			out[1].Count++
		default:
			out[2].Count++
		}
	}
	return out, nil
}

// Hotspots sums CO2 kilograms of all closed entries by local weekday and
// hour of exit. Cells are rounded to two decimals.
func (e *Engine) Hotspots(ctx context.Context, loc *time.Location) (Hotspots, error) {
	if loc == nil {
		return Hotspots{}, lane.InvalidInput("tz", "time zone is required")
	}
	entries, err := e.closed(ctx, "hotspots", lane.ClosedFilter{})
	if err != nil {
		return Hotspots{}, err
	}
	var grams Grid
	for _, en := range entries {
		d, h := timebucket.DayHour(*en.ExitTime, loc)
		grams[d][h] += en.Derived.CO2Grams
	}
	var out Hotspots
	for d := range grams {
		for h := range grams[d] {
			out.Grid[d][h] = lane.Round(grams[d][h]/1000, 2)
		}
	}
	return out, nil
}

// Score rates the most recent hour with traffic, or the rolling totals when
// no hour in DefaultTrendWindow has closed entries.
func (e *Engine) Score(ctx context.Context) (float64, error) {
	hours, err := e.HourlyTrend(ctx, DefaultTrendWindow, time.UTC)
	if err != nil {
		return 0, err
	}
	if n := len(hours); n > 0 && hours[n-1].Cars > 0 {
		last := hours[n-1]
		return EfficiencyScore(last.CO2Kg, last.AvgMinutes, last.Cars), nil
	}
	t, err := e.TotalsWithFallback(ctx, DefaultTotalsWindow)
	if err != nil {
		return 0, err
	}
	return EfficiencyScore(t.CO2Kg, t.AvgMinutes, t.Cars), nil
}

// Trends compares the most recent hour with traffic against the hour right
// before it. Without any traffic in DefaultTrendWindow every trend is zero.
func (e *Engine) Trends(ctx context.Context) (Trends, error) {
	hours, err := e.HourlyTrend(ctx, DefaultTrendWindow, time.UTC)
	if err != nil {
		return Trends{}, err
	}
	if len(hours) == 0 {
		return Trends{}, nil
	}
	cur := hours[len(hours)-1]
	var prev Period
	if len(hours) > 1 {
		if p := hours[len(hours)-2]; p.Start.Equal(cur.Start.Add(-time.Hour)) {
			prev = p.Period()
		}
	}
	return CompareTrends(cur.Period(), prev), nil
}

// Summary builds the dashboard headline object with peak hours in loc.
func (e *Engine) Summary(ctx context.Context, loc *time.Location) (Summary, error) {
	t, err := e.TotalsWithFallback(ctx, DefaultTotalsWindow)
	if err != nil {
		return Summary{}, err
	}
	open, err := e.store.CountOpen(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("eco: summary: %w", err)
	}
	score, err := e.Score(ctx)
	if err != nil {
		return Summary{}, err
	}
	trends, err := e.Trends(ctx)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		TotalCars:           t.Cars,
		AvgIdleMinutes:      lane.Round(t.AvgMinutes, 1),
		TotalCO2Kg:          lane.Round(t.CO2Kg, 1),
		TreesRequired:       TreesRequired(t.CO2Kg),
		SustainabilityScore: score,
		FuelWastedGrams:     lane.Round(t.FuelGrams, 1),
		CarsInDriveThrough:  open,
		Trends:              trends,
	}
	if t.Cars > 0 {
		s.CO2PerVehicleKg = lane.Round(t.CO2Kg/float64(t.Cars), 3)
	}
	peak, ok, err := e.PeakHourWithFallback(ctx, loc)
	if err != nil {
		return Summary{}, err
	}
	if ok {
		s.PeakHour = &peak
	}
	return s, nil
}
