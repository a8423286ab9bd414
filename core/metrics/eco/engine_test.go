package eco

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carbonlane/core/lane"
)

var now = time.Date(2024, 7, 3, 12, 0, 0, 0, time.UTC) // Wednesday

func closedAt(enter time.Time, minutes float64) lane.Entry {
	exit := enter.Add(time.Duration(minutes * float64(time.Minute)))
	return lane.Entry{Plate: "ABC1234", EnterTime: enter, ExitTime: &exit}
}

func newEngine(t *testing.T, entries ...lane.Entry) (*Engine, *lane.MemoryStore) {
	t.Helper()
	st := lane.NewMemoryStore()
	if len(entries) > 0 {
		_, err := st.Import(context.Background(), entries)
		require.NoError(t, err)
	}
	e, err := NewEngine(st, WithClock(lane.FixedClock{T: now}))
	require.NoError(t, err)
	return e, st
}

func at(h, m int) time.Time { return time.Date(2024, 7, 3, h, m, 0, 0, time.UTC) }

func TestNewEngineRequiresStore(t *testing.T) {
	_, err := NewEngine(nil)
	assert.Error(t, err)
}

func TestTotalsFallbackToAllHistory(t *testing.T) {
	old := now.Add(-72 * time.Hour)
	e, _ := newEngine(t, closedAt(old, 5), closedAt(old.Add(time.Hour), 10))
	ctx := context.Background()

	recent, err := e.RollingTotals(ctx, DefaultTotalsWindow)
	require.NoError(t, err)
	assert.Equal(t, Totals{}, recent)

	got, err := e.TotalsWithFallback(ctx, DefaultTotalsWindow)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Cars)
	assert.InDelta(t, 7.5, got.AvgMinutes, 1e-9)
	assert.InDelta(t, 0.405, got.CO2Kg, 1e-9)
	assert.InDelta(t, 180, got.FuelGrams, 1e-9)
}

func TestTotalsEmptyStore(t *testing.T) {
	e, _ := newEngine(t)
	got, err := e.TotalsWithFallback(context.Background(), DefaultTotalsWindow)
	require.NoError(t, err)
	assert.Equal(t, Totals{}, got)
}

func TestIdleHistogramCountsAllClosed(t *testing.T) {
	e, st := newEngine(t,
		closedAt(at(1, 0), 3),
		closedAt(at(2, 0), 5),
		closedAt(at(3, 0), 9.5),
		closedAt(at(4, 0), 10),
		closedAt(now.Add(-30*24*time.Hour), 15),
	)
	_, err := st.InsertOpen(context.Background(), "OPEN1", at(11, 0))
	require.NoError(t, err)

	got, err := e.IdleHistogram(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []IdleBucket{
		{Range: IdleUnder5, Count: 1},
		{Range: Idle5To10, Count: 2},
		{Range: Idle10AndMore, Count: 2},
	}, got)

	sum := 0
	for _, b := range got {
		sum += b.Count
	}
	assert.Equal(t, 5, sum)
}

func TestIdleHistogramEmpty(t *testing.T) {
	e, _ := newEngine(t)
	got, err := e.IdleHistogram(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, b := range got {
		assert.Zero(t, b.Count)
	}
}

func TestHotspotsGridMatchesTotal(t *testing.T) {
	var entries []lane.Entry
	for i := 0; i < 40; i++ {
		entries = append(entries, closedAt(now.Add(-time.Duration(i*7)*time.Hour), float64(3+i%11)+0.37))
	}
	e, _ := newEngine(t, entries...)
	ctx := context.Background()

	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	h, err := e.Hotspots(ctx, la)
	require.NoError(t, err)

	totals, err := e.RollingTotals(ctx, 0)
	require.NoError(t, err)
	var sum float64
	for d := range h.Grid {
		for hr := range h.Grid[d] {
			sum += h.Grid[d][hr]
		}
	}
	assert.InDelta(t, totals.CO2Kg, sum, 0.02*168)
}

func TestHotspotsLocalCell(t *testing.T) {
	// exits Wednesday 03:06 UTC, which is Tuesday 20:06 in Los Angeles
	e, _ := newEngine(t, closedAt(at(3, 0), 6))
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	h, err := e.Hotspots(context.Background(), la)
	require.NoError(t, err)
	assert.Equal(t, 0.16, h.Grid[1][20])

	h, err = e.Hotspots(context.Background(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 0.16, h.Grid[2][3])
}

func TestEmissionsSeriesAnchoredOnLatestExit(t *testing.T) {
	e, _ := newEngine(t,
		closedAt(at(8, 54), 6),  // exits 09:00, first slot
		closedAt(at(9, 2), 5),   // exits 09:07, second slot
		closedAt(at(9, 4), 4),   // exits 09:08, second slot
		closedAt(at(9, 50), 10), // exits 10:00, the anchor itself
		closedAt(at(7, 0), 5),   // outside the hour
	)
	got, err := e.EmissionsSeries(context.Background(), DefaultEmissionsBucket, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 12)
	assert.True(t, got[0].Start.Equal(at(9, 0)))
	assert.Equal(t, "09:00", got[0].Time)
	assert.Equal(t, "09:55", got[11].Time)
	assert.Equal(t, 0.16, got[0].CO2Kg)
	assert.Equal(t, 0.24, got[1].CO2Kg)
	for _, p := range got[2:] {
		assert.Zero(t, p.CO2Kg)
	}
}

func TestEmissionsSeriesWithoutExitsUsesNow(t *testing.T) {
	e, _ := newEngine(t)
	got, err := e.EmissionsSeries(context.Background(), 15*time.Minute, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.True(t, got[0].Start.Equal(now.Add(-time.Hour)))
}

func TestEmissionsSeriesRejectsWidth(t *testing.T) {
	e, _ := newEngine(t)
	for _, w := range []time.Duration{0, 7 * time.Minute, 90 * time.Second, 2 * time.Hour} {
		_, err := e.EmissionsSeries(context.Background(), w, time.UTC)
		assert.ErrorIs(t, err, lane.ErrInvalidInput, "width %s", w)
	}
}

func TestPeakHour(t *testing.T) {
	ctx := context.Background()
	empty, _ := newEngine(t)
	_, ok, err := empty.PeakHourWithFallback(ctx, time.UTC)
	require.NoError(t, err)
	assert.False(t, ok)

	e, _ := newEngine(t,
		closedAt(at(10, 0), 5),
		closedAt(at(10, 30), 5),
		closedAt(at(11, 0), 5),
	)
	p, ok, err := e.PeakHour(ctx, DefaultPeakLookback, time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10:00-11:00", p.Label)
	assert.Equal(t, 0.27, p.CO2Kg)

	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	p, ok, err = e.PeakHour(ctx, DefaultPeakLookback, la)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "03:00-04:00", p.Label)
}

func TestPeakHourTieGoesToEarliest(t *testing.T) {
	e, _ := newEngine(t, closedAt(at(9, 0), 5), closedAt(at(7, 0), 5), closedAt(at(8, 0), 5))
	p, ok, err := e.PeakHour(context.Background(), 0, time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "07:00-08:00", p.Label)
}

func TestPeakHourFallsBackToAllHistory(t *testing.T) {
	old := now.Add(-10 * 24 * time.Hour)
	e, _ := newEngine(t, closedAt(old, 5))
	_, ok, err := e.PeakHour(context.Background(), DefaultPeakLookback, time.UTC)
	require.NoError(t, err)
	assert.False(t, ok)

	p, ok, err := e.PeakHourWithFallback(context.Background(), time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Start.Equal(old))
}

func TestHourlyTrend(t *testing.T) {
	e, _ := newEngine(t,
		closedAt(at(11, 0), 3),
		closedAt(at(10, 0), 5),
		closedAt(at(10, 10), 10),
		closedAt(now.Add(-48*time.Hour), 5),
	)
	got, err := e.HourlyTrend(context.Background(), DefaultTrendWindow, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "10:00", got[0].Hour)
	assert.Equal(t, 2, got[0].Cars)
	assert.Equal(t, int64(900), got[0].IdleSeconds)
	assert.Equal(t, "11:00", got[1].Hour)
	assert.Equal(t, int64(180), got[1].IdleSeconds)
}

func TestTrendsNeedAdjacentHour(t *testing.T) {
	e, _ := newEngine(t, closedAt(at(8, 0), 5), closedAt(at(11, 0), 5), closedAt(at(11, 20), 5))
	got, err := e.Trends(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Trends{}, got)
}

func fixtureSummary(t *testing.T) (*Engine, *lane.MemoryStore) {
	e, st := newEngine(t,
		closedAt(at(10, 0), 5),
		closedAt(at(10, 10), 10),
		closedAt(at(11, 0), 3),
	)
	_, err := st.InsertOpen(context.Background(), "WAITING", at(11, 30))
	require.NoError(t, err)
	return e, st
}

func TestSummary(t *testing.T) {
	e, _ := fixtureSummary(t)
	s, err := e.Summary(context.Background(), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalCars)
	assert.Equal(t, 6.0, s.AvgIdleMinutes)
	assert.Equal(t, 0.5, s.TotalCO2Kg)
	assert.Equal(t, 0.0, s.TreesRequired)
	assert.Equal(t, 216.0, s.FuelWastedGrams)
	assert.Equal(t, 0.162, s.CO2PerVehicleKg)
	assert.Equal(t, 1, s.CarsInDriveThrough)
	assert.Equal(t, 85.6, s.SustainabilityScore)
	require.NotNil(t, s.PeakHour)
	assert.Equal(t, "10:00-11:00", s.PeakHour.Label)
	assert.Equal(t, Trends{
		Vehicles: Trend{Value: 50, IsPositive: false},
		CO2:      Trend{Value: 80, IsPositive: true},
		Idle:     Trend{Value: 80, IsPositive: true},
	}, s.Trends)
}

func TestSummaryEmpty(t *testing.T) {
	e, _ := newEngine(t)
	s, err := e.Summary(context.Background(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.SustainabilityScore)
	assert.Nil(t, s.PeakHour)
	assert.Zero(t, s.TotalCars)
	assert.Zero(t, s.CO2PerVehicleKg)
}

func TestViewsAreRepeatable(t *testing.T) {
	e, _ := fixtureSummary(t)
	ctx := context.Background()
	a, err := e.Summary(ctx, time.UTC)
	require.NoError(t, err)
	b, err := e.Summary(ctx, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

type brokenStore struct{ lane.Store }

func (brokenStore) QueryClosed(context.Context, lane.ClosedFilter) ([]lane.Entry, error) {
	return nil, lane.Unavailable("query closed", errors.New("connection refused"))
}

func TestStoreFailurePropagates(t *testing.T) {
	e, err := NewEngine(brokenStore{Store: lane.NewMemoryStore()}, WithClock(lane.FixedClock{T: now}))
	require.NoError(t, err)
	_, err = e.Summary(context.Background(), time.UTC)
	assert.ErrorIs(t, err, lane.ErrStoreUnavailable)
	_, err = e.Hotspots(context.Background(), time.UTC)
	assert.ErrorIs(t, err, lane.ErrStoreUnavailable)
}
