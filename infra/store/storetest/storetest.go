// Package storetest checks lane.Store implementations against the store
// contract.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carbonlane/core/lane"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) lane.Store

var base = time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC)

// Run executes the contract suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("FIFO", func(t *testing.T) { testFIFO(t, newStore(t)) })
	t.Run("EmptyExit", func(t *testing.T) { testEmptyExit(t, newStore(t)) })
	t.Run("Queries", func(t *testing.T) { testQueries(t, newStore(t)) })
	t.Run("Import", func(t *testing.T) { testImport(t, newStore(t)) })
	t.Run("ConcurrentExit", func(t *testing.T) { testConcurrentExit(t, newStore(t)) })
}

func testFIFO(t *testing.T, s lane.Store) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	_, err := s.InsertOpen(ctx, "T2", base.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = s.InsertOpen(ctx, "T1", base)
	require.NoError(t, err)
	_, err = s.InsertOpen(ctx, "T3", base.Add(4*time.Minute))
	require.NoError(t, err)

	open, err := s.QueryOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, "T1", open[0].Plate)

	for i, want := range []string{"T1", "T2", "T3"} {
		e, err := s.CloseEarliestOpen(ctx, base.Add(time.Duration(10+i)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, want, e.Plate)
		require.NotNil(t, e.Derived)
		assert.True(t, e.Valid())
	}

	first, err := s.QueryClosed(ctx, lane.ClosedFilter{})
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, 10.0, first[0].Derived.ElapsedMinutes)
	assert.Equal(t, 270.0, first[0].Derived.CO2Grams)
	assert.True(t, first[0].EnterTime.Equal(base))
}

func testEmptyExit(t *testing.T, s lane.Store) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	_, err := s.CloseEarliestOpen(ctx, base)
	assert.ErrorIs(t, err, lane.ErrNoOpenEntry)

	_, err = s.InsertOpen(ctx, "ONLY", base)
	require.NoError(t, err)
	_, err = s.CloseEarliestOpen(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	_, err = s.CloseEarliestOpen(ctx, base.Add(2*time.Minute))
	assert.ErrorIs(t, err, lane.ErrNoOpenEntry)

	all, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].ExitTime.Equal(base.Add(time.Minute)))
}

func testQueries(t *testing.T, s lane.Store) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	_, ok, err := s.LatestExit(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 4; i++ {
		_, err := s.InsertOpen(ctx, fmt.Sprintf("P%d", i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	_, err = s.CloseEarliestOpen(ctx, base.Add(5*time.Minute))
	require.NoError(t, err)
	_, err = s.CloseEarliestOpen(ctx, base.Add(time.Hour+7*time.Minute))
	require.NoError(t, err)

	n, err := s.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	latest, ok, err := s.LatestExit(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(base.Add(time.Hour+7*time.Minute)))

	since, err := s.QueryClosed(ctx, lane.ClosedFilter{EnteredSince: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "P1", since[0].Plate)

	window, err := s.QueryClosed(ctx, lane.ClosedFilter{ExitedFrom: base, ExitedBefore: base.Add(5 * time.Minute)})
	require.NoError(t, err)
	assert.Empty(t, window, "upper bound is exclusive")

	recent, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "P3", recent[0].Plate)
	assert.True(t, recent[0].IsOpen())
	assert.Nil(t, recent[0].Derived)
}

func testImport(t *testing.T, s lane.Store) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	exit := base.Add(3 * time.Minute)
	got, err := s.Import(ctx, []lane.Entry{
		{Plate: "ABC1234", EnterTime: base, ExitTime: &exit},
		{Plate: "OPEN", EnterTime: base.Add(time.Minute)},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, 81.0, got[0].Derived.CO2Grams)

	closed, err := s.QueryClosed(ctx, lane.ClosedFilter{})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, got[0].ID, closed[0].ID)
	assert.Equal(t, 3.0, closed[0].Derived.ElapsedMinutes)

	bad := base.Add(-time.Minute)
	_, err = s.Import(ctx, []lane.Entry{{Plate: "BAD", EnterTime: base, ExitTime: &bad}})
	assert.ErrorIs(t, err, lane.ErrInvalidInput)
}

func testConcurrentExit(t *testing.T, s lane.Store) {
	defer func() { _ = s.Close() }()
	ctx := context.Background()
	const open, exits = 20, 30
	for i := 0; i < open; i++ {
		_, err := s.InsertOpen(ctx, fmt.Sprintf("C%02d", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		seen     = map[int64]int{}
		notFound int
	)
	for i := 0; i < exits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.CloseEarliestOpen(ctx, base.Add(time.Hour))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, lane.ErrNoOpenEntry):
				notFound++
			case err != nil:
				t.Errorf("exit: %v", err)
			default:
				seen[e.ID]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, open)
	for id, n := range seen {
		assert.Equal(t, 1, n, "entry %d closed %d times", id, n)
	}
	assert.Equal(t, exits-open, notFound)
}
