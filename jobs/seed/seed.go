// Package seed fills a store with closed demo entries so the dashboard has
// something to show on a fresh install.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kilianp07/carbonlane/core/lane"
)

const (
	// DefaultCount is the number of entries inserted when n is not positive.
	DefaultCount = 5
	// MinMinutes and MaxMinutes bound the generated lane durations.
	MinMinutes = 3
	MaxMinutes = 20
)

var (
	plates  = []string{"ABC1234", "XYZ5678", "DEF9012", "GHI3456", "JKL7890"}
	offsets = []time.Duration{45 * time.Minute, 30 * time.Minute, 20 * time.Minute, 15 * time.Minute, 8 * time.Minute}
)

// Importer is the store capability Seed needs.
type Importer interface {
	Import(ctx context.Context, entries []lane.Entry) ([]lane.Entry, error)
}

// Generate builds n closed entries that entered during the hour before now.
// The first five reuse fixed plates and offsets; later ones get simulated
// plates and random offsets. Exits never pass now.
func Generate(now time.Time, n int, rng *rand.Rand) []lane.Entry {
	if n <= 0 {
		n = DefaultCount
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))
	}
	out := make([]lane.Entry, 0, n)
	for i := 0; i < n; i++ {
		plate := fmt.Sprintf("SIM-%05d", 10000+rng.IntN(90000))
		offset := time.Duration(1+rng.IntN(59)) * time.Minute
		if i < len(plates) {
			plate, offset = plates[i], offsets[i]
		}
		enter := now.Add(-offset)
		exit := enter.Add(time.Duration(MinMinutes+rng.IntN(MaxMinutes-MinMinutes+1)) * time.Minute)
		if exit.After(now) {
			exit = now
		}
		out = append(out, lane.Entry{Plate: plate, EnterTime: enter}.Closed(exit))
	}
	return out
}

// Seed generates n entries and imports them in one batch.
func Seed(ctx context.Context, store Importer, clock lane.Clock, n int, rng *rand.Rand) ([]lane.Entry, error) {
	if clock == nil {
		clock = lane.SystemClock{}
	}
	entries, err := store.Import(ctx, Generate(clock.Now(), n, rng))
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return entries, nil
}
