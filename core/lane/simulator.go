package lane

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/kilianp07/carbonlane/core/logger"
	"github.com/kilianp07/carbonlane/internal/eventbus"
)

const (
	// MaxPlateLength bounds plate identifiers.
	MaxPlateLength = 20
	// DefaultRecentLimit is used by listing callers that omit a limit.
	DefaultRecentLimit = 100
	// MaxRecentLimit is the largest page Recent accepts.
	MaxRecentLimit = 500
)

// Simulator drives vehicles through the lane: Enter opens an entry and Exit
// resolves the longest-waiting one.
type Simulator struct {
	store  Store
	clock  Clock
	bus    *eventbus.TypedBus[Event]
	log    logger.Logger
	plates func() string
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithClock overrides the system clock.
func WithClock(c Clock) Option {
	return func(s *Simulator) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithBus publishes lane events on bus.
func WithBus(bus *eventbus.TypedBus[Event]) Option {
	return func(s *Simulator) { s.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPlateGenerator replaces the generator used when Enter gets no plate.
func WithPlateGenerator(gen func() string) Option {
	return func(s *Simulator) {
		if gen != nil {
			s.plates = gen
		}
	}
}

// NewSimulator returns a Simulator backed by store.
func NewSimulator(store Store, opts ...Option) (*Simulator, error) {
	if store == nil {
		return nil, errors.New("lane: store is required")
	}
	s := &Simulator{
		store:  store,
		clock:  SystemClock{},
		log:    logger.NopLogger{},
		plates: RandomPlate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RandomPlate returns a simulated plate such as SIM-48213.
func RandomPlate() string {
	return fmt.Sprintf("SIM-%d", 10000+rand.IntN(90000))
}

// Enter opens a new entry stamped with the current time. An empty plate is
// replaced by a generated one.
func (s *Simulator) Enter(ctx context.Context, plate string) (Entry, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		plate = s.plates()
	}
	if len(plate) > MaxPlateLength {
		return Entry{}, InvalidInput("numberplate", "longer than %d characters", MaxPlateLength)
	}
	e, err := s.store.InsertOpen(ctx, plate, s.clock.Now())
	if err != nil {
		return Entry{}, err
	}
	s.log.Infow("vehicle entered", map[string]any{"entry_id": e.ID, "plate": e.Plate})
	s.publish(ctx, EventEntered, e)
	return e, nil
}

// Exit closes the open entry with the earliest enter time. It returns
// ErrNoOpenEntry when the lane is empty.
func (s *Simulator) Exit(ctx context.Context) (Entry, error) {
	e, err := s.store.CloseEarliestOpen(ctx, s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrNoOpenEntry) {
			s.log.Debugf("exit requested on empty lane")
		}
		return Entry{}, err
	}
	s.log.Infow("vehicle exited", map[string]any{
		"entry_id":        e.ID,
		"plate":           e.Plate,
		"minutes_elapsed": e.Derived.ElapsedMinutes,
		"co2_grams":       e.Derived.CO2Grams,
	})
	s.publish(ctx, EventExited, e)
	return e, nil
}

// Pending lists vehicles still in the lane, oldest first.
func (s *Simulator) Pending(ctx context.Context) ([]Entry, error) {
	return s.store.QueryOpen(ctx)
}

// Occupancy returns the number of vehicles still in the lane.
func (s *Simulator) Occupancy(ctx context.Context) (int, error) {
	return s.store.CountOpen(ctx)
}

// Recent lists the newest entries. limit must be within 1..MaxRecentLimit.
func (s *Simulator) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 || limit > MaxRecentLimit {
		return nil, InvalidInput("limit", "must be between 1 and %d", MaxRecentLimit)
	}
	return s.store.Recent(ctx, limit)
}

func (s *Simulator) publish(ctx context.Context, kind EventKind, e Entry) {
	if s.bus == nil {
		return
	}
	occupancy, err := s.store.CountOpen(ctx)
	if err != nil {
		s.log.Warnf("count open entries: %v", err)
		occupancy = -1
	}
	s.bus.Publish(Event{Kind: kind, Entry: e, Occupancy: occupancy, Time: s.clock.Now()})
}
