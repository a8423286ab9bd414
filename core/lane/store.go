package lane

import (
	"context"
	"time"
)

// ClosedFilter narrows QueryClosed. Zero fields are unbounded.
type ClosedFilter struct {
	// EnteredSince keeps entries with EnterTime >= EnteredSince.
	EnteredSince time.Time
	// ExitedFrom keeps entries with ExitTime >= ExitedFrom.
	ExitedFrom time.Time
	// ExitedBefore keeps entries with ExitTime < ExitedBefore.
	ExitedBefore time.Time
}

// Match reports whether the closed entry e satisfies the filter.
func (f ClosedFilter) Match(e Entry) bool {
	if e.ExitTime == nil {
		return false
	}
	if !f.EnteredSince.IsZero() && e.EnterTime.Before(f.EnteredSince) {
		return false
	}
	if !f.ExitedFrom.IsZero() && e.ExitTime.Before(f.ExitedFrom) {
		return false
	}
	if !f.ExitedBefore.IsZero() && !e.ExitTime.Before(f.ExitedBefore) {
		return false
	}
	return true
}

// Store is the record set of lane entries. Implementations must make
// CloseEarliestOpen atomic: concurrent callers never resolve the same entry,
// and readers never observe an exit timestamp without its derived fields.
type Store interface {
	// InsertOpen creates an open entry entered at the given time.
	InsertOpen(ctx context.Context, plate string, at time.Time) (Entry, error)
	// CloseEarliestOpen resolves the open entry with the earliest enter time.
	// It returns ErrNoOpenEntry and changes nothing when the lane is empty.
	CloseEarliestOpen(ctx context.Context, at time.Time) (Entry, error)
	// QueryClosed returns closed entries matching f ordered by enter time.
	QueryClosed(ctx context.Context, f ClosedFilter) ([]Entry, error)
	// QueryOpen returns open entries ordered by enter time ascending.
	QueryOpen(ctx context.Context) ([]Entry, error)
	// CountOpen returns the number of vehicles currently in the lane.
	CountOpen(ctx context.Context) (int, error)
	// LatestExit returns the most recent exit timestamp, if any entry is closed.
	LatestExit(ctx context.Context) (time.Time, bool, error)
	// Recent returns up to limit entries, open or closed, newest enter first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	// Import stores historical entries as given. IDs are reassigned and
	// derived fields recomputed from the timestamps.
	Import(ctx context.Context, entries []Entry) ([]Entry, error)
	Close() error
}

// Normalize validates an entry for Import and returns it in canonical form.
func Normalize(e Entry) (Entry, error) {
	if e.Plate == "" {
		return Entry{}, InvalidInput("numberplate", "must not be empty")
	}
	if len(e.Plate) > MaxPlateLength {
		return Entry{}, InvalidInput("numberplate", "longer than %d characters", MaxPlateLength)
	}
	if e.EnterTime.IsZero() {
		return Entry{}, InvalidInput("enter_timestamp", "must be set")
	}
	out := Entry{Plate: e.Plate, EnterTime: e.EnterTime.UTC()}
	if e.ExitTime != nil {
		if e.ExitTime.Before(e.EnterTime) {
			return Entry{}, InvalidInput("exit_timestamp", "before enter_timestamp")
		}
		out = out.Closed(*e.ExitTime)
	}
	return out, nil
}
