package lane

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps entries in memory for tests and single-process demos.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// InsertOpen appends a new open entry.
func (s *MemoryStore) InsertOpen(_ context.Context, plate string, at time.Time) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := Entry{ID: s.nextID, Plate: plate, EnterTime: at.UTC()}
	s.entries = append(s.entries, e)
	return e, nil
}

// CloseEarliestOpen resolves the longest-waiting open entry under the write lock.
func (s *MemoryStore) CloseEarliestOpen(_ context.Context, at time.Time) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, e := range s.entries {
		if !e.IsOpen() {
			continue
		}
		if idx < 0 || e.EnterTime.Before(s.entries[idx].EnterTime) {
			idx = i
		}
	}
	if idx < 0 {
		return Entry{}, ErrNoOpenEntry
	}
	closed := s.entries[idx].Closed(at)
	s.entries[idx] = closed
	return closed, nil
}

// QueryClosed returns closed entries matching f.
func (s *MemoryStore) QueryClosed(_ context.Context, f ClosedFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, e := range s.entries {
		if f.Match(e) {
			res = append(res, e)
		}
	}
	sortByEnter(res)
	return res, nil
}

// QueryOpen returns open entries, oldest first.
func (s *MemoryStore) QueryOpen(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, e := range s.entries {
		if e.IsOpen() {
			res = append(res, e)
		}
	}
	sortByEnter(res)
	return res, nil
}

// CountOpen counts open entries.
func (s *MemoryStore) CountOpen(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.IsOpen() {
			n++
		}
	}
	return n, nil
}

// LatestExit returns the maximum exit timestamp.
func (s *MemoryStore) LatestExit(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest time.Time
	found := false
	for _, e := range s.entries {
		if e.ExitTime == nil {
			continue
		}
		if !found || e.ExitTime.After(latest) {
			latest = *e.ExitTime
			found = true
		}
	}
	return latest, found, nil
}

// Recent returns the newest entries first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	res := make([]Entry, len(s.entries))
	copy(res, s.entries)
	s.mu.RUnlock()
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].EnterTime.Equal(res[j].EnterTime) {
			return res[i].ID > res[j].ID
		}
		return res[i].EnterTime.After(res[j].EnterTime)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// Import appends historical entries.
func (s *MemoryStore) Import(_ context.Context, entries []Entry) ([]Entry, error) {
	normalized := make([]Entry, 0, len(entries))
	for _, e := range entries {
		n, err := Normalize(e)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range normalized {
		s.nextID++
		normalized[i].ID = s.nextID
		s.entries = append(s.entries, normalized[i])
	}
	return normalized, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func sortByEnter(res []Entry) {
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].EnterTime.Equal(res[j].EnterTime) {
			return res[i].ID < res[j].ID
		}
		return res[i].EnterTime.Before(res[j].EnterTime)
	})
}
