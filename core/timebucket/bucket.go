// Package timebucket maps UTC timestamps to local wall-clock buckets.
//
// Entries are stored in UTC. Every helper converts to the requested location
// before truncating, so a "16:00" bucket lines up with the caller's local
// afternoon and not with the storage zone.
package timebucket

import (
	"strings"
	"time"

	"github.com/kilianp07/carbonlane/core/lane"
)

const (
	// DaysPerWeek is the number of rows in a day-by-hour grid.
	DaysPerWeek = 7
	// HoursPerDay is the number of columns in a day-by-hour grid.
	HoursPerDay = 24
)

// Granularity selects a bucketing scheme.
type Granularity string

const (
	GranularityHour    Granularity = "hour"
	GranularityMinutes Granularity = "minutes"
	GranularityDayHour Granularity = "day-hour"
)

// LoadZone resolves an IANA zone name. Unknown or empty names are input
// errors; there is no silent fallback.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, lane.InvalidInput("tz", "time zone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, lane.InvalidInput("tz", "unknown time zone %q", name)
	}
	return loc, nil
}

// Hour returns the start of the local hour containing t.
func Hour(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), 0, 0, 0, loc)
}

// Slot returns the start of the width-long slot containing t. Slots are
// aligned to the local hour, so width should divide an hour.
func Slot(t time.Time, width time.Duration, loc *time.Location) time.Time {
	h := Hour(t, loc)
	if width <= 0 {
		return h
	}
	offset := t.Sub(h)
	return h.Add(offset - offset%width)
}

// DayHour returns the ISO weekday (0 = Monday ... 6 = Sunday) and local hour of t.
func DayHour(t time.Time, loc *time.Location) (day, hour int) {
	l := t.In(loc)
	return (int(l.Weekday()) + 6) % 7, l.Hour()
}

// Bucketer maps timestamps to comparable keys for one granularity and zone.
type Bucketer struct {
	Granularity Granularity
	// Width is the slot size for GranularityMinutes.
	Width time.Duration
	Loc   *time.Location
}

// Key is a bucket identifier. Start is set for hour and minute buckets; Day
// and Hour are set for day-hour buckets.
type Key struct {
	Start time.Time
	Day   int
	Hour  int
}

// NewBucketer validates its arguments and returns a Bucketer.
func NewBucketer(g Granularity, width time.Duration, loc *time.Location) (Bucketer, error) {
	if loc == nil {
		return Bucketer{}, lane.InvalidInput("tz", "time zone is required")
	}
	switch g {
	case GranularityHour, GranularityDayHour:
	case GranularityMinutes:
		if width <= 0 || width > time.Hour || time.Hour%width != 0 {
			return Bucketer{}, lane.InvalidInput("bucket", "width %s must divide one hour", width)
		}
	default:
		return Bucketer{}, lane.InvalidInput("granularity", "unknown granularity %q", g)
	}
	return Bucketer{Granularity: g, Width: width, Loc: loc}, nil
}

// Key maps t to its bucket.
func (b Bucketer) Key(t time.Time) Key {
	switch b.Granularity {
	case GranularityMinutes:
		return Key{Start: Slot(t, b.Width, b.Loc)}
	case GranularityDayHour:
		d, h := DayHour(t, b.Loc)
		return Key{Day: d, Hour: h}
	default:
		return Key{Start: Hour(t, b.Loc)}
	}
}
