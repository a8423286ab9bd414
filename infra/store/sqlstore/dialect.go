package sqlstore

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// TimeColumn scans a nullable timestamp column.
type TimeColumn interface {
	sql.Scanner
	Time() (time.Time, bool)
}

// Dialect captures what differs between SQL engines.
type Dialect struct {
	Name string
	// Schema statements run once at open time.
	Schema []string
	// Numbered switches ? placeholders to $1, $2, ...
	Numbered bool
	// LockEarliest is appended to the select that picks the next exit.
	LockEarliest string
	// EncodeTime converts a UTC timestamp to a driver argument.
	EncodeTime func(time.Time) any
	// NewTimeColumn returns a scanner for a timestamp column.
	NewTimeColumn func() TimeColumn
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnixNanos stores timestamps as INTEGER nanoseconds since the epoch.
type UnixNanos struct{ v sql.NullInt64 }

// Scan implements sql.Scanner.
func (u *UnixNanos) Scan(src any) error { return u.v.Scan(src) }

// Time returns the UTC timestamp.
func (u *UnixNanos) Time() (time.Time, bool) {
	if !u.v.Valid {
		return time.Time{}, false
	}
	return time.Unix(0, u.v.Int64).UTC(), true
}

// EncodeUnixNanos is the EncodeTime of UnixNanos columns.
func EncodeUnixNanos(t time.Time) any { return t.UTC().UnixNano() }

// Timestamp scans native timestamp columns.
type Timestamp struct{ v sql.NullTime }

// Scan implements sql.Scanner.
func (t *Timestamp) Scan(src any) error { return t.v.Scan(src) }

// Time returns the UTC timestamp.
func (t *Timestamp) Time() (time.Time, bool) {
	if !t.v.Valid {
		return time.Time{}, false
	}
	return t.v.Time.UTC(), true
}

// EncodeTimestamp passes timestamps through in UTC.
func EncodeTimestamp(t time.Time) any { return t.UTC() }
