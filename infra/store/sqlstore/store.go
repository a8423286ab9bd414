// Package sqlstore implements lane.Store over database/sql. Engine
// specifics come from a Dialect; see infra/store/sqlite and
// infra/store/postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/logger"
)

const columns = `entry_id, numberplate, enter_timestamp, exit_timestamp, minutes_elapsed, fuel_used, carbon_produced`

// Store is a lane.Store backed by a SQL database.
type Store struct {
	db  *sql.DB
	d   Dialect
	log logger.Logger
}

// Open wraps db, applies the dialect schema and returns the store. The
// store owns db and closes it on Close.
func Open(ctx context.Context, db *sql.DB, d Dialect, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	for _, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if cerr := db.Close(); cerr != nil {
				return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
			}
			return nil, lane.Unavailable(d.Name+" schema", err)
		}
	}
	return &Store{db: db, d: d, log: log}, nil
}

// DB exposes the handle for tests and maintenance commands.
func (s *Store) DB() *sql.DB { return s.db }

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.fail("ping", err)
	}
	return nil
}

func (s *Store) q(query string) string { return s.d.Rebind(query) }

func (s *Store) fail(op string, err error) error {
	return lane.Unavailable(s.d.Name+" "+op, err)
}

// InsertOpen creates an open entry.
func (s *Store) InsertOpen(ctx context.Context, plate string, at time.Time) (lane.Entry, error) {
	at = at.UTC()
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO car_entries (numberplate, enter_timestamp) VALUES (?, ?) RETURNING entry_id`),
		plate, s.d.EncodeTime(at)).Scan(&id)
	if err != nil {
		return lane.Entry{}, s.fail("insert", err)
	}
	return lane.Entry{ID: id, Plate: plate, EnterTime: at}, nil
}

// CloseEarliestOpen selects and closes the earliest open entry in one
// transaction.
func (s *Store) CloseEarliestOpen(ctx context.Context, at time.Time) (lane.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lane.Entry{}, s.fail("begin exit", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, s.q(`SELECT `+columns+` FROM car_entries
        WHERE exit_timestamp IS NULL
        ORDER BY enter_timestamp, entry_id
        LIMIT 1`+s.d.LockEarliest))
	open, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return lane.Entry{}, lane.ErrNoOpenEntry
	}
	if err != nil {
		return lane.Entry{}, s.fail("select earliest open", err)
	}

	closed := open.Closed(at)
	res, err := tx.ExecContext(ctx, s.q(`UPDATE car_entries
        SET exit_timestamp = ?, minutes_elapsed = ?, fuel_used = ?, carbon_produced = ?
        WHERE entry_id = ? AND exit_timestamp IS NULL`),
		s.d.EncodeTime(*closed.ExitTime), closed.Derived.ElapsedMinutes,
		closed.Derived.FuelGrams, closed.Derived.CO2Grams, closed.ID)
	if err != nil {
		return lane.Entry{}, s.fail("close entry", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return lane.Entry{}, s.fail("close entry", fmt.Errorf("entry %d was closed concurrently", closed.ID))
	}
	if err := tx.Commit(); err != nil {
		return lane.Entry{}, s.fail("commit exit", err)
	}
	return closed, nil
}

// QueryClosed returns closed entries matching f ordered by enter time.
func (s *Store) QueryClosed(ctx context.Context, f lane.ClosedFilter) ([]lane.Entry, error) {
	where := []string{"exit_timestamp IS NOT NULL"}
	var args []any
	if !f.EnteredSince.IsZero() {
		where = append(where, "enter_timestamp >= ?")
		args = append(args, s.d.EncodeTime(f.EnteredSince))
	}
	if !f.ExitedFrom.IsZero() {
		where = append(where, "exit_timestamp >= ?")
		args = append(args, s.d.EncodeTime(f.ExitedFrom))
	}
	if !f.ExitedBefore.IsZero() {
		where = append(where, "exit_timestamp < ?")
		args = append(args, s.d.EncodeTime(f.ExitedBefore))
	}
	query := `SELECT ` + columns + ` FROM car_entries WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY enter_timestamp, entry_id`
	return s.list(ctx, "query closed", query, args...)
}

// QueryOpen returns open entries, earliest first.
func (s *Store) QueryOpen(ctx context.Context) ([]lane.Entry, error) {
	return s.list(ctx, "query open", `SELECT `+columns+` FROM car_entries
        WHERE exit_timestamp IS NULL ORDER BY enter_timestamp, entry_id`)
}

// CountOpen returns the number of open entries.
func (s *Store) CountOpen(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM car_entries WHERE exit_timestamp IS NULL`).Scan(&n); err != nil {
		return 0, s.fail("count open", err)
	}
	return n, nil
}

// LatestExit returns the most recent exit timestamp.
func (s *Store) LatestExit(ctx context.Context) (time.Time, bool, error) {
	col := s.d.NewTimeColumn()
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(exit_timestamp) FROM car_entries`).Scan(col); err != nil {
		return time.Time{}, false, s.fail("latest exit", err)
	}
	t, ok := col.Time()
	return t, ok, nil
}

// Recent returns up to limit entries, newest enter first.
func (s *Store) Recent(ctx context.Context, limit int) ([]lane.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.list(ctx, "recent", `SELECT `+columns+` FROM car_entries
        ORDER BY enter_timestamp DESC, entry_id DESC LIMIT ?`, limit)
}

// Import inserts historical entries in one transaction.
func (s *Store) Import(ctx context.Context, entries []lane.Entry) ([]lane.Entry, error) {
	norm := make([]lane.Entry, len(entries))
	for i, e := range entries {
		n, err := lane.Normalize(e)
		if err != nil {
			return nil, err
		}
		norm[i] = n
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail("begin import", err)
	}
	defer func() { _ = tx.Rollback() }()
	insert := s.q(`INSERT INTO car_entries (numberplate, enter_timestamp, exit_timestamp, minutes_elapsed, fuel_used, carbon_produced)
        VALUES (?, ?, ?, ?, ?, ?) RETURNING entry_id`)
	for i := range norm {
		e := &norm[i]
		var exit, minutes, fuel, co2 any
		if e.ExitTime != nil {
			exit = s.d.EncodeTime(*e.ExitTime)
			minutes, fuel, co2 = e.Derived.ElapsedMinutes, e.Derived.FuelGrams, e.Derived.CO2Grams
		}
		if err := tx.QueryRowContext(ctx, insert, e.Plate, s.d.EncodeTime(e.EnterTime), exit, minutes, fuel, co2).Scan(&e.ID); err != nil {
			return nil, s.fail("import", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail("commit import", err)
	}
	s.log.Debugf("imported %d entries", len(norm))
	return norm, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]lane.Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, s.fail(op, err)
	}
	defer func() { _ = rows.Close() }()
	var res []lane.Entry
	for rows.Next() {
		e, err := s.scan(rows)
		if err != nil {
			return nil, s.fail(op, err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(op, err)
	}
	return res, nil
}

type scanner interface{ Scan(dest ...any) error }

func (s *Store) scan(r scanner) (lane.Entry, error) {
	var e lane.Entry
	var minutes, fuel, co2 sql.NullFloat64
	enterCol, exitCol := s.d.NewTimeColumn(), s.d.NewTimeColumn()
	if err := r.Scan(&e.ID, &e.Plate, enterCol, exitCol, &minutes, &fuel, &co2); err != nil {
		return lane.Entry{}, err
	}
	e.EnterTime, _ = enterCol.Time()
	if exit, ok := exitCol.Time(); ok {
		e.ExitTime = &exit
		if minutes.Valid && fuel.Valid && co2.Valid {
			e.Derived = &lane.Derived{ElapsedMinutes: minutes.Float64, FuelGrams: fuel.Float64, CO2Grams: co2.Float64}
		} else {
			// rows written outside this store may lack derived columns
			d := lane.Derive(e.EnterTime, exit)
			e.Derived = &d
		}
	}
	return e, nil
}

var _ lane.Store = (*Store)(nil)
