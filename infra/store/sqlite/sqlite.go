// Package sqlite stores lane entries in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/carbonlane/infra/logger"
	"github.com/kilianp07/carbonlane/infra/store/sqlstore"
)

// Config selects the database file. ":memory:" keeps everything in memory.
type Config struct {
	Path string `json:"path"`
}

var dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`PRAGMA busy_timeout = 5000`,
		`CREATE TABLE IF NOT EXISTS car_entries (
            entry_id INTEGER PRIMARY KEY AUTOINCREMENT,
            numberplate TEXT NOT NULL,
            enter_timestamp INTEGER NOT NULL,
            exit_timestamp INTEGER,
            minutes_elapsed REAL,
            fuel_used REAL,
            carbon_produced REAL,
            CHECK ((exit_timestamp IS NULL) = (minutes_elapsed IS NULL)),
            CHECK ((exit_timestamp IS NULL) = (carbon_produced IS NULL))
        )`,
		`CREATE INDEX IF NOT EXISTS car_entries_open_idx
            ON car_entries (enter_timestamp) WHERE exit_timestamp IS NULL`,
		`CREATE INDEX IF NOT EXISTS car_entries_exit_idx ON car_entries (exit_timestamp)`,
	},
	EncodeTime:    sqlstore.EncodeUnixNanos,
	NewTimeColumn: func() sqlstore.TimeColumn { return &sqlstore.UnixNanos{} },
}

// New opens or creates the database at cfg.Path. The pool holds a single
// connection, so writers are serialized and exits cannot interleave.
func New(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	return sqlstore.Open(ctx, db, dialect, logger.New("sqlite-store"))
}
