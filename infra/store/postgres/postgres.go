// Package postgres stores lane entries in PostgreSQL through the pgx driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/infra/logger"
	"github.com/kilianp07/carbonlane/infra/store/sqlstore"
)

// Config holds the connection settings.
type Config struct {
	DSN          string        `json:"dsn"`
	MaxOpenConns int           `json:"max_open_conns"`
	PingTimeout  time.Duration `json:"ping_timeout"`
}

var dialect = sqlstore.Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS car_entries (
            entry_id BIGSERIAL PRIMARY KEY,
            numberplate VARCHAR(20) NOT NULL,
            enter_timestamp TIMESTAMPTZ NOT NULL,
            exit_timestamp TIMESTAMPTZ,
            minutes_elapsed DOUBLE PRECISION,
            fuel_used DOUBLE PRECISION,
            carbon_produced DOUBLE PRECISION,
            CHECK ((exit_timestamp IS NULL) = (minutes_elapsed IS NULL)),
            CHECK ((exit_timestamp IS NULL) = (carbon_produced IS NULL))
        )`,
		`CREATE INDEX IF NOT EXISTS car_entries_open_idx
            ON car_entries (enter_timestamp) WHERE exit_timestamp IS NULL`,
		`CREATE INDEX IF NOT EXISTS car_entries_exit_idx ON car_entries (exit_timestamp)`,
	},
	Numbered: true,
	// concurrent exits skip rows already claimed by another transaction
	LockEarliest:  ` FOR UPDATE SKIP LOCKED`,
	EncodeTime:    sqlstore.EncodeTimestamp,
	NewTimeColumn: func() sqlstore.TimeColumn { return &sqlstore.Timestamp{} },
}

// New connects to cfg.DSN, checks the connection and ensures the schema.
func New(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, lane.Unavailable("postgres connect", err)
	}
	return sqlstore.Open(ctx, db, dialect, logger.New("postgres-store"))
}
