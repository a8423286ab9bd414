package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kilianp07/carbonlane/core/factory"
	"github.com/kilianp07/carbonlane/core/ledger"
	"github.com/kilianp07/carbonlane/core/timebucket"
	"github.com/kilianp07/carbonlane/infra/store"
)

// DefaultTimeZone is the reporting zone used when a request sends no ?tz=.
const DefaultTimeZone = "America/Los_Angeles"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `json:"addr"`
	CORSOrigins     []string      `json:"cors_origins"`
	TimeZone        string        `json:"time_zone"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.TimeZone == "" {
		c.TimeZone = DefaultTimeZone
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("http: addr is required")
	}
	if _, err := timebucket.LoadZone(c.TimeZone); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// Location resolves TimeZone. Call after Validate.
func (c HTTPConfig) Location() *time.Location {
	loc, err := timebucket.LoadZone(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StoreConfig selects the record store backend.
type StoreConfig factory.ModuleConfig

func (c *StoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "sqlite"
		if c.Conf == nil {
			c.Conf = map[string]any{"path": "carbonlane.db"}
		}
	}
}

func (c StoreConfig) Validate() error {
	if !slices.Contains(store.Types(), c.Type) {
		return fmt.Errorf("store: unknown type %q (known: %s)", c.Type, strings.Join(store.Types(), ", "))
	}
	return nil
}

// Module returns the factory form of the section.
func (c StoreConfig) Module() factory.ModuleConfig { return factory.ModuleConfig(c) }

// LoggingConfig sets the minimum log level.
type LoggingConfig struct {
	Level string `json:"level"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case zerolog.LevelDebugValue, zerolog.LevelInfoValue, zerolog.LevelWarnValue, zerolog.LevelErrorValue:
		return nil
	}
	return fmt.Errorf("logging: unknown level %q", c.Level)
}

// LedgerConfig bounds credit purchases.
type LedgerConfig struct {
	MaxPurchase  float64 `json:"max_purchase"`
	HistoryLimit int     `json:"history_limit"`
}

func (c *LedgerConfig) SetDefaults() {
	if c.MaxPurchase <= 0 {
		c.MaxPurchase = ledger.DefaultMaxPurchase
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = ledger.DefaultHistoryLimit
	}
}

func (c LedgerConfig) Validate() error {
	if c.MaxPurchase <= 0 || c.HistoryLimit <= 0 {
		return fmt.Errorf("ledger: max_purchase and history_limit must be positive")
	}
	return nil
}

// Options converts the section to ledger options.
func (c LedgerConfig) Options() []ledger.Option {
	return []ledger.Option{ledger.WithMaxPurchase(c.MaxPurchase), ledger.WithHistoryLimit(c.HistoryLimit)}
}
