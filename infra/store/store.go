// Package store builds the configured lane.Store.
package store

import (
	"context"

	"github.com/kilianp07/carbonlane/core/factory"
	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/infra/store/postgres"
	"github.com/kilianp07/carbonlane/infra/store/sqlite"
)

var registry = factory.NewRegistry[lane.Store]()

func init() {
	registry.MustRegister("memory", func(map[string]any) (lane.Store, error) {
		return lane.NewMemoryStore(), nil
	})
	registry.MustRegister("sqlite", func(conf map[string]any) (lane.Store, error) {
		var c sqlite.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return sqlite.New(context.Background(), c)
	})
	registry.MustRegister("postgres", func(conf map[string]any) (lane.Store, error) {
		var c postgres.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return postgres.New(context.Background(), c)
	})
}

// New builds the store described by cfg. An empty type means memory.
func New(cfg factory.ModuleConfig) (lane.Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return registry.Create(cfg)
}

// Types lists the registered store types.
func Types() []string { return registry.Names() }
