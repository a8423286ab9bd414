package metrics

import (
	"errors"
	"time"

	"github.com/kilianp07/carbonlane/core/factory"
)

// Config selects the metrics sinks and the Prometheus listener.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" koanf:"sinks"`
	// PrometheusAddr serves /metrics when a prometheus sink is configured.
	PrometheusAddr string `json:"prometheus_addr" koanf:"prometheus_addr"`
	// SnapshotInterval paces the dashboard summary gauges.
	SnapshotInterval time.Duration `json:"snapshot_interval" koanf:"snapshot_interval"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":2112"
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = 30 * time.Second
	}
}

// Validate checks the sink list.
func (c Config) Validate() error {
	for _, s := range c.Sinks {
		if s.Type == "" {
			return errors.New("metrics: sink type is required")
		}
	}
	return nil
}

// Has reports whether a sink of the given type is configured.
func (c Config) Has(typ string) bool {
	for _, s := range c.Sinks {
		if s.Type == typ {
			return true
		}
	}
	return false
}
