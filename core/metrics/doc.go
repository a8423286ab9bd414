// Package metrics defines the sinks that observe lane traffic. Sinks are
// built from configuration through a registry; backends such as Prometheus
// and InfluxDB register themselves from infra/metrics. The dashboard
// aggregations live in the eco subpackage.
package metrics
