// Package infra holds the adapters behind the core contracts: SQL record
// stores, Prometheus and InfluxDB sinks, the MQTT detection subscriber and
// the zerolog logger.
package infra
