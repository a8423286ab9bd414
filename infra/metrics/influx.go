package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/carbonlane/core/lane"
	coremetrics "github.com/kilianp07/carbonlane/core/metrics"
	"github.com/kilianp07/carbonlane/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving lane points.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

// InfluxSink writes lane events to InfluxDB.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// NewInfluxSink creates a sink for cfg. It does not contact the server.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  cfg.Timeout,
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings InfluxDB and returns a NopSink when the
// health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.LaneSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEntered writes a lane_entry point at the enter time.
func (s *InfluxSink) RecordEntered(e lane.Entry) error {
	return s.write(EntryPoint(e))
}

// RecordExited writes a lane_exit point at the exit time.
func (s *InfluxSink) RecordExited(e lane.Entry) error {
	if e.ExitTime == nil || e.Derived == nil {
		return nil
	}
	return s.write(ExitPoint(e))
}

// RecordOccupancy writes the current number of vehicles in the lane.
func (s *InfluxSink) RecordOccupancy(n int) error {
	p := write.NewPointWithMeasurement("lane_occupancy").
		AddField("vehicles", n).
		SetTime(time.Now().UTC())
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

// EntryPoint renders an entry as a lane_entry point.
func EntryPoint(e lane.Entry) *write.Point {
	return write.NewPointWithMeasurement("lane_entry").
		AddTag("numberplate", e.Plate).
		AddField("entry_id", e.ID).
		SetTime(e.EnterTime)
}

// ExitPoint renders a closed entry as a lane_exit point.
func ExitPoint(e lane.Entry) *write.Point {
	return write.NewPointWithMeasurement("lane_exit").
		AddTag("numberplate", e.Plate).
		AddField("entry_id", e.ID).
		AddField("minutes_elapsed", e.Derived.ElapsedMinutes).
		AddField("fuel_used", e.Derived.FuelGrams).
		AddField("carbon_produced", e.Derived.CO2Grams).
		SetTime(*e.ExitTime)
}
