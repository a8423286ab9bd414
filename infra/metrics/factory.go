package metrics

import (
	"github.com/kilianp07/carbonlane/core/factory"
	coremetrics "github.com/kilianp07/carbonlane/core/metrics"
)

func init() {
	_ = coremetrics.RegisterSink("prometheus", func(map[string]any) (coremetrics.LaneSink, error) {
		return NewPromSink()
	})

	_ = coremetrics.RegisterSink("influx", func(conf map[string]any) (coremetrics.LaneSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
