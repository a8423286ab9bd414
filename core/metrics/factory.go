package metrics

import "github.com/kilianp07/carbonlane/core/factory"

var sinkRegistry = factory.NewRegistry[LaneSink]()

// RegisterSink adds a sink factory identified by name.
func RegisterSink(name string, f factory.Factory[LaneSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewSink builds the configured sinks. No config yields a NopSink and
// several configs yield a MultiSink.
func NewSink(cfgs []factory.ModuleConfig) (LaneSink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]LaneSink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}

func init() {
	sinkRegistry.MustRegister("nop", func(map[string]any) (LaneSink, error) { return NopSink{}, nil })
}
