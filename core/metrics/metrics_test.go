package metrics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carbonlane/core/factory"
	"github.com/kilianp07/carbonlane/core/lane"
)

type recordSink struct {
	entered, exited, occupancy int
	err                        error
}

func (r *recordSink) RecordEntered(lane.Entry) error { r.entered++; return r.err }
func (r *recordSink) RecordExited(lane.Entry) error  { r.exited++; return r.err }
func (r *recordSink) RecordOccupancy(int) error      { r.occupancy++; return nil }

type plainSink struct{ NopSink }

func TestMultiSinkForwards(t *testing.T) {
	s1, s2 := &recordSink{}, &recordSink{err: errors.New("down")}
	m := NewMultiSink(s1, s2, plainSink{})
	assert.Error(t, m.RecordEntered(lane.Entry{}))
	assert.Error(t, m.RecordExited(lane.Entry{}))
	require.NoError(t, m.RecordOccupancy(2))
	assert.Equal(t, 1, s1.entered)
	assert.Equal(t, 1, s2.exited)
	assert.Equal(t, 1, s2.occupancy)
}

type closingSink struct {
	NopSink
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

func TestMultiSinkClose(t *testing.T) {
	c := &closingSink{}
	NewMultiSink(c, NopSink{}).Close()
	assert.True(t, c.closed)
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, m.Sinks, 2)

	_, err = NewSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
}

func TestConfigDecodeJSON(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"nop"},{"type":"prometheus"}]}`), &cfg))
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Has("prometheus"))
	assert.False(t, cfg.Has("influx"))
	assert.Equal(t, ":2112", cfg.PrometheusAddr)
	assert.Equal(t, 30*time.Second, cfg.SnapshotInterval)

	assert.Error(t, Config{Sinks: []factory.ModuleConfig{{}}}.Validate())
}
