package lanes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/logger"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func newSim(t *testing.T) (*lane.Simulator, *stepClock) {
	t.Helper()
	clk := &stepClock{t: time.Date(2024, 7, 3, 10, 0, 0, 0, time.UTC)}
	sim, err := lane.NewSimulator(lane.NewMemoryStore(), lane.WithClock(clk))
	require.NoError(t, err)
	return sim, clk
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestEnterAndExit(t *testing.T) {
	sim, clk := newSim(t)
	log := logger.NopLogger{}

	rec := do(NewEnterHandler(sim, log), http.MethodPost, "/car-entries/enter", `{"numberplate":"ABC1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entry_id":1,"numberplate":"ABC1234","enter_timestamp":"2024-07-03T10:00:00Z",
		"exit_timestamp":null,"minutes_elapsed":null,"fuel_used":null,"carbon_produced":null}`, rec.Body.String())

	clk.t = clk.t.Add(5 * time.Minute)
	rec = do(NewExitHandler(sim, log), http.MethodPost, "/car-entries/exit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ABC1234", got["numberplate"])
	assert.Equal(t, "2024-07-03T10:05:00Z", got["exit_timestamp"])
	assert.EqualValues(t, 5, got["minutes_elapsed"])
	assert.EqualValues(t, 60, got["fuel_used"])
	assert.EqualValues(t, 135, got["carbon_produced"])
}

func TestEnterWithoutBodyGeneratesPlate(t *testing.T) {
	sim, _ := newSim(t)
	rec := do(NewEnterHandler(sim, logger.NopLogger{}), http.MethodPost, "/car-entries/enter", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Regexp(t, `^SIM-\d{5}$`, got["numberplate"])
}

func TestEnterRejectsBadInput(t *testing.T) {
	sim, _ := newSim(t)
	h := NewEnterHandler(sim, logger.NopLogger{})

	rec := do(h, http.MethodPost, "/car-entries/enter", `{"numberplate":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/car-entries/enter", `{"numberplate":"`+strings.Repeat("X", 21)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "numberplate")
}

func TestExitEmptyLane(t *testing.T) {
	sim, _ := newSim(t)
	rec := do(NewExitHandler(sim, logger.NopLogger{}), http.MethodPost, "/car-entries/exit", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No car in drive-through to exit"}`, rec.Body.String())
}

func TestListAndPending(t *testing.T) {
	sim, clk := newSim(t)
	log := logger.NopLogger{}
	ctx := context.Background()
	for _, p := range []string{"A1", "B2", "C3"} {
		_, err := sim.Enter(ctx, p)
		require.NoError(t, err)
		clk.t = clk.t.Add(time.Minute)
	}
	_, err := sim.Exit(ctx)
	require.NoError(t, err)

	rec := do(NewListHandler(sim, log), http.MethodGet, "/car-entries?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []lane.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "C3", list[0].Plate)
	assert.Equal(t, "B2", list[1].Plate)

	rec = do(NewPendingHandler(sim, log), http.MethodGet, "/car-entries/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []lane.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 2)
	assert.Equal(t, "B2", pending[0].Plate)

	for _, q := range []string{"limit=0", "limit=501", "limit=abc"} {
		rec = do(NewListHandler(sim, log), http.MethodGet, "/car-entries?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestPendingEmptyIsArray(t *testing.T) {
	sim, _ := newSim(t)
	rec := do(NewPendingHandler(sim, logger.NopLogger{}), http.MethodGet, "/car-entries/pending", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}
