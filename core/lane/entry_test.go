package lane

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveFiveMinutes(t *testing.T) {
	enter := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	d := Derive(enter, enter.Add(5*time.Minute))
	assert.Equal(t, 5.0, d.ElapsedMinutes)
	assert.Equal(t, 60.0, d.FuelGrams)
	assert.Equal(t, 135.0, d.CO2Grams)
}

func TestDeriveRoundsMinutesFirst(t *testing.T) {
	enter := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	// 100 seconds = 1.6666... minutes -> 1.67
	d := Derive(enter, enter.Add(100*time.Second))
	assert.Equal(t, 1.67, d.ElapsedMinutes)
	assert.Equal(t, Round(1.67*FuelGramsPerMinute, 2), d.FuelGrams)
	assert.Equal(t, Round(1.67*CO2GramsPerMinute, 2), d.CO2Grams)
}

func TestDerivedFieldsProportional(t *testing.T) {
	enter := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	for secs := 0; secs < 3600; secs += 37 {
		d := Derive(enter, enter.Add(time.Duration(secs)*time.Second))
		require.InDelta(t, d.ElapsedMinutes*12, d.FuelGrams, 0.005, "secs=%d", secs)
		require.InDelta(t, d.ElapsedMinutes*27, d.CO2Grams, 0.005, "secs=%d", secs)
	}
}

func TestEntryStates(t *testing.T) {
	enter := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	open := Entry{ID: 1, Plate: "ABC1234", EnterTime: enter}
	assert.True(t, open.IsOpen())
	assert.True(t, open.Valid())
	assert.Nil(t, open.Derived)

	closed := open.Closed(enter.Add(3 * time.Minute))
	assert.False(t, closed.IsOpen())
	assert.True(t, closed.Valid())
	require.NotNil(t, closed.Derived)
	assert.Equal(t, 3.0, closed.Derived.ElapsedMinutes)
	assert.True(t, open.IsOpen(), "Closed must not mutate the receiver")

	half := Entry{ID: 2, Plate: "X", EnterTime: enter, ExitTime: closed.ExitTime}
	assert.False(t, half.Valid())
}

func TestClosedClampsExitBeforeEnter(t *testing.T) {
	enter := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	e := Entry{Plate: "ABC1234", EnterTime: enter}.Closed(enter.Add(-time.Minute))
	assert.True(t, e.ExitTime.Equal(enter))
	assert.Equal(t, 0.0, e.Derived.ElapsedMinutes)
}

func TestEntryJSON(t *testing.T) {
	enter := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	open := Entry{ID: 7, Plate: "ABC1234", EnterTime: enter}
	b, err := json.Marshal(open)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entry_id":7,"numberplate":"ABC1234","enter_timestamp":"2024-03-04T10:00:00Z",
		"exit_timestamp":null,"minutes_elapsed":null,"fuel_used":null,"carbon_produced":null}`, string(b))

	closed := open.Closed(enter.Add(5 * time.Minute))
	b, err = json.Marshal(closed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entry_id":7,"numberplate":"ABC1234","enter_timestamp":"2024-03-04T10:00:00Z",
		"exit_timestamp":"2024-03-04T10:05:00Z","minutes_elapsed":5,"fuel_used":60,"carbon_produced":135}`, string(b))

	var back Entry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, closed.Derived, back.Derived)
}

func TestNormalize(t *testing.T) {
	enter := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	exit := enter.Add(-time.Minute)
	_, err := Normalize(Entry{Plate: "A", EnterTime: enter, ExitTime: &exit})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Normalize(Entry{EnterTime: enter})
	assert.ErrorIs(t, err, ErrInvalidInput)

	exit = enter.Add(10 * time.Minute)
	n, err := Normalize(Entry{ID: 99, Plate: "A", EnterTime: enter, ExitTime: &exit, Derived: &Derived{CO2Grams: 1}})
	require.NoError(t, err)
	assert.Zero(t, n.ID)
	assert.Equal(t, 270.0, n.Derived.CO2Grams)
}
