package lane

import (
	"encoding/json"
	"math"
	"time"
)

const (
	// FuelGramsPerMinute is the idle fuel burn applied to every closed entry.
	FuelGramsPerMinute = 12.0
	// CO2GramsPerMinute is the idle CO2 output applied to every closed entry.
	CO2GramsPerMinute = 27.0
)

// Derived holds the quantities computed from an entry's enter and exit timestamps.
type Derived struct {
	ElapsedMinutes float64
	FuelGrams      float64
	CO2Grams       float64
}

// Entry is one traversal of the drive-through lane. An entry is open while
// ExitTime is nil; closed entries always carry Derived.
type Entry struct {
	ID        int64
	Plate     string
	EnterTime time.Time
	ExitTime  *time.Time
	Derived   *Derived
}

type entryJSON struct {
	ID             int64      `json:"entry_id"`
	Plate          string     `json:"numberplate"`
	EnterTime      time.Time  `json:"enter_timestamp"`
	ExitTime       *time.Time `json:"exit_timestamp"`
	ElapsedMinutes *float64   `json:"minutes_elapsed"`
	FuelGrams      *float64   `json:"fuel_used"`
	CO2Grams       *float64   `json:"carbon_produced"`
}

// MarshalJSON flattens the derived fields; open entries encode them as null.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{ID: e.ID, Plate: e.Plate, EnterTime: e.EnterTime.UTC()}
	if e.ExitTime != nil {
		exit := e.ExitTime.UTC()
		out.ExitTime = &exit
	}
	if e.Derived != nil {
		d := *e.Derived
		out.ElapsedMinutes = &d.ElapsedMinutes
		out.FuelGrams = &d.FuelGrams
		out.CO2Grams = &d.CO2Grams
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. Derived fields are recomputed
// from the timestamps rather than trusted from the payload.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var in entryJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*e = Entry{ID: in.ID, Plate: in.Plate, EnterTime: in.EnterTime.UTC()}
	if in.ExitTime != nil {
		*e = e.Closed(*in.ExitTime)
	}
	return nil
}

// IsOpen reports whether the vehicle is still in the lane.
func (e Entry) IsOpen() bool { return e.ExitTime == nil }

// Closed returns a copy of e resolved at exit. The receiver is left untouched.
// An exit earlier than the enter timestamp is clamped to it.
func (e Entry) Closed(exit time.Time) Entry {
	exit = exit.UTC()
	if exit.Before(e.EnterTime) {
		exit = e.EnterTime.UTC()
	}
	d := Derive(e.EnterTime, exit)
	e.ExitTime = &exit
	e.Derived = &d
	return e
}

// Valid reports whether e is in one of the two legal states.
func (e Entry) Valid() bool {
	if e.ExitTime == nil {
		return e.Derived == nil
	}
	return e.Derived != nil && !e.ExitTime.Before(e.EnterTime)
}

// Derive computes elapsed minutes, fuel and CO2 for a traversal. Elapsed
// minutes are rounded to two decimals first so fuel and CO2 stay exact
// multiples of the rounded duration.
func Derive(enter, exit time.Time) Derived {
	minutes := Round(exit.Sub(enter).Seconds()/60, 2)
	return Derived{
		ElapsedMinutes: minutes,
		FuelGrams:      Round(minutes*FuelGramsPerMinute, 2),
		CO2Grams:       Round(minutes*CO2GramsPerMinute, 2),
	}
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
