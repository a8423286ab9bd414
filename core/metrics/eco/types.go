package eco

import "time"

// Totals summarises a set of closed entries.
type Totals struct {
	Cars       int     `json:"total_cars"`
	AvgMinutes float64 `json:"avg_minutes"`
	CO2Kg      float64 `json:"total_co2_kg"`
	FuelGrams  float64 `json:"fuel_grams"`
}

// HourBucket aggregates the closed entries that entered during one local hour.
type HourBucket struct {
	Start       time.Time `json:"start"`
	Hour        string    `json:"hour"`
	Cars        int       `json:"total_cars"`
	IdleSeconds int64     `json:"total_idle_seconds"`
	AvgMinutes  float64   `json:"avg_minutes"`
	CO2Kg       float64   `json:"co2_kg"`
}

// Period returns the bucket as a trend comparison input.
func (b HourBucket) Period() Period {
	return Period{Cars: b.Cars, AvgMinutes: b.AvgMinutes, CO2Kg: b.CO2Kg}
}

// PeakHour is the local hour with the highest CO2 output.
type PeakHour struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
	CO2Kg float64   `json:"co2_kg"`
}

// EmissionPoint is one slot of the emissions time series.
type EmissionPoint struct {
	Start time.Time `json:"start"`
	Time  string    `json:"time"`
	CO2Kg float64   `json:"co2_kg"`
}

// IdleBucket counts closed entries whose elapsed minutes fall in a range.
type IdleBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Idle histogram range labels.
const (
	IdleUnder5    = "<5 mins"
	Idle5To10     = "5-10 mins"
	Idle10AndMore = "10+ mins"
)

// Grid holds CO2 kilograms by ISO weekday (0 = Monday) and local hour.
type Grid [7][24]float64

// Hotspots wraps the heatmap grid.
type Hotspots struct {
	Grid Grid `json:"grid"`
}

// Period is one side of a trend comparison.
type Period struct {
	Cars       int
	AvgMinutes float64
	CO2Kg      float64
}

// IdleSeconds is the total idle time of the period.
func (p Period) IdleSeconds() float64 {
	if p.Cars == 0 {
		return 0
	}
	return p.AvgMinutes * 60 * float64(p.Cars)
}

// Trend is a rounded absolute percent change. IsPositive means the change is
// good for the metric.
type Trend struct {
	Value      int  `json:"value"`
	IsPositive bool `json:"isPositive"`
}

// Trends groups the period-over-period deltas shown on the dashboard.
type Trends struct {
	Vehicles Trend `json:"vehicles"`
	CO2      Trend `json:"co2"`
	Idle     Trend `json:"idle"`
}

// Summary is the dashboard headline object.
type Summary struct {
	TotalCars           int       `json:"total_cars"`
	AvgIdleMinutes      float64   `json:"avg_idle_minutes"`
	TotalCO2Kg          float64   `json:"total_co2_kg"`
	TreesRequired       float64   `json:"trees_required"`
	SustainabilityScore float64   `json:"sustainability_score"`
	FuelWastedGrams     float64   `json:"fuel_wasted_grams"`
	CO2PerVehicleKg     float64   `json:"co2_per_vehicle_kg"`
	PeakHour            *PeakHour `json:"peak_hour"`
	CarsInDriveThrough  int       `json:"cars_in_drive_through"`
	Trends              Trends    `json:"trends"`
}
