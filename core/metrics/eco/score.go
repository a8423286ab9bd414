package eco

import (
	"math"

	"github.com/kilianp07/carbonlane/core/lane"
)

const (
	// TreeKgPerYear is the CO2 one tree absorbs in a year.
	TreeKgPerYear = 22.0

	maxCO2Penalty  = 50.0
	maxIdlePenalty = 40.0
	co2Weight      = 30.0
	idleWeight     = 4.0
)

// EfficiencyScore rates a period from 1 to 100. CO2 is per vehicle in kg.
// A period without cars scores 100.
func EfficiencyScore(totalCO2Kg, avgMinutes float64, cars int) float64 {
	if cars <= 0 {
		return 100
	}
	co2Penalty := math.Min(maxCO2Penalty, totalCO2Kg/float64(cars)*co2Weight)
	idlePenalty := math.Min(maxIdlePenalty, avgMinutes*idleWeight)
	score := math.Max(1, math.Min(100, 100-co2Penalty-idlePenalty))
	return lane.Round(score, 1)
}

// PercentChange returns the rounded percent change from prev to cur, or 0
// when prev is 0.
func PercentChange(cur, prev float64) int {
	if prev == 0 {
		return 0
	}
	return int(math.Round((cur - prev) / prev * 100))
}

// CompareTrends computes the dashboard trends between two adjacent periods.
func CompareTrends(cur, prev Period) Trends {
	v := PercentChange(float64(cur.Cars), float64(prev.Cars))
	c := PercentChange(cur.CO2Kg, prev.CO2Kg)
	i := PercentChange(cur.IdleSeconds(), prev.IdleSeconds())
	return Trends{
		Vehicles: Trend{Value: abs(v), IsPositive: v > 0},
		CO2:      Trend{Value: abs(c), IsPositive: c < 0},
		Idle:     Trend{Value: abs(i), IsPositive: i < 0},
	}
}

// TreesRequired is the number of trees needed to absorb co2Kg in a year.
func TreesRequired(co2Kg float64) float64 {
	if co2Kg <= 0 {
		return 0
	}
	return lane.Round(co2Kg/TreeKgPerYear, 1)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
