package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "summary"
	entriesSheet = "entries"
	hourlySheet  = "hourly"
)

// WriteXLSX writes a workbook with summary, entries and hourly sheets.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	for _, name := range []string{entriesSheet, hourlySheet} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	s := r.Summary
	rows := [][]any{
		{"Carbon lane report"},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Time zone", r.TimeZone},
		{"Total cars", s.TotalCars},
		{"Avg idle minutes", s.AvgIdleMinutes},
		{"Total CO2 (kg)", s.TotalCO2Kg},
		{"CO2 per vehicle (kg)", s.CO2PerVehicleKg},
		{"Fuel wasted (g)", s.FuelWastedGrams},
		{"Trees required", s.TreesRequired},
		{"Sustainability score", s.SustainabilityScore},
		{"Cars in drive-through", s.CarsInDriveThrough},
	}
	if s.PeakHour != nil {
		rows = append(rows, []any{"Peak hour", s.PeakHour.Label})
	}
	for _, b := range r.Idle {
		rows = append(rows, []any{"Idle " + b.Range, b.Count})
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}

	entryRows := [][]any{toAny(csvHeader)}
	for _, e := range r.Entries {
		row := []any{e.ID, e.Plate, e.EnterTime.UTC().Format(time.RFC3339)}
		if e.ExitTime != nil && e.Derived != nil {
			row = append(row, e.ExitTime.UTC().Format(time.RFC3339),
				e.Derived.ElapsedMinutes, e.Derived.FuelGrams, e.Derived.CO2Grams)
		}
		entryRows = append(entryRows, row)
	}
	if err := writeRows(f, entriesSheet, entryRows); err != nil {
		return err
	}

	hourRows := [][]any{{"hour", "total_cars", "total_idle_seconds", "co2_kg"}}
	for _, h := range r.Hourly {
		hourRows = append(hourRows, []any{h.Start.Format("2006-01-02 15:04"), h.Cars, h.IdleSeconds, h.CO2Kg})
	}
	if err := writeRows(f, hourlySheet, hourRows); err != nil {
		return err
	}
	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
