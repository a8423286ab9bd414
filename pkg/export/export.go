// Package export renders lane entries and dashboard reports as JSON, CSV,
// XLSX or PDF.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/carbonlane/core/lane"
	"github.com/kilianp07/carbonlane/core/metrics/eco"
)

// Format is an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts json, csv, xlsx and pdf in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatJSON, FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", lane.InvalidInput("format", "unsupported format %q", s)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Report is the dashboard snapshot rendered by the report writers.
type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	TimeZone    string           `json:"time_zone"`
	Summary     eco.Summary      `json:"summary"`
	Hourly      []eco.HourBucket `json:"hourly"`
	Idle        []eco.IdleBucket `json:"idle_distribution"`
	Entries     []lane.Entry     `json:"entries"`
}

// Write renders r in format f.
func Write(w io.Writer, f Format, r Report) error {
	switch f {
	case FormatJSON:
		return WriteReportJSON(w, r)
	case FormatCSV:
		return WriteCSV(w, r.Entries)
	case FormatXLSX:
		return WriteXLSX(w, r)
	case FormatPDF:
		return WritePDF(w, r)
	}
	return fmt.Errorf("export: unsupported format %q", f)
}

// WriteJSON writes entries as a JSON array.
func WriteJSON(w io.Writer, entries []lane.Entry) error {
	if entries == nil {
		entries = []lane.Entry{}
	}
	return json.NewEncoder(w).Encode(entries)
}

// WriteReportJSON writes the whole report as indented JSON.
func WriteReportJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

var csvHeader = []string{
	"entry_id", "numberplate", "enter_timestamp", "exit_timestamp",
	"minutes_elapsed", "fuel_used", "carbon_produced",
}

// WriteCSV writes entries with a header row. Open entries leave the exit and
// derived columns empty.
func WriteCSV(w io.Writer, entries []lane.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(entryRow(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func entryRow(e lane.Entry) []string {
	rec := []string{
		strconv.FormatInt(e.ID, 10),
		e.Plate,
		e.EnterTime.UTC().Format(time.RFC3339),
		"", "", "", "",
	}
	if e.ExitTime != nil && e.Derived != nil {
		rec[3] = e.ExitTime.UTC().Format(time.RFC3339)
		rec[4] = formatFloat(e.Derived.ElapsedMinutes)
		rec[5] = formatFloat(e.Derived.FuelGrams)
		rec[6] = formatFloat(e.Derived.CO2Grams)
	}
	return rec
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
