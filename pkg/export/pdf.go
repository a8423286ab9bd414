package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders a one-page dashboard summary.
func WritePDF(w io.Writer, r Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()
	pdf.Cell(0, 8, "Carbon Lane Report")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	line := func(format string, args ...any) {
		pdf.Cell(0, 6, fmt.Sprintf(format, args...))
		pdf.Ln(5)
	}
	s := r.Summary
	line("Generated: %s (%s)", r.GeneratedAt.UTC().Format(time.RFC3339), r.TimeZone)
	line("Total cars: %d", s.TotalCars)
	line("Average idle: %.1f min", s.AvgIdleMinutes)
	line("Total CO2: %.1f kg (%.3f kg per vehicle)", s.TotalCO2Kg, s.CO2PerVehicleKg)
	line("Fuel wasted: %.1f g", s.FuelWastedGrams)
	line("Trees required: %.1f", s.TreesRequired)
	line("Sustainability score: %.1f", s.SustainabilityScore)
	line("Cars in drive-through: %d", s.CarsInDriveThrough)
	if s.PeakHour != nil {
		line("Peak hour: %s (%.2f kg)", s.PeakHour.Label, s.PeakHour.CO2Kg)
	} else {
		line("Peak hour: none")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Idle range", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Vehicles", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, b := range r.Idle {
		pdf.CellFormat(50, 6, b.Range, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", b.Count), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	if len(r.Hourly) > 0 {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, "Hour", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Cars", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Idle (s)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "CO2 (kg)", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, h := range r.Hourly {
			pdf.CellFormat(40, 6, h.Start.Format("01-02 15:04"), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", h.Cars), "1", 0, "R", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%d", h.IdleSeconds), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", h.CO2Kg), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}
	return pdf.Output(w)
}
