// Package report renders a one-page PDF summary of a flash grid run.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/units"
)

// MaxRows caps the sample table; the full grid belongs in TAB or XLSX.
const MaxRows = 40

type Input struct {
	Title  string
	Author string
	Notes  string
	Run    *flash.Run
	System units.System
}

// columns shown in the sample table after the two axis variables.
var columns = []flash.Property{
	flash.PropDensity,
	flash.PropVaporFraction,
	flash.PropEnthalpy,
	flash.PropEntropy,
}

func Generate(w io.Writer, input Input) error {
	run := input.Run
	if run == nil {
		return fmt.Errorf("report: no run")
	}
	if input.Title == "" {
		input.Title = "Flash Calculation Report"
	}
	xa, ya := run.Kind.Axes()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(input.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, tr(input.Title))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Run: %s", run.ID),
		fmt.Sprintf("Calculation: %s", run.Kind),
		fmt.Sprintf("Fluid: %s", run.Composition.Descriptor()),
		fmt.Sprintf("Molar mass: %.4f g/mol", run.MolarMass),
		fmt.Sprintf("Grid: %s, %d %s x %d %s points", run.Info.Type, run.Info.XPoints, xa.Name, run.Info.YPoints, ya.Name),
		fmt.Sprintf("Results: %d converged, %d failed", run.Info.TotalPoints, run.Info.FailedPoints),
		fmt.Sprintf("Elapsed: %s", run.Elapsed.Round(time.Millisecond)),
		fmt.Sprintf("Date: %s", run.Started.Format("2006-01-02 15:04")),
	}
	if input.Author != "" {
		lines = append(lines, fmt.Sprintf("Author: %s", input.Author))
	}
	for _, l := range lines {
		pdf.Cell(0, 6, tr(l))
		pdf.Ln(6)
	}
	if input.Notes != "" {
		pdf.Ln(4)
		pdf.MultiCell(0, 6, tr(input.Notes), "", "L", false)
	}

	props := append([]flash.Property{xa.Property, ya.Property}, columns...)
	results := run.Results()
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 9)
	width := 180.0 / float64(len(props)+1)
	for _, p := range props {
		unit := units.Unit(p.String(), input.System)
		pdf.CellFormat(width, 7, tr(fmt.Sprintf("%s [%s]", heading(p), unit)), "1", 0, "C", false, 0, "")
	}
	pdf.CellFormat(width, 7, "phase", "1", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	for k, s := range results {
		if k == MaxRows {
			pdf.Ln(2)
			pdf.Cell(0, 6, fmt.Sprintf("... %d more points not shown", len(results)-MaxRows))
			break
		}
		c := s.Converted(input.System, run.MolarMass)
		for _, p := range props {
			text := "-"
			if v, ok := c.Get(p); ok {
				text = fmt.Sprintf("%.5g", v)
			}
			pdf.CellFormat(width, 6, text, "1", 0, "R", false, 0, "")
		}
		pdf.CellFormat(width, 6, c.ResolvedPhase().String(), "1", 1, "C", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return pdf.Output(w)
}

func heading(p flash.Property) string {
	return strings.ReplaceAll(p.String(), "_", " ")
}
