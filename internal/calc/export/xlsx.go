// Package export moves grid runs in and out of Excel workbooks.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
	"Flashgrid/internal/olga"
	"Flashgrid/internal/props"
)

const PointsSheet = "Points"

// Workbook lays out one sheet per OLGA table, x down and y across, plus a
// Points sheet listing every converged point in service units.
func Workbook(doc *olga.Document, run *flash.Run) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fill(f, doc, run); err != nil {
		_ = f.Close()
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

func fill(f *excelize.File, doc *olga.Document, run *flash.Run) error {
	if len(doc.Tables) != len(props.Columns) {
		return fmt.Errorf("export: document has %d tables, want %d", len(doc.Tables), len(props.Columns))
	}
	first := f.GetSheetName(0)
	for k, col := range props.Columns {
		sheet := col.Key
		if k == 0 {
			if err := f.SetSheetName(first, sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		if err := writeTable(f, sheet, col.Name, doc, doc.Tables[k]); err != nil {
			return fmt.Errorf("export: %s: %w", sheet, err)
		}
	}

	if _, err := f.NewSheet(PointsSheet); err != nil {
		return err
	}
	if err := writePoints(f, run); err != nil {
		return fmt.Errorf("export: points: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet, title string, doc *olga.Document, t *olga.Table) error {
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return err
	}
	header := make([]interface{}, 0, len(doc.Y)+1)
	header = append(header, doc.Endpoint.XHeader+" \\ "+doc.Endpoint.YHeader)
	for _, y := range doc.Y {
		header = append(header, y)
	}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return err
	}
	for i, x := range doc.X {
		row := make([]interface{}, 0, t.NY+1)
		row = append(row, x)
		for j := 0; j < t.NY; j++ {
			row = append(row, t.At(i, j))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writePoints(f *excelize.File, run *flash.Run) error {
	results := run.Results()
	present := make([]flash.Property, 0)
	for _, p := range flash.Properties() {
		for _, s := range results {
			if s.Has(p) {
				present = append(present, p)
				break
			}
		}
	}

	header := []interface{}{"index", "x_idx", "y_idx", "phase"}
	for _, p := range present {
		header = append(header, p.String())
	}
	if err := f.SetSheetRow(PointsSheet, "A1", &header); err != nil {
		return err
	}
	for r, s := range results {
		row := []interface{}{s.Index, s.XIdx, s.YIdx, s.ResolvedPhase().String()}
		for _, p := range present {
			if v, ok := s.Get(p); ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(PointsSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// ReadComposition takes fluid names from column A and mole fractions from
// column B of the first sheet. Rows whose fraction does not parse, such as
// a header, are skipped.
func ReadComposition(r io.Reader) (fluid.Composition, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &fluid.ValidationError{Field: "file", Reason: "invalid workbook"}
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	var comp fluid.Composition
	for _, row := range rows {
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		frac, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			continue
		}
		comp = append(comp, fluid.Component{Fluid: strings.TrimSpace(row[0]), Fraction: frac})
	}
	if err := fluid.Validate(comp); err != nil {
		return nil, err
	}
	return comp, nil
}
