// Package olga writes flash grids in the OLGA TAB fluid property format.
package olga

import (
	"fmt"
	"math"
	"strings"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
	"Flashgrid/internal/props"
)

// headerConstant trails the grid dimensions on the first line.
const headerConstant = ".276731E-08"

// FormattingError is returned when no valid table can be produced.
type FormattingError struct {
	Stage string
	Err   error
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("olga: %s: %v", e.Stage, e.Err)
}

func (e *FormattingError) Unwrap() error { return e.Err }

// Table is one property over the grid, x-major. Cells without a result
// keep their zero default.
type Table struct {
	NX, NY int
	Values []float64
}

func NewTable(nx, ny int) *Table {
	return &Table{NX: nx, NY: ny, Values: make([]float64, nx*ny)}
}

func (t *Table) Set(i, j int, v float64) { t.Values[i*t.NY+j] = v }

func (t *Table) At(i, j int) float64 { return t.Values[i*t.NY+j] }

// Document is everything a TAB file holds, before rendering.
type Document struct {
	Endpoint   Endpoint
	Descriptor string
	X, Y       []float64
	Bubble     []float64
	Dew        []float64
	Tables     []*Table
	// Mapped counts results that found a cell.
	Mapped int
}

// Build maps sparse results onto dense per-property tables. x and y are the
// grid coordinates in service units; results may be in any order.
func Build(kind flash.Kind, x, y []float64, results []*flash.State, comp fluid.Composition, molarMass float64) (*Document, error) {
	if len(x) == 0 || len(y) == 0 {
		return nil, &FormattingError{Stage: "grid", Err: fmt.Errorf("empty axis (%d x %d)", len(x), len(y))}
	}
	ep := EndpointFor(kind)
	doc := &Document{
		Endpoint:   ep,
		Descriptor: comp.Descriptor(),
		X:          scaled(x, ep.XMultiplier),
		Y:          scaled(y, ep.YMultiplier),
		Bubble:     BubbleLine(x, len(y)),
		Dew:        DewLine(x, len(y)),
		Tables:     make([]*Table, len(props.Columns)),
	}
	for k := range doc.Tables {
		doc.Tables[k] = NewTable(len(x), len(y))
	}

	loc := locator{kind: kind, x: x, y: y}
	for _, s := range results {
		if s == nil {
			continue
		}
		i, j, ok := loc.cell(s)
		if !ok {
			continue
		}
		doc.Mapped++
		phase := s.ResolvedPhase()
		for k, col := range props.Columns {
			if v, ok := col.Value(s, phase, comp, molarMass); ok {
				doc.Tables[k].Set(i, j, v)
			}
		}
	}
	return doc, nil
}

// Render writes the document in TAB layout. Identical documents render to
// identical bytes.
func (d *Document) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s'    %d  %d    %s\n", d.Descriptor, len(d.X), len(d.Y), headerConstant)
	b.WriteString(FormatValues(d.X))
	b.WriteString(FormatValues(d.Y))
	b.WriteString(FormatValues(d.Bubble))
	b.WriteString(FormatValues(d.Dew))
	for k, col := range props.Columns {
		b.WriteString(" " + col.Name + "                \n")
		b.WriteString(FormatValues(d.Tables[k].Values))
	}
	return b.String()
}

// Encode builds and renders a TAB file in one step.
func Encode(kind flash.Kind, x, y []float64, results []*flash.State, comp fluid.Composition, molarMass float64) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", &FormattingError{Stage: "encode", Err: fmt.Errorf("%v", r)}
		}
	}()
	doc, err := Build(kind, x, y, results, comp, molarMass)
	if err != nil {
		return "", err
	}
	return doc.Render(), nil
}

func scaled(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * k
	}
	return out
}

// BubbleLine is a placeholder envelope: the highest grid pressure in Pa
// decaying linearly by up to 30% along the y axis.
func BubbleLine(x []float64, ny int) []float64 {
	top := x[0]
	for _, v := range x {
		top = math.Max(top, v)
	}
	top *= 1e5
	out := make([]float64, ny)
	for i := range out {
		out[i] = top * (1 - 0.3*float64(i)/float64(ny))
	}
	return out
}

// DewLine is a placeholder envelope: half the lowest grid pressure in Pa
// rising towards the full value, listed in reverse y order.
func DewLine(x []float64, ny int) []float64 {
	low := x[0]
	for _, v := range x {
		low = math.Min(low, v)
	}
	low *= 1e5
	out := make([]float64, ny)
	for i := range out {
		out[i] = low * (0.5 + 0.5*float64(i)/float64(ny))
	}
	return out
}

type locator struct {
	kind flash.Kind
	x, y []float64
}

// cell finds the grid cell of a result: explicit axis indices first, then
// the row-major flat index, then the nearest coordinates by axis value.
func (l locator) cell(s *flash.State) (i, j int, ok bool) {
	nx, ny := len(l.x), len(l.y)
	switch {
	case s.XIdx != flash.NoIndex && s.YIdx != flash.NoIndex:
		i, j = s.XIdx, s.YIdx
	case s.Index != flash.NoIndex:
		if s.Index < 0 {
			return 0, 0, false
		}
		i, j = s.Index/ny, s.Index%ny
	default:
		xa, ya := l.kind.Axes()
		xv, okx := s.Get(xa.Property)
		yv, oky := s.Get(ya.Property)
		if !okx || !oky {
			return 0, 0, false
		}
		i, j = nearest(l.x, xv), nearest(l.y, yv)
	}
	if i < 0 || i >= nx || j < 0 || j >= ny {
		return 0, 0, false
	}
	return i, j, true
}

func nearest(grid []float64, v float64) int {
	best, dist := 0, math.Inf(1)
	for k, g := range grid {
		if d := math.Abs(g - v); d < dist {
			best, dist = k, d
		}
	}
	return best
}
