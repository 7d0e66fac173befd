package flashapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"Flashgrid/internal/config"
	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
	"Flashgrid/internal/grid"
	"Flashgrid/internal/props"
	"Flashgrid/internal/units"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatOLGA Format = "olga_tab"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type RangeInput struct {
	From *float64 `json:"from"`
	To   *float64 `json:"to"`
}

type VariableInput struct {
	Range      RangeInput `json:"range"`
	Resolution *float64   `json:"resolution" validate:"omitempty,gt=0"`
}

type ParallelInput struct {
	UseParallel  *bool `json:"use_parallel"`
	NumProcesses int   `json:"num_processes" validate:"gte=0,lte=256"`
	ChunkSize    int   `json:"chunk_size" validate:"gte=0"`
}

type CalculationInput struct {
	Properties        []string       `json:"properties"`
	UnitsSystem       string         `json:"units_system"`
	ResponseFormat    string         `json:"response_format" validate:"omitempty,oneof=json olga_tab xlsx pdf"`
	GridType          string         `json:"grid_type"`
	EnhancementFactor *float64       `json:"enhancement_factor" validate:"omitempty,gt=0"`
	BoundaryZoneWidth *float64       `json:"boundary_zone_width" validate:"omitempty,gt=0"`
	Traversal         string         `json:"traversal" validate:"omitempty,oneof=x_major y_major"`
	PointTimeoutMS    int            `json:"point_timeout_ms" validate:"gte=0"`
	ParallelOptions   *ParallelInput `json:"parallel_options"`
}

type Input struct {
	Composition fluid.Composition        `json:"composition" validate:"required,min=1,dive"`
	Variables   map[string]VariableInput `json:"variables" validate:"required,dive"`
	Calculation CalculationInput         `json:"calculation"`
}

// Defaults carries the service-wide settings a request may override.
type Defaults struct {
	Ranges    map[string]config.Range
	Options   flash.Options
	MaxPoints int
}

// Prepared is a validated request ready for the orchestrator.
type Prepared struct {
	Request flash.Request
	Format  Format
	System  units.System
}

// Decode reads an Input, rejecting unknown fields.
func Decode(r io.Reader) (Input, error) {
	var in Input
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return Input{}, err
		}
		return Input{}, &fluid.ValidationError{Field: "body", Reason: "invalid request payload: " + err.Error()}
	}
	return in, nil
}

// Prepare validates in for kind and folds in the defaults. olga forces the
// OLGA TAB format and adds the properties the encoder needs.
func Prepare(kind flash.Kind, in Input, d Defaults, olga bool) (Prepared, error) {
	if err := validate.Struct(in); err != nil {
		return Prepared{}, validationError(err)
	}
	if err := fluid.Validate(in.Composition); err != nil {
		return Prepared{}, err
	}

	calc := in.Calculation
	format := Format(strings.ToLower(calc.ResponseFormat))
	if format == "" {
		format = FormatJSON
	}
	if olga {
		format = FormatOLGA
	}
	sys, err := units.ParseSystem(calc.UnitsSystem)
	if err != nil {
		return Prepared{}, &fluid.ValidationError{Field: "calculation.units_system", Reason: err.Error()}
	}

	var properties []flash.Property
	var unknown []string
	for _, name := range calc.Properties {
		p, ok := flash.ParseProperty(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		properties = append(properties, p)
	}
	if len(unknown) > 0 {
		return Prepared{}, &fluid.ValidationError{Field: "calculation.properties", Reason: "unknown properties: " + strings.Join(unknown, ", ")}
	}
	tabular := format == FormatOLGA || format == FormatXLSX
	if len(properties) == 0 && !tabular {
		return Prepared{}, &fluid.ValidationError{Field: "calculation.properties", Reason: "no properties specified for calculation"}
	}
	if tabular {
		properties = union(properties, props.Required())
	}

	opts := d.Options
	opts.Progress = nil
	if olga {
		// The OLGA endpoint builds large tables; it runs in parallel unless told otherwise.
		opts.Parallel = true
	}
	if calc.GridType != "" {
		if opts.Strategy, err = grid.ParseStrategy(calc.GridType); err != nil {
			return Prepared{}, &fluid.ValidationError{Field: "calculation.grid_type", Reason: err.Error()}
		}
	}
	if calc.EnhancementFactor != nil {
		opts.EnhancementFactor = *calc.EnhancementFactor
	}
	if calc.BoundaryZoneWidth != nil {
		opts.BoundaryZoneWidth = *calc.BoundaryZoneWidth
	}
	if calc.Traversal != "" {
		opts.Traversal = flash.Traversal(calc.Traversal)
	}
	if calc.PointTimeoutMS > 0 {
		opts.PointTimeout = time.Duration(calc.PointTimeoutMS) * time.Millisecond
	}
	if po := calc.ParallelOptions; po != nil {
		if po.UseParallel != nil {
			opts.Parallel = *po.UseParallel
		}
		if po.NumProcesses > 0 {
			opts.Workers = po.NumProcesses
		}
		if po.ChunkSize > 0 {
			opts.ChunkSize = po.ChunkSize
		}
	}

	xa, ya := kind.Axes()
	x, err := axis(xa.Name, in.Variables, d.Ranges)
	if err != nil {
		return Prepared{}, err
	}
	y, err := axis(ya.Name, in.Variables, d.Ranges)
	if err != nil {
		return Prepared{}, err
	}
	if d.MaxPoints > 0 {
		if n := estimate(x) * estimate(y); n > float64(d.MaxPoints) {
			return Prepared{}, &fluid.ValidationError{Field: "variables", Reason: fmt.Sprintf("grid of about %.3g points exceeds the limit of %d", n, d.MaxPoints)}
		}
	}

	return Prepared{
		Request: flash.Request{
			Kind:         kind,
			Composition:  in.Composition,
			X:            x,
			Y:            y,
			Properties:   properties,
			Compositions: tabular,
			Options:      opts,
		},
		Format: format,
		System: sys,
	}, nil
}

// axis resolves one variable, defaulting absent fields from ranges.
func axis(name string, vars map[string]VariableInput, ranges map[string]config.Range) (flash.AxisSpec, error) {
	v, ok := vars[name]
	if !ok {
		return flash.AxisSpec{}, &fluid.ValidationError{Field: "variables", Reason: "missing " + name + " variable"}
	}
	def, ok := ranges[name]
	if !ok {
		def = config.Range{From: 0, To: 1, Resolution: 1}
	}
	a := flash.AxisSpec{From: def.From, To: def.To, Resolution: def.Resolution}
	if v.Range.From != nil {
		a.From = *v.Range.From
	}
	if v.Range.To != nil {
		a.To = *v.Range.To
	}
	if v.Resolution != nil {
		a.Resolution = *v.Resolution
	}
	for field, f := range map[string]float64{"from": a.From, "to": a.To, "resolution": a.Resolution} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return flash.AxisSpec{}, &fluid.ValidationError{Field: "variables." + name + "." + field, Reason: "must be finite"}
		}
	}
	if a.Resolution <= 0 {
		return flash.AxisSpec{}, &fluid.ValidationError{Field: "variables." + name + ".resolution", Reason: "must be positive"}
	}
	return a, nil
}

// estimate is the equidistant point count with the to <= from repair. It
// stays in float64 so huge spans cannot wrap around.
func estimate(a flash.AxisSpec) float64 {
	to := a.To
	if to <= a.From {
		to = a.From + a.Resolution
	}
	return math.Floor((to-a.From)/a.Resolution) + 2
}

func union(a, b []flash.Property) []flash.Property {
	seen := make(map[flash.Property]bool, len(a)+len(b))
	var out []flash.Property
	for _, p := range append(append([]flash.Property(nil), a...), b...) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &fluid.ValidationError{Field: "body", Reason: err.Error()}
	}
	fe := verrs[0]
	reason := "failed " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return &fluid.ValidationError{Field: fe.Namespace(), Reason: reason}
}
