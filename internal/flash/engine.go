package flash

import (
	"context"
	"errors"
	"fmt"

	"Flashgrid/internal/fluid"
)

// Engine is the binding to a thermodynamics engine. Flash receives the
// independent variables in service units (bar, °C, J/mol, J/(mol·K),
// m³/mol) and returns SI slots. Implementations must be safe for
// concurrent use.
type Engine interface {
	Flash(ctx context.Context, kind Kind, x, y float64, comp fluid.Composition) (*State, error)
	MolarMass(ctx context.Context, comp fluid.Composition) (float64, error)
}

// BoundaryLocator estimates phase-boundary coordinates for adaptive grids.
// It must not fail: no crossings means two empty slices.
type BoundaryLocator interface {
	Locate(ctx context.Context, kind Kind, comp fluid.Composition, xRange, yRange [2]float64) (xb, yb []float64)
}

var ErrNoState = errors.New("engine returned no state")

// PointError is a per-point engine failure. It never aborts a grid run.
type PointError struct {
	Kind       Kind
	X, Y       float64
	XIdx, YIdx int
	Err        error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("flash: %s at (%g, %g): %v", e.Kind, e.X, e.Y, e.Err)
}

func (e *PointError) Unwrap() error { return e.Err }
