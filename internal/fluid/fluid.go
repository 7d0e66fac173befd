package fluid

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// SumTolerance is how far the mole fractions may drift from 1.
const SumTolerance = 1e-6

var ErrEmptyComposition = errors.New("composition is empty")

// ValidationError marks a request that must be rejected before any engine call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type Component struct {
	Fluid    string  `json:"fluid" validate:"required"`
	Fraction float64 `json:"fraction" validate:"gte=0,lte=1"`
}

type Composition []Component

func Validate(c Composition) error {
	if len(c) == 0 {
		return &ValidationError{Field: "composition", Reason: ErrEmptyComposition.Error()}
	}
	total := 0.0
	for i, comp := range c {
		if strings.TrimSpace(comp.Fluid) == "" {
			return &ValidationError{Field: fmt.Sprintf("composition[%d].fluid", i), Reason: "fluid name required"}
		}
		if comp.Fraction < 0 || math.IsNaN(comp.Fraction) {
			return &ValidationError{Field: fmt.Sprintf("composition[%d].fraction", i), Reason: "fraction must be non-negative"}
		}
		total += comp.Fraction
	}
	if math.Abs(total-1.0) >= SumTolerance {
		return &ValidationError{Field: "composition", Reason: "Invalid composition - fractions must sum to 1"}
	}
	return nil
}

// Descriptor renders the composition the way OLGA headers expect it,
// e.g. "CO2-0.9000 METHANE-0.1000".
func (c Composition) Descriptor() string {
	parts := make([]string, 0, len(c))
	for _, comp := range c {
		parts = append(parts, fmt.Sprintf("%s-%.4f", comp.Fluid, comp.Fraction))
	}
	return strings.Join(parts, " ")
}

func (c Composition) Fractions() []float64 {
	z := make([]float64, len(c))
	for i, comp := range c {
		z[i] = comp.Fraction
	}
	return z
}

// IndexOf returns the position of the first component whose name contains
// name (case-insensitive), or -1.
func (c Composition) IndexOf(name string) int {
	name = strings.ToUpper(name)
	for i, comp := range c {
		if strings.Contains(strings.ToUpper(comp.Fluid), name) {
			return i
		}
	}
	return -1
}
