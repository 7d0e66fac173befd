// Package wilson is a self-contained reference engine: Wilson K-values with
// a Rachford-Rice split, ideal-gas vapor and Rackett liquid volumes. It is
// meant for local runs and tests, not for design-grade numbers.
package wilson

import (
	"context"
	"errors"
	"fmt"
	"math"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
)

var (
	ErrOutOfRange      = errors.New("wilson: state outside engine range")
	ErrNoConvergence   = errors.New("wilson: inversion did not converge")
	ErrUnsupportedKind = errors.New("wilson: unsupported flash type")
)

// Search bounds for the inverse flashes.
const (
	minT = 20.0   // K
	maxT = 2000.0 // K
	minP = 1e-3   // bar
	maxP = 1e4    // bar

	maxIter = 200
)

type Engine struct{}

func New() *Engine { return &Engine{} }

func (*Engine) MolarMass(_ context.Context, comp fluid.Composition) (float64, error) {
	m, err := resolve(comp)
	if err != nil {
		return 0, err
	}
	return m.molarMass(), nil
}

// Flash takes x and y in service units: bar, °C, J/mol, J/(mol·K), m³/mol.
func (*Engine) Flash(ctx context.Context, kind flash.Kind, x, y float64, comp fluid.Composition) (*flash.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := resolve(comp)
	if err != nil {
		return nil, err
	}

	var e equilibrium
	switch kind {
	case flash.PT:
		e, err = m.pt(x, y+kelvin)
	case flash.PH:
		e, err = m.ph(ctx, x, y)
	case flash.TS:
		e, err = m.ts(ctx, x+kelvin, y)
	case flash.VT:
		e, err = m.vt(ctx, x+kelvin, y)
	case flash.UV:
		e, err = m.uv(ctx, x, y)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedKind, kind)
	}
	if err != nil {
		return nil, err
	}
	return m.state(kind, e), nil
}

func (m *mixture) pt(P, T float64) (equilibrium, error) {
	if !(P >= minP && P <= maxP) || !(T >= minT && T <= maxT) {
		return equilibrium{}, fmt.Errorf("%w: P=%g bar, T=%g K", ErrOutOfRange, P, T)
	}
	return m.solvePT(T, P), nil
}

func (m *mixture) ph(ctx context.Context, P, h float64) (equilibrium, error) {
	if !(P >= minP && P <= maxP) {
		return equilibrium{}, fmt.Errorf("%w: P=%g bar", ErrOutOfRange, P)
	}
	T, err := bisect(ctx, minT, maxT, func(T float64) float64 {
		return m.solvePT(T, P).enthalpy() - h
	})
	if err != nil {
		return equilibrium{}, err
	}
	return m.solvePT(T, P), nil
}

// pressureAt inverts a property that falls with pressure, searching log P.
func (m *mixture) pressureAt(ctx context.Context, T float64, f func(equilibrium) float64, target float64) (float64, error) {
	lp, err := bisect(ctx, math.Log(minP), math.Log(maxP), func(lp float64) float64 {
		return target - f(m.solvePT(T, math.Exp(lp)))
	})
	if err != nil {
		return 0, err
	}
	return math.Exp(lp), nil
}

func (m *mixture) ts(ctx context.Context, T, s float64) (equilibrium, error) {
	if !(T >= minT && T <= maxT) {
		return equilibrium{}, fmt.Errorf("%w: T=%g K", ErrOutOfRange, T)
	}
	P, err := m.pressureAt(ctx, T, equilibrium.entropy, s)
	if err != nil {
		return equilibrium{}, err
	}
	return m.solvePT(T, P), nil
}

func (m *mixture) vt(ctx context.Context, T, v float64) (equilibrium, error) {
	if !(T >= minT && T <= maxT) || v <= 0 {
		return equilibrium{}, fmt.Errorf("%w: T=%g K, v=%g m3/mol", ErrOutOfRange, T, v)
	}
	P, err := m.pressureAt(ctx, T, equilibrium.volume, v)
	if err != nil {
		return equilibrium{}, err
	}
	return m.solvePT(T, P), nil
}

func (m *mixture) uv(ctx context.Context, u, v float64) (equilibrium, error) {
	if v <= 0 {
		return equilibrium{}, fmt.Errorf("%w: v=%g m3/mol", ErrOutOfRange, v)
	}
	var last equilibrium
	var inner error
	_, err := bisect(ctx, minT, maxT, func(T float64) float64 {
		P, err := m.pressureAt(ctx, T, equilibrium.volume, v)
		if err != nil {
			inner = err
			return math.NaN()
		}
		last = m.solvePT(T, P)
		return last.energy() - u
	})
	if inner != nil {
		return equilibrium{}, inner
	}
	if err != nil {
		return equilibrium{}, err
	}
	return last, nil
}

// bisect finds a root of an increasing function on [lo, hi].
func bisect(ctx context.Context, lo, hi float64, f func(float64) float64) (float64, error) {
	flo, fhi := f(lo), f(hi)
	if math.IsNaN(flo) || math.IsNaN(fhi) {
		return 0, ErrNoConvergence
	}
	if flo > 0 || fhi < 0 {
		return 0, ErrOutOfRange
	}
	for i := 0; i < maxIter; i++ {
		if i%16 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		mid := (lo + hi) / 2
		fm := f(mid)
		if math.IsNaN(fm) {
			return 0, ErrNoConvergence
		}
		if fm < 0 {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo <= 1e-10*math.Max(1, math.Abs(mid)) {
			return (lo + hi) / 2, nil
		}
	}
	return 0, ErrNoConvergence
}
