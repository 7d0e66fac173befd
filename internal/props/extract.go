// Package props resolves OLGA property keys against flash results.
//
// Engines report some properties per phase (liquid_density, vapor_density)
// and others only for the bulk state (density, cp). Extract bridges the two
// using the point's phase.
package props

import (
	"strings"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
)

const (
	liquidPrefix = "liquid_"
	vaporPrefix  = "vapor_"
	liquidSuffix = "_liquid"
	vaporSuffix  = "_vapor"
)

// WaterComponent is the fluid name searched for the water mass fractions.
const WaterComponent = "WATER"

// Extract returns the value of key for one point, first match wins:
//  1. key names a property present on the state;
//  2. key has a liquid_/vapor_ prefix and phase matches or is two-phase:
//     the unprefixed property;
//  3. <base>_liquid / <base>_vapor for a matching single phase, and
//     water_liquid / water_vapor from the phase compositions;
//  4. otherwise absent.
func Extract(s *flash.State, key string, phase flash.Phase, comp fluid.Composition) (float64, bool) {
	if p, ok := flash.ParseProperty(key); ok {
		if v, ok := s.Get(p); ok {
			return v, true
		}
	}

	if base, ok := strings.CutPrefix(key, liquidPrefix); ok && (phase == flash.PhaseLiquid || phase == flash.PhaseTwoPhase) {
		if v, ok := lookup(s, base); ok {
			return v, true
		}
	}
	if base, ok := strings.CutPrefix(key, vaporPrefix); ok && (phase == flash.PhaseVapor || phase == flash.PhaseTwoPhase) {
		if v, ok := lookup(s, base); ok {
			return v, true
		}
	}

	switch key {
	case "water_liquid":
		return water(s.X, comp)
	case "water_vapor":
		return water(s.Y, comp)
	}
	if base, ok := strings.CutSuffix(key, liquidSuffix); ok && phase == flash.PhaseLiquid {
		return lookup(s, base)
	}
	if base, ok := strings.CutSuffix(key, vaporSuffix); ok && phase == flash.PhaseVapor {
		return lookup(s, base)
	}
	return 0, false
}

func lookup(s *flash.State, name string) (float64, bool) {
	p, ok := flash.ParseProperty(name)
	if !ok {
		return 0, false
	}
	return s.Get(p)
}

// water reads the WATER mole fraction from a phase composition. A missing
// vector is absent; a vector without a water component reports 0.
func water(v []float64, comp fluid.Composition) (float64, bool) {
	if v == nil {
		return 0, false
	}
	i := comp.IndexOf(WaterComponent)
	if i < 0 || i >= len(v) {
		return 0, true
	}
	return v[i], true
}
