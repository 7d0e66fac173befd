package props

import (
	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
)

const (
	DefaultSpecificHeat        = 1000.0
	DefaultThermalConductivity = 0.02

	maxSpecificHeat        = 1e6
	maxThermalConductivity = 1e3
)

// Column is one OLGA property block: its header, the key resolved with
// Extract and the conversion from engine units (molar basis, g/mol molar
// mass) to the SI mass basis OLGA expects.
type Column struct {
	Name    string
	Key     string
	Convert func(v, molarMass float64) float64
	// Missing supplies a value when Extract finds nothing; nil leaves the
	// table default in place.
	Missing func(phase flash.Phase) (float64, bool)
}

func identity(v, _ float64) float64 { return v }

func timesMolarMass(v, m float64) float64 { return v * m }

func perKilogram(v, m float64) float64 { return v * 1000 / m }

func micro(v, _ float64) float64 { return v * 1e-6 }

func specificHeat(v, m float64) float64 { return ClampSpecificHeat(v * 1000 / m) }

func conductivity(v, _ float64) float64 { return ClampThermalConductivity(v) }

func vaporMassFraction(q, _ float64) float64 { return VaporMassFraction(q) }

// missingQuality fills single-phase points that report no vapor fraction.
func missingQuality(phase flash.Phase) (float64, bool) {
	switch phase {
	case flash.PhaseVapor:
		return 1, true
	case flash.PhaseLiquid:
		return 0, true
	}
	return 0, false
}

// Columns lists the OLGA property blocks in file order.
var Columns = []Column{
	{Name: "LIQUID DENSITY (KG/M3)", Key: "liquid_density", Convert: timesMolarMass},
	{Name: "GAS DENSITY (KG/M3)", Key: "vapor_density", Convert: timesMolarMass},
	{Name: "PRES. DERIV. OF LIQUID DENS.", Key: "dDdP_liquid", Convert: timesMolarMass},
	{Name: "PRES. DERIV. OF GAS DENS.", Key: "dDdP_vapor", Convert: timesMolarMass},
	{Name: "TEMP. DERIV. OF LIQUID DENS.", Key: "dDdT_liquid", Convert: timesMolarMass},
	{Name: "TEMP. DERIV. OF GAS DENS.", Key: "dDdT_vapor", Convert: timesMolarMass},
	{Name: "GAS MASS FRACTION OF GAS +LIQUID", Key: "vapor_fraction", Convert: vaporMassFraction, Missing: missingQuality},
	{Name: "WATER MASS FRACTION OF LIQUID", Key: "water_liquid", Convert: identity},
	{Name: "WATER MASS FRACTION OF GAS", Key: "water_vapor", Convert: identity},
	{Name: "LIQUID VISCOSITY (N S/M2)", Key: "liquid_viscosity", Convert: micro},
	{Name: "GAS VISCOSITY (N S/M2)", Key: "vapor_viscosity", Convert: micro},
	{Name: "LIQUID SPECIFIC HEAT (J/KG K)", Key: "liquid_cp", Convert: specificHeat},
	{Name: "GAS SPECIFIC HEAT (J/KG K)", Key: "vapor_cp", Convert: specificHeat},
	{Name: "LIQUID ENTHALPY (J/KG)", Key: "liquid_enthalpy", Convert: perKilogram},
	{Name: "GAS ENTHALPY (J/KG)", Key: "vapor_enthalpy", Convert: perKilogram},
	{Name: "LIQUID THERMAL COND. (W/M K)", Key: "liquid_thermal_conductivity", Convert: conductivity},
	{Name: "GAS THERMAL COND. (W/M K)", Key: "vapor_thermal_conductivity", Convert: conductivity},
	{Name: "SURFACE TENSION GAS/LIQUID (N/M)", Key: "surface_tension", Convert: identity},
	{Name: "LIQUID ENTROPY (J/KG/C)", Key: "liquid_entropy", Convert: perKilogram},
	{Name: "GAS ENTROPY (J/KG/C)", Key: "vapor_entropy", Convert: perKilogram},
}

// Value resolves and converts one column for a point.
func (c Column) Value(s *flash.State, phase flash.Phase, comp fluid.Composition, molarMass float64) (float64, bool) {
	if v, ok := Extract(s, c.Key, phase, comp); ok {
		return c.Convert(v, molarMass), true
	}
	if c.Missing != nil {
		return c.Missing(phase)
	}
	return 0, false
}

// ClampSpecificHeat replaces values outside [0, 1e6] J/(kg·K).
func ClampSpecificHeat(v float64) float64 {
	if v < 0 || v > maxSpecificHeat {
		return DefaultSpecificHeat
	}
	return v
}

// ClampThermalConductivity replaces values outside [0, 1e3] W/(m·K).
func ClampThermalConductivity(v float64) float64 {
	if v < 0 || v > maxThermalConductivity {
		return DefaultThermalConductivity
	}
	return v
}

// VaporMassFraction maps engine sentinels onto [0, 1]. The result is still
// mole based; a mass-basis conversion needs per-component molar masses.
func VaporMassFraction(q float64) float64 {
	switch {
	case q == flash.QualityForcedVapor:
		return 1
	case q == flash.QualityForcedLiquid:
		return 0
	case q == flash.QualitySupercritical:
		return 0.5
	case q < 0:
		return 0
	case q > 1:
		return 1
	}
	return q
}

// Required lists the engine properties the OLGA columns draw on.
func Required() []flash.Property {
	return []flash.Property{
		flash.PropDensity,
		flash.PropLiquidDensity,
		flash.PropVaporDensity,
		flash.PropDDdP,
		flash.PropDDdT,
		flash.PropVaporFraction,
		flash.PropViscosity,
		flash.PropCp,
		flash.PropEnthalpy,
		flash.PropThermalConductivity,
		flash.PropSurfaceTension,
		flash.PropEntropy,
	}
}
