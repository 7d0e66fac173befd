package units

import (
	"fmt"
	"strings"
)

// System is one of the supported unit systems. SI is the molar basis the
// engines report in; CGS is a mass basis.
type System string

const (
	SI  System = "SI"
	CGS System = "CGS"
)

const Unknown = "unknown"

func ParseSystem(s string) (System, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "SI":
		return SI, nil
	case "CGS":
		return CGS, nil
	default:
		return "", fmt.Errorf("units: unsupported unit system %q", s)
	}
}

type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type entry struct {
	si, cgs string
	// factor converts an SI value into CGS; it may depend on the molar mass in g/mol.
	factor    func(m float64) float64
	needsMass bool
}

func same(float64) float64 { return 1 }

func perMass(m float64) float64 { return 1 / m }

func densityToCGS(m float64) float64 { return m / 1000 }

func scale(k float64) func(float64) float64 { return func(float64) float64 { return k } }

var table = map[string]entry{
	"density":                    {"mol/L", "g/cm³", densityToCGS, true},
	"liquid_density":             {"mol/L", "g/cm³", densityToCGS, true},
	"vapor_density":              {"mol/L", "g/cm³", densityToCGS, true},
	"critical_density":           {"mol/L", "g/cm³", densityToCGS, true},
	"vapor_fraction":             {"mol/mol", "mol/mol", same, false},
	"internal_energy":            {"J/mol", "J/g", perMass, true},
	"enthalpy":                   {"J/mol", "J/g", perMass, true},
	"entropy":                    {"J/(mol·K)", "J/(g·K)", perMass, true},
	"cv":                         {"J/(mol·K)", "J/(g·K)", perMass, true},
	"cp":                         {"J/(mol·K)", "J/(g·K)", perMass, true},
	"sound_speed":                {"m/s", "cm/s", scale(100), false},
	"viscosity":                  {"μPa·s", "cP", scale(1e-3), false},
	"thermal_conductivity":       {"W/(m·K)", "erg/(s·cm·K)", scale(1e5), false},
	"surface_tension":            {"N/m", "dyn/cm", scale(1e3), false},
	"critical_temperature":       {"K", "K", same, false},
	"critical_pressure":          {"bar", "bar", same, false},
	"compressibility_factor":     {"-", "-", same, false},
	"isothermal_compressibility": {"1/kPa", "1/kPa", same, false},
	"volume_expansivity":         {"1/K", "1/K", same, false},
	"dp_dt_saturation":           {"kPa/K", "kPa/K", same, false},
	"joule_thomson_coefficient":  {"K/bar", "K/bar", same, false},
	"kinematic_viscosity":        {"cm²/s", "cm²/s", same, false},
	"thermal_diffusivity":        {"cm²/s", "cm²/s", same, false},
	"prandtl_number":             {"-", "-", same, false},
	"temperature":                {"°C", "°C", same, false},
	"pressure":                   {"bar", "bar", same, false},
	"specific_volume":            {"m³/mol", "cm³/g", func(m float64) float64 { return 1e6 / m }, true},
	"dDdP":                       {"mol/(L·kPa)", "g/(cm³·kPa)", densityToCGS, true},
	"dDdT":                       {"mol/(L·K)", "g/(cm³·K)", densityToCGS, true},
}

// Unit returns the unit a property is reported in, or "unknown".
func Unit(property string, sys System) string {
	e, ok := table[property]
	if !ok {
		return Unknown
	}
	if sys == CGS {
		return e.cgs
	}
	return e.si
}

// Convert is total: unknown properties come back unchanged with unit
// "unknown", and mass-dependent conversions without a molar mass keep the
// value in its source system.
func Convert(property string, value, molarMass float64, from, to System) Quantity {
	e, ok := table[property]
	if !ok {
		return Quantity{Value: value, Unit: Unknown}
	}
	if from == to || (e.needsMass && molarMass <= 0) {
		return Quantity{Value: value, Unit: Unit(property, from)}
	}
	f := e.factor(molarMass)
	if from == CGS {
		return Quantity{Value: value / f, Unit: e.si}
	}
	return Quantity{Value: value * f, Unit: e.cgs}
}
