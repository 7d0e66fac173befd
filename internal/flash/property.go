package flash

import "strings"

// Property identifies one physical quantity an engine can report. The set
// is closed; values live in fixed slots of State rather than in a map.
type Property uint8

const (
	PropDensity Property = iota
	PropLiquidDensity
	PropVaporDensity
	PropVaporFraction
	PropInternalEnergy
	PropEnthalpy
	PropEntropy
	PropCv
	PropCp
	PropSoundSpeed
	PropViscosity
	PropThermalConductivity
	PropSurfaceTension
	PropCriticalTemperature
	PropCriticalPressure
	PropCriticalDensity
	PropCompressibilityFactor
	PropIsothermalCompressibility
	PropVolumeExpansivity
	PropDpDtSaturation
	PropJouleThomson
	PropKinematicViscosity
	PropThermalDiffusivity
	PropPrandtl
	PropTemperature
	PropPressure
	PropSpecificVolume
	PropDDdP
	PropDDdT

	numProperties
)

var propertyNames = [numProperties]string{
	PropDensity:                   "density",
	PropLiquidDensity:             "liquid_density",
	PropVaporDensity:              "vapor_density",
	PropVaporFraction:             "vapor_fraction",
	PropInternalEnergy:            "internal_energy",
	PropEnthalpy:                  "enthalpy",
	PropEntropy:                   "entropy",
	PropCv:                        "cv",
	PropCp:                        "cp",
	PropSoundSpeed:                "sound_speed",
	PropViscosity:                 "viscosity",
	PropThermalConductivity:       "thermal_conductivity",
	PropSurfaceTension:            "surface_tension",
	PropCriticalTemperature:       "critical_temperature",
	PropCriticalPressure:          "critical_pressure",
	PropCriticalDensity:           "critical_density",
	PropCompressibilityFactor:     "compressibility_factor",
	PropIsothermalCompressibility: "isothermal_compressibility",
	PropVolumeExpansivity:         "volume_expansivity",
	PropDpDtSaturation:            "dp_dt_saturation",
	PropJouleThomson:              "joule_thomson_coefficient",
	PropKinematicViscosity:        "kinematic_viscosity",
	PropThermalDiffusivity:        "thermal_diffusivity",
	PropPrandtl:                   "prandtl_number",
	PropTemperature:               "temperature",
	PropPressure:                  "pressure",
	PropSpecificVolume:            "specific_volume",
	PropDDdP:                      "dDdP",
	PropDDdT:                      "dDdT",
}

var propertyByName = func() map[string]Property {
	m := make(map[string]Property, numProperties)
	for p, name := range propertyNames {
		m[name] = Property(p)
	}
	return m
}()

func (p Property) String() string {
	if p >= numProperties {
		return "unknown"
	}
	return propertyNames[p]
}

func (p Property) Valid() bool { return p < numProperties }

func ParseProperty(name string) (Property, bool) {
	p, ok := propertyByName[name]
	return p, ok
}

// Properties lists every known property in slot order.
func Properties() []Property {
	out := make([]Property, numProperties)
	for i := range out {
		out[i] = Property(i)
	}
	return out
}

// Phase is the equilibrium phase classification of a flash point.
type Phase uint8

const (
	PhaseUnknown Phase = iota
	PhaseLiquid
	PhaseVapor
	PhaseTwoPhase
	PhaseSupercritical
)

// Vapor fraction sentinels reported by engines outside the two-phase envelope.
const (
	QualityForcedVapor   = 998.0
	QualityForcedLiquid  = -998.0
	QualitySupercritical = 999.0
)

func (ph Phase) String() string {
	switch ph {
	case PhaseLiquid:
		return "liquid"
	case PhaseVapor:
		return "vapor"
	case PhaseTwoPhase:
		return "two-phase"
	case PhaseSupercritical:
		return "supercritical"
	default:
		return "unknown"
	}
}

// ParsePhase is lenient: engines report "Liquid", "gas", "two phase", "mixed" and so on.
func ParsePhase(s string) Phase {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "supercritical"):
		return PhaseSupercritical
	case strings.Contains(s, "two") || strings.Contains(s, "mixed"):
		return PhaseTwoPhase
	case strings.Contains(s, "liquid"):
		return PhaseLiquid
	case strings.Contains(s, "vapor") || strings.Contains(s, "gas"):
		return PhaseVapor
	default:
		return PhaseUnknown
	}
}

// PhaseFromQuality classifies an engine vapor fraction, sentinels included.
func PhaseFromQuality(q float64) Phase {
	switch {
	case q == QualitySupercritical:
		return PhaseSupercritical
	case q == QualityForcedVapor || q >= 1:
		return PhaseVapor
	case q == QualityForcedLiquid || q <= 0:
		return PhaseLiquid
	case q > 0 && q < 1:
		return PhaseTwoPhase
	default:
		return PhaseUnknown
	}
}
