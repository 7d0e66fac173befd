package wilson

import (
	"fmt"
	"sort"
	"strings"

	"Flashgrid/internal/fluid"
)

// Component holds the pure-fluid constants the correlations need.
type Component struct {
	Name  string
	Tc    float64 // K
	Pc    float64 // bar
	Omega float64
	M     float64 // g/mol
	CpIG  float64 // J/(mol·K), ideal gas near ambient
}

var library = map[string]Component{
	"METHANE":  {"METHANE", 190.56, 45.99, 0.011, 16.043, 35.7},
	"ETHANE":   {"ETHANE", 305.32, 48.72, 0.099, 30.070, 52.5},
	"PROPANE":  {"PROPANE", 369.83, 42.48, 0.152, 44.097, 73.6},
	"BUTANE":   {"BUTANE", 425.12, 37.96, 0.200, 58.123, 98.5},
	"PENTANE":  {"PENTANE", 469.70, 33.70, 0.252, 72.150, 120.0},
	"HEXANE":   {"HEXANE", 507.60, 30.25, 0.301, 86.177, 143.0},
	"NITROGEN": {"NITROGEN", 126.20, 33.98, 0.037, 28.014, 29.1},
	"CO2":      {"CO2", 304.13, 73.77, 0.224, 44.010, 37.1},
	"H2S":      {"H2S", 373.10, 89.63, 0.094, 34.080, 34.2},
	"WATER":    {"WATER", 647.10, 220.64, 0.344, 18.015, 33.6},
	"HYDROGEN": {"HYDROGEN", 33.19, 13.13, -0.216, 2.016, 28.8},
	"OXYGEN":   {"OXYGEN", 154.58, 50.43, 0.022, 31.999, 29.4},
	"ARGON":    {"ARGON", 150.69, 48.63, -0.002, 39.948, 20.8},
}

var aliases = map[string]string{
	"C1":               "METHANE",
	"C2":               "ETHANE",
	"C3":               "PROPANE",
	"NC4":              "BUTANE",
	"N-BUTANE":         "BUTANE",
	"NBUTANE":          "BUTANE",
	"NC5":              "PENTANE",
	"N-PENTANE":        "PENTANE",
	"NC6":              "HEXANE",
	"N-HEXANE":         "HEXANE",
	"N2":               "NITROGEN",
	"CARBON DIOXIDE":   "CO2",
	"CARBONDIOXIDE":    "CO2",
	"HYDROGEN SULFIDE": "H2S",
	"H2O":              "WATER",
	"H2":               "HYDROGEN",
	"O2":               "OXYGEN",
	"AR":               "ARGON",
}

// Lookup resolves a fluid identifier, ignoring case and a ".FLD" suffix.
func Lookup(name string) (Component, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	key = strings.TrimSuffix(key, ".FLD")
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	c, ok := library[key]
	return c, ok
}

// Names lists the fluids the engine knows.
func Names() []string {
	out := make([]string, 0, len(library))
	for name := range library {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// UnknownFluidError names a component the library cannot resolve.
type UnknownFluidError struct {
	Fluid string
}

func (e *UnknownFluidError) Error() string {
	return fmt.Sprintf("wilson: unknown fluid %q", e.Fluid)
}

// mixture is a resolved composition.
type mixture struct {
	comps []Component
	z     []float64
}

func resolve(comp fluid.Composition) (*mixture, error) {
	m := &mixture{comps: make([]Component, len(comp)), z: comp.Fractions()}
	for i, c := range comp {
		pc, ok := Lookup(c.Fluid)
		if !ok {
			return nil, &UnknownFluidError{Fluid: c.Fluid}
		}
		m.comps[i] = pc
	}
	return m, nil
}

func (m *mixture) column(f func(Component) float64) []float64 {
	out := make([]float64, len(m.comps))
	for i, c := range m.comps {
		out[i] = f(c)
	}
	return out
}
