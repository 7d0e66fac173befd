package props

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
)

var wetGas = fluid.Composition{
	{Fluid: "METHANE", Fraction: 0.8},
	{Fluid: "water", Fraction: 0.2},
}

func state(set map[flash.Property]float64) *flash.State {
	s := flash.NewState(flash.PT)
	for p, v := range set {
		s.Set(p, v)
	}
	return s
}

func TestExtract(t *testing.T) {
	s := state(map[flash.Property]float64{
		flash.PropDensity:       30,
		flash.PropLiquidDensity: 25,
		flash.PropCp:            80,
		flash.PropDDdP:          0.4,
	})
	s.X = []float64{0.1, 0.9}
	s.Y = []float64{0.99, 0.01}

	tests := []struct {
		name   string
		key    string
		phase  flash.Phase
		want   float64
		wantOK bool
	}{
		{"exact key wins over base", "liquid_density", flash.PhaseVapor, 25, true},
		{"vapor prefix in vapor", "vapor_density", flash.PhaseVapor, 30, true},
		{"vapor prefix in two-phase", "vapor_cp", flash.PhaseTwoPhase, 80, true},
		{"liquid prefix in vapor", "liquid_cp", flash.PhaseVapor, 0, false},
		{"suffix for matching phase", "dDdP_liquid", flash.PhaseLiquid, 0.4, true},
		{"suffix needs single phase", "dDdP_liquid", flash.PhaseTwoPhase, 0, false},
		{"suffix other phase", "dDdP_vapor", flash.PhaseLiquid, 0, false},
		{"water in liquid", "water_liquid", flash.PhaseTwoPhase, 0.9, true},
		{"water in vapor", "water_vapor", flash.PhaseUnknown, 0.01, true},
		{"absent property", "surface_tension", flash.PhaseLiquid, 0, false},
		{"unknown key", "liquid_color", flash.PhaseLiquid, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Extract(s, tt.key, tt.phase, wetGas)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, v, 1e-12)
		})
	}
}

func TestExtractWater(t *testing.T) {
	dry := fluid.Composition{{Fluid: "CO2", Fraction: 0.9}, {Fluid: "METHANE", Fraction: 0.1}}

	s := flash.NewState(flash.PT)
	_, ok := Extract(s, "water_liquid", flash.PhaseLiquid, wetGas)
	assert.False(t, ok, "no phase composition")

	s.X = []float64{0.5, 0.5}
	v, ok := Extract(s, "water_liquid", flash.PhaseLiquid, dry)
	assert.True(t, ok)
	assert.Zero(t, v)

	s.X = []float64{1}
	v, ok = Extract(s, "water_liquid", flash.PhaseLiquid, wetGas)
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestSanitizers(t *testing.T) {
	assert.Equal(t, 1000.0, ClampSpecificHeat(-1))
	assert.Equal(t, 1000.0, ClampSpecificHeat(2e6))
	assert.Equal(t, 2100.0, ClampSpecificHeat(2100))

	assert.Equal(t, 0.02, ClampThermalConductivity(-0.1))
	assert.Equal(t, 0.02, ClampThermalConductivity(5000))
	assert.Equal(t, 0.6, ClampThermalConductivity(0.6))

	for q, want := range map[float64]float64{
		998: 1, -998: 0, 999: 0.5, -0.2: 0, 1.3: 1, 0.42: 0.42, 0: 0, 1: 1,
	} {
		assert.Equal(t, want, VaporMassFraction(q), "q=%g", q)
	}
}

func TestColumns(t *testing.T) {
	assert.Len(t, Columns, 20)
	names := map[string]bool{}
	for _, c := range Columns {
		assert.False(t, names[c.Name], c.Name)
		names[c.Name] = true
		assert.NotNil(t, c.Convert, c.Name)
	}
}

func TestColumnValue(t *testing.T) {
	const m = 18.015
	liquid := state(map[flash.Property]float64{
		flash.PropDensity:             55,
		flash.PropCp:                  75.3,
		flash.PropEnthalpy:            1890,
		flash.PropViscosity:           890,
		flash.PropThermalConductivity: 1e4,
	})

	byKey := map[string]Column{}
	for _, c := range Columns {
		byKey[c.Key] = c
	}

	v, ok := byKey["liquid_density"].Value(liquid, flash.PhaseLiquid, wetGas, m)
	assert.True(t, ok)
	assert.InDelta(t, 55*m, v, 1e-9)

	v, _ = byKey["liquid_cp"].Value(liquid, flash.PhaseLiquid, wetGas, m)
	assert.InDelta(t, 75.3*1000/m, v, 1e-9)

	v, _ = byKey["liquid_enthalpy"].Value(liquid, flash.PhaseLiquid, wetGas, m)
	assert.InDelta(t, 1890*1000/m, v, 1e-9)

	v, _ = byKey["liquid_viscosity"].Value(liquid, flash.PhaseLiquid, wetGas, m)
	assert.InDelta(t, 890e-6, v, 1e-15)

	v, _ = byKey["liquid_thermal_conductivity"].Value(liquid, flash.PhaseLiquid, wetGas, m)
	assert.Equal(t, DefaultThermalConductivity, v)

	_, ok = byKey["vapor_density"].Value(liquid, flash.PhaseLiquid, wetGas, m)
	assert.False(t, ok)

	q := byKey["vapor_fraction"]
	v, ok = q.Value(liquid, flash.PhaseLiquid, wetGas, m)
	assert.True(t, ok)
	assert.Zero(t, v)
	v, ok = q.Value(liquid, flash.PhaseVapor, wetGas, m)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = q.Value(liquid, flash.PhaseTwoPhase, wetGas, m)
	assert.False(t, ok)

	liquid.Set(flash.PropVaporFraction, flash.QualitySupercritical)
	v, _ = q.Value(liquid, flash.PhaseSupercritical, wetGas, m)
	assert.Equal(t, 0.5, v)
}
