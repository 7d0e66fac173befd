package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
	"Flashgrid/internal/grid"
	"Flashgrid/internal/units"
)

func sampleRun(t *testing.T, n int) *flash.Run {
	t.Helper()
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	xg, err := grid.FromPoints(xs)
	require.NoError(t, err)
	yg, err := grid.FromPoints([]float64{25})
	require.NoError(t, err)

	set := flash.NewPointSet(n, 1)
	for i := 0; i < n; i++ {
		s := flash.NewState(flash.PT)
		s.XIdx, s.YIdx, s.Index = i, 0, i
		s.Phase = flash.PhaseVapor
		s.Set(flash.PropPressure, xs[i])
		s.Set(flash.PropTemperature, 25)
		s.Set(flash.PropDensity, 0.04*xs[i])
		require.NoError(t, set.Put(s))
	}
	return &flash.Run{
		ID:          uuid.New(),
		Kind:        flash.PT,
		Composition: fluid.Composition{{Fluid: "METHANE", Fraction: 1}},
		MolarMass:   16.043,
		X:           xg,
		Y:           yg,
		Points:      set,
		Info:        flash.GridInfo{Type: grid.Equidistant, XName: "pressure", YName: "temperature", XPoints: n, YPoints: 1, TotalPoints: n},
		Started:     time.Now(),
	}
}

func TestGenerate(t *testing.T) {
	for _, n := range []int{3, MaxRows + 5} {
		var buf bytes.Buffer
		err := Generate(&buf, Input{Run: sampleRun(t, n), System: units.CGS, Notes: "smoke"})
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	}
}

func TestGenerateWithoutRun(t *testing.T) {
	assert.Error(t, Generate(&bytes.Buffer{}, Input{}))
}
