package flash

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Flashgrid/internal/fluid"
	"Flashgrid/internal/grid"
)

var errOutOfRange = errors.New("outside validity range")

type fakeEngine struct {
	calls atomic.Int64
	// fail reports whether the engine rejects (x, y).
	fail  func(x, y float64) bool
	delay time.Duration
}

func (f *fakeEngine) Flash(ctx context.Context, kind Kind, x, y float64, comp fluid.Composition) (*State, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail != nil && f.fail(x, y) {
		return nil, errOutOfRange
	}
	s := NewState(kind)
	s.Set(PropDensity, x*100+y)
	s.Set(PropVaporFraction, 0.5)
	s.Set(PropViscosity, 10)
	s.X = []float64{0.95, 0.05}
	s.Y = []float64{0.8, 0.2}
	return s, nil
}

func (f *fakeEngine) MolarMass(context.Context, fluid.Composition) (float64, error) {
	return 41.21, nil
}

type fixedLocator struct{ xb, yb []float64 }

func (l fixedLocator) Locate(context.Context, Kind, fluid.Composition, [2]float64, [2]float64) ([]float64, []float64) {
	return l.xb, l.yb
}

func co2Methane() fluid.Composition {
	return fluid.Composition{{Fluid: "CO2", Fraction: 0.9}, {Fluid: "METHANE", Fraction: 0.1}}
}

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func ptRequest() Request {
	return Request{
		Kind:        PT,
		Composition: co2Methane(),
		X:           AxisSpec{From: 1, To: 10, Resolution: 5},
		Y:           AxisSpec{From: 0, To: 20, Resolution: 10},
	}
}

func TestCalculateGridScenario(t *testing.T) {
	eng := &fakeEngine{fail: func(x, y float64) bool { return x == 11 && y == 20 }}
	o := NewOrchestrator(eng, nil, quietLogger())

	run, err := o.CalculateGrid(context.Background(), ptRequest())
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 6, 11}, run.X.Points)
	assert.Equal(t, []float64{0, 10, 20}, run.Y.Points)
	assert.EqualValues(t, 9, eng.calls.Load())

	results := run.Results()
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), run.X.Len()*run.Y.Len())
	assert.Len(t, results, 8)
	assert.Equal(t, 1, run.Info.FailedPoints)
	assert.Equal(t, 8, run.Info.TotalPoints)
	assert.Nil(t, run.Points.At(2, 2))

	seen := map[[2]int]bool{}
	for _, r := range results {
		key := [2]int{r.XIdx, r.YIdx}
		assert.False(t, seen[key], "duplicate %v", key)
		seen[key] = true
		assert.GreaterOrEqual(t, r.XIdx, 0)
		assert.Less(t, r.XIdx, 3)
		assert.GreaterOrEqual(t, r.YIdx, 0)
		assert.Less(t, r.YIdx, 3)
		assert.Equal(t, r.XIdx*3+r.YIdx, r.Index)

		p, _ := r.Get(PropPressure)
		temp, _ := r.Get(PropTemperature)
		assert.Equal(t, run.X.Points[r.XIdx], p)
		assert.Equal(t, run.Y.Points[r.YIdx], temp)
		assert.Equal(t, PhaseTwoPhase, r.Phase)
	}
}

func TestCalculateGridRejectsCompositionBeforeFlashing(t *testing.T) {
	eng := &fakeEngine{}
	o := NewOrchestrator(eng, nil, quietLogger())

	req := ptRequest()
	req.Composition = fluid.Composition{{Fluid: "CO2", Fraction: 0.89}, {Fluid: "METHANE", Fraction: 0.1}}
	_, err := o.CalculateGrid(context.Background(), req)

	var verr *fluid.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, eng.calls.Load())
}

func TestCalculateGridUnknownKind(t *testing.T) {
	req := ptRequest()
	req.Kind = "xy_flash"
	_, err := NewOrchestrator(&fakeEngine{}, nil, quietLogger()).CalculateGrid(context.Background(), req)
	require.Error(t, err)
}

func TestCalculateGridLogarithmicRangeError(t *testing.T) {
	req := ptRequest()
	req.Options.Strategy = grid.Logarithmic
	req.Y = AxisSpec{From: -10, To: 20, Resolution: 10}
	_, err := NewOrchestrator(&fakeEngine{}, nil, quietLogger()).CalculateGrid(context.Background(), req)

	var rerr *grid.InvalidRangeError
	require.ErrorAs(t, err, &rerr)
}

func snapshot(run *Run) map[int]float64 {
	out := map[int]float64{}
	for _, r := range run.Results() {
		v, _ := r.Get(PropDensity)
		out[r.Index] = v
	}
	return out
}

func TestParallelMatchesSequential(t *testing.T) {
	fail := func(x, y float64) bool { return int(x+y)%7 == 0 }
	req := Request{
		Kind:        PH,
		Composition: co2Methane(),
		X:           AxisSpec{From: 1, To: 40, Resolution: 1},
		Y:           AxisSpec{From: -2000, To: 2000, Resolution: 250},
	}

	seq, err := NewOrchestrator(&fakeEngine{fail: fail}, nil, quietLogger()).CalculateGrid(context.Background(), req)
	require.NoError(t, err)

	for _, tc := range []struct {
		name    string
		workers int
		chunk   int
		order   Traversal
	}{
		{"default chunks", 4, 0, XMajor},
		{"single point chunks", 8, 1, XMajor},
		{"y major", 3, 17, YMajor},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := req
			req.Options = Options{Parallel: true, Workers: tc.workers, ChunkSize: tc.chunk, Traversal: tc.order}
			par, err := NewOrchestrator(&fakeEngine{fail: fail}, nil, quietLogger()).CalculateGrid(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, snapshot(seq), snapshot(par))
			assert.Equal(t, seq.Info.FailedPoints, par.Info.FailedPoints)
		})
	}
}

func TestPointTimeoutDropsSlowPoints(t *testing.T) {
	eng := &fakeEngine{delay: 50 * time.Millisecond}
	req := ptRequest()
	req.X = AxisSpec{From: 1, To: 1, Resolution: 1}
	req.Y = AxisSpec{From: 0, To: 0, Resolution: 1}
	req.Options.PointTimeout = time.Millisecond

	run, err := NewOrchestrator(eng, nil, quietLogger()).CalculateGrid(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, run.Points.Len())
	assert.Equal(t, 4, run.Info.FailedPoints)
}

func TestFailuresAreLoggedWithPointFields(t *testing.T) {
	log, hook := test.NewNullLogger()
	eng := &fakeEngine{fail: func(x, y float64) bool { return x == 6 && y == 10 }}

	_, err := NewOrchestrator(eng, nil, log).CalculateGrid(context.Background(), ptRequest())
	require.NoError(t, err)

	var warned []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = append(warned, e)
		}
	}
	require.Len(t, warned, 1)
	assert.Equal(t, 1, warned[0].Data["x_idx"])
	assert.Equal(t, 1, warned[0].Data["y_idx"])
	assert.ErrorIs(t, warned[0].Data[logrus.ErrorKey].(error), errOutOfRange)
}

func TestPropertySelection(t *testing.T) {
	req := ptRequest()
	req.Properties = []Property{PropDensity}

	run, err := NewOrchestrator(&fakeEngine{}, nil, quietLogger()).CalculateGrid(context.Background(), req)
	require.NoError(t, err)

	for _, r := range run.Results() {
		assert.True(t, r.Has(PropDensity))
		assert.True(t, r.Has(PropPressure))
		assert.True(t, r.Has(PropTemperature))
		assert.False(t, r.Has(PropViscosity))
		assert.False(t, r.Has(PropVaporFraction))
		assert.Nil(t, r.X)
		assert.Equal(t, PhaseTwoPhase, r.Phase)
	}
}

func TestAdaptiveUsesLocator(t *testing.T) {
	req := ptRequest()
	req.X = AxisSpec{From: 0, To: 100, Resolution: 10}
	req.Options.Strategy = grid.Adaptive
	req.Options.EnhancementFactor = 5

	plain, err := NewOrchestrator(&fakeEngine{}, nil, quietLogger()).CalculateGrid(context.Background(), req)
	require.NoError(t, err)
	refined, err := NewOrchestrator(&fakeEngine{}, fixedLocator{xb: []float64{45}}, quietLogger()).CalculateGrid(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 11, plain.X.Len())
	assert.Greater(t, refined.X.Len(), plain.X.Len())
	assert.Equal(t, plain.Y.Points, refined.Y.Points)
	assert.Equal(t, grid.Adaptive, refined.Info.Type)
}

func TestProgressReachesTotal(t *testing.T) {
	var mu sync.Mutex
	var last, total int
	req := ptRequest()
	req.Options = Options{Parallel: true, Workers: 2, Progress: func(done, n int) {
		mu.Lock()
		defer mu.Unlock()
		if done > last {
			last = done
		}
		total = n
	}}

	_, err := NewOrchestrator(&fakeEngine{}, nil, quietLogger()).CalculateGrid(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 9, total)
	assert.Equal(t, 9, last)
}

func TestCancelledContextStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := &fakeEngine{}

	run, err := NewOrchestrator(eng, nil, quietLogger()).CalculateGrid(ctx, ptRequest())
	require.NoError(t, err)
	assert.Zero(t, eng.calls.Load())
	assert.Zero(t, run.Points.Len())
}

func TestGridInfoJSON(t *testing.T) {
	data, err := json.Marshal(GridInfo{
		Type: grid.Equidistant, XName: "pressure", YName: "enthalpy",
		XPoints: 3, YPoints: 4, TotalPoints: 11, FailedPoints: 1,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"equidistant","pressure_points":3,"enthalpy_points":4,"total_points":11,"failed_points":1}`, string(data))
}
