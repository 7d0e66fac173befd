package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"Flashgrid/internal/fluid"
	"Flashgrid/internal/grid"
)

type Traversal string

const (
	XMajor Traversal = "x_major"
	YMajor Traversal = "y_major"
)

// position maps the k-th task onto grid indices.
func (t Traversal) position(k, nx, ny int) (i, j int) {
	if t == YMajor {
		return k % nx, k / nx
	}
	return k / ny, k % ny
}

type AxisSpec struct {
	From       float64
	To         float64
	Resolution float64
}

// repairedTo applies the to <= from repair the grid generator uses.
func (a AxisSpec) repairedTo() float64 {
	if a.To <= a.From {
		return a.From + a.Resolution
	}
	return a.To
}

type Options struct {
	Strategy          grid.Strategy
	EnhancementFactor float64
	BoundaryZoneWidth float64

	Traversal    Traversal
	Parallel     bool
	Workers      int
	ChunkSize    int
	PointTimeout time.Duration

	// Progress is called after each point; with Parallel it is called from
	// several goroutines.
	Progress func(done, total int)
}

type Request struct {
	Kind        Kind
	Composition fluid.Composition
	X, Y        AxisSpec
	// Properties to keep on each result besides the axis variables.
	// Nil keeps everything.
	Properties   []Property
	Compositions bool
	Options      Options
}

type GridInfo struct {
	Type         grid.Strategy
	XName        string
	YName        string
	XPoints      int
	YPoints      int
	TotalPoints  int
	FailedPoints int
}

func (gi GridInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":               gi.Type,
		gi.XName + "_points": gi.XPoints,
		gi.YName + "_points": gi.YPoints,
		"total_points":       gi.TotalPoints,
		"failed_points":      gi.FailedPoints,
	})
}

// Run is everything one grid calculation produced.
type Run struct {
	ID          uuid.UUID
	Kind        Kind
	Composition fluid.Composition
	MolarMass   float64
	X, Y        *grid.Grid
	Points      *PointSet
	Info        GridInfo
	Started     time.Time
	Elapsed     time.Duration
}

func (r *Run) Results() []*State { return r.Points.Results() }

type Orchestrator struct {
	engine  Engine
	locator BoundaryLocator
	log     logrus.FieldLogger
}

// NewOrchestrator binds an engine handle. locator may be nil, in which
// case adaptive grids degrade to equidistant ones.
func NewOrchestrator(engine Engine, locator BoundaryLocator, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{engine: engine, locator: locator, log: log}
}

func (o *Orchestrator) Engine() Engine { return o.engine }

// Grids builds both axes, locating phase boundaries first for adaptive grids.
func (o *Orchestrator) Grids(ctx context.Context, req Request) (xg, yg *grid.Grid, err error) {
	var xb, yb []float64
	if req.Options.Strategy == grid.Adaptive && o.locator != nil {
		xb, yb = o.locator.Locate(ctx, req.Kind, req.Composition,
			[2]float64{req.X.From, req.X.repairedTo()},
			[2]float64{req.Y.From, req.Y.repairedTo()})
		o.log.WithFields(logrus.Fields{
			"kind":         req.Kind,
			"x_boundaries": len(xb),
			"y_boundaries": len(yb),
		}).Debug("phase boundaries located")
	}

	spec := func(a AxisSpec, boundaries []float64) grid.Spec {
		return grid.Spec{
			From:              a.From,
			To:                a.To,
			Resolution:        a.Resolution,
			Strategy:          req.Options.Strategy,
			BoundaryPoints:    boundaries,
			EnhancementFactor: req.Options.EnhancementFactor,
			BoundaryZoneWidth: req.Options.BoundaryZoneWidth,
		}
	}
	xa, ya := req.Kind.Axes()
	if xg, err = grid.Generate(spec(req.X, xb)); err != nil {
		return nil, nil, fmt.Errorf("flash: %s grid: %w", xa.Name, err)
	}
	if yg, err = grid.Generate(spec(req.Y, yb)); err != nil {
		return nil, nil, fmt.Errorf("flash: %s grid: %w", ya.Name, err)
	}
	return xg, yg, nil
}

// CalculateGrid flashes every grid intersection. Failing points are logged
// and left out; only structural problems (bad composition, bad ranges, an
// engine that cannot set up the mixture) return an error.
func (o *Orchestrator) CalculateGrid(ctx context.Context, req Request) (*Run, error) {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, err
	}
	if err := fluid.Validate(req.Composition); err != nil {
		return nil, err
	}

	run := &Run{
		ID:          uuid.New(),
		Kind:        req.Kind,
		Composition: req.Composition,
		Started:     time.Now(),
	}
	log := o.log.WithFields(logrus.Fields{"run": run.ID, "kind": req.Kind})

	mm, err := o.engine.MolarMass(ctx, req.Composition)
	if err != nil {
		return nil, fmt.Errorf("flash: setting up mixture: %w", err)
	}
	run.MolarMass = mm

	xg, yg, err := o.Grids(ctx, req)
	if err != nil {
		return nil, err
	}
	run.X, run.Y = xg, yg
	run.Points = NewPointSet(xg.Len(), yg.Len())

	log.WithFields(logrus.Fields{
		"nx":       xg.Len(),
		"ny":       yg.Len(),
		"strategy": req.Options.Strategy,
		"parallel": req.Options.Parallel,
	}).Info("flash grid started")

	failed := o.execute(ctx, req, log, run)

	xa, ya := req.Kind.Axes()
	strategy := req.Options.Strategy
	if strategy == "" {
		strategy = grid.Equidistant
	}
	run.Info = GridInfo{
		Type:         strategy,
		XName:        xa.Name,
		YName:        ya.Name,
		XPoints:      xg.Len(),
		YPoints:      yg.Len(),
		TotalPoints:  run.Points.Len(),
		FailedPoints: failed,
	}
	run.Elapsed = time.Since(run.Started)

	log.WithFields(logrus.Fields{
		"points":  run.Info.TotalPoints,
		"failed":  failed,
		"elapsed": run.Elapsed,
	}).Info("flash grid finished")
	if ctx.Err() != nil {
		log.WithError(ctx.Err()).Warn("flash grid cancelled before completion")
	}
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, req Request, log logrus.FieldLogger, run *Run) int {
	nx, ny := run.X.Len(), run.Y.Len()
	total := nx * ny
	sel := selection(req)
	opts := req.Options

	var failed, done atomic.Int64
	do := func(k int) {
		i, j := opts.Traversal.position(k, nx, ny)
		x, y := run.X.Points[i], run.Y.Points[j]
		if err := o.point(ctx, req, sel, run.Points, i, j, x, y); err != nil {
			failed.Add(1)
			log.WithFields(logrus.Fields{
				"x":     x,
				"y":     y,
				"x_idx": i,
				"y_idx": j,
			}).WithError(err).Warn("flash point skipped")
		}
		if opts.Progress != nil {
			opts.Progress(int(done.Add(1)), total)
		}
	}

	if !opts.Parallel || opts.Workers <= 1 {
		for k := 0; k < total && ctx.Err() == nil; k++ {
			do(k)
		}
		return int(failed.Load())
	}

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = max(1, total/(opts.Workers*2))
	}
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for start := 0; start < total && ctx.Err() == nil; start += chunk {
		end := min(start+chunk, total)
		g.Go(func() error {
			for k := start; k < end && ctx.Err() == nil; k++ {
				do(k)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}

func selection(req Request) Selection {
	if req.Properties == nil {
		return Selection{Compositions: true}
	}
	xa, ya := req.Kind.Axes()
	keep := map[Property]bool{xa.Property: true, ya.Property: true}
	for _, p := range req.Properties {
		keep[p] = true
	}
	return Selection{Properties: keep, Compositions: req.Compositions}
}

func (o *Orchestrator) point(ctx context.Context, req Request, sel Selection, set *PointSet, i, j int, x, y float64) error {
	st, err := o.flash(ctx, req, x, y)
	if err != nil {
		return &PointError{Kind: req.Kind, X: x, Y: y, XIdx: i, YIdx: j, Err: err}
	}

	xa, ya := req.Kind.Axes()
	_, ny := set.Dims()
	st.Kind = req.Kind
	st.XIdx, st.YIdx = i, j
	st.Index = i*ny + j
	if !st.Has(xa.Property) {
		st.Set(xa.Property, x)
	}
	if !st.Has(ya.Property) {
		st.Set(ya.Property, y)
	}
	if st.Phase == PhaseUnknown {
		if q, ok := st.Get(PropVaporFraction); ok {
			st.Phase = PhaseFromQuality(q)
		}
	}
	st.Filter(sel)
	return set.Put(st)
}

// flash bounds a single engine call by PointTimeout even when the engine
// ignores its context.
func (o *Orchestrator) flash(ctx context.Context, req Request, x, y float64) (*State, error) {
	timeout := req.Options.PointTimeout
	if timeout <= 0 {
		return nonNil(o.engine.Flash(ctx, req.Kind, x, y, req.Composition))
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		st  *State
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		st, err := o.engine.Flash(pctx, req.Kind, x, y, req.Composition)
		ch <- reply{st, err}
	}()
	select {
	case r := <-ch:
		return nonNil(r.st, r.err)
	case <-pctx.Done():
		return nil, pctx.Err()
	}
}

func nonNil(st *State, err error) (*State, error) {
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoState
	}
	return st, nil
}
