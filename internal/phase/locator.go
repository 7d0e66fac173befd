// Package phase estimates where a mixture changes phase inside a 2D range
// so adaptive grids can be refined there.
package phase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
)

const (
	DefaultProbes  = 8
	DefaultWorkers = 4
)

type region int8

const (
	regionNone region = iota
	regionLiquid
	regionTwoPhase
	regionVapor
	regionSupercritical
)

func classify(s *flash.State) region {
	if q, ok := s.Get(flash.PropVaporFraction); ok {
		return fromPhase(flash.PhaseFromQuality(q))
	}
	return fromPhase(s.Phase)
}

func fromPhase(p flash.Phase) region {
	switch p {
	case flash.PhaseLiquid:
		return regionLiquid
	case flash.PhaseTwoPhase:
		return regionTwoPhase
	case flash.PhaseVapor:
		return regionVapor
	case flash.PhaseSupercritical:
		return regionSupercritical
	}
	return regionNone
}

type Config struct {
	// ProbesX and ProbesY size the coarse probe grid; values below 2 use DefaultProbes.
	ProbesX, ProbesY int
	Workers          int
	// ProbeTimeout bounds each engine call; zero means no bound.
	ProbeTimeout time.Duration
}

// Locator samples an engine on a coarse probe grid and reports the
// coordinates bracketing every change of phase region.
type Locator struct {
	engine flash.Engine
	cfg    Config
	log    logrus.FieldLogger
}

func New(engine flash.Engine, cfg Config, log logrus.FieldLogger) *Locator {
	if cfg.ProbesX < 2 {
		cfg.ProbesX = DefaultProbes
	}
	if cfg.ProbesY < 2 {
		cfg.ProbesY = DefaultProbes
	}
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Locator{engine: engine, cfg: cfg, log: log}
}

// Locate never fails. Probes the engine rejects are skipped, and a range
// without crossings yields two empty slices.
func (l *Locator) Locate(ctx context.Context, kind flash.Kind, comp fluid.Composition, xr, yr [2]float64) (xb, yb []float64) {
	if !(xr[1] > xr[0]) || !(yr[1] > yr[0]) {
		return nil, nil
	}
	xs := floats.Span(make([]float64, l.cfg.ProbesX), xr[0], xr[1])
	ys := floats.Span(make([]float64, l.cfg.ProbesY), yr[0], yr[1])

	regions := l.probe(ctx, kind, comp, xs, ys)

	var xSet, ySet []float64
	for j := range ys {
		line := make([]region, len(xs))
		for i := range xs {
			line[i] = regions[i][j]
		}
		xSet = append(xSet, crossings(xs, line)...)
	}
	for i := range xs {
		ySet = append(ySet, crossings(ys, regions[i])...)
	}
	xb, yb = unique(xSet), unique(ySet)

	l.log.WithFields(logrus.Fields{
		"kind": kind,
		"x":    len(xb),
		"y":    len(yb),
	}).Debug("phase boundary probe finished")
	return xb, yb
}

func (l *Locator) probe(ctx context.Context, kind flash.Kind, comp fluid.Composition, xs, ys []float64) [][]region {
	regions := make([][]region, len(xs))
	for i := range regions {
		regions[i] = make([]region, len(ys))
	}

	var (
		mu      sync.Mutex
		skipped int
	)
	var g errgroup.Group
	g.SetLimit(l.cfg.Workers)
	for i, x := range xs {
		for j, y := range ys {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				r, err := l.flash(ctx, kind, comp, x, y)
				if err != nil {
					mu.Lock()
					skipped++
					mu.Unlock()
					return nil
				}
				regions[i][j] = r
				return nil
			})
		}
	}
	_ = g.Wait()

	if skipped > 0 {
		l.log.WithFields(logrus.Fields{"kind": kind, "skipped": skipped}).Debug("phase probes rejected by engine")
	}
	return regions
}

func (l *Locator) flash(ctx context.Context, kind flash.Kind, comp fluid.Composition, x, y float64) (region, error) {
	if l.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.ProbeTimeout)
		defer cancel()
	}
	s, err := l.engine.Flash(ctx, kind, x, y, comp)
	if err != nil {
		return regionNone, err
	}
	if s == nil {
		return regionNone, flash.ErrNoState
	}
	return classify(s), nil
}

// crossings walks one probe line and returns both coordinates around each
// change of region between consecutive classified probes.
func crossings(coords []float64, line []region) []float64 {
	var out []float64
	prev := -1
	for k, r := range line {
		if r == regionNone {
			continue
		}
		if prev >= 0 && line[prev] != r {
			out = append(out, coords[prev], coords[k])
		}
		prev = k
	}
	return out
}

func unique(v []float64) []float64 {
	if len(v) == 0 {
		return nil
	}
	sort.Float64s(v)
	out := v[:1]
	for _, x := range v[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
