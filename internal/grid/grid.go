package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

type Strategy string

const (
	Equidistant Strategy = "equidistant"
	Adaptive    Strategy = "adaptive"
	Logarithmic Strategy = "logarithmic"
	Exponential Strategy = "exponential"
)

// ExponentialRate controls how strongly the exponential strategy packs
// points towards the upper end of the range.
const ExponentialRate = 3.0

const eps = 1e-9

var ErrInvalidResolution = errors.New("grid: resolution must be positive")

// InvalidRangeError is returned when a strategy cannot map the range,
// e.g. a logarithmic grid starting at or below zero.
type InvalidRangeError struct {
	From, To float64
	Reason   string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("grid: invalid range [%g, %g]: %s", e.From, e.To, e.Reason)
}

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return Equidistant, nil
	case Equidistant, Adaptive, Logarithmic, Exponential:
		return st, nil
	default:
		return "", fmt.Errorf("grid: unknown grid type %q", s)
	}
}

type Spec struct {
	From       float64
	To         float64
	Resolution float64
	Strategy   Strategy

	// Adaptive only.
	BoundaryPoints    []float64
	EnhancementFactor float64
	BoundaryZoneWidth float64
}

// Grid is an immutable, strictly increasing set of coordinates along one axis.
type Grid struct {
	Points     []float64
	Resolution float64
	// Zone[i] reports whether Points[i] lies inside a refined boundary zone.
	Zone []bool
}

func (g *Grid) Len() int { return len(g.Points) }

func (g *Grid) Min() float64 { return g.Points[0] }

func (g *Grid) Max() float64 { return g.Points[len(g.Points)-1] }

// Nearest returns the index of the coordinate closest to v.
func (g *Grid) Nearest(v float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, p := range g.Points {
		if d := math.Abs(p - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// FromPoints wraps already generated coordinates, e.g. ones read back from
// a saved result set.
func FromPoints(points []float64) (*Grid, error) {
	if len(points) == 0 {
		return nil, &InvalidRangeError{Reason: "no points"}
	}
	for i := 1; i < len(points); i++ {
		if points[i] <= points[i-1] {
			return nil, &InvalidRangeError{From: points[0], To: points[len(points)-1], Reason: "points not strictly increasing"}
		}
	}
	res := 0.0
	if len(points) > 1 {
		res = points[1] - points[0]
	}
	return &Grid{Points: points, Resolution: res, Zone: make([]bool, len(points))}, nil
}

func Generate(s Spec) (*Grid, error) {
	if s.Resolution <= 0 || math.IsNaN(s.Resolution) || math.IsInf(s.Resolution, 0) {
		return nil, ErrInvalidResolution
	}
	if math.IsNaN(s.From) || math.IsNaN(s.To) || math.IsInf(s.From, 0) || math.IsInf(s.To, 0) {
		return nil, &InvalidRangeError{From: s.From, To: s.To, Reason: "bounds must be finite"}
	}
	// Degenerate ranges are repaired rather than rejected.
	if s.To <= s.From {
		s.To = s.From + s.Resolution
	}

	switch s.Strategy {
	case Equidistant, "":
		return equidistant(s), nil
	case Adaptive:
		return adaptive(s), nil
	case Logarithmic:
		return logarithmic(s)
	case Exponential:
		return exponential(s), nil
	default:
		return nil, fmt.Errorf("grid: unknown grid type %q", s.Strategy)
	}
}

// pointCount follows arange(from, to+res, res): the last point is to itself
// or the first step past it. A span shorter than the tolerance still yields
// two points so that to stays covered.
func pointCount(from, to, res float64) int {
	k := (to - from) / res
	n := int(math.Floor(k+eps)) + 1
	if from+float64(n-1)*res < to-res*eps {
		n++
	}
	if n < 2 && to > from {
		n = 2
	}
	return n
}

func equidistant(s Spec) *Grid {
	n := pointCount(s.From, s.To, s.Resolution)
	pts := make([]float64, n)
	for i := range pts {
		pts[i] = s.From + float64(i)*s.Resolution
	}
	return &Grid{Points: pts, Resolution: s.Resolution, Zone: make([]bool, n)}
}

func adaptive(s Spec) *Grid {
	base := equidistant(s)
	if len(s.BoundaryPoints) == 0 {
		return base
	}

	factor := s.EnhancementFactor
	if factor < 1 {
		factor = 1
	}
	width := s.BoundaryZoneWidth
	if width <= 0 {
		width = s.Resolution
	}
	step := s.Resolution / factor
	lo, hi := base.Min(), base.Max()

	pts := append([]float64(nil), base.Points...)
	var zones [][2]float64
	for _, b := range s.BoundaryPoints {
		if math.IsNaN(b) || b < lo-width || b > hi+width {
			continue
		}
		start, end := math.Max(lo, b-width), math.Min(hi, b+width)
		zones = append(zones, [2]float64{start, end})
		for k := 0; ; k++ {
			v := start + float64(k)*step
			if v > end+step*eps {
				break
			}
			pts = append(pts, v)
		}
	}

	sort.Float64s(pts)
	merged := pts[:1]
	for _, p := range pts[1:] {
		if p-merged[len(merged)-1] > step*1e-6 {
			merged = append(merged, p)
		}
	}

	zone := make([]bool, len(merged))
	for i, p := range merged {
		for _, z := range zones {
			if p >= z[0]-step*eps && p <= z[1]+step*eps {
				zone[i] = true
				break
			}
		}
	}
	return &Grid{Points: merged, Resolution: s.Resolution, Zone: zone}
}

func logarithmic(s Spec) (*Grid, error) {
	if s.From <= 0 {
		return nil, &InvalidRangeError{From: s.From, To: s.To, Reason: "logarithmic grid requires from > 0"}
	}
	n := pointCount(s.From, s.To, s.Resolution)
	pts := floats.LogSpan(make([]float64, n), s.From, s.To)
	pts[0], pts[n-1] = s.From, s.To
	return &Grid{Points: pts, Resolution: s.Resolution, Zone: make([]bool, n)}, nil
}

func exponential(s Spec) *Grid {
	n := pointCount(s.From, s.To, s.Resolution)
	t := floats.Span(make([]float64, n), 0, 1)
	span := s.To - s.From
	denom := math.Expm1(ExponentialRate)
	pts := make([]float64, n)
	for i, ti := range t {
		pts[i] = s.From + span*math.Expm1(ExponentialRate*ti)/denom
	}
	pts[0], pts[n-1] = s.From, s.To
	return &Grid{Points: pts, Resolution: s.Resolution, Zone: make([]bool, n)}
}
