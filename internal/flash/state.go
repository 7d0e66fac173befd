package flash

import (
	"math"

	"Flashgrid/internal/units"
)

// Measure is one property slot. Set distinguishes "absent" from a zero value.
type Measure struct {
	Value float64
	Unit  string
	Set   bool
}

// State is the outcome of a single successful flash: typed property slots,
// phase, phase compositions and the grid position it was computed for.
type State struct {
	Kind  Kind
	Index int
	XIdx  int
	YIdx  int
	Phase Phase

	// Liquid (X) and vapor (Y) phase mole fractions, one per component.
	X []float64
	Y []float64

	values [numProperties]Measure
}

// NewState returns a state with no grid position (indices are -1).
func NewState(kind Kind) *State {
	return &State{Kind: kind, Index: -1, XIdx: -1, YIdx: -1}
}

// Set stores an SI value. Non-finite values are treated as absent.
func (s *State) Set(p Property, v float64) {
	if !p.Valid() {
		return
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		s.values[p] = Measure{}
		return
	}
	s.values[p] = Measure{Value: v, Unit: units.Unit(p.String(), units.SI), Set: true}
}

func (s *State) Get(p Property) (float64, bool) {
	if !p.Valid() || !s.values[p].Set {
		return 0, false
	}
	return s.values[p].Value, true
}

func (s *State) Has(p Property) bool {
	_, ok := s.Get(p)
	return ok
}

func (s *State) Measure(p Property) Measure {
	if !p.Valid() {
		return Measure{}
	}
	return s.values[p]
}

func (s *State) Clear(p Property) {
	if p.Valid() {
		s.values[p] = Measure{}
	}
}

// ResolvedPhase prefers the engine-reported phase and otherwise derives one
// from an exact vapor fraction.
func (s *State) ResolvedPhase() Phase {
	if s.Phase != PhaseUnknown {
		return s.Phase
	}
	q, ok := s.Get(PropVaporFraction)
	if !ok {
		return PhaseUnknown
	}
	switch {
	case q == 0:
		return PhaseLiquid
	case q == 1:
		return PhaseVapor
	case q > 0 && q < 1:
		return PhaseTwoPhase
	}
	return PhaseUnknown
}

// Selection decides which slots survive Filter.
type Selection struct {
	Properties   map[Property]bool
	Compositions bool
}

// Filter drops every slot not selected. A nil Properties map keeps all slots.
func (s *State) Filter(sel Selection) {
	if sel.Properties != nil {
		for p := range s.values {
			if !sel.Properties[Property(p)] {
				s.Clear(Property(p))
			}
		}
	}
	if !sel.Compositions {
		s.X, s.Y = nil, nil
	}
}

func (s *State) Clone() *State {
	c := *s
	c.X = append([]float64(nil), s.X...)
	c.Y = append([]float64(nil), s.Y...)
	return &c
}

// Converted returns a copy with every slot expressed in sys.
func (s *State) Converted(sys units.System, molarMass float64) *State {
	c := s.Clone()
	if sys == units.SI {
		return c
	}
	for p, m := range c.values {
		if !m.Set {
			continue
		}
		q := units.Convert(Property(p).String(), m.Value, molarMass, units.SI, sys)
		c.values[p] = Measure{Value: q.Value, Unit: q.Unit, Set: true}
	}
	return c
}
