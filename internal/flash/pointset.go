package flash

import "fmt"

// PointSet is the index-addressable home of a grid run's results. Each
// (i, j) owns one slot, so workers writing different points never share
// memory and result placement does not depend on completion order.
type PointSet struct {
	nx, ny int
	slots  []*State
}

func NewPointSet(nx, ny int) *PointSet {
	return &PointSet{nx: nx, ny: ny, slots: make([]*State, nx*ny)}
}

func (ps *PointSet) Dims() (nx, ny int) { return ps.nx, ps.ny }

// Put stores s at (s.XIdx, s.YIdx). A slot is written at most once.
func (ps *PointSet) Put(s *State) error {
	if s.XIdx < 0 || s.XIdx >= ps.nx || s.YIdx < 0 || s.YIdx >= ps.ny {
		return fmt.Errorf("flash: point (%d, %d) outside %dx%d grid", s.XIdx, s.YIdx, ps.nx, ps.ny)
	}
	k := s.XIdx*ps.ny + s.YIdx
	if ps.slots[k] != nil {
		return fmt.Errorf("flash: point (%d, %d) already computed", s.XIdx, s.YIdx)
	}
	ps.slots[k] = s
	return nil
}

func (ps *PointSet) At(i, j int) *State {
	if i < 0 || i >= ps.nx || j < 0 || j >= ps.ny {
		return nil
	}
	return ps.slots[i*ps.ny+j]
}

func (ps *PointSet) Len() int {
	n := 0
	for _, s := range ps.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// Results lists the populated slots in flat index order.
func (ps *PointSet) Results() []*State {
	out := make([]*State, 0, ps.Len())
	for _, s := range ps.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}
