package geometry

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/config"
)

// ErrInvalidGridSize is returned for a periodic grid with a non-positive
// dimension.
var ErrInvalidGridSize = errors.New("invalid grid size")

// PeriodicID indexes a periodic placement in its scene's arena.
type PeriodicID int

// PeriodicSpec describes a rectangular grid of copies of Child in Parent.
//
// Count is (columns, rows): Count[0] copies along x, Count[1] along y.
// Instance k sits in column k%Count[0] and row k/Count[0], at
// (Origin.X + col·Pitch.X, Origin.Y + row·Pitch.Y, 0) in the parent frame.
type PeriodicSpec struct {
	Name   string
	Parent VolumeID
	Child  VolumeID
	Count  [2]int
	Pitch  config.Vec2
	Origin config.Vec2
}

// PeriodicPlacement is a lazily evaluated grid of instances. Instances are
// never materialised as individual placements.
type PeriodicPlacement struct {
	ID     PeriodicID
	Name   string
	Parent VolumeID
	Child  VolumeID
	Count  [2]int
	Pitch  config.Vec2
	Origin config.Vec2
}

// Instance is one evaluated cell of a periodic grid.
type Instance struct {
	Index       int
	Column, Row int
	Translation r3.Vec
}

// PlacePeriodic adds a periodic grid placement. The child volume must not be
// placed anywhere else.
func (s *Scene) PlacePeriodic(spec PeriodicSpec) (PeriodicID, error) {
	if spec.Count[0] <= 0 || spec.Count[1] <= 0 {
		return 0, fmt.Errorf("%w: %d×%d", ErrInvalidGridSize, spec.Count[0], spec.Count[1])
	}
	if err := s.attach(spec.Parent, spec.Child, false); err != nil {
		return 0, err
	}
	id := PeriodicID(len(s.periodic))
	s.periodic = append(s.periodic, &PeriodicPlacement{
		ID:     id,
		Name:   spec.Name,
		Parent: spec.Parent,
		Child:  spec.Child,
		Count:  spec.Count,
		Pitch:  spec.Pitch,
		Origin: spec.Origin,
	})
	return id, nil
}

// Len returns the number of instances in the grid.
func (p *PeriodicPlacement) Len() int {
	return p.Count[0] * p.Count[1]
}

// Instance evaluates the k-th instance. It reports false when k is out of
// range.
func (p *PeriodicPlacement) Instance(k int) (Instance, bool) {
	if k < 0 || k >= p.Len() {
		return Instance{}, false
	}
	col, row := k%p.Count[0], k/p.Count[0]
	return Instance{
		Index:  k,
		Column: col,
		Row:    row,
		Translation: r3.Vec{
			X: p.Origin.X + float64(col)*p.Pitch.X,
			Y: p.Origin.Y + float64(row)*p.Pitch.Y,
		},
	}, true
}

// Cell returns the index of the instance at (col, row), or false when the
// cell is outside the grid.
func (p *PeriodicPlacement) Cell(col, row int) (int, bool) {
	if col < 0 || row < 0 || col >= p.Count[0] || row >= p.Count[1] {
		return 0, false
	}
	return row*p.Count[0] + col, true
}

// Bounds returns the box spanned by every instance's translation.
func (p *PeriodicPlacement) Bounds() Box {
	last, _ := p.Instance(p.Len() - 1)
	first, _ := p.Instance(0)
	return Box{Min: first.Translation, Max: first.Translation}.Extend(last.Translation)
}

// Periodic returns the periodic placement with the given ID, or nil.
func (s *Scene) Periodic(id PeriodicID) *PeriodicPlacement {
	if id < 0 || int(id) >= len(s.periodic) {
		return nil
	}
	return s.periodic[id]
}

// PeriodicPlacements returns every periodic placement in creation order.
func (s *Scene) PeriodicPlacements() []*PeriodicPlacement {
	return append([]*PeriodicPlacement(nil), s.periodic...)
}

// PeriodicIn returns the periodic placements whose parent is v.
func (s *Scene) PeriodicIn(v VolumeID) []*PeriodicPlacement {
	var out []*PeriodicPlacement
	for _, p := range s.periodic {
		if p.Parent == v {
			out = append(out, p)
		}
	}
	return out
}
