package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/material"
	"github.com/chazu/pixelgeo/pkg/orientation"
)

var (
	// ErrDuplicateSolidName is returned when a solid name is already taken.
	ErrDuplicateSolidName = errors.New("duplicate solid name")
	// ErrDuplicateVolumeName is returned when a volume name is already taken.
	ErrDuplicateVolumeName = errors.New("duplicate volume name")
	// ErrInvalidSolid is returned for non-positive or inconsistent solid parameters.
	ErrInvalidSolid = errors.New("invalid solid parameters")
	// ErrUnknownSolid is returned when a SolidID does not belong to the scene.
	ErrUnknownSolid = errors.New("unknown solid")
	// ErrUnknownVolume is returned when a VolumeID does not belong to the scene.
	ErrUnknownVolume = errors.New("unknown volume")
	// ErrInvalidPlacement is returned when a placement would break the tree.
	ErrInvalidPlacement = errors.New("invalid placement")
)

// Scene is the arena holding every solid, volume and placement built for
// one run. Volumes form a tree rooted at the world volume: each non-root
// volume has exactly one parent, possibly instanced many times in it.
//
// A Scene is not safe for concurrent mutation. Once construction is done it
// may be read from many goroutines.
type Scene struct {
	solids     []*Solid
	volumes    []*Volume
	placements []*Placement
	periodic   []*PeriodicPlacement

	solidIndex  map[string]SolidID
	volumeIndex map[string]VolumeID

	root    VolumeID
	hasRoot bool
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		solidIndex:  make(map[string]SolidID),
		volumeIndex: make(map[string]VolumeID),
	}
}

// ---------------------------------------------------------------------------
// Solids
// ---------------------------------------------------------------------------

func (s *Scene) addSolid(name string, kind SolidKind, data SolidData, extent r3.Vec) (SolidID, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: empty name", ErrInvalidSolid)
	}
	if _, taken := s.solidIndex[name]; taken {
		return 0, fmt.Errorf("%w %q", ErrDuplicateSolidName, name)
	}
	id := SolidID(len(s.solids))
	s.solids = append(s.solids, &Solid{ID: id, Name: name, Kind: kind, Data: data, extent: extent})
	s.solidIndex[name] = id
	return id, nil
}

// MakeBox creates a box with the given half extents.
func (s *Scene) MakeBox(name string, half r3.Vec) (SolidID, error) {
	if !(half.X > 0 && half.Y > 0 && half.Z > 0) {
		return 0, fmt.Errorf("%w: box %q half extents %v must be positive", ErrInvalidSolid, name, half)
	}
	return s.addSolid(name, SolidBox, BoxData{Half: half}, half)
}

// MakeSphere creates a spherical shell segment. Angles are in radians.
func (s *Scene) MakeSphere(name string, d SphereData) (SolidID, error) {
	switch {
	case d.RMin < 0 || d.RMax <= d.RMin:
		return 0, fmt.Errorf("%w: sphere %q radii must satisfy 0 <= %g < %g", ErrInvalidSolid, name, d.RMin, d.RMax)
	case d.PhiDelta <= 0 || d.ThetaDelta <= 0:
		return 0, fmt.Errorf("%w: sphere %q angular lengths must be positive", ErrInvalidSolid, name)
	}
	d.PhiDelta = math.Min(d.PhiDelta, 2*math.Pi)
	d.ThetaDelta = math.Min(d.ThetaDelta, math.Pi)
	return s.addSolid(name, SolidSphere, d, r3.Vec{X: d.RMax, Y: d.RMax, Z: d.RMax})
}

// MakeTube creates a cylindrical shell segment along z.
func (s *Scene) MakeTube(name string, d TubeData) (SolidID, error) {
	switch {
	case d.RMin < 0 || d.RMax <= d.RMin:
		return 0, fmt.Errorf("%w: tube %q radii must satisfy 0 <= %g < %g", ErrInvalidSolid, name, d.RMin, d.RMax)
	case d.HalfZ <= 0:
		return 0, fmt.Errorf("%w: tube %q half length %g must be positive", ErrInvalidSolid, name, d.HalfZ)
	case d.PhiDelta <= 0:
		return 0, fmt.Errorf("%w: tube %q angular length must be positive", ErrInvalidSolid, name)
	}
	d.PhiDelta = math.Min(d.PhiDelta, 2*math.Pi)
	return s.addSolid(name, SolidTube, d, r3.Vec{X: d.RMax, Y: d.RMax, Z: d.HalfZ})
}

// Subtract creates a minus b, with b placed in a's frame by t.
func (s *Scene) Subtract(name string, a, b SolidID, t orientation.Transform) (SolidID, error) {
	sa, err := s.solidArg(a)
	if err != nil {
		return 0, err
	}
	if _, err := s.solidArg(b); err != nil {
		return 0, err
	}
	return s.addSolid(name, SolidSubtraction, SubtractionData{A: a, B: b, Transform: t}, sa.extent)
}

// Unite creates the union of a and b with coincident frames.
func (s *Scene) Unite(name string, a, b SolidID) (SolidID, error) {
	return s.UniteAt(name, a, b, orientation.IdentityTransform())
}

// UniteAt creates the union of a and b, with b placed in a's frame by t.
func (s *Scene) UniteAt(name string, a, b SolidID, t orientation.Transform) (SolidID, error) {
	sa, err := s.solidArg(a)
	if err != nil {
		return 0, err
	}
	sb, err := s.solidArg(b)
	if err != nil {
		return 0, err
	}
	box := BoxFromHalf(sa.extent).Union(BoxFromHalf(sb.extent).Transformed(t))
	return s.addSolid(name, SolidUnion, UnionData{A: a, B: b, Transform: t}, box.HalfSymmetric())
}

// HoleCutter returns the half extents of the box subtracted from a plate of
// half thickness plateHalfZ to open a hole of the given full size. The
// cutter is doubled in z and never thinner than the plate so it always
// pierces both faces.
func HoleCutter(holeSize r3.Vec, plateHalfZ float64) r3.Vec {
	return r3.Vec{
		X: holeSize.X / 2,
		Y: holeSize.Y / 2,
		Z: math.Max(holeSize.Z, 2*plateHalfZ),
	}
}

func (s *Scene) solidArg(id SolidID) (*Solid, error) {
	if id < 0 || int(id) >= len(s.solids) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownSolid, id)
	}
	return s.solids[id], nil
}

// Solid returns the solid with the given ID, or nil.
func (s *Scene) Solid(id SolidID) *Solid {
	sol, err := s.solidArg(id)
	if err != nil {
		return nil
	}
	return sol
}

// LookupSolid returns the solid with the given name, or nil.
func (s *Scene) LookupSolid(name string) *Solid {
	id, ok := s.solidIndex[name]
	if !ok {
		return nil
	}
	return s.solids[id]
}

// Solids returns every solid in creation order.
func (s *Scene) Solids() []*Solid {
	return append([]*Solid(nil), s.solids...)
}

// SolidCount returns the number of solids.
func (s *Scene) SolidCount() int { return len(s.solids) }

// ---------------------------------------------------------------------------
// Volumes
// ---------------------------------------------------------------------------

// VolumeID indexes a volume in its scene's arena.
type VolumeID int

// Volume binds a solid to a material.
type Volume struct {
	ID       VolumeID
	Name     string
	Solid    SolidID
	Material material.Material

	parent    VolumeID
	hasParent bool
	many      bool
}

// NewVolume creates an unplaced volume.
func (s *Scene) NewVolume(name string, solid SolidID, mat material.Material) (VolumeID, error) {
	if _, err := s.solidArg(solid); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fmt.Errorf("%w: empty volume name", ErrInvalidPlacement)
	}
	if _, taken := s.volumeIndex[name]; taken {
		return 0, fmt.Errorf("%w %q", ErrDuplicateVolumeName, name)
	}
	if mat.IsZero() {
		return 0, fmt.Errorf("%w: volume %q has no material", material.ErrUnknownMaterial, name)
	}
	id := VolumeID(len(s.volumes))
	s.volumes = append(s.volumes, &Volume{ID: id, Name: name, Solid: solid, Material: mat})
	s.volumeIndex[name] = id
	return id, nil
}

func (s *Scene) volumeArg(id VolumeID) (*Volume, error) {
	if id < 0 || int(id) >= len(s.volumes) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownVolume, id)
	}
	return s.volumes[id], nil
}

// SetRoot marks v as the world volume. It can be set once, and only on a
// volume that has not been placed.
func (s *Scene) SetRoot(v VolumeID) error {
	vol, err := s.volumeArg(v)
	if err != nil {
		return err
	}
	if s.hasRoot {
		return fmt.Errorf("%w: root already set to %q", ErrInvalidPlacement, s.volumes[s.root].Name)
	}
	if vol.hasParent {
		return fmt.Errorf("%w: volume %q is already placed", ErrInvalidPlacement, vol.Name)
	}
	s.root, s.hasRoot = v, true
	return nil
}

// Root returns the world volume.
func (s *Scene) Root() (VolumeID, bool) {
	return s.root, s.hasRoot
}

// Volume returns the volume with the given ID, or nil.
func (s *Scene) Volume(id VolumeID) *Volume {
	v, err := s.volumeArg(id)
	if err != nil {
		return nil
	}
	return v
}

// LookupVolume returns the volume with the given name, or nil.
func (s *Scene) LookupVolume(name string) *Volume {
	id, ok := s.volumeIndex[name]
	if !ok {
		return nil
	}
	return s.volumes[id]
}

// Volumes returns every volume in creation order.
func (s *Scene) Volumes() []*Volume {
	return append([]*Volume(nil), s.volumes...)
}

// ParentOf returns the volume v is placed in.
func (s *Scene) ParentOf(v VolumeID) (VolumeID, bool) {
	vol, err := s.volumeArg(v)
	if err != nil || !vol.hasParent {
		return 0, false
	}
	return vol.parent, true
}

// ---------------------------------------------------------------------------
// Placements
// ---------------------------------------------------------------------------

// PlacementID indexes a placement in its scene's arena.
type PlacementID int

// PlacementSpec describes one placement of Child inside Parent.
type PlacementSpec struct {
	Name      string
	Parent    VolumeID
	Child     VolumeID
	Transform orientation.Transform
	Copy      int
	// Many allows further placements of the same child in the same parent.
	Many bool
}

// Placement is a placed instance of a volume.
type Placement struct {
	ID        PlacementID
	Name      string
	Parent    VolumeID
	Child     VolumeID
	Transform orientation.Transform
	Copy      int
}

// Place adds a single placement.
func (s *Scene) Place(spec PlacementSpec) (PlacementID, error) {
	if err := s.attach(spec.Parent, spec.Child, spec.Many); err != nil {
		return 0, err
	}
	id := PlacementID(len(s.placements))
	s.placements = append(s.placements, &Placement{
		ID:        id,
		Name:      spec.Name,
		Parent:    spec.Parent,
		Child:     spec.Child,
		Transform: spec.Transform,
		Copy:      spec.Copy,
	})
	return id, nil
}

// attach records parent as child's parent, enforcing the tree invariants.
func (s *Scene) attach(parent, child VolumeID, many bool) error {
	pv, err := s.volumeArg(parent)
	if err != nil {
		return err
	}
	cv, err := s.volumeArg(child)
	if err != nil {
		return err
	}
	if s.hasRoot && child == s.root {
		return fmt.Errorf("%w: the world volume %q cannot be placed", ErrInvalidPlacement, cv.Name)
	}
	if cv.hasParent {
		if cv.parent != parent {
			return fmt.Errorf("%w: volume %q is already placed in %q", ErrInvalidPlacement, cv.Name, s.volumes[cv.parent].Name)
		}
		if !many || !cv.many {
			return fmt.Errorf("%w: volume %q is already placed in %q", ErrInvalidPlacement, cv.Name, pv.Name)
		}
		return nil
	}
	for a, ok := parent, true; ok; a, ok = s.ParentOf(a) {
		if a == child {
			return fmt.Errorf("%w: placing %q in %q creates a cycle", ErrInvalidPlacement, cv.Name, pv.Name)
		}
	}
	cv.parent, cv.hasParent, cv.many = parent, true, many
	return nil
}

// Placement returns the placement with the given ID, or nil.
func (s *Scene) Placement(id PlacementID) *Placement {
	if id < 0 || int(id) >= len(s.placements) {
		return nil
	}
	return s.placements[id]
}

// Placements returns every placement in creation order.
func (s *Scene) Placements() []*Placement {
	return append([]*Placement(nil), s.placements...)
}

// PlacementsIn returns the placements whose parent is v.
func (s *Scene) PlacementsIn(v VolumeID) []*Placement {
	var out []*Placement
	for _, p := range s.placements {
		if p.Parent == v {
			out = append(out, p)
		}
	}
	return out
}
