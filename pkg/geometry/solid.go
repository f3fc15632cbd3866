package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/orientation"
)

// SolidID indexes a solid in its scene's arena.
type SolidID int

// SolidKind enumerates the primitive and boolean solid types.
type SolidKind int

const (
	SolidBox         SolidKind = iota // rectangular box, given by half extents
	SolidSphere                       // spherical shell segment
	SolidTube                         // cylindrical shell segment
	SolidSubtraction                  // A minus transformed B
	SolidUnion                        // A plus transformed B
)

func (k SolidKind) String() string {
	switch k {
	case SolidBox:
		return "box"
	case SolidSphere:
		return "sphere"
	case SolidTube:
		return "tube"
	case SolidSubtraction:
		return "subtraction"
	case SolidUnion:
		return "union"
	default:
		return "unknown"
	}
}

// Solid is a named geometric shape. Solids are never mutated after creation.
type Solid struct {
	ID     SolidID
	Name   string
	Kind   SolidKind
	Data   SolidData
	extent r3.Vec
}

// Extent returns the half extents of the solid's axis-aligned bounding box
// in its own frame. Shell segments report the full-revolution envelope and
// subtractions report their minuend.
func (s *Solid) Extent() r3.Vec {
	return s.extent
}

// SolidData is the interface for kind-specific solid parameters.
type SolidData interface {
	solidData() // marker method restricting implementations to this package
}

// BoxData holds the half extents of a box.
type BoxData struct {
	Half r3.Vec
}

func (BoxData) solidData() {}

// SphereData describes a spherical shell between RMin and RMax, limited to
// the azimuthal range [PhiStart, PhiStart+PhiDelta] and the polar range
// [ThetaStart, ThetaStart+ThetaDelta]. Angles in radians.
type SphereData struct {
	RMin, RMax             float64
	PhiStart, PhiDelta     float64
	ThetaStart, ThetaDelta float64
}

func (SphereData) solidData() {}

// FullPhi reports whether the azimuthal range covers a full turn.
func (d SphereData) FullPhi() bool { return d.PhiDelta >= 2*math.Pi }

// TubeData describes a cylindrical shell along z between RMin and RMax with
// half length HalfZ, limited to [PhiStart, PhiStart+PhiDelta].
type TubeData struct {
	RMin, RMax         float64
	HalfZ              float64
	PhiStart, PhiDelta float64
}

func (TubeData) solidData() {}

// FullPhi reports whether the azimuthal range covers a full turn.
func (d TubeData) FullPhi() bool { return d.PhiDelta >= 2*math.Pi }

// SubtractionData removes B, placed by Transform in A's frame, from A.
type SubtractionData struct {
	A, B      SolidID
	Transform orientation.Transform
}

func (SubtractionData) solidData() {}

// UnionData joins A with B placed by Transform in A's frame.
type UnionData struct {
	A, B      SolidID
	Transform orientation.Transform
}

func (UnionData) solidData() {}

// ---------------------------------------------------------------------------
// Bounding boxes
// ---------------------------------------------------------------------------

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max r3.Vec
}

// BoxFromHalf returns the box centred at the origin with half extents h.
func BoxFromHalf(h r3.Vec) Box {
	return Box{Min: r3.Scale(-1, h), Max: h}
}

// Corners returns the eight corner points.
func (b Box) Corners() [8]r3.Vec {
	var out [8]r3.Vec
	for i := 0; i < 8; i++ {
		c := b.Min
		if i&4 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&1 != 0 {
			c.Z = b.Max.Z
		}
		out[i] = c
	}
	return out
}

// Transformed returns the bounding box of b after applying t.
func (b Box) Transformed(t orientation.Transform) Box {
	corners := b.Corners()
	out := Box{Min: t.Apply(corners[0]), Max: t.Apply(corners[0])}
	for _, c := range corners[1:] {
		out = out.Extend(t.Apply(c))
	}
	return out
}

// Extend grows the box to include p.
func (b Box) Extend(p r3.Vec) Box {
	b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(o Box) Box {
	return b.Extend(o.Min).Extend(o.Max)
}

// Contains reports whether o lies inside b within tol.
func (b Box) Contains(o Box, tol float64) bool {
	return o.Min.X >= b.Min.X-tol && o.Min.Y >= b.Min.Y-tol && o.Min.Z >= b.Min.Z-tol &&
		o.Max.X <= b.Max.X+tol && o.Max.Y <= b.Max.Y+tol && o.Max.Z <= b.Max.Z+tol
}

// HalfSymmetric returns per-axis max(|min|, |max|), the half extent of the
// smallest origin-centred box containing b.
func (b Box) HalfSymmetric() r3.Vec {
	return r3.Vec{
		X: math.Max(math.Abs(b.Min.X), math.Abs(b.Max.X)),
		Y: math.Max(math.Abs(b.Min.Y), math.Abs(b.Max.Y)),
		Z: math.Max(math.Abs(b.Min.Z), math.Abs(b.Max.Z)),
	}
}
