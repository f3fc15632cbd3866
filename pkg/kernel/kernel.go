// Package kernel defines the solid modeling interface used to turn scene
// solids into renderable geometry, and realises scene solids through it.
package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/orientation"
)

// Solid is an opaque handle to a kernel-specific solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box as (min, max) corners.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the interface a modeling backend implements. All primitives are
// centred on the origin.
type Kernel interface {
	// Box creates a box from its half extents.
	Box(halfX, halfY, halfZ float64) Solid
	// Sphere creates a full sphere.
	Sphere(radius float64) Solid
	// Cylinder creates a cylinder along z spanning [-height/2, height/2].
	Cylinder(height, radius float64) Solid

	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid

	// Transform rotates s and then translates it.
	Transform(s Solid, t orientation.Transform) Solid

	ToMesh(s Solid) (*Mesh, error)
}

// tubeInnerOversize lengthens the bore of a tube so it cuts cleanly through
// both end faces.
const tubeInnerOversize = 1.1

// Realise converts the scene solid id into a kernel solid. Angular segments
// are realised at full revolution, so the result encloses the true shape.
func Realise(k Kernel, scene *geometry.Scene, id geometry.SolidID) (Solid, error) {
	s := scene.Solid(id)
	if s == nil {
		return nil, fmt.Errorf("kernel: realise %d: %w", id, geometry.ErrUnknownSolid)
	}
	switch d := s.Data.(type) {
	case geometry.BoxData:
		return k.Box(d.Half.X, d.Half.Y, d.Half.Z), nil
	case geometry.SphereData:
		out := k.Sphere(d.RMax)
		if d.RMin > 0 {
			out = k.Difference(out, k.Sphere(d.RMin))
		}
		return out, nil
	case geometry.TubeData:
		out := k.Cylinder(2*d.HalfZ, d.RMax)
		if d.RMin > 0 {
			out = k.Difference(out, k.Cylinder(2*d.HalfZ*tubeInnerOversize, d.RMin))
		}
		return out, nil
	case geometry.SubtractionData:
		a, b, err := operands(k, scene, d.A, d.B, d.Transform)
		if err != nil {
			return nil, fmt.Errorf("kernel: realise %s: %w", s.Name, err)
		}
		return k.Difference(a, b), nil
	case geometry.UnionData:
		a, b, err := operands(k, scene, d.A, d.B, d.Transform)
		if err != nil {
			return nil, fmt.Errorf("kernel: realise %s: %w", s.Name, err)
		}
		return k.Union(a, b), nil
	default:
		return nil, fmt.Errorf("kernel: realise %s: unsupported solid kind %s", s.Name, s.Kind)
	}
}

// operands realises both sides of a boolean, moving b into a's frame.
func operands(k Kernel, scene *geometry.Scene, a, b geometry.SolidID, t orientation.Transform) (Solid, Solid, error) {
	sa, err := Realise(k, scene, a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := Realise(k, scene, b)
	if err != nil {
		return nil, nil, err
	}
	return sa, k.Transform(sb, t), nil
}

// Size returns the edge lengths of a solid's bounding box.
func Size(s Solid) r3.Vec {
	min, max := s.BoundingBox()
	return r3.Vec{X: max[0] - min[0], Y: max[1] - min[1], Z: max[2] - min[2]}
}
