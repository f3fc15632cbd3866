package sdfx

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/geometry"
	"github.com/chazu/pixelgeo/pkg/kernel"
	"github.com/chazu/pixelgeo/pkg/orientation"
)

func assertBounds(t *testing.T, s kernel.Solid, expectMin, expectMax [3]float64, tol float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], expectMax[i])
		}
	}
}

func TestBox(t *testing.T) {
	k := NewWithCells(32)
	box := k.Box(50, 25, 12.5)
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	// Verify vertex and index array sizes are consistent.
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
}

func TestBoundingBox(t *testing.T) {
	k := New()
	assertBounds(t, k.Box(50, 25, 12.5), [3]float64{-50, -25, -12.5}, [3]float64{50, 25, 12.5}, 0.01)
	assertBounds(t, k.Sphere(3), [3]float64{-3, -3, -3}, [3]float64{3, 3, 3}, 0.01)
	assertBounds(t, k.Cylinder(10, 2), [3]float64{-2, -2, -5}, [3]float64{2, 2, 5}, 0.01)
}

func TestDifference(t *testing.T) {
	k := NewWithCells(48)

	box := k.Box(50, 50, 50)
	boxMesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh(box) failed: %v", err)
	}

	cyl := k.Cylinder(120, 20)
	diff := k.Difference(box, cyl)
	diffMesh, err := k.ToMesh(diff)
	if err != nil {
		t.Fatalf("ToMesh(diff) failed: %v", err)
	}
	// A box with a hole should have more triangles than a plain box.
	if diffMesh.TriangleCount() <= boxMesh.TriangleCount() {
		t.Fatalf("difference (%d triangles) should have more triangles than box (%d triangles)",
			diffMesh.TriangleCount(), boxMesh.TriangleCount())
	}
}

func TestUnion(t *testing.T) {
	k := NewWithCells(32)
	box1 := k.Box(25, 25, 25)
	box2 := k.Transform(k.Box(25, 25, 25), orientation.Translation(r3.Vec{X: 30}))
	u := k.Union(box1, box2)
	assertBounds(t, u, [3]float64{-25, -25, -25}, [3]float64{55, 25, 25}, 0.01)
	mesh, err := k.ToMesh(u)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("union mesh is empty")
	}
}

func TestTransformTranslate(t *testing.T) {
	k := New()
	moved := k.Transform(k.Box(5, 5, 5), orientation.Translation(r3.Vec{X: 100, Y: 200, Z: 300}))
	assertBounds(t, moved, [3]float64{95, 195, 295}, [3]float64{105, 205, 305}, 0.5)
}

func TestTransformRotate(t *testing.T) {
	k := New()
	box := k.Box(50, 5, 5)

	// A long box along X rotated 90 degrees around Z should extend along Y instead.
	rotated := k.Transform(box, orientation.Transform{Rotation: orientation.About(r3.Vec{Z: 1}, math.Pi/2)})
	size := kernel.Size(rotated)

	const tol = 1.0
	if math.Abs(size.X-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", size.X)
	}
	if math.Abs(size.Y-100) > tol {
		t.Errorf("rotated Y extent = %f, expected ~100", size.Y)
	}
}

func TestRealiseSupportPlate(t *testing.T) {
	scene := geometry.New()
	plate, _ := scene.MakeBox("plate", r3.Vec{X: 10, Y: 10, Z: 0.5})
	hole, _ := scene.MakeBox("hole", geometry.HoleCutter(r3.Vec{X: 4, Y: 4, Z: 1}, 0.5))
	cut, err := scene.Subtract("cut", plate, hole, orientation.Translation(r3.Vec{X: 2}))
	if err != nil {
		t.Fatal(err)
	}

	k := NewWithCells(48)
	s, err := kernel.Realise(k, scene, cut)
	if err != nil {
		t.Fatalf("Realise failed: %v", err)
	}
	assertBounds(t, s, [3]float64{-10, -10, -0.5}, [3]float64{10, 10, 0.5}, 0.01)

	plain, err := kernel.Realise(k, scene, plate)
	if err != nil {
		t.Fatal(err)
	}
	plainMesh, err := k.ToMesh(plain)
	if err != nil {
		t.Fatal(err)
	}
	cutMesh, err := k.ToMesh(s)
	if err != nil {
		t.Fatal(err)
	}
	if cutMesh.TriangleCount() <= plainMesh.TriangleCount() {
		t.Errorf("plate with hole has %d triangles, plain plate %d", cutMesh.TriangleCount(), plainMesh.TriangleCount())
	}
}
