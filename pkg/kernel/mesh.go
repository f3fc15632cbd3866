package kernel

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/pixelgeo/pkg/orientation"
)

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles

	Volume   string `json:"volume"`   // which scene volume this came from
	Material string `json:"material"`
	Copy     int    `json:"copy"` // copy number, or periodic instance index
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Apply moves the mesh by t in place. Normals are rotated only.
func (m *Mesh) Apply(t orientation.Transform) {
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		m.Vertices[i], m.Vertices[i+1], m.Vertices[i+2] = point(t.Apply(vec(m.Vertices[i:])))
	}
	for i := 0; i+2 < len(m.Normals); i += 3 {
		m.Normals[i], m.Normals[i+1], m.Normals[i+2] = point(t.Rotation.Apply(vec(m.Normals[i:])))
	}
}

func vec(f []float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}

func point(v r3.Vec) (x, y, z float32) {
	return float32(v.X), float32(v.Y), float32(v.Z)
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	c := *m
	c.Vertices = append([]float32(nil), m.Vertices...)
	c.Normals = append([]float32(nil), m.Normals...)
	c.Indices = append([]uint32(nil), m.Indices...)
	return &c
}
