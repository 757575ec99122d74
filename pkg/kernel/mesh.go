package kernel

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is a triangle mesh suitable for rendering and cutting.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
// Index order is winding order and decides the face normal.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // which scene piece this came from
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

// Vertex returns the position of vertex i.
func (m *Mesh) Vertex(i uint32) v3.Vec {
	return v3.Vec{
		X: float64(m.Vertices[i*3]),
		Y: float64(m.Vertices[i*3+1]),
		Z: float64(m.Vertices[i*3+2]),
	}
}

// Triangle returns the three corner positions of triangle t in winding order.
func (m *Mesh) Triangle(t int) (a, b, c v3.Vec) {
	return m.Vertex(m.Indices[t*3]), m.Vertex(m.Indices[t*3+1]), m.Vertex(m.Indices[t*3+2])
}

// AddTriangle appends three new vertices and one triangle referencing them.
// Vertices are never shared with earlier triangles.
func (m *Mesh) AddTriangle(a, b, c v3.Vec) {
	start := uint32(m.VertexCount())
	for _, v := range [3]v3.Vec{a, b, c} {
		m.Vertices = append(m.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
	}
	m.Indices = append(m.Indices, start, start+1, start+2)
}

// Bounds returns the axis-aligned bounding box of the vertices.
// An empty mesh returns zero vectors.
func (m *Mesh) Bounds() (min, max v3.Vec) {
	n := m.VertexCount()
	if n == 0 {
		return v3.Vec{}, v3.Vec{}
	}
	min = m.Vertex(0)
	max = min
	for i := 1; i < n; i++ {
		v := m.Vertex(uint32(i))
		min = v3.Vec{X: math.Min(min.X, v.X), Y: math.Min(min.Y, v.Y), Z: math.Min(min.Z, v.Z)}
		max = v3.Vec{X: math.Max(max.X, v.X), Y: math.Max(max.Y, v.Y), Z: math.Max(max.Z, v.Z)}
	}
	return min, max
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices: append([]float32(nil), m.Vertices...),
		Normals:  append([]float32(nil), m.Normals...),
		Indices:  append([]uint32(nil), m.Indices...),
		PartName: m.PartName,
	}
}

// RecalculateNormals replaces Normals with smooth per-vertex normals.
// Each vertex accumulates the unnormalized face normal (cross product, so
// weighted by triangle area) of every triangle that references it.
func (m *Mesh) RecalculateNormals() {
	numVerts := m.VertexCount()
	normals := make([]float64, numVerts*3)

	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.Triangle(t)
		n := b.Sub(a).Cross(c.Sub(a))
		for j := 0; j < 3; j++ {
			idx := m.Indices[t*3+j]
			normals[idx*3+0] += n.X
			normals[idx*3+1] += n.Y
			normals[idx*3+2] += n.Z
		}
	}

	m.Normals = make([]float32, numVerts*3)
	for i := 0; i < numVerts; i++ {
		n := v3.Vec{X: normals[i*3], Y: normals[i*3+1], Z: normals[i*3+2]}
		length := n.Length()
		if length > 1e-12 {
			n = n.DivScalar(length)
		}
		m.Normals[i*3+0] = float32(n.X)
		m.Normals[i*3+1] = float32(n.Y)
		m.Normals[i*3+2] = float32(n.Z)
	}
}
