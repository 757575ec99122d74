package cut

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/emilyslouie/xri-two-hands/pkg/kernel"
)

// ErrMalformedMesh is returned when the index buffer cannot describe a
// triangle list over the vertex buffer.
var ErrMalformedMesh = errors.New("cut: malformed mesh")

// Split partitions mesh along plane into the triangles on the positive side
// and those on the negative side. Straddling triangles are clipped into one
// triangle on the lone vertex's side and two on the other, inserting new
// vertices where edges cross the plane. Winding is kept, so every output
// triangle faces the same way as the triangle it came from.
//
// Every output triangle owns its three vertices. Both outputs get freshly
// computed smooth normals and keep the source part name. The input mesh is
// not modified.
func Split(mesh *kernel.Mesh, plane Plane) (positive, negative *kernel.Mesh, err error) {
	var name string
	if mesh != nil {
		name = mesh.PartName
	}
	positive = &kernel.Mesh{PartName: name}
	negative = &kernel.Mesh{PartName: name}

	if mesh == nil || mesh.IsEmpty() || len(mesh.Indices) < 3 {
		return positive, negative, nil
	}
	if err := validate(mesh); err != nil {
		return nil, nil, err
	}

	for t := 0; t < mesh.TriangleCount(); t++ {
		v0, v1, v2 := mesh.Triangle(t)
		splitTriangle(plane, v0, v1, v2, positive, negative)
	}

	positive.RecalculateNormals()
	negative.RecalculateNormals()
	return positive, negative, nil
}

func validate(mesh *kernel.Mesh) error {
	if len(mesh.Vertices)%3 != 0 {
		return fmt.Errorf("%w: %d vertex floats is not a multiple of 3", ErrMalformedMesh, len(mesh.Vertices))
	}
	if len(mesh.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3", ErrMalformedMesh, len(mesh.Indices))
	}
	n := uint32(mesh.VertexCount())
	for i, idx := range mesh.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d at position %d out of range for %d vertices", ErrMalformedMesh, idx, i, n)
		}
	}
	return nil
}

// splitTriangle appends v0 v1 v2 to whichever outputs it belongs in.
func splitTriangle(plane Plane, v0, v1, v2 v3.Vec, positive, negative *kernel.Mesh) {
	s0, s1, s2 := plane.GetSide(v0), plane.GetSide(v1), plane.GetSide(v2)

	side := func(positiveSide bool) *kernel.Mesh {
		if positiveSide {
			return positive
		}
		return negative
	}

	switch {
	case s0 == s1 && s0 == s2:
		side(s0).AddTriangle(v0, v1, v2)

	case s0 == s1:
		// 0 and 1 together, 2 alone.
		v02 := intersect(plane, v0, v2)
		v12 := intersect(plane, v1, v2)
		double, single := side(s0), side(!s0)
		double.AddTriangle(v0, v1, v12)
		double.AddTriangle(v0, v12, v02)
		single.AddTriangle(v12, v2, v02)

	case s0 == s2:
		// 0 and 2 together, 1 alone.
		v01 := intersect(plane, v0, v1)
		v12 := intersect(plane, v1, v2)
		double, single := side(s0), side(!s0)
		double.AddTriangle(v0, v01, v12)
		double.AddTriangle(v0, v12, v2)
		single.AddTriangle(v01, v1, v12)

	default:
		// 1 and 2 together, 0 alone.
		v01 := intersect(plane, v0, v1)
		v02 := intersect(plane, v0, v2)
		double, single := side(s1), side(s0)
		double.AddTriangle(v01, v1, v2)
		double.AddTriangle(v01, v2, v02)
		single.AddTriangle(v0, v01, v02)
	}
}

// intersect returns where the segment a->b meets the plane. The ray runs
// along b-a, so the hit is at t in [0, 1] for a crossing edge. A parallel
// edge falls back to a.
func intersect(plane Plane, a, b v3.Vec) v3.Vec {
	dir := b.Sub(a)
	t, _ := plane.Raycast(a, dir)
	return a.Add(dir.MulScalar(t))
}
