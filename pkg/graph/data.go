package graph

import "fmt"

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// PrimitiveKind distinguishes between primitive shapes.
type PrimitiveKind int

const (
	PrimBox      PrimitiveKind = iota // rectangular solid
	PrimCylinder                      // cylinder along Z
	PrimSphere
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBox:
		return "box"
	case PrimCylinder:
		return "cylinder"
	case PrimSphere:
		return "sphere"
	default:
		return fmt.Sprintf("PrimitiveKind(%d)", int(k))
	}
}

// DefaultCylinderSegments is used when a cylinder does not name a segment count.
const DefaultCylinderSegments = 32

// BoxData is an axis-aligned box centered on the origin.
type BoxData struct {
	Size Vec3 `json:"size"`
}

func (BoxData) nodeData() {}

// CylinderData is a cylinder centered on the origin.
type CylinderData struct {
	Height   float64 `json:"height"`
	Radius   float64 `json:"radius"`
	Segments int     `json:"segments,omitempty"`
}

func (CylinderData) nodeData() {}

// SphereData is a sphere centered on the origin.
type SphereData struct {
	Radius float64 `json:"radius"`
}

func (SphereData) nodeData() {}

// PrimKind returns the primitive kind of a piece payload.
func PrimKind(d NodeData) (PrimitiveKind, bool) {
	switch d.(type) {
	case BoxData:
		return PrimBox, true
	case CylinderData:
		return PrimCylinder, true
	case SphereData:
		return PrimSphere, true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData represents a spatial transformation applied to a child node.
// Created by the (place ...) form.
type TransformData struct {
	Translation *Vec3 `json:"translation,omitempty"`
	Rotation    *Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData represents a scene or sub-assembly.
// Created by the (scene ...) form.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}

// ---------------------------------------------------------------------------
// Cut
// ---------------------------------------------------------------------------

// CutData slices every current fragment of Target with the plane through
// A, B and C. Points are in world space; the normal follows (B-A)x(C-A).
type CutData struct {
	Target NodeID `json:"target"`
	A      Vec3   `json:"a"`
	B      Vec3   `json:"b"`
	C      Vec3   `json:"c"`
}

func (CutData) nodeData() {}

// Normal returns the unnormalized plane normal (B-A)x(C-A).
func (d CutData) Normal() Vec3 {
	return d.B.Sub(d.A).Cross(d.C.Sub(d.A))
}
