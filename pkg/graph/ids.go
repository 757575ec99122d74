package graph

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// NodeID is a content address derived from the path a node was created
// under (e.g. "defpiece/plank"). Equal paths yield equal IDs across runs.
type NodeID uint64

// ZeroID is the unset node ID.
const ZeroID NodeID = 0

// NewNodeID hashes path into a NodeID.
func NewNodeID(path string) NodeID {
	return NodeID(xxhash.Sum64String(path))
}

// IsZero reports whether the ID is unset.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

func (id NodeID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Short returns the first 12 hex digits, enough for log and error messages.
func (id NodeID) Short() string {
	return id.String()[:12]
}

// Vec3 is a plain three component vector used for script-level values.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Cross returns v x o.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Length returns the Euclidean norm.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// IsZero reports whether every component is zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}
