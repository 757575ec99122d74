// Package pose holds the position+orientation pair that every grab
// influence and blended result is expressed in, plus the rotation helpers
// the blend strategies share.
//
// Axes follow the engine convention: forward is +Z, up is +Y, right is +X.
package pose

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// WorldUp is the +Y axis.
	WorldUp = mgl64.Vec3{0, 1, 0}
	// WorldForward is the +Z axis.
	WorldForward = mgl64.Vec3{0, 0, 1}
	// WorldRight is the +X axis.
	WorldRight = mgl64.Vec3{1, 0, 0}
)

// Pose is a world-space position and unit orientation.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// New returns a pose from a position and rotation.
func New(position mgl64.Vec3, rotation mgl64.Quat) Pose {
	return Pose{Position: position, Rotation: rotation}
}

// Identity returns the pose at the origin with no rotation.
func Identity() Pose {
	return Pose{Rotation: mgl64.QuatIdent()}
}

// Up returns the pose's local +Y axis in world space.
func (p Pose) Up() mgl64.Vec3 {
	return p.Rotation.Rotate(WorldUp)
}

// Forward returns the pose's local +Z axis in world space.
func (p Pose) Forward() mgl64.Vec3 {
	return p.Rotation.Rotate(WorldForward)
}

// Right returns the pose's local +X axis in world space.
func (p Pose) Right() mgl64.Vec3 {
	return p.Rotation.Rotate(WorldRight)
}

// TransformPoint maps a point from the pose's local frame to world space.
func (p Pose) TransformPoint(local mgl64.Vec3) mgl64.Vec3 {
	return p.Position.Add(p.Rotation.Rotate(local))
}

// InverseTransformPoint maps a world-space point into the pose's local frame.
func (p Pose) InverseTransformPoint(world mgl64.Vec3) mgl64.Vec3 {
	return p.Rotation.Inverse().Rotate(world.Sub(p.Position))
}

// ApproxEqual reports whether two poses match within eps. Orientations are
// compared as rotations, so q and -q are equal.
func (p Pose) ApproxEqual(o Pose, eps float64) bool {
	return p.Position.ApproxEqualThreshold(o.Position, eps) &&
		p.Rotation.OrientationEqualThreshold(o.Rotation, eps)
}

// IsValid reports whether every component is finite.
func (p Pose) IsValid() bool {
	for _, f := range [7]float64{
		p.Position[0], p.Position[1], p.Position[2],
		p.Rotation.W, p.Rotation.V[0], p.Rotation.V[1], p.Rotation.V[2],
	} {
		if !isFinite(f) {
			return false
		}
	}
	return true
}

func (p Pose) String() string {
	return fmt.Sprintf("pose(pos=%.4f,%.4f,%.4f rot=%.4f,%.4f,%.4f,%.4f)",
		p.Position[0], p.Position[1], p.Position[2],
		p.Rotation.V[0], p.Rotation.V[1], p.Rotation.V[2], p.Rotation.W)
}
