// Package cut splits triangle meshes along a plane and drives the
// hinge-actuated cutter that applies those splits to registered pieces.
package cut

import (
	"errors"
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrDegeneratePlane is returned when plane inputs do not span a plane.
var ErrDegeneratePlane = errors.New("cut: degenerate plane")

// planeEpsilon is the smallest normal length accepted before normalizing.
const planeEpsilon = 1e-12

// Plane is the set of points p with Normal·p + Distance = 0.
type Plane struct {
	Normal   v3.Vec
	Distance float64
}

// NewPlane builds the plane through a, b and c. The normal is
// (b-a)×(c-a), so the points wind counter-clockwise seen from the
// positive side.
func NewPlane(a, b, c v3.Vec) (Plane, error) {
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Length()
	if l < planeEpsilon || math.IsNaN(l) {
		return Plane{}, fmt.Errorf("%w: points %v %v %v are collinear", ErrDegeneratePlane, a, b, c)
	}
	n = n.DivScalar(l)
	return Plane{Normal: n, Distance: -n.Dot(a)}, nil
}

// NewPlaneFromNormal builds the plane with the given normal through point.
func NewPlaneFromNormal(normal, point v3.Vec) (Plane, error) {
	l := normal.Length()
	if l < planeEpsilon || math.IsNaN(l) {
		return Plane{}, fmt.Errorf("%w: zero normal", ErrDegeneratePlane)
	}
	n := normal.DivScalar(l)
	return Plane{Normal: n, Distance: -n.Dot(point)}, nil
}

// SignedDistance returns the distance from p to the plane, positive on the
// side the normal points to.
func (p Plane) SignedDistance(pt v3.Vec) float64 {
	return p.Normal.Dot(pt) + p.Distance
}

// GetSide reports whether pt lies strictly on the positive side. Points on
// the plane report false and are treated as negative.
func (p Plane) GetSide(pt v3.Vec) bool {
	return p.SignedDistance(pt) > 0
}

// Flipped returns the same plane facing the other way.
func (p Plane) Flipped() Plane {
	return Plane{Normal: p.Normal.Neg(), Distance: -p.Distance}
}

// Raycast intersects the ray origin + t*dir with the plane and returns t.
// A ray parallel to the plane returns (0, false). A hit behind the origin
// returns its negative t with ok false.
func (p Plane) Raycast(origin, dir v3.Vec) (float64, bool) {
	denom := dir.Dot(p.Normal)
	if math.Abs(denom) < planeEpsilon {
		return 0, false
	}
	enter := -p.SignedDistance(origin) / denom
	return enter, enter > 0
}
