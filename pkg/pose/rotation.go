package pose

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// slerpEpsilon is the smallest sin(angle) the manual slerp divides by.
const slerpEpsilon = 1e-6

// vectorEpsilon guards normalization of near-zero vectors.
const vectorEpsilon = 1e-9

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Slerp spherically interpolates from p to q by t using the closed-form
// sin-weighted formula. With shortWay set, a negative dot product flips
// the sign of p's weight so the arc stays under 180 degrees.
//
// Degenerate arcs never divide by zero: equal orientations fall back to a
// normalized lerp, and antipodal ones (only reachable without shortWay)
// return p unchanged.
func Slerp(p, q mgl64.Quat, t float64, shortWay bool) mgl64.Quat {
	if p == q {
		return p
	}

	dot := p.Dot(q)
	sign := 1.0
	if shortWay && dot < 0 {
		sign = -1
	}
	cos := mgl64.Clamp(dot*sign, -1, 1)
	angle := math.Acos(cos)
	sin := math.Sin(angle)

	if sin < slerpEpsilon {
		if cos > 0 {
			return Nlerp(p.Scale(sign), q, t)
		}
		return p
	}

	division := 1 / sin
	t0 := math.Sin((1-t)*angle) * division * sign
	t1 := math.Sin(t*angle) * division
	return mgl64.Quat{
		W: p.W*t0 + q.W*t1,
		V: p.V.Mul(t0).Add(q.V.Mul(t1)),
	}
}

// BuiltinSlerp interpolates with mgl64.QuatSlerp after flipping q onto p's
// hemisphere, so it always takes the short arc.
func BuiltinSlerp(p, q mgl64.Quat, t float64) mgl64.Quat {
	if p == q {
		return p
	}
	if p.Dot(q) < 0 {
		q = q.Scale(-1)
	}
	return mgl64.QuatSlerp(p, q, t)
}

// Nlerp linearly interpolates two quaternions and renormalizes.
func Nlerp(p, q mgl64.Quat, t float64) mgl64.Quat {
	r := p.Scale(1 - t).Add(q.Scale(t))
	if r.Len() < vectorEpsilon {
		return p
	}
	return r.Normalize()
}

// Lerp linearly interpolates two vectors.
func Lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// LookRotation returns the rotation whose +Z axis points along forward and
// whose +Y axis is as close to up as possible. A zero forward yields the
// identity; an up parallel to forward falls back to the shortest rotation
// from +Z onto forward.
func LookRotation(forward, up mgl64.Vec3) mgl64.Quat {
	if forward.Len() < vectorEpsilon {
		return mgl64.QuatIdent()
	}
	forward = forward.Normalize()

	right := up.Cross(forward)
	if right.Len() < vectorEpsilon {
		return FromToRotation(WorldForward, forward)
	}
	right = right.Normalize()
	up = forward.Cross(right)

	m := mgl64.Mat3FromCols(right, up, forward)
	return mgl64.Mat4ToQuat(m.Mat4()).Normalize()
}

// FromToRotation returns the shortest rotation taking direction a onto
// direction b. Either vector being zero yields the identity.
func FromToRotation(a, b mgl64.Vec3) mgl64.Quat {
	if a.Len() < vectorEpsilon || b.Len() < vectorEpsilon {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatBetweenVectors(a.Normalize(), b.Normalize()).Normalize()
}

// ProjectOnPlane removes the component of v along the plane normal n.
func ProjectOnPlane(v, n mgl64.Vec3) mgl64.Vec3 {
	sqr := n.Dot(n)
	if sqr < vectorEpsilon {
		return v
	}
	return v.Sub(n.Mul(v.Dot(n) / sqr))
}

// SlerpVector rotates a toward b by fraction t of the angle between them
// while lerping the magnitude. Antiparallel inputs rotate about an
// arbitrary perpendicular axis.
func SlerpVector(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	la, lb := a.Len(), b.Len()
	if la < vectorEpsilon || lb < vectorEpsilon {
		return Lerp(a, b, t)
	}
	na, nb := a.Mul(1/la), b.Mul(1/lb)
	length := la + (lb-la)*t

	cos := mgl64.Clamp(na.Dot(nb), -1, 1)
	if cos > 1-vectorEpsilon {
		return Lerp(na, nb, t).Normalize().Mul(length)
	}

	theta := math.Acos(cos) * t
	var rel mgl64.Vec3
	if cos < -1+vectorEpsilon {
		rel = perpendicular(na)
	} else {
		rel = nb.Sub(na.Mul(cos)).Normalize()
	}
	dir := na.Mul(math.Cos(theta)).Add(rel.Mul(math.Sin(theta)))
	return dir.Mul(length)
}

// perpendicular returns a unit vector orthogonal to the unit vector v.
func perpendicular(v mgl64.Vec3) mgl64.Vec3 {
	axis := WorldRight.Cross(v)
	if axis.Len() < 1e-3 {
		axis = WorldUp.Cross(v)
	}
	return axis.Normalize()
}
