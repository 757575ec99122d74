package grab

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

// SlerpMethod selects how Average interpolates rotations.
type SlerpMethod int

const (
	// SlerpAuto uses the manual formula when the rotations are more than
	// 180 degrees apart in quaternion space and the builtin otherwise.
	SlerpAuto SlerpMethod = iota
	// SlerpBuiltin always uses pose.BuiltinSlerp.
	SlerpBuiltin
	// SlerpManual always uses pose.Slerp.
	SlerpManual
)

func (m SlerpMethod) String() string {
	switch m {
	case SlerpAuto:
		return "auto"
	case SlerpBuiltin:
		return "builtin"
	case SlerpManual:
		return "manual"
	default:
		return fmt.Sprintf("SlerpMethod(%d)", int(m))
	}
}

// ParseSlerpMethod returns the method named s, ignoring case. The empty
// string is SlerpAuto.
func ParseSlerpMethod(s string) (SlerpMethod, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return SlerpAuto, nil
	case "builtin":
		return SlerpBuiltin, nil
	case "manual":
		return SlerpManual, nil
	}
	return 0, fmt.Errorf("grab: unknown slerp method %q", s)
}

// DefaultLerp is the interpolation parameter between the first two
// influences.
const DefaultLerp = 0.5

// Average interpolates the first two influences: positions linearly and
// rotations spherically, both at Lerp.
type Average struct {
	Lerp   float64
	Method SlerpMethod
	// ShortWay enables the sign correction in the manual slerp.
	ShortWay bool

	// Inversion toggles for rotation inputs and output.
	InvertFirst  bool
	InvertSecond bool
	InvertResult bool
}

var _ Strategy = (*Average)(nil)

// NewAverage returns an Average at the midpoint with automatic slerp
// selection.
func NewAverage() *Average {
	return &Average{Lerp: DefaultLerp}
}

// Kind returns KindAverage.
func (a *Average) Kind() Kind { return KindAverage }

// Blend implements Strategy.
func (a *Average) Blend(influences []pose.Pose) (Result, error) {
	if err := checkInfluences(influences); err != nil {
		return Result{}, err
	}
	return Result{Pose: a.blend(influences[0], influences[1])}, nil
}

func (a *Average) blend(p0, p1 pose.Pose) pose.Pose {
	t := mgl64.Clamp(a.Lerp, 0, 1)
	dot := p0.Rotation.Dot(p1.Rotation)

	r0, r1 := p0.Rotation, p1.Rotation
	if a.InvertFirst {
		r0 = r0.Inverse()
	}
	if a.InvertSecond {
		r1 = r1.Inverse()
	}

	var rot mgl64.Quat
	switch a.Method {
	case SlerpBuiltin:
		rot = pose.BuiltinSlerp(r0, r1, t)
	case SlerpManual:
		rot = pose.Slerp(r0, r1, t, a.ShortWay)
	default:
		if dot < 0 {
			rot = pose.Slerp(r0, r1, t, a.ShortWay)
		} else {
			rot = pose.BuiltinSlerp(r0, r1, t)
		}
	}
	if a.InvertResult {
		rot = rot.Inverse()
	}

	return pose.New(pose.Lerp(p0.Position, p1.Position, t), rot)
}
