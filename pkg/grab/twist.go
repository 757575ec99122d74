package grab

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

// ControlMode picks which hand owns the twist of a two-handed grip.
type ControlMode int

const (
	// ControlTop gives the twist to the higher hand.
	ControlTop ControlMode = iota
	// ControlBottom gives the twist to the lower hand.
	ControlBottom
	// ControlFirst gives the twist to the primary.
	ControlFirst
	// ControlSecond gives the twist to the first secondary.
	ControlSecond
)

func (m ControlMode) String() string {
	switch m {
	case ControlTop:
		return "top"
	case ControlBottom:
		return "bottom"
	case ControlFirst:
		return "first"
	case ControlSecond:
		return "second"
	default:
		return fmt.Sprintf("ControlMode(%d)", int(m))
	}
}

// ParseControlMode returns the mode named s, ignoring case. The empty
// string is ControlTop.
func ParseControlMode(s string) (ControlMode, error) {
	switch strings.ToLower(s) {
	case "", "top":
		return ControlTop, nil
	case "bottom":
		return ControlBottom, nil
	case "first":
		return ControlFirst, nil
	case "second":
		return ControlSecond, nil
	}
	return 0, fmt.Errorf("grab: unknown control mode %q", s)
}

// Twist holds the object at the primary, aligning its attach up axis with
// the line between the hands and twisting it about that line toward the
// hands' forward directions. The hand held more perpendicular to the grab
// axis gets more say over the twist.
type Twist struct {
	Mode ControlMode

	frame  pose.Pose
	attach mgl64.Quat // attach rotation in the object frame
}

var (
	_ Strategy      = (*Twist)(nil)
	_ SelectEnterer = (*Twist)(nil)
	_ Resetter      = (*Twist)(nil)
	_ FrameSetter   = (*Twist)(nil)
	_ Attacher      = (*Twist)(nil)
)

// NewTwist returns a Twist controlled by the top hand.
func NewTwist() *Twist {
	return &Twist{Mode: ControlTop, frame: pose.Identity(), attach: mgl64.QuatIdent()}
}

// Kind returns KindTwist.
func (t *Twist) Kind() Kind { return KindTwist }

// SetFrame sets the held object's world pose.
func (t *Twist) SetFrame(object pose.Pose) { t.frame = object }

// Reset clears the attach rotation captured when the grip began.
func (t *Twist) Reset() { t.attach = mgl64.QuatIdent() }

// AttachRotation returns the attach rotation in the object frame.
func (t *Twist) AttachRotation() mgl64.Quat { return t.attach }

// Attach returns the captured attach rotation as an attach point at the
// object's origin.
func (t *Twist) Attach() *pose.Pose {
	attach := pose.New(mgl64.Vec3{}, t.attach)
	return &attach
}

// OnSelectEnter captures the attach rotation when a secondary joins, using
// the object's up as the grab axis.
func (t *Twist) OnSelectEnter(change SelectionChange) {
	if !change.Secondary || len(change.Influences) < 2 {
		return
	}
	primary := change.Influences[0]
	secondary := change.Influences[len(change.Influences)-1]
	world := t.rotation(secondary, primary, t.frame.Up())
	t.attach = t.frame.Rotation.Inverse().Mul(world).Normalize()
}

// Blend implements Strategy.
func (t *Twist) Blend(influences []pose.Pose) (Result, error) {
	if err := checkInfluences(influences); err != nil {
		return Result{}, err
	}
	primary, secondary := influences[0], influences[1]
	rot := t.rotation(secondary, primary, secondary.Position.Sub(primary.Position))
	return Result{Pose: pose.New(primary.Position, rot), Attach: t.Attach()}, nil
}

func (t *Twist) rotation(secondary, primary pose.Pose, grabAxis mgl64.Vec3) mgl64.Quat {
	attachWorld := t.frame.Rotation.Mul(t.attach)
	alignAxis := attachWorld.Rotate(pose.WorldUp)

	if grabAxis.Len() < 1e-9 {
		grabAxis = alignAxis
	}
	grabAxis = grabAxis.Normalize()
	if alignAxis.Dot(grabAxis) < 0 {
		grabAxis = grabAxis.Mul(-1)
	}

	rot := pose.FromToRotation(alignAxis, grabAxis).Mul(attachWorld)
	alignForward := rot.Rotate(pose.WorldForward)

	primaryY := t.frame.InverseTransformPoint(primary.Position)[1]
	secondaryY := t.frame.InverseTransformPoint(secondary.Position)[1]
	var primaryMain bool
	switch t.Mode {
	case ControlBottom:
		primaryMain = primaryY < secondaryY
	case ControlFirst:
		primaryMain = true
	case ControlSecond:
		primaryMain = false
	default:
		primaryMain = primaryY > secondaryY
	}

	main, other := primary, secondary
	if !primaryMain {
		main, other = secondary, primary
	}

	mainPerp := 1 - math.Abs(grabAxis.Dot(main.Forward()))
	otherPerp := 1 - math.Abs(grabAxis.Dot(other.Forward()))
	weight := 0.5
	if sum := mainPerp + otherPerp; sum > 1e-9 {
		weight = mainPerp / sum
	}

	averaged := pose.SlerpVector(other.Forward(), main.Forward(), weight)
	twisted := pose.SlerpVector(averaged, main.Forward(), weight)
	grabForward := pose.ProjectOnPlane(twisted, grabAxis)
	if grabForward.Len() < 1e-9 {
		return rot.Normalize()
	}

	return pose.FromToRotation(alignForward, grabForward).Mul(rot).Normalize()
}
