package grab

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

// Staff slides the object through the hands along one local axis, like a
// staff held in two fists. Each hand is reduced to a scalar position along
// the axis. The center of the grip persists across frames and only moves
// when the grip would run past either end of the normalized [-1, 1] span.
//
// The result pose is the primary's; the grip is expressed through Attach.
type Staff struct {
	// Align is the staff axis in the object frame.
	Align mgl64.Vec3

	frame      pose.Pose
	lastCenter float64
	attach     *pose.Pose
}

var (
	_ Strategy      = (*Staff)(nil)
	_ SelectEnterer = (*Staff)(nil)
	_ SelectExiter  = (*Staff)(nil)
	_ Resetter      = (*Staff)(nil)
	_ FrameSetter   = (*Staff)(nil)
	_ Attacher      = (*Staff)(nil)
)

// NewStaff returns a Staff along the object's forward axis.
func NewStaff() *Staff {
	return &Staff{Align: pose.WorldForward, frame: pose.Identity(), lastCenter: math.Inf(1)}
}

// Kind returns KindStaff.
func (s *Staff) Kind() Kind { return KindStaff }

// SetFrame sets the held object's world pose.
func (s *Staff) SetFrame(object pose.Pose) { s.frame = object }

// Reset forces the next blend to recompute the center from the hands and
// drops the attach point.
func (s *Staff) Reset() {
	s.lastCenter = math.Inf(1)
	s.attach = nil
}

// Center returns the persisted grip center, +Inf when unset.
func (s *Staff) Center() float64 { return s.lastCenter }

// OnSelectEnter resets the grip center.
func (s *Staff) OnSelectEnter(SelectionChange) { s.Reset() }

// Attach returns the attach point of the last blend or realignment.
func (s *Staff) Attach() *pose.Pose { return s.attach }

// OnSelectExit realigns the grip with the hands swapped when the primary
// lets go while a secondary holds on. The realigned attach is relative to
// the promoted hand.
func (s *Staff) OnSelectExit(change SelectionChange) {
	if change.Secondary || len(change.Influences) < 2 {
		return
	}
	_, _ = s.Blend([]pose.Pose{change.Influences[1], change.Influences[0]})
}

func (s *Staff) scalar(p pose.Pose) float64 {
	axis := s.frame.Rotation.Rotate(s.Align)
	return p.Position.Sub(s.frame.Position).Dot(axis)
}

// Blend implements Strategy.
func (s *Staff) Blend(influences []pose.Pose) (Result, error) {
	if err := checkInfluences(influences); err != nil {
		return Result{}, err
	}
	p0, p1 := influences[0], influences[1]
	s0, s1 := s.scalar(p0), s.scalar(p1)
	dir := -1.0
	if s1 > s0 {
		dir = 1
	}

	if math.IsInf(s.lastCenter, 1) {
		s.lastCenter = (s0 + s1) * 0.5
	}

	distance := p0.Position.Sub(p1.Position).Len()
	half := distance * 0.5
	center := s.lastCenter
	if center+half > 1 {
		center = 1 - half
	} else if center-half < -1 {
		center = -1 + half
	}
	s.lastCenter = center

	align := p1.Position.Sub(p0.Position).Mul(dir)
	attach := pose.New(
		s.Align.Mul(center+half*-dir),
		pose.FromToRotation(s.Align, p0.Rotation.Inverse().Rotate(align)).Inverse(),
	)
	s.attach = &attach
	return Result{Pose: p0, Attach: &attach}, nil
}
