package grab

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

// Up-vector stabilization zones, as |up·forward|.
const (
	stabilizedLerpThreshold    = 0.5
	stabilizedHistoryThreshold = 0.75
)

// Stabilized holds the object at the primary influence, pointing it from
// the primary toward the secondary. The up vector is the average of the
// hands' up vectors, blended toward the previous frame's up as it
// approaches the forward axis so it cannot flip.
type Stabilized struct {
	lastUp mgl64.Vec3
}

var (
	_ Strategy      = (*Stabilized)(nil)
	_ SelectEnterer = (*Stabilized)(nil)
	_ SelectExiter  = (*Stabilized)(nil)
)

// NewStabilized returns a Stabilized whose history starts at world up.
func NewStabilized() *Stabilized {
	return &Stabilized{lastUp: pose.WorldUp}
}

// Kind returns KindStabilized.
func (s *Stabilized) Kind() Kind { return KindStabilized }

// LastUp returns the up vector of the most recent result.
func (s *Stabilized) LastUp() mgl64.Vec3 { return s.lastUp }

// OnSelectEnter re-seeds the history from the primary when a secondary
// joins.
func (s *Stabilized) OnSelectEnter(change SelectionChange) {
	if change.Secondary {
		s.lastUp = change.Primary.Up()
	}
}

// OnSelectExit re-seeds the history from the primary when a secondary
// leaves.
func (s *Stabilized) OnSelectExit(change SelectionChange) {
	if change.Secondary {
		s.lastUp = change.Primary.Up()
	}
}

// Blend implements Strategy.
func (s *Stabilized) Blend(influences []pose.Pose) (Result, error) {
	if err := checkInfluences(influences); err != nil {
		return Result{}, err
	}
	p0, p1 := influences[0], influences[1]

	forward := p1.Position.Sub(p0.Position)
	if forward.Len() < 1e-9 {
		forward = p0.Forward()
	}
	forward = forward.Normalize()

	unifiedUp := pose.SlerpVector(p0.Up(), p1.Up(), 0.5)
	up := unifiedUp
	if unifiedUp.Dot(s.lastUp) < 0 {
		up = up.Mul(-1)
	}

	angleDot := math.Abs(unifiedUp.Dot(forward))
	switch {
	case angleDot >= stabilizedHistoryThreshold:
		up = s.lastUp
	case angleDot > stabilizedLerpThreshold:
		pct := (angleDot - stabilizedLerpThreshold) / (stabilizedHistoryThreshold - stabilizedLerpThreshold)
		up = pose.SlerpVector(up, s.lastUp, pct)
	}

	left := forward.Cross(up)
	up = left.Cross(forward)

	out := pose.New(p0.Position, pose.LookRotation(forward, up))
	s.lastUp = out.Up()
	return Result{Pose: out}, nil
}
