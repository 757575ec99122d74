package grab

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

// scaleEpsilon is the initial hand distance below which the scale factor
// stays at 1.
const scaleEpsilon = 1e-6

// Scale resizes the held object by how far the first two influences have
// moved apart since the secondary grab began. The pose is the Average blend
// of the influences, or the primary's pose when AveragePoses is false.
type Scale struct {
	Average      *Average
	AveragePoses bool
	Multiplier   float64
	// LocalScale is the object's current local scale. Blend updates it.
	LocalScale mgl64.Vec3

	computeInitial  bool
	initialDistance float64
	initialScale    mgl64.Vec3
}

var (
	_ Strategy      = (*Scale)(nil)
	_ SelectEnterer = (*Scale)(nil)
	_ SelectExiter  = (*Scale)(nil)
)

// NewScale returns a Scale at unit scale that averages poses. The first
// blend records the reference distance.
func NewScale() *Scale {
	return &Scale{
		Average:        NewAverage(),
		AveragePoses:   true,
		Multiplier:     1,
		LocalScale:     mgl64.Vec3{1, 1, 1},
		computeInitial: true,
	}
}

// Kind returns KindScale.
func (s *Scale) Kind() Kind { return KindScale }

// OnSelectEnter arms a new reference distance when a secondary joins.
func (s *Scale) OnSelectEnter(change SelectionChange) {
	if change.Secondary {
		s.computeInitial = true
	}
}

// OnSelectExit drops any pending reference capture.
func (s *Scale) OnSelectExit(SelectionChange) {
	s.computeInitial = false
}

// Blend implements Strategy. The result always carries the new scale.
func (s *Scale) Blend(influences []pose.Pose) (Result, error) {
	if err := checkInfluences(influences); err != nil {
		return Result{}, err
	}

	p := influences[0]
	if s.AveragePoses {
		avg := s.Average
		if avg == nil {
			avg = NewAverage()
		}
		p = avg.blend(influences[0], influences[1])
	}

	distance := influences[0].Position.Sub(influences[1].Position).Len()
	if s.computeInitial {
		s.initialDistance = distance
		s.initialScale = s.LocalScale
		s.computeInitial = false
	}

	factor := 1.0
	if math.Abs(s.initialDistance) > scaleEpsilon {
		factor = distance / s.initialDistance
	}
	scale := s.initialScale.Mul(factor * s.Multiplier)
	s.LocalScale = scale

	return Result{Pose: p, Scale: &scale}, nil
}
