// Package grab blends the poses of several interactors holding one object
// into a single target pose. A generic host (Interactable) tracks which
// interactors hold the object and feeds their poses, primary first, to a
// pluggable Strategy each tick.
package grab

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

var (
	// ErrTooFewInfluences is returned when a strategy is asked to blend
	// fewer than two poses.
	ErrTooFewInfluences = errors.New("grab: at least two influences are required")
	// ErrNilStrategy is returned when a host is built without a strategy.
	ErrNilStrategy = errors.New("grab: nil strategy")
	// ErrAlreadySelected is returned when an interactor selects twice.
	ErrAlreadySelected = errors.New("grab: interactor already selecting")
	// ErrNotSelected is returned for an interactor that is not selecting.
	ErrNotSelected = errors.New("grab: interactor not selecting")
	// ErrUnknownKind is returned by ParseKind.
	ErrUnknownKind = errors.New("grab: unknown strategy kind")
)

// Kind tags a blend strategy.
type Kind int

const (
	KindAverage Kind = iota
	KindScale
	KindStabilized
	KindStaff
	KindTwist
)

var kindNames = map[Kind]string{
	KindAverage:    "average",
	KindScale:      "scale",
	KindStabilized: "stabilized",
	KindStaff:      "staff",
	KindTwist:      "twist",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the kind named s, ignoring case.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Result is the outcome of one blend.
type Result struct {
	// Pose is where the object's attach point should be.
	Pose pose.Pose
	// Scale is the object's new local scale, when the strategy drives it.
	Scale *mgl64.Vec3
	// Attach is the attach point's pose in the object frame, when the
	// strategy moves it.
	Attach *pose.Pose
}

// Strategy reduces the poses of every holding interactor to one result.
// influences is chronological: the primary first, then secondaries in the
// order they began selecting. It always holds at least two poses when
// called by the host; strategies return ErrTooFewInfluences otherwise.
type Strategy interface {
	Kind() Kind
	Blend(influences []pose.Pose) (Result, error)
}

// SelectionChange describes a select enter or exit to strategy hooks.
type SelectionChange struct {
	// Secondary is true when the interactor is not the primary.
	Secondary bool
	// Primary is the primary interactor's pose. On exit this is the pose of
	// the primary before any promotion.
	Primary pose.Pose
	// Influences are the selecting poses, primary first. The interactor
	// entering or leaving is included.
	Influences []pose.Pose
}

// SelectEnterer is implemented by strategies that react to a new selector.
type SelectEnterer interface {
	OnSelectEnter(change SelectionChange)
}

// SelectExiter is implemented by strategies that react to a selector
// leaving.
type SelectExiter interface {
	OnSelectExit(change SelectionChange)
}

// Resetter is implemented by strategies with frame-to-frame state that can
// be discarded on request.
type Resetter interface {
	Reset()
}

// Attacher is implemented by strategies that keep an attach point between
// blends. The host reads it after a selector leaves and holds the object
// through it while a single interactor remains.
type Attacher interface {
	Attach() *pose.Pose
}

// FrameSetter is implemented by strategies that need the held object's
// world pose.
type FrameSetter interface {
	SetFrame(object pose.Pose)
}

func checkInfluences(influences []pose.Pose) error {
	if len(influences) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewInfluences, len(influences))
	}
	return nil
}
