package grab

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/emilyslouie/xri-two-hands/pkg/event"
	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

// InteractorID names one interactor, such as a hand or a ray.
type InteractorID string

// State is how many interactors hold the object.
type State int

const (
	StateIdle State = iota
	StateSingle
	StateMulti
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSingle:
		return "single"
	case StateMulti:
		return "multi"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Output is the result of one Tick.
type Output struct {
	State State
	// Pose is where the attach point should be in world space.
	Pose pose.Pose
	// Object is the held object's world pose implied by Pose and Attach.
	Object pose.Pose
	Scale  *mgl64.Vec3
	Attach *pose.Pose
	// Influences is the number of selecting interactors.
	Influences int
	// Elapsed is the total time passed to Tick.
	Elapsed float64
}

// EventKind tags an Event.
type EventKind int

const (
	SelectEntered EventKind = iota
	SelectExited
	Blended
)

func (k EventKind) String() string {
	switch k {
	case SelectEntered:
		return "select-entered"
	case SelectExited:
		return "select-exited"
	case Blended:
		return "blended"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is published on the host's bus.
type Event struct {
	Kind       EventKind
	Interactor InteractorID
	// Secondary is true for enter and exit events of a non-primary.
	Secondary bool
	// Output is set for Blended events.
	Output *Output
}

// Option configures an Interactable.
type Option func(*Interactable)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(h *Interactable) { h.logger = l }
}

// WithEvents publishes selection and blend events on bus.
func WithEvents(bus *event.Bus[Event]) Option {
	return func(h *Interactable) { h.events = bus }
}

// WithObjectPose sets the object's initial world pose.
func WithObjectPose(p pose.Pose) Option {
	return func(h *Interactable) { h.object = p }
}

// Interactable is one object that any number of interactors may hold at
// once. The first to select is the primary; later ones are secondaries in
// the order they arrived. When the primary lets go the oldest secondary is
// promoted.
//
// It is not safe for concurrent use.
type Interactable struct {
	strategy Strategy
	logger   *zap.Logger
	events   *event.Bus[Event]

	selectors []InteractorID // primary first
	poses     map[InteractorID]pose.Pose
	object    pose.Pose
	attach    *pose.Pose // held over from the last multi-hand grip
	elapsed   float64
}

// New returns an idle host driven by strategy.
func New(strategy Strategy, opts ...Option) (*Interactable, error) {
	if strategy == nil {
		return nil, ErrNilStrategy
	}
	h := &Interactable{
		strategy: strategy,
		logger:   zap.NewNop(),
		events:   event.NewBus[Event](),
		poses:    make(map[InteractorID]pose.Pose),
		object:   pose.Identity(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if fs, ok := strategy.(FrameSetter); ok {
		fs.SetFrame(h.object)
	}
	return h, nil
}

// Strategy returns the blend strategy.
func (h *Interactable) Strategy() Strategy { return h.strategy }

// Events returns the bus events are published on.
func (h *Interactable) Events() *event.Bus[Event] { return h.events }

// Selectors returns the selecting interactors, primary first.
func (h *Interactable) Selectors() []InteractorID {
	return append([]InteractorID(nil), h.selectors...)
}

// Primary returns the primary interactor.
func (h *Interactable) Primary() (InteractorID, bool) {
	if len(h.selectors) == 0 {
		return "", false
	}
	return h.selectors[0], true
}

// Object returns the held object's world pose.
func (h *Interactable) Object() pose.Pose { return h.object }

// SetObjectPose moves the object, for example when it is placed by
// something other than a grab.
func (h *Interactable) SetObjectPose(p pose.Pose) {
	h.object = p
	if fs, ok := h.strategy.(FrameSetter); ok {
		fs.SetFrame(p)
	}
}

func (h *Interactable) indexOf(id InteractorID) int {
	for i, s := range h.selectors {
		if s == id {
			return i
		}
	}
	return -1
}

func (h *Interactable) influences() []pose.Pose {
	out := make([]pose.Pose, len(h.selectors))
	for i, id := range h.selectors {
		out[i] = h.poses[id]
	}
	return out
}

// SelectEnter starts a selection by id at pose p.
func (h *Interactable) SelectEnter(id InteractorID, p pose.Pose) error {
	if h.indexOf(id) >= 0 {
		return fmt.Errorf("%w: %s", ErrAlreadySelected, id)
	}
	h.selectors = append(h.selectors, id)
	h.poses[id] = p
	if len(h.selectors) == 1 {
		h.attach = nil
	}

	secondary := len(h.selectors) > 1
	infl := h.influences()
	if hook, ok := h.strategy.(SelectEnterer); ok {
		hook.OnSelectEnter(SelectionChange{Secondary: secondary, Primary: infl[0], Influences: infl})
	}

	h.logger.Debug("select entered",
		zap.String("interactor", string(id)),
		zap.Bool("secondary", secondary),
		zap.Int("selectors", len(h.selectors)),
	)
	h.events.Publish(Event{Kind: SelectEntered, Interactor: id, Secondary: secondary})
	return nil
}

// SelectExit ends the selection by id.
func (h *Interactable) SelectExit(id InteractorID) error {
	idx := h.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotSelected, id)
	}
	secondary := idx > 0
	infl := h.influences()
	if hook, ok := h.strategy.(SelectExiter); ok {
		hook.OnSelectExit(SelectionChange{Secondary: secondary, Primary: infl[0], Influences: infl})
	}

	h.selectors = append(h.selectors[:idx], h.selectors[idx+1:]...)
	delete(h.poses, id)
	switch {
	case len(h.selectors) == 0:
		h.attach = nil
	case len(h.selectors) == 1:
		if a, ok := h.strategy.(Attacher); ok {
			h.attach = a.Attach()
		}
	}

	fields := []zap.Field{
		zap.String("interactor", string(id)),
		zap.Bool("secondary", secondary),
		zap.Int("selectors", len(h.selectors)),
	}
	if !secondary && len(h.selectors) > 0 {
		fields = append(fields, zap.String("promoted", string(h.selectors[0])))
	}
	h.logger.Debug("select exited", fields...)
	h.events.Publish(Event{Kind: SelectExited, Interactor: id, Secondary: secondary})
	return nil
}

// UpdatePose records the latest tracked pose of a selecting interactor.
func (h *Interactable) UpdatePose(id InteractorID, p pose.Pose) error {
	if h.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNotSelected, id)
	}
	h.poses[id] = p
	return nil
}

// Reset discards the strategy's frame-to-frame state, if it has any.
func (h *Interactable) Reset() {
	if r, ok := h.strategy.(Resetter); ok {
		r.Reset()
	}
}

// Tick advances by dt seconds and returns where the object should be.
// With no selectors the object stays put; with one it follows that
// interactor through the attach point left by the last multi-hand grip,
// if any; with more it follows the strategy's blend.
func (h *Interactable) Tick(dt float64) (Output, error) {
	if dt < 0 {
		return Output{}, fmt.Errorf("grab: negative time step %v", dt)
	}
	h.elapsed += dt

	out := Output{Influences: len(h.selectors), Elapsed: h.elapsed}
	switch len(h.selectors) {
	case 0:
		out.State = StateIdle
		out.Pose = h.object
		out.Object = h.object
		return out, nil
	case 1:
		out.State = StateSingle
		out.Pose = h.poses[h.selectors[0]]
		if h.attach != nil {
			a := *h.attach
			out.Attach = &a
		}
	default:
		res, err := h.strategy.Blend(h.influences())
		if err != nil {
			return Output{}, fmt.Errorf("grab: %s blend: %w", h.strategy.Kind(), err)
		}
		out.State = StateMulti
		out.Pose = res.Pose
		out.Scale = res.Scale
		out.Attach = res.Attach
		h.attach = res.Attach
	}

	out.Object = objectPose(out.Pose, out.Attach)
	if !out.Object.IsValid() {
		return Output{}, fmt.Errorf("grab: %s produced invalid pose %v", h.strategy.Kind(), out.Object)
	}
	h.SetObjectPose(out.Object)

	if out.State == StateMulti {
		o := out
		h.events.Publish(Event{Kind: Blended, Output: &o})
	}
	return out, nil
}

// objectPose places the object so that its attach point lands on target.
func objectPose(target pose.Pose, attach *pose.Pose) pose.Pose {
	if attach == nil {
		return target
	}
	rot := target.Rotation.Mul(attach.Rotation.Inverse()).Normalize()
	return pose.New(target.Position.Sub(rot.Rotate(attach.Position)), rot)
}
