package cut

import (
	"errors"
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emilyslouie/xri-two-hands/pkg/event"
	"github.com/emilyslouie/xri-two-hands/pkg/kernel"
	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

// Default hinge thresholds, in degrees.
const (
	DefaultActuateThreshold = -3.0
	DefaultReleaseThreshold = -25.0
)

var (
	// ErrNilBlade is returned when a cutter is built without a blade source.
	ErrNilBlade = errors.New("cut: nil blade source")
	// ErrThresholds is returned when the release threshold is not below the
	// actuate threshold.
	ErrThresholds = errors.New("cut: release threshold must be below actuate threshold")
)

// State is the cutter's actuation state.
type State int

const (
	// WaitingForRelease waits for the hinge to open past the release threshold.
	WaitingForRelease State = iota
	// WaitingForActuate waits for the hinge to close past the actuate threshold.
	WaitingForActuate
)

func (s State) String() string {
	switch s {
	case WaitingForRelease:
		return "waiting-for-release"
	case WaitingForActuate:
		return "waiting-for-actuate"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cuttable is a mesh placed in the world that the cutter may split. The
// mesh is in the cuttable's local frame.
type Cuttable struct {
	ID    uuid.UUID
	Name  string
	Pose  pose.Pose
	Scale mgl64.Vec3 // zero components are treated as 1
	Mesh  *kernel.Mesh
}

func (c *Cuttable) scale() mgl64.Vec3 {
	s := c.Scale
	for i := range s {
		if s[i] == 0 {
			s[i] = 1
		}
	}
	return s
}

// InverseTransformPoint maps a world point into the cuttable's mesh frame.
func (c *Cuttable) InverseTransformPoint(world mgl64.Vec3) v3.Vec {
	local := c.Pose.InverseTransformPoint(world)
	s := c.scale()
	return v3.Vec{X: local[0] / s[0], Y: local[1] / s[1], Z: local[2] / s[2]}
}

// TransformPoint maps a point in the mesh frame to world space.
func (c *Cuttable) TransformPoint(local v3.Vec) mgl64.Vec3 {
	s := c.scale()
	return c.Pose.TransformPoint(mgl64.Vec3{local.X * s[0], local.Y * s[1], local.Z * s[2]})
}

// BladeFunc reports the blade's current world pose.
type BladeFunc func() pose.Pose

// OverlapFunc reports whether the blade box touches a cuttable.
type OverlapFunc func(blade pose.Pose, halfExtents mgl64.Vec3, c *Cuttable) bool

// Event is published on the cutter's bus. It is either a CutEvent or an
// ActuatedEvent.
type Event interface {
	cutterEvent()
}

// CutEvent reports one cuttable split in two.
type CutEvent struct {
	Source   uuid.UUID // the cuttable that kept the negative side
	Fragment uuid.UUID // the new cuttable holding the positive side; uuid.Nil if empty
	Name     string
	Plane    Plane // in the source's mesh frame

	PositiveTriangles int
	NegativeTriangles int
}

// ActuatedEvent follows the cut events of one actuation.
type ActuatedEvent struct {
	Angle float64
	Cuts  int
}

func (CutEvent) cutterEvent()      {}
func (ActuatedEvent) cutterEvent() {}

// Option configures a Cutter.
type Option func(*Cutter)

// WithThresholds sets the actuate and release hinge angles in degrees.
func WithThresholds(actuate, release float64) Option {
	return func(c *Cutter) {
		c.actuateThreshold = actuate
		c.releaseThreshold = release
	}
}

// WithBladeExtents sets the half extents of the blade's overlap box.
func WithBladeExtents(halfExtents mgl64.Vec3) Option {
	return func(c *Cutter) { c.halfExtents = halfExtents }
}

// WithOverlap replaces the default bounding-sphere overlap test.
func WithOverlap(fn OverlapFunc) Option {
	return func(c *Cutter) { c.overlap = fn }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cutter) { c.logger = l }
}

// WithEvents publishes cut and actuation events on bus.
func WithEvents(bus *event.Bus[Event]) Option {
	return func(c *Cutter) { c.events = bus }
}

// Cutter splits registered cuttables along its blade each time its hinge
// closes after having been opened far enough.
type Cutter struct {
	blade            BladeFunc
	halfExtents      mgl64.Vec3
	actuateThreshold float64
	releaseThreshold float64
	overlap          OverlapFunc
	logger           *zap.Logger
	events           *event.Bus[Event]

	state     State
	angle     float64
	cuttables []*Cuttable
}

// NewCutter returns a cutter in WaitingForRelease.
func NewCutter(blade BladeFunc, opts ...Option) (*Cutter, error) {
	if blade == nil {
		return nil, ErrNilBlade
	}
	c := &Cutter{
		blade:            blade,
		halfExtents:      mgl64.Vec3{0.5, 0.5, 0.5},
		actuateThreshold: DefaultActuateThreshold,
		releaseThreshold: DefaultReleaseThreshold,
		overlap:          SphereOverlap,
		logger:           zap.NewNop(),
		events:           event.NewBus[Event](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.releaseThreshold >= c.actuateThreshold {
		return nil, fmt.Errorf("%w: release %v, actuate %v", ErrThresholds, c.releaseThreshold, c.actuateThreshold)
	}
	return c, nil
}

// Events returns the bus cut and actuation events are published on.
func (c *Cutter) Events() *event.Bus[Event] { return c.events }

// State returns the current actuation state.
func (c *Cutter) State() State { return c.state }

// Angle returns the hinge angle seen by the last Tick.
func (c *Cutter) Angle() float64 { return c.angle }

// Register adds a cuttable. A nil ID is replaced with a fresh one.
func (c *Cutter) Register(ct *Cuttable) {
	if ct.ID == uuid.Nil {
		ct.ID = uuid.New()
	}
	c.cuttables = append(c.cuttables, ct)
}

// Remove unregisters the cuttable with the given ID.
func (c *Cutter) Remove(id uuid.UUID) bool {
	for i, ct := range c.cuttables {
		if ct.ID == id {
			c.cuttables = append(c.cuttables[:i], c.cuttables[i+1:]...)
			return true
		}
	}
	return false
}

// Cuttables returns the registered cuttables in registration order.
func (c *Cutter) Cuttables() []*Cuttable {
	return append([]*Cuttable(nil), c.cuttables...)
}

// Tick feeds the hinge angle for one frame and reports whether the cutter
// actuated. Opening below the release threshold arms it; closing to the
// actuate threshold or above fires it and disarms it.
//
// If a cut fails, cuttables split earlier in the same actuation keep their
// new meshes, the cutter stays disarmed, and the ActuatedEvent carrying the
// partial count is published before the error is returned.
func (c *Cutter) Tick(angle float64) (bool, error) {
	c.angle = angle
	switch {
	case c.state == WaitingForRelease && angle < c.releaseThreshold:
		c.state = WaitingForActuate
		return false, nil
	case c.state == WaitingForActuate && angle >= c.actuateThreshold:
		c.state = WaitingForRelease
		return true, c.actuate()
	}
	return false, nil
}

func (c *Cutter) actuate() error {
	blade := c.blade()
	if !blade.IsValid() {
		return fmt.Errorf("cut: invalid blade pose %v", blade)
	}

	// Fragments created below are not cut again in this actuation.
	targets := c.Cuttables()
	cuts := 0
	for _, ct := range targets {
		if ct.Mesh == nil || ct.Mesh.IsEmpty() || !c.overlap(blade, c.halfExtents, ct) {
			continue
		}
		if err := c.cut(ct, blade); err != nil {
			// Cuts already made stand; the event reports how many.
			c.events.Publish(ActuatedEvent{Angle: c.angle, Cuts: cuts})
			return err
		}
		cuts++
	}

	c.events.Publish(ActuatedEvent{Angle: c.angle, Cuts: cuts})
	return nil
}

func (c *Cutter) cut(ct *Cuttable, blade pose.Pose) error {
	a := ct.InverseTransformPoint(blade.Position)
	b := ct.InverseTransformPoint(blade.Position.Add(blade.Right()))
	d := ct.InverseTransformPoint(blade.Position.Sub(blade.Forward()))
	plane, err := NewPlane(a, b, d)
	if err != nil {
		return fmt.Errorf("cut: %s: %w", ct.Name, err)
	}

	positive, negative, err := Split(ct.Mesh, plane)
	if err != nil {
		return fmt.Errorf("cut: %s: %w", ct.Name, err)
	}

	ev := CutEvent{
		Source:            ct.ID,
		Name:              ct.Name,
		Plane:             plane,
		PositiveTriangles: positive.TriangleCount(),
		NegativeTriangles: negative.TriangleCount(),
	}

	ct.Mesh = negative
	if !positive.IsEmpty() {
		fragment := &Cuttable{
			ID:    uuid.New(),
			Name:  ct.Name,
			Pose:  ct.Pose,
			Scale: ct.Scale,
			Mesh:  positive,
		}
		c.cuttables = append(c.cuttables, fragment)
		ev.Fragment = fragment.ID
	}

	c.logger.Info("cut",
		zap.String("name", ct.Name),
		zap.Stringer("source", ct.ID),
		zap.Stringer("fragment", ev.Fragment),
		zap.Int("positive_triangles", ev.PositiveTriangles),
		zap.Int("negative_triangles", ev.NegativeTriangles),
	)
	c.events.Publish(ev)
	return nil
}

// SphereOverlap compares the bounding spheres of the blade box and the
// cuttable's mesh. It may report overlap for shapes that only come close.
func SphereOverlap(blade pose.Pose, halfExtents mgl64.Vec3, ct *Cuttable) bool {
	if ct.Mesh == nil || ct.Mesh.IsEmpty() {
		return false
	}
	min, max := ct.Mesh.Bounds()
	center := ct.TransformPoint(min.Add(max).DivScalar(2))

	s := ct.scale()
	maxScale := math.Max(math.Abs(s[0]), math.Max(math.Abs(s[1]), math.Abs(s[2])))
	radius := max.Sub(min).Length() / 2 * maxScale

	return center.Sub(blade.Position).Len() <= radius+halfExtents.Len()
}
