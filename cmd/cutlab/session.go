package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/emilyslouie/xri-two-hands/pkg/cut"
	"github.com/emilyslouie/xri-two-hands/pkg/grab"
	"github.com/emilyslouie/xri-two-hands/pkg/kernel"
	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

// defaultStep is the frame time used when a session leaves dt unset.
const defaultStep = 1.0 / 90

// PoseSpec is a pose as written in a session file. Rotation is a
// quaternion in x, y, z, w order; Euler is in degrees, applied Z then X
// then Y. Rotation wins when both are set.
type PoseSpec struct {
	Position [3]float64 `yaml:"position"`
	Rotation []float64  `yaml:"rotation"`
	Euler    []float64  `yaml:"euler"`
}

// Pose converts p to a pose. An unset rotation is the identity.
func (p PoseSpec) Pose() (pose.Pose, error) {
	rot := mgl64.QuatIdent()
	switch {
	case len(p.Rotation) == 4:
		rot = mgl64.Quat{W: p.Rotation[3], V: mgl64.Vec3{p.Rotation[0], p.Rotation[1], p.Rotation[2]}}
		if rot.Len() == 0 {
			return pose.Pose{}, errors.New("zero rotation quaternion")
		}
		rot = rot.Normalize()
	case len(p.Rotation) != 0:
		return pose.Pose{}, errors.Errorf("rotation has %d components, want 4", len(p.Rotation))
	case len(p.Euler) == 3:
		rot = eulerToQuat(p.Euler[0], p.Euler[1], p.Euler[2])
	case len(p.Euler) != 0:
		return pose.Pose{}, errors.Errorf("euler has %d components, want 3", len(p.Euler))
	}
	return pose.New(mgl64.Vec3(p.Position), rot), nil
}

func eulerToQuat(x, y, z float64) mgl64.Quat {
	qx := mgl64.QuatRotate(mgl64.DegToRad(x), pose.WorldRight)
	qy := mgl64.QuatRotate(mgl64.DegToRad(y), pose.WorldUp)
	qz := mgl64.QuatRotate(mgl64.DegToRad(z), pose.WorldForward)
	return qy.Mul(qx).Mul(qz).Normalize()
}

// GrabEvent is one interactor change inside a frame.
type GrabEvent struct {
	ID string `yaml:"id"`
	// Op is enter, exit or pose.
	Op       string `yaml:"op"`
	PoseSpec `yaml:",inline"`
}

// GrabFrame holds the interactor changes applied before one tick.
type GrabFrame struct {
	Events []GrabEvent `yaml:"events"`
}

// GrabSession is a recorded sequence of frames for one held object.
type GrabSession struct {
	DT     float64     `yaml:"dt"`
	Object *PoseSpec   `yaml:"object"`
	Frames []GrabFrame `yaml:"frames"`
}

// CutFrame is the hinge angle and blade pose for one frame.
type CutFrame struct {
	Angle float64  `yaml:"angle"`
	Blade PoseSpec `yaml:"blade"`
}

// CutSession replays a cutter over the fragments of a scene script. Scene
// is resolved relative to the session file.
type CutSession struct {
	Scene  string     `yaml:"scene"`
	Frames []CutFrame `yaml:"frames"`
}

func decodeYAML(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return errors.Wrap(err, "decode session")
	}
	return nil
}

func loadGrabSession(path string) (*GrabSession, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open session")
	}
	defer f.Close()

	var s GrabSession
	if err := decodeYAML(f, &s); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if s.DT == 0 {
		s.DT = defaultStep
	}
	return &s, nil
}

func loadCutSession(path string) (*CutSession, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open session")
	}
	defer f.Close()

	var s CutSession
	if err := decodeYAML(f, &s); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if s.Scene == "" {
		return nil, errors.Errorf("%s: scene is required", path)
	}
	if !filepath.IsAbs(s.Scene) {
		s.Scene = filepath.Join(filepath.Dir(path), s.Scene)
	}
	return &s, nil
}

// TickRecord is the JSON line written for every replayed grab frame.
type TickRecord struct {
	Frame      int         `json:"frame"`
	State      string      `json:"state"`
	Influences int         `json:"influences"`
	Position   [3]float64  `json:"position"`
	Rotation   [4]float64  `json:"rotation"`
	Scale      *[3]float64 `json:"scale,omitempty"`
}

func quatArray(q mgl64.Quat) [4]float64 {
	return [4]float64{q.V[0], q.V[1], q.V[2], q.W}
}

// replayGrab drives a host through the session and writes one TickRecord
// per frame to w.
func replayGrab(s *GrabSession, strategy grab.Strategy, log *zap.Logger, w io.Writer) error {
	var opts []grab.Option
	opts = append(opts, grab.WithLogger(log))
	if s.Object != nil {
		obj, err := s.Object.Pose()
		if err != nil {
			return errors.Wrap(err, "object")
		}
		opts = append(opts, grab.WithObjectPose(obj))
	}
	host, err := grab.New(strategy, opts...)
	if err != nil {
		return err
	}

	blends := 0
	sub := host.Events().Subscribe(func(e grab.Event) {
		if e.Kind == grab.Blended {
			blends++
		}
	})
	defer sub.Unsubscribe()

	enc := json.NewEncoder(w)
	for i, frame := range s.Frames {
		for _, ev := range frame.Events {
			if err := applyGrabEvent(host, ev); err != nil {
				return errors.Wrapf(err, "frame %d", i)
			}
		}
		out, err := host.Tick(s.DT)
		if err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
		rec := TickRecord{
			Frame:      i,
			State:      out.State.String(),
			Influences: out.Influences,
			Position:   out.Object.Position,
			Rotation:   quatArray(out.Object.Rotation),
		}
		if out.Scale != nil {
			sc := [3]float64(*out.Scale)
			rec.Scale = &sc
		}
		if err := enc.Encode(rec); err != nil {
			return errors.Wrap(err, "write record")
		}
	}
	log.Debug("grab session replayed",
		zap.Int("frames", len(s.Frames)),
		zap.Int("blends", blends),
		zap.Stringer("strategy", strategy.Kind()),
	)
	return nil
}

func applyGrabEvent(host *grab.Interactable, ev GrabEvent) error {
	id := grab.InteractorID(ev.ID)
	if id == "" {
		return errors.New("event without id")
	}
	switch ev.Op {
	case "enter":
		p, err := ev.Pose()
		if err != nil {
			return errors.Wrap(err, ev.ID)
		}
		return host.SelectEnter(id, p)
	case "exit":
		return host.SelectExit(id)
	case "pose", "":
		p, err := ev.Pose()
		if err != nil {
			return errors.Wrap(err, ev.ID)
		}
		return host.UpdatePose(id, p)
	}
	return errors.Errorf("%s: unknown op %q", ev.ID, ev.Op)
}

// CutRecord is the JSON line written for every cut during a cut replay.
type CutRecord struct {
	Frame             int    `json:"frame"`
	Name              string `json:"name"`
	Source            string `json:"source"`
	Fragment          string `json:"fragment,omitempty"`
	PositiveTriangles int    `json:"positive_triangles"`
	NegativeTriangles int    `json:"negative_triangles"`
}

// replayCut registers every mesh as a cuttable at the origin, feeds the
// session's hinge angles to a cutter and returns the surviving fragments.
// Fragments that came from the same mesh get a numeric suffix so exported
// names stay unique.
func replayCut(s *CutSession, meshes []*kernel.Mesh, log *zap.Logger, w io.Writer, opts ...cut.Option) ([]*kernel.Mesh, error) {
	var blade pose.Pose
	opts = append(opts, cut.WithLogger(log))
	cutter, err := cut.NewCutter(func() pose.Pose { return blade }, opts...)
	if err != nil {
		return nil, err
	}
	for _, m := range meshes {
		cutter.Register(&cut.Cuttable{Name: m.PartName, Pose: pose.Identity(), Mesh: m})
	}

	enc := json.NewEncoder(w)
	frame := 0
	var writeErr error
	sub := cutter.Events().Subscribe(func(e cut.Event) {
		ce, ok := e.(cut.CutEvent)
		if !ok || writeErr != nil {
			return
		}
		rec := CutRecord{
			Frame:             frame,
			Name:              ce.Name,
			Source:            ce.Source.String(),
			PositiveTriangles: ce.PositiveTriangles,
			NegativeTriangles: ce.NegativeTriangles,
		}
		if ce.Fragment != uuid.Nil {
			rec.Fragment = ce.Fragment.String()
		}
		writeErr = enc.Encode(rec)
	})
	defer sub.Unsubscribe()

	for i, f := range s.Frames {
		frame = i
		if blade, err = f.Blade.Pose(); err != nil {
			return nil, errors.Wrapf(err, "frame %d: blade", i)
		}
		if _, err := cutter.Tick(f.Angle); err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}
		if writeErr != nil {
			return nil, errors.Wrap(writeErr, "write record")
		}
	}

	seen := make(map[string]int)
	var out []*kernel.Mesh
	for _, ct := range cutter.Cuttables() {
		if ct.Mesh == nil || ct.Mesh.IsEmpty() {
			continue
		}
		m := ct.Mesh.Clone()
		m.PartName = ct.Name
		if n := seen[ct.Name]; n > 0 {
			m.PartName = ct.Name + "." + strconv.Itoa(n)
		}
		seen[ct.Name]++
		out = append(out, m)
	}
	return out, nil
}
