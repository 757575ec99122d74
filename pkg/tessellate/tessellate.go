// Package tessellate walks a scene graph and produces triangle meshes
// using a geometry kernel, then replays the scene's cuts against them.
// One mesh is produced per placed piece before cutting.
package tessellate

import (
	"context"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/emilyslouie/xri-two-hands/pkg/cut"
	"github.com/emilyslouie/xri-two-hands/pkg/graph"
	"github.com/emilyslouie/xri-two-hands/pkg/kernel"
)

// Fragment suffixes appended to a piece name by each cut.
const (
	PositiveSuffix = "+"
	NegativeSuffix = "-"
)

// Fragment is a mesh together with the piece it was carved from.
type Fragment struct {
	Piece graph.NodeID
	Mesh  *kernel.Mesh
}

// frame is one placement on the transform stack.
type frame struct {
	translation graph.Vec3
	rotation    graph.Vec3
}

// transformStack accumulates spatial transforms during graph traversal.
type transformStack struct {
	frames []frame
}

func newTransformStack() *transformStack {
	return &transformStack{}
}

func (ts *transformStack) push(td graph.TransformData) {
	var f frame
	if td.Translation != nil {
		f.translation = *td.Translation
	}
	if td.Rotation != nil {
		f.rotation = *td.Rotation
	}
	ts.frames = append(ts.frames, f)
}

func (ts *transformStack) pop() {
	if len(ts.frames) > 0 {
		ts.frames = ts.frames[:len(ts.frames)-1]
	}
}

// apply places s by every frame, innermost first. Each frame rotates about
// its own origin, then translates.
func (ts *transformStack) apply(k kernel.Kernel, s kernel.Solid) kernel.Solid {
	for i := len(ts.frames) - 1; i >= 0; i-- {
		f := ts.frames[i]
		if !f.rotation.IsZero() {
			s = k.Rotate(s, f.rotation.X, f.rotation.Y, f.rotation.Z)
		}
		if !f.translation.IsZero() {
			s = k.Translate(s, f.translation.X, f.translation.Y, f.translation.Z)
		}
	}
	return s
}

// Option configures tessellation.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger sets the logger used to report cut progress.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Tessellate meshes every placed piece and applies the scene's cuts in
// script order. The tessellator is read-only and never mutates the graph.
// Output order follows root order, then traversal order within a root.
func Tessellate(ctx context.Context, g *graph.SceneGraph, k kernel.Kernel, opts ...Option) ([]*kernel.Mesh, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	frags, err := Pieces(ctx, g, k)
	if err != nil {
		return nil, err
	}
	frags, err = ApplyCuts(g, frags, o.log)
	if err != nil {
		return nil, err
	}

	meshes := make([]*kernel.Mesh, len(frags))
	for i, f := range frags {
		meshes[i] = f.Mesh
	}
	return meshes, nil
}

// Pieces walks every root concurrently and returns one fragment per placed
// piece, in root order.
func Pieces(ctx context.Context, g *graph.SceneGraph, k kernel.Kernel) ([]Fragment, error) {
	if g == nil {
		return nil, nil
	}

	perRoot := make([][]Fragment, len(g.Roots))
	eg, ctx := errgroup.WithContext(ctx)
	for i, rootID := range g.Roots {
		root := g.Get(rootID)
		if root == nil {
			continue
		}
		eg.Go(func() error {
			collected, err := walkNode(ctx, g, k, root, newTransformStack())
			if err != nil {
				return fmt.Errorf("tessellate: error walking root %s: %w", rootID.Short(), err)
			}
			perRoot[i] = collected
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var frags []Fragment
	for _, collected := range perRoot {
		frags = append(frags, collected...)
	}
	return frags, nil
}

// ApplyCuts replays every cut node in script order. A cut splits each
// current fragment of its target; both halves are renamed with a suffix and
// empty halves are dropped. A plane that misses a fragment leaves it as is.
func ApplyCuts(g *graph.SceneGraph, frags []Fragment, log *zap.Logger) ([]Fragment, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, node := range g.Cuts() {
		cd, ok := node.Data.(graph.CutData)
		if !ok {
			return nil, fmt.Errorf("tessellate: cut node %s has unexpected data type %T", node.ID.Short(), node.Data)
		}
		plane, err := cut.NewPlane(toVec(cd.A), toVec(cd.B), toVec(cd.C))
		if err != nil {
			return nil, fmt.Errorf("tessellate: cut node %s: %w", node.ID.Short(), err)
		}

		next := make([]Fragment, 0, len(frags)+1)
		split := 0
		for _, f := range frags {
			if f.Piece != cd.Target {
				next = append(next, f)
				continue
			}
			pos, neg, err := cut.Split(f.Mesh, plane)
			if err != nil {
				return nil, fmt.Errorf("tessellate: cutting %q: %w", f.Mesh.PartName, err)
			}
			if pos.IsEmpty() || neg.IsEmpty() {
				next = append(next, f)
				continue
			}
			split++
			pos.PartName = f.Mesh.PartName + PositiveSuffix
			neg.PartName = f.Mesh.PartName + NegativeSuffix
			next = append(next, Fragment{Piece: f.Piece, Mesh: pos}, Fragment{Piece: f.Piece, Mesh: neg})
		}
		log.Debug("applied cut",
			zap.String("cut", node.ID.Short()),
			zap.String("target", cd.Target.Short()),
			zap.Int("split", split),
			zap.Int("fragments", len(next)),
		)
		frags = next
	}
	return frags, nil
}

func toVec(v graph.Vec3) v3.Vec {
	return v3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// walkNode recursively traverses a node and its children, collecting meshes.
func walkNode(ctx context.Context, g *graph.SceneGraph, k kernel.Kernel, n *graph.Node, ts *transformStack) ([]Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n.Kind {
	case graph.NodePrimitive:
		return handlePrimitive(k, n, ts)

	case graph.NodeTransform:
		return handleTransform(ctx, g, k, n, ts)

	case graph.NodeGroup:
		return handleChildren(ctx, g, k, n, ts)

	case graph.NodeCut:
		// Applied after tessellation in script order.
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown node kind: %v", n.Kind)
	}
}

// handlePrimitive creates geometry for a primitive node.
func handlePrimitive(k kernel.Kernel, n *graph.Node, ts *transformStack) ([]Fragment, error) {
	var solid kernel.Solid

	switch data := n.Data.(type) {
	case graph.BoxData:
		solid = k.Box(data.Size.X, data.Size.Y, data.Size.Z)
	case graph.CylinderData:
		segments := data.Segments
		if segments == 0 {
			segments = graph.DefaultCylinderSegments
		}
		solid = k.Cylinder(data.Height, data.Radius, segments)
	case graph.SphereData:
		solid = k.Sphere(data.Radius)
	default:
		return nil, fmt.Errorf("primitive node %s has unsupported data type %T", n.ID.Short(), n.Data)
	}

	mesh, err := k.ToMesh(ts.apply(k, solid))
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for node %s: %w", n.ID.Short(), err)
	}

	// Prefer the node's Name, fall back to short ID.
	if n.Name != "" {
		mesh.PartName = n.Name
	} else {
		mesh.PartName = n.ID.Short()
	}

	return []Fragment{{Piece: n.ID, Mesh: mesh}}, nil
}

// handleTransform pushes the transform, recurses into children, then pops.
func handleTransform(ctx context.Context, g *graph.SceneGraph, k kernel.Kernel, n *graph.Node, ts *transformStack) ([]Fragment, error) {
	td, ok := n.Data.(graph.TransformData)
	if !ok {
		return nil, fmt.Errorf("transform node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}

	ts.push(td)
	defer ts.pop()
	return handleChildren(ctx, g, k, n, ts)
}

// handleChildren recurses into children transparently.
func handleChildren(ctx context.Context, g *graph.SceneGraph, k kernel.Kernel, n *graph.Node, ts *transformStack) ([]Fragment, error) {
	var frags []Fragment
	for _, child := range g.Children(n) {
		collected, err := walkNode(ctx, g, k, child, ts)
		if err != nil {
			return nil, err
		}
		frags = append(frags, collected...)
	}
	return frags, nil
}
