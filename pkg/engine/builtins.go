package engine

import (
	"fmt"
	"strings"

	"github.com/emilyslouie/xri-two-hands/pkg/graph"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms cut script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: left-half -> left_half
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpPrimitive wraps a primitive payload so it can be returned from
// `box`, `cylinder` or `sphere` and consumed by `defpiece`.
type sexpPrimitive struct {
	data graph.NodeData
}

func (p *sexpPrimitive) SexpString(ps *zygo.PrintState) string {
	switch d := p.data.(type) {
	case graph.BoxData:
		return fmt.Sprintf("(box %gx%gx%g)", d.Size.X, d.Size.Y, d.Size.Z)
	case graph.CylinderData:
		return fmt.Sprintf("(cylinder h=%g r=%g)", d.Height, d.Radius)
	case graph.SphereData:
		return fmt.Sprintf("(sphere r=%g)", d.Radius)
	}
	return "(primitive)"
}
func (p *sexpPrimitive) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a graph.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   graph.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a graph.Vec3.
type sexpVec3 struct {
	vec graph.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value, treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// floatKW reads an optional numeric keyword into dst.
func (pa kwArgs) floatKW(form, key string, dst *float64) error {
	v, ok := pa.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", form, key, err)
	}
	*dst = f
	return nil
}

// vecKW reads an optional vec3 keyword.
func (pa kwArgs) vecKW(form, key string) (*graph.Vec3, error) {
	v, ok := pa.kw[key]
	if !ok {
		return nil, nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", form, key, err)
	}
	return &vec, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (graph.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return graph.ZeroID, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (graph.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return graph.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Scene builder
// ---------------------------------------------------------------------------

// builder owns the graph for one evaluation. Anonymous nodes are numbered
// per evaluation so the same script always yields the same IDs.
type builder struct {
	g       *graph.SceneGraph
	counter uint64
}

func newBuilder() *builder {
	return &builder{g: graph.New()}
}

func (b *builder) nextSuffix() string {
	b.counter++
	return fmt.Sprintf("#%d", b.counter)
}

// resolvePiece follows transform nodes down to the piece they place.
func (b *builder) resolvePiece(id graph.NodeID) (*graph.Node, error) {
	for depth := 0; depth < len(b.g.Nodes)+1; depth++ {
		n := b.g.Get(id)
		if n == nil {
			return nil, fmt.Errorf("unknown node %s", id.Short())
		}
		switch n.Kind {
		case graph.NodePrimitive:
			return n, nil
		case graph.NodeTransform:
			if len(n.Children) != 1 {
				return nil, fmt.Errorf("placement %s does not hold a single piece", id.Short())
			}
			id = n.Children[0]
		default:
			return nil, fmt.Errorf("%s node %s is not a piece", n.Kind, id.Short())
		}
	}
	return nil, fmt.Errorf("placement chain at %s does not end in a piece", id.Short())
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs all cut script builtins into a zygomys environment.
// The builtins operate on the builder's SceneGraph, populating it during
// evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {
	g := b.g

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: graph.Vec3{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (box :size (vec3 2 0.2 0.5))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		size, err := pa.vecKW("box", "size")
		if err != nil {
			return zygo.SexpNull, err
		}
		if size == nil {
			return zygo.SexpNull, fmt.Errorf("box requires :size")
		}
		return &sexpPrimitive{data: graph.BoxData{Size: *size}}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 1.5 :radius 0.2 :segments 24)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		cd := graph.CylinderData{Segments: graph.DefaultCylinderSegments}

		if err := pa.floatKW("cylinder", "height", &cd.Height); err != nil {
			return zygo.SexpNull, err
		}
		if err := pa.floatKW("cylinder", "radius", &cd.Radius); err != nil {
			return zygo.SexpNull, err
		}
		segments := float64(cd.Segments)
		if err := pa.floatKW("cylinder", "segments", &segments); err != nil {
			return zygo.SexpNull, err
		}
		cd.Segments = int(segments)

		return &sexpPrimitive{data: cd}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere :radius 0.5)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		sd := graph.SphereData{}
		if err := pa.floatKW("sphere", "radius", &sd.Radius); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpPrimitive{data: sd}, nil
	})

	// -----------------------------------------------------------------------
	// (defpiece "name" (box ...))
	// -----------------------------------------------------------------------
	env.AddFunction("defpiece", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("defpiece requires a name and a body expression")
		}

		pieceName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defpiece: name: %w", err)
		}
		if pieceName == "" {
			return zygo.SexpNull, fmt.Errorf("defpiece: name must not be empty")
		}
		if g.Lookup(pieceName) != nil {
			return zygo.SexpNull, fmt.Errorf("defpiece: %q is already defined", pieceName)
		}

		body, ok := args[1].(*sexpPrimitive)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("defpiece: expected box, cylinder or sphere expression, got %T", args[1])
		}

		id := graph.NewNodeID("defpiece/" + pieceName)
		g.AddNode(&graph.Node{
			ID:   id,
			Kind: graph.NodePrimitive,
			Name: pieceName,
			Data: body.data,
		})

		return &sexpNodeRef{id: id, name: pieceName}, nil
	})

	// -----------------------------------------------------------------------
	// (piece "name")
	// -----------------------------------------------------------------------
	env.AddFunction("piece", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("piece requires a name argument")
		}

		pieceName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("piece: name: %w", err)
		}

		n := g.Lookup(pieceName)
		if n == nil || n.Kind != graph.NodePrimitive {
			return zygo.SexpNull, fmt.Errorf("piece: no piece named %q", pieceName)
		}

		return &sexpNodeRef{id: n.ID, name: pieceName}, nil
	})

	// -----------------------------------------------------------------------
	// (place (piece "log") :at (vec3 0 1 0) :rotate (vec3 0 90 0))
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("place requires a node reference as first argument")
		}

		childID, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: node: %w", err)
		}

		td := graph.TransformData{}
		if td.Translation, err = pa.vecKW("place", "at"); err != nil {
			return zygo.SexpNull, err
		}
		if td.Rotation, err = pa.vecKW("place", "rotate"); err != nil {
			return zygo.SexpNull, err
		}

		idPath := "place/" + childID.Short() + b.nextSuffix()
		if child := g.Get(childID); child != nil && child.Name != "" {
			idPath = "place/" + child.Name + b.nextSuffix()
		}
		id := graph.NewNodeID(idPath)

		g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeTransform,
			Children: []graph.NodeID{childID},
			Data:     td,
		})

		return &sexpNodeRef{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (cut (piece "log") :a (vec3 0 0 0) :b (vec3 1 0 0) :c (vec3 0 0 -1))
	// -----------------------------------------------------------------------
	env.AddFunction("cut", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("cut requires a piece reference as first argument")
		}
		ref, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cut: piece: %w", err)
		}
		target, err := b.resolvePiece(ref)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cut: %w", err)
		}

		cd := graph.CutData{Target: target.ID}
		for _, p := range []struct {
			key string
			dst *graph.Vec3
		}{{"a", &cd.A}, {"b", &cd.B}, {"c", &cd.C}} {
			v, err := pa.vecKW("cut", p.key)
			if err != nil {
				return zygo.SexpNull, err
			}
			if v == nil {
				return zygo.SexpNull, fmt.Errorf("cut requires :a, :b and :c points")
			}
			*p.dst = *v
		}

		id := graph.NewNodeID("cut/" + target.Name + b.nextSuffix())
		g.AddNode(&graph.Node{
			ID:   id,
			Kind: graph.NodeCut,
			Data: cd,
		})

		return &sexpNodeRef{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (scene "name" (place ...) (piece ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("scene", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("scene requires a name argument")
		}

		sceneName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("scene: name: %w", err)
		}
		if g.Lookup(sceneName) != nil {
			return zygo.SexpNull, fmt.Errorf("scene: %q is already defined", sceneName)
		}

		var children []graph.NodeID
		for i := 1; i < len(args); i++ {
			items := []zygo.Sexp{args[i]}
			if _, ok := args[i].(*sexpNodeRef); !ok {
				// Allow (list ...) of refs built by user code.
				if list, err := sexpListToSlice(args[i]); err == nil {
					items = list
				}
			}
			for _, item := range items {
				ref, ok := item.(*sexpNodeRef)
				if !ok {
					return zygo.SexpNull, fmt.Errorf("scene: child %d: expected node reference, got %T (%s)",
						i, item, item.SexpString(nil))
				}
				if n := g.Get(ref.id); n != nil && n.Kind == graph.NodeCut {
					// Cuts apply in script order; listing one in a scene is a no-op.
					continue
				}
				children = append(children, ref.id)
			}
		}

		id := graph.NewNodeID("scene/" + sceneName)
		g.AddNode(&graph.Node{
			ID:       id,
			Kind:     graph.NodeGroup,
			Name:     sceneName,
			Children: children,
			Data:     graph.GroupData{},
		})
		g.AddRoot(id)

		return &sexpNodeRef{id: id, name: sceneName}, nil
	})
}
