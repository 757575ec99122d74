package graph

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// SceneGraph is the top-level immutable data structure produced by script
// evaluation. It is never mutated in place; each evaluation produces a new
// graph.
type SceneGraph struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	CutOrder  []NodeID          `json:"cut_order"`
	Version   uint64            `json:"version"`
}

// New creates an empty SceneGraph.
func New() *SceneGraph {
	return &SceneGraph{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
	}
}

// AddNode adds a node to the graph. It does not check for duplicates.
// Cut nodes are also appended to CutOrder.
func (g *SceneGraph) AddNode(n *Node) {
	if _, exists := g.Nodes[n.ID]; !exists && n.Kind == NodeCut {
		g.CutOrder = append(g.CutOrder, n.ID)
	}
	g.Nodes[n.ID] = n
	if n.Name != "" {
		g.NameIndex[n.Name] = n.ID
	}
}

// AddRoot registers a node ID as a root of the graph.
func (g *SceneGraph) AddRoot(id NodeID) {
	g.Roots = append(g.Roots, id)
}

// Lookup returns the node with the given user-assigned name, or nil.
func (g *SceneGraph) Lookup(name string) *Node {
	id, ok := g.NameIndex[name]
	if !ok {
		return nil
	}
	return g.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (g *SceneGraph) MustLookup(name string) *Node {
	n := g.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (g *SceneGraph) Get(id NodeID) *Node {
	return g.Nodes[id]
}

// Pieces returns all primitive nodes sorted by name, then ID.
func (g *SceneGraph) Pieces() []*Node {
	pieces := lo.Filter(lo.Values(g.Nodes), func(n *Node, _ int) bool {
		return n.Kind == NodePrimitive
	})
	sort.Slice(pieces, func(i, j int) bool {
		if pieces[i].Name != pieces[j].Name {
			return pieces[i].Name < pieces[j].Name
		}
		return pieces[i].ID < pieces[j].ID
	})
	return pieces
}

// Cuts returns all cut nodes in script order.
func (g *SceneGraph) Cuts() []*Node {
	return lo.FilterMap(g.CutOrder, func(id NodeID, _ int) (*Node, bool) {
		n := g.Nodes[id]
		return n, n != nil
	})
}

// CutsFor returns the cut nodes targeting piece, in script order.
func (g *SceneGraph) CutsFor(piece NodeID) []*Node {
	return lo.Filter(g.Cuts(), func(n *Node, _ int) bool {
		cd, ok := n.Data.(CutData)
		return ok && cd.Target == piece
	})
}

// Children returns the child nodes of the given node.
func (g *SceneGraph) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := g.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// NodeCount returns the total number of nodes.
func (g *SceneGraph) NodeCount() int {
	return len(g.Nodes)
}
