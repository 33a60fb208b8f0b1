// Package graph implements the directed multigraph the engines build their
// happens-before and value-order relations on top of: dense integer node
// ids, per-node incoming/outgoing adjacency, a logical-delete "present"
// flag, and topological sort. Node deletion never touches adjacency lists —
// only the present flag changes — so that the backtrack journal can undo a
// delete in O(1).
package graph

import "github.com/go-axe/axe/pkg/collections"

// NodeID is a dense node identifier in [0, N).
type NodeID int

// Edge is a directed edge between two node ids.
type Edge struct {
	Src, Dst NodeID
}

// Graph is a directed multigraph over [0, N) node ids.
type Graph struct {
	numNodes int
	in       []*adjSet
	out      []*adjSet
	present  *collections.Bitset
}

// adjSet is a small ordered set of neighbor ids; duplicates are rejected by
// AddEdge before insertion, so membership never needs dedup on read.
type adjSet struct {
	nodes []NodeID
}

func (a *adjSet) has(n NodeID) bool {
	for _, x := range a.nodes {
		if x == n {
			return true
		}
	}
	return false
}

func (a *adjSet) add(n NodeID) {
	if !a.has(n) {
		a.nodes = append(a.nodes, n)
	}
}

func (a *adjSet) remove(n NodeID) {
	for i, x := range a.nodes {
		if x == n {
			a.nodes = append(a.nodes[:i], a.nodes[i+1:]...)
			return
		}
	}
}

// New creates a graph with numNodes nodes, all present, no edges.
func New(numNodes int) *Graph {
	g := &Graph{
		numNodes: numNodes,
		in:       make([]*adjSet, numNodes),
		out:      make([]*adjSet, numNodes),
		present:  collections.NewBitset(numNodes),
	}
	for i := 0; i < numNodes; i++ {
		g.in[i] = &adjSet{}
		g.out[i] = &adjSet{}
		g.present.Set(i)
	}
	return g
}

// NumNodes returns the number of nodes the graph was created with.
func (g *Graph) NumNodes() int { return g.numNodes }

// Present reports whether node n is currently present (not logically
// deleted).
func (g *Graph) Present(n NodeID) bool { return g.present.Test(int(n)) }

// AddEdge adds src->dst. Idempotent: adding an already-present edge is a
// no-op.
func (g *Graph) AddEdge(src, dst NodeID) {
	g.out[src].add(dst)
	g.in[dst].add(src)
}

// HasEdge reports whether src->dst exists, regardless of present flags.
func (g *Graph) HasEdge(src, dst NodeID) bool {
	return g.out[src].has(dst)
}

// DelEdge removes src->dst if present.
func (g *Graph) DelEdge(src, dst NodeID) {
	g.out[src].remove(dst)
	g.in[dst].remove(src)
}

// DelNode logically deletes node: edges stay recorded but Incoming/Outgoing
// filter it out by Present.
func (g *Graph) DelNode(node NodeID) {
	g.present.Clear(int(node))
}

// UndelNode restores a logically-deleted node.
func (g *Graph) UndelNode(node NodeID) {
	g.present.Set(int(node))
}

// Incoming appends node's present predecessors to out.
func (g *Graph) Incoming(node NodeID, out *[]NodeID) {
	for _, p := range g.in[node].nodes {
		if g.Present(p) {
			*out = append(*out, p)
		}
	}
}

// Outgoing appends node's present successors to out.
func (g *Graph) Outgoing(node NodeID, out *[]NodeID) {
	for _, s := range g.out[node].nodes {
		if g.Present(s) {
			*out = append(*out, s)
		}
	}
}

// Roots appends the present nodes with no present predecessor to out.
func (g *Graph) Roots(out *[]NodeID) {
	for n := 0; n < g.numNodes; n++ {
		id := NodeID(n)
		if !g.Present(id) {
			continue
		}
		hasPred := false
		for _, p := range g.in[id].nodes {
			if g.Present(p) {
				hasPred = true
				break
			}
		}
		if !hasPred {
			*out = append(*out, id)
		}
	}
}

// TopSort computes a topological order of the present nodes via Kahn's
// algorithm, appending it to out. Returns false iff a cycle exists among
// present nodes. Present flags are restored to their original state before
// returning, regardless of outcome — TopSort is a pure query.
func (g *Graph) TopSort(out *[]NodeID) bool {
	var order []NodeID
	var frontier []NodeID
	g.Roots(&frontier)

	removed := make([]NodeID, 0, g.numNodes)
	for len(frontier) > 0 {
		n := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]

		order = append(order, n)
		g.present.Clear(int(n))
		removed = append(removed, n)

		var succ []NodeID
		g.Outgoing(n, &succ)
		for _, s := range succ {
			hasPred := false
			for _, p := range g.in[s].nodes {
				if g.Present(p) {
					hasPred = true
					break
				}
			}
			if !hasPred {
				frontier = append(frontier, s)
			}
		}
	}

	for _, n := range removed {
		g.present.Set(int(n))
	}

	ok := true
	for n := 0; n < g.numNodes; n++ {
		if g.Present(NodeID(n)) {
			found := false
			for _, o := range order {
				if o == NodeID(n) {
					found = true
					break
				}
			}
			if !found {
				ok = false
				break
			}
		}
	}
	if !ok {
		return false
	}
	*out = append(*out, order...)
	return true
}

// RevTopSort computes a topological order of the reverse graph (a
// reverse-topological order of g), appending it to out.
func (g *Graph) RevTopSort(out *[]NodeID) bool {
	inv := g.inverted()
	return inv.TopSort(out)
}

// inverted returns a new graph with edges reversed, sharing no state with
// g. Present flags are copied.
func (g *Graph) inverted() *Graph {
	inv := New(g.numNodes)
	inv.present = g.present.Clone()
	for n := 0; n < g.numNodes; n++ {
		for _, s := range g.out[n].nodes {
			inv.AddEdge(s, NodeID(n))
		}
	}
	return inv
}
