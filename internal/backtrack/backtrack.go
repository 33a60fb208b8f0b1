// Package backtrack implements the undoable mutation journal the engines
// use to support branch-and-bound search: a stack of CHECKPOINT markers and
// undoable WRITE_INT/ADD_EDGE/DEL_NODE/ADD_ROOT/DEL_ROOT items. When the
// stack is empty, mutations skip journaling entirely — an optimization for
// callers that never need to undo, not a correctness requirement.
package backtrack

import "github.com/go-axe/axe/internal/graph"

type itemTag int

const (
	tagCheckpoint itemTag = iota
	tagWriteInt
	tagAddEdge
	tagDelNode
	tagAddRoot
	tagDelRoot
)

type item struct {
	tag itemTag

	// WRITE_INT
	writeAddr *int
	writeOld  int

	// ADD_EDGE
	edgeGraph *graph.Graph
	edge      graph.Edge

	// DEL_NODE
	delGraph *graph.Graph
	delNode  graph.NodeID

	// ADD_ROOT / DEL_ROOT
	roots  *[]graph.NodeID
	rootID graph.NodeID
}

// Journal is the single-threaded undo stack. The zero value is ready to
// use.
type Journal struct {
	stack []item
}

func (j *Journal) live() bool { return len(j.stack) > 0 }

// WriteInt journals the old value of *addr (only if a checkpoint is live)
// then writes data through addr.
func (j *Journal) WriteInt(addr *int, data int) {
	if j.live() {
		j.stack = append(j.stack, item{tag: tagWriteInt, writeAddr: addr, writeOld: *addr})
	}
	*addr = data
}

// AddEdge journals the edge addition (if live) then adds it to g.
func (j *Journal) AddEdge(g *graph.Graph, e graph.Edge) {
	if j.live() {
		j.stack = append(j.stack, item{tag: tagAddEdge, edgeGraph: g, edge: e})
	}
	g.AddEdge(e.Src, e.Dst)
}

// DelNode journals the deletion (if live) then logically deletes id in g.
func (j *Journal) DelNode(g *graph.Graph, id graph.NodeID) {
	if j.live() {
		j.stack = append(j.stack, item{tag: tagDelNode, delGraph: g, delNode: id})
	}
	g.DelNode(id)
}

// AddRoot journals the addition (if live) then appends id to *roots.
func (j *Journal) AddRoot(roots *[]graph.NodeID, id graph.NodeID) {
	if j.live() {
		j.stack = append(j.stack, item{tag: tagAddRoot, roots: roots, rootID: id})
	}
	*roots = append(*roots, id)
}

// DelRoot journals the removal (if live) then removes the first occurrence
// of id from *roots.
func (j *Journal) DelRoot(roots *[]graph.NodeID, id graph.NodeID) {
	if j.live() {
		j.stack = append(j.stack, item{tag: tagDelRoot, roots: roots, rootID: id})
	}
	removeNode(roots, id)
}

// Checkpoint pushes a marker that Backtrack rewinds to.
func (j *Journal) Checkpoint() {
	j.stack = append(j.stack, item{tag: tagCheckpoint})
}

// Backtrack pops and undoes entries until (and consuming) the nearest
// CHECKPOINT. If no checkpoint exists on the stack, it drains the whole
// stack.
func (j *Journal) Backtrack() {
	for len(j.stack) > 0 {
		it := j.stack[len(j.stack)-1]
		j.stack = j.stack[:len(j.stack)-1]
		switch it.tag {
		case tagCheckpoint:
			return
		case tagWriteInt:
			*it.writeAddr = it.writeOld
		case tagAddEdge:
			it.edgeGraph.DelEdge(it.edge.Src, it.edge.Dst)
		case tagDelNode:
			it.delGraph.UndelNode(it.delNode)
		case tagAddRoot:
			removeNode(it.roots, it.rootID)
		case tagDelRoot:
			*it.roots = append(*it.roots, it.rootID)
		}
	}
}

func removeNode(s *[]graph.NodeID, id graph.NodeID) {
	for i, n := range *s {
		if n == id {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return
		}
	}
}
