// Package engine implements the SC/TSO/PSO/WMO happens-before search:
// build local+inter-thread edges (internal/edges), infer their closure
// under per-(thread,address) reachability summaries, then search for a
// total extension by repeatedly consuming safe roots and, for stores,
// forcing every thread's next same-address store to happen after any load
// that already observed it.
package engine

import (
	"github.com/go-axe/axe/internal/backtrack"
	"github.com/go-axe/axe/internal/edges"
	"github.com/go-axe/axe/internal/graph"
	"github.com/go-axe/axe/internal/instr"
	"github.com/go-axe/axe/internal/trace"
)

// sentinel marks a DFS-stack entry that asks the search to backtrack to
// the nearest checkpoint, rather than naming a node.
const sentinel = -2

// Engine holds the per-trace search state for SC/TSO/PSO/WMO. A fresh
// Engine must be built for every trace; it carries no state shared across
// traces.
type Engine struct {
	tr *trace.Trace
	g  *graph.Graph
	jr backtrack.Journal

	numAddrs   int
	numThreads int

	nextLoad  [][]int // [node][tid*numAddrs+addr]
	nextStore [][]int

	roots     []graph.NodeID
	lastStore []int // [tid*numAddrs+addr] -> uid of last globally-ordered store, or NoInstr
	consumed  int   // count of nodes deleteNode has removed, journaled so Backtrack rewinds it
}

// New builds an Engine for tr under the named local-order model ("SC",
// "TSO", "PSO", or "WMO" — POW is internal/valorder's concern).
func New(tr *trace.Trace, model string) *Engine {
	n := tr.NumInstrs
	g := graph.New(n)
	for _, b := range edges.BuildersFor(model) {
		for _, e := range b(tr) {
			g.AddEdge(e.Src, e.Dst)
		}
	}

	e := &Engine{
		tr:         tr,
		g:          g,
		numAddrs:   tr.NumAddrs,
		numThreads: tr.NumThreads,
	}
	e.nextLoad = make([][]int, n)
	e.nextStore = make([][]int, n)
	for i := range e.nextLoad {
		e.nextLoad[i] = make([]int, tr.NumThreads*tr.NumAddrs)
		e.nextStore[i] = make([]int, tr.NumThreads*tr.NumAddrs)
	}
	e.lastStore = make([]int, tr.NumThreads*tr.NumAddrs)
	for i := range e.lastStore {
		e.lastStore[i] = trace.NoInstr
	}
	return e
}

func (e *Engine) idx(tid, addr int) int { return tid*e.numAddrs + addr }

// Check runs the full decision procedure: computeNext, inferEdges, then
// the backtracking search. Reports whether the trace is admitted by the
// model this Engine was built for.
func (e *Engine) Check() bool {
	if !e.computeNext() {
		return false
	}
	if !e.inferEdges() {
		return false
	}
	return e.search()
}

// computeNext fills nextLoad/nextStore with, for every node p and every
// (thread,address), the nearest reachable load/store on that thread at
// that address — or the sentinel NumInstrs if none is reachable. Returns
// false if the graph built so far is already cyclic.
func (e *Engine) computeNext() bool {
	n := e.tr.NumInstrs
	for i := 0; i < n; i++ {
		for k := range e.nextLoad[i] {
			e.nextLoad[i][k] = n
			e.nextStore[i][k] = n
		}
	}

	var order []graph.NodeID
	if !e.g.RevTopSort(&order) {
		return false
	}

	for _, nid := range order {
		node := int(nid)
		nin := e.tr.Instrs[node]

		var preds []graph.NodeID
		e.g.Incoming(nid, &preds)
		for _, pid := range preds {
			p := int(pid)
			if nin.Op == instr.LD || nin.Op == instr.RMW {
				k := e.idx(nin.TID, nin.Addr)
				if node < e.nextLoad[p][k] {
					e.nextLoad[p][k] = node
				}
			}
			if nin.Op == instr.ST || nin.Op == instr.RMW {
				k := e.idx(nin.TID, nin.Addr)
				if node < e.nextStore[p][k] {
					e.nextStore[p][k] = node
				}
			}
			for k := range e.nextLoad[node] {
				if e.nextLoad[node][k] < e.nextLoad[p][k] {
					e.nextLoad[p][k] = e.nextLoad[node][k]
				}
				if e.nextStore[node][k] < e.nextStore[p][k] {
					e.nextStore[p][k] = e.nextStore[node][k]
				}
			}
		}
	}
	return true
}

// existsPath reports whether src can reach dst (a store) through edges
// already known, via the next-summary table.
func (e *Engine) existsPath(src, dst int) bool {
	din := e.tr.Instrs[dst]
	k := e.idx(din.TID, din.Addr)
	return e.nextStore[src][k] <= dst
}

// inferFrom computes the edges forced by src (a store) being ordered
// where it currently is, given the next-summary table: every load that
// reads from src must precede the store that would otherwise land between
// src and the load on each thread, and src itself must precede whatever
// store follows a load it's known to reach.
func (e *Engine) inferFrom(src int, out *[]graph.Edge) {
	sin := e.tr.Instrs[src]
	if sin.Op != instr.ST && sin.Op != instr.RMW {
		return
	}
	n := e.tr.NumInstrs

	for t := 0; t < e.numThreads; t++ {
		k := e.idx(t, sin.Addr)

		if store := e.nextStore[src][k]; store < n {
			for _, load := range e.tr.ReadsFromInv[src] {
				if load != store && !e.existsPath(load, store) {
					*out = append(*out, graph.Edge{Src: graph.NodeID(load), Dst: graph.NodeID(store)})
				}
			}
		}

		if load := e.nextLoad[src][k]; load < n {
			cur := load
			for cur != trace.NoInstr && e.tr.ReadsFrom[cur] == src {
				cur = e.tr.NextLocalLoad[cur]
			}
			if cur != trace.NoInstr {
				if s := e.tr.ReadsFrom[cur]; s != trace.NoInstr && s != src && !e.existsPath(src, s) {
					*out = append(*out, graph.Edge{Src: graph.NodeID(src), Dst: graph.NodeID(s)})
				}
			}
		}
	}
}

// AddEdge adds ed (and any edges it forces through inferFrom), draining
// the induced queue until it's empty or a cycle is found.
func (e *Engine) AddEdge(ed graph.Edge) bool {
	queue := []graph.Edge{ed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		var inferred []graph.Edge
		if !e.addEdgeHelper(cur, &inferred) {
			return false
		}
		queue = append(queue, inferred...)
	}
	return true
}

// addEdgeHelper adds a single edge, seeds and propagates the next-summary
// table along it, and collects any edges inferFrom forces as a side
// effect of the nodes it touches. Returns false if adding the edge closes
// a cycle (src becomes reachable from dst).
func (e *Engine) addEdgeHelper(ed graph.Edge, inferred *[]graph.Edge) bool {
	if e.g.HasEdge(ed.Src, ed.Dst) {
		return true
	}
	src, dst := int(ed.Src), int(ed.Dst)
	e.jr.AddEdge(e.g, ed)

	din := e.tr.Instrs[dst]
	if din.Op == instr.LD || din.Op == instr.RMW {
		k := e.idx(din.TID, din.Addr)
		if dst < e.nextLoad[src][k] {
			e.jr.WriteInt(&e.nextLoad[src][k], dst)
		}
	}
	if din.Op == instr.ST || din.Op == instr.RMW {
		k := e.idx(din.TID, din.Addr)
		if dst < e.nextStore[src][k] {
			e.jr.WriteInt(&e.nextStore[src][k], dst)
		}
	}
	for k := range e.nextLoad[dst] {
		if e.nextLoad[dst][k] < e.nextLoad[src][k] {
			e.jr.WriteInt(&e.nextLoad[src][k], e.nextLoad[dst][k])
		}
		if e.nextStore[dst][k] < e.nextStore[src][k] {
			e.jr.WriteInt(&e.nextStore[src][k], e.nextStore[dst][k])
		}
	}

	worklist := []int{src}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		e.inferFrom(n, inferred)
		if n == dst {
			return false
		}

		var preds []graph.NodeID
		e.g.Incoming(graph.NodeID(n), &preds)
		for _, pid := range preds {
			p := int(pid)
			changed := false
			for k := range e.nextLoad[n] {
				if e.nextLoad[n][k] < e.nextLoad[p][k] {
					e.jr.WriteInt(&e.nextLoad[p][k], e.nextLoad[n][k])
					changed = true
				}
				if e.nextStore[n][k] < e.nextStore[p][k] {
					e.jr.WriteInt(&e.nextStore[p][k], e.nextStore[n][k])
					changed = true
				}
			}
			if changed {
				worklist = append(worklist, p)
			}
		}
	}
	return true
}

// inferEdges seeds the graph once, before search begins, with every edge
// every store's inferFrom forces.
func (e *Engine) inferEdges() bool {
	for uid := 0; uid < e.tr.NumInstrs; uid++ {
		in := e.tr.Instrs[uid]
		if in.Op != instr.ST && in.Op != instr.RMW {
			continue
		}
		var inferred []graph.Edge
		e.inferFrom(uid, &inferred)
		for _, ed := range inferred {
			if !e.AddEdge(ed) {
				return false
			}
		}
	}
	return true
}

// search performs a backtracking DFS over root deletions: repeatedly
// delete a safe root, and for stores force every thread's next
// same-address store to follow any load that already reads the one being
// superseded.
func (e *Engine) search() bool {
	n := e.tr.NumInstrs

	var roots []graph.NodeID
	e.g.Roots(&roots)
	e.roots = roots
	e.consume()
	if e.consumed == n {
		return true
	}

	stack := make([]int, 0, len(e.roots))
	for _, r := range e.roots {
		stack = append(stack, int(r))
	}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node == sentinel {
			e.jr.Backtrack()
			continue
		}

		e.jr.Checkpoint()
		e.deleteNode(node)

		in := e.tr.Instrs[node]
		if in.Op == instr.ST || in.Op == instr.RMW {
			if !e.performStore(in.Addr) {
				e.jr.Backtrack()
				continue
			}
		}

		e.dropRootsWithIncoming()
		e.consume()
		if e.consumed == n {
			return true
		}

		stack = append(stack, sentinel)
		for _, r := range e.roots {
			stack = append(stack, int(r))
		}
	}

	return e.consumed == n
}

// deleteNode logically removes node from the graph and the tracked root
// list, records it as the newest globally-ordered store if it is one, and
// promotes any successor that thereby lost its last predecessor to a
// root.
func (e *Engine) deleteNode(node int) {
	id := graph.NodeID(node)
	e.jr.DelNode(e.g, id)
	e.jr.DelRoot(&e.roots, id)
	e.jr.WriteInt(&e.consumed, e.consumed+1)

	in := e.tr.Instrs[node]
	if in.Op == instr.ST || in.Op == instr.RMW {
		k := e.idx(in.TID, in.Addr)
		e.jr.WriteInt(&e.lastStore[k], node)
	}

	var succ []graph.NodeID
	e.g.Outgoing(id, &succ)
	for _, s := range succ {
		var preds []graph.NodeID
		e.g.Incoming(s, &preds)
		if len(preds) == 0 {
			e.jr.AddRoot(&e.roots, s)
		}
	}
}

// performStore forces, for every thread, the store that would next
// continue that thread's chain to addr to follow any still-present load
// reading from it. Returns false if doing so closes a cycle.
func (e *Engine) performStore(addr int) bool {
	for t := 0; t < e.numThreads; t++ {
		k := e.idx(t, addr)
		last := e.lastStore[k]
		var candidate int
		if last == trace.NoInstr {
			candidate = e.tr.FirstStore[addr][t]
		} else {
			candidate = e.tr.NextLocalStore[last]
		}
		if candidate == trace.NoInstr {
			continue
		}
		for _, load := range e.tr.ReadsFromInv[candidate] {
			if load == candidate || !e.g.Present(graph.NodeID(load)) {
				continue
			}
			if !e.AddEdge(graph.Edge{Src: graph.NodeID(load), Dst: graph.NodeID(candidate)}) {
				return false
			}
		}
	}
	return true
}

// dropRootsWithIncoming removes any tracked root that acquired a present
// predecessor as a side effect of edges performStore just added.
func (e *Engine) dropRootsWithIncoming() {
	snapshot := append([]graph.NodeID(nil), e.roots...)
	for _, r := range snapshot {
		var preds []graph.NodeID
		e.g.Incoming(r, &preds)
		if len(preds) != 0 {
			e.jr.DelRoot(&e.roots, r)
		}
	}
}

// consume deletes roots that are unconditionally safe to order next: a
// load, a sync, or a store nothing present still reads from. Repeats
// until no such root remains.
func (e *Engine) consume() {
	for {
		victim := trace.NoInstr
		for _, r := range e.roots {
			in := e.tr.Instrs[int(r)]
			switch in.Op {
			case instr.LD, instr.SYNC, instr.NOP:
				victim = int(r)
			case instr.ST, instr.RMW:
				safe := true
				for _, load := range e.tr.ReadsFromInv[int(r)] {
					if e.g.Present(graph.NodeID(load)) {
						safe = false
						break
					}
				}
				if safe {
					victim = int(r)
				}
			}
			if victim != trace.NoInstr {
				break
			}
		}
		if victim == trace.NoInstr {
			return
		}
		e.deleteNode(victim)
	}
}
