// Package valorder implements the POW (partial order / weak) decision
// procedure: a per-address value-order graph plus an instruction
// operation-order graph, tied together by atomic (RMW) closures and
// synchronization edges, searched by the same consume/backtrack shape
// internal/engine uses for the other models.
package valorder

import (
	"github.com/go-axe/axe/internal/backtrack"
	"github.com/go-axe/axe/internal/edges"
	"github.com/go-axe/axe/internal/graph"
	"github.com/go-axe/axe/internal/instr"
	"github.com/go-axe/axe/internal/trace"
)

const sentinel = -2

// Options configures POW-specific checking behavior not present in the
// other models.
type Options struct {
	// GlobalClock, when set, additionally orders every pair of SYNCs on
	// different threads whose timestamps don't overlap.
	GlobalClock bool
}

// Engine holds the per-trace POW search state. A fresh Engine must be
// built for every trace.
type Engine struct {
	tr   *trace.Trace
	opts Options
	jr   backtrack.Journal

	valOrders []*graph.Graph // [addr]
	reach     []reachTable   // [addr] full reachability closure, rebuilt on demand

	atomicRtoW []map[int]int // [addr][r] -> w
	atomicWtoR []map[int]int // [addr][w] -> r

	opOrder      *graph.Graph   // over instruction uids
	localOpOrder []*graph.Graph // [tid], over all uids, holding only that thread's own local-order edges

	opRoots    []graph.NodeID
	localRoots [][]graph.NodeID // [tid], roots of localOpOrder[tid] that are thread tid's own uids

	consumedCount int
}

// reachTable is a full node->reachable-set closure over one address's
// value-order graph, rebuilt wholesale whenever an edge is added. D_a is
// small in practice (distinct values per address), so this trades a
// little recompute work for a much simpler implementation than an
// incremental componentwise-min summary.
type reachTable struct {
	sets []map[int]bool
}

func newReachTable(n int) reachTable {
	r := reachTable{sets: make([]map[int]bool, n)}
	for i := range r.sets {
		r.sets[i] = make(map[int]bool)
	}
	return r
}

// New builds a POW Engine for tr.
func New(tr *trace.Trace, opts Options) *Engine {
	e := &Engine{tr: tr, opts: opts}

	e.valOrders = make([]*graph.Graph, tr.NumAddrs)
	e.reach = make([]reachTable, tr.NumAddrs)
	e.atomicRtoW = make([]map[int]int, tr.NumAddrs)
	e.atomicWtoR = make([]map[int]int, tr.NumAddrs)
	for a := 0; a < tr.NumAddrs; a++ {
		e.valOrders[a] = graph.New(tr.NumData[a])
		e.atomicRtoW[a] = make(map[int]int)
		e.atomicWtoR[a] = make(map[int]int)
	}

	e.opOrder = graph.New(tr.NumInstrs)
	e.localOpOrder = make([]*graph.Graph, tr.NumThreads)
	for t := range e.localOpOrder {
		e.localOpOrder[t] = graph.New(tr.NumInstrs)
	}

	return e
}

// Check runs the full POW decision procedure.
func (e *Engine) Check() bool {
	if !e.addAtomicEdges() {
		return false
	}
	e.addLocalValueEdges()
	e.addCommEdges()
	e.addSyncEdges()
	if e.opts.GlobalClock {
		e.addGlobalClockEdges()
	}
	// addEdgeFast does not report the cycles it closes; reject here if any
	// address's value order has become cyclic.
	for a := 0; a < e.tr.NumAddrs; a++ {
		if !e.rebuildReach(a) {
			return false
		}
	}
	return e.search()
}

// addAtomicEdges walks every thread's RMWs in program order, rejecting
// the trace if two RMWs on the same address claim the same read value
// (not atomic with respect to each other) or if an RMW reads the
// address's mandated final value (nothing may legitimately follow it),
// then closes the per-address atomic (r<->w) chains.
func (e *Engine) addAtomicEdges() bool {
	prevVal := make([][]int, e.tr.NumThreads)
	for t := range prevVal {
		prevVal[t] = make([]int, e.tr.NumAddrs) // zero value = reserved initial value
	}

	for _, ids := range e.tr.Threads {
		for _, uid := range ids {
			in := e.tr.Instrs[uid]
			if !instr.HasAddr(in) {
				continue
			}
			a := in.Addr
			switch in.Op {
			case instr.LD:
				prevVal[in.TID][a] = in.ReadVal
			case instr.ST:
				prevVal[in.TID][a] = in.WriteVal
			case instr.RMW:
				r, w := in.ReadVal, in.WriteVal
				if _, claimed := e.atomicRtoW[a][r]; claimed {
					return false
				}
				if e.tr.FinalVals[a] == r {
					return false
				}
				prev := prevVal[in.TID][a]
				e.atomicRtoW[a][r] = w
				e.atomicWtoR[a][w] = r
				if prev != r {
					e.valOrders[a].AddEdge(graph.NodeID(prev), graph.NodeID(r))
				}
				e.valOrders[a].AddEdge(graph.NodeID(r), graph.NodeID(w))
				prevVal[in.TID][a] = w
			}
		}
	}

	for a := 0; a < e.tr.NumAddrs; a++ {
		if !e.rebuildReach(a) {
			return false
		}
	}
	e.closeAtomicChains()
	return true
}

// closeAtomicChains collapses each atomic RMW chain to its endpoints: the
// second loop iterates the chain-start ("R-root") values and uses readVal
// as the base for newWtoR, so a chain of back-to-back RMWs collapses to a
// single edge between its first read and its last write.
func (e *Engine) closeAtomicChains() {
	for a := 0; a < e.tr.NumAddrs; a++ {
		newRtoW := make(map[int]int, len(e.atomicRtoW[a]))
		for r := range e.atomicRtoW[a] {
			cur := r
			for {
				w, ok := e.atomicRtoW[a][cur]
				if !ok {
					break
				}
				cur = w
			}
			newRtoW[r] = cur
		}

		newWtoR := make(map[int]int, len(e.atomicWtoR[a]))
		for r, w := range e.atomicRtoW[a] {
			if _, isChained := e.atomicWtoR[a][r]; isChained {
				continue // r isn't a chain root; skip, handled from its root
			}
			cur := w
			for {
				next, ok := e.atomicRtoW[a][cur]
				if !ok {
					break
				}
				cur = next
			}
			newWtoR[cur] = r
		}

		e.atomicRtoW[a] = newRtoW
		e.atomicWtoR[a] = newWtoR
	}
}

// rewriteFrom and rewriteTo map v to the write (atomicRtoW) or read
// (atomicWtoR) endpoint its atomic chain collapses to.
func (e *Engine) rewriteFrom(a, v int) int {
	if w, ok := e.atomicRtoW[a][v]; ok {
		return w
	}
	return v
}

func (e *Engine) rewriteTo(a, v int) int {
	if r, ok := e.atomicWtoR[a][v]; ok {
		return r
	}
	return v
}

// addEdgeFast adds a value-order edge without backtracking support
// (unjournaled), rewriting endpoints through the atomic closures first.
// Collapsing to a self-loop, or to the address's mandated final value as
// the source, forces a later reachability check to fail instead of
// silently dropping the edge.
func (e *Engine) addEdgeFast(a, from, to int) {
	if from == to {
		return
	}
	if e.existsPath(a, from, to) {
		return
	}
	from = e.rewriteFrom(a, from)
	to = e.rewriteTo(a, to)
	if from == to {
		return
	}
	if e.tr.FinalVals[a] == from {
		e.valOrders[a].AddEdge(graph.NodeID(from), graph.NodeID(from))
		e.reach[a].sets[from][from] = true
		return
	}
	e.valOrders[a].AddEdge(graph.NodeID(from), graph.NodeID(to))
	e.rebuildReach(a)
}

// addEdge is addEdgeFast's backtrackable counterpart: it also refuses a
// reverse path, adds the edge through the journal so a cycle found
// downstream can be undone, and rebuilds reachability; search rebuilds
// the reachability tables again after every Backtrack.
func (e *Engine) addEdge(a, from, to int) bool {
	if from == to {
		return true
	}
	if e.existsPath(a, from, to) {
		return true
	}
	if e.existsPath(a, to, from) {
		return false
	}
	from = e.rewriteFrom(a, from)
	to = e.rewriteTo(a, to)
	if from == to {
		return true
	}
	if e.tr.FinalVals[a] == from {
		return false
	}
	e.jr.AddEdge(e.valOrders[a], graph.Edge{Src: graph.NodeID(from), Dst: graph.NodeID(to)})
	return e.rebuildReach(a)
}

// existsPath reports whether to is reachable from from in address a's
// value-order graph.
func (e *Engine) existsPath(a, from, to int) bool {
	return e.reach[a].sets[from][to]
}

// rebuildReach recomputes the full reachability closure for address a via
// reverse-topological propagation. Returns false if the graph is cyclic.
func (e *Engine) rebuildReach(a int) bool {
	g := e.valOrders[a]
	var order []graph.NodeID
	if !g.RevTopSort(&order) {
		return false
	}
	table := newReachTable(g.NumNodes())
	for _, nid := range order {
		n := int(nid)
		var succ []graph.NodeID
		g.Outgoing(nid, &succ)
		for _, s := range succ {
			table.sets[n][int(s)] = true
			for d := range table.sets[int(s)] {
				table.sets[n][d] = true
			}
		}
	}
	e.reach[a] = table
	return true
}

// addLocalValueEdges tracks, per thread and address, the previously
// observed value and links it to each subsequent load's or store's value,
// and folds localDep/localWMO's happens-before edges into opOrder and
// each thread's localOpOrder.
func (e *Engine) addLocalValueEdges() {
	prevVal := make([][]int, e.tr.NumThreads)
	for t := range prevVal {
		prevVal[t] = make([]int, e.tr.NumAddrs)
	}
	for _, ids := range e.tr.Threads {
		for _, uid := range ids {
			in := e.tr.Instrs[uid]
			if !instr.HasAddr(in) {
				continue
			}
			a := in.Addr
			switch in.Op {
			case instr.LD:
				e.addEdgeFast(a, prevVal[in.TID][a], in.ReadVal)
				prevVal[in.TID][a] = in.ReadVal
			case instr.ST:
				e.addEdgeFast(a, prevVal[in.TID][a], in.WriteVal)
				prevVal[in.TID][a] = in.WriteVal
			case instr.RMW:
				e.addEdgeFast(a, prevVal[in.TID][a], in.ReadVal)
				e.addEdgeFast(a, in.ReadVal, in.WriteVal)
				prevVal[in.TID][a] = in.WriteVal
			}
		}
	}

	for _, b := range []edges.Builder{edges.LocalDep, edges.LocalWMO} {
		for _, ed := range b(e.tr) {
			e.opOrder.AddEdge(ed.Src, ed.Dst)
			t := e.tr.Instrs[int(ed.Src)].TID
			e.localOpOrder[t].AddEdge(ed.Src, ed.Dst)
		}
	}
}

// addCommEdges orders every store before every load reading from it.
func (e *Engine) addCommEdges() {
	for uid := 0; uid < e.tr.NumInstrs; uid++ {
		store := e.tr.ReadsFrom[uid]
		if store == trace.NoInstr {
			continue
		}
		e.opOrder.AddEdge(graph.NodeID(store), graph.NodeID(uid))
	}
}

// addSyncEdges propagates, forward through opOrder, the latest SYNC each
// node has observed per thread, then orders the value each thread last
// saw before that SYNC against the value the other side will next see.
func (e *Engine) addSyncEdges() {
	var order []graph.NodeID
	if !e.opOrder.TopSort(&order) {
		return
	}

	n := e.tr.NumInstrs
	prevSyncs := make([][]int, n)
	for i := range prevSyncs {
		prevSyncs[i] = make([]int, e.tr.NumThreads)
		for t := range prevSyncs[i] {
			prevSyncs[i][t] = trace.NoInstr
		}
	}

	for _, nid := range order {
		node := int(nid)
		in := e.tr.Instrs[node]
		var succ []graph.NodeID
		e.opOrder.Outgoing(nid, &succ)
		for _, sid := range succ {
			s := int(sid)
			for t := 0; t < e.tr.NumThreads; t++ {
				if prevSyncs[node][t] > prevSyncs[s][t] {
					prevSyncs[s][t] = prevSyncs[node][t]
				}
			}
			if in.Op == instr.SYNC {
				prevSyncs[s][in.TID] = node
			}
		}
	}

	for node := 0; node < n; node++ {
		in := e.tr.Instrs[node]
		if in.Op != instr.SYNC {
			continue
		}
		for t := 0; t < e.tr.NumThreads; t++ {
			if prev := prevSyncs[node][t]; prev != trace.NoInstr {
				e.addEdgesFast(prev, node)
			}
		}
	}
	for node := 0; node < n; node++ {
		in := e.tr.Instrs[node]
		if in.Op != instr.LD && in.Op != instr.RMW {
			continue
		}
		next := e.tr.BeginAfter(node)
		if next == trace.NoInstr {
			continue
		}
		for t := 0; t < e.tr.NumThreads; t++ {
			if prev := prevSyncs[node][t]; prev != trace.NoInstr {
				e.addEdgesFast(prev, next)
			}
		}
	}
}

// addEdgesFast adds, for every address, a value-order edge from the value
// u had last seen to the value v will next see — the per-address
// instantiation of the u happens-before v relation.
func (e *Engine) addEdgesFast(u, v int) {
	for a := 0; a < e.tr.NumAddrs; a++ {
		if from, to, ok := e.seenValues(u, v, a); ok {
			e.addEdgeFast(a, from, to)
		}
	}
}

func (e *Engine) addEdges(u, v int) bool {
	for a := 0; a < e.tr.NumAddrs; a++ {
		from, to, ok := e.seenValues(u, v, a)
		if ok && !e.addEdge(a, from, to) {
			return false
		}
	}
	return true
}

// seenValues turns the store uids PrevSeen(u, a) and NextSeen(v, a) into
// the values those stores write: the initial value 0 when u's thread has
// no earlier store to a, and ok=false when v's thread has no later one.
func (e *Engine) seenValues(u, v, a int) (from, to int, ok bool) {
	next := e.tr.NextSeen(v, a)
	if next == trace.NoInstr {
		return 0, 0, false
	}
	if prev := e.tr.PrevSeen(u, a); prev != trace.NoInstr {
		from = e.tr.Instrs[prev].WriteVal
	}
	return from, e.tr.Instrs[next].WriteVal, true
}

// addGlobalClockEdges orders every pair of SYNCs on different threads
// whose timestamps don't overlap.
func (e *Engine) addGlobalClockEdges() {
	var syncs []int
	for uid, in := range e.tr.Instrs {
		if in.Op == instr.SYNC {
			syncs = append(syncs, uid)
		}
	}
	for _, s1 := range syncs {
		i1 := e.tr.Instrs[s1]
		if i1.EndTime == instr.NoTime {
			continue
		}
		for _, s2 := range syncs {
			i2 := e.tr.Instrs[s2]
			if i1.TID == i2.TID || i2.BeginTime == instr.NoTime {
				continue
			}
			if i1.EndTime < i2.BeginTime {
				e.opOrder.AddEdge(graph.NodeID(s1), graph.NodeID(s2))
			}
		}
	}
}

// edgesExist reports whether node n already has a direct opOrder edge to
// dst, or dst is NoInstr (used by consumeSyncs to decide a SYNC is already
// safely ordered).
func (e *Engine) edgesExist(n, dst int) bool {
	if dst == trace.NoInstr {
		return true
	}
	var order []graph.NodeID
	e.opOrder.Outgoing(graph.NodeID(n), &order)
	for _, s := range order {
		if int(s) == dst {
			return true
		}
	}
	return e.opOrder.HasEdge(graph.NodeID(n), graph.NodeID(dst))
}

// requiredSyncFanout reports whether n (a SYNC) already has, or has been
// given, every edge consumeSyncs' fan-out requires against thread t's
// current local-order root.
func (e *Engine) requiredSyncFanout(n, t int) (need []int, ok bool) {
	for _, root := range e.localRoots[t] {
		dst := int(root)
		din := e.tr.Instrs[dst]
		if din.Op == instr.SYNC {
			if !e.edgesExist(n, dst) {
				need = append(need, dst)
			}
		} else if din.Op == instr.LD || din.Op == instr.RMW {
			ba := e.tr.BeginAfter(dst)
			ns := e.tr.NextSync[dst]
			if !e.edgesExist(n, ba) || !e.edgesExist(n, ns) {
				need = append(need, dst)
			}
		}
	}
	return need, len(need) == 0
}

func (e *Engine) search() bool {
	n := e.tr.NumInstrs

	e.opRoots = nil
	e.opOrder.Roots(&e.opRoots)
	e.localRoots = make([][]graph.NodeID, e.tr.NumThreads)
	for t := range e.localRoots {
		var roots []graph.NodeID
		e.localOpOrder[t].Roots(&roots)
		for _, r := range roots {
			if e.tr.Instrs[int(r)].TID == t {
				e.localRoots[t] = append(e.localRoots[t], r)
			}
		}
	}
	backtrack := func() {
		e.jr.Backtrack()
		for a := range e.reach {
			e.rebuildReach(a)
		}
	}

	e.consume()
	e.consumeSyncs()
	if e.consumedCount == n {
		return true
	}

	var stack []int
	for _, r := range e.syncRoots() {
		stack = append(stack, int(r))
	}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node == sentinel {
			backtrack()
			continue
		}

		e.jr.Checkpoint()
		cycle := false
		in := e.tr.Instrs[node]
		for t := 0; t < e.tr.NumThreads; t++ {
			if t == in.TID {
				continue
			}
			need, _ := e.requiredSyncFanout(node, t)
			for _, dst := range need {
				if !e.addEdges(node, dst) {
					cycle = true
					break
				}
			}
			if cycle {
				break
			}
		}
		if cycle {
			backtrack()
			continue
		}

		e.deleteOpNode(node)
		e.consume()
		e.consumeSyncs()
		if e.consumedCount == n {
			return true
		}

		stack = append(stack, sentinel)
		for _, r := range e.syncRoots() {
			stack = append(stack, int(r))
		}
	}

	return e.consumedCount == n
}

func (e *Engine) syncRoots() []graph.NodeID {
	var out []graph.NodeID
	for _, r := range e.opRoots {
		if e.tr.Instrs[int(r)].Op == instr.SYNC {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) deleteOpNode(node int) {
	id := graph.NodeID(node)
	e.jr.DelNode(e.opOrder, id)
	e.jr.DelRoot(&e.opRoots, id)
	t := e.tr.Instrs[node].TID
	e.jr.DelNode(e.localOpOrder[t], id)
	e.jr.DelRoot(&e.localRoots[t], id)
	e.jr.WriteInt(&e.consumedCount, e.consumedCount+1)

	var succ []graph.NodeID
	e.opOrder.Outgoing(id, &succ)
	for _, s := range succ {
		var preds []graph.NodeID
		e.opOrder.Incoming(s, &preds)
		if len(preds) == 0 {
			e.jr.AddRoot(&e.opRoots, s)
		}
	}
	var lsucc []graph.NodeID
	e.localOpOrder[t].Outgoing(id, &lsucc)
	for _, s := range lsucc {
		var preds []graph.NodeID
		e.localOpOrder[t].Incoming(s, &preds)
		if len(preds) == 0 {
			e.jr.AddRoot(&e.localRoots[t], s)
		}
	}
}

// consume deletes any root that is a plain LD/RMW/ST (never a SYNC —
// those need consumeSyncs' extra fan-out check).
func (e *Engine) consume() {
	for {
		victim := trace.NoInstr
		for _, r := range e.opRoots {
			if e.tr.Instrs[int(r)].Op != instr.SYNC {
				victim = int(r)
				break
			}
		}
		if victim == trace.NoInstr {
			return
		}
		e.deleteOpNode(victim)
	}
}

// consumeSyncs deletes a SYNC root only when every other thread's current
// local-order root already has the value-order edges that SYNC would add
// anyway, so deleting it deterministically cannot foreclose a choice.
func (e *Engine) consumeSyncs() {
	for {
		victim := trace.NoInstr
		for _, r := range e.opRoots {
			node := int(r)
			if e.tr.Instrs[node].Op != instr.SYNC {
				continue
			}
			allSatisfied := true
			for t := 0; t < e.tr.NumThreads; t++ {
				if t == e.tr.Instrs[node].TID {
					continue
				}
				if _, ok := e.requiredSyncFanout(node, t); !ok {
					allSatisfied = false
					break
				}
			}
			if allSatisfied {
				victim = node
				break
			}
		}
		if victim == trace.NoInstr {
			return
		}
		e.deleteOpNode(victim)
		e.consume()
	}
}
