// Package edges builds the directed happens-before edges each consistency
// model's analysis starts from out of a canonicalized trace. Each builder
// here is pure (it only reads the trace) and returns the edges it would
// add, leaving graph mutation and journaling to internal/engine.
package edges

import (
	"github.com/go-axe/axe/internal/graph"
	"github.com/go-axe/axe/internal/instr"
	"github.com/go-axe/axe/internal/trace"
)

// Builder computes the edges one model-specific local-order rule
// contributes for a trace.
type Builder func(tr *trace.Trace) []graph.Edge

func edge(uid, vid int) graph.Edge {
	return graph.Edge{Src: graph.NodeID(uid), Dst: graph.NodeID(vid)}
}

// LocalSC chains every pair of adjacent same-thread instructions in
// program order.
func LocalSC(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for _, ids := range tr.Threads {
		for i := 1; i < len(ids); i++ {
			out = append(out, edge(ids[i-1], ids[i]))
		}
	}
	return out
}

// LocalTSO allows a load to be reordered ahead of an earlier store (to a
// different address or not) but keeps load/load, load/store, store/store,
// and sync-adjacent order.
func LocalTSO(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for _, ids := range tr.Threads {
		prevLD, prevST, prevSync := trace.NoInstr, trace.NoInstr, trace.NoInstr
		for _, uid := range ids {
			in := tr.Instrs[uid]
			switch in.Op {
			case instr.LD:
				if prevLD != trace.NoInstr {
					out = append(out, edge(prevLD, uid))
				} else if prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevLD = uid
			case instr.RMW:
				if prevLD != trace.NoInstr {
					out = append(out, edge(prevLD, uid))
				} else if prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				if prevST != trace.NoInstr {
					out = append(out, edge(prevST, uid))
				}
				prevLD, prevST = uid, uid
			case instr.ST:
				if prevST != trace.NoInstr {
					out = append(out, edge(prevST, uid))
				}
				if prevLD != trace.NoInstr {
					if prevLD != prevST {
						out = append(out, edge(prevLD, uid))
					}
				} else if prevST == trace.NoInstr && prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevST = uid
			case instr.SYNC:
				if prevLD != trace.NoInstr {
					out = append(out, edge(prevLD, uid))
				}
				if prevST != trace.NoInstr && prevST != prevLD {
					out = append(out, edge(prevST, uid))
				}
				if prevLD == trace.NoInstr && prevST == trace.NoInstr && prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevSync = uid
				prevLD, prevST = trace.NoInstr, trace.NoInstr
			}
		}
	}
	return out
}

// LocalPSO is LocalTSO with store-to-store order tracked per address
// instead of globally: stores to different addresses may be reordered.
func LocalPSO(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for _, ids := range tr.Threads {
		prevLD, prevSync := trace.NoInstr, trace.NoInstr
		prevST := fillInstr(tr.NumAddrs)
		for _, uid := range ids {
			in := tr.Instrs[uid]
			switch in.Op {
			case instr.LD:
				if prevLD != trace.NoInstr {
					out = append(out, edge(prevLD, uid))
				} else if prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevLD = uid
			case instr.RMW:
				a := in.Addr
				if prevLD != trace.NoInstr {
					out = append(out, edge(prevLD, uid))
				} else if prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				if prevST[a] != trace.NoInstr {
					out = append(out, edge(prevST[a], uid))
				}
				prevLD, prevST[a] = uid, uid
			case instr.ST:
				a := in.Addr
				if prevST[a] != trace.NoInstr {
					out = append(out, edge(prevST[a], uid))
				}
				if prevLD != trace.NoInstr {
					if prevLD != prevST[a] {
						out = append(out, edge(prevLD, uid))
					}
				} else if prevST[a] == trace.NoInstr && prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevST[a] = uid
			case instr.SYNC:
				if prevLD != trace.NoInstr {
					out = append(out, edge(prevLD, uid))
				}
				anyStore := false
				for a, s := range prevST {
					if s == trace.NoInstr {
						continue
					}
					anyStore = true
					if s != prevLD {
						out = append(out, edge(s, uid))
					}
					prevST[a] = trace.NoInstr
				}
				if prevLD == trace.NoInstr && !anyStore && prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevSync = uid
				prevLD = trace.NoInstr
			}
		}
	}
	return out
}

// LocalWMO tracks both loads and stores per address: only same-address
// program order and SYNC-adjacency survive.
func LocalWMO(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for _, ids := range tr.Threads {
		prevSync := trace.NoInstr
		prevLD := fillInstr(tr.NumAddrs)
		prevST := fillInstr(tr.NumAddrs)
		for _, uid := range ids {
			in := tr.Instrs[uid]
			a := in.Addr
			switch in.Op {
			case instr.LD:
				if prevLD[a] != trace.NoInstr {
					out = append(out, edge(prevLD[a], uid))
				} else if prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevLD[a] = uid
			case instr.RMW:
				if prevLD[a] != trace.NoInstr {
					out = append(out, edge(prevLD[a], uid))
				} else if prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				if prevST[a] != trace.NoInstr {
					out = append(out, edge(prevST[a], uid))
				}
				prevLD[a], prevST[a] = uid, uid
			case instr.ST:
				if prevST[a] != trace.NoInstr {
					out = append(out, edge(prevST[a], uid))
				}
				if prevLD[a] != trace.NoInstr {
					if prevLD[a] != prevST[a] {
						out = append(out, edge(prevLD[a], uid))
					}
				} else if prevST[a] == trace.NoInstr && prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevST[a] = uid
			case instr.SYNC:
				any := false
				for b := 0; b < tr.NumAddrs; b++ {
					if prevLD[b] != trace.NoInstr {
						out = append(out, edge(prevLD[b], uid))
						any = true
					}
					if prevST[b] != trace.NoInstr && prevST[b] != prevLD[b] {
						out = append(out, edge(prevST[b], uid))
						any = true
					}
					prevLD[b], prevST[b] = trace.NoInstr, trace.NoInstr
				}
				if !any && prevSync != trace.NoInstr {
					out = append(out, edge(prevSync, uid))
				}
				prevSync = uid
			}
		}
	}
	return out
}

// LocalDep orders same-thread instructions by timestamp: op B must follow
// op A if A is known to have finished (by timestamp) before B began. SYNCs
// carry no timestamps relevant here and are excluded.
func LocalDep(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for _, ids := range tr.Threads {
		var inFlight, finished []int
		for _, uid := range ids {
			in := tr.Instrs[uid]
			if in.Op == instr.SYNC {
				continue
			}

			var stillInFlight []int
			for _, f := range inFlight {
				fin := tr.Instrs[f]
				if in.BeginTime != instr.NoTime && fin.EndTime != instr.NoTime && in.BeginTime > fin.EndTime {
					finished = append(finished, f)
				} else {
					stillInFlight = append(stillInFlight, f)
				}
			}
			inFlight = stillInFlight

			for _, f := range finished {
				fin := tr.Instrs[f]
				if fin.EndTime != instr.NoTime && in.BeginTime != instr.NoTime && fin.EndTime < in.BeginTime {
					out = append(out, edge(f, uid))
				}
			}
			inFlight = append(inFlight, uid)
		}
	}
	return out
}

// Inter links each cross-thread reads-from pair: the store happens before
// the load, and the load's previous local store (if any) happens before
// the remote store — a store the reading thread had already observed
// can't be ordered after the one it's about to read from remotely.
func Inter(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for uid, in := range tr.Instrs {
		if in.Op != instr.LD && in.Op != instr.RMW {
			continue
		}
		store := tr.ReadsFrom[uid]
		if store == trace.NoInstr {
			continue
		}
		if tr.Instrs[store].TID == in.TID {
			continue
		}
		out = append(out, edge(store, uid))
		if pls := tr.PrevLocalStore[uid]; pls != trace.NoInstr {
			out = append(out, edge(pls, store))
		}
	}
	return out
}

// InitialValue orders a load of the reserved initial value before every
// thread's first store to that address (other than itself).
func InitialValue(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for uid, in := range tr.Instrs {
		if (in.Op != instr.LD && in.Op != instr.RMW) || in.ReadVal != 0 {
			continue
		}
		for tid := 0; tid < tr.NumThreads; tid++ {
			fs := tr.FirstStore[in.Addr][tid]
			if fs != trace.NoInstr && fs != uid {
				out = append(out, edge(uid, fs))
			}
		}
	}
	return out
}

// LocallyConsistent is the POW fast edge: a same-thread store whose value
// the following load does not observe must be ordered before that load,
// so a later globally-ordered store can still supply the observed value.
func LocallyConsistent(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for uid, in := range tr.Instrs {
		if in.Op != instr.LD && in.Op != instr.RMW {
			continue
		}
		pls := tr.PrevLocalStore[uid]
		if pls == trace.NoInstr {
			continue
		}
		if storeVal(tr.Instrs[pls]) != in.ReadVal {
			out = append(out, edge(pls, uid))
		}
	}
	return out
}

// FinalValue ties every thread's last store to an address to that
// address's FINAL constraint node. A FINAL of the reserved initial value
// 0 is only satisfiable when the address was never written; if it was,
// a self-loop forces the branch to fail.
func FinalValue(tr *trace.Trace) []graph.Edge {
	var out []graph.Edge
	for _, uid := range tr.Finals {
		in := tr.Instrs[uid]
		addr := in.Addr
		if in.ReadVal == 0 {
			for tid := 0; tid < tr.NumThreads; tid++ {
				if tr.FinalStore[addr][tid] != trace.NoInstr {
					out = append(out, edge(uid, uid))
					break
				}
			}
			continue
		}
		for tid := 0; tid < tr.NumThreads; tid++ {
			fs := tr.FinalStore[addr][tid]
			if fs != trace.NoInstr && fs != uid {
				out = append(out, edge(fs, uid))
			}
		}
	}
	return out
}

func storeVal(in instr.Instr) int {
	return in.WriteVal
}

func fillInstr(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = trace.NoInstr
	}
	return s
}

// BuildersFor returns {Inter, InitialValue, FinalValue} followed by the
// local-order builders model adds. model must be one of "SC", "TSO",
// "PSO", "WMO" (POW uses internal/valorder, not this table).
func BuildersFor(model string) []Builder {
	base := []Builder{Inter, InitialValue, FinalValue}
	switch model {
	case "TSO":
		return append(base, LocalTSO)
	case "PSO":
		return append(base, LocalPSO)
	case "WMO":
		return append(base, LocalWMO, LocalDep)
	default: // "SC"
		return append(base, LocalSC)
	}
}
