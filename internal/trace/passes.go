package trace

import (
	"github.com/go-axe/axe/internal/instr"
	"github.com/go-axe/axe/internal/seq"
)

// computeInstrMap is pass 1: allocate instrs[0..N), validate uids, split out
// FINAL entries, count SYNCs and RMWs.
func (t *Trace) computeInstrMap(raw []instr.Instr) error {
	n := len(raw)
	t.NumInstrs = n
	t.Instrs = make([]instr.Instr, n)

	seen := make([]bool, n)
	for _, i := range raw {
		if i.UID < 0 || i.UID >= n {
			return lineErr(i, ErrUIDOutOfRange)
		}
		if seen[i.UID] {
			return lineErr(i, ErrDuplicateUID)
		}
		seen[i.UID] = true
		t.Instrs[i.UID] = i

		switch i.Op {
		case instr.FINAL:
			t.Finals = append(t.Finals, i.UID)
		case instr.SYNC:
			t.NumSyncs++
		case instr.RMW:
			t.NumRMWs++
		}
	}
	return nil
}

// compactThreadAndAddrRanges is pass 2: map raw thread/address ids to dense
// ranges starting at 0, enforcing instr.MaxThreads/instr.MaxAddrs.
func (t *Trace) compactThreadAndAddrRanges() error {
	tidMap := seq.NewIntMap[int](8)
	addrMap := seq.NewIntMap[int](8)
	numTIDs, numAddrs := 0, 0

	for uid := range t.Instrs {
		in := &t.Instrs[uid]
		if in.Op != instr.FINAL {
			if dense, ok := tidMap.Lookup(in.TID); ok {
				in.TID = dense
			} else {
				if numTIDs >= instr.MaxThreads {
					return lineErr(*in, ErrTooManyThreads)
				}
				tidMap.Insert(in.TID, numTIDs)
				in.TID = numTIDs
				numTIDs++
			}
		}
		if instr.HasAddr(*in) {
			if dense, ok := addrMap.Lookup(in.Addr); ok {
				in.Addr = dense
			} else {
				if numAddrs >= instr.MaxAddrs {
					return lineErr(*in, ErrTooManyAddrs)
				}
				addrMap.Insert(in.Addr, numAddrs)
				in.Addr = numAddrs
				numAddrs++
			}
		}
	}
	t.NumThreads = numTIDs
	t.NumAddrs = numAddrs
	return nil
}

// compactDataRanges is pass 3: per address, map raw values to a dense range
// with value 0 always mapping to dense index 0 (the reserved initial
// value).
func (t *Trace) compactDataRanges() error {
	t.NumData = make([]int, t.NumAddrs)
	valMaps := make([]*seq.IntMap[int], t.NumAddrs)
	for a := range valMaps {
		valMaps[a] = seq.NewIntMap[int](6)
		valMaps[a].Insert(0, 0)
		t.NumData[a] = 1
	}

	compact := func(a int, raw int) (int, error) {
		if raw == 0 {
			return 0, nil
		}
		if dense, ok := valMaps[a].Lookup(raw); ok {
			return dense, nil
		}
		if t.NumData[a] >= instr.MaxData {
			return 0, ErrTooManyValues
		}
		dense := t.NumData[a]
		valMaps[a].Insert(raw, dense)
		t.NumData[a]++
		return dense, nil
	}

	for uid := range t.Instrs {
		in := &t.Instrs[uid]
		switch in.Op {
		case instr.LD, instr.FINAL:
			v, err := compact(in.Addr, in.ReadVal)
			if err != nil {
				return lineErr(*in, err)
			}
			in.ReadVal = v
		case instr.ST:
			v, err := compact(in.Addr, in.WriteVal)
			if err != nil {
				return lineErr(*in, err)
			}
			in.WriteVal = v
		case instr.RMW:
			rv, err := compact(in.Addr, in.ReadVal)
			if err != nil {
				return lineErr(*in, err)
			}
			in.ReadVal = rv
			wv, err := compact(in.Addr, in.WriteVal)
			if err != nil {
				return lineErr(*in, err)
			}
			in.WriteVal = wv
		}
	}
	return nil
}

// computeReadsFrom is pass 4: build the reads-from partial function and the
// FINAL-value table.
func (t *Trace) computeReadsFrom() error {
	t.ReadsFrom = make([]int, t.NumInstrs)
	for i := range t.ReadsFrom {
		t.ReadsFrom[i] = NoInstr
	}
	t.FinalVals = make([]int, t.NumAddrs)
	for i := range t.FinalVals {
		t.FinalVals[i] = -1
	}

	producer := seq.NewIntMap[int](8)
	key := func(addr, val int) int { return val*t.NumAddrs + addr }

	recordStore := func(in instr.Instr, val int) error {
		if val == 0 {
			return lineErr(in, ErrWriteZero)
		}
		k := key(in.Addr, val)
		if producer.Member(k) {
			return lineErr(in, ErrDuplicateReadsFrom)
		}
		producer.Insert(k, in.UID)
		return nil
	}

	for uid := range t.Instrs {
		in := t.Instrs[uid]
		switch in.Op {
		case instr.ST:
			if err := recordStore(in, in.WriteVal); err != nil {
				return err
			}
		case instr.RMW:
			if err := recordStore(in, in.WriteVal); err != nil {
				return err
			}
		}
	}

	resolve := func(in instr.Instr) (int, error) {
		if in.ReadVal == 0 {
			return NoInstr, nil
		}
		store, ok := producer.Lookup(key(in.Addr, in.ReadVal))
		if !ok {
			return NoInstr, lineErr(in, ErrNoProducingStore)
		}
		return store, nil
	}

	for uid := range t.Instrs {
		in := t.Instrs[uid]
		switch in.Op {
		case instr.LD, instr.RMW:
			store, err := resolve(in)
			if err != nil {
				return err
			}
			t.ReadsFrom[uid] = store
		case instr.FINAL:
			if in.ReadVal == 0 {
				if existing := t.FinalVals[in.Addr]; existing != -1 && existing != 0 {
					return lineErr(in, ErrFinalContradiction)
				}
				t.FinalVals[in.Addr] = 0
				continue
			}
			store, ok := producer.Lookup(key(in.Addr, in.ReadVal))
			if !ok {
				return lineErr(in, ErrFinalNoStore)
			}
			t.ReadsFrom[uid] = store
			if existing := t.FinalVals[in.Addr]; existing != -1 && existing != in.ReadVal {
				return lineErr(in, ErrFinalContradiction)
			}
			t.FinalVals[in.Addr] = in.ReadVal
		}
	}
	return nil
}

// splitThreads is pass 5: group non-FINAL instructions by thread,
// preserving uid (program) order.
func (t *Trace) splitThreads() {
	t.Threads = make([][]int, t.NumThreads)
	for uid := 0; uid < t.NumInstrs; uid++ {
		in := t.Instrs[uid]
		if in.Op == instr.FINAL {
			continue
		}
		t.Threads[in.TID] = append(t.Threads[in.TID], uid)
	}
}

// sanityCheck is pass 6: per-thread timestamp invariants and the
// store-endTime rule. The value-0 rule is enforced by computeReadsFrom.
func (t *Trace) sanityCheck() error {
	for _, ids := range t.Threads {
		lastBegin := instr.NoTime
		for _, uid := range ids {
			in := t.Instrs[uid]
			if in.Op == instr.ST && in.EndTime != instr.NoTime {
				return lineErr(in, ErrStoreHasEndTime)
			}
			if in.BeginTime != instr.NoTime {
				if lastBegin != instr.NoTime && in.BeginTime <= lastBegin {
					return lineErr(in, ErrBadTimestampOrder)
				}
				lastBegin = in.BeginTime
			}
			if in.BeginTime != instr.NoTime && in.EndTime != instr.NoTime && in.EndTime <= in.BeginTime {
				return lineErr(in, ErrBadTimestampSpan)
			}
		}
	}
	return nil
}

// computeDerivedTables computes the remaining per-trace tables beyond
// readsFrom/finalVals/threads: per-(uid,addr) local store/load neighbors,
// first/final store per (addr,tid), readsFromInv, sync neighbors, and
// nextBegin.
func (t *Trace) computeDerivedTables() {
	n := t.NumInstrs
	t.PrevLocalStore = fill(n, NoInstr)
	t.NextLocalStore = fill(n, NoInstr)
	t.NextLocalLoad = fill(n, NoInstr)
	t.PrevSync = fill(n, NoInstr)
	t.NextSync = fill(n, NoInstr)
	t.NextBegin = fill(n, NoInstr)
	t.FirstSync = fill(t.NumThreads, NoInstr)
	t.ReadsFromInv = make([][]int, n)

	t.FirstStore = make([][]int, t.NumAddrs)
	t.FinalStore = make([][]int, t.NumAddrs)
	for a := 0; a < t.NumAddrs; a++ {
		t.FirstStore[a] = fill(t.NumThreads, NoInstr)
		t.FinalStore[a] = fill(t.NumThreads, NoInstr)
	}

	for uid, store := range t.ReadsFrom {
		if store != NoInstr {
			t.ReadsFromInv[store] = append(t.ReadsFromInv[store], uid)
		}
	}

	for tid, ids := range t.Threads {
		lastStorePerAddr := fill(t.NumAddrs, NoInstr)
		lastLoadPerAddr := fill(t.NumAddrs, NoInstr)
		prevSync := NoInstr

		for _, uid := range ids {
			in := t.Instrs[uid]

			if in.Op == instr.SYNC {
				if t.FirstSync[tid] == NoInstr {
					t.FirstSync[tid] = uid
				}
				t.PrevSync[uid] = prevSync
				if prevSync != NoInstr {
					t.NextSync[prevSync] = uid
				}
				prevSync = uid
				continue
			}

			if !instr.HasAddr(in) {
				continue
			}
			a := in.Addr

			if in.Op == instr.LD || in.Op == instr.RMW {
				t.PrevLocalStore[uid] = lastStorePerAddr[a]
				if lastLoadPerAddr[a] != NoInstr {
					t.NextLocalLoad[lastLoadPerAddr[a]] = uid
				}
				lastLoadPerAddr[a] = uid
			}
			if in.Op == instr.ST || in.Op == instr.RMW {
				if in.Op == instr.ST {
					t.PrevLocalStore[uid] = lastStorePerAddr[a]
				}
				if lastStorePerAddr[a] != NoInstr {
					t.NextLocalStore[lastStorePerAddr[a]] = uid
				}
				if t.FirstStore[a][tid] == NoInstr {
					t.FirstStore[a][tid] = uid
				}
				t.FinalStore[a][tid] = uid
				lastStorePerAddr[a] = uid
			}
		}
	}

	t.computeNextBegin()
}

// computeNextBegin fills NextBegin[uid] with the uid of the nearest later
// instruction on the same thread whose BeginTime strictly exceeds uid's
// EndTime. Used by timestamp-ordering checks that need to find the next
// instruction guaranteed to begin after a given one ends.
func (t *Trace) computeNextBegin() {
	for _, ids := range t.Threads {
		for i, uid := range ids {
			in := t.Instrs[uid]
			if in.EndTime == instr.NoTime {
				continue
			}
			for j := i + 1; j < len(ids); j++ {
				cand := t.Instrs[ids[j]]
				if cand.BeginTime != instr.NoTime && cand.BeginTime > in.EndTime {
					t.NextBegin[uid] = ids[j]
					break
				}
			}
		}
	}
}

// BeginAfter returns the first instruction, program-order after load,
// whose BeginTime strictly exceeds load's EndTime, or NoInstr.
func (t *Trace) BeginAfter(load int) int {
	return t.NextBegin[load]
}

func fill(n, v int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}
