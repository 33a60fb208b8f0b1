package trace

import "github.com/go-axe/axe/internal/instr"

// PrevSeen returns the uid of the latest store (or RMW) to addr at or
// before uid in uid's thread's program order, or NoInstr if none. Computed
// once per uid and cached.
func (t *Trace) PrevSeen(uid, addr int) int {
	row, ok := t.prevSeenCache[uid]
	if !ok {
		row = t.computePrevSeenRow(uid)
		t.prevSeenCache[uid] = row
	}
	return row[addr]
}

// NextSeen returns the uid of the earliest store (or RMW) to addr at or
// after uid in uid's thread's program order, or NoInstr if none.
func (t *Trace) NextSeen(uid, addr int) int {
	row, ok := t.nextSeenCache[uid]
	if !ok {
		row = t.computeNextSeenRow(uid)
		t.nextSeenCache[uid] = row
	}
	return row[addr]
}

func (t *Trace) computePrevSeenRow(uid int) []int {
	tid := t.Instrs[uid].TID
	ids := t.Threads[tid]
	row := fill(t.NumAddrs, NoInstr)
	for _, id := range ids {
		in := t.Instrs[id]
		if in.Op == instr.ST || in.Op == instr.RMW {
			row[in.Addr] = id
		}
		if id == uid {
			break
		}
	}
	return row
}

func (t *Trace) computeNextSeenRow(uid int) []int {
	tid := t.Instrs[uid].TID
	ids := t.Threads[tid]
	row := fill(t.NumAddrs, NoInstr)

	pos := 0
	for i, id := range ids {
		if id == uid {
			pos = i
			break
		}
	}
	for i := len(ids) - 1; i >= pos; i-- {
		in := t.Instrs[ids[i]]
		if in.Op == instr.ST || in.Op == instr.RMW {
			row[in.Addr] = ids[i]
		}
	}
	return row
}
