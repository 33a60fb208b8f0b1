package trace

import (
	"errors"
	"testing"

	"github.com/go-axe/axe/internal/instr"
)

func mk(uid, tid int, op instr.Op, addr, rv, wv, begin, end, line int) instr.Instr {
	return instr.Instr{
		UID: uid, TID: tid, Op: op, Addr: addr,
		ReadVal: rv, WriteVal: wv,
		BeginTime: begin, EndTime: end,
		Line: line,
	}
}

// storeBuffer is thread 0 storing 1 to address 10, thread 1 loading it back.
func storeBuffer() []instr.Instr {
	return []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 1, instr.NoTime, instr.NoTime, 1),
		mk(1, 1, instr.LD, 10, 1, 0, instr.NoTime, instr.NoTime, 2),
	}
}

func TestNew_StoreBuffer(t *testing.T) {
	tr, err := New(storeBuffer())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.NumThreads != 2 {
		t.Fatalf("NumThreads = %d, want 2", tr.NumThreads)
	}
	if tr.NumAddrs != 1 {
		t.Fatalf("NumAddrs = %d, want 1", tr.NumAddrs)
	}
	if tr.ReadsFrom[1] != 0 {
		t.Fatalf("ReadsFrom[1] = %d, want 0", tr.ReadsFrom[1])
	}
	if len(tr.ReadsFromInv[0]) != 1 || tr.ReadsFromInv[0][0] != 1 {
		t.Fatalf("ReadsFromInv[0] = %v, want [1]", tr.ReadsFromInv[0])
	}
}

func TestNew_LoadOfInitialValue(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.LD, 10, 0, 0, instr.NoTime, instr.NoTime, 1),
	}
	tr, err := New(raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.ReadsFrom[0] != NoInstr {
		t.Fatalf("ReadsFrom[0] = %d, want NoInstr", tr.ReadsFrom[0])
	}
}

func TestNew_WriteZeroRejected(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 0, instr.NoTime, instr.NoTime, 1),
	}
	_, err := New(raw)
	if !errors.Is(err, ErrWriteZero) {
		t.Fatalf("err = %v, want ErrWriteZero", err)
	}
}

func TestNew_NoProducingStore(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.LD, 10, 5, 0, instr.NoTime, instr.NoTime, 1),
	}
	_, err := New(raw)
	if !errors.Is(err, ErrNoProducingStore) {
		t.Fatalf("err = %v, want ErrNoProducingStore", err)
	}
}

func TestNew_DuplicateReadsFrom(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 1, instr.NoTime, instr.NoTime, 1),
		mk(1, 0, instr.ST, 10, 0, 1, instr.NoTime, instr.NoTime, 2),
	}
	_, err := New(raw)
	if !errors.Is(err, ErrDuplicateReadsFrom) {
		t.Fatalf("err = %v, want ErrDuplicateReadsFrom", err)
	}
}

func TestNew_FinalValueConstraint(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 1, instr.NoTime, instr.NoTime, 1),
		mk(1, -1, instr.FINAL, 10, 1, 0, instr.NoTime, instr.NoTime, 2),
	}
	tr, err := New(raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.FinalVals[0] != 1 {
		t.Fatalf("FinalVals[0] = %d, want 1", tr.FinalVals[0])
	}
	if tr.ReadsFrom[1] != 0 {
		t.Fatalf("ReadsFrom[1] (final) = %d, want 0", tr.ReadsFrom[1])
	}
}

func TestNew_FinalContradiction(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 1, instr.NoTime, instr.NoTime, 1),
		mk(1, 0, instr.ST, 10, 0, 2, instr.NoTime, instr.NoTime, 2),
		mk(2, -1, instr.FINAL, 10, 1, 0, instr.NoTime, instr.NoTime, 3),
		mk(3, -1, instr.FINAL, 10, 2, 0, instr.NoTime, instr.NoTime, 4),
	}
	_, err := New(raw)
	if !errors.Is(err, ErrFinalContradiction) {
		t.Fatalf("err = %v, want ErrFinalContradiction", err)
	}
}

func TestNew_FinalNoStore(t *testing.T) {
	raw := []instr.Instr{
		mk(0, -1, instr.FINAL, 10, 5, 0, instr.NoTime, instr.NoTime, 1),
	}
	_, err := New(raw)
	if !errors.Is(err, ErrFinalNoStore) {
		t.Fatalf("err = %v, want ErrFinalNoStore", err)
	}
}

func TestNew_DuplicateUID(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.NOP, 0, 0, 0, instr.NoTime, instr.NoTime, 1),
		mk(0, 0, instr.NOP, 0, 0, 0, instr.NoTime, instr.NoTime, 2),
	}
	_, err := New(raw)
	if !errors.Is(err, ErrDuplicateUID) {
		t.Fatalf("err = %v, want ErrDuplicateUID", err)
	}
}

func TestNew_BadTimestampOrder(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.LD, 10, 0, 0, 5, instr.NoTime, 1),
		mk(1, 0, instr.LD, 10, 0, 0, 3, instr.NoTime, 2),
	}
	_, err := New(raw)
	if !errors.Is(err, ErrBadTimestampOrder) {
		t.Fatalf("err = %v, want ErrBadTimestampOrder", err)
	}
}

func TestNew_StoreWithEndTimeRejected(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 1, 1, 2, 1),
	}
	_, err := New(raw)
	if !errors.Is(err, ErrStoreHasEndTime) {
		t.Fatalf("err = %v, want ErrStoreHasEndTime", err)
	}
}

func TestDerivedTables_LocalNeighbors(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 1, instr.NoTime, instr.NoTime, 1),
		mk(1, 0, instr.LD, 10, 1, 0, instr.NoTime, instr.NoTime, 2),
		mk(2, 0, instr.ST, 10, 0, 2, instr.NoTime, instr.NoTime, 3),
	}
	tr, err := New(raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.PrevLocalStore[1] != 0 {
		t.Fatalf("PrevLocalStore[1] = %d, want 0", tr.PrevLocalStore[1])
	}
	if tr.NextLocalStore[0] != 2 {
		t.Fatalf("NextLocalStore[0] = %d, want 2", tr.NextLocalStore[0])
	}
	if tr.FirstStore[0][0] != 0 {
		t.Fatalf("FirstStore[0][0] = %d, want 0", tr.FirstStore[0][0])
	}
	if tr.FinalStore[0][0] != 2 {
		t.Fatalf("FinalStore[0][0] = %d, want 2", tr.FinalStore[0][0])
	}
}

func TestPrevSeenNextSeen(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 1, instr.NoTime, instr.NoTime, 1), // a=10 <- 1
		mk(1, 0, instr.ST, 20, 0, 2, instr.NoTime, instr.NoTime, 2), // a=20 <- 2
		mk(2, 0, instr.LD, 10, 1, 0, instr.NoTime, instr.NoTime, 3),
		mk(3, 0, instr.ST, 10, 0, 3, instr.NoTime, instr.NoTime, 4), // a=10 <- 3
	}
	tr, err := New(raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := tr.PrevSeen(2, 0); got != 0 {
		t.Fatalf("PrevSeen(2, addr10) = %d, want 0", got)
	}
	if got := tr.PrevSeen(2, 1); got != 1 {
		t.Fatalf("PrevSeen(2, addr20) = %d, want 1", got)
	}
	if got := tr.NextSeen(2, 0); got != 3 {
		t.Fatalf("NextSeen(2, addr10) = %d, want 3", got)
	}
	if got := tr.NextSeen(2, 1); got != 1 {
		t.Fatalf("NextSeen(2, addr20) = %d, want 1", got)
	}
}

func TestSyncNeighbors(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 10, 0, 1, instr.NoTime, instr.NoTime, 1),
		mk(1, 0, instr.SYNC, 0, 0, 0, instr.NoTime, instr.NoTime, 2),
		mk(2, 0, instr.SYNC, 0, 0, 0, instr.NoTime, instr.NoTime, 3),
	}
	tr, err := New(raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.FirstSync[0] != 1 {
		t.Fatalf("FirstSync[0] = %d, want 1", tr.FirstSync[0])
	}
	if tr.NextSync[1] != 2 {
		t.Fatalf("NextSync[1] = %d, want 2", tr.NextSync[1])
	}
	if tr.PrevSync[2] != 1 {
		t.Fatalf("PrevSync[2] = %d, want 1", tr.PrevSync[2])
	}
}

func TestDataValueCompaction(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 99, 0, 7, instr.NoTime, instr.NoTime, 1),
		mk(1, 1, instr.LD, 99, 7, 0, instr.NoTime, instr.NoTime, 2),
	}
	tr, err := New(raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.Instrs[0].WriteVal != 1 {
		t.Fatalf("compacted WriteVal = %d, want 1 (dense, 0 reserved)", tr.Instrs[0].WriteVal)
	}
	if tr.Instrs[1].ReadVal != 1 {
		t.Fatalf("compacted ReadVal = %d, want 1", tr.Instrs[1].ReadVal)
	}
	if tr.NumData[0] != 2 {
		t.Fatalf("NumData[0] = %d, want 2", tr.NumData[0])
	}
}
