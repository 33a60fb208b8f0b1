package valorder

import (
	"testing"

	"github.com/go-axe/axe/internal/instr"
	"github.com/go-axe/axe/internal/trace"
)

func mk(uid, tid int, op instr.Op, addr, rv, wv int) instr.Instr {
	return instr.Instr{UID: uid, TID: tid, Op: op, Addr: addr, ReadVal: rv, WriteVal: wv, BeginTime: instr.NoTime, EndTime: instr.NoTime, Line: uid + 1}
}

// RMW atomicity: T0:{x==0;x:=1}; T1:{x==0;x:=2} — both claim the same
// read value atomically, which must be rejected.
func TestRMWAtomicityViolationRejected(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.RMW, 0, 0, 1),
		mk(1, 1, instr.RMW, 0, 0, 2),
	}
	tr, err := trace.New(raw)
	if err != nil {
		t.Fatalf("trace.New: %v", err)
	}
	if New(tr, Options{}).Check() {
		t.Fatal("POW must reject two RMWs claiming the same read value atomically")
	}
}

func TestSingleThreadTrivialAccept(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 0, 0, 1),
		mk(1, 0, instr.LD, 0, 1, 0),
	}
	tr, err := trace.New(raw)
	if err != nil {
		t.Fatalf("trace.New: %v", err)
	}
	if !New(tr, Options{}).Check() {
		t.Fatal("POW must accept a trivially sequential single-thread trace")
	}
}

func TestCoherenceOfReadsRejected(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 0, 0, 1),
		mk(1, 0, instr.ST, 0, 0, 2),
		mk(2, 1, instr.LD, 0, 2, 0),
		mk(3, 1, instr.LD, 0, 1, 0),
	}
	tr, err := trace.New(raw)
	if err != nil {
		t.Fatalf("trace.New: %v", err)
	}
	if New(tr, Options{}).Check() {
		t.Fatal("POW must reject a coherence violation")
	}
}

func TestSingleRMWAccepted(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.RMW, 0, 0, 1),
		mk(1, 1, instr.LD, 0, 1, 0),
	}
	tr, err := trace.New(raw)
	if err != nil {
		t.Fatalf("trace.New: %v", err)
	}
	if !New(tr, Options{}).Check() {
		t.Fatal("POW must accept a load reading the unique RMW's write")
	}
}
