package model

import (
	"testing"

	"github.com/go-axe/axe/internal/instr"
)

func TestParseModel(t *testing.T) {
	cases := map[string]Model{
		"SC": SC, "sc": SC,
		"TSO": TSO, "tso": TSO,
		"PSO": PSO, "WMO": WMO, "POW": POW, " pow ": POW,
	}
	for in, want := range cases {
		got, err := ParseModel(in)
		if err != nil {
			t.Fatalf("ParseModel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseModel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseModel_Unknown(t *testing.T) {
	if _, err := ParseModel("xyz"); err == nil {
		t.Fatal("expected an error for an unknown model name")
	}
}

func mk(uid, tid int, op instr.Op, addr, rv, wv int) instr.Instr {
	return instr.Instr{UID: uid, TID: tid, Op: op, Addr: addr, ReadVal: rv, WriteVal: wv, BeginTime: instr.NoTime, EndTime: instr.NoTime, Line: uid + 1}
}

func TestCheck_DispatchesSCAndPOW(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 0, 0, 1),
		mk(1, 0, instr.LD, 0, 1, 0),
	}
	ok, err := Check(SC, raw, Options{})
	if err != nil || !ok {
		t.Fatalf("Check(SC) = %v, %v", ok, err)
	}
	ok, err = Check(POW, raw, Options{})
	if err != nil || !ok {
		t.Fatalf("Check(POW) = %v, %v", ok, err)
	}
}

func TestCheck_ValidationError(t *testing.T) {
	raw := []instr.Instr{
		mk(0, 0, instr.ST, 0, 0, 0), // writing 0 is reserved
	}
	_, err := Check(SC, raw, Options{})
	if err == nil {
		t.Fatal("expected a validation error, got nil")
	}
}

func TestCheck_IgnoreTimestamps(t *testing.T) {
	raw := []instr.Instr{
		{UID: 0, TID: 0, Op: instr.ST, Addr: 0, WriteVal: 1, BeginTime: 5, EndTime: 6, Line: 1},
		{UID: 1, TID: 0, Op: instr.LD, Addr: 0, ReadVal: 1, BeginTime: 1, EndTime: 2, Line: 2},
	}
	if _, err := Check(SC, raw, Options{IgnoreTimestamps: true}); err != nil {
		t.Fatalf("Check with -i should tolerate out-of-order timestamps: %v", err)
	}
}
