// Package trace canonicalizes a parsed instruction list into the dense,
// derived-table form the rest of the checker operates on: thread/address/
// data ranges compacted to contiguous integer ranges starting at 0, plus
// the reads-from, program-order, and neighbor tables the engines query
// during search. Construction runs as seven ordered passes.
package trace

import (
	"fmt"

	"github.com/go-axe/axe/internal/instr"
)

// NoInstr is the sentinel meaning "no such instruction", reused from instr.
const NoInstr = instr.NoInstr

// Trace is the canonicalized form of a parsed instruction list.
type Trace struct {
	NumInstrs  int
	NumThreads int
	NumAddrs   int
	NumData    []int // per-address distinct value count
	NumSyncs   int
	NumRMWs    int

	Instrs []instr.Instr // indexed by uid, includes FINAL entries
	Finals []int         // uids of FINAL entries, in file order

	FinalVals []int // per address: -1 (unconstrained) or required value

	ReadsFrom    []int   // per uid: producing store uid, or -1
	ReadsFromInv [][]int // per uid: loads that read from this store

	Threads [][]int // per tid: ordered uids (non-FINAL only)

	PrevLocalStore []int // per uid: previous store to the same (tid, addr)
	NextLocalStore []int // per uid: next store to the same (tid, addr)
	NextLocalLoad  []int // per uid: next load of the same (tid, addr)

	FirstStore [][]int // [addr][tid]: uid of the first store, or -1
	FinalStore [][]int // [addr][tid]: uid of the last store, or -1

	PrevSync  []int // per uid: previous SYNC on the same thread, or -1
	NextSync  []int // per uid: next SYNC on the same thread, or -1
	FirstSync []int // per tid: first SYNC uid, or -1
	NextBegin []int // per uid: next instruction (any addr) whose BeginTime
	// strictly exceeds this instruction's EndTime, or -1

	prevSeenCache map[int][]int
	nextSeenCache map[int][]int
}

// New canonicalizes raw (a flat parsed instruction list, uids dense in
// [0, len(raw))) into a Trace, running the passes in order. On any
// validation failure it returns an error naming the offending line.
func New(raw []instr.Instr) (*Trace, error) {
	t := &Trace{
		prevSeenCache: make(map[int][]int),
		nextSeenCache: make(map[int][]int),
	}

	if err := t.computeInstrMap(raw); err != nil {
		return nil, err
	}
	if err := t.compactThreadAndAddrRanges(); err != nil {
		return nil, err
	}
	if err := t.compactDataRanges(); err != nil {
		return nil, err
	}
	if err := t.computeReadsFrom(); err != nil {
		return nil, err
	}
	t.splitThreads()
	if err := t.sanityCheck(); err != nil {
		return nil, err
	}
	t.computeDerivedTables()
	return t, nil
}

func lineErr(i instr.Instr, err error) error {
	return fmt.Errorf("line %d: %w", i.Line, err)
}
