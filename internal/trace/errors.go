package trace

import "errors"

// Sentinel validation errors, wrapped with a line number by the caller.
var (
	// ErrUIDOutOfRange is returned when an instruction's uid falls outside
	// [0, N).
	ErrUIDOutOfRange = errors.New("instruction uid out of range")

	// ErrDuplicateUID is returned when two instructions share a uid.
	ErrDuplicateUID = errors.New("duplicate instruction uid")

	// ErrTooManyThreads is returned when the trace uses more than
	// instr.MaxThreads distinct thread ids.
	ErrTooManyThreads = errors.New("too many distinct thread ids")

	// ErrTooManyAddrs is returned when the trace uses more than
	// instr.MaxAddrs distinct addresses.
	ErrTooManyAddrs = errors.New("too many distinct addresses")

	// ErrTooManyValues is returned when an address has more than
	// instr.MaxData distinct data values.
	ErrTooManyValues = errors.New("too many distinct data values for address")

	// ErrWriteZero is returned when a store (or RMW write) writes value 0,
	// which is reserved for the initial value.
	ErrWriteZero = errors.New("value 0 is reserved for the initial value and cannot be written")

	// ErrDuplicateReadsFrom is returned when two stores write the same
	// (addr, value) pair.
	ErrDuplicateReadsFrom = errors.New("reads-from ambiguous: duplicate store of the same address and value")

	// ErrNoProducingStore is returned when a load (or RMW read) observes a
	// nonzero value with no matching store.
	ErrNoProducingStore = errors.New("no producing store for observed value")

	// ErrFinalNoStore is returned when a FINAL constraint names a nonzero
	// value with no matching store.
	ErrFinalNoStore = errors.New("final value constraint references a nonexistent store")

	// ErrFinalContradiction is returned when two FINAL constraints on the
	// same address disagree.
	ErrFinalContradiction = errors.New("contradictory final value constraints for the same address")

	// ErrBadTimestampOrder is returned when a thread's beginTime values are
	// not strictly increasing.
	ErrBadTimestampOrder = errors.New("begin timestamps must be strictly increasing per thread")

	// ErrBadTimestampSpan is returned when endTime does not exceed
	// beginTime.
	ErrBadTimestampSpan = errors.New("end timestamp must exceed begin timestamp")

	// ErrStoreHasEndTime is returned when a store carries an endTime.
	ErrStoreHasEndTime = errors.New("stores may not carry an end timestamp")
)
