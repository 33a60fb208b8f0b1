// Package seq provides the dynamic sequence and hash-map primitives the rest
// of the checker is built on: a growable append/pop/remove-by-value sequence,
// a small-object-optimized variant that avoids a heap allocation for the
// common case of a handful of elements, and a chained-bucket integer-keyed
// map.
package seq

// Seq is a dynamic, ordered sequence of T with O(1) append/pop and O(n)
// remove-by-value/membership.
type Seq[T comparable] struct {
	elems []T
}

// New creates an empty sequence, optionally reserving capacity.
func New[T comparable](capacity int) *Seq[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Seq[T]{elems: make([]T, 0, capacity)}
}

// Len returns the number of elements.
func (s *Seq[T]) Len() int { return len(s.elems) }

// Append adds v to the end.
func (s *Seq[T]) Append(v T) { s.elems = append(s.elems, v) }

// Pop removes and returns the last element. Panics if empty.
func (s *Seq[T]) Pop() T {
	last := s.elems[len(s.elems)-1]
	s.elems = s.elems[:len(s.elems)-1]
	return last
}

// At returns the element at index i.
func (s *Seq[T]) At(i int) T { return s.elems[i] }

// Set overwrites the element at index i.
func (s *Seq[T]) Set(i int, v T) { s.elems[i] = v }

// Member reports whether v is present anywhere in the sequence.
func (s *Seq[T]) Member(v T) bool {
	for _, e := range s.elems {
		if e == v {
			return true
		}
	}
	return false
}

// Remove deletes the first occurrence of v, if any, preserving order.
func (s *Seq[T]) Remove(v T) {
	for i, e := range s.elems {
		if e == v {
			s.elems = append(s.elems[:i], s.elems[i+1:]...)
			return
		}
	}
}

// Clear empties the sequence without releasing its backing array.
func (s *Seq[T]) Clear() { s.elems = s.elems[:0] }

// Each calls fn for every element in order; fn returning false stops the
// iteration early.
func (s *Seq[T]) Each(fn func(v T) bool) {
	for _, e := range s.elems {
		if !fn(e) {
			return
		}
	}
}

// Slice returns the backing elements. Callers must not retain a reference
// across further mutation of the sequence.
func (s *Seq[T]) Slice() []T { return s.elems }

// smallSeqInline is the number of elements a SmallSeq holds without spilling
// to a heap-allocated slice.
const smallSeqInline = 4

// SmallSeq is a small-object-optimized sequence: up to smallSeqInline
// elements live inline in the struct; beyond that it spills into a Seq.
// Used where most sequences (e.g. the per-address FINAL constraint list)
// are expected to be tiny.
type SmallSeq[T comparable] struct {
	inline    [smallSeqInline]T
	inlineLen int
	overflow  *Seq[T]
}

// Len returns the number of elements.
func (s *SmallSeq[T]) Len() int {
	if s.overflow != nil {
		return smallSeqInline + s.overflow.Len()
	}
	return s.inlineLen
}

// Append adds v to the end, spilling to the overflow Seq once the inline
// array is full.
func (s *SmallSeq[T]) Append(v T) {
	if s.overflow == nil && s.inlineLen < smallSeqInline {
		s.inline[s.inlineLen] = v
		s.inlineLen++
		return
	}
	if s.overflow == nil {
		s.overflow = New[T](smallSeqInline)
	}
	s.overflow.Append(v)
}

// At returns the element at index i.
func (s *SmallSeq[T]) At(i int) T {
	if i < s.inlineLen {
		return s.inline[i]
	}
	return s.overflow.At(i - smallSeqInline)
}

// Each calls fn for every element in order; fn returning false stops the
// iteration early.
func (s *SmallSeq[T]) Each(fn func(v T) bool) {
	for i := 0; i < s.inlineLen; i++ {
		if !fn(s.inline[i]) {
			return
		}
	}
	if s.overflow != nil {
		s.overflow.Each(fn)
	}
}

// Member reports whether v is present anywhere in the sequence.
func (s *SmallSeq[T]) Member(v T) bool {
	found := false
	s.Each(func(e T) bool {
		if e == v {
			found = true
			return false
		}
		return true
	})
	return found
}
