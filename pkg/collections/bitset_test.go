package collections

import "testing"

func TestBitset_Basic(t *testing.T) {
	b := NewBitset(100)

	b.Set(0)
	b.Set(50)
	b.Set(99)

	if !b.Test(0) || !b.Test(50) || !b.Test(99) {
		t.Error("expected bits 0, 50, 99 to be set")
	}
	if b.Test(1) {
		t.Error("expected bit 1 to be clear")
	}
	if b.Count() != 3 {
		t.Errorf("Count() = %d, want 3", b.Count())
	}

	b.Clear(50)
	if b.Test(50) {
		t.Error("expected bit 50 to be clear after Clear")
	}
	if b.Count() != 2 {
		t.Errorf("Count() = %d after Clear, want 2", b.Count())
	}
}

func TestBitset_OutOfRange(t *testing.T) {
	b := NewBitset(64)

	b.Set(-1)
	b.Set(1000)
	if b.Test(-1) || b.Test(1000) {
		t.Error("out-of-range Set should be a no-op, not panic or silently extend")
	}
	b.Clear(1000) // must not panic
}

func TestBitset_Clone(t *testing.T) {
	a := NewBitset(100)
	a.Set(10)
	a.Set(20)

	b := a.Clone()
	a.Set(30)

	if b.Test(30) {
		t.Error("clone should be independent of later mutations to the original")
	}
	if !b.Test(10) || !b.Test(20) {
		t.Error("clone should carry the original's bits as of the clone point")
	}
}

func TestBitset_Size(t *testing.T) {
	b := NewBitset(128)
	if b.Size() != 128 {
		t.Errorf("Size() = %d, want 128", b.Size())
	}
}
