package lfru

import (
	"testing"
)

// Insert A, B, C; access A twice (freq 3), C once more recent than B at
// freq 1. The victim must be B: lowest bucket, least recent within it.
func TestLFRU_VictimFromLowestBucketLRUFirst(t *testing.T) {
	t.Parallel()

	p := New().New()
	p.OnInsert("A")
	p.OnInsert("B")
	p.OnInsert("C")
	p.OnAccess("A")
	p.OnAccess("A")

	v, ok := p.SelectVictim()
	if !ok || v != "B" {
		t.Fatalf("victim = %q ok=%v, want B", v, ok)
	}

	// Evict B; next lowest-bucket LRU is C, then A.
	p.Remove("B")
	if v, _ := p.SelectVictim(); v != "C" {
		t.Fatalf("victim after B = %q, want C", v)
	}
	p.Remove("C")
	if v, _ := p.SelectVictim(); v != "A" {
		t.Fatalf("victim after C = %q, want A", v)
	}
}

// An access moves the key into the next bucket at its most-recent end.
func TestLFRU_AccessPromotes(t *testing.T) {
	t.Parallel()

	p := New().New()
	p.OnInsert("x")
	p.OnInsert("y")
	p.OnAccess("x") // x now freq 2, y stays freq 1

	if v, _ := p.SelectVictim(); v != "y" {
		t.Fatalf("victim = %q, want y (lower frequency)", v)
	}
}

// Pinned keys are skipped even when they are the global LRU/LFU candidate;
// unpinning restores eligibility.
func TestLFRU_PinBlocksEviction(t *testing.T) {
	t.Parallel()

	p := New().New()
	p.OnInsert("cold")
	p.OnInsert("warm")
	p.OnAccess("warm")

	if !p.Pin("cold") {
		t.Fatal("Pin on tracked key must return true")
	}
	if v, ok := p.SelectVictim(); !ok || v != "warm" {
		t.Fatalf("victim = %q ok=%v, want warm (cold pinned)", v, ok)
	}

	if !p.Unpin("cold") {
		t.Fatal("Unpin on tracked key must return true")
	}
	if v, _ := p.SelectVictim(); v != "cold" {
		t.Fatalf("victim = %q, want cold after unpin", v)
	}

	if p.Pin("missing") || p.Unpin("missing") {
		t.Fatal("Pin/Unpin on unknown key must return false")
	}
}

// When every key is pinned there is no victim.
func TestLFRU_AllPinned(t *testing.T) {
	t.Parallel()

	p := New().New()
	p.OnInsert("a")
	p.OnInsert("b")
	p.Pin("a")
	p.Pin("b")

	if _, ok := p.SelectVictim(); ok {
		t.Fatal("SelectVictim must report no candidate when all keys are pinned")
	}

	p.Unpin("b")
	if v, ok := p.SelectVictim(); !ok || v != "b" {
		t.Fatalf("victim = %q ok=%v, want b", v, ok)
	}
}

// Nested pins: a key stays unevictable until the last pin is released.
func TestLFRU_NestedPins(t *testing.T) {
	t.Parallel()

	p := New().New()
	p.OnInsert("k")
	p.Pin("k")
	p.Pin("k")
	p.Unpin("k")
	if _, ok := p.SelectVictim(); ok {
		t.Fatal("one pin still held, no victim expected")
	}
	p.Unpin("k")
	if v, ok := p.SelectVictim(); !ok || v != "k" {
		t.Fatalf("victim = %q ok=%v, want k", v, ok)
	}
}

func TestLFRU_RemoveAndLen(t *testing.T) {
	t.Parallel()

	p := New().New()
	p.OnInsert("a")
	p.OnInsert("b")
	if p.Len() != 2 {
		t.Fatalf("Len = %d, want 2", p.Len())
	}
	p.Remove("a")
	p.Remove("a") // idempotent
	if p.Len() != 1 {
		t.Fatalf("Len = %d, want 1", p.Len())
	}
	if v, _ := p.SelectVictim(); v != "b" {
		t.Fatalf("victim = %q, want b", v)
	}
}
