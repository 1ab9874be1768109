package mediaslot

import (
	"fmt"
	"testing"
)

func TestAllocateReusesLowestReleased(t *testing.T) {
	ix := NewIndex()
	for i := 1; i <= 5; i++ {
		var n int
		n, ix = ix.Allocate()
		if n != i {
			t.Fatalf("allocation %d returned %d", i, n)
		}
	}
	ix = ix.Release(3)
	ix = ix.Release(2)

	n, ix := ix.Allocate()
	if n != 2 {
		t.Fatalf("expected lowest free slot 2, got %d", n)
	}
	n, ix = ix.Allocate()
	if n != 3 {
		t.Fatalf("expected released slot 3, got %d", n)
	}
	n, ix = ix.Allocate()
	if n != 6 {
		t.Fatalf("expected fresh slot 6, got %d", n)
	}
	if err := ix.Check(); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
}

func TestAllocateDoesNotMutateReceiver(t *testing.T) {
	ix := Bootstrap([]int{1, 3})
	before := fmt.Sprintf("%+v", ix)
	_, _ = ix.Allocate()
	_ = ix.Release(1)
	if after := fmt.Sprintf("%+v", ix); after != before {
		t.Fatalf("receiver changed: %s -> %s", before, after)
	}
}

func TestReleaseIgnoresOutOfRangeAndDuplicates(t *testing.T) {
	ix := Bootstrap([]int{1, 2})
	ix = ix.Release(7)
	ix = ix.Release(0)
	if len(ix.Available) != 0 {
		t.Fatalf("expected no free numbers, got %v", ix.Available)
	}
	ix = ix.Release(1)
	ix = ix.Release(1)
	if fmt.Sprint(ix.Available) != "[1]" {
		t.Fatalf("available = %v, want [1]", ix.Available)
	}
	if ix.IsActive(1) || !ix.IsActive(2) {
		t.Fatalf("unexpected active set %v", ix.Active)
	}
}

func TestBootstrap(t *testing.T) {
	tests := []struct {
		name      string
		existing  []int
		next      int
		available string
	}{
		{name: "empty", existing: nil, next: 1, available: "[]"},
		{name: "dense", existing: []int{1, 2, 3}, next: 4, available: "[]"},
		{name: "gaps", existing: []int{5, 2}, next: 6, available: "[1 3 4]"},
		{name: "duplicates and junk", existing: []int{2, 2, -1, 0}, next: 3, available: "[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := Bootstrap(tt.existing)
			if ix.NextNumber != tt.next {
				t.Fatalf("next = %d, want %d", ix.NextNumber, tt.next)
			}
			if got := fmt.Sprint(ix.Available); got != tt.available {
				t.Fatalf("available = %s, want %s", got, tt.available)
			}
			if err := ix.Check(); err != nil {
				t.Fatalf("invariants broken: %v", err)
			}
		})
	}
}

func TestCheckDetectsOverlap(t *testing.T) {
	ix := Index{NextNumber: 4, Available: []int{2}, Active: []string{"media-2"}}
	if err := ix.Check(); err == nil {
		t.Fatal("expected overlap to be reported")
	}
	ix = Index{NextNumber: 2, Available: []int{}, Active: []string{"media-5"}}
	if err := ix.Check(); err == nil {
		t.Fatal("expected active number above counter to be reported")
	}
}

func TestParseSlotID(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"media-1", 1, true},
		{"media-12", 12, true},
		{"media-0", 0, false},
		{"media-01", 0, false},
		{"media-x", 0, false},
		{"audio-1", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSlotID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseSlotID(%q) = %d, %v", tt.in, got, ok)
		}
	}
}
