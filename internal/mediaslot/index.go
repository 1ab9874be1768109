// Package mediaslot hands out compact, reusable media numbers per project.
//
// Index is a pure value: Allocate and Release return the updated index and
// never touch disk. Registry persists one index per project in
// media-index.json and orders side effects so a number is only recorded as
// used once its directory exists.
package mediaslot

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const slotPrefix = "media-"

// Index tracks the media numbers of one project.
type Index struct {
	NextNumber  int       `json:"nextMediaNumber"`
	Available   []int     `json:"availableNumbers"`
	Active      []string  `json:"activeMediaIds"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NewIndex returns the index of a project without media.
func NewIndex() Index {
	return Index{NextNumber: 1, Available: []int{}, Active: []string{}}
}

// SlotID names a media number as stored on disk ("media-3").
func SlotID(number int) string {
	return slotPrefix + strconv.Itoa(number)
}

// ParseSlotID extracts the number from a slot id.
func ParseSlotID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, slotPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 || strconv.Itoa(n) != rest {
		return 0, false
	}
	return n, true
}

// Allocate returns the lowest free number and the index with that number
// marked active. Freed numbers are reused before the counter grows.
func (ix Index) Allocate() (int, Index) {
	next := ix.clone()
	var number int
	if len(next.Available) > 0 {
		number = next.Available[0]
		next.Available = next.Available[1:]
	} else {
		number = next.NextNumber
		next.NextNumber++
	}
	next.Active = append(next.Active, SlotID(number))
	return number, next
}

// Release returns number to the free pool. Numbers at or above the counter
// and numbers already free are ignored.
func (ix Index) Release(number int) Index {
	next := ix.clone()
	id := SlotID(number)
	next.Active = slices.DeleteFunc(next.Active, func(active string) bool { return active == id })
	if number <= 0 || number >= next.NextNumber {
		return next
	}
	pos, found := slices.BinarySearch(next.Available, number)
	if !found {
		next.Available = slices.Insert(next.Available, pos, number)
	}
	return next
}

// IsActive reports whether number is currently assigned.
func (ix Index) IsActive(number int) bool {
	return slices.Contains(ix.Active, SlotID(number))
}

// Bootstrap builds an index from the numbers already in use. The highest
// number becomes the high-water mark and every unused number below it is
// free.
func Bootstrap(existing []int) Index {
	ix := NewIndex()
	used := make(map[int]bool, len(existing))
	maxNumber := 0
	for _, n := range existing {
		if n <= 0 || used[n] {
			continue
		}
		used[n] = true
		maxNumber = max(maxNumber, n)
	}
	for n := 1; n <= maxNumber; n++ {
		if used[n] {
			ix.Active = append(ix.Active, SlotID(n))
		} else {
			ix.Available = append(ix.Available, n)
		}
	}
	ix.NextNumber = maxNumber + 1
	return ix
}

// Check verifies the index invariants: every active number is below the
// counter and not free, and the free list is sorted and unique.
func (ix Index) Check() error {
	if ix.NextNumber < 1 {
		return fmt.Errorf("next media number %d is below 1", ix.NextNumber)
	}
	if !slices.IsSorted(ix.Available) {
		return fmt.Errorf("available numbers are not sorted: %v", ix.Available)
	}
	for i, n := range ix.Available {
		if n < 1 || n >= ix.NextNumber {
			return fmt.Errorf("available number %d outside 1..%d", n, ix.NextNumber-1)
		}
		if i > 0 && ix.Available[i-1] == n {
			return fmt.Errorf("available number %d listed twice", n)
		}
	}
	for _, id := range ix.Active {
		n, ok := ParseSlotID(id)
		if !ok {
			return fmt.Errorf("active media id %q is malformed", id)
		}
		if n >= ix.NextNumber {
			return fmt.Errorf("active number %d not below next number %d", n, ix.NextNumber)
		}
		if _, free := slices.BinarySearch(ix.Available, n); free {
			return fmt.Errorf("number %d is both active and available", n)
		}
	}
	return nil
}

func (ix Index) clone() Index {
	return Index{
		NextNumber:  ix.NextNumber,
		Available:   append([]int{}, ix.Available...),
		Active:      append([]string{}, ix.Active...),
		LastUpdated: ix.LastUpdated,
	}
}
