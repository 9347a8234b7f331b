package writer

import (
	"math"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// FirstHandle is where allocation starts; lower handles belong to the
// control objects of a full drawing
const FirstHandle uint64 = 0x10

// HandleAllocator hands out unique object handles in increasing order
type HandleAllocator struct {
	next uint64
	used map[uint64]struct{}
}

// NewHandleAllocator starts allocating at start; zero starts at one
func NewHandleAllocator(start uint64) *HandleAllocator {
	return &HandleAllocator{next: max(start, 1), used: make(map[uint64]struct{})}
}

// Reserve claims a specific handle
func (a *HandleAllocator) Reserve(h uint64) error {
	if h == 0 {
		return dwgerr.New(dwgerr.KindFormat, "handle 0 is reserved and cannot be allocated")
	}
	if _, ok := a.used[h]; ok {
		return dwgerr.Newf(dwgerr.KindResolve, "duplicate handle reservation: 0x%X", h)
	}
	a.used[h] = struct{}{}
	return nil
}

// Allocate returns the lowest free handle at or above the cursor
func (a *HandleAllocator) Allocate() (uint64, error) {
	for a.IsReserved(a.next) {
		if a.next == math.MaxUint64 {
			return 0, dwgerr.New(dwgerr.KindUnsupported, "handle space exhausted")
		}
		a.next++
	}
	h := a.next
	a.used[h] = struct{}{}
	if a.next < math.MaxUint64 {
		a.next++
	}
	return h, nil
}

// IsReserved reports whether h has been reserved or allocated
func (a *HandleAllocator) IsReserved(h uint64) bool {
	_, ok := a.used[h]
	return ok
}
