package bitstream

import (
	"math"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// Point2 is an (x, y) pair
type Point2 [2]float64

// Point3 is an (x, y, z) triple
type Point3 [3]float64

// HandleRef is a raw handle reference as stored in the stream: a 4-bit code,
// a byte counter and the big-endian payload.
type HandleRef struct {
	Code    uint8
	Counter uint8
	Value   uint64
}

// ReadH reads a raw handle reference
func (r *Reader) ReadH() (HandleRef, error) {
	head, err := r.ReadRC()
	if err != nil {
		return HandleRef{}, err
	}
	ref := HandleRef{Code: head >> 4, Counter: head & 0x0F}
	if ref.Counter > 8 {
		return HandleRef{}, dwgerr.Newf(dwgerr.KindDecode, "handle counter %d exceeds 8 bytes", ref.Counter).WithOffset(r.pos)
	}
	for i := uint8(0); i < ref.Counter; i++ {
		b, err := r.ReadRC()
		if err != nil {
			return HandleRef{}, err
		}
		ref.Value = ref.Value<<8 | uint64(b)
	}
	return ref, nil
}

// Resolve maps the reference to an absolute handle relative to base.
// Codes 6, 8, 0xA and 0xC are offsets from base; everything else is absolute.
// Offsets saturate at zero and at the top of the handle space.
func (h HandleRef) Resolve(base uint64) uint64 {
	switch h.Code {
	case 0x6:
		return satAdd(base, 1)
	case 0x8:
		return satSub(base, 1)
	case 0xA:
		return satAdd(base, h.Value)
	case 0xC:
		return satSub(base, h.Value)
	default:
		return h.Value
	}
}

func satAdd(a, b uint64) uint64 {
	if a+b < a {
		return math.MaxUint64
	}
	return a + b
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// IsRelative reports whether the code is base-relative
func (h HandleRef) IsRelative() bool {
	switch h.Code {
	case 0x6, 0x8, 0xA, 0xC:
		return true
	default:
		return false
	}
}

// ReadHandle reads a reference and resolves it against base
func (r *Reader) ReadHandle(base uint64) (uint64, error) {
	ref, err := r.ReadH()
	if err != nil {
		return 0, err
	}
	return ref.Resolve(base), nil
}

// HandleMode selects how relative references are anchored while walking a
// run of handles.
type HandleMode int

const (
	// Absolute resolves every reference against the same base
	Absolute HandleMode = iota
	// Chained moves the base to each resolved handle
	Chained
)

// String returns a string representation of the HandleMode
func (m HandleMode) String() string {
	if m == Chained {
		return "chained"
	}
	return "absolute"
}

// ReadHandles reads up to max references starting at base. It stops at the
// first read error, at end bit end, or when the position fails to advance,
// and returns what it has so far.
func (r *Reader) ReadHandles(base uint64, mode HandleMode, max int, end uint64) []uint64 {
	out := make([]uint64, 0, max)
	cur := base
	for len(out) < max {
		before := r.TellBits()
		if end > 0 && before >= end {
			break
		}
		ref, err := r.ReadH()
		if err != nil || r.TellBits() <= before {
			break
		}
		if end > 0 && r.TellBits() > end {
			break
		}
		v := ref.Resolve(cur)
		out = append(out, v)
		if mode == Chained {
			cur = v
		}
	}
	return out
}
