package objects

import (
	"sort"

	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

var boundaryDeltas = []int64{-16, -8, 0, 8, 16}

// Handle-stream start windows by record shape
var (
	defaultStartDeltas = []int64{-8, -4, 0, 4, 8}
	headerStartDeltas  = []int64{-16, -8, -4, 0, 4, 8, 16}
	payloadStartDeltas = []int64{-32, -24, -16, -8, -4, 0, 4, 8, 16, 24, 32}
)

// Boundary is the bit position where plain field data ends and the handle
// sub-stream starts, plus nearby alternates observed in real files.
type Boundary struct {
	Canonical  uint64   `json:"canonical"`
	Candidates []uint64 `json:"candidates"`
}

// ResolveBoundary computes the boundary of a header. It is a pure function of
// the data size and the handle stream size.
func ResolveBoundary(h ApiObjectHeader) (Boundary, error) {
	total := h.TotalBits()
	if !h.HasHandleStream {
		return Boundary{Canonical: total}, nil
	}
	hb := uint64(h.HandleStreamBits)
	if hb > total {
		return Boundary{}, dwgerr.New(dwgerr.KindFormat, "handle stream exceeds object data size")
	}
	return Boundary{Canonical: total - hb, Candidates: EndBitCandidates(h)}, nil
}

// EndBitCandidates returns the sorted set of plausible boundaries. Two bases
// are tried, the canonical one and one that assumes the handle stream size
// over-counts by a byte, each widened by up to two bytes either way.
func EndBitCandidates(h ApiObjectHeader) []uint64 {
	if !h.HasHandleStream {
		return nil
	}
	total := h.TotalBits()
	hb := uint64(h.HandleStreamBits)
	bases := []uint64{satSub(total, hb), satSub(total, satSub(hb, 8))}
	var out []uint64
	for _, base := range bases {
		for _, d := range boundaryDeltas {
			c := int64(base) + d
			if c < 0 || uint64(c) > total {
				continue
			}
			out = append(out, uint64(c))
		}
	}
	return sortUnique(out)
}

// StartDeltas returns the handle-stream start window for a type code
func StartDeltas(typeCode uint16) []int64 {
	switch typeCode {
	case 0x214, 0x221:
		return headerStartDeltas
	case 0x222, 0x223, 0x224, 0x225:
		return payloadStartDeltas
	default:
		return defaultStartDeltas
	}
}

// HandleStreamStartCandidates lists bit positions the handle sub-stream may
// start at. Only split-stream revisions produce candidates.
func HandleStreamStartCandidates(s *version.Strategy, h ApiObjectHeader) []uint64 {
	if !s.SplitStreams || !h.HasHandleStream {
		return nil
	}
	total := h.TotalBits()
	bases := EndBitCandidates(h)
	if start, ok := h.HandleStreamStart(); ok {
		bases = append(bases, start)
	}
	var out []uint64
	for _, base := range bases {
		for _, d := range StartDeltas(h.TypeCode) {
			c := int64(base) + d
			if c < 0 || uint64(c) >= total {
				continue
			}
			out = append(out, uint64(c))
		}
	}
	return sortUnique(out)
}

func satSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func sortUnique(v []uint64) []uint64 {
	if len(v) == 0 {
		return v
	}
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })
	out := v[:1]
	for _, x := range v[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
