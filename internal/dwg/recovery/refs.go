package recovery

import (
	"slices"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// DefaultMaxRefs caps the references kept per object
const DefaultMaxRefs = 16

const maxRefReads = 128

// HandleSet answers whether a handle belongs to the object index
type HandleSet interface {
	Has(handle uint64) bool
}

// Role hints for ACIS-related records
const (
	RoleLinkTable    = "acis-link-table"
	RoleHeader       = "acis-header"
	RolePayloadChunk = "acis-payload-chunk"
	RolePayloadMain  = "acis-payload-main"
	RoleAux          = "acis-aux"
	RoleUnknown      = "unknown"
)

// preferredRefTypes lists the record types an ACIS record usually points at.
// Headers point back at their owning solid or the link table, link tables at
// headers and payload, payload chunks at each other.
func preferredRefTypes(typeCode uint16) []uint16 {
	switch typeCode {
	case objects.AcisHeaderType:
		return []uint16{objects.TypeRegion, objects.Type3DSolid, objects.TypeBody, objects.AcisLinkTableType}
	case objects.AcisLinkTableType:
		return []uint16{0x221, 0x222, 0x223, 0x224, 0x225}
	case 0x222, 0x223, 0x224, 0x225:
		return []uint16{0x214, 0x221, 0x222, 0x223, 0x224, 0x225}
	}
	return nil
}

// RoleHint classifies an ACIS-range record by type code and size
func RoleHint(typeCode uint16, dataSize uint32) string {
	switch {
	case typeCode == objects.AcisLinkTableType:
		return RoleLinkTable
	case typeCode == objects.AcisHeaderType:
		return RoleHeader
	case typeCode == 0x222:
		return RolePayloadChunk
	case typeCode >= 0x223 && typeCode <= 0x225:
		if dataSize >= 128 {
			return RolePayloadMain
		}
		return RolePayloadChunk
	case objects.IsAcisCode(typeCode):
		return RoleAux
	}
	return RoleUnknown
}

// refQuality scores what a referenced record's type says about the read
func refQuality(preferred []uint16, refType uint16) int64 {
	switch {
	case slices.Contains(preferred, refType):
		return 6
	case refType >= objects.AcisLinkTableType && refType <= objects.AcisPayloadMaxType:
		return 3
	case refType == objects.TypeRegion || refType == objects.Type3DSolid || refType == objects.TypeBody:
		return 2
	case refType == objects.TypeLayer:
		return -2
	}
	return 0
}

// KnownHandleRefs reads the handle sub-stream of a split-stream record at
// every start candidate and keeps the read that produced the most plausible
// references to objects in known. types, when non-nil, maps handles to type
// codes and feeds the quality signal. The result is empty for revisions
// without a separate handle stream.
func KnownHandleRefs(rec objects.ObjectRecord, s *version.Strategy, h objects.ApiObjectHeader,
	object uint64, known HandleSet, types map[uint64]uint16, maxRefs int,
) ScoredResult[[]uint64] {
	starts := objects.HandleStreamStartCandidates(s, h)
	if len(starts) == 0 {
		return ScoredResult[[]uint64]{}
	}
	if maxRefs <= 0 {
		maxRefs = DefaultMaxRefs
	}
	total := h.TotalBits()
	canonical, hasCanonical := h.HandleStreamStart()
	preferred := preferredRefTypes(h.TypeCode)

	cands := make([]Candidate[[]uint64], 0, len(starts))
	qualities := make([]int64, 0, len(starts))
	for _, start := range starts {
		refs, quality := readKnownRefs(rec.Reader(), start, total, object, known, types, preferred, maxRefs)
		var delta int64
		if hasCanonical {
			delta = Distance(canonical, start)
		}
		score := quality*32 + int64(len(refs))*4 - delta
		cands = append(cands, Candidate[[]uint64]{
			Value: refs,
			Score: -score,
			Rank:  -len(refs),
			Prov:  Provenance{StartBit: start, Delta: delta, Source: "handle-stream"},
		})
		qualities = append(qualities, quality)
	}
	res, ok := Select(cands)
	if !ok {
		return res
	}
	winner := slices.IndexFunc(cands, func(c Candidate[[]uint64]) bool {
		return c.Prov.StartBit == res.Winner.Prov.StartBit
	})
	return res.WithQuality(len(res.Value), qualities[winner])
}

func readKnownRefs(r *bitstream.Reader, start, total, object uint64, known HandleSet,
	types map[uint64]uint16, preferred []uint16, maxRefs int,
) ([]uint64, int64) {
	r.SetBitPos(start)
	var refs []uint64
	seen := make(map[uint64]struct{})
	var quality int64
	for range maxRefReads {
		before := r.TellBits()
		if before >= total {
			break
		}
		v, err := r.ReadHandle(object)
		if err != nil || r.TellBits() <= before {
			break
		}
		if v == 0 || v == object || !known.Has(v) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		refs = append(refs, v)
		if t, ok := types[v]; ok {
			quality += refQuality(preferred, t)
		}
		if len(refs) >= maxRefs {
			break
		}
	}
	return refs, quality
}
