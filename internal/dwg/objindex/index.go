// Package objindex parses the object map that maps handles to record offsets.
package objindex

import (
	"fmt"
	"math"
	"sort"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

// ObjectRef locates one object record in the object data
type ObjectRef struct {
	Handle uint64 `json:"handle"`
	Offset uint64 `json:"offset"`
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("0x%X@%d", r.Handle, r.Offset)
}

// Stats summarizes an object map parse
type Stats struct {
	Blocks    int `json:"blocks"`
	Entries   int `json:"entries"`
	Recovered int `json:"recovered"` // corrupt deltas skipped in permissive mode
	Dropped   int `json:"dropped"`   // entries removed by Within
}

// Index is the ordered handle to offset table of one file
type Index struct {
	refs     []ObjectRef
	byHandle map[uint64]int
	stats    Stats
}

// FromRefs builds an index from an ordered list of refs. A repeated handle
// resolves to its last entry.
func FromRefs(refs []ObjectRef) *Index {
	ix := &Index{refs: refs, byHandle: make(map[uint64]int, len(refs))}
	for i, r := range refs {
		ix.byHandle[r.Handle] = i
	}
	ix.stats.Entries = len(refs)
	return ix
}

// Parse decodes an object map. The map is a run of blocks, each a big-endian
// size, signed modular-char (handle, offset) delta pairs and a CRC. Delta
// accumulators reset at every block. A block of size 2 ends the map.
func Parse(data []byte, opts dwgerr.ParseOptions) (*Index, error) {
	r := bitstream.NewReader(data)
	var refs []ObjectRef
	stats := Stats{}

	for r.Remaining() >= 16 {
		size, err := r.ReadRSBE()
		if err != nil {
			return nil, err
		}
		if size == 2 {
			break
		}
		if size < 2 {
			return nil, dwgerr.Newf(dwgerr.KindFormat, "invalid AcDb:Handles block size %d", size).WithOffset(bytePos(r))
		}
		payload := uint64(size-2) * 8
		if r.Remaining() < payload {
			return nil, dwgerr.New(dwgerr.KindFormat, "AcDb:Handles block exceeds remaining bytes").WithOffset(bytePos(r))
		}
		stats.Blocks++

		start := r.TellBits()
		var handle, offset int64
		for r.TellBits()-start < payload {
			prevHandle, prevOffset := handle, offset
			dh, err := r.ReadMC()
			if err != nil {
				return nil, err
			}
			do, err := r.ReadMC()
			if err != nil {
				return nil, err
			}
			handle += dh
			offset += do

			if handle < 0 || offset < 0 {
				if opts.Strict {
					return nil, dwgerr.New(dwgerr.KindFormat, "AcDb:Handles contains negative handle or offset").WithOffset(bytePos(r))
				}
				handle, offset = prevHandle, prevOffset
				stats.Recovered++
				continue
			}
			if offset > math.MaxUint32 {
				if opts.Strict {
					return nil, dwgerr.New(dwgerr.KindFormat, "AcDb:Handles offset exceeds u32 range").WithOffset(bytePos(r))
				}
				handle, offset = prevHandle, prevOffset
				stats.Recovered++
				continue
			}

			refs = append(refs, ObjectRef{Handle: uint64(handle), Offset: uint64(offset)})
			if opts.MaxObjects > 0 && uint32(len(refs)) > opts.MaxObjects {
				return nil, dwgerr.Newf(dwgerr.KindFormat, "object count exceeds limit %d", opts.MaxObjects)
			}
		}

		if r.Remaining() < 16 {
			break
		}
		if _, err := r.ReadRSBE(); err != nil {
			return nil, err
		}
	}

	ix := FromRefs(refs)
	ix.stats.Blocks = stats.Blocks
	ix.stats.Recovered = stats.Recovered
	return ix, nil
}

func bytePos(r *bitstream.Reader) uint64 {
	return r.TellBits() / 8
}

// Refs returns the entries in map order
func (ix *Index) Refs() []ObjectRef {
	return ix.refs
}

// Len returns the number of entries
func (ix *Index) Len() int {
	return len(ix.refs)
}

// Stats returns parse statistics
func (ix *Index) Stats() Stats {
	return ix.stats
}

// Lookup returns the entry for a handle
func (ix *Index) Lookup(handle uint64) (ObjectRef, bool) {
	i, ok := ix.byHandle[handle]
	if !ok {
		return ObjectRef{}, false
	}
	return ix.refs[i], true
}

// Has reports whether the handle is present
func (ix *Index) Has(handle uint64) bool {
	_, ok := ix.byHandle[handle]
	return ok
}

// Position returns the map-order position of a handle
func (ix *Index) Position(handle uint64) (int, bool) {
	i, ok := ix.byHandle[handle]
	return i, ok
}

// Handles returns every handle in ascending order
func (ix *Index) Handles() []uint64 {
	out := make([]uint64, 0, len(ix.byHandle))
	for h := range ix.byHandle {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Within returns the entries whose offset points inside a buffer of size n
func (ix *Index) Within(n uint64) *Index {
	return ix.Filter(func(r ObjectRef) bool { return r.Offset < n })
}

// Filter returns a new index with the entries keep accepts
func (ix *Index) Filter(keep func(ObjectRef) bool) *Index {
	refs := make([]ObjectRef, 0, len(ix.refs))
	for _, r := range ix.refs {
		if keep(r) {
			refs = append(refs, r)
		}
	}
	out := FromRefs(refs)
	out.stats.Blocks = ix.stats.Blocks
	out.stats.Recovered = ix.stats.Recovered
	out.stats.Dropped = ix.stats.Dropped + len(ix.refs) - len(refs)
	return out
}
