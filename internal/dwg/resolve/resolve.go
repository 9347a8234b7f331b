// Package resolve recovers entity references and names that the canonical
// record layout does not position reliably: the layer of an entity, the
// BLOCK_HEADER an INSERT points at, and the names of block records. Every
// search enumerates read positions and bases, scores each decode and folds
// the candidates with recovery.Select.
package resolve

import (
	"math"
	"slices"

	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
)

// HandleSet is a read-only set of handles used as a scoring oracle
type HandleSet map[uint64]struct{}

// NewHandleSet builds a set from handles
func NewHandleSet(handles ...uint64) HandleSet {
	s := make(HandleSet, len(handles))
	for _, h := range handles {
		s[h] = struct{}{}
	}
	return s
}

// Has reports membership
func (s HandleSet) Has(h uint64) bool {
	_, ok := s[h]
	return ok
}

// Min returns the smallest handle in the set
func (s HandleSet) Min() (uint64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	m := uint64(math.MaxUint64)
	for h := range s {
		m = min(m, h)
	}
	return m, true
}

// Sorted returns the handles in ascending order
func (s HandleSet) Sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// canonicalEnd is the nominal data end of a split-stream record
func canonicalEnd(h objects.ApiObjectHeader) (uint64, bool) {
	if !h.HasHandleStream {
		return 0, false
	}
	b, err := objects.ResolveBoundary(h)
	if err != nil {
		return 0, false
	}
	return b.Canonical, true
}

// embeddedHandle is the handle stored right after the type prefix
func embeddedHandle(o entities.Object) (uint64, bool) {
	ref, err := o.Reader().ReadH()
	if err != nil || ref.Value == 0 {
		return 0, false
	}
	return ref.Value, true
}

// sizeField reads the RL that older layouts keep after the type prefix.
// Some writers emit it on split-stream revisions too.
func sizeField(o entities.Object) (uint64, bool) {
	v, err := o.Reader().ReadRL()
	if err != nil {
		return 0, false
	}
	return uint64(v), true
}

// sizedHandle is the handle that follows such an RL
func sizedHandle(o entities.Object) (uint64, bool) {
	r := o.Reader()
	if _, err := r.ReadRL(); err != nil {
		return 0, false
	}
	ref, err := r.ReadH()
	if err != nil || ref.Value == 0 {
		return 0, false
	}
	return ref.Value, true
}

// around returns h and its immediate neighbours
func around(h uint64) []uint64 {
	out := []uint64{h}
	if h > 1 {
		out = append(out, h-1)
	}
	if h < math.MaxUint64 {
		out = append(out, h+1)
	}
	return out
}

// referenceBases lists the handles a reference may be encoded against: the
// object handle, the embedded handle and the handle after the size field,
// each with its neighbours, in that order without repeats
func referenceBases(o entities.Object) []uint64 {
	bases := around(o.Handle)
	if h, ok := embeddedHandle(o); ok && h != o.Handle {
		bases = append(bases, around(h)...)
	}
	if h, ok := sizedHandle(o); ok && !slices.Contains(bases, h) {
		bases = append(bases, around(h)...)
	}
	return recovery.Dedup(bases)
}

// searchEnds widens every boundary candidate by span bits and the position
// named by the size field by half that, in byte steps
func searchEnds(o entities.Object, span int64) []uint64 {
	var out []uint64
	for _, base := range objects.EndBitCandidates(o.Header) {
		out = append(out, recovery.Window(base, span, 8)...)
	}
	if v, ok := sizeField(o); ok {
		out = append(out, recovery.Window(v, span/2, 8)...)
	}
	return recovery.SortUnique(out)
}

func delta(end, canonical uint64, hasCanonical bool) int64 {
	if !hasCanonical {
		return 0
	}
	return int64(end) - int64(canonical)
}

// fold keeps the best candidate per value. Rank is the order in which a
// value reached its current score, so among equal scores the earliest
// discovery wins.
type fold[T comparable] struct {
	idx   map[T]int
	cands []recovery.Candidate[T]
	seq   int
	low   int64
}

func (f *fold[T]) add(v T, score int64, prov recovery.Provenance) {
	if f.idx == nil {
		f.idx = make(map[T]int)
	}
	f.seq++
	c := recovery.Candidate[T]{Value: v, Score: score, Rank: f.seq, Prov: prov}
	if len(f.cands) == 0 || score < f.low {
		f.low = score
	}
	if i, ok := f.idx[v]; ok {
		if score < f.cands[i].Score {
			f.cands[i] = c
		}
		return
	}
	f.idx[v] = len(f.cands)
	f.cands = append(f.cands, c)
}

// best returns the lowest score seen so far
func (f *fold[T]) best() (int64, bool) {
	return f.low, len(f.cands) > 0
}

func (f *fold[T]) selected() (recovery.ScoredResult[T], bool) {
	return recovery.Select(f.cands)
}
