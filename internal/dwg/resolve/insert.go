package resolve

import (
	"cmp"
	"slices"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

const (
	insertSpan       = 256
	insertFineSpan   = 48
	insertMaxReads   = 64
	insertSlotWeight = 64
	insertEndWeight  = 4

	// DefaultInsertCandidates is the candidate list length pass 2 asks for
	DefaultInsertCandidates = 8
)

// insertWeights are the score terms of one INSERT search. Header reads
// decode the whole common header at a trial boundary; stream reads walk the
// handle stream from it.
type insertWeights struct {
	headerOffBase, headerNamed, headerParsed, headerKnown  int64
	streamOffBase, streamFixed, streamChained, streamNamed int64
	streamParsed, streamKnown                              int64
}

var (
	// pass 1 only accepts known BLOCK_HEADER handles
	recoverWeights = insertWeights{
		headerOffBase: 32, headerNamed: 24, headerParsed: 16,
		streamOffBase: 40, streamFixed: 8, streamChained: 24, streamNamed: 20, streamParsed: 12,
	}
	// the candidate list keeps everything and rewards known handles instead
	candidateWeights = insertWeights{
		headerOffBase: 32, headerParsed: 16, headerKnown: 80,
		streamOffBase: 40, streamFixed: 8, streamChained: 24, streamParsed: 12, streamKnown: 72,
	}
)

// insertSearch holds what every trial of one INSERT shares
type insertSearch struct {
	s         *version.Strategy
	o         entities.Object
	parsed    uint64
	known     HandleSet
	named     HandleSet
	canonical uint64
	hasCanon  bool
	bases     []uint64
	ends      []uint64
	w         insertWeights
	// knownOnly drops candidates outside known
	knownOnly bool
}

func (q *insertSearch) headerScore(end, base, v uint64) int64 {
	var score int64
	if q.hasCanon {
		score = recovery.Distance(q.canonical, end) * insertEndWeight
	}
	if base != q.o.Handle {
		score += q.w.headerOffBase
	}
	if q.named.Has(v) {
		score = recovery.SatSub(score, q.w.headerNamed)
	}
	if v == q.parsed {
		score = recovery.SatSub(score, q.w.headerParsed)
	}
	if q.known.Has(v) {
		score = recovery.SatSub(score, q.w.headerKnown)
	}
	return score
}

func (q *insertSearch) streamScore(i int, end, base, v uint64, chained bool) int64 {
	score := int64(i) * insertSlotWeight
	if q.hasCanon {
		score += recovery.Distance(q.canonical, end)
	}
	if base != q.o.Handle {
		score += q.w.streamOffBase
	}
	if chained {
		score += q.w.streamChained
	} else {
		score += q.w.streamFixed
	}
	if q.named.Has(v) {
		score = recovery.SatSub(score, q.w.streamNamed)
	}
	if v == q.parsed {
		score = recovery.SatSub(score, q.w.streamParsed)
	}
	if q.known.Has(v) {
		score = recovery.SatSub(score, q.w.streamKnown)
	}
	return score
}

func (q *insertSearch) accept(v uint64) bool {
	if q.knownOnly {
		return q.known.Has(v)
	}
	return v != 0 && v != q.o.Handle
}

// run decodes the block reference after the common handles at every trial
// boundary, then reads the handle stream from every trial boundary
func (q *insertSearch) run(f *fold[uint64]) {
	for _, end := range q.ends {
		r := q.o.Reader()
		ce, err := entities.ReadCommonEntity(r, q.s, q.o.Header, end)
		if err != nil || !ce.HasHandleStart {
			continue
		}
		for _, base := range q.bases {
			ce.Handle = base
			hr := r.Clone()
			hr.SetBitPos(ce.HandleStart)
			if _, err := entities.ReadCommonHandles(hr, q.s, ce, false); err != nil {
				continue
			}
			v, err := hr.ReadHandle(base)
			if err != nil || !q.accept(v) {
				continue
			}
			f.add(v, q.headerScore(end, base, v), recovery.Provenance{
				Base: base, StartBit: end, Delta: delta(end, q.canonical, q.hasCanon), Source: "common-header",
			})
		}
	}
	for _, end := range q.ends {
		for _, base := range q.bases {
			for _, mode := range []bitstream.HandleMode{bitstream.Absolute, bitstream.Chained} {
				r := q.o.Record.Reader()
				r.SetBitPos(end)
				chained := mode == bitstream.Chained
				for i, v := range r.ReadHandles(base, mode, insertMaxReads, 0) {
					if !q.accept(v) {
						continue
					}
					f.add(v, q.streamScore(i, end, base, v, chained), recovery.Provenance{
						Base: base, StartBit: end, Delta: delta(end, q.canonical, q.hasCanon),
						Chained: chained, Source: "handle-stream",
					})
				}
			}
		}
	}
}

// InsertBlockHandle recovers the BLOCK_HEADER an R2010+ INSERT refers to.
// parsed is the reference the canonical decode produced, zero if none.
// A parsed handle that is a known, named BLOCK_HEADER is returned as is.
// Otherwise the best known handle found by the search wins, falling back to
// parsed.
func InsertBlockHandle(s *version.Strategy, o entities.Object, parsed uint64, known, named HandleSet) recovery.ScoredResult[uint64] {
	fallback := recovery.ScoredResult[uint64]{Value: parsed}
	if !s.SplitStreams || len(known) == 0 {
		return fallback
	}
	var f fold[uint64]
	if parsed != 0 && known.Has(parsed) {
		if len(named) == 0 || named.Has(parsed) {
			return recovery.ScoredResult[uint64]{Value: parsed, Count: 1, Confidence: recovery.Confidence(1, 0, 0, false)}
		}
		f.add(parsed, 10, recovery.Provenance{Source: "parsed"})
	}
	canonical, hasCanon := canonicalEnd(o.Header)
	q := insertSearch{
		s: s, o: o, parsed: parsed, known: known, named: named,
		canonical: canonical, hasCanon: hasCanon,
		bases:     referenceBases(o),
		ends:      searchEnds(o, insertSpan),
		w:         recoverWeights,
		knownOnly: true,
	}
	q.run(&f)
	if res, ok := f.selected(); ok {
		return res
	}
	return fallback
}

// InsertBlockCandidates ranks every handle an R2010+ INSERT might refer to,
// best first, at most limit of them. Known BLOCK_HEADER handles are
// favoured but unknown ones are kept. parsed leads the list when the search
// never produced it. Other revisions return just parsed.
func InsertBlockCandidates(s *version.Strategy, o entities.Object, parsed uint64, known HandleSet, limit int) []uint64 {
	if !s.SplitStreams {
		if parsed == 0 {
			return nil
		}
		return []uint64{parsed}
	}
	canonical, hasCanon := canonicalEnd(o.Header)
	bases := around(o.Handle)
	if o.Handle > 2 {
		bases = append(bases, o.Handle-2)
	}
	bases = append(bases, o.Handle+2)
	if h, ok := embeddedHandle(o); ok {
		bases = append(bases, around(h)...)
	}
	if h, ok := sizedHandle(o); ok {
		bases = append(bases, around(h)...)
	}
	ends := searchEnds(o, insertSpan)
	if hasCanon {
		ends = recovery.SortUnique(append(ends, recovery.Window(canonical, insertFineSpan, 1)...))
	}
	q := insertSearch{
		s: s, o: o, parsed: parsed, known: known, named: nil,
		canonical: canonical, hasCanon: hasCanon,
		bases: recovery.SortUnique(bases),
		ends:  ends,
		w:     candidateWeights,
	}
	var f fold[uint64]
	q.run(&f)

	ranked := slices.Clone(f.cands)
	slices.SortFunc(ranked, func(a, b recovery.Candidate[uint64]) int {
		return cmp.Or(cmp.Compare(a.Score, b.Score), cmp.Compare(a.Value, b.Value))
	})
	out := make([]uint64, 0, len(ranked)+1)
	if parsed != 0 && !slices.ContainsFunc(ranked, func(c recovery.Candidate[uint64]) bool { return c.Value == parsed }) {
		out = append(out, parsed)
	}
	for _, c := range ranked {
		out = append(out, c.Value)
	}
	return out[:min(len(out), max(limit, 1))]
}
