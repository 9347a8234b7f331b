package resolve

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

const (
	nameEndSpan = 64
	// wholeRecordBias is added to names found by scanning the full record
	// instead of a located string stream
	wholeRecordBias = 32
)

// BlockHeaderName recovers the name of a BLOCK_HEADER record whose string
// stream could not be read at the canonical boundary. Every boundary
// candidate is widened by a few bytes; at each one the located string
// streams are read at their start and scanned, and when that finds nothing
// the data between the common header and the boundary is scanned. Names
// further from the canonical boundary score worse.
func BlockHeaderName(s *version.Strategy, o entities.Object) (recovery.ScoredResult[string], bool) {
	if !s.StringStream {
		return recovery.ScoredResult[string]{}, false
	}
	r := o.Reader()
	start := o.Header.PrefixEnd
	if _, err := entities.ReadCommonObject(r, s, o.Header); err == nil {
		start = r.TellBits()
	}
	total := o.Header.TotalBits()

	var ends []uint64
	for _, base := range objects.EndBitCandidates(o.Header) {
		ends = append(ends, recovery.Window(base, nameEndSpan, 8)...)
	}
	if v, ok := sizeField(o); ok && v > 0 {
		ends = append(ends, recovery.Window(v, nameEndSpan, 8)...)
	}
	ends = within(ends, start, total)
	if len(ends) == 0 && total > start {
		ends = []uint64{total}
	}
	canonical, hasCanon := canonicalEnd(o.Header)

	var f fold[string]
	for _, end := range ends {
		c, ok := streamName(r, end)
		if !ok {
			c, ok = recovery.ScanText(r, recovery.Range{Start: start, End: end}, recovery.BlockNameScorer)
		}
		if !ok {
			continue
		}
		if hasCanon {
			c.Score += recovery.Distance(canonical, end)
		}
		f.add(c.Value, c.Score, recovery.Provenance{
			StartBit: c.Prov.StartBit, Delta: delta(end, canonical, hasCanon), Source: c.Prov.Source,
		})
	}
	return f.selected()
}

// streamName reads the best name out of the string streams that end at end:
// the first string of each stream, or failing that a scan of it
func streamName(br *bitstream.Reader, end uint64) (recovery.Candidate[string], bool) {
	var best recovery.Candidate[string]
	found := false
	keep := func(c recovery.Candidate[string]) {
		if !found || c.Score < best.Score {
			best, found = c, true
		}
	}
	for _, rg := range recovery.StringStreamRanges(br, end) {
		trial := br.Clone()
		trial.SetBitPos(rg.Start)
		if name, err := trial.ReadTU(); err == nil && trial.TellBits() <= rg.End && recovery.IsPlausibleBlockName(name) {
			keep(recovery.Candidate[string]{
				Value: name,
				Score: recovery.BlockNameQuality(name),
				Prov:  recovery.Provenance{StartBit: rg.Start, Source: "string-stream"},
			})
		}
		if c, ok := recovery.ScanText(br, rg, recovery.BlockNameScorer); ok {
			keep(c)
		}
	}
	return best, found
}

// BlockRecordName recovers a block name by scanning the string streams at
// every boundary candidate and, with a fixed bias, the whole record. It
// serves BLOCK records and BLOCK_HEADER records that nothing else named.
func BlockRecordName(s *version.Strategy, o entities.Object) (recovery.ScoredResult[string], bool) {
	r := o.Record.Reader()
	start := o.Header.PrefixEnd
	total := o.Header.TotalBits()
	if start >= total {
		return recovery.ScoredResult[string]{}, false
	}
	var f fold[string]
	if s.SplitStreams {
		canonical, hasCanon := canonicalEnd(o.Header)
		ends := within(append(objects.EndBitCandidates(o.Header), total), start, total)
		for _, end := range ends {
			for _, rg := range recovery.StringStreamRanges(r, end) {
				c, ok := recovery.ScanText(r, rg, recovery.BlockNameScorer)
				if !ok {
					continue
				}
				if hasCanon {
					c.Score += recovery.Distance(canonical, end)
				}
				c.Prov.Delta = delta(end, canonical, hasCanon)
				f.add(c.Value, c.Score, c.Prov)
			}
		}
	}
	if c, ok := recovery.ScanText(r, recovery.Range{Start: start, End: total}, recovery.BlockNameScorer); ok {
		c.Prov.Source = "record-scan"
		f.add(c.Value, c.Score+wholeRecordBias, c.Prov)
	}
	return f.selected()
}

// within keeps the positions in (start, total], sorted and unique
func within(v []uint64, start, total uint64) []uint64 {
	out := v[:0]
	for _, x := range v {
		if x > start && x <= total {
			out = append(out, x)
		}
	}
	return recovery.SortUnique(out)
}
