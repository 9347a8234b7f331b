package resolve

import (
	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/entities"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
	"github.com/a3tai/dwg-reader/internal/dwg/version"
)

// Layer search weights. The first-slot and default-layer penalties stop
// the search from settling on references that match almost any record;
// they are tuned against real files, not taken from the format.
const (
	layerUnknownScore     = 50000
	layerNullScore        = 10000
	layerSlotWeight       = 16
	layerSlotBonus        = 120
	layerFirstSlotPenalty = 200
	layerChainedPenalty   = 20
	layerParsedBonus      = 80
	layerDefaultPenalty   = 150

	layerSpan     = 256
	layerMaxReads = 64
)

// dimension records keep two extra references ahead of the common block
var dimensionCodes = map[uint16]bool{
	objects.TypeDimLinear:   true,
	objects.TypeDimRadius:   true,
	objects.TypeDimDiameter: true,
}

func layerScore(h uint64, layers HandleSet) int64 {
	switch {
	case layers.Has(h):
		return 0
	case h == 0:
		return layerNullScore
	default:
		return layerUnknownScore
	}
}

// expectedLayerSlot is the position of the layer reference in the handle
// stream according to the common header read at the canonical boundary
func expectedLayerSlot(s *version.Strategy, o entities.Object) (int, bool) {
	end, ok := canonicalEnd(o.Header)
	if !ok {
		return 0, false
	}
	ce, err := entities.ReadCommonEntity(o.Reader(), s, o.Header, end)
	if err != nil {
		return 0, false
	}
	idx := ce.LayerRefIndex(s)
	if dimensionCodes[o.Header.TypeCode] {
		idx += 2
	}
	return idx, true
}

// commonHeaderLayer reads the layer through the common header at the
// canonical boundary
func commonHeaderLayer(s *version.Strategy, o entities.Object) (uint64, bool) {
	r := o.Reader()
	ce, err := entities.ReadCommonEntity(r, s, o.Header, 0)
	if err != nil || !ce.HasHandleStart {
		return 0, false
	}
	ce.Handle = o.Handle
	r.SetBitPos(ce.HandleStart)
	ch, err := entities.ReadCommonHandles(r, s, ce, true)
	if err != nil {
		return 0, false
	}
	return ch.Layer, true
}

// EntityLayer recovers the layer of a split-stream entity. parsed is the
// layer the canonical decode produced. When no known layer turns up the
// result falls back to parsed if it is a known layer, else to the smallest
// known layer. Other revisions, or an empty layer set, return parsed with
// a zero Count.
func EntityLayer(s *version.Strategy, o entities.Object, parsed uint64, layers HandleSet) recovery.ScoredResult[uint64] {
	if !s.SplitStreams || len(layers) == 0 {
		return recovery.ScoredResult[uint64]{Value: parsed}
	}
	defaultLayer, _ := layers.Min()
	canonical, hasCanonical := canonicalEnd(o.Header)
	expected, hasExpected := expectedLayerSlot(s, o)

	// only known layers can win; unknown and null reads score far above
	// anything a known layer reaches
	var f fold[uint64]
	if layers.Has(parsed) {
		f.add(parsed, layerScore(parsed, layers)+1, recovery.Provenance{Source: "parsed"})
	}
	if l, ok := commonHeaderLayer(s, o); ok && layers.Has(l) {
		f.add(l, layerScore(l, layers), recovery.Provenance{Base: o.Handle, StartBit: canonical, Source: "common-header"})
	}

	done := func() bool {
		low, ok := f.best()
		return ok && low == 0
	}
	bases := referenceBases(o)
search:
	for _, end := range searchEnds(o, layerSpan) {
		for _, base := range bases {
			for _, mode := range []bitstream.HandleMode{bitstream.Absolute, bitstream.Chained} {
				if done() {
					break search
				}
				r := o.Record.Reader()
				r.SetBitPos(end)
				for i, v := range r.ReadHandles(base, mode, layerMaxReads, 0) {
					if !layers.Has(v) {
						continue
					}
					score := layerScore(v, layers) + int64(i)
					if hasExpected {
						score += recovery.Distance(uint64(i), uint64(expected)) * layerSlotWeight
						if i == expected {
							score = recovery.SatSub(score, layerSlotBonus)
						}
					}
					if i == 0 {
						score += layerFirstSlotPenalty
					}
					if mode == bitstream.Chained {
						score += layerChainedPenalty
					}
					if v == parsed {
						score = recovery.SatSub(score, layerParsedBonus)
					}
					if v == defaultLayer {
						score += layerDefaultPenalty
					}
					f.add(v, score, recovery.Provenance{
						Base:     base,
						StartBit: end,
						Delta:    delta(end, canonical, hasCanonical),
						Chained:  mode == bitstream.Chained,
						Source:   "handle-stream",
					})
					if score == 0 {
						break
					}
				}
			}
		}
	}

	if res, ok := f.selected(); ok {
		return res
	}
	return recovery.ScoredResult[uint64]{Value: defaultLayer}
}
