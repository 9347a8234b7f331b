package entities

import (
	"math"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
	"github.com/a3tai/dwg-reader/internal/dwg/recovery"
)

const (
	lineScanMaxDelta   = 256
	lineScanWindow     = 6
	lineScanMaxCoord   = 1e9
	lineHighConfDelta  = 24
	lineHighConfScore  = 96
	lineScanRawPenalty = 8
	lineScan3BDBonus   = 16
)

type lineParser struct {
	read   func(*bitstream.Reader) (lineBody, error)
	adjust int64
}

// Parsers tried at every scan offset. The raw RD/DD form is penalized and
// the 3BD form, which is what R13/R14 define, is favoured.
var lineScanParsers = []lineParser{
	{read: readLineCompact},
	{read: readLineRaw, adjust: lineScanRawPenalty},
	{read: readLine3BD, adjust: -lineScan3BDBonus},
}

// scanLine tries every bit offset up to 256 past the type prefix with each
// body layout and keeps the most plausible geometry. Offsets near the one
// that won last time are tried first; a clearly good candidate ends the scan
// early.
func (d *Decoder) scanLine(o Object) (Line, error) {
	base := o.Header.PrefixEnd
	preferred := d.lineDelta
	lo := uint64(0)
	if preferred > lineScanWindow {
		lo = preferred - lineScanWindow
	}
	hi := min(preferred+lineScanWindow, lineScanMaxDelta)

	order := make([]uint64, 0, lineScanMaxDelta+1)
	for delta := lo; delta <= hi; delta++ {
		order = append(order, delta)
	}
	for delta := uint64(0); delta <= lineScanMaxDelta; delta++ {
		if delta >= lo && delta <= hi {
			continue
		}
		order = append(order, delta)
	}

	var cands []recovery.Candidate[lineBody]
	for _, delta := range order {
		for _, p := range lineScanParsers {
			r := o.Record.Reader()
			r.SetBitPos(base + delta)
			body, err := p.read(r)
			if err != nil {
				continue
			}
			score, ok := scoreLineCandidate(delta, body)
			if !ok {
				continue
			}
			score = recovery.SatSub(score+p.adjust, 0)
			c := recovery.Candidate[lineBody]{
				Value: body,
				Score: score,
				Rank:  len(cands),
				Prov:  recovery.Provenance{Base: base, StartBit: base + delta, Delta: int64(delta), Source: "line-scan"},
			}
			if highConfidenceLine(delta, body, score) {
				d.lineDelta = delta
				return d.scannedLine(o, c), nil
			}
			cands = append(cands, c)
		}
	}
	res, ok := recovery.Select(cands)
	if !ok {
		return Line{}, dwgerr.New(dwgerr.KindDecode, "no plausible LINE geometry in record")
	}
	d.lineDelta = uint64(res.Winner.Prov.Delta)
	return d.scannedLine(o, res.Winner), nil
}

func (d *Decoder) scannedLine(o Object, c recovery.Candidate[lineBody]) Line {
	line := c.Value.entity(Base{Handle: o.Handle})
	line.Recovered = true
	return line
}

// scoreLineCandidate rates a scanned LINE body, lower is better. Degenerate
// geometry, unit-ish defaults and non-zero z are penalized since misaligned
// reads tend to collapse into them.
func scoreLineCandidate(delta uint64, b lineBody) (int64, bool) {
	geom := []float64{b.start[0], b.start[1], b.start[2], b.end[0], b.end[1], b.end[2]}
	all := append(append([]float64{}, geom...), b.extrusion[:]...)
	if !recovery.Finite(all...) || recovery.MaxAbs(all...) > lineScanMaxCoord {
		return 0, false
	}
	norm := math.Sqrt(b.extrusion[0]*b.extrusion[0] + b.extrusion[1]*b.extrusion[1] + b.extrusion[2]*b.extrusion[2])
	if norm < 1e-9 || norm > 1e3 {
		return 0, false
	}

	score := int64(delta) + int64(math.Round(math.Abs(norm-1)*64))
	length2 := squaredLength(b)
	geomMax := recovery.MaxAbs(geom...)
	unitish := 0
	for _, v := range geom {
		if math.Abs(v) < 1e-9 || math.Abs(v-1) < 1e-9 || math.Abs(v+1) < 1e-9 {
			unitish++
		}
	}
	if length2 < 1e-18 {
		score += 1500
	}
	if geomMax < 1e-6 {
		score += 2000
	}
	if geomMax <= 1+1e-9 {
		score += 256
	}
	if unitish >= 5 {
		score += 192
	}
	if length2 <= 1+1e-9 {
		score += 128
	}
	if math.Abs(b.start[2]) > 1e-6 || math.Abs(b.end[2]) > 1e-6 {
		score += 512
	}
	if math.Abs(b.extrusion[0])+math.Abs(b.extrusion[1]) < 1e-6 && math.Abs(b.extrusion[2]-1) < 1e-6 {
		score = recovery.SatSub(score, 8)
	}
	return score, true
}

func highConfidenceLine(delta uint64, b lineBody, score int64) bool {
	if delta < lineHighConfDelta || score > lineHighConfScore {
		return false
	}
	geom := []float64{b.start[0], b.start[1], b.start[2], b.end[0], b.end[1], b.end[2]}
	if recovery.MaxAbs(geom...) < 2 || squaredLength(b) < 1 {
		return false
	}
	if math.Abs(b.start[2]) > 1e-6 || math.Abs(b.end[2]) > 1e-6 {
		return false
	}
	return math.Abs(b.extrusion[0])+math.Abs(b.extrusion[1])+math.Abs(b.extrusion[2]-1) < 1e-6
}

func squaredLength(b lineBody) float64 {
	dx := b.start[0] - b.end[0]
	dy := b.start[1] - b.end[1]
	dz := b.start[2] - b.end[2]
	return dx*dx + dy*dy + dz*dz
}
