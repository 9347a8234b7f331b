package recovery

import (
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
	"github.com/a3tai/dwg-reader/internal/dwg/objects"
)

// Range is a half-open bit range [Start, End)
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Bits is the range length
func (rg Range) Bits() uint64 {
	if rg.End <= rg.Start {
		return 0
	}
	return rg.End - rg.Start
}

// StringStreamRanges locates the string sub-stream that ends just before
// endBit. The presence bit sits at endBit-1 and the RS size right before it;
// a size with bit 15 set continues in a second RS further back. The size is
// tried both as a bit count and as a byte count.
func StringStreamRanges(r *bitstream.Reader, endBit uint64) []Range {
	if endBit <= 1 {
		return nil
	}
	trial := r.Clone()
	trial.SetBitPos(endBit - 1)
	present, err := trial.ReadB()
	if err != nil || present == 0 {
		return nil
	}

	sizeStart := endBit - 1
	if sizeStart < 16 {
		return nil
	}
	sizeStart -= 16
	trial.SetBitPos(sizeStart)
	lo, err := trial.ReadRS()
	if err != nil {
		return nil
	}
	size := uint64(lo)
	if size&0x8000 != 0 {
		if sizeStart < 16 {
			return nil
		}
		sizeStart -= 16
		trial.SetBitPos(sizeStart)
		hi, err := trial.ReadRS()
		if err != nil {
			return nil
		}
		size = size&0x7FFF | uint64(hi)<<15
	}

	var out []Range
	for _, mult := range []uint64{1, 8} {
		bits := size * mult
		if bits == 0 || sizeStart < bits {
			continue
		}
		rg := Range{Start: sizeStart - bits, End: sizeStart}
		if len(out) > 0 && out[len(out)-1] == rg {
			continue
		}
		out = append(out, rg)
	}
	// the byte interpretation always starts earlier
	if len(out) == 2 {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

// TextScorer bundles the predicate and quality function a scan uses.
// GapDivisor scales the penalty for text that ends short of the range end.
type TextScorer struct {
	Plausible  func(string) bool
	Quality    func(string) int64
	GapDivisor uint64
}

// MTextScorer scores free text such as MTEXT contents
var MTextScorer = TextScorer{Plausible: IsPlausibleText, Quality: TextQuality, GapDivisor: 64}

// BlockNameScorer scores identifier-like block names
var BlockNameScorer = TextScorer{Plausible: IsPlausibleBlockName, Quality: BlockNameQuality, GapDivisor: 128}

const maxScanTries = 65536

// ScanText tries a wide-string read at every byte-aligned position of rg and
// returns the best plausible one. A read must finish inside the range.
func ScanText(r *bitstream.Reader, rg Range, sc TextScorer) (Candidate[string], bool) {
	if rg.Start >= rg.End {
		return Candidate[string]{}, false
	}
	maxTries := min(rg.Bits()/8+2, maxScanTries)
	var best Candidate[string]
	found := false
	trial := r.Clone()
	tries := uint64(0)
	for bit := rg.Start; bit+16 <= rg.End && tries < maxTries; bit, tries = bit+8, tries+1 {
		trial.SetBitPos(bit)
		s, err := trial.ReadTU()
		if err != nil {
			continue
		}
		endPos := trial.TellBits()
		if endPos > rg.End || !sc.Plausible(s) {
			continue
		}
		div := sc.GapDivisor
		if div == 0 {
			div = 1
		}
		score := sc.Quality(s) + int64((rg.End-endPos)/div)
		if !found || score < best.Score {
			best = Candidate[string]{
				Value: s,
				Score: score,
				Prov:  Provenance{StartBit: bit, Source: "string-stream"},
			}
			found = true
		}
	}
	return best, found
}

// RecoverMText rescans the string stream of an MTEXT record under every
// boundary candidate. The rescanned text only wins when it beats the inline
// text's quality by more than 32.
func RecoverMText(r *bitstream.Reader, h objects.ApiObjectHeader, startBit uint64, inline string) (ScoredResult[string], bool) {
	total := h.TotalBits()
	if total <= startBit+16 {
		return ScoredResult[string]{}, false
	}
	var ends []uint64
	for _, e := range append(objects.EndBitCandidates(h), total) {
		if e > startBit && e <= total {
			ends = append(ends, e)
		}
	}
	ends = SortUnique(ends)
	if len(ends) == 0 {
		return ScoredResult[string]{}, false
	}

	bound, err := objects.ResolveBoundary(h)
	hasCanonical := err == nil && h.HasHandleStream
	var cands []Candidate[string]
	for _, end := range ends {
		for _, rg := range StringStreamRanges(r, end) {
			c, ok := ScanText(r, rg, MTextScorer)
			if !ok {
				continue
			}
			if hasCanonical {
				c.Score += Distance(bound.Canonical, end)
				c.Prov.Delta = int64(end) - int64(bound.Canonical)
			}
			cands = append(cands, c)
		}
	}
	best, ok := Select(cands)
	if !ok {
		return best, false
	}
	if best.Winner.Score+32 >= TextQuality(inline) {
		return best, false
	}
	return best, true
}

// IsPlausibleText accepts 2..4096 characters without NUL, replacement or
// control characters other than line breaks and tabs, with at least one
// meaningful character
func IsPlausibleText(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 2 || n > 4096 {
		return false
	}
	meaningful := false
	for _, ch := range s {
		if ch == 0 || ch == utf8.RuneError {
			return false
		}
		if unicode.IsControl(ch) && !isLineSpace(ch) {
			return false
		}
		if isAlnum(ch) || unicode.IsSpace(ch) || isASCIIPunct(ch) {
			meaningful = true
		}
	}
	return meaningful
}

// TextQuality penalizes degenerate lengths, NUL/replacement and control
// characters and text with nothing meaningful in it. Lower is better.
func TextQuality(s string) int64 {
	if s == "" {
		return 1_000_000
	}
	n := int64(utf8.RuneCountInString(s))
	var score int64
	switch {
	case n <= 1:
		score += 50_000
	case n == 2:
		score += 5_000
	}
	if n > 4096 {
		score += (n - 4096) * 10
	}
	meaningful := 0
	for _, ch := range s {
		if ch == 0 || ch == utf8.RuneError {
			score += 10_000
			continue
		}
		if unicode.IsControl(ch) && !isLineSpace(ch) {
			score += 5_000
			continue
		}
		if !unicode.IsControl(ch) || isLineSpace(ch) {
			meaningful++
		}
	}
	if meaningful == 0 {
		score += 25_000
	}
	return score
}

// IsPlausibleBlockName accepts up to 255 bytes of printable ASCII with at
// least one identifier character
func IsPlausibleBlockName(s string) bool {
	if s == "" || len(s) > 255 {
		return false
	}
	meaningful := false
	for _, ch := range s {
		switch {
		case unicode.IsControl(ch):
			return false
		case isASCIIAlnum(ch) || ch == '_' || ch == '$' || ch == '*' || ch == '-':
			meaningful = true
		case ch == ' ':
		case !isASCIIGraphic(ch):
			return false
		}
	}
	return meaningful
}

// BlockNameQuality rewards identifier-like names. Spaces, symbols and
// non-ASCII characters are penalized, as are very short, very long,
// anonymous and all-digit names.
func BlockNameQuality(s string) int64 {
	var score int64
	switch n := len(s); {
	case n <= 2:
		score += 24
	case n <= 4:
		score += 8
	case n > 96:
		score += int64(n - 96)
	}
	digits := true
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			digits = false
		}
		switch {
		case isASCIIAlnum(ch) || ch == '_' || ch == '$' || ch == '*' || ch == '-' || ch == '.':
		case ch == ' ':
			score += 120
		case isASCIIGraphic(ch):
			score += 240
		default:
			score += 500
		}
	}
	if len(s) > 0 && s[0] == '*' {
		score += 8
	}
	if digits {
		score += 64
	}
	return score
}

func isLineSpace(ch rune) bool {
	return ch == '\n' || ch == '\r' || ch == '\t'
}

func isAlnum(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsNumber(ch)
}

func isASCIIAlnum(ch rune) bool {
	return ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isASCIIGraphic(ch rune) bool {
	return ch > 0x20 && ch < 0x7F
}

func isASCIIPunct(ch rune) bool {
	return isASCIIGraphic(ch) && !isASCIIAlnum(ch)
}
