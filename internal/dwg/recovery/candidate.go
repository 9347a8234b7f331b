// Package recovery resolves fields whose bit position cannot be derived from
// the format rules alone. Callers enumerate candidate decodes, score each one
// and fold the list into a winner with a confidence value.
package recovery

import "slices"

// Provenance records where a candidate was decoded from
type Provenance struct {
	Base     uint64 `json:"base"`
	StartBit uint64 `json:"start_bit"`
	Delta    int64  `json:"delta"`
	Chained  bool   `json:"chained,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Candidate is one hypothesized decode of an ambiguous field. Lower scores
// are more plausible. Rank orders candidates with equal scores, lower first.
type Candidate[T any] struct {
	Value T          `json:"value"`
	Score int64      `json:"score"`
	Rank  int        `json:"rank"`
	Prov  Provenance `json:"provenance"`
}

// ScoredResult is the winner of a fold plus what is known about the runner-up
type ScoredResult[T any] struct {
	Value      T            `json:"value"`
	Winner     Candidate[T] `json:"winner"`
	Count      int          `json:"count"`
	Margin     int64        `json:"margin"`
	HasSecond  bool         `json:"has_second"`
	Confidence uint8        `json:"confidence"`
}

// Better reports whether a is strictly preferred over b. Ties on score go
// to the lower rank, then to the smaller distance from the canonical
// position, then to the fixed-base read over the chained one.
func Better[T any](a, b Candidate[T]) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	da, db := abs64(a.Prov.Delta), abs64(b.Prov.Delta)
	if da != db {
		return da < db
	}
	return !a.Prov.Chained && b.Prov.Chained
}

// Select folds the candidates into a winner. The first of several equally
// good candidates wins. It returns false when cands is empty.
//
// Rank dominates the distance and chained tie-breaks, so those only decide
// between candidates that share a rank. Callers that number candidates in
// discovery order get first-found-wins among equal scores.
func Select[T any](cands []Candidate[T]) (ScoredResult[T], bool) {
	if len(cands) == 0 {
		return ScoredResult[T]{}, false
	}
	best := 0
	for i := 1; i < len(cands); i++ {
		if Better(cands[i], cands[best]) {
			best = i
		}
	}
	res := ScoredResult[T]{
		Value:  cands[best].Value,
		Winner: cands[best],
		Count:  len(cands),
	}
	for i, c := range cands {
		if i == best {
			continue
		}
		margin := c.Score - cands[best].Score
		if !res.HasSecond || margin < res.Margin {
			res.Margin = margin
			res.HasSecond = true
		}
	}
	res.Confidence = Confidence(1, 0, res.Margin, res.HasSecond)
	return res, true
}

// WithQuality recomputes the confidence for a result that stands for items
// values with an accumulated domain quality signal
func (r ScoredResult[T]) WithQuality(items int, quality int64) ScoredResult[T] {
	r.Confidence = Confidence(items, quality, r.Margin, r.HasSecond)
	return r
}

// Confidence maps a fold outcome to 0..100. items is the number of values the
// winner carries, quality a domain signal and margin the score gap to the
// runner-up. A lone candidate gets a moderate fixed boost.
func Confidence(items int, quality int64, margin int64, hasSecond bool) uint8 {
	if items <= 0 {
		return 0
	}
	c := int64(8) + int64(min(items, 8))*7
	if quality > 0 {
		c += min(quality, 12) * 3
	}
	if hasSecond {
		switch {
		case margin >= 48:
			c += 26
		case margin >= 24:
			c += 18
		case margin >= 12:
			c += 12
		case margin >= 6:
			c += 7
		case margin > 0:
			c += 3
		}
	} else {
		c += 14
	}
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return uint8(c)
}

// Window returns base+d for each delta in [-span, span] stepping by step,
// dropping negative positions
func Window(base uint64, span, step int64) []uint64 {
	if step <= 0 {
		return []uint64{base}
	}
	out := make([]uint64, 0, 2*span/step+1)
	for d := -span; d <= span; d += step {
		c := int64(base) + d
		if c < 0 {
			continue
		}
		out = append(out, uint64(c))
	}
	return out
}

// Distance is |a-b| for bit positions
func Distance(a, b uint64) int64 {
	if a > b {
		return int64(a - b)
	}
	return int64(b - a)
}

// SatSub subtracts without going below zero, matching the unsigned scoring
// arithmetic the heuristics were tuned with
func SatSub(a, b int64) int64 {
	if b > a {
		return 0
	}
	return a - b
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// SortUnique sorts positions ascending and drops repeats in place
func SortUnique(v []uint64) []uint64 {
	if len(v) == 0 {
		return v
	}
	slices.Sort(v)
	return slices.Compact(v)
}

// Dedup keeps the first occurrence of every value, preserving order
func Dedup(v []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(v))
	out := v[:0]
	for _, x := range v {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	return out
}
