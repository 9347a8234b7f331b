package recovery

import (
	"math"

	"github.com/a3tai/dwg-reader/internal/dwg/bitstream"
)

// ValuePenalty grows with the magnitude of a coordinate. Non-finite values
// get the largest penalty.
func ValuePenalty(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 1_000_000
	}
	switch a := math.Abs(v); {
	case a > 1e12:
		return 100_000
	case a > 1e9:
		return 10_000
	case a > 1e6:
		return 500
	}
	return 0
}

// PointPenalty sums ValuePenalty over the coordinates of p
func PointPenalty(p bitstream.Point3) int64 {
	var score int64
	for _, v := range p {
		score += ValuePenalty(v)
	}
	return score
}

// Finite reports whether every value is a finite number
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MaxAbs is the largest magnitude among values
func MaxAbs(values ...float64) float64 {
	m := 0.0
	for _, v := range values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}
