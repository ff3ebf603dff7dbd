package lsh

import (
	"math"
)

// RowsPerBand returns P / bands, or 0 when bands does not divide P.
func RowsPerBand(numPerm, bands int) int {
	if bands < 1 || numPerm < 1 || numPerm%bands != 0 {
		return 0
	}
	return numPerm / bands
}

// Threshold returns the similarity at which the collision S-curve of a
// (numPerm, bands) split inflects: (1/b)^(1/r). It returns NaN for an
// invalid split.
func Threshold(numPerm, bands int) float64 {
	rows := RowsPerBand(numPerm, bands)
	if rows == 0 {
		return math.NaN()
	}
	return math.Pow(1/float64(bands), 1/float64(rows))
}

// CollisionProbability is the chance that two documents with true Jaccard
// similarity j share at least one band: 1 - (1 - j^r)^b.
func CollisionProbability(j float64, numPerm, bands int) float64 {
	rows := RowsPerBand(numPerm, bands)
	if rows == 0 {
		return math.NaN()
	}
	return 1 - math.Pow(1-math.Pow(j, float64(rows)), float64(bands))
}

// ChooseBands picks the divisor of numPerm whose threshold is closest to t.
// Ties go to the larger band count, which favors recall. It is a sizing aid
// for choosing configuration and is never consulted per query.
func ChooseBands(numPerm int, t float64) int {
	best := 0
	bestDist := math.Inf(1)
	for b := 1; b <= numPerm; b++ {
		if numPerm%b != 0 {
			continue
		}
		if d := math.Abs(Threshold(numPerm, b) - t); d <= bestDist {
			best, bestDist = b, d
		}
	}
	return best
}
