package stats

import (
	"math"
)

// JostCombine merges independent p-values into one overall significance
// using the volume-integral (Poisson tail) formula, evaluated in log space.
// An empty input or a non-negative log product yields exactly 1.
func JostCombine(pvalues []float64) float64 {
	if len(pvalues) == 0 {
		return 1
	}

	logk := 0.0
	for _, p := range pvalues {
		logk += math.Log(p)
	}
	if logk >= 0 {
		return 1
	}
	if math.IsInf(logk, -1) {
		return 0
	}

	base := math.Log(-logk)
	terms := make([]float64, len(pvalues))
	m := math.Inf(-1)
	for i := range terms {
		lg, _ := math.Lgamma(float64(i + 1))
		terms[i] = base*float64(i) - lg
		if terms[i] > m {
			m = terms[i]
		}
	}

	sum := 0.0
	for _, t := range terms {
		sum += math.Exp(t - m)
	}
	p := math.Exp(logk + m + math.Log(sum))
	if p > 1 {
		return 1
	}
	return p
}

// Rank bisects the ascending slice sorted and returns the index of the first
// element not less than v, clamped to [1, len(sorted)].
func Rank(sorted []float64, v float64) int {
	left, right := 0, len(sorted)
	for right-left > 1 {
		mid := (left + right) / 2
		if sorted[mid] < v {
			left = mid
		} else {
			right = mid
		}
	}
	return right
}

// GapProbability is the fraction of reference gaps at least as large as gap,
// (n + 1 - rank) / n. An empty reference yields 0.
func GapProbability(reference []float64, gap float64) float64 {
	n := float64(len(reference))
	if n == 0 {
		return 0
	}
	return (n + 1 - float64(Rank(reference, gap))) / n
}
