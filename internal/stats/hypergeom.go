// Package stats holds the numerical routines behind sender scoring and
// subject-link acceptance.
package stats

import (
	"math"
)

// Hypergeom is the distribution of successes in n draws without replacement
// from a population of size N containing M successes.
type Hypergeom struct {
	N int
	M int
	n int
}

// NewHypergeom builds the distribution. Arguments outside 0 <= M, n <= N are
// clamped so callers never receive NaN from a malformed count.
func NewHypergeom(total, successes, draws int) Hypergeom {
	if total < 0 {
		total = 0
	}
	successes = clamp(successes, 0, total)
	draws = clamp(draws, 0, total)
	return Hypergeom{N: total, M: successes, n: draws}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Support returns the smallest and largest k with non-zero mass
func (h Hypergeom) Support() (int, int) {
	lo := h.n - (h.N - h.M)
	if lo < 0 {
		lo = 0
	}
	hi := h.n
	if h.M < hi {
		hi = h.M
	}
	return lo, hi
}

func logChoose(n, k int) float64 {
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}

// LogPMF returns ln P(X = k), or -Inf outside the support
func (h Hypergeom) LogPMF(k int) float64 {
	lo, hi := h.Support()
	if k < lo || k > hi {
		return math.Inf(-1)
	}
	return logChoose(h.M, k) + logChoose(h.N-h.M, h.n-k) - logChoose(h.N, h.n)
}

// PMF returns P(X = k)
func (h Hypergeom) PMF(k int) float64 {
	return math.Exp(h.LogPMF(k))
}

// CDF returns P(X <= k)
func (h Hypergeom) CDF(k int) float64 {
	lo, hi := h.Support()
	if k < lo {
		return 0
	}
	if k >= hi {
		return 1
	}
	sum := 0.0
	for i := lo; i <= k; i++ {
		sum += h.PMF(i)
	}
	return math.Min(sum, 1)
}

// SumPMF returns the probability mass over the closed range [from, to]
func (h Hypergeom) SumPMF(from, to int) float64 {
	lo, hi := h.Support()
	if from < lo {
		from = lo
	}
	if to > hi {
		to = hi
	}
	sum := 0.0
	for i := from; i <= to; i++ {
		sum += h.PMF(i)
	}
	return math.Min(sum, 1)
}

// UpperTail returns the survival probability P(X >= k). The complement of
// the CDF loses all precision deep in the tail, so small or invalid results
// are recomputed by summing the mass function over [k, n].
func (h Hypergeom) UpperTail(k int) float64 {
	p := 1 - h.CDF(k-1)
	if math.IsNaN(p) || p < 1e-6 {
		p = h.SumPMF(k, h.n)
	}
	return p
}
