package numeric

import "gonum.org/v1/gonum/stat/distuv"

// GaussCDF returns Phi((x-mean)/stddev), the normal CDF used by the
// detachment-probability term of spec.md §4.4 (P = 1 - Phi((T-tau_b)/sigma)).
// Delegated to gonum rather than a hand-rolled Abramowitz-Stegun
// approximation, per the instruction to prefer an ecosystem numerics
// library wherever one is available in the retrieval pack.
func GaussCDF(x, mean, stddev float64) float64 {
	if stddev <= 0 {
		if x >= mean {
			return 1
		}
		return 0
	}
	n := distuv.Normal{Mu: mean, Sigma: stddev}
	return n.CDF(x)
}

// StdGaussCDF is GaussCDF with mean 0, stddev 1.
func StdGaussCDF(x float64) float64 {
	return GaussCDF(x, 0, 1)
}
