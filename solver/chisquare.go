package solver

import (
	"github.com/CK6170/vnacal-go/internal/numeric"
)

// residualChiSquare returns the weighted sum of squared residuals of one
// solved (system, frequency) linear system. When a measurement-error model
// is configured it also adds the leakage variance contribution of each
// off-diagonal cell with at least two samples (spec §4.G), and A and rhs
// are assumed already row-weighted by measurementWeight.
func residualChiSquare(A [][]complex128, x, rhs []complex128, leak map[[2]int]*leakAccum, opts Options) float64 {
	sum := 0.0
	for i, row := range A {
		pred := numeric.MulMatVec([][]complex128{row}, x)[0]
		r := pred - rhs[i]
		sum += real(r)*real(r) + imag(r)*imag(r)
	}
	if !opts.MeasurementErrorModel {
		return sum
	}
	for _, acc := range leak {
		if acc.count < 2 {
			continue
		}
		n := float64(acc.count)
		meanSq := (real(acc.sum)*real(acc.sum) + imag(acc.sum)*imag(acc.sum)) / (n * n)
		wl := leakageWeight(opts, acc.sum/complex(n, 0))
		sum += (acc.sumsq/n - meanSq) * wl
	}
	return sum
}

func leakageWeight(opts Options, mean complex128) float64 {
	w := measurementWeight(opts, mean)
	return real(w) * real(w)
}

// pValue computes the chi-squared consistency p-value: the regularized
// upper incomplete gamma function Q(dof/2, chiSquare/2), per spec §4.G.
func pValue(chiSquare float64, dof int) float64 {
	if dof <= 0 {
		return 1
	}
	return numeric.ChiSquarePValue(dof, chiSquare)
}
