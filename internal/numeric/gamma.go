package numeric

import "math"

// ChiSquarePValue returns the upper tail probability (p-value) of the
// chi-squared distribution with dof (a positive integer) degrees of
// freedom evaluated at the statistic x, i.e. the regularized upper
// incomplete gamma function Q(dof/2, x/2).
//
// For odd dof the base case Q(1/2, t) = erfc(sqrt(t)) is used; for even dof
// the base case Q(1, t) = exp(-t); both are stepped up to dof/2 by the
// finite-sum recurrence Q(a+1, t) = Q(a, t) + R(a, t)/a where
// R(a, t) = t^a e^-t / Gamma(a).
func ChiSquarePValue(dof int, x float64) float64 {
	if dof <= 0 {
		return 1
	}
	t := x / 2
	if t <= 0 {
		return 1
	}

	var a, q, r float64
	if dof%2 == 1 {
		a = 0.5
		q = math.Erfc(math.Sqrt(t))
		r = math.Sqrt(t) * math.Exp(-t) / math.Sqrt(math.Pi)
	} else {
		a = 1
		q = math.Exp(-t)
		r = t * math.Exp(-t)
	}

	target := float64(dof) / 2
	for a < target-1e-9 {
		q += r / a
		r *= t / a
		a++
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return q
}
