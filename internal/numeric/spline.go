package numeric

import "gonum.org/v1/gonum/mat"

// CubicSpline is a natural cubic spline (zero second derivative at both
// endpoints), used to evaluate a Correlated parameter's frequency-dependent
// standard deviation sigma(f) from a user-supplied (f, sigma) table.
type CubicSpline struct {
	xs, ys []float64
	y2     []float64
}

// NewCubicSpline fits a natural cubic spline through the given points (xs
// strictly ascending). The second-derivative values are obtained by solving
// the standard tridiagonal system via gonum (rather than hand-rolling a
// Thomas-algorithm sweep), keeping every linear solve in this module routed
// through the same numeric backend.
func NewCubicSpline(xs, ys []float64) *CubicSpline {
	n := len(xs)
	s := &CubicSpline{xs: xs, ys: ys, y2: make([]float64, n)}
	if n < 3 {
		return s
	}

	a := mat.NewDense(n-2, n-2, nil)
	b := mat.NewVecDense(n-2, nil)
	for i := 1; i < n-1; i++ {
		row := i - 1
		hPrev := xs[i] - xs[i-1]
		hNext := xs[i+1] - xs[i]
		if row-1 >= 0 {
			a.Set(row, row-1, hPrev)
		}
		a.Set(row, row, 2*(hPrev+hNext))
		if row+1 < n-2 {
			a.Set(row, row+1, hNext)
		}
		rhs := 6 * ((ys[i+1]-ys[i])/hNext - (ys[i]-ys[i-1])/hPrev)
		b.SetVec(row, rhs)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return s
	}
	for i := 1; i < n-1; i++ {
		s.y2[i] = x.AtVec(i - 1)
	}
	return s
}

// Eval returns the spline's value at x. Beyond the table's range the cubic
// of the first/last interval is simply extended.
func (s *CubicSpline) Eval(x float64) float64 {
	n := len(s.xs)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return s.ys[0]
	}
	lo := 0
	hi := n - 1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if s.xs[mid] > x {
			hi = mid
		} else {
			lo = mid
		}
	}
	h := s.xs[hi] - s.xs[lo]
	if h == 0 {
		return s.ys[lo]
	}
	a := (s.xs[hi] - x) / h
	b := (x - s.xs[lo]) / h
	return a*s.ys[lo] + b*s.ys[hi] +
		((a*a*a-a)*s.y2[lo]+(b*b*b-b)*s.y2[hi])*(h*h)/6
}
