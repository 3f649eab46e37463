package numeric

import "sort"

// ratOrder is the number of points drawn into each local rational
// interpolation window, matching the classic Bulirsch-Stoer rational
// function interpolator's typical working order.
const ratOrder = 4

// RationalInterpolator evaluates a tabulated complex-valued function of
// frequency by rational-function interpolation (Bulirsch-Stoer), with a
// restartable segment hint so a caller sweeping frequencies in order skips
// the binary search for the enclosing segment. Every Eval still scans the
// table once for an exact sample match.
type RationalInterpolator struct {
	freqs  []float64
	values []complex128
	hint   int
}

// NewRationalInterpolator builds an interpolator over freqs (strictly
// ascending) and their corresponding complex values. freqs and values must
// have the same, non-zero length.
func NewRationalInterpolator(freqs []float64, values []complex128) *RationalInterpolator {
	return &RationalInterpolator{freqs: freqs, values: values, hint: 0}
}

// locate finds the index of the largest sample frequency <= f, starting the
// search near the stored hint and falling back to binary search when the
// hint is far off (the "restartable segment hint" of spec §4.A/§4.B).
func (r *RationalInterpolator) locate(f float64) int {
	n := len(r.freqs)
	if n == 0 {
		return 0
	}
	if r.hint >= 0 && r.hint < n-1 && r.freqs[r.hint] <= f && f <= r.freqs[r.hint+1] {
		return r.hint
	}
	idx := sort.Search(n, func(i int) bool { return r.freqs[i] > f })
	idx--
	if idx < 0 {
		idx = 0
	}
	if idx > n-2 && n >= 2 {
		idx = n - 2
	}
	r.hint = idx
	return idx
}

// window returns up to ratOrder sample indices centered on the located
// segment, clamped to the table bounds.
func (r *RationalInterpolator) window(center int) []int {
	n := len(r.freqs)
	order := ratOrder
	if order > n {
		order = n
	}
	lo := center - order/2 + 1
	if lo < 0 {
		lo = 0
	}
	hi := lo + order
	if hi > n {
		hi = n
		lo = hi - order
		if lo < 0 {
			lo = 0
		}
	}
	idxs := make([]int, hi-lo)
	for i := range idxs {
		idxs[i] = lo + i
	}
	return idxs
}

// Eval returns the interpolated (or extrapolated) value at f.
func (r *RationalInterpolator) Eval(f float64) complex128 {
	n := len(r.freqs)
	if n == 1 {
		return r.values[0]
	}
	for i, fr := range r.freqs {
		if fr == f {
			return r.values[i]
		}
	}
	center := r.locate(f)
	idxs := r.window(center)

	xs := make([]float64, len(idxs))
	reYs := make([]float64, len(idxs))
	imYs := make([]float64, len(idxs))
	for i, idx := range idxs {
		xs[i] = r.freqs[idx]
		reYs[i] = real(r.values[idx])
		imYs[i] = imag(r.values[idx])
	}
	re := ratint(xs, reYs, f)
	im := ratint(xs, imYs, f)
	return complex(re, im)
}

// ratint is the classic Bulirsch-Stoer rational-function interpolation
// (Numerical Recipes §3.2), returning the interpolated value of y at x given
// the tabulated (xs, ys).
func ratint(xs, ys []float64, x float64) float64 {
	const tiny = 1e-25
	n := len(xs)
	c := make([]float64, n)
	d := make([]float64, n)
	copy(c, ys)
	copy(d, ys)

	ns := 0
	dd := abs(x - xs[0])
	for i := 1; i < n; i++ {
		if d2 := abs(x - xs[i]); d2 < dd {
			ns = i
			dd = d2
		}
	}
	y := ys[ns]
	ns--

	for m := 1; m < n; m++ {
		for i := 0; i < n-m; i++ {
			w := c[i+1] - d[i]
			h := xs[i+m] - x
			t := (xs[i] - x) * d[i] / h
			dd := t - c[i+1]
			if dd == 0 {
				dd = tiny
			}
			dd = w / dd
			d[i] = c[i+1] * dd
			c[i] = t * dd
		}
		var dy float64
		if 2*(ns+1) < n-m {
			dy = c[ns+1]
		} else {
			dy = d[ns]
			ns--
		}
		y += dy
	}
	return y
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
