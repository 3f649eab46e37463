// Package apply implements the apply step of spec §4.H: given a solved
// calibration's error terms, it interpolates them to an arbitrary
// frequency vector and inverts the layout's forward model to recover the
// corrected S-parameters from raw measurements.
package apply

import (
	"github.com/CK6170/vnacal-go/internal/numeric"
	"github.com/CK6170/vnacal-go/layout"
	"github.com/CK6170/vnacal-go/vnaerr"
)

// Calibration is the solved data Apply needs: the dense per-system,
// per-frequency unknown vectors a solver.Result carries, plus leakage.
// Kept independent of the solver package so apply has no import-time
// dependency on how the terms were produced.
type Calibration struct {
	Type       layout.Type
	Layout     layout.Layout
	Freqs      []float64
	ErrorTerms [][][]complex128            // [system][freqIndex][denseIndex]
	Leakage    []([]map[[2]int]complex128) // [system][freqIndex]

	cache []systemInterpolators
}

// Options tunes Apply/ApplyM.
type Options struct {
	// Interpolate, when true (the default), reuses the Calibration's
	// RationalInterpolators across calls instead of rebuilding them every
	// time, so a caller sweeping frequencies across several nearby Apply
	// calls keeps paying the cheap restartable-hint lookup rather than a
	// fresh search each time (spec §4.A/§4.H's interpolation hint, extended
	// here per SPEC_FULL.md §5 to the apply-time error terms).
	Interpolate bool
}

// DefaultOptions returns Interpolate: true.
func DefaultOptions() Options { return Options{Interpolate: true} }

type systemInterpolators struct {
	unknowns []*numeric.RationalInterpolator
	leakage  map[[2]int]*numeric.RationalInterpolator
}

func (c *Calibration) interpolators(opts Options) ([]systemInterpolators, error) {
	if opts.Interpolate && c.cache != nil {
		return c.cache, nil
	}
	sis, err := buildInterpolators(c)
	if err != nil {
		return nil, err
	}
	if opts.Interpolate {
		c.cache = sis
	}
	return sis, nil
}

func buildInterpolators(c *Calibration) ([]systemInterpolators, error) {
	systems := len(c.ErrorTerms)
	out := make([]systemInterpolators, systems)
	n := c.Layout.Unknowns()
	for s := 0; s < systems; s++ {
		if len(c.ErrorTerms[s]) != len(c.Freqs) {
			return nil, vnaerr.Usagef("calibration system %d has %d frequency samples, want %d", s, len(c.ErrorTerms[s]), len(c.Freqs))
		}
		cols := make([][]complex128, n)
		for k := range cols {
			cols[k] = make([]complex128, len(c.Freqs))
		}
		for fi, x := range c.ErrorTerms[s] {
			if len(x) != n {
				return nil, vnaerr.Usagef("calibration system %d frequency %d has %d error terms, want %d", s, fi, len(x), n)
			}
			for k, v := range x {
				cols[k][fi] = v
			}
		}
		si := systemInterpolators{unknowns: make([]*numeric.RationalInterpolator, n)}
		for k := range cols {
			si.unknowns[k] = numeric.NewRationalInterpolator(c.Freqs, cols[k])
		}

		if s < len(c.Leakage) {
			leakCols := map[[2]int][]complex128{}
			for fi := range c.Leakage[s] {
				for key := range c.Leakage[s][fi] {
					if _, ok := leakCols[key]; !ok {
						leakCols[key] = make([]complex128, len(c.Freqs))
					}
				}
			}
			for fi := 0; fi < len(c.Freqs); fi++ {
				for key := range leakCols {
					if v, ok := c.Leakage[s][fi][key]; ok {
						leakCols[key][fi] = v
					}
				}
			}
			si.leakage = make(map[[2]int]*numeric.RationalInterpolator, len(leakCols))
			for key, vals := range leakCols {
				si.leakage[key] = numeric.NewRationalInterpolator(c.Freqs, vals)
			}
		}
		out[s] = si
	}
	return out, nil
}

// valueAt returns the value of raw per-system term offset raw (0..Total-1),
// reading the fixed +1 for the unity element and the interpolated value
// everywhere else — the apply-time inverse of layout.Layout.DenseIndex.
func valueAt(l layout.Layout, si systemInterpolators, raw int, f float64) complex128 {
	u := l.UnityOffset()
	if raw == u {
		return 1
	}
	idx := raw
	if u >= 0 && raw > u {
		idx = raw - 1
	}
	return si.unknowns[idx].Eval(f)
}

func materializeBlock(l layout.Layout, si systemInterpolators, blockOffset, n int, f float64) [][]complex128 {
	m := make([][]complex128, n)
	for i := range m {
		m[i] = make([]complex128, n)
	}
	if l.Type.IsDiagonal() {
		for i := 0; i < n; i++ {
			m[i][i] = valueAt(l, si, blockOffset+i, f)
		}
		return m
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m[i][j] = valueAt(l, si, blockOffset+i*n+j, f)
		}
	}
	return m
}

func leakageAt(si systemInterpolators, row, col int, f float64) complex128 {
	if si.leakage == nil {
		return 0
	}
	interp, ok := si.leakage[[2]int{row, col}]
	if !ok {
		return 0
	}
	return interp.Eval(f)
}

func subtractLeakage(m [][]complex128, si systemInterpolators, f float64) [][]complex128 {
	n := len(m)
	out := make([][]complex128, n)
	for i := range m {
		out[i] = make([]complex128, len(m[i]))
		for j := range m[i] {
			out[i][j] = m[i][j] - leakageAt(si, i, j, f)
		}
	}
	return out
}

// solveOneFrequency inverts the forward model for one (system, frequency)
// pair, returning the recovered n x n S-parameter matrix.
func solveOneFrequency(t layout.Type, l layout.Layout, si systemInterpolators, n int, f float64, m [][]complex128) ([][]complex128, error) {
	m = subtractLeakage(m, si, f)

	switch {
	case t.IsTFamily():
		ts := materializeBlock(l, si, 0, n, f)
		ti := materializeBlock(l, si, l.TiOffset, n, f)
		tx := materializeBlock(l, si, l.TxOffset, n, f)
		tm := materializeBlock(l, si, l.TmOffset, n, f)

		lhs := numeric.SubMat(ts, numeric.MulMat(m, tx))
		rhs := numeric.SubMat(numeric.MulMat(m, tm), ti)
		lhsInv, ok := numeric.Invert(lhs)
		if !ok {
			return nil, vnaerr.Mathf("apply: singular (Ts - M*Tx) at frequency %g", f)
		}
		return numeric.MulMat(lhsInv, rhs), nil

	case t.IsUFamily() && t != layout.UE14 && t != layout.E12:
		um := materializeBlock(l, si, 0, n, f)
		ui := materializeBlock(l, si, l.TiOffset, n, f)
		ux := materializeBlock(l, si, l.TxOffset, n, f)
		us := materializeBlock(l, si, l.TmOffset, n, f)

		rightSum := addMat(numeric.MulMat(ux, m), us)
		rightInv, ok := numeric.Invert(rightSum)
		if !ok {
			return nil, vnaerr.Mathf("apply: singular (Ux*M + Us) at frequency %g", f)
		}
		leftSum := addMat(numeric.MulMat(um, m), ui)
		return numeric.MulMat(leftSum, rightInv), nil

	default:
		return nil, vnaerr.Usagef("apply: unsupported calibration type %v for solveOneFrequency", t)
	}
}

func addMat(a, b [][]complex128) [][]complex128 {
	out := make([][]complex128, len(a))
	for i := range a {
		out[i] = make([]complex128, len(a[i]))
		for j := range a[i] {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

// solveColumnFamily implements the UE14/E12 scalar diagonal recovery of
// spec §4.H's "column-wise solve", per DESIGN.md Open Question 5/6: only
// the column's own primary cell (row == column) has a modeled error box in
// this implementation, so only the diagonal of the output is populated;
// off-diagonal entries have no recovered S value and are left at zero.
func solveColumnFamily(l layout.Layout, sis []systemInterpolators, rows, cols int, f float64, m [][]complex128) [][]complex128 {
	out := make([][]complex128, cols)
	for c := range out {
		out[c] = make([]complex128, rows)
	}
	for c := 0; c < cols && c < len(sis); c++ {
		if c >= rows {
			continue
		}
		si := sis[c]
		mv := m[c][c] - leakageAt(si, c, c, f)
		um := valueAt(l, si, c, f)
		ui := valueAt(l, si, l.TiOffset+c, f)
		ux := valueAt(l, si, l.TxOffset+c, f)
		us := complex128(1)
		if l.Type != layout.E12 {
			us = valueAt(l, si, l.TmOffset+c, f)
		}
		denom := ux*mv + us
		if denom == 0 {
			continue
		}
		out[c][c] = (um*mv + ui) / denom
	}
	return out
}

// ApplyM computes corrected S-matrices from already-computed raw m-matrices
// (one per frequency), per spec §4.H's apply_m.
func ApplyM(c *Calibration, opts Options, freqs []float64, m [][][]complex128) ([][][]complex128, error) {
	if len(m) != len(freqs) {
		return nil, vnaerr.Usagef("apply: m has %d frequency slices, want %d", len(m), len(freqs))
	}
	sis, err := c.interpolators(opts)
	if err != nil {
		return nil, err
	}

	n := c.Layout.N
	out := make([][][]complex128, len(freqs))
	for fi, f := range freqs {
		mf := m[fi]
		if len(mf) != c.Layout.MRows || (len(mf) > 0 && len(mf[0]) != c.Layout.MColumns) {
			return nil, vnaerr.Usagef("apply: m-matrix at frequency %d has wrong shape", fi)
		}
		if c.Type == layout.UE14 || c.Type == layout.E12 {
			out[fi] = solveColumnFamily(c.Layout, sis, c.Layout.MRows, c.Layout.MColumns, f, mf)
			continue
		}
		s, err := solveOneFrequency(c.Type, c.Layout, sis[0], n, f, mf)
		if err != nil {
			return nil, err
		}
		out[fi] = s
	}
	return out, nil
}

// Apply computes corrected S-matrices from raw incident/reflected wave
// matrices a, b (m = b*a^-1), per spec §4.H's apply.
func Apply(c *Calibration, opts Options, freqs []float64, a, b [][][]complex128) ([][][]complex128, error) {
	if len(a) != len(freqs) || len(b) != len(freqs) {
		return nil, vnaerr.Usagef("apply: a,b frequency counts must match the frequency vector")
	}
	m := make([][][]complex128, len(freqs))
	for fi := range freqs {
		af, bf := a[fi], b[fi]
		if len(af) != len(bf) {
			return nil, vnaerr.Usagef("apply: a,b row counts differ at frequency %d", fi)
		}
		if isDiagonal(af) {
			mf := make([][]complex128, len(af))
			for i := range mf {
				if af[i][i] == 0 {
					return nil, vnaerr.Mathf("apply: singular diagonal a at frequency %d, port %d", fi, i)
				}
				mf[i] = make([]complex128, len(bf[i]))
				for j := range mf[i] {
					mf[i][j] = bf[i][j] / af[i][i]
				}
			}
			m[fi] = mf
			continue
		}
		ainv, ok := numeric.Invert(af)
		if !ok {
			return nil, vnaerr.Mathf("apply: singular a matrix at frequency %d", fi)
		}
		m[fi] = numeric.MulMat(bf, ainv)
	}
	return ApplyM(c, opts, freqs, m)
}

func isDiagonal(a [][]complex128) bool {
	for i := range a {
		for j := range a[i] {
			if i != j && a[i][j] != 0 {
				return false
			}
		}
	}
	return true
}
