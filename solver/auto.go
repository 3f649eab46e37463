package solver

import (
	"math"

	"github.com/CK6170/vnacal-go/internal/numeric"
	"github.com/CK6170/vnacal-go/newcal"
	"github.com/CK6170/vnacal-go/newcal/equation"
	"github.com/CK6170/vnacal-go/param"
	"github.com/CK6170/vnacal-go/vnaerr"
)

// collectUnknownHandles gathers, in stable order, every distinct Unknown or
// Correlated handle appearing in any measurement's S matrix.
func collectUnknownHandles(b *newcal.Builder) []param.Handle {
	seen := make(map[param.Handle]bool)
	var out []param.Handle
	for _, ms := range b.Measurements {
		for _, row := range ms.SMatrix {
			for _, h := range row {
				if h.IsZero() || seen[h] {
					continue
				}
				isUnknown, err := b.Store.IsUnknown(h)
				if err != nil || !isUnknown {
					continue
				}
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}

// handlesToGuesses builds the current-iterate lookup map from a parallel
// parameter vector p.
func handlesToGuesses(handles []param.Handle, p []complex128) map[param.Handle]complex128 {
	g := make(map[param.Handle]complex128, len(handles))
	for i, h := range handles {
		g[h] = p[i]
	}
	return g
}

// systemResiduals assembles, for one (system, frequency), the stacked
// residual vector A(p)*x - rhs(p), recomputing the error-term vector x at
// each trial p via the same linear solve used by Simple; this is the
// variable-projection step: for fixed p the error terms
// solve linearly, so the only nonlinear unknowns are the standard
// parameters p themselves (spec §4.G).
func systemResiduals(b *newcal.Builder, eqLists [][]equation.Equation, sysIdx, fi int, f float64, opts Options, guesses map[param.Handle]complex128) (x []complex128, residual []complex128, err error) {
	A, rhs, leak, err := assembleSystem(b, eqLists, sysIdx, fi, f, opts, guesses)
	if err != nil {
		return nil, nil, err
	}
	x, ok := numeric.Solve(A, rhs)
	if !ok {
		x, ok = pseudoSolve(A, rhs)
		if !ok {
			return nil, nil, vnaerr.Mathf("auto solve: singular system at frequency %g", f)
		}
	}
	_ = leak
	pred := numeric.MulMatVec(A, x)
	residual = make([]complex128, len(pred))
	for i := range pred {
		residual[i] = pred[i] - rhs[i]
	}
	return x, residual, nil
}

func residualNorm(r []complex128) float64 {
	sum := 0.0
	for _, v := range r {
		sum += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(sum)
}

// jacobian computes d(residual)/d(p_k) by a single complex finite-difference
// step per unknown. The error-term equations are complex-bilinear in S and
// M with no conjugation, so the residual is a holomorphic function of each
// standard parameter; a single complex perturbation (rather than separate
// real/imaginary steps) gives the full complex derivative directly.
func jacobian(b *newcal.Builder, eqLists [][]equation.Equation, sysIdx, fi int, f float64, opts Options, handles []param.Handle, p []complex128, r0 []complex128) [][]complex128 {
	const step = 1e-6
	j := make([][]complex128, len(r0))
	for i := range j {
		j[i] = make([]complex128, len(handles))
	}
	for k := range handles {
		h := step * (1 + cabs(p[k]))
		pk := make([]complex128, len(p))
		copy(pk, p)
		pk[k] += complex(h, 0)
		guesses := handlesToGuesses(handles, pk)
		_, r1, err := systemResiduals(b, eqLists, sysIdx, fi, f, opts, guesses)
		if err != nil {
			continue
		}
		for i := range r0 {
			j[i][k] = (r1[i] - r0[i]) / complex(h, 0)
		}
	}
	return j
}

func cabs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// pseudoSolve solves a (possibly rank-deficient or non-square) system via
// the Moore-Penrose pseudoinverse, for the cases numeric.Solve's direct
// LU/QR path rejects.
func pseudoSolve(a [][]complex128, b []complex128) ([]complex128, bool) {
	pinv, ok := numeric.PseudoInverse(a)
	if !ok {
		return nil, false
	}
	return numeric.MulMatVec(pinv, b), true
}

func conjTranspose(a [][]complex128) [][]complex128 {
	if len(a) == 0 {
		return nil
	}
	rows, cols := len(a), len(a[0])
	out := make([][]complex128, cols)
	for i := 0; i < cols; i++ {
		out[i] = make([]complex128, rows)
		for j := 0; j < rows; j++ {
			out[i][j] = complex(real(a[j][i]), -imag(a[j][i]))
		}
	}
	return out
}

// gnStep solves the Gauss-Newton normal step J*delta = -r via the
// pseudoinverse (handles the usual case of more equations than unknowns).
func gnStep(j [][]complex128, r []complex128) ([]complex128, bool) {
	neg := make([]complex128, len(r))
	for i, v := range r {
		neg[i] = -v
	}
	delta, ok := pseudoSolve(j, neg)
	return delta, ok
}

// lmStep solves the damped normal equations (J^H J + lambda*diag(J^H J))
// delta = -J^H r.
func lmStep(j [][]complex128, r []complex128, lambda float64) ([]complex128, bool) {
	jh := conjTranspose(j)
	jhj := numeric.MulMat(jh, j)
	n := len(jhj)
	for i := 0; i < n; i++ {
		jhj[i][i] += complex(lambda*real(jhj[i][i]), 0)
		if jhj[i][i] == 0 {
			jhj[i][i] = complex(lambda, 0)
		}
	}
	jhr := numeric.MulMatVec(jh, r)
	neg := make([]complex128, len(jhr))
	for i, v := range jhr {
		neg[i] = -v
	}
	return numeric.Solve(jhj, neg)
}

func rmsChange(delta []complex128, p []complex128) float64 {
	num, den := 0.0, 0.0
	for i, d := range delta {
		num += real(d)*real(d) + imag(d)*imag(d)
		den += real(p[i])*real(p[i]) + imag(p[i])*imag(p[i])
	}
	if den == 0 {
		return math.Sqrt(num)
	}
	return math.Sqrt(num / den)
}

// solveAutoFrequency runs the Gauss-Newton/Levenberg-Marquardt iteration
// for every system at one frequency, returning the converged error-term
// vectors and the final standard-parameter iterate.
func solveAutoFrequency(b *newcal.Builder, eqLists [][]equation.Equation, fi int, f float64, opts Options, handles []param.Handle, p0 []complex128) (xs [][]complex128, leaks []map[[2]int]complex128, pFinal []complex128, err error) {
	systems := b.Layout.Systems
	if systems == 0 {
		systems = 1
	}
	p := append([]complex128(nil), p0...)
	lambda := opts.MarquardtMultiplier

	xs = make([][]complex128, systems)
	leaks = make([]map[[2]int]complex128, systems)
	var prevXs [][]complex128

	for iter := 0; iter < opts.IterationLimit; iter++ {
		guesses := handlesToGuesses(handles, p)
		var rAll []complex128
		var jAll [][]complex128
		eNorm := 0.0
		for sysIdx := 0; sysIdx < systems; sysIdx++ {
			x, r, e := systemResiduals(b, eqLists, sysIdx, fi, f, opts, guesses)
			if e != nil {
				return nil, nil, nil, e
			}
			xs[sysIdx] = x
			eNorm += residualNorm(r) * residualNorm(r)
			j := jacobian(b, eqLists, sysIdx, fi, f, opts, handles, p, r)
			rAll = append(rAll, r...)
			jAll = append(jAll, j...)
		}
		eNorm = math.Sqrt(eNorm)

		xChange := math.Inf(1)
		if prevXs != nil {
			xChange = 0
			for sysIdx, x := range xs {
				d := make([]complex128, len(x))
				for i := range d {
					d[i] = x[i] - prevXs[sysIdx][i]
				}
				xChange = math.Max(xChange, rmsChange(d, x))
			}
		}
		prevXs = append([][]complex128(nil), xs...)

		if len(handles) == 0 {
			break
		}

		var delta []complex128
		var ok bool
		switch opts.Flavor {
		case LevenbergMarquardt:
			delta, ok = lmStep(jAll, rAll, lambda)
		default:
			delta, ok = gnStep(jAll, rAll)
		}
		if !ok {
			return nil, nil, nil, vnaerr.Mathf("auto solve: Jacobian step failed at frequency %g, iteration %d", f, iter)
		}

		trial := make([]complex128, len(p))
		backtrack := 1.0
		improved := false
		for attempt := 0; attempt < 10; attempt++ {
			for i := range p {
				trial[i] = p[i] + complex(backtrack, 0)*delta[i]
			}
			trialGuesses := handlesToGuesses(handles, trial)
			trialNorm := 0.0
			for sysIdx := 0; sysIdx < systems; sysIdx++ {
				_, r, e := systemResiduals(b, eqLists, sysIdx, fi, f, opts, trialGuesses)
				if e != nil {
					backtrack /= 2
					continue
				}
				trialNorm += residualNorm(r) * residualNorm(r)
			}
			trialNorm = math.Sqrt(trialNorm)
			if trialNorm <= eNorm || opts.Flavor == LevenbergMarquardt {
				improved = trialNorm <= eNorm
				break
			}
			backtrack /= 2
		}
		if opts.Flavor == LevenbergMarquardt {
			if improved {
				lambda /= 10
			} else {
				lambda *= 10
			}
		}

		change := rmsChange(delta, p)
		copy(p, trial)
		if change < opts.PTolerance || xChange < opts.ETolerance {
			break
		}
	}

	guesses := handlesToGuesses(handles, p)
	for sysIdx := 0; sysIdx < systems; sysIdx++ {
		A, rhs, leak, e := assembleSystem(b, eqLists, sysIdx, fi, f, opts, guesses)
		if e != nil {
			return nil, nil, nil, e
		}
		x, ok := numeric.Solve(A, rhs)
		if !ok {
			x, ok = pseudoSolve(A, rhs)
			if !ok {
				return nil, nil, nil, vnaerr.Mathf("auto solve: final singular system at frequency %g", f)
			}
		}
		xs[sysIdx] = x
		leaks[sysIdx] = meanLeakage(leak)
	}
	return xs, leaks, p, nil
}

// solveAuto implements the variable-projection Gauss-Newton/Levenberg-
// Marquardt algorithm of spec §4.G: the standard parameters are nonlinear
// unknowns, the error terms solve linearly for any fixed parameter
// iterate.
func solveAuto(b *newcal.Builder, opts Options) (*Result, error) {
	eqLists := structuralEquations(b)
	handles := collectUnknownHandles(b)
	res := newResult(b, Auto)

	p0 := make([]complex128, len(handles))
	for i, h := range handles {
		v, err := evalHandle(b.Store, h, b.Freqs[0], nil)
		if err != nil {
			return nil, err
		}
		p0[i] = v
	}

	for fi, f := range b.Freqs {
		xs, leaks, pFinal, err := solveAutoFrequency(b, eqLists, fi, f, opts, handles, p0)
		if err != nil {
			return nil, err
		}
		for sysIdx := 0; sysIdx < res.Systems; sysIdx++ {
			res.ErrorTerms[sysIdx][fi] = xs[sysIdx]
			res.Leakage[sysIdx][fi] = leaks[sysIdx]
			A, rhs, leak, e := assembleSystem(b, eqLists, sysIdx, fi, f, opts, handlesToGuesses(handles, pFinal))
			if e != nil {
				return nil, err
			}
			res.ChiSquare += residualChiSquare(A, xs[sysIdx], rhs, leak, opts)
		}
		for i, h := range handles {
			res.Unknowns[h] = append(res.Unknowns[h], pFinal[i])
		}
		p0 = pFinal
	}

	finalizeChiSquare(b, res, opts)
	return res, nil
}

// totalDOF computes degrees of freedom as total stacked equations minus the
// total number of real-valued unknowns solved for (error terms per
// frequency/system plus the two real dimensions of each recovered standard
// parameter), per spec §4.G's chi-squared accounting.
func totalDOF(b *newcal.Builder, nUnknownParams int) int {
	equations := 0
	for _, ms := range b.Measurements {
		equations += ms.Rows * ms.Cols
	}
	equations *= len(b.Freqs)

	xUnknowns := b.Layout.Unknowns() * b.Layout.Systems * len(b.Freqs)
	paramUnknowns := 2 * nUnknownParams * len(b.Freqs)

	dof := 2*equations - xUnknowns*2 - paramUnknowns
	if dof < 1 {
		dof = 1
	}
	return dof
}
