package solver

import (
	"github.com/CK6170/vnacal-go/internal/numeric"
	"github.com/CK6170/vnacal-go/newcal"
	"github.com/CK6170/vnacal-go/newcal/equation"
	"github.com/CK6170/vnacal-go/param"
	"github.com/CK6170/vnacal-go/vnaerr"
)

func newResult(b *newcal.Builder, alg Algorithm) *Result {
	systems := b.Layout.Systems
	if systems == 0 {
		systems = 1
	}
	res := &Result{
		Type:      b.Type,
		Layout:    b.Layout,
		Systems:   systems,
		Freqs:     append([]float64(nil), b.Freqs...),
		Algorithm: alg,
		Unknowns:  make(map[param.Handle][]complex128),
	}
	res.ErrorTerms = make([][][]complex128, systems)
	res.Leakage = make([]([]map[[2]int]complex128), systems)
	for s := 0; s < systems; s++ {
		res.ErrorTerms[s] = make([][]complex128, len(b.Freqs))
		res.Leakage[s] = make([]map[[2]int]complex128, len(b.Freqs))
	}
	return res
}

func structuralEquations(b *newcal.Builder) [][]equation.Equation {
	eqLists := make([][]equation.Equation, len(b.Measurements))
	for mi, ms := range b.Measurements {
		eqLists[mi] = equation.Expand(b.Type, b.Layout, ms.Rows, ms.Cols, ms.Model.Connectivity)
	}
	return eqLists
}

// solveSimple handles the all-known-standards, no-correlated-parameters
// case: one direct linear solve per (frequency, system). With a
// measurement-error model the rows are weighted once; there is no further
// iteration.
func solveSimple(b *newcal.Builder, opts Options) (*Result, error) {
	eqLists := structuralEquations(b)
	res := newResult(b, Simple)

	for fi, f := range b.Freqs {
		for sysIdx := 0; sysIdx < res.Systems; sysIdx++ {
			A, rhs, leak, err := assembleSystem(b, eqLists, sysIdx, fi, f, opts, nil)
			if err != nil {
				return nil, err
			}
			x, ok := numeric.Solve(A, rhs)
			if !ok {
				return nil, vnaerr.Mathf("solve failed at frequency %g (system %d): singular or under-determined", f, sysIdx)
			}
			res.ErrorTerms[sysIdx][fi] = x
			res.Leakage[sysIdx][fi] = meanLeakage(leak)
			res.ChiSquare += residualChiSquare(A, x, rhs, leak, opts)
		}
	}
	finalizeChiSquare(b, res, opts)
	return res, nil
}

// finalizeChiSquare sets the p-value diagnostics on a finished Result
// (Simple, TRL or Auto). Without a measurement-error model it leaves
// DegreesOfFreedom at 0 and sets PValue to 1; otherwise len(res.Unknowns),
// the number of recovered standard parameters, feeds totalDOF.
func finalizeChiSquare(b *newcal.Builder, res *Result, opts Options) {
	if !opts.MeasurementErrorModel {
		res.PValue = 1
		return
	}
	res.DegreesOfFreedom = totalDOF(b, len(res.Unknowns))
	res.PValue = pValue(res.ChiSquare, res.DegreesOfFreedom)
}
