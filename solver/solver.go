package solver

import (
	"github.com/CK6170/vnacal-go/newcal"
	"github.com/CK6170/vnacal-go/param"
)

// selectAlgorithm chooses the solver per spec §4.G: TRL's closed-form
// shortcut applies only to the narrow three-standard, no-correlated,
// no-extra-unknown shape; any unknown or correlated standard parameter
// forces the nonlinear Auto path; otherwise every standard is already
// fully known and the per-frequency system solves directly.
func selectAlgorithm(b *newcal.Builder) Algorithm {
	if b.VNUnknownParameters == 0 && b.VNCorrelatedParameters == 0 {
		return Simple
	}
	if b.VNCorrelatedParameters == 0 && b.VNUnknownParameters <= 2 && len(b.Measurements) == 3 {
		if _, err := classifyTRL(b); err == nil {
			return TRL
		}
	}
	return Auto
}

// Solve dispatches to the algorithm selected by selectAlgorithm (or
// *opts.ForceAlgorithm when it is non-nil), then installs
// the recovered standard-parameter values back into the store via
// param.Store.SetSolution.
func Solve(b *newcal.Builder, opts Options) (*Result, error) {
	alg := selectAlgorithm(b)
	if opts.ForceAlgorithm != nil {
		alg = *opts.ForceAlgorithm
	}
	opts.Logger.Debugf("solver: selected %s algorithm (%d unknown, %d correlated standards, %d measurements)",
		alg, b.VNUnknownParameters, b.VNCorrelatedParameters, len(b.Measurements))

	var (
		res *Result
		err error
	)
	switch alg {
	case Simple:
		res, err = solveSimple(b, opts)
	case TRL:
		res, err = solveTRL(b, opts)
		if err != nil {
			// TRL's closed-form path is a best-effort shortcut; any
			// failure to classify or solve falls back to the general
			// nonlinear solver rather than aborting the calibration.
			opts.Logger.Warnf("solver: TRL path failed (%v), falling back to Auto", err)
			res, err = solveAuto(b, opts)
		}
	case Auto:
		res, err = solveAuto(b, opts)
	}
	if err != nil {
		return nil, err
	}

	for h, values := range res.Unknowns {
		kind, kErr := b.Store.Kind(h)
		if kErr != nil {
			continue
		}
		target := h
		if kind == param.KindCorrelated {
			other, _, cErr := b.Store.CorrelatedOf(h)
			if cErr == nil {
				target = other
			}
		}
		if err := b.Store.SetSolution(target, res.Freqs, values); err != nil {
			return nil, err
		}
	}
	return res, nil
}
