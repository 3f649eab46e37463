// Package solver implements the solver core of spec §4.G: algorithm
// selection (Simple / TRL analytic / Auto variable projection), the
// per-frequency linear solve, leakage bookkeeping, and the chi-squared
// consistency p-value.
package solver

import (
	"math"

	"github.com/CK6170/vnacal-go/vnalog"
)

// Algorithm is the solver strategy chosen for one builder's configuration.
type Algorithm int

const (
	Simple Algorithm = iota
	TRL
	Auto
)

func (a Algorithm) String() string {
	switch a {
	case Simple:
		return "Simple"
	case TRL:
		return "TRL"
	case Auto:
		return "Auto"
	default:
		return "Unknown"
	}
}

// Flavor selects the iteration rule used by the Auto variable-projection
// solver.
type Flavor int

const (
	GaussNewton Flavor = iota
	LevenbergMarquardt
)

// Options tunes the solver. All fields have the spec-documented defaults
// when zero-valued via DefaultOptions.
type Options struct {
	Flavor                 Flavor
	ETolerance             float64 // et_tolerance: RMS change in x to converge
	PTolerance             float64 // p_tolerance: RMS change in p to converge
	IterationLimit         int     // default 30
	PValueLimit            float64 // default 1e-3
	MarquardtMultiplier    float64 // initial lambda scale for Levenberg-Marquardt
	MeasurementErrorModel  bool
	SigmaNF, SigmaTR       float64 // noise-floor / trace-noise weighting: w = 1/sqrt(sigma_nf^2 + |m|^2*sigma_tr^2)

	// ForceAlgorithm overrides Solve's automatic algorithm selection when
	// non-nil, mainly for tests that need to exercise a specific path.
	ForceAlgorithm *Algorithm

	// Logger receives Debugf traces of algorithm selection and Warnf notices
	// of a TRL-to-Auto fallback. A nil Logger is silent.
	Logger *vnalog.Logger
}

// DefaultOptions returns the spec-documented default tunables.
func DefaultOptions() Options {
	return Options{
		Flavor:              GaussNewton,
		ETolerance:          1e-6,
		PTolerance:          1e-6,
		IterationLimit:      30,
		PValueLimit:         1e-3,
		MarquardtMultiplier: 1e-3,
	}
}

func measurementWeight(opts Options, m complex128) complex128 {
	if !opts.MeasurementErrorModel {
		return 1
	}
	magSq := real(m)*real(m) + imag(m)*imag(m)
	variance := opts.SigmaNF*opts.SigmaNF + magSq*opts.SigmaTR*opts.SigmaTR
	if variance <= 0 {
		return 1
	}
	return complex(1/math.Sqrt(variance), 0)
}
