package solver

import (
	"github.com/CK6170/vnacal-go/layout"
	"github.com/CK6170/vnacal-go/param"
)

// Result is a fully solved calibration: per-system, per-frequency error
// term vectors plus the diagnostics computed along the way.
type Result struct {
	Type      layout.Type
	Layout    layout.Layout
	Systems   int
	Freqs     []float64
	Algorithm Algorithm

	// ErrorTerms[system][freqIndex] is the dense solved unknown vector
	// (length Layout.Unknowns()), in the column order of
	// layout.Layout.DenseIndex.
	ErrorTerms [][][]complex128

	// Leakage[system][freqIndex] maps each disconnected (row,col) cell to
	// the mean of its measured samples, for every type that produced
	// leakage equations; the vnacal codec saves it only for types with an
	// El term (layout.Type.HasLeakage).
	Leakage []([]map[[2]int]complex128)

	// Unknowns carries the per-frequency solved value of every Unknown or
	// Correlated parameter touched by the builder, ready for
	// param.Store.SetSolution.
	Unknowns map[param.Handle][]complex128

	ChiSquare float64
	DegreesOfFreedom int
	PValue    float64
}
