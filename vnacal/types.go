// Package vnacal implements the calibration container of spec §3/§6
// (component D): it owns a parameter store, a named list of solved
// calibrations, their per-calibration property trees, and the persisted
// file's precision settings, plus the YAML codec and apply entry points
// that tie the lower packages together into one library surface.
package vnacal

import (
	"github.com/CK6170/vnacal-go/apply"
	"github.com/CK6170/vnacal-go/layout"
	"github.com/CK6170/vnacal-go/param"
	"github.com/CK6170/vnacal-go/proptree"
	"github.com/CK6170/vnacal-go/vnaerr"
)

// MaxPrecision is the sentinel fprecision/dprecision value requesting
// round-trip-exact hexadecimal floating point on save, per spec §6.
const MaxPrecision = -1

// Z0Kind tags which shape a Calibration's reference impedance takes.
type Z0Kind int

const (
	// Z0Scalar is one impedance shared by every port and frequency.
	Z0Scalar Z0Kind = iota
	// Z0PerPort is one impedance per port, constant across frequency.
	Z0PerPort
	// Z0PerPortFreq is a full (frequency, port) matrix of impedances.
	Z0PerPortFreq
)

// Z0 is a calibration's reference impedance, per spec §3's "z0 (scalar, per-
// port, or per-(port,f) matrix)".
type Z0 struct {
	Kind        Z0Kind
	Scalar      complex128
	PerPort     []complex128
	PerPortFreq [][]complex128 // [freqIndex][port]
}

// At returns the reference impedance of port p at frequency index fi.
func (z Z0) At(fi, p int) complex128 {
	switch z.Kind {
	case Z0PerPort:
		return z.PerPort[p]
	case Z0PerPortFreq:
		return z.PerPortFreq[fi][p]
	default:
		return z.Scalar
	}
}

// Calibration is one solved calibration record, per spec §3's "Calibration
// record (output)": type, dimensions, frequency vector, z0, solved error
// terms, and an optional property tree scoped to this calibration alone.
type Calibration struct {
	Name   string
	Type   layout.Type
	Layout layout.Layout
	Freqs  []float64
	Z0     Z0

	// ErrorTerms[system][freqIndex][denseIndex], in the column order of
	// layout.Layout.DenseIndex; see apply.Calibration for the same shape.
	ErrorTerms [][][]complex128
	// Leakage[system][freqIndex] maps an off-diagonal (row,col) cell to its
	// estimated El value, for types with a leakage term.
	Leakage []([]map[[2]int]complex128)

	Properties *proptree.Tree

	applyView *apply.Calibration
}

// Rows and Columns report the calibration's m-matrix dimensions.
func (c *Calibration) Rows() int    { return c.Layout.MRows }
func (c *Calibration) Columns() int { return c.Layout.MColumns }

// Fmin and Fmax report the calibration's frequency span.
func (c *Calibration) Fmin() float64 { return c.Freqs[0] }
func (c *Calibration) Fmax() float64 { return c.Freqs[len(c.Freqs)-1] }

// CalSet is the top-level calibration container (component D): a parameter
// store shared by every calibration it holds, the calibrations themselves
// (found by name or index), and the container-wide settings spec §6's
// `create`/`load`/`save` operate on.
type CalSet struct {
	Store        *param.Store
	Calibrations []*Calibration

	Filename string

	FPrecision int // decimal digits, or MaxPrecision
	DPrecision int // decimal digits, or MaxPrecision

	ErrorFn vnaerr.Func
}

// Create returns an empty CalSet with its own parameter store (seeded with
// the predefined Match/Open/Short handles) and the reporting callback errFn
// (nil is accepted: errors are still returned, just never reported through
// the callback).
func Create(errFn vnaerr.Func) *CalSet {
	return &CalSet{
		Store:      param.NewStore(),
		FPrecision: 6,
		DPrecision: 6,
		ErrorFn:    errFn,
	}
}

// report funnels err through the container's callback, if any, and returns
// err unchanged, so call sites can write `return cs.report(err)`.
func (cs *CalSet) report(err error) error {
	if ve, ok := err.(*vnaerr.Error); ok {
		vnaerr.Report(cs.ErrorFn, ve)
	}
	return err
}
