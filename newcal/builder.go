// Package newcal implements the new-calibration builder of spec §4.E: it
// accumulates standards (each synthesizing a full m_rows x m_rows S
// index matrix, validated and analyzed by the standard package), their
// measured m-matrices, and the bookkeeping counters that gate the solver's
// choice of algorithm.
package newcal

import (
	"github.com/CK6170/vnacal-go/internal/numeric"
	"github.com/CK6170/vnacal-go/layout"
	"github.com/CK6170/vnacal-go/param"
	"github.com/CK6170/vnacal-go/standard"
	"github.com/CK6170/vnacal-go/vnaerr"
)

// Measurement is one add_* record, per spec §3's "Measurement": the S
// index matrix with resolved port bindings and connectivity, plus a
// per-frequency m-matrix (m[row][col] at each measured frequency).
type Measurement struct {
	Rows, Cols int
	SMatrix    [][]param.Handle
	PortMap    []int
	Model      *standard.Model
	M          [][][]complex128 // M[freqIndex][row][col]
}

// Builder accumulates the standards of one new calibration (component E).
// A Builder owns holds on every parameter handle appearing in its
// measurements; Release drops them (vnacal.CalSet.AddCalibration calls it
// for the builder it is given).
type Builder struct {
	Type   layout.Type
	Store  *param.Store
	Freqs  []float64
	Layout layout.Layout

	Measurements []*Measurement

	VNUnknownParameters    int
	VNCorrelatedParameters int
	VNMeasurementCount     int
	VNEquations            int

	held map[param.Handle]bool
}

// New starts a builder for a calibration of type t with the given overall
// port dimensions and frequency vector (strictly ascending, validated
// against every parameter it later references via Store.CheckFrequencyRange).
func New(t layout.Type, store *param.Store, freqs []float64, mRows, mColumns int) (*Builder, error) {
	l, err := layout.New(t, mRows, mColumns)
	if err != nil {
		return nil, err
	}
	if len(freqs) == 0 {
		return nil, vnaerr.Usagef("new calibration requires a non-empty frequency vector")
	}
	for i := 1; i < len(freqs); i++ {
		if freqs[i] <= freqs[i-1] {
			return nil, vnaerr.Usagef("calibration frequencies must be strictly ascending")
		}
	}
	return &Builder{
		Type:  t,
		Store: store,
		Freqs: append([]float64(nil), freqs...),
		Layout: l,
		held: make(map[param.Handle]bool),
	}, nil
}

func (b *Builder) rows() int { return b.Layout.MRows }
func (b *Builder) cols() int { return b.Layout.MColumns }

func (b *Builder) hold(h param.Handle) error {
	if h.IsZero() || b.held[h] {
		return nil
	}
	if err := b.Store.CheckFrequencyRange(h, b.Freqs); err != nil {
		return err
	}
	if err := b.Store.Hold(h); err != nil {
		return err
	}
	b.held[h] = true
	isUnknown, _ := b.Store.IsUnknown(h)
	if isUnknown {
		kind, _ := b.Store.Kind(h)
		if kind == param.KindCorrelated {
			b.VNCorrelatedParameters++
		} else {
			b.VNUnknownParameters++
		}
	}
	return nil
}

func defaultMatrix(n int, diag param.Handle) [][]param.Handle {
	s := make([][]param.Handle, n)
	for i := range s {
		s[i] = make([]param.Handle, n)
		for j := range s[i] {
			if i == j {
				s[i][j] = diag
			} else {
				s[i][j] = param.Handle{}
			}
		}
	}
	return s
}

// AddSingleReflect declares a one-port reflect standard at port, all other
// ports assumed isolated (Match), measured directly as m.
func (b *Builder) AddSingleReflect(port int, s11 param.Handle, m [][][]complex128) error {
	n := b.rows()
	if port < 0 || port >= n {
		return vnaerr.Usagef("single reflect port %d out of range [0,%d)", port, n)
	}
	s := defaultMatrix(n, param.Match)
	s[port][port] = s11
	return b.add(s, nil, m)
}

// AddDoubleReflect declares two independent one-port reflects at port1 and
// port2 measured simultaneously (diagonal S, all other ports isolated).
func (b *Builder) AddDoubleReflect(port1, port2 int, s11, s22 param.Handle, m [][][]complex128) error {
	n := b.rows()
	if port1 < 0 || port1 >= n || port2 < 0 || port2 >= n || port1 == port2 {
		return vnaerr.Usagef("double reflect ports %d,%d invalid for %d-port system", port1, port2, n)
	}
	s := defaultMatrix(n, param.Match)
	s[port1][port1] = s11
	s[port2][port2] = s22
	return b.add(s, nil, m)
}

// AddThrough declares an ideal, lossless through between port1 and port2
// (off-diagonal unity, diagonal match).
func (b *Builder) AddThrough(port1, port2 int, m [][][]complex128) error {
	n := b.rows()
	if port1 < 0 || port1 >= n || port2 < 0 || port2 >= n || port1 == port2 {
		return vnaerr.Usagef("through ports %d,%d invalid for %d-port system", port1, port2, n)
	}
	s := defaultMatrix(n, param.Match)
	s[port1][port2] = param.Open // reused as the fixed scalar 1
	s[port2][port1] = param.Open
	return b.add(s, nil, m)
}

// AddLine declares a two-port standard between port1 and port2 whose S is
// given explicitly (e.g. an unknown-length line or partially unknown
// reflect pair for TRL), embedded at the (port1,port2) block of an
// otherwise-isolated n-port S matrix.
func (b *Builder) AddLine(port1, port2 int, s2x2 [2][2]param.Handle, m [][][]complex128) error {
	n := b.rows()
	if port1 < 0 || port1 >= n || port2 < 0 || port2 >= n || port1 == port2 {
		return vnaerr.Usagef("line ports %d,%d invalid for %d-port system", port1, port2, n)
	}
	s := defaultMatrix(n, param.Match)
	s[port1][port1] = s2x2[0][0]
	s[port1][port2] = s2x2[0][1]
	s[port2][port1] = s2x2[1][0]
	s[port2][port2] = s2x2[1][1]
	return b.add(s, nil, m)
}

// AddMappedMatrix is the most general form: a caller-supplied s_rows x
// s_cols matrix of parameter handles with an explicit port_map.
func (b *Builder) AddMappedMatrix(s [][]param.Handle, portMap []int, m [][][]complex128) error {
	return b.add(s, portMap, m)
}

// AddSingleReflectAB, AddThroughAB etc. mirror their M-form counterparts but
// take raw a,b matrices and divide internally (m[r][c] = b[r][c]/a[r][c]
// when a is diagonal, else M = B*A^-1 per frequency), per spec §4.E.
func (b *Builder) AddSingleReflectAB(port int, s11 param.Handle, a, bb [][][]complex128) error {
	m, err := divideAB(a, bb)
	if err != nil {
		return err
	}
	return b.AddSingleReflect(port, s11, m)
}

func (b *Builder) AddThroughAB(port1, port2 int, a, bb [][][]complex128) error {
	m, err := divideAB(a, bb)
	if err != nil {
		return err
	}
	return b.AddThrough(port1, port2, m)
}

func (b *Builder) AddMappedMatrixAB(s [][]param.Handle, portMap []int, a, bb [][][]complex128) error {
	m, err := divideAB(a, bb)
	if err != nil {
		return err
	}
	return b.AddMappedMatrix(s, portMap, m)
}

// divideAB computes m = b*a^-1 per frequency, diagonal-dividing elementwise
// when a is diagonal (the common case) and falling back to a full matrix
// solve otherwise.
func divideAB(a, bb [][][]complex128) ([][][]complex128, error) {
	if len(a) != len(bb) {
		return nil, vnaerr.Usagef("a,b have mismatched frequency counts %d != %d", len(a), len(bb))
	}
	out := make([][][]complex128, len(a))
	for fi := range a {
		af, bf := a[fi], bb[fi]
		n := len(af)
		if len(bf) != n {
			return nil, vnaerr.Usagef("a,b matrices have mismatched row counts at frequency %d", fi)
		}
		if isDiagonal(af) {
			mf := make([][]complex128, n)
			for i := range mf {
				mf[i] = make([]complex128, len(bf[i]))
				for j := range mf[i] {
					if af[i][i] == 0 {
						return nil, vnaerr.Mathf("singular diagonal a matrix at frequency %d, port %d", fi, i)
					}
					mf[i][j] = bf[i][j] / af[i][i]
				}
			}
			out[fi] = mf
			continue
		}
		ainv, ok := numeric.Invert(af)
		if !ok {
			return nil, vnaerr.Mathf("singular a matrix at frequency %d", fi)
		}
		out[fi] = numeric.MulMat(bf, ainv)
	}
	return out, nil
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

// add runs the shared standard-analysis/counter/measurement-append path.
func (b *Builder) add(s [][]param.Handle, portMap []int, m [][][]complex128) error {
	n := b.rows()
	if len(s) != n {
		return vnaerr.Usagef("standard matrix has %d rows, want %d", len(s), n)
	}
	if len(m) != len(b.Freqs) {
		return vnaerr.Usagef("measurement has %d frequency slices, want %d", len(m), len(b.Freqs))
	}
	model, err := standard.Analyze(s, portMap, b.Store)
	if err != nil {
		return err
	}
	for _, row := range s {
		for _, h := range row {
			if err := b.hold(h); err != nil {
				return err
			}
		}
	}
	ms := &Measurement{Rows: n, Cols: n, SMatrix: s, PortMap: portMap, Model: model, M: m}
	b.Measurements = append(b.Measurements, ms)
	b.VNMeasurementCount++
	b.VNEquations += n * n
	return nil
}

// Release drops every hold this builder took out on parameter handles and
// empties its hold set, so a second call does nothing.
func (b *Builder) Release() {
	for h := range b.held {
		b.Store.Release(h)
	}
	b.held = make(map[param.Handle]bool)
}
