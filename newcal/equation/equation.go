// Package equation implements the equation expander of spec §4.F: for each
// cell of a measurement's m-matrix it walks the block algebra
// "-Ts*S*V - Ti*V + M*Tx*S*V + M*Tm*V = 0" (T variants) or its U dual
// "S*Ux*M + S*Us - Um*M - Ui = 0", and emits the scalar terms that survive
// the block's diagonality. The unity element of each system is folded into
// the right-hand side as a literal +-1 (x_index == -1) rather than kept as
// a solved unknown.
package equation

import "github.com/CK6170/vnacal-go/layout"

// Term is one scalar contribution to equation A[row]*x = b. XIndex is the
// dense column of the unknown vector (layout.Layout.DenseIndex), or -1 if
// this term belongs on the right-hand side. MCell/SCell/VCell are
// row*cols+col offsets into the measurement's m-matrix, s-matrix (parameter
// handles), and variance-weight matrix respectively, or -1 if that factor
// does not apply to this term.
type Term struct {
	XIndex   int
	Negative bool
	MCell    int
	SCell    int
	VCell    int
}

// Equation is the expansion of one (row, col) cell of a measurement's
// m-matrix. Leakage equations (their path disconnected from the rest of
// the standard, per the connectivity matrix) carry no terms: the solver
// instead accumulates their measured values per cell (sum, sum of squares,
// count), for every calibration type.
type Equation struct {
	Row, Col int
	Leakage  bool
	Terms    []Term
}

// Expand builds the list of equations for one measurement of the given
// calibration type and layout, sized rows x cols (the measurement's
// m-matrix dimensions), using connectivity (nil permitted; treated as
// fully connected) to mark unreachable cells as leakage.
func Expand(t layout.Type, l layout.Layout, rows, cols int, connectivity [][]bool) []Equation {
	switch t {
	case layout.T8, layout.TE10, layout.T16:
		return expandTFamily(l, rows, connectivity)
	case layout.U8, layout.UE10, layout.U16:
		return expandUFamily(l, rows, connectivity)
	case layout.UE14:
		return expandColumnFamily(l, rows, cols)
	case layout.E12:
		return expandE12(l, rows, cols)
	default:
		return nil
	}
}

func connected(c [][]bool, r, col int) bool {
	if c == nil {
		return true
	}
	return c[r][col]
}

func term(l layout.Layout, raw int, negate bool, mCell, sCell, vCell int) Term {
	dense := l.DenseIndex(raw)
	if dense < 0 {
		// The unity element: moves to the right-hand side, flipping sign.
		return Term{XIndex: -1, Negative: !negate, MCell: mCell, SCell: -1, VCell: vCell}
	}
	return Term{XIndex: dense, Negative: negate, MCell: mCell, SCell: sCell, VCell: vCell}
}

// expandTFamily builds "-Ts*S*V - Ti*V + M*Tx*S*V + M*Tm*V = 0" for square
// n x n T8/TE10/T16 measurements. Ts is block 0, Ti is TiOffset, Tx is
// TxOffset, Tm is TmOffset; diagonal variants (T8, TE10) collapse the
// block-internal sums to a single surviving index.
func expandTFamily(l layout.Layout, n int, connectivity [][]bool) []Equation {
	diag := l.Type.IsDiagonal()
	eqs := make([]Equation, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if !connected(connectivity, r, c) {
				eqs = append(eqs, Equation{Row: r, Col: c, Leakage: true})
				continue
			}
			var terms []Term
			sc := r*n + c

			// -Ts * S * V
			if diag {
				terms = append(terms, term(l, r, true, -1, sc, sc))
			} else {
				for k := 0; k < n; k++ {
					terms = append(terms, term(l, r*n+k, true, -1, k*n+c, k*n+c))
				}
			}
			// -Ti * V
			if diag {
				if r == c {
					terms = append(terms, term(l, l.TiOffset+r, true, -1, -1, sc))
				}
			} else {
				terms = append(terms, term(l, l.TiOffset+r*n+c, true, -1, -1, sc))
			}
			// +M * Tx * S * V
			if diag {
				for k := 0; k < n; k++ {
					terms = append(terms, term(l, l.TxOffset+k, false, r*n+k, k*n+c, k*n+c))
				}
			} else {
				for k := 0; k < n; k++ {
					for j := 0; j < n; j++ {
						terms = append(terms, term(l, l.TxOffset+k*n+j, false, r*n+k, j*n+c, j*n+c))
					}
				}
			}
			// +M * Tm * V
			if diag {
				terms = append(terms, term(l, l.TmOffset+c, false, r*n+c, -1, sc))
			} else {
				for k := 0; k < n; k++ {
					terms = append(terms, term(l, l.TmOffset+k*n+c, false, r*n+k, -1, sc))
				}
			}
			eqs = append(eqs, Equation{Row: r, Col: c, Terms: terms})
		}
	}
	return eqs
}

// expandUFamily builds "S*Ux*M + S*Us - Um*M - Ui = 0" for square n x n
// U8/UE10/U16 measurements. Um is block 0, Ui is TiOffset, Ux is TxOffset,
// Us is TmOffset.
func expandUFamily(l layout.Layout, n int, connectivity [][]bool) []Equation {
	diag := l.Type.IsDiagonal()
	eqs := make([]Equation, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if !connected(connectivity, r, c) {
				eqs = append(eqs, Equation{Row: r, Col: c, Leakage: true})
				continue
			}
			var terms []Term
			sc := r*n + c

			// +S * Ux * M
			if diag {
				for k := 0; k < n; k++ {
					terms = append(terms, term(l, l.TxOffset+k, false, k*n+c, r*n+k, sc))
				}
			} else {
				for k := 0; k < n; k++ {
					for j := 0; j < n; j++ {
						terms = append(terms, term(l, l.TxOffset+k*n+j, false, j*n+c, r*n+k, sc))
					}
				}
			}
			// +S * Us
			if diag {
				terms = append(terms, term(l, l.TmOffset+c, false, -1, r*n+c, sc))
			} else {
				for k := 0; k < n; k++ {
					terms = append(terms, term(l, l.TmOffset+k*n+c, false, -1, r*n+k, sc))
				}
			}
			// -Um * M
			if diag {
				terms = append(terms, term(l, r, true, r*n+c, -1, sc))
			} else {
				for k := 0; k < n; k++ {
					terms = append(terms, term(l, r*n+k, true, k*n+c, -1, sc))
				}
			}
			// -Ui
			if diag {
				if r == c {
					terms = append(terms, term(l, l.TiOffset+r, true, -1, -1, sc))
				}
			} else {
				terms = append(terms, term(l, l.TiOffset+r*n+c, true, -1, -1, sc))
			}
			eqs = append(eqs, Equation{Row: r, Col: c, Terms: terms})
		}
	}
	return eqs
}

// expandColumnFamily builds the per-column diagonal UE14/E12 systems
// (Open Question 2, DESIGN.md): column c's own Um_c/Ui_c/Ux_c/Us_c act on
// rows 0..rows-1, with row i == c (the column's own receiver) the primary
// equation and every other row leakage. Every column is an independent
// system, so XIndex is local to that column's own Layout.Unknowns()
// columns; the solver solves one column at a time (or as an independent
// block), keyed by Equation.Col.
func expandColumnFamily(l layout.Layout, rows, cols int) []Equation {
	eqs := make([]Equation, 0, rows*cols)
	for c := 0; c < cols; c++ {
		for i := 0; i < rows; i++ {
			sc := i*cols + c
			if i != c {
				eqs = append(eqs, Equation{Row: i, Col: c, Leakage: true})
				continue
			}
			var terms []Term
			// +S * Ux_c * M  (diagonal: single index i)
			terms = append(terms, term(l, l.TxOffset+i, false, sc, sc, sc))
			// +S * Us_c
			terms = append(terms, term(l, l.TmOffset+i, false, -1, sc, sc))
			// -Um_c * M
			terms = append(terms, term(l, i, true, sc, -1, sc))
			// -Ui_c
			terms = append(terms, term(l, l.TiOffset+i, true, -1, -1, sc))
			eqs = append(eqs, Equation{Row: i, Col: c, Terms: terms})
		}
	}
	return eqs
}

// expandE12 builds the per-column diagonal E12 systems: column c's own
// Em_c/El_c/Er_c (bridged from UE14's Um_c/Ui_c/Ux_c, DESIGN.md Open
// Question 3) act on rows 0..rows-1, with the fourth UE14 block (Us_c)
// replaced by E12's implicit through-transmission identity Et=1, folded
// directly into the right-hand side rather than read from a stored,
// solved term: "S*Er_c*M + S - Em_c*M - El_c = 0".
func expandE12(l layout.Layout, rows, cols int) []Equation {
	eqs := make([]Equation, 0, rows*cols)
	for c := 0; c < cols; c++ {
		for i := 0; i < rows; i++ {
			sc := i*cols + c
			if i != c {
				eqs = append(eqs, Equation{Row: i, Col: c, Leakage: true})
				continue
			}
			var terms []Term
			// +S * Er_c  (Ux_c)
			terms = append(terms, term(l, l.TxOffset+i, false, sc, sc, sc))
			// +S * 1     (Us_c, fixed at the implicit Et identity)
			terms = append(terms, Term{XIndex: -1, Negative: true, MCell: -1, SCell: sc, VCell: sc})
			// -Em_c * M  (Um_c)
			terms = append(terms, term(l, i, true, sc, -1, sc))
			// -El_c      (Ui_c)
			terms = append(terms, term(l, l.TiOffset+i, true, -1, -1, sc))
			eqs = append(eqs, Equation{Row: i, Col: c, Terms: terms})
		}
	}
	return eqs
}
