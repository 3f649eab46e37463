package layout

import "github.com/CK6170/vnacal-go/vnaerr"

// Layout is the pure derivation of sub-matrix offsets and term counts for a
// given (Type, m_rows, m_columns), per spec §4.C. Offsets index into a flat
// per-system unknown vector; for UE14/E12 (column systems) the offsets and
// counts are per-column (identical for every column, since every column has
// the same shape) and Systems > 1 signals the caller to repeat the layout
// once per column.
type Layout struct {
	Type      Type
	MRows     int
	MColumns  int
	Systems   int // 1 for T/U families, m_columns for UE14/E12
	N         int // the per-system square dimension (m_rows==m_columns for T/U families; m_rows for UE14/E12 columns)
	TiOffset  int
	TxOffset  int
	TmOffset  int
	ElTerms   int
	TermsEach int // number of scalar unknowns in each of Ts/Ti/Tx/Tm (or Um/Ui/Ux/Us)
	Total     int // total terms in one system, including the unity term (see Unknowns)
}

// New derives the Layout for (t, mRows, mColumns). It returns a Usage error
// if the dimensions are inconsistent with t's family requirement.
func New(t Type, mRows, mColumns int) (Layout, error) {
	if mRows <= 0 || mColumns <= 0 {
		return Layout{}, vnaerr.Usagef("m_rows and m_columns must be positive")
	}
	if t.IsTFamily() && mRows > mColumns {
		return Layout{}, vnaerr.Usagef("%s requires m_rows <= m_columns, got %d > %d", t, mRows, mColumns)
	}
	if (t.IsUFamily()) && mRows < mColumns {
		return Layout{}, vnaerr.Usagef("%s requires m_rows >= m_columns, got %d < %d", t, mRows, mColumns)
	}
	if t.RequiresSquare() && mRows != mColumns {
		return Layout{}, vnaerr.Usagef("%s requires m_rows == m_columns in this implementation, got %d != %d", t, mRows, mColumns)
	}

	l := Layout{Type: t, MRows: mRows, MColumns: mColumns, Systems: 1}

	switch t {
	case T8, TE10, T16, U8, UE10, U16:
		n := mRows // == mColumns, enforced above
		l.N = n
		if t.IsDiagonal() {
			l.TermsEach = n
		} else {
			l.TermsEach = n * n
		}
		l.TiOffset = l.TermsEach
		l.TxOffset = 2 * l.TermsEach
		l.TmOffset = 3 * l.TermsEach
		l.Total = 4 * l.TermsEach
		if t.HasLeakage() {
			l.ElTerms = n*n - n
		}
	case UE14:
		l.Systems = mColumns
		l.N = mRows
		l.TermsEach = mRows // diagonal, per column
		l.TiOffset = l.TermsEach
		l.TxOffset = 2 * l.TermsEach
		l.TmOffset = 3 * l.TermsEach
		l.Total = 4 * l.TermsEach
		l.ElTerms = mRows - 1 // every row of the column except its own primary row
	case E12:
		l.Systems = mColumns
		l.N = mRows
		l.TermsEach = mRows
		l.TiOffset = l.TermsEach
		l.TxOffset = 2 * l.TermsEach
		l.Total = 3 * l.TermsEach // Em, El, Er only; Et is implicit identity
	default:
		return Layout{}, vnaerr.Usagef("unknown calibration type %v", t)
	}
	return l, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ConstantTermIndex returns the index of the always-unity term within its
// own block (Tm for T types, Um for U types), or -1 if t has none (E12).
// UnityOffset gives its position in one system's unknown vector.
func ConstantTermIndex(t Type) int {
	switch t {
	case T8, TE10, T16:
		return 0 // Tm[0][0] (tm11), offset TmOffset+0
	case U8, UE10, U16, UE14:
		return 0 // Um[0][0] (um11), offset 0 (Um is the first block)
	case E12:
		return -1
	default:
		return -1
	}
}

// UnityOffset returns the absolute offset (within one system's unknown
// vector) of the constant/unity term, or -1 if none.
func (l Layout) UnityOffset() int {
	idx := ConstantTermIndex(l.Type)
	if idx < 0 {
		return -1
	}
	switch l.Type {
	case T8, TE10, T16:
		return l.TmOffset + idx
	default:
		return idx // Um block starts at offset 0
	}
}

// ErrorTermsTotal returns the total number of stored (solved) error-term
// scalars across all systems, including the unity term(s) which are fixed
// rather than solved-for but are still part of the persisted record.
func (l Layout) ErrorTermsTotal() int {
	per := l.Total // already counts the unity element, stored but not solved
	total := per * l.Systems
	total += l.ElTerms * l.Systems
	return total
}

// Unknowns returns the number of unknowns actually solved for per system
// (Total minus the fixed unity element, if any).
func (l Layout) Unknowns() int {
	if ConstantTermIndex(l.Type) < 0 {
		return l.Total
	}
	return l.Total - 1
}

// DenseIndex maps a raw per-system term offset (0..Total-1, as produced by
// the equation expander) to its column in the solved unknown vector,
// compacting out the fixed unity element. It returns -1 for the unity
// offset itself, signaling that the term belongs on the right-hand side as
// a literal +-1 rather than multiplying a solved unknown.
func (l Layout) DenseIndex(raw int) int {
	u := l.UnityOffset()
	if raw == u {
		return -1
	}
	if u >= 0 && raw > u {
		return raw - 1
	}
	return raw
}
