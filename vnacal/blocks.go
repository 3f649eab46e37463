package vnacal

import "github.com/CK6170/vnacal-go/layout"

// block names one of a calibration type's stored sub-matrices, per spec
// §6's "error_terms (map of named sub-matrices whose shape matches the
// type's layout)".
type block struct {
	name string
	base int // raw per-system offset, pre layout.Layout.DenseIndex compaction
}

// blocksFor returns the named sub-matrices of l, in the order the layout
// algebra defines them. Every block has l.TermsEach scalar entries (one
// per row of a diagonal type, or n*n for T16/U16's dense blocks).
func blocksFor(l layout.Layout) []block {
	switch l.Type {
	case layout.T8, layout.TE10, layout.T16:
		return []block{
			{"Ts", 0},
			{"Ti", l.TiOffset},
			{"Tx", l.TxOffset},
			{"Tm", l.TmOffset},
		}
	case layout.U8, layout.UE10, layout.U16, layout.UE14:
		return []block{
			{"Um", 0},
			{"Ui", l.TiOffset},
			{"Ux", l.TxOffset},
			{"Us", l.TmOffset},
		}
	case layout.E12:
		return []block{
			{"Em", 0},
			{"El", l.TiOffset},
			{"Er", l.TxOffset},
		}
	default:
		return nil
	}
}

// blockValues extracts block b's l.TermsEach values at one (system,
// frequency) from a dense unknown vector, substituting the literal unity
// constant for the raw offset layout.Layout.DenseIndex reports as -1.
func blockValues(l layout.Layout, b block, dense []complex128) []complex128 {
	out := make([]complex128, l.TermsEach)
	for i := range out {
		idx := l.DenseIndex(b.base + i)
		if idx < 0 {
			out[i] = 1
			continue
		}
		out[i] = dense[idx]
	}
	return out
}

// setBlockValues is the inverse of blockValues: it scatters vals back into
// dense at the dense column each raw offset of block b maps to, skipping
// the (read-only) unity position.
func setBlockValues(l layout.Layout, b block, dense []complex128, vals []complex128) {
	for i, v := range vals {
		idx := l.DenseIndex(b.base + i)
		if idx < 0 {
			continue
		}
		dense[idx] = v
	}
}
