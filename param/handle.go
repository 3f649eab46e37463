// Package param implements the calibration engine's parameter store: a
// slab of generational handles holding scalar, frequency-vector, unknown,
// correlated, and network-data standard parameters, reference-counted with
// deferred (tombstoned) deletion.
package param

import "fmt"

// Handle identifies a parameter in a Store. The Generation field lets the
// store detect use-after-free without wall-clock bookkeeping: once a slot
// is recycled its generation increments, so a stale Handle referencing the
// old generation is rejected rather than silently aliasing new data.
type Handle struct {
	Index      int32
	Generation int32
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	return fmt.Sprintf("#%d.%d", h.Index, h.Generation)
}

// IsZero reports whether h is the zero Handle (never a valid allocation).
func (h Handle) IsZero() bool { return h.Index == 0 && h.Generation == 0 }

// Reserved handles that always exist in a freshly created Store, per spec.
var (
	Match = Handle{Index: 0, Generation: 1} // VNACAL_MATCH: gamma = 0
	Open  = Handle{Index: 1, Generation: 1} // VNACAL_OPEN: gamma = +1
	Short = Handle{Index: 2, Generation: 1} // VNACAL_SHORT: gamma = -1
)

// Kind tags which variant a parameter entry holds.
type Kind int

const (
	KindScalar Kind = iota
	KindVector
	KindUnknown
	KindCorrelated
	KindNetworkData
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "Scalar"
	case KindVector:
		return "Vector"
	case KindUnknown:
		return "Unknown"
	case KindCorrelated:
		return "Correlated"
	case KindNetworkData:
		return "NetworkData"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
