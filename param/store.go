package param

import (
	"math"

	"github.com/CK6170/vnacal-go/internal/numeric"
)

// extrapolationSlack (epsilon) widens a Vector parameter's usable frequency
// range slightly beyond its tabulated endpoints.
const extrapolationSlack = 0.01

type entry struct {
	generation int32
	refcount   int32
	tombstoned bool
	inUse      bool
	kind       Kind

	// Scalar
	scalar complex128

	// Vector
	vecInterp *numeric.RationalInterpolator
	vecFmin   float64
	vecFmax   float64

	// Unknown
	unknownInitial Handle
	unknownSolved  []complex128 // indexed the same as the solve's frequency vector
	unknownSolveFs []float64

	// Correlated
	corrOther Handle
	corrSigma *numeric.CubicSpline

	// NetworkData cell
	net     *networkStandard
	netRow  int
	netCol  int
}

// Store owns all Parameter objects for one calibration container, indexed
// by integer Handle with reference counting and deferred (tombstoned)
// deletion.
type Store struct {
	entries        []entry
	freeList       []int32
	nextStandardID int
}

// NewStore creates a Store with the three predefined handles (Match, Open,
// Short) already allocated.
func NewStore() *Store {
	s := &Store{}
	m := s.alloc()
	o := s.alloc()
	sh := s.alloc()
	s.entries[m.Index] = entry{generation: m.Generation, refcount: 1, inUse: true, kind: KindScalar, scalar: 0}
	s.entries[o.Index] = entry{generation: o.Generation, refcount: 1, inUse: true, kind: KindScalar, scalar: 1}
	s.entries[sh.Index] = entry{generation: sh.Generation, refcount: 1, inUse: true, kind: KindScalar, scalar: -1}
	return s
}

func (s *Store) alloc() Handle {
	if n := len(s.freeList); n > 0 {
		idx := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		gen := s.entries[idx].generation + 1
		return Handle{Index: idx, Generation: gen}
	}
	s.entries = append(s.entries, entry{generation: 1})
	return Handle{Index: int32(len(s.entries) - 1), Generation: 1}
}

func (s *Store) get(h Handle) (*entry, error) {
	if h.Index < 0 || int(h.Index) >= len(s.entries) {
		return nil, errUsage("parameter handle %s out of range", h)
	}
	e := &s.entries[h.Index]
	if !e.inUse || e.generation != h.Generation {
		return nil, errUsage("parameter handle %s is stale or deleted", h)
	}
	return e, nil
}

// MakeScalar allocates a frequency-independent reflection/transmission
// coefficient.
func (s *Store) MakeScalar(gamma complex128) Handle {
	h := s.alloc()
	s.entries[h.Index] = entry{generation: h.Generation, refcount: 1, inUse: true, kind: KindScalar, scalar: gamma}
	return h
}

// MakeVector allocates a tabulated parameter, interpolated by rational
// function with a restartable segment hint. freqs must be strictly
// ascending and the same length as gammas.
func (s *Store) MakeVector(freqs []float64, gammas []complex128) (Handle, error) {
	if len(freqs) == 0 || len(freqs) != len(gammas) {
		return Handle{}, errUsage("vector parameter needs matching, non-empty freqs/values")
	}
	for i := 1; i < len(freqs); i++ {
		if freqs[i] <= freqs[i-1] {
			return Handle{}, errUsage("vector parameter frequencies must be strictly ascending")
		}
	}
	h := s.alloc()
	fs := append([]float64(nil), freqs...)
	vs := append([]complex128(nil), gammas...)
	s.entries[h.Index] = entry{
		generation: h.Generation,
		refcount:   1,
		inUse:      true,
		kind:       KindVector,
		vecInterp:  numeric.NewRationalInterpolator(fs, vs),
		vecFmin:    fs[0] * (1 - extrapolationSlack),
		vecFmax:    fs[len(fs)-1] * (1 + extrapolationSlack),
	}
	return h, nil
}

// MakeUnknown allocates a parameter whose value is solved for during
// calibration, seeded with an initial guess (itself a Scalar or Vector
// handle).
func (s *Store) MakeUnknown(initialGuess Handle) (Handle, error) {
	ge, err := s.get(initialGuess)
	if err != nil {
		return Handle{}, errUsage("unknown parameter initial guess: %v", err)
	}
	if ge.kind != KindScalar && ge.kind != KindVector {
		return Handle{}, errUsage("unknown parameter initial guess must resolve to a scalar or vector")
	}
	s.hold(initialGuess)
	h := s.alloc()
	s.entries[h.Index] = entry{generation: h.Generation, refcount: 1, inUse: true, kind: KindUnknown, unknownInitial: initialGuess}
	return h, nil
}

// MakeCorrelated allocates an unknown constrained to lie near other, with a
// frequency-dependent standard deviation sigma given as a table fit by a
// cubic spline. other must outlive the Correlated parameter (enforced by
// the store owning all parameters) and sigma values must be non-negative.
func (s *Store) MakeCorrelated(other Handle, sigmaFreqs []float64, sigmaValues []float64) (Handle, error) {
	if _, err := s.get(other); err != nil {
		return Handle{}, errUsage("correlated parameter other: %v", err)
	}
	if len(sigmaFreqs) == 0 || len(sigmaFreqs) != len(sigmaValues) {
		return Handle{}, errUsage("correlated parameter needs matching, non-empty sigma table")
	}
	for _, v := range sigmaValues {
		if v < 0 {
			return Handle{}, errUsage("correlated parameter sigma must be >= 0")
		}
	}
	s.hold(other)
	h := s.alloc()
	s.entries[h.Index] = entry{
		generation: h.Generation,
		refcount:   1,
		inUse:      true,
		kind:       KindCorrelated,
		corrOther:  other,
		corrSigma:  numeric.NewCubicSpline(sigmaFreqs, sigmaValues),
	}
	return h, nil
}

// MakeData allocates a single-port network standard (NPorts == 1),
// returning the one Parameter handle for its reflection coefficient.
func (s *Store) MakeData(n *Network) (Handle, error) {
	hs, err := s.MakeDataMatrix(n)
	if err != nil {
		return Handle{}, err
	}
	if n.NPorts != 1 {
		return Handle{}, errUsage("MakeData requires a 1-port network; use MakeDataMatrix for NPorts > 1")
	}
	return hs[0][0], nil
}

// MakeDataMatrix allocates an NPorts x NPorts matrix of Parameter handles
// for a physical standard with known per-frequency S-parameters, all
// sharing one backing networkStandard by reference count.
func (s *Store) MakeDataMatrix(n *Network) ([][]Handle, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}
	s.nextStandardID++
	ns := &networkStandard{
		id:     s.nextStandardID,
		nports: n.NPorts,
		freqs:  append([]float64(nil), n.Freqs...),
		s:      cloneS(n.S),
	}
	out := make([][]Handle, n.NPorts)
	for r := 0; r < n.NPorts; r++ {
		out[r] = make([]Handle, n.NPorts)
		for c := 0; c < n.NPorts; c++ {
			h := s.alloc()
			s.entries[h.Index] = entry{generation: h.Generation, refcount: 1, inUse: true, kind: KindNetworkData, net: ns, netRow: r, netCol: c}
			ns.refcount++
			out[r][c] = h
		}
	}
	return out, nil
}

func cloneS(in [][][]complex128) [][][]complex128 {
	out := make([][][]complex128, len(in))
	for i, slice := range in {
		out[i] = make([][]complex128, len(slice))
		for j, row := range slice {
			out[i][j] = append([]complex128(nil), row...)
		}
	}
	return out
}

// Range returns the usable [fmin, fmax] frequency range of handle h.
func (s *Store) Range(h Handle) (fmin, fmax float64, err error) {
	e, err := s.get(h)
	if err != nil {
		return 0, 0, err
	}
	switch e.kind {
	case KindScalar:
		return math.Inf(-1), math.Inf(1), nil
	case KindVector:
		return e.vecFmin, e.vecFmax, nil
	case KindUnknown:
		return s.Range(e.unknownInitial)
	case KindCorrelated:
		return s.Range(e.corrOther)
	case KindNetworkData:
		return e.net.freqs[0] * (1 - extrapolationSlack), e.net.freqs[len(e.net.freqs)-1] * (1 + extrapolationSlack), nil
	default:
		return 0, 0, errUsage("unknown parameter kind")
	}
}

// CheckFrequencyRange verifies that every frequency in freqs lies inside
// handle h's usable range, per the new-calibration frequency-vector
// assertion (spec §4.B).
func (s *Store) CheckFrequencyRange(h Handle, freqs []float64) error {
	fmin, fmax, err := s.Range(h)
	if err != nil {
		return err
	}
	for _, f := range freqs {
		if f < fmin || f > fmax {
			return errUsage("frequency %g is outside parameter %s's frequency range [%g, %g]", f, h, fmin, fmax)
		}
	}
	return nil
}

// Kind returns the variant tag of handle h.
func (s *Store) Kind(h Handle) (Kind, error) {
	e, err := s.get(h)
	if err != nil {
		return 0, err
	}
	return e.kind, nil
}

// IsUnknown reports whether h is an Unknown or Correlated parameter (i.e.
// something the solver must recover rather than read directly).
func (s *Store) IsUnknown(h Handle) (bool, error) {
	k, err := s.Kind(h)
	if err != nil {
		return false, err
	}
	return k == KindUnknown || k == KindCorrelated, nil
}

// CorrelatedOf returns the "other" handle and sigma(f) for a Correlated
// parameter.
func (s *Store) CorrelatedOf(h Handle) (other Handle, sigma func(float64) float64, err error) {
	e, err := s.get(h)
	if err != nil {
		return Handle{}, nil, err
	}
	if e.kind != KindCorrelated {
		return Handle{}, nil, errUsage("parameter %s is not Correlated", h)
	}
	spline := e.corrSigma
	return e.corrOther, spline.Eval, nil
}

// StandardCell reports which physical multi-port standard (identified by id,
// stable for the lifetime of the networkStandard) and which (row, col) cell
// of it handle h refers to. It returns ok=false for any parameter that is
// not a NetworkData cell, letting the standard package tell apart distinct
// physical standards sharing one port-map without caring about the
// parameter's underlying S-matrix values.
func (s *Store) StandardCell(h Handle) (id, nports, row, col int, ok bool, err error) {
	e, err := s.get(h)
	if err != nil {
		return 0, 0, 0, 0, false, err
	}
	if e.kind != KindNetworkData {
		return 0, 0, 0, 0, false, nil
	}
	return e.net.id, e.net.nports, e.netRow, e.netCol, true, nil
}

// InitialGuess returns the seed handle of an Unknown parameter.
func (s *Store) InitialGuess(h Handle) (Handle, error) {
	e, err := s.get(h)
	if err != nil {
		return Handle{}, err
	}
	if e.kind != KindUnknown {
		return Handle{}, errUsage("parameter %s is not Unknown", h)
	}
	return e.unknownInitial, nil
}

// GetValue returns the complex value of parameter h at frequency f. Scalar
// and Vector parameters evaluate directly; Unknown and Correlated
// parameters require a prior SetSolution call for the matching frequency
// set, and return the post-solve value.
func (s *Store) GetValue(h Handle, f float64) (complex128, error) {
	e, err := s.get(h)
	if err != nil {
		return 0, err
	}
	switch e.kind {
	case KindScalar:
		return e.scalar, nil
	case KindVector:
		return e.vecInterp.Eval(f), nil
	case KindNetworkData:
		return s.networkValue(e, f), nil
	case KindUnknown, KindCorrelated:
		return s.solvedValue(e, f)
	default:
		return 0, errUsage("unknown parameter kind")
	}
}

func (s *Store) networkValue(e *entry, f float64) complex128 {
	reals := make([]complex128, len(e.net.freqs))
	for i := range e.net.freqs {
		reals[i] = e.net.s[i][e.netRow][e.netCol]
	}
	interp := numeric.NewRationalInterpolator(e.net.freqs, reals)
	return interp.Eval(f)
}

func (s *Store) solvedValue(e *entry, f float64) (complex128, error) {
	if len(e.unknownSolveFs) == 0 {
		return 0, errUsage("parameter has no solution yet; GetValue on Unknown/Correlated requires a completed solve")
	}
	interp := numeric.NewRationalInterpolator(e.unknownSolveFs, e.unknownSolved)
	return interp.Eval(f), nil
}

// SetSolution installs the per-frequency solved values for an Unknown or
// Correlated parameter after a successful solve.
func (s *Store) SetSolution(h Handle, freqs []float64, values []complex128) error {
	e, err := s.get(h)
	if err != nil {
		return err
	}
	if e.kind != KindUnknown && e.kind != KindCorrelated {
		return errUsage("SetSolution requires an Unknown or Correlated parameter")
	}
	e.unknownSolveFs = append([]float64(nil), freqs...)
	e.unknownSolved = append([]complex128(nil), values...)
	return nil
}

// hold increments the reference count of h.
func (s *Store) hold(h Handle) {
	if e, err := s.get(h); err == nil {
		e.refcount++
	}
}

// Hold increments the reference count of h; callers (the new-calibration
// builder) must pair every Hold with a Release.
func (s *Store) Hold(h Handle) error {
	e, err := s.get(h)
	if err != nil {
		return err
	}
	if e.tombstoned {
		return errUsage("parameter handle %s has been deleted", h)
	}
	e.refcount++
	return nil
}

// Release decrements the reference count of h, freeing the slot if it has
// reached zero and the parameter was already tombstoned.
func (s *Store) Release(h Handle) {
	e, err := s.get(h)
	if err != nil {
		return
	}
	e.refcount--
	s.maybeFree(h.Index, e)
}

func (s *Store) maybeFree(idx int32, e *entry) {
	if e.refcount > 0 || !e.tombstoned {
		return
	}
	if e.kind == KindNetworkData && e.net != nil {
		e.net.refcount--
	}
	switch e.kind {
	case KindUnknown:
		s.Release(e.unknownInitial)
	case KindCorrelated:
		s.Release(e.corrOther)
	}
	*e = entry{generation: e.generation}
	s.freeList = append(s.freeList, idx)
}

// Delete tombstones handle h: it rejects new uses but remains live for any
// solve already in progress, freed only once its reference count reaches
// zero.
func (s *Store) Delete(h Handle) error {
	if h == Match || h == Open || h == Short {
		return errUsage("cannot delete the predefined parameter %s", h)
	}
	e, err := s.get(h)
	if err != nil {
		return err
	}
	e.tombstoned = true
	e.refcount--
	s.maybeFree(h.Index, e)
	return nil
}

// Stats reports live/tombstoned/total entry counts, used to verify
// reference-count soundness after a solve-and-free cycle. Total is the
// number of allocated (not yet freed) slots.
type Stats struct {
	Live       int
	Tombstoned int
	Total      int
}

// Stats returns a snapshot of the store's allocation counters.
func (s *Store) Stats() Stats {
	st := Stats{Total: len(s.entries) - len(s.freeList)}
	for i := range s.entries {
		e := &s.entries[i]
		if !e.inUse {
			continue
		}
		if e.tombstoned {
			st.Tombstoned++
		} else {
			st.Live++
		}
	}
	return st
}
