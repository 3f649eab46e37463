package solver

import (
	"github.com/CK6170/vnacal-go/newcal"
	"github.com/CK6170/vnacal-go/newcal/equation"
	"github.com/CK6170/vnacal-go/param"
)

type leakAccum struct {
	sum   complex128
	sumsq float64
	count int
}

// evalHandle resolves h's complex value at frequency f. guesses overrides
// Unknown/Correlated handles with the solver's current iterate; when a
// handle is not yet in guesses its chain is followed down to the nearest
// Scalar/Vector/NetworkData value, seeding the first guess from the
// parameter's own declared initial value.
func evalHandle(store *param.Store, h param.Handle, f float64, guesses map[param.Handle]complex128) (complex128, error) {
	if h.IsZero() {
		return 0, nil
	}
	if v, ok := guesses[h]; ok {
		return v, nil
	}
	kind, err := store.Kind(h)
	if err != nil {
		return 0, err
	}
	switch kind {
	case param.KindUnknown:
		init, err := store.InitialGuess(h)
		if err != nil {
			return 0, err
		}
		return evalHandle(store, init, f, guesses)
	case param.KindCorrelated:
		other, _, err := store.CorrelatedOf(h)
		if err != nil {
			return 0, err
		}
		return evalHandle(store, other, f, guesses)
	default:
		return store.GetValue(h, f)
	}
}

func evalSValues(store *param.Store, ms *newcal.Measurement, f float64, guesses map[param.Handle]complex128) ([]complex128, error) {
	vals := make([]complex128, ms.Rows*ms.Cols)
	for i, row := range ms.SMatrix {
		for j, h := range row {
			v, err := evalHandle(store, h, f, guesses)
			if err != nil {
				return nil, err
			}
			vals[i*ms.Cols+j] = v
		}
	}
	return vals, nil
}

func flatAt(m [][]complex128, idx, cols int) complex128 {
	return m[idx/cols][idx%cols]
}

// assembleSystem builds the equations x unknowns complex matrix A and
// right-hand side rhs for one (system, frequency) pair, walking every
// measurement's term list and diverting leakage equations into leak.
func assembleSystem(b *newcal.Builder, eqLists [][]equation.Equation, sysIdx, fi int, f float64, opts Options, guesses map[param.Handle]complex128) (A [][]complex128, rhs []complex128, leak map[[2]int]*leakAccum, err error) {
	unknowns := b.Layout.Unknowns()
	leak = make(map[[2]int]*leakAccum)
	for mi, ms := range b.Measurements {
		sVals, e := evalSValues(b.Store, ms, f, guesses)
		if e != nil {
			return nil, nil, nil, e
		}
		for _, eq := range eqLists[mi] {
			if b.Layout.Systems > 1 && eq.Col != sysIdx {
				continue
			}
			if eq.Leakage {
				val := ms.M[fi][eq.Row][eq.Col]
				key := [2]int{eq.Row, eq.Col}
				acc := leak[key]
				if acc == nil {
					acc = &leakAccum{}
					leak[key] = acc
				}
				acc.sum += val
				acc.sumsq += real(val)*real(val) + imag(val)*imag(val)
				acc.count++
				continue
			}
			row := make([]complex128, unknowns)
			var rowRHS complex128
			for _, term := range eq.Terms {
				factor := complex(1, 0)
				if term.MCell >= 0 {
					factor *= flatAt(ms.M[fi], term.MCell, ms.Cols)
				}
				if term.SCell >= 0 {
					factor *= sVals[term.SCell]
				}
				if term.Negative {
					factor = -factor
				}
				if term.XIndex >= 0 {
					row[term.XIndex] += factor
				} else {
					rowRHS += factor
				}
			}
			if opts.MeasurementErrorModel {
				w := measurementWeight(opts, ms.M[fi][eq.Row][eq.Col])
				for k := range row {
					row[k] *= w
				}
				rowRHS *= w
			}
			A = append(A, row)
			rhs = append(rhs, rowRHS)
		}
	}
	return A, rhs, leak, nil
}

func meanLeakage(leak map[[2]int]*leakAccum) map[[2]int]complex128 {
	out := make(map[[2]int]complex128, len(leak))
	for k, acc := range leak {
		if acc.count == 0 {
			continue
		}
		out[k] = acc.sum / complex(float64(acc.count), 0)
	}
	return out
}
