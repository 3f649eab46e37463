package vnacal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CK6170/vnacal-go/layout"
	"github.com/CK6170/vnacal-go/proptree"
	"github.com/CK6170/vnacal-go/solver"
	"github.com/CK6170/vnacal-go/vnacal"
)

func mustLayout(t *testing.T, ty layout.Type, rows, cols int) layout.Layout {
	l, err := layout.New(ty, rows, cols)
	require.NoError(t, err)
	return l
}

// TestSaveLoadRoundTripT8 exercises spec §8's round-trip property for a
// single-system type: a saved CalSet, reloaded, must report the same
// type, dimensions, frequencies and error terms.
func TestSaveLoadRoundTripT8(t *testing.T) {
	cs := vnacal.Create(nil)
	require.NoError(t, cs.SetDPrecision(vnacal.MaxPrecision))
	require.NoError(t, cs.SetFPrecision(vnacal.MaxPrecision))

	l := mustLayout(t, layout.T8, 1, 1)
	ts, ti, tx := complex(0.9, 0.05), complex(0.02, -0.01), complex(0.03, 0.02)
	res := &solver.Result{
		Type:       layout.T8,
		Layout:     l,
		Freqs:      []float64{1e9, 2e9},
		ErrorTerms: [][][]complex128{{{ts, ti, tx}, {ts, ti, tx}}},
		Leakage:    []([]map[[2]int]complex128){{{}, {}}},
	}
	c, err := cs.AddCalibration("thru", nil, res, vnacal.Z0{Kind: vnacal.Z0Scalar, Scalar: complex(50, 0)})
	require.NoError(t, err)
	require.NoError(t, c.Properties.Set("notes", "calibrated at room temperature"))

	path := filepath.Join(t.TempDir(), "cal.yaml")
	require.NoError(t, cs.Save(path))

	loaded, err := vnacal.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.GetCalibrationEnd())

	lc, err := loaded.Calibration(0)
	require.NoError(t, err)
	require.Equal(t, "thru", lc.Name)
	require.Equal(t, layout.T8, lc.Type)
	require.Equal(t, []float64{1e9, 2e9}, lc.Freqs)
	require.Equal(t, res.ErrorTerms, lc.ErrorTerms)
	require.Equal(t, complex(50, 0), lc.Z0.Scalar)

	notes, err := lc.Properties.Get("notes")
	require.NoError(t, err)
	require.Equal(t, "calibrated at room temperature", notes)
}

// TestSaveLoadRoundTripUE14WithLeakage exercises the per-system
// error_terms map (Layout.Systems > 1) together with a populated leakage
// term.
func TestSaveLoadRoundTripUE14WithLeakage(t *testing.T) {
	cs := vnacal.Create(nil)
	l := mustLayout(t, layout.UE14, 2, 2)

	mkSystem := func(v complex128) []complex128 {
		x := make([]complex128, l.Unknowns())
		x[1] = v
		return x
	}
	res := &solver.Result{
		Type:   layout.UE14,
		Layout: l,
		Freqs:  []float64{1e9},
		ErrorTerms: [][][]complex128{
			{mkSystem(complex(0.1, 0.2))},
			{mkSystem(complex(0.3, -0.1))},
		},
		Leakage: []([]map[[2]int]complex128){
			{{[2]int{0, 1}: complex(0.01, 0.02)}},
			{{[2]int{1, 0}: complex(0.02, -0.01)}},
		},
	}
	_, err := cs.AddCalibration("full", nil, res, vnacal.Z0{Kind: vnacal.Z0PerPort, PerPort: []complex128{50, 50}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ue14.yaml")
	require.NoError(t, cs.Save(path))

	loaded, err := vnacal.Load(path, nil)
	require.NoError(t, err)
	lc, err := loaded.Calibration(0)
	require.NoError(t, err)

	require.Len(t, lc.ErrorTerms, 2)
	require.InDelta(t, real(complex(0.1, 0.2)), real(lc.ErrorTerms[0][0][1]), 1e-6)
	require.InDelta(t, imag(complex(0.1, 0.2)), imag(lc.ErrorTerms[0][0][1]), 1e-6)
	require.Equal(t, complex(0.01, 0.02), lc.Leakage[0][0][[2]int{0, 1}])
	require.Equal(t, complex(0.02, -0.01), lc.Leakage[1][0][[2]int{1, 0}])
	require.Equal(t, []complex128{50, 50}, lc.Z0.PerPort)
}

// TestSaveLoadPropertyKeyWithReservedCharactersRoundTrips is spec §8
// scenario 6: a property key containing reserved characters, escaped by
// quote_key, must still address the same value after a save/load cycle.
func TestSaveLoadPropertyKeyWithReservedCharactersRoundTrips(t *testing.T) {
	cs := vnacal.Create(nil)
	l := mustLayout(t, layout.E12, 1, 1)
	res := &solver.Result{
		Type:       layout.E12,
		Layout:     l,
		Freqs:      []float64{1e9},
		ErrorTerms: [][][]complex128{{{complex(0.1, 0), complex(0.02, 0), complex(0.03, 0)}}},
		Leakage:    []([]map[[2]int]complex128){{{}}},
	}
	c, err := cs.AddCalibration("e12", nil, res, vnacal.Z0{Kind: vnacal.Z0Scalar, Scalar: 50})
	require.NoError(t, err)

	key := "foo.bar[0]"
	require.NoError(t, c.Properties.Set(proptree.QuoteKey(key), "hello"))

	path := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, cs.Save(path))

	loaded, err := vnacal.Load(path, nil)
	require.NoError(t, err)
	lc, err := loaded.Calibration(0)
	require.NoError(t, err)

	keys, err := lc.Properties.Keys("")
	require.NoError(t, err)
	require.Contains(t, keys, key)

	v, err := lc.Properties.Get(proptree.QuoteKey(key))
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 99\ncalibrations: []\n"), 0o644))
	_, err := vnacal.Load(path, nil)
	require.Error(t, err)
}

func TestAddCalibrationRejectsDuplicateName(t *testing.T) {
	cs := vnacal.Create(nil)
	l := mustLayout(t, layout.T8, 1, 1)
	res := &solver.Result{
		Type:       layout.T8,
		Layout:     l,
		Freqs:      []float64{1e9},
		ErrorTerms: [][][]complex128{{{1, 0, 0}}},
		Leakage:    []([]map[[2]int]complex128){{{}}},
	}
	_, err := cs.AddCalibration("dup", nil, res, vnacal.Z0{})
	require.NoError(t, err)
	_, err = cs.AddCalibration("dup", nil, res, vnacal.Z0{})
	require.Error(t, err)
}

func TestDeleteCalibrationShiftsIndices(t *testing.T) {
	cs := vnacal.Create(nil)
	l := mustLayout(t, layout.T8, 1, 1)
	res := &solver.Result{
		Type:       layout.T8,
		Layout:     l,
		Freqs:      []float64{1e9},
		ErrorTerms: [][][]complex128{{{1, 0, 0}}},
		Leakage:    []([]map[[2]int]complex128){{{}}},
	}
	_, err := cs.AddCalibration("a", nil, res, vnacal.Z0{})
	require.NoError(t, err)
	_, err = cs.AddCalibration("b", nil, res, vnacal.Z0{})
	require.NoError(t, err)

	require.NoError(t, cs.DeleteCalibration(0))
	require.Equal(t, 1, cs.GetCalibrationEnd())
	remaining, err := cs.Calibration(0)
	require.NoError(t, err)
	require.Equal(t, "b", remaining.Name)
}
