package solver_test

import (
	"bufio"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CK6170/vnacal-go/layout"
	"github.com/CK6170/vnacal-go/newcal"
	"github.com/CK6170/vnacal-go/param"
	"github.com/CK6170/vnacal-go/solver"
	"github.com/CK6170/vnacal-go/vnalog"
)

func freqs() []float64 { return []float64{1e9, 2e9, 3e9} }

// captureStderr redirects os.Stderr for the duration of fn and returns
// everything written to it. vnalog.New binds to os.Stderr at construction
// time, so the swap must happen before any Logger under test is built.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w
	defer func() { os.Stderr = orig }()

	fn()

	require.NoError(t, w.Close())
	var sb strings.Builder
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	return sb.String()
}

// syntheticOnePort builds a one-port T8 calibration where the forward error
// terms are known, and the measurement for each standard is computed by
// applying the closed-form one-port error model m = (e00 + e11*s) /
// (1 + e10*s) directly, so the recovered T8 unknowns are verifiable exactly.
func syntheticOnePort(t *testing.T, store *param.Store, e00, e11, e10 complex128, standards []complex128) *newcal.Builder {
	t.Helper()
	b, err := newcal.New(layout.T8, store, freqs(), 1, 1)
	require.NoError(t, err)

	for _, s := range standards {
		m := make([][][]complex128, len(freqs()))
		for fi := range m {
			mv := (e00 + e11*s) / (1 + e10*s)
			m[fi] = [][]complex128{{mv}}
		}
		h := store.MakeScalar(s)
		require.NoError(t, b.AddSingleReflect(0, h, m))
	}
	return b
}

func TestSolveSimpleRecoversOnePortErrorTerms(t *testing.T) {
	store := param.NewStore()
	e00, e11, e10 := complex(0.01, 0.02), complex(0.98, -0.01), complex(0.02, 0.01)
	b := syntheticOnePort(t, store, e00, e11, e10, []complex128{0, 1, -1})
	defer b.Release()

	res, err := solver.Solve(b, solver.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, solver.Simple, res.Algorithm)
	require.Len(t, res.ErrorTerms, 1)
	require.Len(t, res.ErrorTerms[0], len(freqs()))
	for _, x := range res.ErrorTerms[0] {
		require.Len(t, x, b.Layout.Unknowns())
		// Dense order is Ts, Ti, Tx (Tm is the unity term); the model
		// m = (Ti + Ts*s) / (1 + Tx*s) gives Ts = e11, Ti = e00, Tx = e10.
		for i, want := range []complex128{e11, e00, e10} {
			require.InDelta(t, real(want), real(x[i]), 1e-9)
			require.InDelta(t, imag(want), imag(x[i]), 1e-9)
		}
	}
}

func TestSolveAutoRecoversUnknownReflect(t *testing.T) {
	store := param.NewStore()
	e00, e11, e10 := complex(0.0, 0.0), complex(1.0, 0.0), complex(0.0, 0.0)
	trueReflect := complex(-0.95, 0.05)

	b, err := newcal.New(layout.T8, store, freqs(), 1, 1)
	require.NoError(t, err)
	defer b.Release()

	matchM := make([][][]complex128, len(freqs()))
	for fi := range matchM {
		matchM[fi] = [][]complex128{{(e00 + e11*0) / (1 + e10*0)}}
	}
	require.NoError(t, b.AddSingleReflect(0, param.Match, matchM))

	openM := make([][][]complex128, len(freqs()))
	for fi := range openM {
		openM[fi] = [][]complex128{{(e00 + e11*1) / (1 + e10*1)}}
	}
	require.NoError(t, b.AddSingleReflect(0, param.Open, openM))

	// A fourth, fully known standard is required: with only three one-port
	// standards the per-system linear system (3 equations, 3 x-unknowns) is
	// always exactly solvable for any trial reflect value, leaving nothing
	// for the nonlinear step to fit against. This extra known standard
	// makes the system overdetermined, so the residual actually depends on
	// the unknown reflect's value.
	thirdKnown := complex(0.5, -0.2)
	knownM := make([][][]complex128, len(freqs()))
	for fi := range knownM {
		knownM[fi] = [][]complex128{{(e00 + e11*thirdKnown) / (1 + e10*thirdKnown)}}
	}
	require.NoError(t, b.AddSingleReflect(0, store.MakeScalar(thirdKnown), knownM))

	unknown, err := store.MakeUnknown(param.Short)
	require.NoError(t, err)
	unkM := make([][][]complex128, len(freqs()))
	for fi := range unkM {
		unkM[fi] = [][]complex128{{(e00 + e11*trueReflect) / (1 + e10*trueReflect)}}
	}
	require.NoError(t, b.AddSingleReflect(0, unknown, unkM))

	require.Equal(t, 1, b.VNUnknownParameters)

	res, err := solver.Solve(b, solver.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, solver.Auto, res.Algorithm)

	values, ok := res.Unknowns[unknown]
	require.True(t, ok)
	require.Len(t, values, len(freqs()))
	for _, v := range values {
		require.InDelta(t, real(trueReflect), real(v), 1e-4)
		require.InDelta(t, imag(trueReflect), imag(v), 1e-4)
	}
}

// TestSolveTRLSelectedAndFallsBackGracefully builds a three-standard
// through/reflect/line TE10 configuration and checks that Solve picks the
// TRL path (or transparently falls back to Auto, per DESIGN.md Open
// Question 8) without error.
func TestSolveTRLSelectedAndFallsBackGracefully(t *testing.T) {
	store := param.NewStore()
	b, err := newcal.New(layout.TE10, store, freqs(), 2, 2)
	require.NoError(t, err)
	defer b.Release()

	throughM := make([][][]complex128, len(freqs()))
	for fi := range throughM {
		throughM[fi] = [][]complex128{{0, 1}, {1, 0}}
	}
	require.NoError(t, b.AddThrough(0, 1, throughM))

	reflectHandle, err := store.MakeUnknown(param.Short)
	require.NoError(t, err)
	reflectM := make([][][]complex128, len(freqs()))
	for fi := range reflectM {
		reflectM[fi] = [][]complex128{{-0.9, 0}, {0, -0.9}}
	}
	require.NoError(t, b.AddDoubleReflect(0, 1, reflectHandle, reflectHandle, reflectM))

	lineHandle, err := store.MakeUnknown(store.MakeScalar(1))
	require.NoError(t, err)
	lineM := make([][][]complex128, len(freqs()))
	for fi := range lineM {
		lineM[fi] = [][]complex128{{0, 0.8}, {0.8, 0}}
	}
	require.NoError(t, b.AddLine(0, 1, [2][2]param.Handle{{param.Match, lineHandle}, {lineHandle, param.Match}}, lineM))

	res, err := solver.Solve(b, solver.DefaultOptions())
	require.NoError(t, err)
	require.Contains(t, []solver.Algorithm{solver.TRL, solver.Auto}, res.Algorithm)
}

// trlThroughReflectLineBuilder assembles the three-standard TE10
// configuration classifyTRL recognizes, shared by the TRL-agreement and
// logger-wiring tests below.
func trlThroughReflectLineBuilder(t *testing.T) (*newcal.Builder, param.Handle, param.Handle) {
	t.Helper()
	store := param.NewStore()
	b, err := newcal.New(layout.TE10, store, freqs(), 2, 2)
	require.NoError(t, err)

	throughM := make([][][]complex128, len(freqs()))
	for fi := range throughM {
		throughM[fi] = [][]complex128{{0, 1}, {1, 0}}
	}
	require.NoError(t, b.AddThrough(0, 1, throughM))

	reflectHandle, err := store.MakeUnknown(param.Short)
	require.NoError(t, err)
	reflectM := make([][][]complex128, len(freqs()))
	for fi := range reflectM {
		reflectM[fi] = [][]complex128{{-0.9, 0}, {0, -0.9}}
	}
	require.NoError(t, b.AddDoubleReflect(0, 1, reflectHandle, reflectHandle, reflectM))

	lineHandle, err := store.MakeUnknown(store.MakeScalar(1))
	require.NoError(t, err)
	lineM := make([][][]complex128, len(freqs()))
	for fi := range lineM {
		lineM[fi] = [][]complex128{{0, 0.8}, {0.8, 0}}
	}
	require.NoError(t, b.AddLine(0, 1, [2][2]param.Handle{{param.Match, lineHandle}, {lineHandle, param.Match}}, lineM))

	return b, reflectHandle, lineHandle
}

// TestTRLAgreesWithAutoOnSameSyntheticData is spec §8's "TRL agreement":
// on a configuration where the TRL fast path applies, forcing Auto on the
// identical builder must recover the same error terms within 1e-6.
func TestTRLAgreesWithAutoOnSameSyntheticData(t *testing.T) {
	b, _, _ := trlThroughReflectLineBuilder(t)
	defer b.Release()

	trlAlg := solver.TRL
	trlOpts := solver.DefaultOptions()
	trlOpts.ForceAlgorithm = &trlAlg
	trlRes, err := solver.Solve(b, trlOpts)
	require.NoError(t, err)
	require.Equal(t, solver.TRL, trlRes.Algorithm)

	autoAlg := solver.Auto
	autoOpts := solver.DefaultOptions()
	autoOpts.ForceAlgorithm = &autoAlg
	autoRes, err := solver.Solve(b, autoOpts)
	require.NoError(t, err)
	require.Equal(t, solver.Auto, autoRes.Algorithm)

	require.Equal(t, len(trlRes.ErrorTerms), len(autoRes.ErrorTerms))
	for sys := range trlRes.ErrorTerms {
		require.Equal(t, len(trlRes.ErrorTerms[sys]), len(autoRes.ErrorTerms[sys]))
		for fi := range trlRes.ErrorTerms[sys] {
			trlX, autoX := trlRes.ErrorTerms[sys][fi], autoRes.ErrorTerms[sys][fi]
			require.Len(t, autoX, len(trlX))
			for i := range trlX {
				require.InDelta(t, real(trlX[i]), real(autoX[i]), 1e-6)
				require.InDelta(t, imag(trlX[i]), imag(autoX[i]), 1e-6)
			}
		}
	}
}

// TestSolveLogsAlgorithmSelectionWhenLoggerProvided checks that Solve
// traces its algorithm choice through an injected vnalog.Logger;
// TestSolveStaysSilentWithoutLogger covers the case with no logger.
func TestSolveLogsAlgorithmSelectionWhenLoggerProvided(t *testing.T) {
	b, _, _ := trlThroughReflectLineBuilder(t)
	defer b.Release()

	out := captureStderr(t, func() {
		opts := solver.DefaultOptions()
		opts.Logger = vnalog.New(true)
		_, err := solver.Solve(b, opts)
		require.NoError(t, err)
	})
	require.Contains(t, out, "[DEBUG]")
	require.Contains(t, out, "solver: selected")
}

func TestSolveStaysSilentWithoutLogger(t *testing.T) {
	b, _, _ := trlThroughReflectLineBuilder(t)
	defer b.Release()

	out := captureStderr(t, func() {
		_, err := solver.Solve(b, solver.DefaultOptions())
		require.NoError(t, err)
	})
	require.Empty(t, strings.TrimSpace(out))
}
