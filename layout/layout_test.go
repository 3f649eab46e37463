package layout_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CK6170/vnacal-go/layout"
)

func TestNewRejectsNonPositiveDimensions(t *testing.T) {
	_, err := layout.New(layout.T8, 0, 1)
	require.Error(t, err)
	_, err = layout.New(layout.T8, 1, 0)
	require.Error(t, err)
}

func TestNewEnforcesFamilyShapeConstraints(t *testing.T) {
	_, err := layout.New(layout.T8, 2, 1) // T family requires rows <= cols
	require.Error(t, err)
	_, err = layout.New(layout.U8, 1, 2) // U family requires rows >= cols
	require.Error(t, err)
	_, err = layout.New(layout.T8, 1, 2) // non-UE14/E12 types require a square shape
	require.Error(t, err)

	_, err = layout.New(layout.T8, 2, 2)
	require.NoError(t, err)
	_, err = layout.New(layout.U8, 2, 2)
	require.NoError(t, err)
	// UE14/E12 are the only types with genuinely rectangular (rows>=cols) shapes.
	_, err = layout.New(layout.UE14, 2, 1)
	require.NoError(t, err)
}

func TestT8LayoutDiagonalOnePort(t *testing.T) {
	l, err := layout.New(layout.T8, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 1, l.TermsEach)
	require.Equal(t, 4, l.Total) // Ts, Ti, Tx, Tm each length 1
	require.Equal(t, 3, l.Unknowns()) // Tm[0][0] is the fixed unity term
	require.Equal(t, 0, l.ElTerms)    // T8 has no leakage
	require.Equal(t, 1, l.Systems)
}

func TestTE10HasLeakageTerms(t *testing.T) {
	l, err := layout.New(layout.TE10, 2, 2)
	require.NoError(t, err)
	require.True(t, layout.TE10.HasLeakage())
	require.Equal(t, 2, l.ElTerms) // n*n - n = 4 - 2
}

func TestUE14LayoutIsPerColumn(t *testing.T) {
	l, err := layout.New(layout.UE14, 2, 1)
	require.NoError(t, err)
	require.Equal(t, 1, l.Systems) // m_columns == 1
	require.Equal(t, 2, l.N)
	require.Equal(t, 2, l.TermsEach)
	require.Equal(t, 8, l.Total)
	// matches apply_test.go's documented UE14 (rows=2, cols=1) shape:
	// Unknowns() == 7, with Um_0[0] fixed at 1.
	require.Equal(t, 7, l.Unknowns())
}

func TestE12HasNoUnityTerm(t *testing.T) {
	l, err := layout.New(layout.E12, 2, 1)
	require.NoError(t, err)
	require.Equal(t, -1, layout.ConstantTermIndex(layout.E12))
	require.Equal(t, -1, l.UnityOffset())
	require.Equal(t, l.Total, l.Unknowns(), "E12 has no fixed unity term to exclude")
	require.Equal(t, 3*l.TermsEach, l.Total, "Em, El, Er only; Et is implicit identity")
}

func TestDenseIndexCompactsOutUnityElement(t *testing.T) {
	l, err := layout.New(layout.TE10, 2, 2)
	require.NoError(t, err)
	unity := l.UnityOffset()
	require.GreaterOrEqual(t, unity, 0)
	require.Less(t, unity+1, l.Total, "fixture must leave room past the unity offset")

	require.Equal(t, -1, l.DenseIndex(unity), "unity offset itself must map to -1 (literal RHS term)")
	require.Equal(t, unity-1, l.DenseIndex(unity-1))
	require.Equal(t, unity, l.DenseIndex(unity+1))

	// Every dense index in range must be unique and cover [0, Unknowns()).
	seen := make(map[int]bool)
	for raw := 0; raw < l.Total; raw++ {
		d := l.DenseIndex(raw)
		if d == -1 {
			continue
		}
		require.False(t, seen[d], "duplicate dense index %d", d)
		seen[d] = true
	}
	require.Len(t, seen, l.Unknowns())
}

func TestDenseIndexIsIdentityWhenNoUnityTerm(t *testing.T) {
	l, err := layout.New(layout.E12, 1, 1)
	require.NoError(t, err)
	for raw := 0; raw < l.Total; raw++ {
		require.Equal(t, raw, l.DenseIndex(raw))
	}
}

func TestErrorTermsTotalIncludesUnityAndLeakageAcrossSystems(t *testing.T) {
	l, err := layout.New(layout.UE14, 2, 2)
	require.NoError(t, err)
	// per system: Total terms (which already include the stored-but-fixed
	// unity term), times Systems columns, plus the leakage cells per system.
	wantPerSystem := l.Total
	wantTotal := wantPerSystem*l.Systems + l.ElTerms*l.Systems
	require.Equal(t, wantTotal, l.ErrorTermsTotal())
	require.Greater(t, l.ErrorTermsTotal(), l.Unknowns(), "ErrorTermsTotal is a different, larger quantity than the per-(system,freq) dense vector length")
}

func TestNameToTypeRoundTripsCaseInsensitively(t *testing.T) {
	for _, name := range []string{"T8", "te10", "T16", "u8", "UE10", "U16", "ue14", "E12"} {
		ty, ok := layout.NameToType(name)
		require.True(t, ok, name)

		canonical, ok := layout.TypeToName(ty)
		require.True(t, ok)
		roundTripped, ok := layout.NameToType(canonical)
		require.True(t, ok)
		require.Equal(t, ty, roundTripped)
	}
	_, ok := layout.NameToType("bogus")
	require.False(t, ok)
}

func TestIsTFamilyAndIsUFamilyArePartitioned(t *testing.T) {
	allTypes := []layout.Type{layout.T8, layout.TE10, layout.T16, layout.U8, layout.UE10, layout.U16, layout.UE14, layout.E12}
	for _, ty := range allTypes {
		require.NotEqual(t, ty.IsTFamily(), ty.IsUFamily(), "%v must be exactly one family", ty)
	}
}

func TestRequiresSquareExcludesOnlyUE14AndE12(t *testing.T) {
	for _, ty := range []layout.Type{layout.T8, layout.TE10, layout.T16, layout.U8, layout.UE10, layout.U16} {
		require.True(t, ty.RequiresSquare(), "%v", ty)
	}
	require.False(t, layout.UE14.RequiresSquare())
	require.False(t, layout.E12.RequiresSquare())
}
