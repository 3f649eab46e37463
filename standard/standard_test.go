package standard_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CK6170/vnacal-go/param"
	"github.com/CK6170/vnacal-go/standard"
)

func twoPortNetwork(t *testing.T) *param.Store {
	t.Helper()
	s := param.NewStore()
	freqs := []float64{1e9, 2e9}
	sparams := [][][]complex128{
		{{0, 1}, {1, 0}},
		{{0, 1}, {1, 0}},
	}
	_, err := s.MakeDataMatrix(&param.Network{NPorts: 2, Freqs: freqs, S: sparams})
	require.NoError(t, err)
	return s
}

func TestAnalyzeDiagonalReflectsLeavePortsUnconnected(t *testing.T) {
	s := param.NewStore()
	mat := [][]param.Handle{
		{param.Open, param.Handle{}},
		{param.Handle{}, param.Open},
	}
	m, err := standard.Analyze(mat, nil, s)
	require.NoError(t, err)
	require.Empty(t, m.StandardIDs)
	require.NotNil(t, m.Connectivity)
	require.True(t, m.Connectivity[0][0])
	require.False(t, m.Connectivity[0][1])
}

func TestAnalyzeMultiPortConsistentMapping(t *testing.T) {
	s := param.NewStore()
	freqs := []float64{1e9}
	sparams := [][][]complex128{{{0, 1}, {1, 0}}}
	hs, err := s.MakeDataMatrix(&param.Network{NPorts: 2, Freqs: freqs, S: sparams})
	require.NoError(t, err)

	mat := [][]param.Handle{
		{hs[0][0], hs[0][1]},
		{hs[1][0], hs[1][1]},
	}
	m, err := standard.Analyze(mat, nil, s)
	require.NoError(t, err)
	require.Len(t, m.StandardIDs, 1)
	id := m.StandardIDs[0]
	require.Len(t, m.Mappings[id], 2)
}

func TestAnalyzeConflictingMapping(t *testing.T) {
	s := param.NewStore()
	freqs := []float64{1e9}
	sparams := [][][]complex128{{{0, 1}, {1, 0}}}
	hs, err := s.MakeDataMatrix(&param.Network{NPorts: 2, Freqs: freqs, S: sparams})
	require.NoError(t, err)

	// Row 0 used twice, bound to standard-port 0 via two different VNA
	// ports: a conflicting mapping.
	mat := [][]param.Handle{
		{hs[0][0], hs[0][0]},
		{param.Handle{}, param.Handle{}},
	}
	_, err = standard.Analyze(mat, nil, s)
	require.Error(t, err)
}

func TestAnalyzeSinglePortOffDiagonal(t *testing.T) {
	s := twoPortNetwork(t)
	freqs := []float64{1e9}
	hData, err := s.MakeData(&param.Network{NPorts: 1, Freqs: freqs, S: [][][]complex128{{{0.5}}}})
	require.NoError(t, err)

	mat := [][]param.Handle{
		{param.Match, hData},
		{param.Handle{}, param.Match},
	}
	_, err = standard.Analyze(mat, nil, s)
	require.Error(t, err)
}

func TestAnalyzeDeletedParameterReference(t *testing.T) {
	s := param.NewStore()
	h, err := s.MakeVector([]float64{1e9, 2e9}, []complex128{0.1, 0.2})
	require.NoError(t, err)
	require.NoError(t, s.Delete(h))

	mat := [][]param.Handle{{h}}
	_, err = standard.Analyze(mat, nil, s)
	require.Error(t, err)
}

func TestAnalyzePortMapTranslatesBindings(t *testing.T) {
	s := param.NewStore()
	freqs := []float64{1e9}
	sparams := [][][]complex128{{{0, 1}, {1, 0}}}
	hs, err := s.MakeDataMatrix(&param.Network{NPorts: 2, Freqs: freqs, S: sparams})
	require.NoError(t, err)

	mat := [][]param.Handle{
		{hs[0][0], hs[0][1]},
		{hs[1][0], hs[1][1]},
	}
	// Remap the physical VNA ports: row/col 0 is actually VNA port 3 and
	// row/col 1 is VNA port 7.
	portMap := []int{3, 7}
	m, err := standard.Analyze(mat, portMap, s)
	require.NoError(t, err)
	id := m.StandardIDs[0]
	ports := map[int]int{}
	for _, b := range m.Mappings[id] {
		ports[b.StandardPort] = b.MatrixPort
	}
	require.Equal(t, 3, ports[0])
	require.Equal(t, 7, ports[1])
}
