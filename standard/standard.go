// Package standard implements the port-map validation and connectivity
// analysis of spec §4.I: given the s_rows x s_cols index matrix an add_*
// operation supplies (plus an optional explicit port_map), it works out
// which physical multi-port standards are referenced, how their ports bind
// to VNA ports, and the reflexive transitive closure used by the equation
// expander to skip terms that are guaranteed to vanish.
package standard

import "github.com/CK6170/vnacal-go/param"

// PortBinding records that logical standard-port StandardPort sits at VNA
// port MatrixPort for one particular multi-port standard.
type PortBinding struct {
	StandardPort int
	MatrixPort   int
}

// Model is the result of analyzing one measurement's s index matrix: the
// distinct multi-port standards it touches, their port bindings, and the
// measurement's port connectivity.
type Model struct {
	Rows, Cols int

	// StandardIDs lists, in first-seen order, the ids of every distinct
	// multi-port (nports > 1) physical standard referenced by the matrix.
	StandardIDs []int

	// Mappings[id] is the set of (standard-port -> VNA-port) bindings
	// discovered for standard id, deduplicated and order-independent.
	Mappings map[int][]PortBinding

	// Connectivity is the reflexive transitive closure of "VNA port i and
	// VNA port j are connected through some non-empty cell of s". Only
	// populated when Rows == Cols; nil otherwise.
	Connectivity [][]bool
}

// Analyze validates the s_rows x s_cols matrix of parameter handles s
// (param.Handle{} marks an absent cell) against store, using the optional
// port_map to translate matrix row/column indices into physical VNA port
// numbers (identity if portMap is nil). It rejects, with vnaerr.Usage:
// duplicate conflicting port mappings for the same standard, a multi-port
// standard cell placed inconsistently with its own other cells, a
// single-port standard cell off the major diagonal, and references to
// parameter handles whose slot has been freed. A parameter that was deleted
// but is still held elsewhere passes here; param.Store.Hold rejects it when
// the builder takes its hold.
func Analyze(s [][]param.Handle, portMap []int, store *param.Store) (*Model, error) {
	rows := len(s)
	cols := 0
	if rows > 0 {
		cols = len(s[0])
	}
	for _, row := range s {
		if len(row) != cols {
			return nil, errUsage("standard index matrix rows have inconsistent lengths")
		}
	}
	if portMap != nil && len(portMap) < rows && len(portMap) < cols {
		return nil, errUsage("port_map length %d is too short for a %dx%d index matrix", len(portMap), rows, cols)
	}
	physPort := func(i int) int {
		if portMap == nil {
			return i
		}
		return portMap[i]
	}

	m := &Model{Rows: rows, Cols: cols, Mappings: make(map[int][]PortBinding)}
	seen := make(map[int]bool)
	bound := make(map[int]map[int]int) // standardID -> standardPort -> VNA port
	present := make([][]bool, rows)
	for i := range present {
		present[i] = make([]bool, cols)
	}

	bind := func(standardID, standardPort, vnaPort int) error {
		if bound[standardID] == nil {
			bound[standardID] = make(map[int]int)
		}
		if existing, ok := bound[standardID][standardPort]; ok {
			if existing != vnaPort {
				return errUsage("standard %d: port %d maps to both VNA port %d and %d", standardID, standardPort, existing, vnaPort)
			}
			return nil
		}
		bound[standardID][standardPort] = vnaPort
		m.Mappings[standardID] = append(m.Mappings[standardID], PortBinding{StandardPort: standardPort, MatrixPort: vnaPort})
		return nil
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			h := s[i][j]
			if h.IsZero() {
				continue
			}
			present[i][j] = true

			if _, err := store.Kind(h); err != nil {
				return nil, errUsage("standard index matrix cell (%d,%d): %v", i, j, err)
			}

			id, nports, netRow, netCol, ok, err := store.StandardCell(h)
			if err != nil {
				return nil, errUsage("standard index matrix cell (%d,%d): %v", i, j, err)
			}
			if !ok {
				// Not a network-data cell (scalar/vector/unknown/correlated):
				// no port-map constraint applies, e.g. a through's
				// off-diagonal unity scalar.
				continue
			}
			if nports == 1 {
				if i != j {
					return nil, errUsage("standard index matrix cell (%d,%d): single-port standard %d must sit on the major diagonal", i, j, id)
				}
				continue
			}
			if !seen[id] {
				seen[id] = true
				m.StandardIDs = append(m.StandardIDs, id)
			}
			if err := bind(id, netRow, physPort(i)); err != nil {
				return nil, err
			}
			if err := bind(id, netCol, physPort(j)); err != nil {
				return nil, err
			}
		}
	}

	if rows == cols {
		m.Connectivity = transitiveClosure(present, rows)
	}
	return m, nil
}

// transitiveClosure computes the reflexive transitive closure of the n x n
// boolean adjacency matrix adj (Floyd-Warshall), per spec §4.I's
// connectivity_matrix.
func transitiveClosure(adj [][]bool, n int) [][]bool {
	c := make([][]bool, n)
	for i := 0; i < n; i++ {
		c[i] = append([]bool(nil), adj[i]...)
		c[i][i] = true
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if !c[i][k] {
				continue
			}
			for j := 0; j < n; j++ {
				if c[k][j] {
					c[i][j] = true
				}
			}
		}
	}
	return c
}
