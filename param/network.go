package param

// networkStandard is the shared backing store for a CalkitData/NetworkData
// standard: a per-frequency N-port S-matrix. Every cell of the matrix gets
// its own Parameter handle (KindNetworkData), and all of them share one
// networkStandard by reference count, freed once the last cell handle is
// released.
type networkStandard struct {
	id       int
	nports   int
	freqs    []float64
	s        [][][]complex128 // s[freqIndex][row][col]
	refcount int
}

// Network is the caller-supplied description of a physical standard with
// known per-frequency scattering parameters, used by MakeData /
// MakeDataMatrix.
type Network struct {
	NPorts int
	Freqs  []float64       // strictly ascending
	S      [][][]complex128 // S[freqIndex][row][col], row/col < NPorts
}

func (n *Network) validate() error {
	if n.NPorts <= 0 {
		return errUsage("network standard must have at least one port")
	}
	if len(n.Freqs) == 0 {
		return errUsage("network standard must have at least one frequency")
	}
	for i := 1; i < len(n.Freqs); i++ {
		if n.Freqs[i] <= n.Freqs[i-1] {
			return errUsage("network standard frequencies must be strictly ascending")
		}
	}
	if len(n.S) != len(n.Freqs) {
		return errUsage("network standard S has %d frequency slices, want %d", len(n.S), len(n.Freqs))
	}
	for _, slice := range n.S {
		if len(slice) != n.NPorts {
			return errUsage("network standard S slice has %d rows, want %d", len(slice), n.NPorts)
		}
		for _, row := range slice {
			if len(row) != n.NPorts {
				return errUsage("network standard S row has %d columns, want %d", len(row), n.NPorts)
			}
		}
	}
	return nil
}
