// Package proptree implements the hierarchical property tree of spec §6: a
// schema-free tree of strings, lists, and maps addressed by a small
// expression mini-grammar ("matrix[2][3].name"), used to attach caller
// metadata to a calibration.
package proptree

// Kind tags the variant a Node currently holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindList
	KindMap
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Node is one point in the tree: a tagged union of null, a leaf string, an
// ordered list of child Nodes, or a map of named child Nodes. The zero Node
// is KindNull.
type Node struct {
	Kind Kind
	Str  string
	List []*Node
	Map  map[string]*Node
}

// NewString returns a leaf string Node.
func NewString(s string) *Node { return &Node{Kind: KindString, Str: s} }

// NewList returns an empty list Node.
func NewList() *Node { return &Node{Kind: KindList} }

// NewMap returns an empty map Node.
func NewMap() *Node { return &Node{Kind: KindMap, Map: map[string]*Node{}} }

// Clone returns a deep copy of n (nil-safe).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Str: n.Str}
	if n.List != nil {
		out.List = make([]*Node, len(n.List))
		for i, c := range n.List {
			out.List[i] = c.Clone()
		}
	}
	if n.Map != nil {
		out.Map = make(map[string]*Node, len(n.Map))
		for k, c := range n.Map {
			out.Map[k] = c.Clone()
		}
	}
	return out
}

// Count mirrors property_count: the number of children for List/Map, 1 for
// a populated String, 0 for Null.
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case KindList:
		return len(n.List)
	case KindMap:
		return len(n.Map)
	case KindString:
		return 1
	default:
		return 0
	}
}

// Keys mirrors property_keys: map keys in an unspecified order, list
// indices stringified in order, or nil for a scalar/null node.
func (n *Node) Keys() []string {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindMap:
		out := make([]string, 0, len(n.Map))
		for k := range n.Map {
			out = append(out, k)
		}
		return out
	case KindList:
		out := make([]string, len(n.List))
		for i := range n.List {
			out[i] = itoa(i)
		}
		return out
	default:
		return nil
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
