package proptree

import "github.com/CK6170/vnacal-go/vnaerr"

// Tree is a property tree rooted at an always-present map node, addressed
// by the expression mini-grammar of path.go. The zero value is not usable;
// use New.
type Tree struct {
	root *Node
}

// New returns an empty Tree whose root is a map.
func New() *Tree {
	return &Tree{root: NewMap()}
}

// Root returns the tree's root node. Callers must not mutate it directly;
// use the Tree methods so auto-vivification stays consistent.
func (t *Tree) Root() *Node { return t.root }

func barePath(expr string) ([]segment, error) {
	p, err := parsePath(expr)
	if err != nil {
		return nil, err
	}
	if p.hasSet || p.hasClear {
		return nil, errUsage("property expression %q: trailing '=' or '#' not accepted here; pass the value as a separate argument", expr)
	}
	return p.segs, nil
}

func ensureMap(n *Node) {
	if n.Kind != KindMap {
		n.Kind = KindMap
		n.Map = map[string]*Node{}
		n.List = nil
		n.Str = ""
	}
}

func ensureList(n *Node) {
	if n.Kind != KindList {
		n.Kind = KindList
		n.List = nil
		n.Map = nil
		n.Str = ""
	}
}

func forceMap(n *Node) {
	n.Kind = KindMap
	n.Map = map[string]*Node{}
	n.List = nil
	n.Str = ""
}

func forceList(n *Node) {
	n.Kind = KindList
	n.List = nil
	n.Map = nil
	n.Str = ""
}

// walk navigates segs starting at n, returning the addressed node. When
// create is false, a missing key/index or a Null node blocking further
// descent reports NOENT rather than auto-vivifying.
func walk(n *Node, segs []segment, create bool) (*Node, error) {
	cur := n
	for _, s := range segs {
		switch s.kind {
		case segDotID:
			if cur.Kind == KindNull {
				if !create {
					return nil, errNoEnt("no such property %q", s.key)
				}
				ensureMap(cur)
			}
			if cur.Kind != KindMap {
				return nil, errUsage("property expression: %q used on a non-map node", s.key)
			}
			child, ok := cur.Map[s.key]
			if !ok {
				if !create {
					return nil, errNoEnt("no such property %q", s.key)
				}
				child = &Node{Kind: KindNull}
				cur.Map[s.key] = child
			}
			cur = child

		case segIndex:
			if s.idx < 0 {
				return nil, errUsage("property expression: negative index %d", s.idx)
			}
			if cur.Kind == KindNull {
				if !create {
					return nil, errNoEnt("no such index %d", s.idx)
				}
				ensureList(cur)
			}
			if cur.Kind != KindList {
				return nil, errUsage("property expression: [%d] used on a non-list node", s.idx)
			}
			if s.idx >= len(cur.List) {
				if !create {
					return nil, errNoEnt("no such index %d", s.idx)
				}
				for len(cur.List) <= s.idx {
					cur.List = append(cur.List, &Node{Kind: KindNull})
				}
			}
			cur = cur.List[s.idx]

		case segInsertAt:
			if !create {
				return nil, errUsage("property expression: [int+] is only valid when setting a value")
			}
			if cur.Kind == KindNull {
				ensureList(cur)
			}
			if cur.Kind != KindList {
				return nil, errUsage("property expression: [%d+] used on a non-list node", s.idx)
			}
			idx := s.idx
			if idx < 0 {
				return nil, errUsage("property expression: negative index %d", idx)
			}
			for len(cur.List) < idx {
				cur.List = append(cur.List, &Node{Kind: KindNull})
			}
			nn := &Node{Kind: KindNull}
			cur.List = append(cur.List, nil)
			copy(cur.List[idx+1:], cur.List[idx:])
			cur.List[idx] = nn
			cur = nn

		case segAppend:
			if !create {
				return nil, errUsage("property expression: [+] is only valid when setting a value")
			}
			if cur.Kind == KindNull {
				ensureList(cur)
			}
			if cur.Kind != KindList {
				return nil, errUsage("property expression: [+] used on a non-list node")
			}
			nn := &Node{Kind: KindNull}
			cur.List = append(cur.List, nn)
			cur = nn

		case segForceMap:
			forceMap(cur)

		case segForceList:
			forceList(cur)
		}
	}
	return cur, nil
}

// Type reports the Kind at expr, or KindNull if nothing is there yet —
// property_type never errors on a missing path.
func (t *Tree) Type(expr string) (Kind, error) {
	segs, err := barePath(expr)
	if err != nil {
		return KindNull, err
	}
	n, err := walk(t.root, segs, false)
	if isNoEnt(err) {
		return KindNull, nil
	}
	if err != nil {
		return KindNull, err
	}
	return n.Kind, nil
}

// Count reports the child/element count at expr (see Node.Count), or 0 if
// nothing is there yet.
func (t *Tree) Count(expr string) (int, error) {
	segs, err := barePath(expr)
	if err != nil {
		return 0, err
	}
	n, err := walk(t.root, segs, false)
	if isNoEnt(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n.Count(), nil
}

// Keys reports the map keys or list indices at expr, or nil if nothing is
// there yet.
func (t *Tree) Keys(expr string) ([]string, error) {
	segs, err := barePath(expr)
	if err != nil {
		return nil, err
	}
	n, err := walk(t.root, segs, false)
	if isNoEnt(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n.Keys(), nil
}

// Get returns the string value at expr. Unlike Type/Count/Keys, a missing
// path is an error: there is no sensible zero-value string to return.
func (t *Tree) Get(expr string) (string, error) {
	segs, err := barePath(expr)
	if err != nil {
		return "", err
	}
	n, err := walk(t.root, segs, false)
	if err != nil {
		return "", err
	}
	if n.Kind != KindString {
		return "", errUsage("property expression %q: node is a %s, not a string", expr, n.Kind)
	}
	return n.Str, nil
}

// Set stores value as a string leaf at expr, auto-vivifying any
// intermediate maps/lists the path requires.
func (t *Tree) Set(expr string, value string) error {
	segs, err := barePath(expr)
	if err != nil {
		return err
	}
	n, err := walk(t.root, segs, true)
	if err != nil {
		return err
	}
	n.Kind = KindString
	n.Str = value
	n.List = nil
	n.Map = nil
	return nil
}

// Delete removes the node at expr from its parent map or list. Deleting a
// list element shifts later elements down; deleting the root is an error.
func (t *Tree) Delete(expr string) error {
	segs, err := barePath(expr)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return errUsage("property expression: cannot delete the root")
	}
	last := segs[len(segs)-1]
	parent, err := walk(t.root, segs[:len(segs)-1], false)
	if err != nil {
		return err
	}
	switch last.kind {
	case segDotID:
		if parent.Kind != KindMap {
			return errUsage("property expression: %q used on a non-map node", last.key)
		}
		if _, ok := parent.Map[last.key]; !ok {
			return errNoEnt("no such property %q", last.key)
		}
		delete(parent.Map, last.key)
	case segIndex:
		if parent.Kind != KindList {
			return errUsage("property expression: [%d] used on a non-list node", last.idx)
		}
		if last.idx < 0 || last.idx >= len(parent.List) {
			return errNoEnt("no such index %d", last.idx)
		}
		parent.List = append(parent.List[:last.idx], parent.List[last.idx+1:]...)
	default:
		return errUsage("property expression: this path cannot be deleted")
	}
	return nil
}

// GetSubtree returns a deep copy of the node addressed by expr.
func (t *Tree) GetSubtree(expr string) (*Node, error) {
	segs, err := barePath(expr)
	if err != nil {
		return nil, err
	}
	n, err := walk(t.root, segs, false)
	if err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// SetSubtree replaces the node addressed by expr with a deep copy of sub,
// auto-vivifying any intermediate maps/lists the path requires.
func (t *Tree) SetSubtree(expr string, sub *Node) error {
	segs, err := barePath(expr)
	if err != nil {
		return err
	}
	n, err := walk(t.root, segs, true)
	if err != nil {
		return err
	}
	clone := sub.Clone()
	if clone == nil {
		clone = &Node{Kind: KindNull}
	}
	n.Kind = clone.Kind
	n.Str = clone.Str
	n.List = clone.List
	n.Map = clone.Map
	return nil
}

func isNoEnt(err error) bool {
	ve, ok := err.(*vnaerr.Error)
	return ok && ve.Errno == vnaerr.NOENT
}
