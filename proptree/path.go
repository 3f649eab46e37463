package proptree

import "strings"

// segKind tags one parsed path segment.
type segKind int

const (
	segDotID segKind = iota
	segIndex
	segInsertAt
	segAppend
	segForceMap
	segForceList
)

// segment is one step in a parsed property expression path.
type segment struct {
	kind segKind
	key  string // segDotID: the unescaped map key
	idx  int    // segIndex, segInsertAt: the list index
}

// reserved characters that must be escaped with a backslash inside a
// literal dot-id key, per the GLOSSARY's "Property expression" grammar.
const reservedChars = `.[]{}=#+\`

// QuoteKey escapes s so it can be used as a literal dot-id segment: every
// reserved character is backslash-escaped, and leading/trailing whitespace
// is backslash-escaped one character at a time so it survives trimming.
func QuoteKey(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		leadingSpace := isSpace(r) && (i == 0 || i == len(runes)-1)
		if strings.ContainsRune(reservedChars, r) || leadingSpace {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// parsed is the result of Parse: the path's segments, plus an optional
// trailing assignment or clear directive.
type parsed struct {
	segs     []segment
	hasSet   bool
	setVal   string
	hasClear bool
}

// parsePath decodes a property expression into its path segments plus any
// trailing "= value" or "#" directive, per the GLOSSARY's mini-grammar:
//
//	{dot-id | [int] | [int+] | [+] | {} | []}* (= value | #)?
//
// A leading "." before the first dot-id is optional. Reserved characters
// within a dot-id must be backslash-escaped (see QuoteKey).
func parsePath(expr string) (parsed, error) {
	var p parsed
	i := 0
	n := len(expr)
	first := true
	for i < n {
		c := expr[i]
		switch {
		case c == '=':
			if p.hasSet || p.hasClear {
				return parsed{}, errSyntax("property expression: multiple trailing directives")
			}
			p.hasSet = true
			p.setVal = expr[i+1:]
			i = n
		case c == '#':
			if p.hasSet || p.hasClear {
				return parsed{}, errSyntax("property expression: multiple trailing directives")
			}
			if i != n-1 {
				return parsed{}, errSyntax("property expression: trailing characters after '#'")
			}
			p.hasClear = true
			i = n
		case c == '[':
			seg, consumed, err := parseBracket(expr[i:])
			if err != nil {
				return parsed{}, err
			}
			p.segs = append(p.segs, seg)
			i += consumed
			first = false
		case c == '{':
			if i+1 >= n || expr[i+1] != '}' {
				return parsed{}, errSyntax("property expression: expected '}' at offset %d", i+1)
			}
			p.segs = append(p.segs, segment{kind: segForceMap})
			i += 2
			first = false
		case c == '.' || first || c == '\\' || !isSpecial(c):
			key, consumed, err := parseDotID(expr[i:], first)
			if err != nil {
				return parsed{}, err
			}
			p.segs = append(p.segs, segment{kind: segDotID, key: key})
			i += consumed
			first = false
		default:
			return parsed{}, errSyntax("property expression: unexpected character %q at offset %d", c, i)
		}
	}
	return p, nil
}

func isSpecial(c byte) bool {
	return strings.IndexByte("[]{}=#", c) >= 0
}

// parseBracket parses one of "[int]", "[int+]", "[+]", or "[]" starting at
// s[0] == '['.
func parseBracket(s string) (segment, int, error) {
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return segment{}, 0, errSyntax("property expression: unterminated '['")
	}
	inner := s[1:end]
	switch {
	case inner == "":
		return segment{kind: segForceList}, end + 1, nil
	case inner == "+":
		return segment{kind: segAppend}, end + 1, nil
	case strings.HasSuffix(inner, "+"):
		idx, err := parseInt(inner[:len(inner)-1])
		if err != nil {
			return segment{}, 0, err
		}
		return segment{kind: segInsertAt, idx: idx}, end + 1, nil
	default:
		idx, err := parseInt(inner)
		if err != nil {
			return segment{}, 0, err
		}
		return segment{kind: segIndex, idx: idx}, end + 1, nil
	}
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, errSyntax("property expression: expected an integer index")
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, errSyntax("property expression: malformed index %q", s)
	}
	v := 0
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errSyntax("property expression: malformed index %q", s)
		}
		v = v*10 + int(c-'0')
	}
	if neg {
		v = -v
	}
	return v, nil
}

// parseDotID parses a literal key segment, consuming backslash escapes, up
// to (but excluding) the next unescaped special character. A leading '.'
// is consumed and discarded; at the very start of the expression the '.'
// is optional.
func parseDotID(s string, first bool) (string, int, error) {
	i := 0
	if len(s) > 0 && s[0] == '.' {
		i = 1
	} else if !first {
		return "", 0, errSyntax("property expression: expected '.' before key")
	}
	var b strings.Builder
	for i < len(s) {
		c := s[i]
		if c == '\\' {
			if i+1 >= len(s) {
				return "", 0, errSyntax("property expression: dangling escape at end of key")
			}
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		if isSpecial(c) || c == '.' {
			break
		}
		b.WriteByte(c)
		i++
	}
	if b.Len() == 0 {
		return "", 0, errSyntax("property expression: empty key")
	}
	return b.String(), i, nil
}
