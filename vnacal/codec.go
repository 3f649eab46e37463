package vnacal

import (
	"os"
	"sort"
	"strconv"

	"github.com/CK6170/vnacal-go/layout"
	"github.com/CK6170/vnacal-go/proptree"
	"github.com/CK6170/vnacal-go/vnaerr"
	"gopkg.in/yaml.v3"
)

// fileFormatVersion is the only version this codec writes or accepts on
// load, per spec §6's file-format version stamp.
const fileFormatVersion = 1

// Save writes cs to path as YAML, per spec §6's save(filename). The
// document is built node-by-node rather than through yaml.v3's struct-tag
// marshaling so fprecision/dprecision and MaxPrecision's hexadecimal float
// round-trip can be controlled per scalar (matrix/ieee754.go's
// ToIEEE754 is the teacher's analogous "don't trust decimal round-trip"
// concern, answered here with strconv's 'x' format instead of raw bits).
func (cs *CalSet) Save(path string) error {
	doc := cs.encode()
	out, err := yaml.Marshal(doc)
	if err != nil {
		return cs.report(errSystem("marshal calibration set: %v", err))
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return cs.report(errSystem("write %s: %v", path, err))
	}
	cs.Filename = path
	return nil
}

// Load reads a calibration set previously written by Save.
func Load(path string, errFn vnaerr.Func) (*CalSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if uerr := yaml.Unmarshal(raw, &doc); uerr != nil {
		return nil, errSyntax("parse %s: %v", path, uerr)
	}
	cs := Create(errFn)
	if err := cs.decode(&doc); err != nil {
		return nil, cs.report(err)
	}
	cs.Filename = path
	return cs, nil
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func nullNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "~"}
}

func intNode(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}

// formatFloat renders f at the given decimal precision, or, for
// MaxPrecision, as a round-trip-exact hexadecimal float literal.
func formatFloat(f float64, precision int) string {
	if precision == MaxPrecision {
		return strconv.FormatFloat(f, 'x', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', precision, 64)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func floatNode(f float64, precision int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(f, precision)}
}

func seqNode(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

func flowSeqNode(items ...*yaml.Node) *yaml.Node {
	n := seqNode(items...)
	n.Style = yaml.FlowStyle
	return n
}

func mapNode(pairs ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: pairs}
}

// complexNode renders a complex128 as a two-element [re, im] flow sequence.
func complexNode(c complex128, precision int) *yaml.Node {
	return flowSeqNode(floatNode(real(c), precision), floatNode(imag(c), precision))
}

func decodeComplex(n *yaml.Node) (complex128, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		return 0, errSyntax("expected [re, im] pair, got %v", n.Tag)
	}
	re, err := parseFloat(n.Content[0].Value)
	if err != nil {
		return 0, errSyntax("bad real part %q: %v", n.Content[0].Value, err)
	}
	im, err := parseFloat(n.Content[1].Value)
	if err != nil {
		return 0, errSyntax("bad imaginary part %q: %v", n.Content[1].Value, err)
	}
	return complex(re, im), nil
}

// mapLookup returns the value node paired with key in a MappingNode's flat
// Content slice, or nil if key is absent.
func mapLookup(n *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func (cs *CalSet) encode() *yaml.Node {
	cals := make([]*yaml.Node, len(cs.Calibrations))
	for i, c := range cs.Calibrations {
		cals[i] = cs.encodeCalibration(c)
	}
	root := mapNode(
		strNode("version"), intNode(fileFormatVersion),
		strNode("fprecision"), intNode(cs.FPrecision),
		strNode("dprecision"), intNode(cs.DPrecision),
		strNode("calibrations"), seqNode(cals...),
	)
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
}

func (cs *CalSet) encodeCalibration(c *Calibration) *yaml.Node {
	typeName, _ := layout.TypeToName(c.Type)

	freqs := make([]*yaml.Node, len(c.Freqs))
	for i, f := range c.Freqs {
		freqs[i] = floatNode(f, cs.FPrecision)
	}

	return mapNode(
		strNode("name"), strNode(c.Name),
		strNode("type"), strNode(typeName),
		strNode("rows"), intNode(c.Layout.MRows),
		strNode("columns"), intNode(c.Layout.MColumns),
		strNode("frequencies"), intNode(len(c.Freqs)),
		strNode("frequency_vector"), seqNode(freqs...),
		strNode("z0"), cs.encodeZ0(c.Z0),
		strNode("error_terms"), cs.encodeErrorTerms(c),
		strNode("leakage"), cs.encodeLeakage(c),
		strNode("properties"), encodeProperties(c.Properties),
	)
}

func (cs *CalSet) encodeZ0(z Z0) *yaml.Node {
	switch z.Kind {
	case Z0PerPort:
		vals := make([]*yaml.Node, len(z.PerPort))
		for i, v := range z.PerPort {
			vals[i] = complexNode(v, cs.DPrecision)
		}
		return mapNode(strNode("kind"), strNode("per_port"), strNode("values"), seqNode(vals...))
	case Z0PerPortFreq:
		rows := make([]*yaml.Node, len(z.PerPortFreq))
		for i, row := range z.PerPortFreq {
			vals := make([]*yaml.Node, len(row))
			for j, v := range row {
				vals[j] = complexNode(v, cs.DPrecision)
			}
			rows[i] = seqNode(vals...)
		}
		return mapNode(strNode("kind"), strNode("per_port_freq"), strNode("values"), seqNode(rows...))
	default:
		return mapNode(strNode("kind"), strNode("scalar"), strNode("value"), complexNode(z.Scalar, cs.DPrecision))
	}
}

func (cs *CalSet) decodeZ0(n *yaml.Node) (Z0, error) {
	kind := mapLookup(n, "kind")
	if kind == nil {
		return Z0{}, errSyntax("z0 missing kind")
	}
	values := mapLookup(n, "values")
	switch kind.Value {
	case "per_port":
		out := make([]complex128, len(values.Content))
		for i, vn := range values.Content {
			v, err := decodeComplex(vn)
			if err != nil {
				return Z0{}, err
			}
			out[i] = v
		}
		return Z0{Kind: Z0PerPort, PerPort: out}, nil
	case "per_port_freq":
		out := make([][]complex128, len(values.Content))
		for i, row := range values.Content {
			r := make([]complex128, len(row.Content))
			for j, vn := range row.Content {
				v, err := decodeComplex(vn)
				if err != nil {
					return Z0{}, err
				}
				r[j] = v
			}
			out[i] = r
		}
		return Z0{Kind: Z0PerPortFreq, PerPortFreq: out}, nil
	default:
		v, err := decodeComplex(mapLookup(n, "value"))
		if err != nil {
			return Z0{}, err
		}
		return Z0{Kind: Z0Scalar, Scalar: v}, nil
	}
}

// encodeErrorTerms writes one entry per blocksFor(c.Layout) block, per
// system when c.Layout.Systems > 1 (UE14, E12), else directly.
func (cs *CalSet) encodeErrorTerms(c *Calibration) *yaml.Node {
	blocks := blocksFor(c.Layout)
	if c.Layout.Systems <= 1 {
		return cs.encodeSystemBlocks(c, blocks, 0)
	}
	pairs := make([]*yaml.Node, 0, 2*c.Layout.Systems)
	for s := 0; s < c.Layout.Systems; s++ {
		pairs = append(pairs, strNode(strconv.Itoa(s)), cs.encodeSystemBlocks(c, blocks, s))
	}
	return mapNode(pairs...)
}

func (cs *CalSet) encodeSystemBlocks(c *Calibration, blocks []block, sys int) *yaml.Node {
	pairs := make([]*yaml.Node, 0, 2*len(blocks))
	for _, b := range blocks {
		rows := make([]*yaml.Node, len(c.Freqs))
		for fi := range c.Freqs {
			vals := blockValues(c.Layout, b, c.ErrorTerms[sys][fi])
			entries := make([]*yaml.Node, len(vals))
			for i, v := range vals {
				entries[i] = complexNode(v, cs.DPrecision)
			}
			rows[fi] = flowSeqNode(entries...)
		}
		pairs = append(pairs, strNode(b.name), seqNode(rows...))
	}
	return mapNode(pairs...)
}

func (cs *CalSet) decodeErrorTerms(c *Calibration, n *yaml.Node) error {
	blocks := blocksFor(c.Layout)
	c.ErrorTerms = make([][][]complex128, c.Layout.Systems)
	for sys := 0; sys < c.Layout.Systems; sys++ {
		sysNode := n
		if c.Layout.Systems > 1 {
			sysNode = mapLookup(n, strconv.Itoa(sys))
			if sysNode == nil {
				return errSyntax("error_terms missing system %d", sys)
			}
		}
		c.ErrorTerms[sys] = make([][]complex128, len(c.Freqs))
		for fi := range c.Freqs {
			c.ErrorTerms[sys][fi] = make([]complex128, c.Layout.Unknowns())
		}
		for _, b := range blocks {
			bn := mapLookup(sysNode, b.name)
			if bn == nil {
				return errSyntax("error_terms missing block %q", b.name)
			}
			for fi := range c.Freqs {
				if fi >= len(bn.Content) {
					return errSyntax("error_terms block %q: missing frequency %d", b.name, fi)
				}
				row := bn.Content[fi]
				vals := make([]complex128, len(row.Content))
				for i, vn := range row.Content {
					v, err := decodeComplex(vn)
					if err != nil {
						return err
					}
					vals[i] = v
				}
				setBlockValues(c.Layout, b, c.ErrorTerms[sys][fi], vals)
			}
		}
	}
	return nil
}

// leakageEntry is a sortable (row, col) cell so map iteration order never
// leaks into the saved file.
type leakageEntry struct {
	row, col int
	value    complex128
}

func sortedLeakage(m map[[2]int]complex128) []leakageEntry {
	out := make([]leakageEntry, 0, len(m))
	for k, v := range m {
		out = append(out, leakageEntry{k[0], k[1], v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].row != out[j].row {
			return out[i].row < out[j].row
		}
		return out[i].col < out[j].col
	})
	return out
}

func (cs *CalSet) encodeLeakage(c *Calibration) *yaml.Node {
	if !c.Type.HasLeakage() {
		return nullNode()
	}
	systems := make([]*yaml.Node, len(c.Leakage))
	for sys, perFreq := range c.Leakage {
		freqs := make([]*yaml.Node, len(perFreq))
		for fi, m := range perFreq {
			entries := sortedLeakage(m)
			cells := make([]*yaml.Node, len(entries))
			for i, e := range entries {
				cells[i] = mapNode(
					strNode("row"), intNode(e.row),
					strNode("col"), intNode(e.col),
					strNode("value"), complexNode(e.value, cs.DPrecision),
				)
			}
			freqs[fi] = seqNode(cells...)
		}
		systems[sys] = seqNode(freqs...)
	}
	return seqNode(systems...)
}

func (cs *CalSet) decodeLeakage(c *Calibration, n *yaml.Node) error {
	if !c.Type.HasLeakage() || n.Tag == "!!null" {
		c.Leakage = make([]([]map[[2]int]complex128), c.Layout.Systems)
		for sys := range c.Leakage {
			c.Leakage[sys] = make([]map[[2]int]complex128, len(c.Freqs))
			for fi := range c.Leakage[sys] {
				c.Leakage[sys][fi] = map[[2]int]complex128{}
			}
		}
		return nil
	}
	c.Leakage = make([]([]map[[2]int]complex128), len(n.Content))
	for sys, sysNode := range n.Content {
		c.Leakage[sys] = make([]map[[2]int]complex128, len(sysNode.Content))
		for fi, freqNode := range sysNode.Content {
			m := map[[2]int]complex128{}
			for _, cell := range freqNode.Content {
				row, err := strconv.Atoi(mapLookup(cell, "row").Value)
				if err != nil {
					return errSyntax("leakage row: %v", err)
				}
				col, err := strconv.Atoi(mapLookup(cell, "col").Value)
				if err != nil {
					return errSyntax("leakage col: %v", err)
				}
				v, err := decodeComplex(mapLookup(cell, "value"))
				if err != nil {
					return err
				}
				m[[2]int{row, col}] = v
			}
			c.Leakage[sys][fi] = m
		}
	}
	return nil
}

// pathValue is one flattened (escaped property path, leaf value) pair, per
// spec §6's "reserved characters are backslash-escaped on output". Nodes
// that are a forced-empty map or list with no children do not round-trip
// (DESIGN.md Open Question 13): only leaf strings are addressable paths.
type pathValue struct {
	path, value string
}

func flattenTree(n *proptree.Node, prefix string, out *[]pathValue) {
	if n == nil {
		return
	}
	switch n.Kind {
	case proptree.KindString:
		*out = append(*out, pathValue{prefix, n.Str})
	case proptree.KindList:
		for i, child := range n.List {
			flattenTree(child, prefix+"["+strconv.Itoa(i)+"]", out)
		}
	case proptree.KindMap:
		keys := make([]string, 0, len(n.Map))
		for k := range n.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sep := "."
			if prefix == "" {
				sep = ""
			}
			flattenTree(n.Map[k], prefix+sep+proptree.QuoteKey(k), out)
		}
	}
}

func encodeProperties(t *proptree.Tree) *yaml.Node {
	if t == nil {
		return seqNode()
	}
	var flat []pathValue
	flattenTree(t.Root(), "", &flat)
	entries := make([]*yaml.Node, len(flat))
	for i, pv := range flat {
		entries[i] = mapNode(strNode("path"), strNode(pv.path), strNode("value"), strNode(pv.value))
	}
	return seqNode(entries...)
}

func decodeProperties(n *yaml.Node) (*proptree.Tree, error) {
	t := proptree.New()
	if n == nil || n.Tag == "!!null" {
		return t, nil
	}
	for _, entry := range n.Content {
		path := mapLookup(entry, "path")
		value := mapLookup(entry, "value")
		if path == nil || value == nil {
			return nil, errSyntax("malformed properties entry")
		}
		if err := t.Set(path.Value, value.Value); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (cs *CalSet) decode(doc *yaml.Node) error {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return errSyntax("empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return errSyntax("document root must be a map")
	}
	version := mapLookup(root, "version")
	if version == nil {
		return errSyntax("missing version")
	}
	v, err := strconv.Atoi(version.Value)
	if err != nil || v != fileFormatVersion {
		return errVersion("unsupported file format version %q", version.Value)
	}
	if fp := mapLookup(root, "fprecision"); fp != nil {
		if n, err := strconv.Atoi(fp.Value); err == nil {
			cs.FPrecision = n
		}
	}
	if dp := mapLookup(root, "dprecision"); dp != nil {
		if n, err := strconv.Atoi(dp.Value); err == nil {
			cs.DPrecision = n
		}
	}
	cals := mapLookup(root, "calibrations")
	if cals == nil {
		return nil
	}
	for _, cn := range cals.Content {
		c, err := cs.decodeCalibration(cn)
		if err != nil {
			return err
		}
		cs.Calibrations = append(cs.Calibrations, c)
	}
	return nil
}

func (cs *CalSet) decodeCalibration(n *yaml.Node) (*Calibration, error) {
	name := mapLookup(n, "name")
	typeName := mapLookup(n, "type")
	rows := mapLookup(n, "rows")
	cols := mapLookup(n, "columns")
	freqVec := mapLookup(n, "frequency_vector")
	if name == nil || typeName == nil || rows == nil || cols == nil || freqVec == nil {
		return nil, errSyntax("calibration missing required field")
	}
	t, ok := layout.NameToType(typeName.Value)
	if !ok {
		return nil, errSyntax("unknown calibration type %q", typeName.Value)
	}
	r, err := strconv.Atoi(rows.Value)
	if err != nil {
		return nil, errSyntax("bad rows: %v", err)
	}
	cl, err := strconv.Atoi(cols.Value)
	if err != nil {
		return nil, errSyntax("bad columns: %v", err)
	}
	l, err := layout.New(t, r, cl)
	if err != nil {
		return nil, err
	}
	freqs := make([]float64, len(freqVec.Content))
	for i, fn := range freqVec.Content {
		f, err := parseFloat(fn.Value)
		if err != nil {
			return nil, errSyntax("bad frequency %q: %v", fn.Value, err)
		}
		freqs[i] = f
	}
	c := &Calibration{Name: name.Value, Type: t, Layout: l, Freqs: freqs}

	z0Node := mapLookup(n, "z0")
	if z0Node == nil {
		return nil, errSyntax("calibration %q missing z0", c.Name)
	}
	z0, err := cs.decodeZ0(z0Node)
	if err != nil {
		return nil, err
	}
	c.Z0 = z0

	etNode := mapLookup(n, "error_terms")
	if etNode == nil {
		return nil, errSyntax("calibration %q missing error_terms", c.Name)
	}
	if err := cs.decodeErrorTerms(c, etNode); err != nil {
		return nil, err
	}

	if lkNode := mapLookup(n, "leakage"); lkNode != nil {
		if err := cs.decodeLeakage(c, lkNode); err != nil {
			return nil, err
		}
	}

	props, err := decodeProperties(mapLookup(n, "properties"))
	if err != nil {
		return nil, err
	}
	c.Properties = props

	return c, nil
}
