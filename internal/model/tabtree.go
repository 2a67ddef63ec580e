package model

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	SourceTypeBoolean = "boolean"

	keySource     = "source"
	keyType       = "type"
	keySourceType = "sourceType"
	keyHierarchy  = "hierarchy"
)

var ErrInvalidTabTree = errors.New("invalid tab configuration")

// HierarchyLevel is one level of a grouped frequency distribution. Sources at the same
// position across levels belong to the same sub-answer set.
type HierarchyLevel struct {
	Name    string
	Sources []string
}

// ElementSpec describes how one leaf of the tab tree is aggregated.
type ElementSpec struct {
	Source     []string
	Type       string
	SourceType string
	Hierarchy  []HierarchyLevel
}

func (s *ElementSpec) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeField(&buf, keySource, s.sourceValue(), true)
	writeField(&buf, keyType, s.Type, false)
	if s.SourceType != "" {
		writeField(&buf, keySourceType, s.SourceType, false)
	}
	if len(s.Hierarchy) > 0 {
		buf.WriteString(`,"hierarchy":{`)
		for i, level := range s.Hierarchy {
			writeField(&buf, level.Name, level.Sources, i == 0)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *ElementSpec) sourceValue() any {
	if len(s.Source) == 1 {
		return s.Source[0]
	}
	return s.Source
}

// Node is either a group of named children or a leaf element spec. Children keep the order
// they were configured in.
type Node struct {
	Key      string
	Leaf     *ElementSpec
	Children []*Node
}

func (n *Node) IsLeaf() bool {
	return n.Leaf != nil
}

// ElementEntry is one flattened leaf.
type ElementEntry struct {
	Key  string
	Spec *ElementSpec
}

// Elements is the flattened, ordered form of a tab tree. It encodes as a JSON object.
type Elements []ElementEntry

func (e Elements) Keys() []string {
	return lo.Map(e, func(entry ElementEntry, _ int) string { return entry.Key })
}

func (e Elements) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range e {
		writeField(&buf, entry.Key, entry.Spec, i == 0)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Flatten lists every leaf below n under its own key, in tree order.
func (n *Node) Flatten() Elements {
	var out Elements
	n.walk(func(leaf *Node) {
		out = append(out, ElementEntry{Key: leaf.Key, Spec: leaf.Leaf})
	})
	return out
}

func (n *Node) walk(fn func(leaf *Node)) {
	for _, c := range n.Children {
		if c.IsLeaf() {
			fn(c)
			continue
		}
		c.walk(fn)
	}
}

// PopulatedNode mirrors a tab tree with leaves replaced by aggregated elements. A leaf with no
// element encodes as null.
type PopulatedNode struct {
	Key      string
	Element  *Element
	Children []*PopulatedNode
	leaf     bool
}

func (p *PopulatedNode) IsLeaf() bool {
	return p.leaf
}

func (p *PopulatedNode) MarshalJSON() ([]byte, error) {
	if p.leaf {
		return json.Marshal(p.Element)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range p.Children {
		writeField(&buf, c.Key, c, i == 0)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Child returns the direct child with the given key.
func (p *PopulatedNode) Child(key string) (*PopulatedNode, bool) {
	return lo.Find(p.Children, func(c *PopulatedNode) bool { return c.Key == key })
}

// Walk calls fn for every populated leaf element below p, skipping null leaves.
func (p *PopulatedNode) Walk(fn func(key string, e *Element)) {
	for _, c := range p.Children {
		if c.leaf {
			if c.Element != nil {
				fn(c.Key, c.Element)
			}
			continue
		}
		c.Walk(fn)
	}
}

// Populate rebuilds the shape of n, taking each leaf's element out of results. Leaves
// without a result are reported through missing and left null.
func (n *Node) Populate(results map[string]*Element, missing func(key string)) *PopulatedNode {
	out := &PopulatedNode{Key: n.Key, leaf: n.IsLeaf()}
	if n.IsLeaf() {
		e, ok := results[n.Key]
		if !ok || e == nil {
			if missing != nil {
				missing(n.Key)
			}
			return out
		}
		delete(results, n.Key)
		out.Element = e
		return out
	}
	out.Children = make([]*PopulatedNode, 0, len(n.Children))
	for _, c := range n.Children {
		out.Children = append(out.Children, c.Populate(results, missing))
	}
	return out
}

// ParseTabTree reads a tab tree from YAML (or JSON). A mapping containing a source key is a
// leaf; any other mapping is a group. Leaf keys must be unique across the whole tree.
func ParseTabTree(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalidTabTree, err.Error())
	}
	root := &Node{}
	if len(doc.Content) == 0 {
		return root, nil
	}
	if err := parseGroup(root, doc.Content[0], ""); err != nil {
		return nil, err
	}
	if err := root.validate(); err != nil {
		return nil, err
	}
	return root, nil
}

func parseGroup(n *Node, v *yaml.Node, path string) error {
	if v.Kind == yaml.ScalarNode && v.Tag == "!!null" {
		return nil
	}
	if v.Kind != yaml.MappingNode {
		return errors.Wrapf(ErrInvalidTabTree, "%s: expected a mapping", displayPath(path))
	}
	for i := 0; i+1 < len(v.Content); i += 2 {
		key := v.Content[i].Value
		child := &Node{Key: key}
		value := v.Content[i+1]
		childPath := path + "/" + key
		if isLeaf(value) {
			spec, err := parseLeaf(value, childPath)
			if err != nil {
				return err
			}
			child.Leaf = spec
		} else if err := parseGroup(child, value, childPath); err != nil {
			return err
		}
		n.Children = append(n.Children, child)
	}
	return nil
}

func isLeaf(v *yaml.Node) bool {
	return mappingValue(v, keySource) != nil
}

func mappingValue(v *yaml.Node, key string) *yaml.Node {
	if v.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(v.Content); i += 2 {
		if v.Content[i].Value == key {
			return v.Content[i+1]
		}
	}
	return nil
}

func parseLeaf(v *yaml.Node, path string) (*ElementSpec, error) {
	spec := &ElementSpec{}
	sources, err := stringOrList(mappingValue(v, keySource))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidTabTree, "%s: source: %s", path, err)
	}
	spec.Source = sources
	if t := mappingValue(v, keyType); t != nil {
		spec.Type = t.Value
	}
	if st := mappingValue(v, keySourceType); st != nil {
		spec.SourceType = st.Value
	}
	if h := mappingValue(v, keyHierarchy); h != nil {
		if h.Kind != yaml.MappingNode {
			return nil, errors.Wrapf(ErrInvalidTabTree, "%s: hierarchy must be a mapping", path)
		}
		for i := 0; i+1 < len(h.Content); i += 2 {
			levelSources, err := stringOrList(h.Content[i+1])
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidTabTree, "%s: hierarchy %s: %s", path, h.Content[i].Value, err)
			}
			spec.Hierarchy = append(spec.Hierarchy, HierarchyLevel{Name: h.Content[i].Value, Sources: levelSources})
		}
	}
	return spec, nil
}

func stringOrList(v *yaml.Node) ([]string, error) {
	switch v.Kind {
	case yaml.ScalarNode:
		return []string{v.Value}, nil
	case yaml.SequenceNode:
		var out []string
		if err := v.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, errors.New("expected a string or a list of strings")
}

func (n *Node) validate() error {
	seen := map[string]struct{}{}
	var err error
	n.walk(func(leaf *Node) {
		if err != nil {
			return
		}
		if _, ok := seen[leaf.Key]; ok {
			err = errors.Wrapf(ErrInvalidTabTree, "leaf key %q is used more than once", leaf.Key)
			return
		}
		seen[leaf.Key] = struct{}{}

		if leaf.Leaf.Type != ElementGroupedFrequencyDistribution || len(leaf.Leaf.Hierarchy) == 0 {
			return
		}
		want := len(leaf.Leaf.Hierarchy[0].Sources)
		for _, level := range leaf.Leaf.Hierarchy[1:] {
			if len(level.Sources) != want {
				err = errors.Wrapf(ErrInvalidTabTree, "leaf %q: hierarchy level %q has %d sources, expected %d",
					leaf.Key, level.Name, len(level.Sources), want)
				return
			}
		}
	})
	return err
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func writeField(buf *bytes.Buffer, key string, value any, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
	v, err := json.Marshal(value)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(v)
}
