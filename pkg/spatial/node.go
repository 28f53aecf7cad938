package spatial

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node is one level of the location tree.
//
// A node is either an area, holding named children in insertion order, or
// a leaf list, holding the ordered unique names of the objects found at the
// parent location.
type Node struct {
	isArea   bool
	children map[string]*Node
	order    []string
	leaves   []string
}

// NewArea creates an empty area node.
func NewArea() *Node {
	return &Node{isArea: true, children: make(map[string]*Node)}
}

// NewLeaves creates a leaf-list node. Duplicate names are dropped.
func NewLeaves(names ...string) *Node {
	n := &Node{}
	for _, name := range names {
		n.appendLeaf(name)
	}
	return n
}

// Set attaches child under name, replacing any existing child while keeping
// its position. It returns n for chaining. Set on a leaf list is a no-op.
func (n *Node) Set(name string, child *Node) *Node {
	if !n.isArea {
		return n
	}
	if _, ok := n.children[name]; !ok {
		n.order = append(n.order, name)
	}
	n.children[name] = child
	return n
}

// Child returns the child called name.
func (n *Node) Child(name string) (*Node, bool) {
	if !n.isArea {
		return nil, false
	}
	c, ok := n.children[name]
	return c, ok
}

// IsArea reports whether the node holds sub-areas rather than leaves.
func (n *Node) IsArea() bool {
	return n.isArea
}

// Names returns the child names of an area, or the leaves of a leaf list.
func (n *Node) Names() []string {
	if n.isArea {
		return append([]string{}, n.order...)
	}
	return append([]string{}, n.leaves...)
}

// Len returns the number of children or leaves.
func (n *Node) Len() int {
	if n.isArea {
		return len(n.order)
	}
	return len(n.leaves)
}

func (n *Node) appendLeaf(name string) bool {
	for _, l := range n.leaves {
		if l == name {
			return false
		}
	}
	n.leaves = append(n.leaves, name)
	return true
}

// String renders the subtree as indented "name:" lines.
func (n *Node) String() string {
	var b strings.Builder
	n.dump(&b, 0)
	return strings.TrimRight(b.String(), "\n")
}

func (n *Node) dump(b *strings.Builder, indent int) {
	pad := strings.Repeat(" ", indent)
	if !n.isArea {
		fmt.Fprintf(b, "%s%s\n", pad, strings.Join(n.leaves, ", "))
		return
	}
	for _, name := range n.order {
		child := n.children[name]
		if child.isArea {
			fmt.Fprintf(b, "%s%s:\n", pad, name)
			child.dump(b, indent+2)
			continue
		}
		fmt.Fprintf(b, "%s%s: %s\n", pad, name, strings.Join(child.leaves, ", "))
	}
}

// MarshalJSON encodes areas as objects (in insertion order) and leaf lists as arrays.
func (n *Node) MarshalJSON() ([]byte, error) {
	if !n.isArea {
		if n.leaves == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(n.leaves)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range n.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := n.children[name].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes objects as areas and arrays as leaf lists, keeping
// document order.
func (n *Node) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	return n.decodeJSON(dec)
}

func (n *Node) decodeJSON(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*n = *NewLeaves()
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("spatial: unexpected %v in location tree", tok)
	}
	switch delim {
	case '{':
		*n = *NewArea()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			child := &Node{}
			if err := child.decodeJSON(dec); err != nil {
				return err
			}
			n.Set(keyTok.(string), child)
		}
	case '[':
		*n = *NewLeaves()
		for dec.More() {
			var leaf string
			if err := dec.Decode(&leaf); err != nil {
				return fmt.Errorf("spatial: leaf: %w", err)
			}
			n.appendLeaf(leaf)
		}
	default:
		return fmt.Errorf("spatial: unexpected %v in location tree", delim)
	}
	_, err = dec.Token()
	return err
}

// UnmarshalYAML decodes mappings as areas and sequences as leaf lists,
// keeping document order.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.AliasNode:
		return n.UnmarshalYAML(value.Alias)
	case yaml.MappingNode:
		*n = *NewArea()
		for i := 0; i+1 < len(value.Content); i += 2 {
			child := &Node{}
			if err := child.UnmarshalYAML(value.Content[i+1]); err != nil {
				return err
			}
			n.Set(value.Content[i].Value, child)
		}
		return nil
	case yaml.SequenceNode:
		var leaves []string
		if err := value.Decode(&leaves); err != nil {
			return fmt.Errorf("spatial: line %d: %w", value.Line, err)
		}
		*n = *NewLeaves(leaves...)
		return nil
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*n = *NewLeaves()
			return nil
		}
	}
	return fmt.Errorf("spatial: line %d: unexpected %q in location tree", value.Line, value.Value)
}
