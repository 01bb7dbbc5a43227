// Package tree provides the normalized document tree used by every rule.
//
// A TISS document is parsed once into a Node hierarchy where namespace
// prefixes have been stripped, so rules can look for "padrao" without
// caring whether the file wrote <ans:padrao> or <padrao>.
package tree

import (
	"fmt"
	"sort"
)

// Kind is the variant held by a Node.
type Kind int

const (
	// KindScalar holds text.
	KindScalar Kind = iota
	// KindMapping holds named fields, unique per node, in document order.
	KindMapping
	// KindSequence holds repeated elements in document order.
	KindSequence
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is an immutable tagged union: Scalar | Mapping | Sequence.
type Node struct {
	kind   Kind
	text   string
	keys   []string
	fields map[string]*Node
	items  []*Node
}

// Field is a name/value pair used to build mappings.
type Field struct {
	Name  string
	Value *Node
}

// F is shorthand for Field{name, value}.
func F(name string, value *Node) Field {
	return Field{Name: name, Value: value}
}

// Text creates a scalar node.
func Text(s string) *Node {
	return &Node{kind: KindScalar, text: s}
}

// Map creates a mapping node. Later fields with a duplicate name replace
// earlier ones but keep the first position.
func Map(fields ...Field) *Node {
	n := &Node{
		kind:   KindMapping,
		keys:   make([]string, 0, len(fields)),
		fields: make(map[string]*Node, len(fields)),
	}
	for _, f := range fields {
		if _, ok := n.fields[f.Name]; !ok {
			n.keys = append(n.keys, f.Name)
		}
		n.fields[f.Name] = f.Value
	}
	return n
}

// List creates a sequence node.
func List(items ...*Node) *Node {
	return &Node{kind: KindSequence, items: items}
}

// Kind returns the variant of the node.
func (n *Node) Kind() Kind {
	return n.kind
}

// IsScalar reports whether the node holds text.
func (n *Node) IsScalar() bool { return n != nil && n.kind == KindScalar }

// IsMapping reports whether the node holds named fields.
func (n *Node) IsMapping() bool { return n != nil && n.kind == KindMapping }

// IsSequence reports whether the node holds repeated elements.
func (n *Node) IsSequence() bool { return n != nil && n.kind == KindSequence }

// Text returns the scalar value, or "" for other kinds.
func (n *Node) Text() string {
	if n == nil || n.kind != KindScalar {
		return ""
	}
	return n.text
}

// Len returns the number of fields of a mapping or items of a sequence.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.kind {
	case KindMapping:
		return len(n.keys)
	case KindSequence:
		return len(n.items)
	default:
		return 0
	}
}

// KeyAt returns the i-th field name of a mapping, in document order.
func (n *Node) KeyAt(i int) string {
	return n.keys[i]
}

// Keys returns a copy of the field names of a mapping.
func (n *Node) Keys() []string {
	if n == nil || n.kind != KindMapping {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Field returns a mapping field by name.
func (n *Node) Field(name string) (*Node, bool) {
	if n == nil || n.kind != KindMapping {
		return nil, false
	}
	v, ok := n.fields[name]
	return v, ok
}

// Has reports whether a mapping has the field.
func (n *Node) Has(name string) bool {
	_, ok := n.Field(name)
	return ok
}

// Item returns the i-th element of a sequence.
func (n *Node) Item(i int) *Node {
	return n.items[i]
}

// FromMap converts decoded JSON-like values into a tree. Map keys are
// sorted so the resulting document order is reproducible.
// Supported values: string, fmt.Stringer-able scalars, map[string]any,
// []any and nil (empty scalar).
func FromMap(m map[string]any) *Node {
	return fromValue(m)
}

func fromValue(v any) *Node {
	switch val := v.(type) {
	case nil:
		return Text("")
	case *Node:
		return val
	case string:
		return Text(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, F(k, fromValue(val[k])))
		}
		return Map(fields...)
	case []any:
		items := make([]*Node, 0, len(val))
		for _, item := range val {
			items = append(items, fromValue(item))
		}
		return List(items...)
	case []string:
		items := make([]*Node, 0, len(val))
		for _, item := range val {
			items = append(items, Text(item))
		}
		return List(items...)
	default:
		return Text(fmt.Sprint(val))
	}
}
