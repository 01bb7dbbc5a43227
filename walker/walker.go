package walker

import (
	"context"
	"errors"

	"github.com/tissguard/validator/pool"
	"github.com/tissguard/validator/tree"
)

// ErrStop can be returned by a VisitorFunc to end the walk early without
// reporting an error.
var ErrStop = errors.New("walker: stop")

// Visit describes one field occurrence reached during a walk.
type Visit struct {
	// Name is the field name without index
	Name string
	// Node is the field value (a sequence item for repeated fields)
	Node *tree.Node
	// Path holds the segments from the document element to this field.
	// It is only valid for the duration of the callback.
	Path []string
	// Depth is len(Path)
	Depth int
}

// VisitorFunc is called for each field occurrence in document order.
// Return ErrStop to end the walk, any other error to abort it with that error.
type VisitorFunc func(v *Visit) error

// Walk traverses root in document pre-order: a field is visited before its
// children, mapping fields in document order, sequence items in order with
// their 1-based position appended to the segment ("guia[2]").
func Walk(ctx context.Context, root *tree.Node, visitor VisitorFunc) error {
	if root == nil || visitor == nil {
		return nil
	}

	segs := pool.AcquireSegments()
	defer pool.ReleaseSegments(segs)

	w := &walk{ctx: ctx, visitor: visitor, path: segs}
	err := w.children(root)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

type walk struct {
	ctx     context.Context
	visitor VisitorFunc
	path    *[]string
	visit   Visit
}

func (w *walk) children(n *tree.Node) error {
	if !n.IsMapping() {
		return nil
	}
	for i := 0; i < n.Len(); i++ {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		name := n.KeyAt(i)
		value, _ := n.Field(name)

		if value.IsSequence() {
			for j := 0; j < value.Len(); j++ {
				if err := w.enter(name, pool.IndexedName(name, j+1), value.Item(j)); err != nil {
					return err
				}
			}
			continue
		}
		if err := w.enter(name, name, value); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) enter(name, segment string, node *tree.Node) error {
	*w.path = append(*w.path, segment)
	defer func() { *w.path = (*w.path)[:len(*w.path)-1] }()

	w.visit = Visit{Name: name, Node: node, Path: *w.path, Depth: len(*w.path)}
	if err := w.visitor(&w.visit); err != nil {
		return err
	}
	return w.children(node)
}

// Hit is one located occurrence of a field.
type Hit struct {
	// Value is the scalar text, or the #text of an attributed element
	Value string
	Node  *tree.Node
	Path  []string
}

// Location renders the path as "a > b > c".
func (h Hit) Location() string {
	return pool.JoinPath(h.Path...)
}

func newHit(v *Visit) Hit {
	path := make([]string, len(v.Path))
	copy(path, v.Path)
	return Hit{Value: valueOf(v.Node), Node: v.Node, Path: path}
}

func valueOf(n *tree.Node) string {
	if n.IsScalar() {
		return n.Text()
	}
	if t, ok := n.Field(tree.TextField); ok {
		return t.Text()
	}
	return ""
}

// Find returns every occurrence of the field name anywhere in the tree, in
// document order. Matches nested inside other matches are included.
func Find(root *tree.Node, name string) []Hit {
	var hits []Hit
	_ = Walk(context.Background(), root, func(v *Visit) error {
		if v.Name == name {
			hits = append(hits, newHit(v))
		}
		return nil
	})
	return hits
}

// FindAny returns occurrences of any of the names, in document order.
func FindAny(root *tree.Node, names ...string) []Hit {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	var hits []Hit
	_ = Walk(context.Background(), root, func(v *Visit) error {
		if _, ok := want[v.Name]; ok {
			hits = append(hits, newHit(v))
		}
		return nil
	})
	return hits
}

// First returns the first occurrence of name in document order.
func First(root *tree.Node, name string) (Hit, bool) {
	var (
		hit   Hit
		found bool
	)
	_ = Walk(context.Background(), root, func(v *Visit) error {
		if v.Name == name {
			hit, found = newHit(v), true
			return ErrStop
		}
		return nil
	})
	return hit, found
}

// Exists reports whether the field occurs anywhere in the tree.
func Exists(root *tree.Node, name string) bool {
	_, ok := First(root, name)
	return ok
}

// Values returns the values of every occurrence of name.
func Values(root *tree.Node, name string) []string {
	hits := Find(root, name)
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Value
	}
	return out
}
