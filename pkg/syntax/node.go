// Package syntax defines the concrete syntax tree the evaluator walks. Trees
// come either from tree-sitter or from the reference parser in pkg/parser;
// both expose the same node kinds and field names.
package syntax

// Point is a zero-based row/column position.
type Point struct {
	Row    int
	Column int
}

// Node is a concrete syntax tree node.
type Node interface {
	Kind() string
	NamedChildCount() int
	// NamedChild returns nil when i is out of range.
	NamedChild(i int) Node
	// ChildByFieldName returns nil when the field is absent.
	ChildByFieldName(name string) Node
	// FieldNameForNamedChild returns "" for children without a field.
	FieldNameForNamedChild(i int) string
	StartByte() int
	EndByte() int
	StartPoint() Point
}

// Tree owns a parsed unit. Nodes stay valid until Close.
type Tree struct {
	root   Node
	closer func()
}

func NewTree(root Node, closer func()) *Tree {
	return &Tree{root: root, closer: closer}
}

func (t *Tree) Root() Node {
	if t == nil {
		return nil
	}
	return t.root
}

// Close releases parser resources backing the tree.
func (t *Tree) Close() {
	if t == nil || t.closer == nil {
		return
	}
	t.closer()
	t.closer = nil
}

// FieldChildren returns every named child stored under field, in order.
func FieldChildren(n Node, field string) []Node {
	if n == nil {
		return nil
	}
	var out []Node
	for i := 0; i < n.NamedChildCount(); i++ {
		if n.FieldNameForNamedChild(i) == field {
			out = append(out, n.NamedChild(i))
		}
	}
	return out
}

// NamedChildren returns all named children of n.
func NamedChildren(n Node) []Node {
	if n == nil {
		return nil
	}
	out := make([]Node, 0, n.NamedChildCount())
	for i := 0; i < n.NamedChildCount(); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// Text slices the bytes covered by n out of src.
func Text(n Node, src []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start < 0 || end < start || end > len(src) {
		return ""
	}
	return string(src[start:end])
}
