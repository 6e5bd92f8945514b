package syntax

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

type sitterNode struct {
	n *sitter.Node
}

// FromTreeSitter adapts a tree-sitter node. Anonymous children (punctuation,
// keywords) are hidden; only named children are visible through Node.
func FromTreeSitter(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	return sitterNode{n: n}
}

func (s sitterNode) Kind() string { return s.n.Kind() }

func (s sitterNode) NamedChildCount() int { return int(s.n.NamedChildCount()) }

func (s sitterNode) NamedChild(i int) Node {
	if i < 0 {
		return nil
	}
	return FromTreeSitter(s.n.NamedChild(uint(i)))
}

func (s sitterNode) ChildByFieldName(name string) Node {
	return FromTreeSitter(s.n.ChildByFieldName(name))
}

func (s sitterNode) FieldNameForNamedChild(i int) string {
	named := 0
	for j := uint(0); j < s.n.ChildCount(); j++ {
		child := s.n.Child(j)
		if child == nil || !child.IsNamed() {
			continue
		}
		if named == i {
			return s.n.FieldNameForChild(uint32(j))
		}
		named++
	}
	return ""
}

func (s sitterNode) StartByte() int { return int(s.n.StartByte()) }

func (s sitterNode) EndByte() int { return int(s.n.EndByte()) }

func (s sitterNode) StartPoint() Point {
	p := s.n.StartPosition()
	return Point{Row: int(p.Row), Column: int(p.Column)}
}
