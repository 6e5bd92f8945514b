package syntax

// Branch is an in-memory Node. The reference parser builds trees out of
// branches.
type Branch struct {
	kind     string
	start    int
	end      int
	point    Point
	children []*Branch
	fields   []string
}

// NewBranch creates a node of kind covering [start, end).
func NewBranch(kind string, start, end int, point Point) *Branch {
	return &Branch{kind: kind, start: start, end: end, point: point}
}

// Append adds child under field ("" for none) and widens the node's range to
// cover it.
func (b *Branch) Append(field string, child *Branch) *Branch {
	if child == nil {
		return b
	}
	b.children = append(b.children, child)
	b.fields = append(b.fields, field)
	if len(b.children) == 1 && b.end <= b.start {
		b.start, b.point = child.start, child.point
	}
	if child.start < b.start {
		b.start, b.point = child.start, child.point
	}
	if child.end > b.end {
		b.end = child.end
	}
	return b
}

// SetEnd extends the node to end.
func (b *Branch) SetEnd(end int) {
	if end > b.end {
		b.end = end
	}
}

func (b *Branch) Kind() string { return b.kind }

func (b *Branch) NamedChildCount() int { return len(b.children) }

func (b *Branch) NamedChild(i int) Node {
	if i < 0 || i >= len(b.children) {
		return nil
	}
	return b.children[i]
}

func (b *Branch) ChildByFieldName(name string) Node {
	for i, f := range b.fields {
		if f == name {
			return b.children[i]
		}
	}
	return nil
}

func (b *Branch) FieldNameForNamedChild(i int) string {
	if i < 0 || i >= len(b.fields) {
		return ""
	}
	return b.fields[i]
}

func (b *Branch) StartByte() int { return b.start }

func (b *Branch) EndByte() int { return b.end }

func (b *Branch) StartPoint() Point { return b.point }
