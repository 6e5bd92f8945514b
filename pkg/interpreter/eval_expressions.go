package interpreter

import (
	"strconv"

	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

func isExpressionKind(kind string) bool {
	switch kind {
	case "literal", "identifier", "call", "access", "index", "parenthesized_expression", "binary_expression", "vec":
		return true
	}
	return false
}

// unwrapExpression strips expression wrapper nodes.
func unwrapExpression(node syntax.Node) syntax.Node {
	for node != nil && node.Kind() == "expression" && node.NamedChildCount() == 1 {
		node = node.NamedChild(0)
	}
	return node
}

// evaluateExpression evaluates node and returns a new reference to its value.
func (i *Interpreter) evaluateExpression(f *frame, node syntax.Node) (*runtime.Value, error) {
	node = unwrapExpression(node)
	if node == nil {
		return nil, i.errorf(f, nil, ErrStructural, "missing expression")
	}

	switch kind := node.Kind(); kind {
	case "literal":
		return i.evaluateLiteral(f, node)
	case "identifier":
		return i.evaluateIdentifier(f, node)
	case "call":
		return i.evaluateCall(f, node)
	case "access":
		return i.evaluateAccess(f, node)
	case "index":
		return i.evaluateIndex(f, node)
	case "parenthesized_expression":
		if node.NamedChildCount() != 1 {
			return nil, i.errorf(f, node, ErrStructural, "parenthesized expression must have exactly one child")
		}
		return i.evaluateExpression(f, node.NamedChild(0))
	case "binary_expression":
		return i.evaluateBinaryExpression(f, node)
	case "vec":
		return i.evaluateVector(f, node)
	default:
		return nil, i.errorf(f, node, ErrStructural, "unknown expression type: %s", kind)
	}
}

// executeExpression evaluates node for its side effects only. Literals and
// identifiers cannot have any and are skipped.
func (i *Interpreter) executeExpression(f *frame, node syntax.Node) error {
	node = unwrapExpression(node)
	if node != nil && (node.Kind() == "literal" || node.Kind() == "identifier") {
		return nil
	}
	val, err := i.evaluateExpression(f, node)
	val.Decref()
	return err
}

func (i *Interpreter) evaluateIdentifier(f *frame, node syntax.Node) (*runtime.Value, error) {
	name := f.unit.Text(node)
	variable := f.env.Find(name)
	if variable == nil || variable.Value == nil {
		return nil, i.errorf(f, node, ErrUndeclared, "unknown identifier '%s'", name)
	}
	return variable.Value.Incref(), nil
}

func (i *Interpreter) evaluateLiteral(f *frame, node syntax.Node) (*runtime.Value, error) {
	lit := node
	if node.NamedChildCount() > 0 {
		lit = node.NamedChild(0)
	}
	text := f.unit.Text(lit)

	switch lit.Kind() {
	case "number", "integer":
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, i.errorf(f, lit, ErrStructural, "invalid integer literal '%s'", text)
		}
		return runtime.MakeInt(n), nil
	case "string":
		if len(text) < 2 || text[0] != '"' || text[len(text)-1] != '"' {
			return nil, i.errorf(f, lit, ErrStructural, "invalid string literal %s", text)
		}
		return runtime.MakeStr(unescapeString(text[1 : len(text)-1])), nil
	case "bool":
		return runtime.MakeBool(text == "true"), nil
	case "none":
		return runtime.MakeNone(), nil
	default:
		return nil, i.errorf(f, lit, ErrStructural, "unknown literal type: %s", lit.Kind())
	}
}

func (i *Interpreter) evaluateVector(f *frame, node syntax.Node) (*runtime.Value, error) {
	elems := make([]*runtime.Value, 0, node.NamedChildCount())
	for idx := 0; idx < node.NamedChildCount(); idx++ {
		elem, err := i.evaluateExpression(f, node.NamedChild(idx))
		if err != nil {
			releaseAll(elems)
			return nil, err
		}
		elems = append(elems, elem)
	}
	return runtime.MakeVec(elems...), nil
}

func (i *Interpreter) evaluateIndex(f *frame, node syntax.Node) (*runtime.Value, error) {
	indexed, err := i.evaluateExpression(f, node.ChildByFieldName("indexed"))
	if err != nil {
		return nil, err
	}
	defer indexed.Decref()
	if indexed.Kind() != runtime.KindVec {
		return nil, i.errorf(f, node, ErrTypeMismatch, "cannot index %s (must be vector)", runtime.TypeName(indexed))
	}

	index, err := i.evaluateExpression(f, node.ChildByFieldName("index"))
	if err != nil {
		return nil, err
	}
	defer index.Decref()
	if index.Kind() != runtime.KindInt {
		return nil, i.errorf(f, node, ErrTypeMismatch, "index must be an integer, got %s", runtime.TypeName(index))
	}

	size := int64(len(indexed.Vec))
	at := index.Int
	if at < 0 {
		at += size
	}
	if at < 0 || at >= size {
		return nil, i.errorf(f, node, ErrIndex, "index %d is out of bounds for vector of size %d", index.Int, size)
	}
	return indexed.Vec[at].Incref(), nil
}

func releaseAll(vals []*runtime.Value) {
	for _, v := range vals {
		v.Decref()
	}
}

// unescapeString decodes \n, \t, \\ and \". Any other backslash sequence
// is kept as written.
func unescapeString(body string) []byte {
	out := make([]byte, 0, len(body))
	for idx := 0; idx < len(body); idx++ {
		c := body[idx]
		if c != '\\' || idx+1 == len(body) {
			out = append(out, c)
			continue
		}
		switch body[idx+1] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case '\\':
			out = append(out, '\\')
		case '"':
			out = append(out, '"')
		default:
			out = append(out, c, body[idx+1])
		}
		idx++
	}
	return out
}
