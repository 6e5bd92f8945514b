package interpreter

import (
	"io"

	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

// frame is the evaluation context of one call: the unit its nodes belong to,
// the environment it resolves names in and the callee (nil at top level).
// Frames are never mutated once built.
type frame struct {
	unit  *runtime.Unit
	env   *runtime.Environment
	fn    *runtime.Value
	depth int
}

// flow is the result of executing a statement. A returned flow carries the
// value of the return statement up to the enclosing call.
type flow struct {
	returned bool
	value    *runtime.Value
}

var normal = flow{}

// evaluateUnit runs the statements of a source_file. With keepLast, the value
// of a trailing expression statement is returned instead of discarded.
func (i *Interpreter) evaluateUnit(f *frame, root syntax.Node, keepLast bool) (*runtime.Value, error) {
	if root == nil || root.Kind() != "source_file" {
		return nil, i.errorf(f, root, ErrStructural, "expected source_file at the root of the tree")
	}
	count := root.NamedChildCount()
	for idx := 0; idx < count; idx++ {
		stmt := root.NamedChild(idx)
		if keepLast && idx == count-1 {
			if expr := statementExpression(stmt); expr != nil {
				return i.evaluateExpression(f, expr)
			}
		}
		if _, err := i.evaluateStatement(f, stmt); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// statementExpression returns the expression of an expression statement, or
// nil for any other statement.
func statementExpression(stmt syntax.Node) syntax.Node {
	if stmt != nil && stmt.Kind() == "statement" && stmt.NamedChildCount() == 1 {
		stmt = stmt.NamedChild(0)
	}
	if stmt != nil && (stmt.Kind() == "expression" || isExpressionKind(stmt.Kind())) {
		return stmt
	}
	return nil
}

func (i *Interpreter) evaluateStatement(f *frame, node syntax.Node) (flow, error) {
	if node.Kind() == "statement" {
		if node.NamedChildCount() != 1 {
			return normal, i.errorf(f, node, ErrStructural, "statement must have exactly one child, has %d", node.NamedChildCount())
		}
		node = node.NamedChild(0)
	}

	switch kind := node.Kind(); kind {
	case "comment", "doc_comment":
		return normal, nil
	case "block":
		return i.evaluateBlock(f, node)
	case "print":
		return normal, i.evaluatePrint(f, node)
	case "return":
		return i.evaluateReturn(f, node)
	case "assert":
		return normal, i.evaluateAssert(f, node)
	case "var_decl":
		return normal, i.evaluateVarDecl(f, node)
	case "assignment":
		return normal, i.evaluateAssignment(f, node)
	case "function_declaration", "class_declaration", "proto":
		return normal, i.evaluateDeclaration(f, node)
	case "import":
		return normal, i.evaluateImport(f, node)
	case "if_chain":
		return i.evaluateIfChain(f, node)
	case "for_loop":
		return i.evaluateForLoop(f, node)
	case "expression":
		return normal, i.executeExpression(f, node)
	default:
		if isExpressionKind(kind) {
			return normal, i.executeExpression(f, node)
		}
		return normal, i.errorf(f, node, ErrStructural, "unknown statement type: %s", kind)
	}
}

// evaluateBlock runs a block in a fresh scope.
func (i *Interpreter) evaluateBlock(f *frame, node syntax.Node) (flow, error) {
	if node == nil || node.Kind() != "block" {
		return normal, i.errorf(f, node, ErrStructural, "expected block, got %s", kindOf(node))
	}
	f.env.PushScope()
	defer f.env.PopScope()
	return i.evaluateStatements(f, node)
}

// evaluateStatements runs the children of node in the current scope and stops
// at the first return.
func (i *Interpreter) evaluateStatements(f *frame, node syntax.Node) (flow, error) {
	for idx := 0; idx < node.NamedChildCount(); idx++ {
		fl, err := i.evaluateStatement(f, node.NamedChild(idx))
		if err != nil || fl.returned {
			return fl, err
		}
	}
	return normal, nil
}

func (i *Interpreter) evaluatePrint(f *frame, node syntax.Node) error {
	val, err := i.evaluateExpression(f, node.ChildByFieldName("msg"))
	if err != nil {
		return err
	}
	defer val.Decref()
	if _, err := io.WriteString(i.opts.out, stringify(val)+"\n"); err != nil {
		return i.errorf(f, node, ErrHost, "print failed: %v", err)
	}
	return nil
}

func (i *Interpreter) evaluateReturn(f *frame, node syntax.Node) (flow, error) {
	if f.fn == nil {
		return normal, i.errorf(f, node, ErrReturn, "return can't be used in top-level scope")
	}
	valueNode := node.ChildByFieldName("value")
	if valueNode == nil {
		return flow{returned: true, value: runtime.MakeNone()}, nil
	}
	if top := f.env.Top(); top != nil && top.ClassScope {
		return normal, i.errorf(f, node, ErrReturn, "return statement can't take a return value when inside a class scope")
	}
	val, err := i.evaluateExpression(f, valueNode)
	if err != nil {
		return normal, err
	}
	return flow{returned: true, value: val}, nil
}

func (i *Interpreter) evaluateAssert(f *frame, node syntax.Node) error {
	test := node.ChildByFieldName("test")
	val, err := i.evaluateExpression(f, test)
	if err != nil {
		return err
	}
	defer val.Decref()
	if val.Kind() != runtime.KindBool {
		return i.errorf(f, node, ErrTypeMismatch, "assertion expects a boolean, got %s", runtime.TypeName(val))
	}
	if !val.Bool {
		return i.errorf(f, node, ErrAssertion, "assertion failed: %s", f.unit.Text(test))
	}
	return nil
}

func kindOf(node syntax.Node) string {
	if node == nil {
		return "nothing"
	}
	return node.Kind()
}
