package interpreter

import (
	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

// evaluateAssignment stores into an existing variable or instance member.
// Assignment never declares.
func (i *Interpreter) evaluateAssignment(f *frame, node syntax.Node) error {
	left := unwrapExpression(node.ChildByFieldName("left"))
	if left == nil {
		return i.errorf(f, node, ErrStructural, "assignment has no target")
	}

	var (
		variable *runtime.Variable
		name     string
	)
	switch left.Kind() {
	case "identifier":
		name = f.unit.Text(left)
		variable = f.env.Find(name)
		if variable == nil {
			return i.errorf(f, left, ErrUndeclared, "'%s' was never declared", name)
		}
	case "access":
		var (
			owner *runtime.Value
			err   error
		)
		variable, name, owner, err = i.resolveMemberVariable(f, left)
		if err != nil {
			return err
		}
		defer owner.Decref()
	default:
		return i.errorf(f, left, ErrStructural, "cannot assign to %s", left.Kind())
	}

	if runtime.IsCallable(variable.Value) {
		return i.errorf(f, left, ErrReassign, "cannot assign to %s '%s'", runtime.RoleName(variable.Value), name)
	}

	val, err := i.evaluateExpression(f, node.ChildByFieldName("right"))
	if err != nil {
		return err
	}
	old := variable.Value
	if old != nil && old.Kind() != runtime.KindNone && val.Kind() != runtime.KindNone && old.Kind() != val.Kind() {
		oldType, newType := runtime.TypeName(old), runtime.TypeName(val)
		val.Decref()
		return i.errorf(f, node, ErrTypeMismatch, "cannot assign %s to '%s' (%s)", newType, name, oldType)
	}
	variable.Set(val)
	return nil
}
