package interpreter

import (
	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

// accessMember resolves an access node. It returns a new reference to the
// member and a new reference to the accessed value, which becomes the
// receiver if the member is called.
func (i *Interpreter) accessMember(f *frame, node syntax.Node) (member, receiver *runtime.Value, err error) {
	accessor := node.ChildByFieldName("accessor")
	if accessor == nil {
		return nil, nil, i.errorf(f, node, ErrStructural, "access has no accessor")
	}
	name := f.unit.Text(accessor)

	accessed, err := i.evaluateExpression(f, node.ChildByFieldName("accessed"))
	if err != nil {
		return nil, nil, err
	}

	switch accessed.Kind() {
	case runtime.KindInst:
		variable := accessed.Inst.Scope.Find(name)
		if variable == nil || variable.Value == nil {
			accessed.Decref()
			return nil, nil, i.errorf(f, accessor, ErrUndeclared, "member '%s' was never declared", name)
		}
		return variable.Value.Incref(), accessed, nil
	case runtime.KindStr, runtime.KindVec:
		m := i.members.lookup(accessed.Kind(), name)
		if m == nil {
			kind := accessed.Kind()
			accessed.Decref()
			return nil, nil, i.errorf(f, accessor, ErrUndeclared, "no member '%s' on type %s", name, kind)
		}
		return m.Incref(), accessed, nil
	default:
		typ := runtime.TypeName(accessed)
		accessed.Decref()
		return nil, nil, i.errorf(f, node, ErrNotAccessible, "accessed expression is not accessible (must be instance, string or vector, is %s)", typ)
	}
}

func (i *Interpreter) evaluateAccess(f *frame, node syntax.Node) (*runtime.Value, error) {
	member, receiver, err := i.accessMember(f, node)
	if err != nil {
		return nil, err
	}
	receiver.Decref()
	return member, nil
}

// resolveMemberVariable finds the instance member an assignment targets. The
// returned instance reference keeps the member scope alive until the caller
// releases it.
func (i *Interpreter) resolveMemberVariable(f *frame, node syntax.Node) (*runtime.Variable, string, *runtime.Value, error) {
	accessor := node.ChildByFieldName("accessor")
	if accessor == nil {
		return nil, "", nil, i.errorf(f, node, ErrStructural, "access has no accessor")
	}
	name := f.unit.Text(accessor)

	accessed, err := i.evaluateExpression(f, node.ChildByFieldName("accessed"))
	if err != nil {
		return nil, name, nil, err
	}
	if accessed.Kind() != runtime.KindInst {
		typ := runtime.TypeName(accessed)
		accessed.Decref()
		return nil, name, nil, i.errorf(f, node, ErrNotAccessible, "accessed expression is not accessible (must be instance, string or vector, is %s)", typ)
	}
	variable := accessed.Inst.Scope.Find(name)
	if variable == nil {
		accessed.Decref()
		return nil, name, nil, i.errorf(f, accessor, ErrUndeclared, "member '%s' was never declared", name)
	}
	return variable, name, accessed, nil
}
