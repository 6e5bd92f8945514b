package interpreter

import (
	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

func (i *Interpreter) evaluateCondition(f *frame, node syntax.Node) (bool, error) {
	val, err := i.evaluateExpression(f, node)
	if err != nil {
		return false, err
	}
	defer val.Decref()
	if val.Kind() != runtime.KindBool {
		return false, i.errorf(f, node, ErrTypeMismatch, "condition must be a boolean, got %s", runtime.TypeName(val))
	}
	return val.Bool, nil
}

// evaluateIfChain runs the first branch whose condition holds. Conditions
// after it are not evaluated.
func (i *Interpreter) evaluateIfChain(f *frame, node syntax.Node) (flow, error) {
	conditions := append([]syntax.Node{node.ChildByFieldName("condition")}, syntax.FieldChildren(node, "elif_condition")...)
	bodies := append([]syntax.Node{node.ChildByFieldName("body")}, syntax.FieldChildren(node, "elif_body")...)
	if len(conditions) != len(bodies) {
		return normal, i.errorf(f, node, ErrStructural, "if chain has %d conditions but %d bodies", len(conditions), len(bodies))
	}

	for idx, cond := range conditions {
		ok, err := i.evaluateCondition(f, cond)
		if err != nil {
			return normal, err
		}
		if ok {
			return i.evaluateBlock(f, bodies[idx])
		}
	}
	if elseBody := node.ChildByFieldName("else_body"); elseBody != nil {
		return i.evaluateBlock(f, elseBody)
	}
	return normal, nil
}

// evaluateForLoop binds each element of a vector, or each byte of a string,
// in a fresh scope per iteration.
func (i *Interpreter) evaluateForLoop(f *frame, node syntax.Node) (flow, error) {
	nameNode := node.ChildByFieldName("cur_var_name")
	body := node.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return normal, i.errorf(f, node, ErrStructural, "for loop is missing its variable or body")
	}
	name := f.unit.Text(nameNode)

	iterable, err := i.evaluateExpression(f, node.ChildByFieldName("iterator"))
	if err != nil {
		return normal, err
	}
	defer iterable.Decref()

	var count int
	switch iterable.Kind() {
	case runtime.KindVec:
		count = len(iterable.Vec)
	case runtime.KindStr:
		count = len(iterable.Str)
	default:
		return normal, i.errorf(f, node, ErrTypeMismatch, "cannot iterate over %s (must be vector or string)", runtime.TypeName(iterable))
	}

	for idx := 0; idx < count; idx++ {
		var cur *runtime.Value
		if iterable.Kind() == runtime.KindVec {
			cur = iterable.Vec[idx].Incref()
		} else {
			cur = runtime.MakeStr(iterable.Str[idx : idx+1])
		}
		fl, err := i.iterate(f, body, name, cur)
		if err != nil || fl.returned {
			return fl, err
		}
	}
	return normal, nil
}

func (i *Interpreter) iterate(f *frame, body syntax.Node, name string, cur *runtime.Value) (flow, error) {
	f.env.PushScope().Add(name).Set(cur)
	defer f.env.PopScope()
	return i.evaluateBlock(f, body)
}
