package interpreter

import (
	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

func (i *Interpreter) evaluateCall(f *frame, node syntax.Node) (*runtime.Value, error) {
	callableNode := unwrapExpression(node.ChildByFieldName("callable"))
	if callableNode == nil {
		return nil, i.errorf(f, node, ErrStructural, "call has no callable")
	}

	var (
		callee, receiver *runtime.Value
		err              error
	)
	if callableNode.Kind() == "access" {
		callee, receiver, err = i.accessMember(f, callableNode)
	} else {
		callee, err = i.evaluateExpression(f, callableNode)
	}
	if err != nil {
		return nil, err
	}
	defer callee.Decref()
	defer receiver.Decref()

	if !runtime.IsCallable(callee) {
		return nil, i.errorf(f, callableNode, ErrNotCallable, "callable expression is of type %s, which is not callable", runtime.TypeName(callee))
	}
	if limit := i.opts.maxCallDepth; limit > 0 && f.depth >= limit {
		return nil, i.errorf(f, node, ErrCallDepth, "maximum call depth exceeded")
	}

	var argNodes []syntax.Node
	if args := node.ChildByFieldName("args"); args != nil {
		argNodes = syntax.NamedChildren(args)
	}

	switch callee.Fn.Kind {
	case runtime.FnExternal:
		return i.callExternal(f, node, callee, argNodes)
	case runtime.FnPrimitiveMember:
		return i.callMember(f, node, callee, receiver, argNodes)
	default:
		return i.callFunction(f, node, callee, receiver, argNodes)
	}
}

// evaluateArgs evaluates argument expressions in the caller's frame.
func (i *Interpreter) evaluateArgs(f *frame, nodes []syntax.Node) ([]*runtime.Value, error) {
	vals := make([]*runtime.Value, 0, len(nodes))
	for _, n := range nodes {
		val, err := i.evaluateExpression(f, n)
		if err != nil {
			releaseAll(vals)
			return nil, err
		}
		vals = append(vals, val)
	}
	return vals, nil
}

func (i *Interpreter) callExternal(f *frame, node syntax.Node, callee *runtime.Value, argNodes []syntax.Node) (*runtime.Value, error) {
	binding, _ := callee.Fn.Native.(*externalBinding)
	if binding == nil {
		binding = i.hooks.external
	}
	if binding == nil {
		return nil, i.errorf(f, node, ErrHost, "cannot call external function without an external function callback being set")
	}

	vals, err := i.evaluateArgs(f, argNodes)
	if err != nil {
		return nil, err
	}
	args := runtime.NewArgList(vals, paramNames(callee.Fn))
	defer args.Release()

	i.logger.Debug("calling external function", "name", callee.Fn.Name, "args", args.Len())
	result, err := binding.fn(i, callee, binding.data, args)
	if err != nil {
		result.Decref()
		return nil, i.locate(f, node, err)
	}
	if result == nil {
		return runtime.MakeNone(), nil
	}
	return result, nil
}

func (i *Interpreter) callMember(f *frame, node syntax.Node, callee, receiver *runtime.Value, argNodes []syntax.Node) (*runtime.Value, error) {
	if receiver == nil {
		return nil, i.errorf(f, node, ErrNotCallable, "primitive type member '%s' called without a receiver", callee.Fn.Name)
	}
	vals, err := i.evaluateArgs(f, argNodes)
	if err != nil {
		return nil, err
	}
	args := runtime.NewArgList(vals, nil)
	defer args.Release()

	ctx := &runtime.NativeCallContext{Env: f.env, Host: i}
	result, err := callee.Fn.Member(ctx, receiver, args)
	if err != nil {
		result.Decref()
		return nil, i.locate(f, node, err)
	}
	if result == nil {
		return runtime.MakeNone(), nil
	}
	return result, nil
}

func (i *Interpreter) callFunction(f *frame, node syntax.Node, callee, receiver *runtime.Value, argNodes []syntax.Node) (*runtime.Value, error) {
	fn := callee.Fn
	params := paramNodes(fn)
	if len(argNodes) != len(params) {
		return nil, i.errorf(f, node, ErrArity, "callable expected %d arguments, got %d instead", len(params), len(argNodes))
	}

	vals, err := i.evaluateArgs(f, argNodes)
	if err != nil {
		return nil, err
	}
	if i.opts.strictParams {
		if err := i.checkParamTypes(f, fn, params, argNodes, vals); err != nil {
			releaseAll(vals)
			return nil, err
		}
	}

	env := fn.Env
	if env == nil {
		env = f.env
	}
	isClass := fn.Kind == runtime.FnClass

	if receiver != nil && receiver.Kind() == runtime.KindInst {
		env.Attach(receiver.Inst.Scope)
		defer env.Detach()
	}
	scope := env.PushClassScope(isClass)
	defer env.PopScope()
	for idx, param := range params {
		scope.Add(fn.Unit.Text(param.ChildByFieldName("ident"))).Set(vals[idx])
	}

	callFrame := &frame{unit: fn.Unit, env: env, fn: callee, depth: f.depth + 1}

	if fn.IsExpressionBody() {
		if isClass {
			return nil, i.errorf(callFrame, fn.Body, ErrStructural, "class body must be a block")
		}
		return i.evaluateExpression(callFrame, fn.Body)
	}

	if isClass {
		return i.instantiate(f, node, callFrame, callee, vals)
	}

	fl, err := i.evaluateBlock(callFrame, fn.Body)
	if err != nil {
		return nil, err
	}
	if fl.value != nil {
		return fl.value, nil
	}
	return runtime.MakeNone(), nil
}

// instantiate runs a class body and turns its scope into the member scope of
// a new instance. vals are borrowed from the argument scope.
func (i *Interpreter) instantiate(f *frame, node syntax.Node, callFrame *frame, class *runtime.Value, vals []*runtime.Value) (*runtime.Value, error) {
	env := callFrame.env
	env.PushScope()
	fl, err := i.evaluateStatements(callFrame, class.Fn.Body)
	if err != nil {
		env.PopScope()
		return nil, err
	}
	fl.value.Decref()

	inst := runtime.MakeInstance(class, env.Detach())
	if hook := i.hooks.classInst; hook != nil {
		if err := hook(i, inst, i.hooks.instData, runtime.NewArgList(vals, paramNames(class.Fn))); err != nil {
			inst.Decref()
			return nil, i.locate(f, node, err)
		}
	}
	return inst, nil
}

func paramNodes(fn *runtime.Function) []syntax.Node {
	if fn.Params == nil {
		return nil
	}
	return syntax.NamedChildren(fn.Params)
}

func paramNames(fn *runtime.Function) []string {
	params := paramNodes(fn)
	if len(params) == 0 {
		return nil
	}
	names := make([]string, len(params))
	for idx, param := range params {
		names[idx] = fn.Unit.Text(param.ChildByFieldName("ident"))
	}
	return names
}

func (i *Interpreter) checkParamTypes(f *frame, fn *runtime.Function, params, argNodes []syntax.Node, vals []*runtime.Value) error {
	for idx, param := range params {
		typ := param.ChildByFieldName("type")
		if typ == nil {
			continue
		}
		want := fn.Unit.Text(typ)
		if !typeMatches(want, vals[idx]) {
			name := fn.Unit.Text(param.ChildByFieldName("ident"))
			return i.errorf(f, argNodes[idx], ErrTypeMismatch, "argument '%s' expected to be %s, got %s", name, want, runtime.TypeName(vals[idx]))
		}
	}
	return nil
}

func typeMatches(want string, v *runtime.Value) bool {
	switch want {
	case "any":
		return true
	case "int":
		return v.Kind() == runtime.KindInt
	case "bool":
		return v.Kind() == runtime.KindBool
	case "str":
		return v.Kind() == runtime.KindStr
	case "vec":
		return v.Kind() == runtime.KindVec
	case "none":
		return v.Kind() == runtime.KindNone
	}
	return v.Kind() == runtime.KindInst && v.ClassName() == want
}
