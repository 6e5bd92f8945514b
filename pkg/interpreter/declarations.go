package interpreter

import (
	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

// checkRedeclaration rejects a name already bound in the current scope.
// Shadowing names from outer scopes is allowed.
func (i *Interpreter) checkRedeclaration(f *frame, node syntax.Node, name string) error {
	top := f.env.Top()
	if top == nil {
		return i.errorf(f, node, ErrStructural, "no scope to declare '%s' in", name)
	}
	if prev := top.Find(name); prev != nil {
		return i.errorf(f, node, ErrRedeclared, "the %s '%s' has already been declared in this scope", runtime.RoleName(prev.Value), name)
	}
	return nil
}

func (i *Interpreter) evaluateVarDecl(f *frame, node syntax.Node) error {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return i.errorf(f, node, ErrStructural, "variable declaration has no name")
	}
	name := f.unit.Text(nameNode)
	if err := i.checkRedeclaration(f, nameNode, name); err != nil {
		return err
	}

	var val *runtime.Value
	if initial := node.ChildByFieldName("initial"); initial != nil {
		var err error
		if val, err = i.evaluateExpression(f, initial); err != nil {
			return err
		}
	} else {
		val = runtime.MakeNone()
	}

	f.env.Top().Add(name).Set(val)
	return nil
}

// evaluateDeclaration binds fn, class and proto declarations.
func (i *Interpreter) evaluateDeclaration(f *frame, node syntax.Node) error {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return i.errorf(f, node, ErrStructural, "%s has no name", node.Kind())
	}
	name := f.unit.Text(nameNode)
	if err := i.checkRedeclaration(f, nameNode, name); err != nil {
		return err
	}

	fn := &runtime.Function{
		Name:   name,
		Params: node.ChildByFieldName("params"),
		Body:   node.ChildByFieldName("body"),
		Unit:   f.unit,
	}
	if quals := node.ChildByFieldName("qualifiers"); quals != nil {
		for _, q := range syntax.NamedChildren(quals) {
			fn.Qualifiers = append(fn.Qualifiers, f.unit.Text(q))
		}
	}

	switch node.Kind() {
	case "function_declaration":
		fn.Kind = runtime.FnFunction
	case "class_declaration":
		fn.Kind = runtime.FnClass
	case "proto":
		fn.Kind = runtime.FnExternal
	}

	if fn.Kind == runtime.FnExternal {
		if binding, ok := i.hooks.named[name]; ok {
			fn.Native = binding
			i.logger.Debug("resolved external function", "name", name)
		}
	} else {
		if fn.Body == nil {
			return i.errorf(f, node, ErrStructural, "%s '%s' has no body", fn.Kind, name)
		}
		fn.Env = f.env.CloseOver()
	}

	val := runtime.MakeFn(fn)
	val.Name = name

	if fn.Kind == runtime.FnClass {
		i.logger.Debug("declaring class", "name", name)
		if hook := i.hooks.classDecl; hook != nil {
			if err := hook(i, val, i.hooks.declData); err != nil {
				val.Decref()
				return i.locate(f, node, err)
			}
		}
	}

	f.env.Top().Add(name).Set(val)
	return nil
}
