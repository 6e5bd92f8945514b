package interpreter

import (
	"github.com/inobulles/flamingo/pkg/runtime"
)

// ExternalCallback implements external (proto) functions. args is borrowed;
// the returned value, if any, is owned by the interpreter. A nil value stands
// for none.
type ExternalCallback func(i *Interpreter, callable *runtime.Value, data any, args *runtime.ArgList) (*runtime.Value, error)

// ClassDeclCallback is invoked for every class declaration before its name
// is bound. Returning an error aborts the declaration.
type ClassDeclCallback func(i *Interpreter, class *runtime.Value, data any) error

// ClassInstCallback is invoked for every new instance, after the class body
// ran. args is borrowed. Returning an error aborts the instantiation.
type ClassInstCallback func(i *Interpreter, inst *runtime.Value, data any, args *runtime.ArgList) error

type externalBinding struct {
	fn   ExternalCallback
	data any
}

// hooks are shared between an interpreter and every unit it imports.
type hooks struct {
	external  *externalBinding
	named     map[string]*externalBinding
	classDecl ClassDeclCallback
	declData  any
	classInst ClassInstCallback
	instData  any
}

func newHooks() *hooks {
	return &hooks{named: make(map[string]*externalBinding)}
}

// OnExternalCall sets the callback for external functions that have no
// dedicated binding.
func (i *Interpreter) OnExternalCall(fn ExternalCallback, data any) {
	if fn == nil {
		i.hooks.external = nil
		return
	}
	i.hooks.external = &externalBinding{fn: fn, data: data}
}

// RegisterExternal binds a host function to the prototype called name.
// Prototypes pick up their binding when declared, so registration must
// happen before the program runs.
func (i *Interpreter) RegisterExternal(name string, fn ExternalCallback, data any) {
	if fn == nil {
		delete(i.hooks.named, name)
		return
	}
	i.hooks.named[name] = &externalBinding{fn: fn, data: data}
}

func (i *Interpreter) OnClassDeclaration(fn ClassDeclCallback, data any) {
	i.hooks.classDecl = fn
	i.hooks.declData = data
}

func (i *Interpreter) OnClassInstantiation(fn ClassInstCallback, data any) {
	i.hooks.classInst = fn
	i.hooks.instData = data
}
