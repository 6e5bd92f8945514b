package interpreter

import (
	"bytes"
	"fmt"

	"github.com/inobulles/flamingo/pkg/runtime"
)

// memberRegistry holds the members of primitive types, keyed by type.
type memberRegistry struct {
	byKind map[runtime.Kind]map[string]*runtime.Value
}

func newMemberRegistry() *memberRegistry {
	r := &memberRegistry{byKind: make(map[runtime.Kind]map[string]*runtime.Value)}
	r.mustRegister(runtime.KindStr, "len", strLen)
	r.mustRegister(runtime.KindStr, "startswith", strAffix("startswith", "start", bytes.HasPrefix))
	r.mustRegister(runtime.KindStr, "endswith", strAffix("endswith", "end", bytes.HasSuffix))
	r.mustRegister(runtime.KindVec, "len", vecLen)
	return r
}

func (r *memberRegistry) register(kind runtime.Kind, name string, fn runtime.NativeMember) error {
	members := r.byKind[kind]
	if members == nil {
		members = make(map[string]*runtime.Value)
		r.byKind[kind] = members
	}
	if _, ok := members[name]; ok {
		return Errorf(ErrRedeclared, "primitive type member '%s' already exists on type %s", name, kind)
	}
	val := runtime.MakeFn(&runtime.Function{Kind: runtime.FnPrimitiveMember, Name: name, Member: fn})
	val.Name = name
	members[name] = val
	return nil
}

func (r *memberRegistry) mustRegister(kind runtime.Kind, name string, fn runtime.NativeMember) {
	if err := r.register(kind, name, fn); err != nil {
		panic(err)
	}
}

// lookup returns a borrowed reference, or nil.
func (r *memberRegistry) lookup(kind runtime.Kind, name string) *runtime.Value {
	return r.byKind[kind][name]
}

func (r *memberRegistry) release() {
	for _, members := range r.byKind {
		for _, val := range members {
			val.Decref()
		}
	}
	r.byKind = nil
}

// RegisterPrimitiveMember adds a member callable on every value of kind. Only
// strings and vectors have members.
func (i *Interpreter) RegisterPrimitiveMember(kind runtime.Kind, name string, fn runtime.NativeMember) error {
	if kind != runtime.KindStr && kind != runtime.KindVec {
		return fmt.Errorf("interpreter: type %s cannot have members", kind)
	}
	if fn == nil {
		return fmt.Errorf("interpreter: nil member callback for %s.%s", kind, name)
	}
	return i.members.register(kind, name, fn)
}

func memberArity(member string, want int, args *runtime.ArgList) error {
	if args.Len() != want {
		return Errorf(ErrArity, "'%s' expected %d arguments, got %d", member, want, args.Len())
	}
	return nil
}

func strLen(_ *runtime.NativeCallContext, self *runtime.Value, args *runtime.ArgList) (*runtime.Value, error) {
	if err := memberArity("str.len", 0, args); err != nil {
		return nil, err
	}
	return runtime.MakeInt(int64(len(self.Str))), nil
}

func strAffix(name, arg string, test func(s, affix []byte) bool) runtime.NativeMember {
	member := "str." + name
	return func(_ *runtime.NativeCallContext, self *runtime.Value, args *runtime.ArgList) (*runtime.Value, error) {
		if err := memberArity(member, 1, args); err != nil {
			return nil, err
		}
		affix := args.At(0)
		if affix.Kind() != runtime.KindStr {
			return nil, Errorf(ErrTypeMismatch, "'%s' expected '%s' argument to be string, got %s", member, arg, runtime.TypeName(affix))
		}
		return runtime.MakeBool(test(self.Str, affix.Str)), nil
	}
}

func vecLen(_ *runtime.NativeCallContext, self *runtime.Value, args *runtime.ArgList) (*runtime.Value, error) {
	if err := memberArity("vec.len", 0, args); err != nil {
		return nil, err
	}
	return runtime.MakeInt(int64(len(self.Vec))), nil
}
