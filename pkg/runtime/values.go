package runtime

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/inobulles/flamingo/pkg/syntax"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindStr
	KindVec
	KindFn
	KindInst
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindStr:
		return "string"
	case KindVec:
		return "vector"
	case KindFn:
		return "function"
	case KindInst:
		return "instance"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// FnKind distinguishes the callables sharing KindFn.
type FnKind int

const (
	FnFunction FnKind = iota
	FnClass
	FnExternal
	FnPrimitiveMember
)

func (k FnKind) String() string {
	switch k {
	case FnFunction:
		return "function"
	case FnClass:
		return "class"
	case FnExternal:
		return "external function"
	case FnPrimitiveMember:
		return "primitive type member"
	default:
		return fmt.Sprintf("unknown_fn_kind_%d", int(k))
	}
}

// InvariantError reports an internal consistency failure. It is raised with
// panic and never converted into a language-level error.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "flamingo: invariant violated: " + e.Msg }

func invariant(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

//-----------------------------------------------------------------------------
// Instrumentation
//-----------------------------------------------------------------------------

var (
	allocated atomic.Int64
	released  atomic.Int64
)

// Counters reports how many values were created and destroyed process-wide.
type Counters struct {
	Allocated int64
	Released  int64
}

// Live is the number of values allocated but not yet destroyed.
func (c Counters) Live() int64 { return c.Allocated - c.Released }

func ReadCounters() Counters {
	return Counters{Allocated: allocated.Load(), Released: released.Load()}
}

//-----------------------------------------------------------------------------
// Values
//-----------------------------------------------------------------------------

// Unit is a source buffer that callables remember they were declared in.
type Unit struct {
	Path   string
	Source []byte
}

// Text returns the source bytes covered by node.
func (u *Unit) Text(node syntax.Node) string {
	if u == nil || node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start < 0 || end < start || end > len(u.Source) {
		return ""
	}
	return string(u.Source[start:end])
}

// NativeCallContext is handed to native member callbacks.
type NativeCallContext struct {
	Env  *Environment
	Host any
}

// NativeMember implements a primitive type member. self is borrowed.
type NativeMember func(ctx *NativeCallContext, self *Value, args *ArgList) (*Value, error)

// Function is the payload of a KindFn value.
type Function struct {
	Kind FnKind
	// Name is the declared name. Unlike Value.Name it does not follow the
	// value into other variables.
	Name       string
	Params     syntax.Node
	Body       syntax.Node
	Qualifiers []string
	Unit       *Unit
	Env        *Environment
	Member     NativeMember
	// Native is the host function bound to an external prototype when it
	// was declared. It holds whatever the host boundary stores there.
	Native any
}

// IsExpressionBody reports whether the callable is declared as fn f() = expr.
func (f *Function) IsExpressionBody() bool {
	return f.Body != nil && f.Body.Kind() != "block"
}

// Instance is the payload of a KindInst value.
type Instance struct {
	Class *Value
	Scope *Scope
	data  any
	free  func(inst *Value, data any)
}

// SetData attaches host data to the instance. free, if set, runs once when
// the instance is destroyed, after its members were released.
func (i *Instance) SetData(data any, free func(inst *Value, data any)) {
	i.data = data
	i.free = free
}

func (i *Instance) Data() any { return i.data }

// Value is a tagged, reference-counted datum. The zero value is not usable;
// construct values through Alloc or the Make* helpers.
type Value struct {
	kind Kind
	refs int
	// Name is the variable currently holding the value, for diagnostics and
	// external call resolution only.
	Name string

	Bool bool
	Int  int64
	Str  []byte
	Vec  []*Value
	Fn   *Function
	Inst *Instance
}

// Alloc creates a none value with a single reference.
func Alloc() *Value {
	allocated.Add(1)
	return &Value{kind: KindNone, refs: 1}
}

func (v *Value) Kind() Kind { return v.kind }

// Refs exposes the current reference count.
func (v *Value) Refs() int { return v.refs }

// Incref adds a reference. Resurrecting a destroyed value is fatal.
func (v *Value) Incref() *Value {
	if v.refs <= 0 {
		invariant("incref on destroyed %s value", v.kind)
	}
	v.refs++
	return v
}

// Decref drops a reference and destroys the value when none remain.
func (v *Value) Decref() {
	if v == nil {
		return
	}
	if v.refs <= 0 {
		invariant("decref on destroyed %s value", v.kind)
	}
	v.refs--
	if v.refs == 0 {
		v.destroy()
	}
}

func (v *Value) destroy() {
	released.Add(1)
	switch v.kind {
	case KindStr:
		v.Str = nil
	case KindVec:
		elems := v.Vec
		v.Vec = nil
		for _, elem := range elems {
			elem.Decref()
		}
	case KindFn:
		if v.Fn != nil && v.Fn.Env != nil {
			v.Fn.Env.Release()
		}
		v.Fn = nil
	case KindInst:
		inst := v.Inst
		if inst == nil {
			return
		}
		if inst.Scope != nil {
			inst.Scope.Purge()
		}
		if inst.free != nil {
			inst.free(v, inst.data)
		}
		inst.Class.Decref()
		v.Inst = nil
	}
}

//-----------------------------------------------------------------------------
// Constructors
//-----------------------------------------------------------------------------

func MakeNone() *Value { return Alloc() }

func MakeBool(b bool) *Value {
	v := Alloc()
	v.kind = KindBool
	v.Bool = b
	return v
}

func MakeInt(i int64) *Value {
	v := Alloc()
	v.kind = KindInt
	v.Int = i
	return v
}

// MakeStr copies b into a new string value.
func MakeStr(b []byte) *Value {
	v := Alloc()
	v.kind = KindStr
	v.Str = append([]byte(nil), b...)
	return v
}

// MakeCStr builds a string from a NUL-terminated buffer.
func MakeCStr(b []byte) *Value {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return MakeStr(b)
}

// MakeVec takes ownership of one reference to each element.
func MakeVec(elems ...*Value) *Value {
	v := Alloc()
	v.kind = KindVec
	v.Vec = elems
	return v
}

// MakeFn wraps fn into a callable value.
func MakeFn(fn *Function) *Value {
	v := Alloc()
	v.kind = KindFn
	v.Fn = fn
	return v
}

// MakeInstance creates an instance of class owning scope. The class gains a
// reference for as long as the instance lives.
func MakeInstance(class *Value, scope *Scope) *Value {
	if class == nil || class.kind != KindFn || class.Fn.Kind != FnClass {
		invariant("instance created from a non-class value")
	}
	v := Alloc()
	v.kind = KindInst
	v.Inst = &Instance{Class: class.Incref(), Scope: scope}
	return v
}

//-----------------------------------------------------------------------------
// Diagnostics
//-----------------------------------------------------------------------------

// TypeName describes the type of v for error messages.
func TypeName(v *Value) string {
	if v == nil {
		return "none"
	}
	if v.kind == KindFn && v.Fn != nil {
		return v.Fn.Kind.String()
	}
	return v.kind.String()
}

// RoleName is "variable" for data values and the callable type otherwise.
func RoleName(v *Value) string {
	if v != nil && v.kind == KindFn {
		return TypeName(v)
	}
	return "variable"
}

// IsCallable reports whether v is a function, class, or prototype.
func IsCallable(v *Value) bool {
	return v != nil && v.kind == KindFn
}

// ClassName returns the name of the class an instance was created from.
func (v *Value) ClassName() string {
	if v.kind != KindInst || v.Inst == nil {
		return ""
	}
	return v.Inst.Class.Fn.Name
}
