package interpreter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inobulles/flamingo/pkg/runtime"
)

func TestExternalCallWithoutCallback(t *testing.T) {
	_, err := runSource(t, "proto host()\nhost()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot call external function without an external function callback being set")
	assert.ErrorIs(t, err, ErrHost)
}

func TestGenericExternalCallback(t *testing.T) {
	interp, out := newInterp(t, "proto sum(a, b)\nprint sum(40, 2)\nproto quiet()\nprint quiet()")
	var seen []string
	interp.OnExternalCall(func(in *Interpreter, callable *runtime.Value, data any, args *runtime.ArgList) (*runtime.Value, error) {
		seen = append(seen, callable.Fn.Name)
		assert.Equal(t, "tag", data)
		if callable.Fn.Name != "sum" {
			return nil, nil
		}
		a, ok := args.Named("a")
		require.True(t, ok)
		return runtime.MakeInt(a.Int + args.At(1).Int), nil
	}, "tag")

	require.NoError(t, interp.Run())
	assert.Equal(t, "42\nnone\n", out.String())
	assert.Equal(t, []string{"sum", "quiet"}, seen)
}

func TestNamedExternalsResolveAtDeclaration(t *testing.T) {
	interp, out := newInterp(t, `
proto greet(name)
proto other()
print greet("flamingo")
print other()
`)
	generic := 0
	interp.OnExternalCall(func(*Interpreter, *runtime.Value, any, *runtime.ArgList) (*runtime.Value, error) {
		generic++
		return runtime.MakeStr([]byte("generic")), nil
	}, nil)
	interp.RegisterExternal("greet", func(_ *Interpreter, _ *runtime.Value, data any, args *runtime.ArgList) (*runtime.Value, error) {
		return runtime.MakeStr([]byte(data.(string) + string(args.At(0).Str))), nil
	}, "hello ")

	require.NoError(t, interp.Run())
	assert.Equal(t, "hello flamingo\ngeneric\n", out.String())
	assert.Equal(t, 1, generic)
}

func TestExternalErrorsArePositioned(t *testing.T) {
	interp, _ := newInterp(t, "proto fail()\n\nfail()")
	hostErr := errors.New("host exploded")
	interp.OnExternalCall(func(*Interpreter, *runtime.Value, any, *runtime.ArgList) (*runtime.Value, error) {
		return nil, hostErr
	}, nil)

	err := interp.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHost)
	assert.ErrorIs(t, err, hostErr)
	assert.Equal(t, "test.fl:3:1: host exploded", err.Error())
}

func TestClassDeclarationHook(t *testing.T) {
	interp, _ := newInterp(t, "class Allowed {}\nclass Forbidden {}\nprint \"unreachable\"")
	var declared []string
	interp.OnClassDeclaration(func(_ *Interpreter, class *runtime.Value, _ any) error {
		declared = append(declared, class.Fn.Name)
		if class.Fn.Name == "Forbidden" {
			return Errorf(ErrHost, "class '%s' is not allowed", class.Fn.Name)
		}
		return nil
	}, nil)

	err := interp.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class 'Forbidden' is not allowed")
	assert.Equal(t, []string{"Allowed", "Forbidden"}, declared)
	assert.Equal(t, 1, len(interp.Globals()))
}

func TestClassInstantiationHookAttachesData(t *testing.T) {
	freed := 0
	delta := liveDelta(func() {
		interp, out := newInterp(t, `
class File(path) {
	let opened = true
}
let f = File("/tmp/x")
print f.opened
`)
		interp.OnClassInstantiation(func(_ *Interpreter, inst *runtime.Value, data any, args *runtime.ArgList) error {
			path, ok := args.Named("path")
			require.True(t, ok)
			inst.Inst.SetData(string(path.Str), func(_ *runtime.Value, data any) {
				assert.Equal(t, "/tmp/x", data)
				freed++
			})
			return nil
		}, nil)
		require.NoError(t, interp.Run())
		assert.Equal(t, "true\n", out.String())
		assert.Equal(t, 0, freed)
		interp.Destroy()
	})
	assert.Equal(t, 1, freed)
	assert.Equal(t, int64(0), delta)
}

func TestDestroyFreesInstancesHeldByEscapedClosures(t *testing.T) {
	freed := 0
	delta := liveDelta(func() {
		interp, out := newInterp(t, `
class Res() {
	let ok = true
}
fn make() {
	let r = Res()
	fn get() = r
	return get
}
print make()
let kept = make()
print kept().ok
`)
		interp.OnClassInstantiation(func(_ *Interpreter, inst *runtime.Value, _ any, _ *runtime.ArgList) error {
			inst.Inst.SetData(nil, func(*runtime.Value, any) { freed++ })
			return nil
		}, nil)
		require.NoError(t, interp.Run())
		assert.Equal(t, "<function get>\ntrue\n", out.String())
		interp.Destroy()
	})
	assert.Equal(t, 2, freed)
	assert.Equal(t, int64(0), delta)
}

func TestClassInstantiationHookRejects(t *testing.T) {
	freed := false
	interp, _ := newInterp(t, "class Socket {}\nlet s = Socket()")
	interp.OnClassInstantiation(func(_ *Interpreter, inst *runtime.Value, _ any, _ *runtime.ArgList) error {
		inst.Inst.SetData(nil, func(*runtime.Value, any) { freed = true })
		return errors.New("no sockets today")
	}, nil)

	err := interp.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sockets today")
	assert.True(t, freed)
}

func TestRegisterPrimitiveMember(t *testing.T) {
	interp, out := newInterp(t, `print "abc".upper()` + "\n" + `print [1, 2].first()`)
	require.NoError(t, interp.RegisterPrimitiveMember(runtime.KindStr, "upper", func(_ *runtime.NativeCallContext, self *runtime.Value, _ *runtime.ArgList) (*runtime.Value, error) {
		up := make([]byte, len(self.Str))
		for idx, c := range self.Str {
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			up[idx] = c
		}
		return runtime.MakeStr(up), nil
	}))
	require.NoError(t, interp.RegisterPrimitiveMember(runtime.KindVec, "first", func(ctx *runtime.NativeCallContext, self *runtime.Value, _ *runtime.ArgList) (*runtime.Value, error) {
		assert.Same(t, interp, ctx.Host)
		return self.Vec[0].Incref(), nil
	}))

	err := interp.RegisterPrimitiveMember(runtime.KindStr, "len", func(*runtime.NativeCallContext, *runtime.Value, *runtime.ArgList) (*runtime.Value, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primitive type member 'len' already exists on type string")

	err = interp.RegisterPrimitiveMember(runtime.KindInt, "abs", func(*runtime.NativeCallContext, *runtime.Value, *runtime.ArgList) (*runtime.Value, error) {
		return nil, nil
	})
	require.Error(t, err)

	require.NoError(t, interp.Run())
	assert.Equal(t, "ABC\n1\n", out.String())
}
