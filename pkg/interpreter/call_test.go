package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFunctionCalls(t *testing.T) {
	out := mustRun(t, `
fn add(a, b) {
	return a + b
}
fn double(x) = x * 2
fn nothing() {
	return
}
fn implicit() {
	let unused = 1
}
print add(1, 2)
print double(add(2, 3))
print nothing()
print implicit()
`)
	assert.Equal(t, "3\n10\nnone\nnone\n", out)
}

func TestRecursion(t *testing.T) {
	out := mustRun(t, `
fn fib(n) {
	if n < 2 {
		return n
	}
	return fib(n - 1) + fib(n - 2)
}
print fib(15)
`)
	assert.Equal(t, "610\n", out)
}

func TestClosureObservesLaterUpdates(t *testing.T) {
	out := mustRun(t, `
let x = 1
fn get() = x
x = 2
print get()
`)
	assert.Equal(t, "2\n", out)
}

func TestReturnedClosureKeepsScope(t *testing.T) {
	var out string
	delta := liveDelta(func() {
		out = mustRun(t, `
fn make(n) {
	fn add(m) = n + m
	return add
}
let add5 = make(5)
print add5(1)
print add5(10)
print make(1)(1)
`)
	})
	assert.Equal(t, "6\n15\n2\n", out)
	assert.Equal(t, int64(0), delta)
}

func TestArityMismatch(t *testing.T) {
	_, err := runSource(t, "fn f(a, b) = a\nprint f(1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callable expected 2 arguments, got 1 instead")
	assert.ErrorIs(t, err, ErrArity)
}

func TestCallingNonCallable(t *testing.T) {
	_, err := runSource(t, "let x = 3\nx()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callable expression is of type integer, which is not callable")
	assert.ErrorIs(t, err, ErrNotCallable)
}

func TestReturnRules(t *testing.T) {
	_, err := runSource(t, "return 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return can't be used in top-level scope")
	assert.ErrorIs(t, err, ErrReturn)

	_, err = runSource(t, "class C {\n\treturn 1\n}\nC()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "return statement can't take a return value when inside a class scope")

	out := mustRun(t, "class C {\n\tprint \"body\"\n\treturn\n\tprint \"skipped\"\n}\nlet c = C()\nprint c")
	assert.Equal(t, "body\n<C instance>\n", out)
}

func TestClassInstancesAreIndependent(t *testing.T) {
	out := mustRun(t, `
class Counter(start) {
	let n = start
	fn inc() {
		n = n + 1
	}
}
let a = Counter(0)
let b = Counter(10)
a.inc()
a.inc()
b.inc()
print a.n
print b.n
a.n = 100
print a.n
print b.n
`)
	assert.Equal(t, "2\n11\n100\n11\n", out)
}

func TestMemberAccessErrors(t *testing.T) {
	_, err := runSource(t, "class C {}\nlet c = C()\nprint c.missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "member 'missing' was never declared")

	_, err = runSource(t, "let x = 1\nprint x.y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accessed expression is not accessible (must be instance, string or vector, is integer)")
	assert.ErrorIs(t, err, ErrNotAccessible)

	_, err = runSource(t, `print "s".nope()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no member 'nope' on type string")
}

func TestClassesAreNotExpressionBodied(t *testing.T) {
	_, err := runSource(t, "class C(x) {\n\tfn get() = x\n}\nlet c = C(4)\nprint c.get()")
	require.NoError(t, err)
}

func TestStringMembers(t *testing.T) {
	out := mustRun(t, `
print "hello".len()
print "hello".startswith("he")
print "hello".endswith("he")
let s = "flamingo"
print s.endswith("go")
`)
	assert.Equal(t, "5\ntrue\nfalse\ntrue\n", out)

	_, err := runSource(t, `print "hello".len(1)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'str.len' expected 0 arguments, got 1")

	_, err = runSource(t, `print "hello".startswith(1)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'str.startswith' expected 'start' argument to be string, got integer")
}

func TestMaxCallDepth(t *testing.T) {
	_, err := runSource(t, "fn loop(n) = loop(n + 1)\nloop(0)", WithMaxCallDepth(64))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum call depth exceeded")
	assert.ErrorIs(t, err, ErrCallDepth)
}

func TestParamTypesIgnoredByDefault(t *testing.T) {
	out := mustRun(t, "fn f(a: int) = a\nprint f(\"text\")")
	assert.Equal(t, "text\n", out)
}

func TestStrictParamTypes(t *testing.T) {
	src := `
class Point(x: int, y: int) {
	fn sum() = x + y
}
fn norm(p: Point) = p.sum()
print norm(Point(1, 2))
fn anything(v: any) = v
print anything([1])
`
	out := mustRun(t, src, WithStrictParamTypes(true))
	assert.Equal(t, "3\n[1]\n", out)

	_, err := runSource(t, "fn f(a: int) = a\nprint f(\"text\")", WithStrictParamTypes(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 'a' expected to be int, got string")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = runSource(t, "class A {}\nclass B {}\nfn f(a: A) = a\nf(B())", WithStrictParamTypes(true))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument 'a' expected to be A, got instance")
}
