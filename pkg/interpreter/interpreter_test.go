package interpreter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintLiterals(t *testing.T) {
	out := mustRun(t, `
print 42
print "hello"
print true
print none
print [1, "two", [3]]
`)
	assert.Equal(t, "42\nhello\ntrue\nnone\n[1, \"two\", [3]]\n", out)
}

func TestStringEscapes(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{`print "a\nb"`, "a\nb\n"},
		{`print "a\tb"`, "a\tb\n"},
		{`print "back\\slash"`, "back\\slash\n"},
		{`print "say \"hi\""`, "say \"hi\"\n"},
		{`print "a\qb"`, "a\\qb\n"},
		{`print "C:\dir"`, "C:\\dir\n"},
		{`print "\x41\a\u00e9"`, "\\x41\\a\\u00e9\n"},
		{`print "\\n"`, "\\n\n"},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.want, mustRun(t, tc.src))
		})
	}
}

func TestStringEscapeLength(t *testing.T) {
	assert.Equal(t, "3\n4\n", mustRun(t, "print \"a\\nb\".len()\nprint \"a\\qb\".len()"))
}

func TestIntegerArithmetic(t *testing.T) {
	out := mustRun(t, `
print 1 + 2 * 3
print (1 + 2) * 3
print 7 / 2
print 7 % 3
print 2 ** 10
print 2 ** 3 ** 2
print 3 < 4
print 4 >= 5
print 5 != 5
`)
	assert.Equal(t, "7\n9\n3\n1\n1024\n512\ntrue\nfalse\nfalse\n", out)
}

func TestBooleanOperators(t *testing.T) {
	out := mustRun(t, `
print true && false
print true || false
print true ^^ true
print true ^^ false
print false == false
`)
	assert.Equal(t, "false\ntrue\nfalse\ntrue\ntrue\n", out)
}

func TestStringOperators(t *testing.T) {
	out := mustRun(t, `
let s = "foo" + "bar"
print s
print s == "foobar"
print s != "foobar"
`)
	assert.Equal(t, "foobar\ntrue\nfalse\n", out)

	_, err := runSource(t, `print "a" - "b"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operator '-' for type string")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestOperandTypesMustMatch(t *testing.T) {
	_, err := runSource(t, `print 1 + "a"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operand types must be identical (got integer and string)")
}

func TestDivisionByZero(t *testing.T) {
	out, err := runSource(t, "let a = 1 / 0\nprint a\n")
	require.Error(t, err)
	assert.Equal(t, "", out)
	assert.EqualError(t, err, "test.fl:1:9: division by zero")
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = runSource(t, "print 1 % 0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modulo by zero")

	_, err = runSource(t, "print 2 ** (0 - 1)")
	assert.ErrorIs(t, err, ErrArithmetic)
}

func TestShadowingInBlocks(t *testing.T) {
	out := mustRun(t, `
let x = 1
{
	let x = 2
	print x
}
print x
`)
	assert.Equal(t, "2\n1\n", out)
}

func TestRedeclarationInSameScope(t *testing.T) {
	_, err := runSource(t, "let x = 1\nlet x = 2\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the variable 'x' has already been declared in this scope")
	assert.ErrorIs(t, err, ErrRedeclared)

	_, err = runSource(t, "fn f() = 1\nlet f = 2\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the function 'f' has already been declared in this scope")
}

func TestAssignment(t *testing.T) {
	out := mustRun(t, `
let x = 1
x = x + 1
print x
let y
y = "set"
print y
y = none
print y
`)
	assert.Equal(t, "2\nset\nnone\n", out)
}

func TestAssignmentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
		kind error
	}{
		{"undeclared", "z = 1", "'z' was never declared", ErrUndeclared},
		{"function", "fn f() = 1\nf = 2", "cannot assign to function 'f'", ErrReassign},
		{"class", "class C {}\nC = 2", "cannot assign to class 'C'", ErrReassign},
		{"kind change", "let x = 1\nx = \"s\"", "cannot assign string to 'x' (integer)", ErrTypeMismatch},
		{"unknown identifier", "print nope", "unknown identifier 'nope'", ErrUndeclared},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runSource(t, tc.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
			assert.True(t, errors.Is(err, tc.kind), "unexpected kind for %v", err)
		})
	}
}

func TestVectorsAndIndexing(t *testing.T) {
	out := mustRun(t, `
let v = [10, 20, 30]
print v[0]
print v[-1]
print v.len()
`)
	assert.Equal(t, "10\n30\n3\n", out)

	_, err := runSource(t, "let v = [1, 2, 3]\nprint v[3]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index 3 is out of bounds for vector of size 3")
	assert.ErrorIs(t, err, ErrIndex)

	_, err = runSource(t, `print "abc"[0]`)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestIfChain(t *testing.T) {
	src := `
fn size(n) {
	if n < 3 {
		return "small"
	} elif n < 10 {
		return "medium"
	} else {
		return "large"
	}
}
print size(1)
print size(5)
print size(50)
`
	assert.Equal(t, "small\nmedium\nlarge\n", mustRun(t, src))

	_, err := runSource(t, "if 1 { print 1 }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "condition must be a boolean, got integer")
}

func TestForLoop(t *testing.T) {
	out := mustRun(t, `
let total = 0
for x in [1, 2, 3] {
	total = total + x
}
print total
for c in "ab" {
	print c
}
`)
	assert.Equal(t, "6\na\nb\n", out)

	_, err := runSource(t, "for x in 3 { print x }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot iterate over integer")
}

func TestAssert(t *testing.T) {
	mustRun(t, "assert 1 == 1")
	_, err := runSource(t, "assert 1 == 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion failed: 1 == 2")
	assert.ErrorIs(t, err, ErrAssertion)
}

func TestRunOnlyOnce(t *testing.T) {
	interp, out := newInterp(t, `print "once"`)
	require.NoError(t, interp.Run())
	err := interp.Run()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRun)
	assert.Contains(t, err.Error(), "program has already run")
	assert.Equal(t, "once\n", out.String())
}

func TestSyntaxErrorFromNew(t *testing.T) {
	_, err := New("bad.fl", []byte("let = 3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "bad.fl", e.Program)
	assert.Equal(t, 1, e.Line)
	assert.Equal(t, 5, e.Column)
}

func TestEvalKeepsEnvironment(t *testing.T) {
	interp, out := newInterp(t, "let x = 20")
	require.NoError(t, interp.Run())

	_, err := interp.Eval([]byte("fn twice(n) = n * 2"))
	require.NoError(t, err)

	val, err := interp.Eval([]byte("twice(x) + 2"))
	require.NoError(t, err)
	require.NotNil(t, val)
	assert.Equal(t, int64(42), val.Int)
	val.Decref()

	_, err = interp.Eval([]byte("print x"))
	require.NoError(t, err)
	assert.Equal(t, "20\n", out.String())

	_, err = interp.Eval([]byte("print y"))
	require.Error(t, err)
	assert.Contains(t, interp.Err(), "unknown identifier 'y'")
}

func TestGlobalsInDeclarationOrder(t *testing.T) {
	interp, _ := newInterp(t, "let b = 1\nlet a = \"x\"\nfn f() = 1\n{\n\tlet hidden = 1\n}\n")
	require.NoError(t, interp.Run())
	var names []string
	for _, v := range interp.Globals() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"b", "a", "f"}, names)
}

func TestDestroyReleasesEveryValue(t *testing.T) {
	delta := liveDelta(func() {
		out := mustRun(t, `
let s = "a" + "b"
let v = [1, [2, 3], s]
fn add(a, b) = a + b
class Box(v) {
	let value = v
	fn get() = value
}
let box = Box(add(1, 2))
print box.get()
for x in v {
	print x
}
`)
		assert.Equal(t, "3\n1\n[2, 3]\nab\n", out)
	})
	assert.Equal(t, int64(0), delta)
}

func TestFailedRunReleasesEveryValue(t *testing.T) {
	delta := liveDelta(func() {
		_, err := runSource(t, "let v = [1, 2]\nfn f(x) = x / 0\nprint f(v[0])")
		require.Error(t, err)
	})
	assert.Equal(t, int64(0), delta)
}

func TestLocalClosureScopesAreCollected(t *testing.T) {
	delta := liveDelta(func() {
		mustRun(t, `
fn outer(n) {
	let big = [n, n, n]
	fn inner() = big
	return n
}
print outer(1)
print outer(2)
`)
	})
	assert.Equal(t, int64(0), delta)
}
