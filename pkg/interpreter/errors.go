package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/inobulles/flamingo/pkg/syntax"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrSyntax         = errors.New("syntax error")
	ErrStructural     = errors.New("malformed syntax tree")
	ErrUndeclared     = errors.New("undeclared name")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrArity          = errors.New("arity mismatch")
	ErrRedeclared     = errors.New("redeclaration")
	ErrDivisionByZero = errors.New("division by zero")
	ErrArithmetic     = errors.New("arithmetic error")
	ErrNotCallable    = errors.New("not callable")
	ErrNotAccessible  = errors.New("not accessible")
	ErrReassign       = errors.New("reassignment of callable")
	ErrImport         = errors.New("import failed")
	ErrAssertion      = errors.New("assertion failed")
	ErrIndex          = errors.New("index out of range")
	ErrHost           = errors.New("host callback failed")
	ErrReturn         = errors.New("misplaced return")
	ErrRun            = errors.New("run failed")
	ErrCallDepth      = errors.New("call depth exceeded")
)

// Error is a language-level error tied to a source position.
type Error struct {
	Kind    error
	Program string
	// Line and Column are 1-based; zero when no node was available.
	Line   int
	Column int
	Msg    string

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Program, e.Line, e.Column, e.Msg)
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

// Errorf builds an error for native callbacks. The interpreter fills in the
// position of the call site.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (i *Interpreter) errorf(f *frame, node syntax.Node, kind error, format string, args ...any) error {
	return i.locate(f, node, &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

// locate stamps err with the position of node. Errors that already carry a
// position pass through unchanged; foreign errors become ErrHost errors.
func (i *Interpreter) locate(f *frame, node syntax.Node, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: ErrHost, Msg: err.Error(), cause: err}
	}
	if e.Program != "" {
		return e
	}
	e.Program = i.progname
	if f != nil && f.unit != nil && f.unit.Path != "" && f.unit.Path != i.unit.Path {
		e.Program = f.unit.Path
	}
	if node != nil {
		p := node.StartPoint()
		e.Line, e.Column = p.Row+1, p.Column+1
	}
	return e
}

const errBufferCap = 4096

// errorBuffer accumulates messages until the host fetches them.
type errorBuffer struct {
	b           strings.Builder
	outstanding bool
	full        bool
}

func (eb *errorBuffer) add(msg string) {
	if eb.outstanding {
		msg = ", " + msg
	}
	eb.outstanding = true
	if eb.full {
		return
	}
	room := errBufferCap - eb.b.Len()
	if len(msg) <= room {
		eb.b.WriteString(msg)
		return
	}
	const ellipsis = "..."
	eb.full = true
	if room < len(ellipsis) {
		return
	}
	eb.b.WriteString(msg[:room-len(ellipsis)])
	eb.b.WriteString(ellipsis)
}

func (eb *errorBuffer) fetch() string {
	if !eb.outstanding {
		return "no errors"
	}
	msg := eb.b.String()
	eb.b.Reset()
	eb.outstanding = false
	eb.full = false
	return msg
}
