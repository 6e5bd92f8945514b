// Package interpreter evaluates flamingo programs by walking their syntax
// tree. An Interpreter owns one source unit, its environment and a pending
// error buffer; hosts extend it with external functions, class hooks and
// primitive type members.
package interpreter

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/inobulles/flamingo/pkg/parser"
	"github.com/inobulles/flamingo/pkg/runtime"
	"github.com/inobulles/flamingo/pkg/syntax"
)

// ImportMode controls whether imported units see and extend the importer's
// environment.
type ImportMode int

const (
	// ImportIsolated runs imported units in their own environment.
	ImportIsolated ImportMode = iota
	// ImportShared evaluates imported units against the importer's current
	// environment, so their declarations become visible to it.
	ImportShared
)

const defaultMaxCallDepth = 10000

// Loader reads a source file for import resolution.
type Loader func(path string) ([]byte, error)

type options struct {
	logger       *slog.Logger
	out          io.Writer
	parser       parser.Parser
	loader       Loader
	path         string
	importMode   ImportMode
	importPaths  []string
	strictParams bool
	maxCallDepth int
}

// Option configures an Interpreter.
type Option func(*options)

// WithLogger sets the logger for debug tracing. Defaults to discarding.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOutput redirects print statements. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithParser replaces the built-in parser, e.g. with a tree-sitter
// parser.ModuleParser.
func WithParser(p parser.Parser) Option {
	return func(o *options) { o.parser = p }
}

// WithLoader replaces os.ReadFile for reading imported files.
func WithLoader(l Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithPath sets the file path of the source, used to resolve relative
// imports. Defaults to the program name.
func WithPath(path string) Option {
	return func(o *options) { o.path = path }
}

func WithImportMode(mode ImportMode) Option {
	return func(o *options) { o.importMode = mode }
}

// WithImportPaths adds directories searched after the importing file's own
// directory.
func WithImportPaths(dirs ...string) Option {
	return func(o *options) { o.importPaths = append(o.importPaths, dirs...) }
}

// WithStrictParamTypes makes parameter type annotations binding.
func WithStrictParamTypes(strict bool) Option {
	return func(o *options) { o.strictParams = strict }
}

// WithMaxCallDepth bounds call nesting; exceeding it is a runtime error.
func WithMaxCallDepth(depth int) Option {
	return func(o *options) { o.maxCallDepth = depth }
}

// Interpreter runs one flamingo source unit. It is not safe for concurrent
// use.
type Interpreter struct {
	progname string
	unit     *runtime.Unit
	trees    []*syntax.Tree
	env      *runtime.Environment
	ownsEnv  bool
	opts     options
	logger   *slog.Logger

	hooks       *hooks
	members     *memberRegistry
	ownsMembers bool
	importChain []string

	errs      errorBuffer
	ran       bool
	destroyed bool
}

// New parses src and prepares an interpreter for it. Parse failures are
// returned as *Error of kind ErrSyntax.
func New(progname string, src []byte, opts ...Option) (*Interpreter, error) {
	o := options{
		out:          os.Stdout,
		loader:       os.ReadFile,
		maxCallDepth: defaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return newInterpreter(progname, src, o, nil)
}

func newInterpreter(progname string, src []byte, o options, parent *Interpreter) (*Interpreter, error) {
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.parser == nil {
		o.parser = parser.NewSourceParser()
	}
	if o.path == "" {
		o.path = progname
	}

	i := &Interpreter{
		progname: progname,
		unit:     &runtime.Unit{Path: o.path, Source: src},
		opts:     o,
		logger:   o.logger.With("program", progname),
	}
	if parent != nil {
		i.hooks = parent.hooks
		i.members = parent.members
		i.importChain = parent.importChain
	} else {
		i.hooks = newHooks()
		i.members = newMemberRegistry()
		i.ownsMembers = true
	}
	if abs, err := filepath.Abs(o.path); err == nil {
		i.importChain = append(append([]string(nil), i.importChain...), abs)
	}

	tree, err := o.parser.Parse(src)
	if err != nil {
		if i.ownsMembers {
			i.members.release()
		}
		return nil, syntaxFailure(progname, err)
	}
	i.trees = append(i.trees, tree)

	i.env = runtime.NewEnvironment()
	i.env.PushScope()
	i.ownsEnv = true
	return i, nil
}

// Run evaluates the program. It may only be called once. On failure the
// error is also queued for Err.
func (i *Interpreter) Run() error {
	if i.ran {
		return i.fail(&Error{Kind: ErrRun, Program: i.progname, Msg: "program has already run"})
	}
	i.ran = true

	i.logger.Debug("running program", "path", i.unit.Path)
	if _, err := i.evaluateUnit(i.topFrame(i.unit), i.trees[0].Root(), false); err != nil {
		i.logger.Debug("program failed", "error", err)
		return i.fail(err)
	}
	i.logger.Debug("program finished")
	return nil
}

// Eval parses and runs an additional chunk of source against the
// interpreter's environment. If the chunk ends with an expression statement,
// its value is returned and the caller owns the reference.
func (i *Interpreter) Eval(src []byte) (*runtime.Value, error) {
	tree, err := i.opts.parser.Parse(src)
	if err != nil {
		return nil, i.fail(syntaxFailure(i.progname, err))
	}
	i.trees = append(i.trees, tree)
	unit := &runtime.Unit{Path: i.unit.Path, Source: src}
	val, err := i.evaluateUnit(i.topFrame(unit), tree.Root(), true)
	if err != nil {
		return nil, i.fail(err)
	}
	return val, nil
}

// Destroy releases every value owned by the interpreter. Host destructors of
// live instances run here.
func (i *Interpreter) Destroy() {
	if i == nil || i.destroyed {
		return
	}
	i.destroyed = true
	if i.ownsEnv {
		i.env.Purge()
	}
	if i.ownsMembers {
		i.members.release()
	}
	for _, tree := range i.trees {
		tree.Close()
	}
	i.trees = nil
}

// Err returns the pending error messages and clears them.
func (i *Interpreter) Err() string {
	return i.errs.fetch()
}

// Environment exposes the interpreter's environment.
func (i *Interpreter) Environment() *runtime.Environment {
	return i.env
}

// InheritEnvironment makes the interpreter evaluate against env instead of
// its own. The interpreter no longer releases its environment on Destroy.
func (i *Interpreter) InheritEnvironment(env *runtime.Environment) {
	if i.ownsEnv {
		i.env.Purge()
	}
	i.env = env
	i.ownsEnv = false
}

// Globals returns the variables of the outermost scope in declaration order.
func (i *Interpreter) Globals() []*runtime.Variable {
	scopes := i.env.Scopes()
	if len(scopes) == 0 {
		return nil
	}
	return scopes[0].Vars()
}

// AddImportPath appends a directory to the import search path.
func (i *Interpreter) AddImportPath(dir string) {
	i.opts.importPaths = append(i.opts.importPaths, dir)
}

// Progname is the program name errors are reported under.
func (i *Interpreter) Progname() string { return i.progname }

func (i *Interpreter) fail(err error) error {
	i.errs.add(err.Error())
	return err
}

func syntaxFailure(progname string, err error) error {
	e := &Error{Kind: ErrSyntax, Program: progname, Msg: err.Error(), cause: err}
	var se *parser.SyntaxError
	if errors.As(err, &se) {
		e.Line, e.Column, e.Msg = se.Line, se.Column, se.Msg
	}
	return e
}

func (i *Interpreter) topFrame(unit *runtime.Unit) *frame {
	return &frame{unit: unit, env: i.env}
}
