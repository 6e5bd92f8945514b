package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/inobulles/flamingo/pkg/driver"
	"github.com/inobulles/flamingo/pkg/interpreter"
	"github.com/inobulles/flamingo/pkg/runtime"
)

const cliToolVersion = "flamingo 0.1.0"

var errRed = color.New(color.FgRed)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "--help", "-h":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "run":
		return runEntry(args[1:])
	case "repl":
		return runRepl(args[1:])
	case "deps":
		return runDeps(args[1:])
	default:
		return runEntry(args)
	}
}

type runFlags struct {
	verbose bool
	vars    bool
	strict  bool
}

func (rf *runFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&rf.verbose, "v", false, "log interpreter activity at debug level")
	fs.BoolVar(&rf.vars, "vars", false, "print global variables after the program finishes")
	fs.BoolVar(&rf.strict, "strict", false, "enforce parameter type annotations")
}

func runEntry(args []string) int {
	var flags runFlags
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()

	var (
		manifest *driver.Manifest
		entry    string
		err      error
	)
	if len(rest) == 0 {
		manifest, err = loadManifestFrom(".")
		if err != nil {
			if errors.Is(err, driver.ErrManifestNotFound) {
				reportError("flamingo run requires a source file or a project manifest (%s not found)", driver.ManifestYAML)
			} else {
				reportError("failed to load manifest: %v", err)
			}
			return 1
		}
		entry = manifest.EntryPath()
	} else {
		entry = rest[0]
		rest = rest[1:]
		manifest, err = loadManifestFrom(filepath.Dir(entry))
		if err != nil {
			if !errors.Is(err, driver.ErrManifestNotFound) {
				reportError("failed to load manifest for %s: %v", entry, err)
				return 1
			}
			manifest = nil
		}
	}

	lock, err := loadLockfileForManifest(manifest)
	if err != nil {
		reportError("%v", err)
		return 1
	}
	return executeEntry(entry, rest, manifest, lock, flags)
}

func executeEntry(entry string, scriptArgs []string, manifest *driver.Manifest, lock *driver.Lockfile, flags runFlags) int {
	src, err := os.ReadFile(entry)
	if err != nil {
		reportError("failed to read %s: %v", entry, err)
		return 1
	}
	absEntry, err := filepath.Abs(entry)
	if err != nil {
		reportError("failed to resolve %s: %v", entry, err)
		return 1
	}

	opts := interpreterOptions(manifest, lock, flags)
	opts = append(opts, interpreter.WithPath(absEntry))

	interp, err := interpreter.New(filepath.Base(entry), src, opts...)
	if err != nil {
		reportError("%v", err)
		return 1
	}
	defer interp.Destroy()
	registerHostFunctions(interp, scriptArgs)

	if err := interp.Run(); err != nil {
		reportError("%v", err)
		return 1
	}
	if flags.vars {
		printGlobals(os.Stdout, interp)
	}
	return 0
}

// interpreterOptions maps manifest settings, lockfile packages and CLI flags
// onto interpreter options.
func interpreterOptions(manifest *driver.Manifest, lock *driver.Lockfile, flags runFlags) []interpreter.Option {
	level := slog.LevelInfo
	if manifest != nil {
		level = manifest.Level()
	}
	if flags.verbose {
		level = slog.LevelDebug
	}

	opts := []interpreter.Option{
		interpreter.WithOutput(os.Stdout),
		interpreter.WithLogger(newLogger(os.Stderr, level)),
		interpreter.WithImportPaths(searchPaths(manifest, lock)...),
	}
	strict := flags.strict
	if manifest != nil {
		strict = strict || manifest.StrictParamTypes
		if manifest.ImportMode == "shared" {
			opts = append(opts, interpreter.WithImportMode(interpreter.ImportShared))
		}
		if manifest.MaxCallDepth > 0 {
			opts = append(opts, interpreter.WithMaxCallDepth(manifest.MaxCallDepth))
		}
	}
	if strict {
		opts = append(opts, interpreter.WithStrictParamTypes(true))
	}
	return opts
}

// searchPaths lists import directories: the manifest's import_paths, then
// locked dependencies, then FLAMINGO_PATH.
func searchPaths(manifest *driver.Manifest, lock *driver.Lockfile) []string {
	var paths []string
	if manifest != nil {
		paths = append(paths, manifest.ResolvedImportPaths()...)
	}
	paths = append(paths, lock.ImportPaths()...)
	for _, part := range strings.Split(os.Getenv("FLAMINGO_PATH"), string(os.PathListSeparator)) {
		if part = strings.TrimSpace(part); part != "" {
			paths = append(paths, part)
		}
	}
	return paths
}

// newLogger builds a tint handler on w, with colour only when w is a
// terminal.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}))
}

// registerHostFunctions binds the externals the CLI offers to scripts:
// argv(), env(name) and now().
func registerHostFunctions(interp *interpreter.Interpreter, scriptArgs []string) {
	interp.RegisterExternal("argv", func(*interpreter.Interpreter, *runtime.Value, any, *runtime.ArgList) (*runtime.Value, error) {
		elems := make([]*runtime.Value, len(scriptArgs))
		for idx, arg := range scriptArgs {
			elems[idx] = runtime.MakeStr([]byte(arg))
		}
		return runtime.MakeVec(elems...), nil
	}, nil)

	interp.RegisterExternal("env", func(_ *interpreter.Interpreter, _ *runtime.Value, _ any, args *runtime.ArgList) (*runtime.Value, error) {
		if args.Len() != 1 || args.At(0).Kind() != runtime.KindStr {
			return nil, errors.New("env expects a single string argument")
		}
		val, ok := os.LookupEnv(string(args.At(0).Str))
		if !ok {
			return runtime.MakeNone(), nil
		}
		return runtime.MakeStr([]byte(val)), nil
	}, nil)

	interp.RegisterExternal("now", func(*interpreter.Interpreter, *runtime.Value, any, *runtime.ArgList) (*runtime.Value, error) {
		return runtime.MakeInt(time.Now().Unix()), nil
	}, nil)
}

func printGlobals(w io.Writer, interp *interpreter.Interpreter) {
	for _, v := range interp.Globals() {
		fmt.Fprintf(w, "%s = %s\n", v.Name, interpreter.Stringify(v.Value))
	}
}

func reportError(format string, args ...any) {
	errRed.Fprintf(os.Stderr, format+"\n", args...)
}

func runDeps(args []string) int {
	if len(args) == 0 {
		reportError("flamingo deps requires a subcommand (install, update)")
		return 1
	}
	switch args[0] {
	case "install":
		if len(args) > 1 {
			reportError("flamingo deps install does not take arguments (received %s)", strings.Join(args[1:], " "))
			return 1
		}
		return runDepsInstall(nil, false)
	case "update":
		return runDepsInstall(args[1:], true)
	default:
		reportError("unknown deps subcommand %q", args[0])
		return 1
	}
}

func runDepsInstall(targets []string, update bool) int {
	manifest, err := loadManifestFrom(".")
	if err != nil {
		reportError("unable to locate manifest: %v", err)
		return 1
	}
	cacheDir, err := resolveFlamingoHome()
	if err != nil {
		reportError("failed to resolve FLAMINGO_HOME: %v", err)
		return 1
	}
	names := make([]string, 0, len(targets))
	for _, target := range targets {
		name := driver.PackageName(target)
		if _, ok := manifest.Dependencies[name]; !ok {
			reportError("dependency %q not declared in manifest", target)
			return 1
		}
		names = append(names, name)
	}

	fmt.Fprintf(os.Stdout, "Manifest: %s\n", manifest.Path)
	fmt.Fprintf(os.Stdout, "Dependencies: %d\n", len(manifest.Dependencies))
	fmt.Fprintf(os.Stdout, "Cache directory: %s\n", cacheDir)

	lockPath := manifest.LockfilePath()
	lock, err := driver.LoadLockfile(lockPath)
	lockCreated := false
	switch {
	case err == nil:
		if lock.Root != manifest.Name {
			reportError("lockfile root %q does not match manifest name %q", lock.Root, manifest.Name)
			return 1
		}
	case errors.Is(err, os.ErrNotExist):
		lock = driver.NewLockfile(manifest.Name, cliToolVersion)
		lockCreated = true
	default:
		reportError("failed to read lockfile: %v", err)
		return 1
	}
	lock.Tool = cliToolVersion

	installer := newDependencyInstaller(manifest, cacheDir)
	if update {
		installer.Refresh(names...)
	}
	changed, logs, err := installer.Install(lock)
	for _, line := range logs {
		fmt.Fprintln(os.Stdout, line)
	}
	if err != nil {
		reportError("failed to resolve dependencies: %v", err)
		return 1
	}

	if !changed && !lockCreated {
		fmt.Fprintf(os.Stdout, "%s already up to date: %s\n", driver.LockfileName, lockPath)
		return 0
	}
	if err := driver.WriteLockfile(lock, lockPath); err != nil {
		reportError("failed to write lockfile: %v", err)
		return 1
	}
	action := "Updated"
	if lockCreated {
		action = "Created"
	}
	fmt.Fprintf(os.Stdout, "%s %s: %s\n", action, driver.LockfileName, lock.Path)
	return 0
}

func loadManifestFrom(start string) (*driver.Manifest, error) {
	manifestPath, err := driver.FindManifest(start)
	if err != nil {
		return nil, err
	}
	return driver.LoadManifest(manifestPath)
}

func loadLockfileForManifest(manifest *driver.Manifest) (*driver.Lockfile, error) {
	if manifest == nil {
		return nil, nil
	}
	lock, err := driver.LoadLockfile(manifest.LockfilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if len(manifest.Dependencies) > 0 {
				return nil, fmt.Errorf("%s missing for %q; run `flamingo deps install`", driver.LockfileName, manifest.Name)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lockfile %s: %w", manifest.LockfilePath(), err)
	}
	if lock.Root != manifest.Name {
		return nil, fmt.Errorf("lockfile root %q does not match manifest name %q", lock.Root, manifest.Name)
	}
	return lock, nil
}

func resolveFlamingoHome() (string, error) {
	if home := strings.TrimSpace(os.Getenv("FLAMINGO_HOME")); home != "" {
		abs, err := filepath.Abs(home)
		if err != nil {
			return "", fmt.Errorf("resolve FLAMINGO_HOME %q: %w", home, err)
		}
		return abs, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(userHome, ".flamingo"), nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  flamingo run [-v] [-vars] [-strict] [file.fl [args...]]")
	fmt.Fprintln(os.Stderr, "  flamingo <file.fl> [args...]")
	fmt.Fprintln(os.Stderr, "  flamingo repl [-v] [-strict]")
	fmt.Fprintln(os.Stderr, "  flamingo deps install")
	fmt.Fprintln(os.Stderr, "  flamingo deps update [dependency ...]")
}
