package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/inobulles/flamingo/pkg/interpreter"
	"github.com/inobulles/flamingo/pkg/parser"
	"github.com/inobulles/flamingo/pkg/runtime"
)

const (
	promptMain  = "flamingo> "
	promptCont  = "......... "
	historyFile = "repl_history"
)

// lineReader is the part of liner.State the read loop needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
}

func runRepl(args []string) int {
	var flags runFlags
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	manifest, err := loadManifestFrom(".")
	if err != nil {
		manifest = nil
	}
	lock, err := loadLockfileForManifest(manifest)
	if err != nil {
		reportError("%v", err)
		return 1
	}

	interp, err := interpreter.New("<repl>", nil, interpreterOptions(manifest, lock, flags)...)
	if err != nil {
		reportError("%v", err)
		return 1
	}
	defer interp.Destroy()
	registerHostFunctions(interp, nil)
	if err := interp.Run(); err != nil {
		reportError("%v", err)
		return 1
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if home, err := resolveFlamingoHome(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}

	fmt.Fprintf(os.Stdout, "%s (type :quit to exit)\n", cliToolVersion)
	code := replLoop(ln, interp, os.Stdout, os.Stderr, ln.AppendHistory)

	if histPath != "" {
		if err := os.MkdirAll(filepath.Dir(histPath), 0o755); err == nil {
			if f, err := os.Create(histPath); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}
	}
	return code
}

// replLoop reads chunks until EOF or :quit, evaluating each against interp
// and echoing non-none results.
func replLoop(in lineReader, interp *interpreter.Interpreter, out, errOut io.Writer, remember func(string)) int {
	for {
		code, ok := readByParseProbe(in, promptMain, promptCont)
		if !ok {
			fmt.Fprintln(out)
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit", ":q":
				return 0
			case ":vars":
				printGlobals(out, interp)
			default:
				fmt.Fprintln(out, "unknown command. Type :quit to exit or :vars to list globals.")
			}
			continue
		}

		val, err := interp.Eval([]byte(code))
		if err != nil {
			errRed.Fprintln(errOut, err.Error())
			_ = interp.Err()
			continue
		}
		if val != nil {
			if val.Kind() != runtime.KindNone {
				fmt.Fprintln(out, interpreter.Stringify(val))
			}
			val.Decref()
		}
		if remember != nil {
			remember(strings.ReplaceAll(code, "\n", " "))
		}
	}
}

// readByParseProbe keeps prompting while the accumulated source only fails
// to parse because it is unfinished.
func readByParseProbe(in lineReader, prompt, cont string) (string, bool) {
	var b strings.Builder
	probe := parser.NewSourceParser()

	for {
		current := prompt
		if b.Len() > 0 {
			current = cont
		}
		line, err := in.Prompt(current)
		if errors.Is(err, io.EOF) {
			if b.Len() > 0 {
				return b.String(), true
			}
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		tree, perr := probe.Parse([]byte(src))
		if perr == nil {
			tree.Close()
			return src, true
		}
		if errors.Is(perr, parser.ErrIncomplete) {
			continue
		}
		return src, true
	}
}
