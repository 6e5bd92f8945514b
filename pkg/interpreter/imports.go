package interpreter

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/inobulles/flamingo/pkg/syntax"
)

const sourceExt = ".fl"

func (i *Interpreter) evaluateImport(f *frame, node syntax.Node) error {
	pathNode := node.ChildByFieldName("path")
	if pathNode == nil {
		return i.errorf(f, node, ErrStructural, "import has no path")
	}
	var bits []string
	for _, ident := range syntax.NamedChildren(pathNode) {
		bits = append(bits, f.unit.Text(ident))
	}
	rel := strings.Join(bits, "/")

	if node.ChildByFieldName("relative") == nil {
		return i.errorf(f, node, ErrImport, "global imports are not supported yet (trying to import '%s')", rel)
	}
	rel += sourceExt

	resolved, src, err := i.findImport(f, rel)
	if err != nil {
		return i.importFailure(f, node, rel, err)
	}
	if err := i.checkImportCycle(resolved); err != nil {
		return i.locate(f, node, err)
	}

	i.logger.Debug("importing", "path", resolved, "shared", i.opts.importMode == ImportShared)

	o := i.opts
	o.path = resolved
	o.importPaths = slices.Clone(i.opts.importPaths)
	nested, err := newInterpreter(resolved, src, o, i)
	if err != nil {
		return i.importFailure(f, node, rel, err)
	}
	defer nested.Destroy()

	if i.opts.importMode == ImportShared {
		nested.InheritEnvironment(f.env)
		// Callables declared by the import keep pointing into its tree.
		defer func() {
			i.trees = append(i.trees, nested.trees...)
			nested.trees = nil
		}()
	}
	if err := nested.Run(); err != nil {
		return i.importFailure(f, node, rel, err)
	}
	return nil
}

// findImport looks rel up next to the importing unit first, then along the
// search paths.
func (i *Interpreter) findImport(f *frame, rel string) (string, []byte, error) {
	dirs := append([]string{filepath.Dir(f.unit.Path)}, i.opts.importPaths...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, filepath.FromSlash(rel))
		src, err := i.opts.loader(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		return candidate, src, nil
	}
	return "", nil, fmt.Errorf("not found in %s", strings.Join(dirs, ", "))
}

func (i *Interpreter) checkImportCycle(resolved string) error {
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil
	}
	start := slices.Index(i.importChain, abs)
	if start < 0 {
		return nil
	}
	var names []string
	for _, p := range i.importChain[start:] {
		names = append(names, filepath.Base(p))
	}
	names = append(names, filepath.Base(abs))
	return &Error{Kind: ErrImport, Msg: "import cycle detected: " + strings.Join(names, " -> ")}
}

func (i *Interpreter) importFailure(f *frame, node syntax.Node, rel string, err error) error {
	return i.locate(f, node, &Error{
		Kind:  ErrImport,
		Msg:   fmt.Sprintf("failed to import '%s': %s", rel, err),
		cause: err,
	})
}
