package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/inobulles/flamingo/pkg/driver"
)

// dependencyInstaller resolves the manifest's dependency graph into lockfile
// entries. Git dependencies are checked out under the cache directory; path
// dependencies are linked in place.
type dependencyInstaller struct {
	manifest  *driver.Manifest
	cacheDir  string
	previous  map[string]*driver.LockedPackage
	refresh   map[string]bool
	all       bool
	logs      []string
	resolved  map[string]*driver.LockedPackage
	resolving map[string]bool
}

func newDependencyInstaller(manifest *driver.Manifest, cacheDir string) *dependencyInstaller {
	return &dependencyInstaller{
		manifest: manifest,
		cacheDir: cacheDir,
		refresh:  make(map[string]bool),
	}
}

// Refresh makes the next Install re-resolve the named dependencies instead of
// reusing their locked revisions. No names means every dependency.
func (d *dependencyInstaller) Refresh(names ...string) {
	if len(names) == 0 {
		d.all = true
		return
	}
	for _, name := range names {
		d.refresh[name] = true
	}
}

// Install resolves every dependency and rewrites lock.Packages. It reports
// whether the lockfile contents changed and a log line per package.
func (d *dependencyInstaller) Install(lock *driver.Lockfile) (bool, []string, error) {
	d.logs = nil
	d.resolved = make(map[string]*driver.LockedPackage)
	d.resolving = make(map[string]bool)
	d.previous = make(map[string]*driver.LockedPackage, len(lock.Packages))
	for _, pkg := range lock.Packages {
		d.previous[pkg.Name] = pkg
	}

	for _, name := range d.manifest.DependencyNames() {
		if err := d.installDependency(name, d.manifest.Dependencies[name], d.manifest.Dir()); err != nil {
			return false, d.logs, err
		}
	}

	keep := make(map[string]bool, len(d.resolved))
	changed := false
	for _, name := range slices.Sorted(maps.Keys(d.resolved)) {
		pkg := d.resolved[name]
		keep[name] = true
		if current := lock.Find(name); current == nil || !lockedPackageEqual(current, pkg) {
			changed = true
		}
		lock.Put(pkg)
	}
	if lock.Prune(keep) {
		changed = true
	}
	return changed, d.logs, nil
}

func (d *dependencyInstaller) installDependency(name string, spec *driver.DependencySpec, base string) error {
	if spec == nil {
		return fmt.Errorf("dependency %q has no descriptor", name)
	}
	if d.resolving[name] {
		return fmt.Errorf("dependency cycle detected at %s", name)
	}

	source, err := dependencySource(spec, base)
	if err != nil {
		return fmt.Errorf("dependency %q: %w", name, err)
	}
	if existing, ok := d.resolved[name]; ok {
		if existing.Source != source {
			return fmt.Errorf("dependency %q requested from both %s and %s", name, existing.Source, source)
		}
		return nil
	}

	d.resolving[name] = true
	defer delete(d.resolving, name)

	var pkg *driver.LockedPackage
	if spec.Path != "" {
		pkg, err = d.resolvePath(name, source)
	} else {
		pkg, err = d.resolveGit(name, source, spec)
	}
	if err != nil {
		return err
	}

	child, err := manifestIn(pkg.Dir)
	if err != nil {
		return fmt.Errorf("dependency %q: %w", name, err)
	}
	if child != nil {
		for _, childName := range child.DependencyNames() {
			if err := d.installDependency(childName, child.Dependencies[childName], child.Dir()); err != nil {
				return err
			}
			pkg.Requires = append(pkg.Requires, childName)
		}
	}

	d.resolved[name] = pkg
	return nil
}

func (d *dependencyInstaller) resolvePath(name, source string) (*driver.LockedPackage, error) {
	dir := strings.TrimPrefix(source, "path:")
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: stat %s: %w", name, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dependency %q: expected directory at %s", name, dir)
	}
	checksum, err := dirChecksum(dir)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: checksum %s: %w", name, dir, err)
	}
	d.logs = append(d.logs, fmt.Sprintf("linked %s (%s)", name, dir))
	return &driver.LockedPackage{
		Name:     name,
		Source:   source,
		Checksum: checksum,
		Dir:      dir,
	}, nil
}

func (d *dependencyInstaller) resolveGit(name, source string, spec *driver.DependencySpec) (*driver.LockedPackage, error) {
	url := strings.TrimPrefix(source, "git+")
	revision, ref := gitRevisionFromSpec(spec)

	if prev, ok := d.previous[name]; ok && !d.all && !d.refresh[name] &&
		prev.Source == source && prev.Ref == ref && prev.Revision != "" {
		revision = plumbing.Revision(prev.Revision)
	}

	baseDir := filepath.Join(d.cacheDir, "pkg", "src", name)
	dir, commit, err := ensureGitCheckout(baseDir, url, revision)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: %w", name, err)
	}
	checksum, err := dirChecksum(dir)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: checksum %s: %w", name, dir, err)
	}
	d.logs = append(d.logs, fmt.Sprintf("fetched %s %s (%s)", name, ref, shortHash(commit)))
	return &driver.LockedPackage{
		Name:     name,
		Source:   source,
		Ref:      ref,
		Revision: commit,
		Checksum: checksum,
		Dir:      dir,
	}, nil
}

func dependencySource(spec *driver.DependencySpec, base string) (string, error) {
	if spec.Path != "" {
		dir := spec.Path
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, filepath.FromSlash(dir))
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolve path %q: %w", spec.Path, err)
		}
		return "path:" + abs, nil
	}
	if spec.Git != "" {
		return "git+" + spec.Git, nil
	}
	return "", errors.New("unsupported descriptor")
}

// manifestIn loads the manifest sitting directly in dir, if any.
func manifestIn(dir string) (*driver.Manifest, error) {
	for _, name := range []string{driver.ManifestYAML, driver.ManifestTOML} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return driver.LoadManifest(path)
	}
	return nil, nil
}

func ensureGitCheckout(baseDir, url string, revision plumbing.Revision) (string, string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", "", err
	}

	if plumbing.IsHash(string(revision)) {
		existing := filepath.Join(baseDir, string(revision))
		if _, err := os.Stat(existing); err == nil {
			return existing, string(revision), nil
		}
	}

	tmpDir, err := os.MkdirTemp(baseDir, "git-fetch-*")
	if err != nil {
		return "", "", err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", "", err
	}

	repo, err := git.PlainClone(tmpDir, false, &git.CloneOptions{URL: url})
	if err != nil {
		cleanup()
		return "", "", fmt.Errorf("git clone %s: %w", url, err)
	}

	hash, err := repo.ResolveRevision(revision)
	if err != nil && strings.HasPrefix(string(revision), "refs/heads/") {
		remote := "refs/remotes/origin/" + strings.TrimPrefix(string(revision), "refs/heads/")
		hash, err = repo.ResolveRevision(plumbing.Revision(remote))
	}
	if err != nil {
		cleanup()
		return "", "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}

	targetDir := filepath.Join(baseDir, hash.String())
	if _, err := os.Stat(targetDir); err == nil {
		cleanup()
		return targetDir, hash.String(), nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		cleanup()
		return "", "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		cleanup()
		return "", "", fmt.Errorf("git checkout %s: %w", revision, err)
	}
	if err := os.Rename(tmpDir, targetDir); err != nil {
		cleanup()
		return "", "", err
	}
	return targetDir, hash.String(), nil
}

// gitRevisionFromSpec maps the manifest pin to a revision go-git can resolve
// and the descriptor recorded in the lockfile.
func gitRevisionFromSpec(spec *driver.DependencySpec) (plumbing.Revision, string) {
	switch {
	case spec.Rev != "":
		return plumbing.Revision(spec.Rev), "rev:" + spec.Rev
	case spec.Tag != "":
		return plumbing.Revision("refs/tags/" + spec.Tag), "tag:" + spec.Tag
	default:
		return plumbing.Revision("refs/heads/" + spec.Branch), "branch:" + spec.Branch
	}
}

// dirChecksum hashes file names and contents under path, skipping VCS
// metadata.
func dirChecksum(path string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.ToSlash(rel)))
		h.Write(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func lockedPackageEqual(a, b *driver.LockedPackage) bool {
	return a.Name == b.Name &&
		a.Source == b.Source &&
		a.Ref == b.Ref &&
		a.Revision == b.Revision &&
		a.Checksum == b.Checksum &&
		a.Dir == b.Dir &&
		slices.Equal(a.Requires, b.Requires)
}

func shortHash(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
