package driver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Lockfile models the contents of flamingo.lock.
type Lockfile struct {
	Path      string
	Root      string
	Generated string
	Tool      string
	Packages  []*LockedPackage
}

// LockedPackage pins one installed dependency. Git packages record the commit
// they resolved to; path packages record the directory they were copied from.
type LockedPackage struct {
	Name     string
	Source   string
	Ref      string
	Revision string
	Checksum string
	Dir      string
	Requires []string
}

// NewLockfile constructs an empty lockfile for the named project.
func NewLockfile(root, tool string) *Lockfile {
	return &Lockfile{
		Root:      sanitizeSegment(root),
		Generated: time.Now().UTC().Format(time.RFC3339),
		Tool:      strings.TrimSpace(tool),
		Packages:  []*LockedPackage{},
	}
}

// LoadLockfile parses flamingo.lock from disk.
func LoadLockfile(path string) (*Lockfile, error) {
	if path == "" {
		return nil, fmt.Errorf("lockfile: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	var raw lockfileDisk
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("lockfile: parse %s: %w", abs, err)
	}

	lock := raw.toLockfile()
	lock.Path = abs
	return lock, nil
}

// WriteLockfile writes the lockfile to path, or to lock.Path when path is
// empty.
func WriteLockfile(lock *Lockfile, path string) error {
	if lock == nil {
		return fmt.Errorf("lockfile: nil lockfile")
	}
	if path == "" {
		path = lock.Path
	}
	if path == "" {
		return fmt.Errorf("lockfile: missing path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}
	if lock.Generated == "" {
		lock.Generated = time.Now().UTC().Format(time.RFC3339)
	}
	lock.Path = abs
	lock.normalize()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(lock.toDisk()); err != nil {
		return fmt.Errorf("lockfile: marshal %s: %w", abs, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("lockfile: encoder close: %w", err)
	}
	if err := os.WriteFile(abs, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("lockfile: write %s: %w", abs, err)
	}
	return nil
}

// Find returns the locked package with the given name.
func (l *Lockfile) Find(name string) *LockedPackage {
	if l == nil {
		return nil
	}
	name = sanitizeSegment(name)
	for _, pkg := range l.Packages {
		if pkg != nil && pkg.Name == name {
			return pkg
		}
	}
	return nil
}

// Put replaces or inserts a package entry by name.
func (l *Lockfile) Put(pkg *LockedPackage) {
	for idx, existing := range l.Packages {
		if existing != nil && existing.Name == pkg.Name {
			l.Packages[idx] = pkg
			return
		}
	}
	l.Packages = append(l.Packages, pkg)
}

// Prune drops packages that are not in keep and reports whether anything was
// removed.
func (l *Lockfile) Prune(keep map[string]bool) bool {
	kept := l.Packages[:0]
	for _, pkg := range l.Packages {
		if pkg != nil && keep[pkg.Name] {
			kept = append(kept, pkg)
		}
	}
	removed := len(kept) != len(l.Packages)
	l.Packages = kept
	return removed
}

// ImportPaths lists the directory of every locked package, which is where the
// interpreter looks for dependency sources.
func (l *Lockfile) ImportPaths() []string {
	if l == nil {
		return nil
	}
	dirs := make([]string, 0, len(l.Packages))
	for _, pkg := range l.Packages {
		if pkg != nil && pkg.Dir != "" {
			dirs = append(dirs, pkg.Dir)
		}
	}
	return dirs
}

func (l *Lockfile) normalize() {
	l.Root = sanitizeSegment(l.Root)
	l.Tool = strings.TrimSpace(l.Tool)
	sort.SliceStable(l.Packages, func(i, j int) bool {
		return l.Packages[i].Name < l.Packages[j].Name
	})
	for _, pkg := range l.Packages {
		pkg.Name = sanitizeSegment(pkg.Name)
		pkg.Source = strings.TrimSpace(pkg.Source)
		pkg.Ref = strings.TrimSpace(pkg.Ref)
		pkg.Revision = strings.TrimSpace(pkg.Revision)
		pkg.Checksum = strings.TrimSpace(pkg.Checksum)
		for k := range pkg.Requires {
			pkg.Requires[k] = sanitizeSegment(pkg.Requires[k])
		}
		sort.Strings(pkg.Requires)
	}
}

type lockfileDisk struct {
	Root      string            `yaml:"root"`
	Generated string            `yaml:"generated"`
	Tool      string            `yaml:"tool"`
	Packages  []lockfilePackage `yaml:"packages"`
}

type lockfilePackage struct {
	Name     string   `yaml:"name"`
	Source   string   `yaml:"source"`
	Ref      string   `yaml:"ref,omitempty"`
	Revision string   `yaml:"revision,omitempty"`
	Checksum string   `yaml:"checksum"`
	Dir      string   `yaml:"dir"`
	Requires []string `yaml:"requires,omitempty"`
}

func (l *Lockfile) toDisk() lockfileDisk {
	pkgs := make([]lockfilePackage, 0, len(l.Packages))
	for _, pkg := range l.Packages {
		pkgs = append(pkgs, lockfilePackage{
			Name:     pkg.Name,
			Source:   pkg.Source,
			Ref:      pkg.Ref,
			Revision: pkg.Revision,
			Checksum: pkg.Checksum,
			Dir:      pkg.Dir,
			Requires: pkg.Requires,
		})
	}
	return lockfileDisk{
		Root:      l.Root,
		Generated: l.Generated,
		Tool:      l.Tool,
		Packages:  pkgs,
	}
}

func (d lockfileDisk) toLockfile() *Lockfile {
	lock := &Lockfile{
		Root:      d.Root,
		Generated: strings.TrimSpace(d.Generated),
		Tool:      d.Tool,
		Packages:  make([]*LockedPackage, 0, len(d.Packages)),
	}
	for _, pkg := range d.Packages {
		lock.Packages = append(lock.Packages, &LockedPackage{
			Name:     pkg.Name,
			Source:   pkg.Source,
			Ref:      pkg.Ref,
			Revision: pkg.Revision,
			Checksum: pkg.Checksum,
			Dir:      pkg.Dir,
			Requires: append([]string(nil), pkg.Requires...),
		})
	}
	lock.normalize()
	return lock
}
