// Package driver loads flamingo project manifests and lockfiles and installs
// the dependencies they describe.
package driver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	ManifestYAML = "flamingo.yml"
	ManifestTOML = "flamingo.toml"
	LockfileName = "flamingo.lock"

	defaultEntry = "main.fl"
)

var ErrManifestNotFound = errors.New("manifest: flamingo.yml not found")

// Manifest represents the parsed contents of flamingo.yml or flamingo.toml.
type Manifest struct {
	Path             string
	Name             string
	Version          string
	Entry            string
	ImportPaths      []string
	ImportMode       string
	StrictParamTypes bool
	MaxCallDepth     int
	LogLevel         string
	Dependencies     map[string]*DependencySpec
}

// DependencySpec describes where a dependency comes from. Exactly one of Git
// and Path is set; git dependencies pin one of Rev, Tag or Branch.
type DependencySpec struct {
	Git    string `yaml:"git" toml:"git"`
	Rev    string `yaml:"rev" toml:"rev"`
	Tag    string `yaml:"tag" toml:"tag"`
	Branch string `yaml:"branch" toml:"branch"`
	Path   string `yaml:"path" toml:"path"`
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

type manifestFile struct {
	Name             string                     `yaml:"name" toml:"name"`
	Version          string                     `yaml:"version" toml:"version"`
	Entry            string                     `yaml:"entry" toml:"entry"`
	ImportPaths      []string                   `yaml:"import_paths" toml:"import_paths"`
	ImportMode       string                     `yaml:"import_mode" toml:"import_mode"`
	StrictParamTypes bool                       `yaml:"strict_param_types" toml:"strict_param_types"`
	MaxCallDepth     int                        `yaml:"max_call_depth" toml:"max_call_depth"`
	LogLevel         string                     `yaml:"log_level" toml:"log_level"`
	Dependencies     map[string]*DependencySpec `yaml:"dependencies" toml:"dependencies"`
}

// LoadManifest parses a manifest from disk. The format follows the file
// extension; anything other than .toml is read as YAML.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}

	var raw manifestFile
	if filepath.Ext(absPath) == ".toml" {
		err = decodeTOML(absPath, &raw)
	} else {
		err = decodeYAML(absPath, &raw)
	}
	if err != nil {
		return nil, err
	}

	manifest := raw.toManifest(absPath)
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func decodeYAML(path string, raw *manifestFile) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(raw); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("manifest: %s is empty", path)
		}
		return fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return nil
}

func decodeTOML(path string, raw *manifestFile) error {
	meta, err := toml.DecodeFile(path, raw)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("manifest: open %s: %w", path, err)
		}
		return fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return fmt.Errorf("manifest: parse %s: unknown fields %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// FindManifest walks from start up to the filesystem root looking for a
// manifest. YAML wins over TOML within the same directory.
func FindManifest(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve start directory %q: %w", start, err)
	}
	if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	origin := dir
	for {
		for _, name := range []string{ManifestYAML, ManifestTOML} {
			candidate := filepath.Join(dir, name)
			info, err := os.Stat(candidate)
			if err == nil && !info.IsDir() {
				return candidate, nil
			}
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no manifest found from %s upwards: %w", origin, ErrManifestNotFound)
		}
		dir = parent
	}
}

// Dir is the project root the manifest lives in.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// EntryPath resolves the entry file against the project root.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Entry)
}

// LockfilePath is where the lockfile for this manifest lives.
func (m *Manifest) LockfilePath() string {
	return filepath.Join(m.Dir(), LockfileName)
}

// ResolvedImportPaths returns the import search paths as absolute paths.
func (m *Manifest) ResolvedImportPaths() []string {
	out := make([]string, 0, len(m.ImportPaths))
	for _, p := range m.ImportPaths {
		out = append(out, m.resolve(p))
	}
	return out
}

// Level maps log_level onto a slog level. Unset means info.
func (m *Manifest) Level() slog.Level {
	switch m.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DependencyNames lists dependency names in a stable order.
func (m *Manifest) DependencyNames() []string {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(m.Dir(), filepath.FromSlash(p))
}

func (m *Manifest) validate() error {
	var errs ValidationError
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	switch m.ImportMode {
	case "", "isolated", "shared":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("import_mode must be isolated or shared, got %q", m.ImportMode))
	}
	switch m.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs.Issues = append(errs.Issues, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", m.LogLevel))
	}
	if m.MaxCallDepth < 0 {
		errs.Issues = append(errs.Issues, "max_call_depth must not be negative")
	}
	for i, p := range m.ImportPaths {
		if p == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("import_paths[%d] must be a non-empty string", i))
		}
	}
	for _, name := range m.DependencyNames() {
		for _, issue := range m.Dependencies[name].validate() {
			errs.Issues = append(errs.Issues, fmt.Sprintf("dependencies.%s: %s", name, issue))
		}
	}

	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

func (d *DependencySpec) validate() []string {
	var errs []string
	if d == nil {
		return []string{"must specify git or path"}
	}
	switch {
	case d.Git == "" && d.Path == "":
		errs = append(errs, "must specify git or path")
	case d.Git != "" && d.Path != "":
		errs = append(errs, "cannot specify both git and path")
	}

	pins := 0
	for _, pin := range []string{d.Rev, d.Tag, d.Branch} {
		if pin != "" {
			pins++
		}
	}
	if d.Path != "" && pins > 0 {
		errs = append(errs, "path dependencies cannot pin rev, tag or branch")
	}
	if d.Git != "" && pins != 1 {
		errs = append(errs, "git dependencies require exactly one of rev, tag or branch")
	}
	return errs
}

func (mf manifestFile) toManifest(path string) *Manifest {
	result := &Manifest{
		Path:             path,
		Name:             sanitizeSegment(mf.Name),
		Version:          strings.TrimSpace(mf.Version),
		Entry:            strings.TrimSpace(mf.Entry),
		ImportMode:       strings.ToLower(strings.TrimSpace(mf.ImportMode)),
		StrictParamTypes: mf.StrictParamTypes,
		MaxCallDepth:     mf.MaxCallDepth,
		LogLevel:         strings.ToLower(strings.TrimSpace(mf.LogLevel)),
		Dependencies:     make(map[string]*DependencySpec, len(mf.Dependencies)),
	}
	if result.Entry == "" {
		result.Entry = defaultEntry
	}
	for _, p := range mf.ImportPaths {
		result.ImportPaths = append(result.ImportPaths, strings.TrimSpace(p))
	}
	for name, dep := range mf.Dependencies {
		var spec *DependencySpec
		if dep != nil {
			spec = &DependencySpec{
				Git:    strings.TrimSpace(dep.Git),
				Rev:    strings.TrimSpace(dep.Rev),
				Tag:    strings.TrimSpace(dep.Tag),
				Branch: strings.TrimSpace(dep.Branch),
				Path:   strings.TrimSpace(dep.Path),
			}
		}
		result.Dependencies[sanitizeSegment(name)] = spec
	}
	return result
}

// PackageName normalises a project or dependency name the way manifests and
// lockfiles store it.
func PackageName(name string) string {
	return sanitizeSegment(name)
}

// sanitizeSegment normalises a package name so it can be used as an import
// path component.
func sanitizeSegment(seg string) string {
	seg = strings.TrimSpace(seg)
	return strings.ReplaceAll(seg, "-", "_")
}
