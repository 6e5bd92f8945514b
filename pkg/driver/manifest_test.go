package driver

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, contents string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadManifestYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, ManifestYAML, `
name: my-app
version: 1.2.0
entry: src/app.fl
import_paths:
  - lib
  - /opt/flamingo
import_mode: Shared
strict_param_types: true
max_call_depth: 256
log_level: debug
dependencies:
  strings:
    git: https://example.com/strings.git
    tag: v1.0.0
  local-util:
    path: ../util
`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, path, manifest.Path)
	assert.Equal(t, "my_app", manifest.Name)
	assert.Equal(t, "1.2.0", manifest.Version)
	assert.Equal(t, filepath.Join(dir, "src", "app.fl"), manifest.EntryPath())
	assert.Equal(t, []string{filepath.Join(dir, "lib"), "/opt/flamingo"}, manifest.ResolvedImportPaths())
	assert.Equal(t, "shared", manifest.ImportMode)
	assert.True(t, manifest.StrictParamTypes)
	assert.Equal(t, 256, manifest.MaxCallDepth)
	assert.Equal(t, slog.LevelDebug, manifest.Level())
	assert.Equal(t, filepath.Join(dir, LockfileName), manifest.LockfilePath())

	assert.Equal(t, []string{"local_util", "strings"}, manifest.DependencyNames())
	assert.Equal(t, &DependencySpec{Git: "https://example.com/strings.git", Tag: "v1.0.0"}, manifest.Dependencies["strings"])
	assert.Equal(t, &DependencySpec{Path: "../util"}, manifest.Dependencies["local_util"])
}

func TestLoadManifestTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, ManifestTOML, `
name = "tomlapp"
import_paths = ["vendor"]
log_level = "warn"

[dependencies.helpers]
git = "https://example.com/helpers.git"
branch = "main"
`)

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "tomlapp", manifest.Name)
	assert.Equal(t, filepath.Join(dir, defaultEntry), manifest.EntryPath())
	assert.Equal(t, []string{filepath.Join(dir, "vendor")}, manifest.ResolvedImportPaths())
	assert.Equal(t, slog.LevelWarn, manifest.Level())
	assert.Equal(t, "main", manifest.Dependencies["helpers"].Branch)
}

func TestLoadManifestRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadManifest(writeManifest(t, dir, ManifestYAML, "name: app\ntargets: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field targets not found")

	_, err = LoadManifest(writeManifest(t, dir, ManifestTOML, "name = \"app\"\nbogus = 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fields bogus")
}

func TestLoadManifestEmpty(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadManifest(writeManifest(t, dir, ManifestYAML, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestManifestValidation(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, ManifestYAML, `
version: 0.1.0
import_mode: global
log_level: loud
max_call_depth: -1
import_paths: [""]
dependencies:
  neither: {}
  both:
    git: https://example.com/x.git
    path: ./x
    rev: abc
  unpinned:
    git: https://example.com/y.git
  twice:
    git: https://example.com/z.git
    tag: v1
    branch: main
  pinnedpath:
    path: ./p
    tag: v1
`)

	_, err := LoadManifest(path)
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.ElementsMatch(t, []string{
		"name must be provided",
		`import_mode must be isolated or shared, got "global"`,
		`log_level "loud" is not one of debug, info, warn, error`,
		"max_call_depth must not be negative",
		"import_paths[0] must be a non-empty string",
		"dependencies.both: cannot specify both git and path",
		"dependencies.both: path dependencies cannot pin rev, tag or branch",
		"dependencies.neither: must specify git or path",
		"dependencies.pinnedpath: path dependencies cannot pin rev, tag or branch",
		"dependencies.twice: git dependencies require exactly one of rev, tag or branch",
		"dependencies.unpinned: git dependencies require exactly one of rev, tag or branch",
	}, verr.Issues)
	assert.Contains(t, err.Error(), "manifest validation failed:\n- ")
}

func TestFindManifest(t *testing.T) {
	root := t.TempDir()
	want := writeManifest(t, root, ManifestYAML, "name: test\n")
	child := filepath.Join(root, "src", "app")
	require.NoError(t, os.MkdirAll(child, 0o755))

	found, err := FindManifest(child)
	require.NoError(t, err)
	assert.Equal(t, want, found)

	entry := filepath.Join(child, "main.fl")
	require.NoError(t, os.WriteFile(entry, nil, 0o644))
	found, err = FindManifest(entry)
	require.NoError(t, err)
	assert.Equal(t, want, found)
}

func TestFindManifestPrefersYAML(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, ManifestTOML, "name = \"t\"\n")
	found, err := FindManifest(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ManifestTOML), found)

	yml := writeManifest(t, root, ManifestYAML, "name: y\n")
	found, err = FindManifest(root)
	require.NoError(t, err)
	assert.Equal(t, yml, found)
}

func TestFindManifestNotFound(t *testing.T) {
	_, err := FindManifest(t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrManifestNotFound)
}
