package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockfileName)

	lock := NewLockfile("my-app", "flamingo test")
	lock.Put(&LockedPackage{
		Name:     "zeta",
		Source:   "path:/src/zeta",
		Checksum: "sha256:01",
		Dir:      "/src/zeta",
	})
	lock.Put(&LockedPackage{
		Name:     "alpha",
		Source:   "git+https://example.com/alpha.git",
		Ref:      "tag:v1.0.0",
		Revision: "0123456789abcdef0123456789abcdef01234567",
		Checksum: "sha256:02",
		Dir:      "/cache/alpha",
		Requires: []string{"zeta", "beta"},
	})
	require.NoError(t, WriteLockfile(lock, path))

	loaded, err := LoadLockfile(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Path)
	assert.Equal(t, "my_app", loaded.Root)
	assert.Equal(t, "flamingo test", loaded.Tool)
	assert.Equal(t, lock.Generated, loaded.Generated)
	require.Len(t, loaded.Packages, 2)
	assert.Equal(t, "alpha", loaded.Packages[0].Name)
	assert.Equal(t, []string{"beta", "zeta"}, loaded.Packages[0].Requires)
	assert.Equal(t, "tag:v1.0.0", loaded.Packages[0].Ref)
	assert.Equal(t, "zeta", loaded.Packages[1].Name)
	assert.Empty(t, loaded.Packages[1].Revision)
	assert.Equal(t, []string{"/cache/alpha", "/src/zeta"}, loaded.ImportPaths())
}

func TestLockfilePutReplacesByName(t *testing.T) {
	lock := NewLockfile("app", "")
	lock.Put(&LockedPackage{Name: "dep", Checksum: "old"})
	lock.Put(&LockedPackage{Name: "dep", Checksum: "new"})
	require.Len(t, lock.Packages, 1)
	assert.Equal(t, "new", lock.Find("dep").Checksum)
	assert.Nil(t, lock.Find("missing"))
}

func TestLockfilePrune(t *testing.T) {
	lock := NewLockfile("app", "")
	lock.Put(&LockedPackage{Name: "keep"})
	lock.Put(&LockedPackage{Name: "drop"})

	assert.True(t, lock.Prune(map[string]bool{"keep": true}))
	require.Len(t, lock.Packages, 1)
	assert.Equal(t, "keep", lock.Packages[0].Name)
	assert.False(t, lock.Prune(map[string]bool{"keep": true}))
}

func TestLoadLockfileMissing(t *testing.T) {
	_, err := LoadLockfile(filepath.Join(t.TempDir(), LockfileName))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadLockfileRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockfileName)
	require.NoError(t, os.WriteFile(path, []byte("root: app\nextra: 1\n"), 0o644))
	_, err := LoadLockfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lockfile: parse")
}

func TestWriteLockfileRequiresPath(t *testing.T) {
	err := WriteLockfile(NewLockfile("app", ""), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing path")
}
