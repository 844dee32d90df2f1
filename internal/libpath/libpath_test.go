package libpath

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

func libpathConfig() config.LibpathConfig {
	return config.LibpathConfig{
		OS:       "linux",
		Variable: "LD_LIBRARY_PATH",
		Patterns: []string{"target/debug/build/*/out"},
	}
}

func makeOutDir(t *testing.T, root string, crate string) string {
	t.Helper()
	dir := filepath.Join(root, "target", "debug", "build", crate, "out")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	return dir
}

func TestAugmentPrependsDiscoveredDirs(t *testing.T) {
	root := t.TempDir()
	out := makeOutDir(t, root, "onig_sys-abc123")

	env := map[string]string{"LD_LIBRARY_PATH": "/usr/lib"}
	dirs := Augment(env, "linux", root, libpathConfig())

	require.Len(t, dirs, 1)
	assert.Equal(t, out, dirs[0])

	parts := strings.Split(env["LD_LIBRARY_PATH"], string(os.PathListSeparator))
	require.Len(t, parts, 2)
	assert.Equal(t, out, parts[0], "discovered directory must be prepended")
	assert.Equal(t, "/usr/lib", parts[1])
}

func TestAugmentSkipsOtherOS(t *testing.T) {
	root := t.TempDir()
	makeOutDir(t, root, "onig_sys-abc123")

	env := map[string]string{}
	dirs := Augment(env, "osx", root, libpathConfig())

	assert.Nil(t, dirs)
	assert.NotContains(t, env, "LD_LIBRARY_PATH")
}

func TestAugmentNoMatchesIsNoop(t *testing.T) {
	env := map[string]string{"LD_LIBRARY_PATH": "/usr/lib"}
	dirs := Augment(env, "linux", t.TempDir(), libpathConfig())

	assert.Empty(t, dirs)
	assert.Equal(t, "/usr/lib", env["LD_LIBRARY_PATH"], "zero matches must leave the path untouched")
}

func TestAugmentScopedToGivenEnv(t *testing.T) {
	root := t.TempDir()
	makeOutDir(t, root, "onig_sys-abc123")

	before := os.Getenv("LD_LIBRARY_PATH")
	env := map[string]string{}
	Augment(env, "linux", root, libpathConfig())

	assert.Equal(t, before, os.Getenv("LD_LIBRARY_PATH"), "process environment must not change")
	assert.NotEmpty(t, env["LD_LIBRARY_PATH"])
}

func TestDiscoverSortsAndFiltersFiles(t *testing.T) {
	root := t.TempDir()
	b := makeOutDir(t, root, "bbb")
	a := makeOutDir(t, root, "aaa")
	// A plain file matching the pattern is ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target", "debug", "build", "ccc"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "debug", "build", "ccc", "out"), []byte("x"), 0o644))

	dirs := Discover(root, []string{"target/debug/build/*/out"})
	assert.Equal(t, []string{a, b}, dirs)
}
