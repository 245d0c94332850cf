package filex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandHome("~/.wakevault/key.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".wakevault", "key.json"), got)

	got, err = ExpandHome("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	for _, p := range []string{"/etc/x", "rel/path", "~user/x", ""} {
		got, err := ExpandHome(p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestEnsureParentDir(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "a", "b", "book.db")

	require.NoError(t, EnsureParentDir(path))
	fi, err := os.Stat(filepath.Join(tmp, "a", "b"))
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	// idempotent
	require.NoError(t, EnsureParentDir(path))
}

func TestEnsureParentDir_Error(t *testing.T) {
	tmp := t.TempDir()
	blocker := filepath.Join(tmp, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	require.Error(t, EnsureParentDir(filepath.Join(blocker, "x", "y")))
}
