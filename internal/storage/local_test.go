package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndRemove(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	name := store.StoredName("report.pdf")

	require.NoError(t, store.Save(name, strings.NewReader("contents")))

	data, err := os.ReadFile(filepath.Join(store.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, "contents", string(data))

	require.NoError(t, store.Remove(name))

	_, err = os.Stat(filepath.Join(store.Dir(), name))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveMissingFileIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Remove("never-existed.bin"))
}

func TestStoredNameIsCollisionResistant(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		name := store.StoredName("photo.jpg")
		assert.False(t, seen[name])
		seen[name] = true
	}
}

func TestStoredNameSanitizesOriginal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	name := store.StoredName("../../etc/pass wd?.txt")

	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, "..")
	assert.NotContains(t, name, " ")
	assert.True(t, strings.HasSuffix(name, "pass_wd_.txt"))
}
