package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileVault(t *testing.T) {
	dir := t.TempDir()
	vault, err := NewFileVault(dir)
	require.NoError(t, err)

	t.Run("StoreAndRetrieve", func(t *testing.T) {
		name := "identity"
		original := []byte("this is my secret key data")
		passphrase := "strong_passphrase_123"

		require.NoError(t, vault.Store(name, original, passphrase))

		info, err := os.Stat(filepath.Join(dir, name+".json"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		loaded, err := vault.Retrieve(name, passphrase)
		require.NoError(t, err)
		assert.Equal(t, original, loaded)
	})

	t.Run("InvalidPassphrase", func(t *testing.T) {
		name := "key2"
		require.NoError(t, vault.Store(name, []byte("another secret key"), "correct"))

		_, err := vault.Retrieve(name, "wrong")
		assert.Equal(t, ErrInvalidPassphrase, err)
	})

	t.Run("KeyNotFound", func(t *testing.T) {
		_, err := vault.Retrieve("nonexistent", "passphrase")
		assert.Equal(t, ErrKeyNotFound, err)
	})

	t.Run("InvalidName", func(t *testing.T) {
		assert.Equal(t, ErrInvalidName, vault.Store("", []byte("key"), "pass"))
		_, err := vault.Retrieve("", "pass")
		assert.Equal(t, ErrInvalidName, err)
	})

	t.Run("DeleteKey", func(t *testing.T) {
		name := "key3"
		require.NoError(t, vault.Store(name, []byte("to delete"), "pass"))
		assert.True(t, vault.Exists(name))

		require.NoError(t, vault.Delete(name))
		assert.False(t, vault.Exists(name))

		assert.Equal(t, ErrKeyNotFound, vault.Delete(name))
	})

	t.Run("ListKeys", func(t *testing.T) {
		dir := t.TempDir()
		v, err := NewFileVault(dir)
		require.NoError(t, err)

		names := []string{"a", "b", "c"}
		for _, n := range names {
			require.NoError(t, v.Store(n, []byte("data"), "pass"))
		}

		listed, err := v.List()
		require.NoError(t, err)
		assert.ElementsMatch(t, names, listed)
	})

	t.Run("OverwriteKey", func(t *testing.T) {
		name := "key5"
		require.NoError(t, vault.Store(name, []byte("original"), "pass"))
		require.NoError(t, vault.Store(name, []byte("updated"), "pass"))

		loaded, err := vault.Retrieve(name, "pass")
		require.NoError(t, err)
		assert.Equal(t, []byte("updated"), loaded)
	})
}
