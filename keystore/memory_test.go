package keystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	m := NewMemory()

	t.Run("StoreAndRetrieve", func(t *testing.T) {
		require.NoError(t, m.Store("k1", []byte("secret"), "pass"))
		got, err := m.Retrieve("k1", "pass")
		require.NoError(t, err)
		assert.Equal(t, []byte("secret"), got)
	})

	t.Run("KeyNotFound", func(t *testing.T) {
		_, err := m.Retrieve("missing", "pass")
		assert.Equal(t, ErrKeyNotFound, err)
	})

	t.Run("DeleteKey", func(t *testing.T) {
		require.NoError(t, m.Store("k2", []byte("secret"), "pass"))
		assert.True(t, m.Exists("k2"))
		require.NoError(t, m.Delete("k2"))
		assert.False(t, m.Exists("k2"))
	})

	t.Run("ListKeys", func(t *testing.T) {
		fresh := NewMemory()
		names := []string{"x", "y", "z"}
		for _, n := range names {
			require.NoError(t, fresh.Store(n, []byte("data"), "pass"))
		}
		listed, err := fresh.List()
		require.NoError(t, err)
		assert.ElementsMatch(t, names, listed)
	})
}
