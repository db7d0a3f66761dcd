package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestX25519KeyPair(t *testing.T) {
	t.Run("GenerateKeyPair", func(t *testing.T) {
		keyPair, err := GenerateX25519KeyPair()
		require.NoError(t, err)
		assert.NotNil(t, keyPair)
		assert.NotNil(t, keyPair.PublicKey())
		assert.NotNil(t, keyPair.PrivateKey())
	})

	t.Run("DeriveSharedSecret", func(t *testing.T) {
		a, err := GenerateX25519KeyPair()
		require.NoError(t, err)
		b, err := GenerateX25519KeyPair()
		require.NoError(t, err)

		aKey, ok := a.(*X25519KeyPair)
		require.True(t, ok)
		bKey, ok := b.(*X25519KeyPair)
		require.True(t, ok)

		s1, err := aKey.DeriveSharedSecret(bKey.PublicBytesKey())
		require.NoError(t, err)
		s2, err := bKey.DeriveSharedSecret(aKey.PublicBytesKey())
		require.NoError(t, err)

		assert.Equal(t, s1, s2)
		assert.Len(t, s1, 32)
	})

	t.Run("DeriveSharedSecretRejectsBadPeerKey", func(t *testing.T) {
		a, err := GenerateX25519KeyPair()
		require.NoError(t, err)
		aKey := a.(*X25519KeyPair)

		_, err = aKey.DeriveSharedSecret([]byte("too short"))
		assert.Error(t, err)
	})

	t.Run("SignVerifyUnsupported", func(t *testing.T) {
		a, err := GenerateX25519KeyPair()
		require.NoError(t, err)

		_, err = a.Sign([]byte("msg"))
		assert.Error(t, err)
		assert.Error(t, a.Verify([]byte("msg"), []byte("sig")))
	})
}
