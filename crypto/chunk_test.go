package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenChunkRoundTrip(t *testing.T) {
	key := DerivePasswordKey("passphrase", []byte("0123456789abcdef"))
	plaintext := []byte("some folder contents that fit in one chunk")

	sealed, err := SealChunk(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	got, err := OpenChunk(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestOpenChunkRejectsTamperedCiphertext(t *testing.T) {
	key := DerivePasswordKey("passphrase", []byte("0123456789abcdef"))
	sealed, err := SealChunk(key, []byte("payload"))
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = OpenChunk(key, tampered)
	assert.Error(t, err)
}

func TestOpenChunkRejectsWrongKey(t *testing.T) {
	key1 := DerivePasswordKey("passphrase-one", []byte("0123456789abcdef"))
	key2 := DerivePasswordKey("passphrase-two", []byte("0123456789abcdef"))

	sealed, err := SealChunk(key1, []byte("payload"))
	require.NoError(t, err)

	_, err = OpenChunk(key2, sealed)
	assert.Error(t, err)
}

func TestSessionNonceVariesByDirectionAndCounter(t *testing.T) {
	n1 := SessionNonce(0x01, 1)
	n2 := SessionNonce(0x02, 1)
	n3 := SessionNonce(0x01, 2)

	assert.Len(t, n1, 12)
	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, n1, n3)
}
