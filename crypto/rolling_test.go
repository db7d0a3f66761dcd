package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingChecksumMatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, again and again")
	const blockSize = 8

	rc := NewRollingChecksum(data[:blockSize])
	require.Equal(t, RollingChecksumOf(data[:blockSize]), rc.Value())

	for i := blockSize; i < len(data); i++ {
		got := rc.Roll(data[i-blockSize], data[i])
		want := RollingChecksumOf(data[i-blockSize+1 : i+1])
		assert.Equal(t, want, got, "mismatch at offset %d", i)
	}
}

func TestRollingChecksumDiffersOnChange(t *testing.T) {
	a := []byte("aaaaaaaa")
	b := []byte("aaaaaaab")
	assert.NotEqual(t, RollingChecksumOf(a), RollingChecksumOf(b))
}
