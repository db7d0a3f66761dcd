// SPDX-License-Identifier: LGPL-3.0-or-later

package delta

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/nordicnode/swarm/crypto"
	"github.com/stretchr/testify/require"
)

func mustSign(t *testing.T, data []byte) *SignatureIndex {
	t.Helper()
	sigs, err := Sign(bytes.NewReader(data))
	require.NoError(t, err)
	return BuildIndex(sigs)
}

func TestRoundTripIdenticalFiles(t *testing.T) {
	base := make([]byte, BlockSize*5+100)
	rand.New(rand.NewSource(1)).Read(base)

	idx := mustSign(t, base)
	instructions := Match(base, idx)

	var totalLen int
	for _, instr := range instructions {
		if instr.Kind == KindCopy {
			totalLen += instr.Length
		} else {
			totalLen += len(instr.Bytes)
		}
	}
	require.Equal(t, len(base), totalLen)

	out, err := Reconstruct(bytes.NewReader(base), instructions, crypto.HashBytes(base))
	require.NoError(t, err)
	require.Equal(t, base, out)
}

func TestRoundTripWithSingleByteChange(t *testing.T) {
	base := make([]byte, BlockSize*4)
	rand.New(rand.NewSource(2)).Read(base)

	target := make([]byte, len(base))
	copy(target, base)
	target[BlockSize*2+10] ^= 0xFF

	idx := mustSign(t, base)
	instructions := Match(target, idx)

	out, err := Reconstruct(bytes.NewReader(base), instructions, crypto.HashBytes(target))
	require.NoError(t, err)
	require.Equal(t, target, out)

	// A single changed byte must still produce at least one Copy, proving
	// the untouched blocks were matched rather than fully literalized.
	var copies int
	for _, instr := range instructions {
		if instr.Kind == KindCopy {
			copies++
		}
	}
	require.Greater(t, copies, 0)
}

func TestRoundTripAppendedBytes(t *testing.T) {
	base := make([]byte, BlockSize*3)
	rand.New(rand.NewSource(3)).Read(base)

	target := append(append([]byte{}, base...), []byte("appended tail bytes")...)

	idx := mustSign(t, base)
	instructions := Match(target, idx)

	out, err := Reconstruct(bytes.NewReader(base), instructions, crypto.HashBytes(target))
	require.NoError(t, err)
	require.Equal(t, target, out)
}

func TestReconstructDiscardsOnHashMismatch(t *testing.T) {
	base := make([]byte, BlockSize*2)
	rand.New(rand.NewSource(4)).Read(base)

	idx := mustSign(t, base)
	instructions := Match(base, idx)

	_, err := Reconstruct(bytes.NewReader(base), instructions, "not-the-real-hash")
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestReconstructFailsOnCorruptedBase(t *testing.T) {
	base := make([]byte, BlockSize*3)
	rand.New(rand.NewSource(5)).Read(base)

	idx := mustSign(t, base)
	instructions := Match(base, idx)
	finalHash := crypto.HashBytes(base)

	corrupted := make([]byte, len(base))
	copy(corrupted, base)
	corrupted[0] ^= 0x01

	_, err := Reconstruct(bytes.NewReader(corrupted), instructions, finalHash)
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestSignHandlesShortFinalBlock(t *testing.T) {
	data := make([]byte, BlockSize+17)
	rand.New(rand.NewSource(6)).Read(data)

	sigs, err := Sign(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	require.Equal(t, 0, sigs[0].Index)
	require.Equal(t, 1, sigs[1].Index)
}
