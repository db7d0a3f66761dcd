package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// ChunkSize is the plaintext size of a single encrypted-vault chunk (§4.8).
const ChunkSize = 32 * 1024

// chunkNonceSize is the standard AES-GCM nonce length.
const chunkNonceSize = 12

// SealChunk encrypts one plaintext chunk with AES-256-GCM under key, using a
// random 12-byte nonce, and returns nonce||ciphertext||tag.
func SealChunk(key, plaintext []byte) ([]byte, error) {
	aead, err := newChunkAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chunkNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: chunk nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenChunk decrypts a sealed chunk produced by SealChunk.
func OpenChunk(key, sealed []byte) ([]byte, error) {
	aead, err := newChunkAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < chunkNonceSize {
		return nil, fmt.Errorf("crypto: sealed chunk too short")
	}
	nonce, ct := sealed[:chunkNonceSize], sealed[chunkNonceSize:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: chunk auth failed: %w", err)
	}
	return pt, nil
}

func newChunkAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: chunk cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// NewSessionAEAD builds the AES-256-GCM instance backing a transport
// session, sharing construction with SealChunk/OpenChunk.
func NewSessionAEAD(key []byte) (cipher.AEAD, error) {
	return newChunkAEAD(key)
}

// SessionNonce builds the deterministic 12-byte nonce used on the transport's
// session AEAD: a 1-byte direction tag followed by an 8-byte big-endian
// monotonic counter, left-padded with zero (§4.1, §4.3). Reusing a
// (direction, counter) pair is a protocol violation and must never happen:
// callers own an atomically-incremented per-direction counter.
func SessionNonce(direction byte, counter uint64) []byte {
	nonce := make([]byte, chunkNonceSize)
	nonce[0] = direction
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}
