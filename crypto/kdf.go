package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// SessionInfoLabel is the HKDF info label mixed into every session-key
// derivation, binding derived keys to this wire protocol version.
const SessionInfoLabel = "swarm-session-v1"

// DeriveSessionKey derives the 32-byte symmetric session key from an X25519
// shared secret: k = HKDF-SHA256(secret, info = SessionInfoLabel || peerIDA || peerIDBSorted).
// peerIDLo and peerIDHi must already be in sorted (lexicographic) order by the caller so
// both peers derive an identical key regardless of handshake initiator.
func DeriveSessionKey(secret []byte, peerIDLo, peerIDHi string) ([]byte, error) {
	info := []byte(SessionInfoLabel + peerIDLo + peerIDHi)
	h := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("crypto: hkdf session key: %w", err)
	}
	return key, nil
}

// PBKDF2Iterations is the iteration count mandated for the vault password KDF.
const PBKDF2Iterations = 100_000

// DerivePasswordKey derives a 32-byte AES-256 key from a password and a
// 16-byte salt using PBKDF2-HMAC-SHA256 (§4.1, §4.8 vault creation/unlock).
func DerivePasswordKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, 32, sha256.New)
}
