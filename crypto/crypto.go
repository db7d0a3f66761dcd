// SPDX-License-Identifier: LGPL-3.0-or-later

// Package crypto provides the cryptographic primitives used throughout
// swarm: identity and session key pairs live in crypto/keys, chunked
// authenticated encryption and the rolling checksum used by delta sync
// live alongside the KeyPair interface here.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HashFile streams r and returns the canonical lowercase hex SHA-256 digest.
func HashFile(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the canonical lowercase hex SHA-256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
