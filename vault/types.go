// SPDX-License-Identifier: LGPL-3.0-or-later

// Package vault implements the encrypted-folder feature (§4.8): a
// password-unlocked folder whose tracked files are stored on disk under
// obfuscated names, each chunk-encrypted with AES-256-GCM, with an
// encrypted manifest mapping obfuscated names back to real relative paths.
package vault

import (
	"errors"
	"time"
)

const (
	// configDirName is the per-folder vault metadata directory, rooted
	// under the synced folder itself.
	configDirName = ".swarm-vault"
	configFile    = "config.json"
	manifestFile  = "manifest.enc"

	// Verifier is encrypted under the derived key at creation time and
	// compared on unlock; a match confirms the password was correct.
	Verifier = "SWARM-VAULT-VERIFY-2024"

	// ChunkSizeKB is the plaintext chunk size used by the streaming
	// encrypt/decrypt format, fixed so delta sync remains effective over
	// ciphertext (§4.7 delta-friendliness).
	ChunkSizeKB = 32
	chunkSize   = ChunkSizeKB * 1024

	sencMagic   = "SENC"
	sencVersion = uint16(1)

	// DefaultAutoLockMinutes is how long a vault may sit idle before the
	// auto-lock ticker locks it.
	DefaultAutoLockMinutes = 15

	autoLockCheckInterval = 60 * time.Second
)

// ErrLocked is returned by any operation requiring the cached key while the
// vault is locked.
var ErrLocked = errors.New("vault: locked")

// ErrWrongPassword is returned by Unlock when the decrypted verifier does
// not match the expected constant.
var ErrWrongPassword = errors.New("vault: wrong password")

// ErrAlreadyExists is returned by Create when config.json already exists.
var ErrAlreadyExists = errors.New("vault: already initialized")

// Config is the on-disk config.json: salt plus the sealed verifier. It
// carries no key material in the clear.
type Config struct {
	Salt            string `json:"salt"`
	SealedVerifier  string `json:"sealed_verifier"`
	AutoLockMinutes int    `json:"auto_lock_minutes"`
	CreatedAt       int64  `json:"created_at"`
}

// ManifestEntry maps one obfuscated on-disk name back to its real relative path.
type ManifestEntry struct {
	ObfuscatedName string `json:"obfuscated_name"`
	RealPath       string `json:"real_path"`
}

// Manifest is the decrypted shape of manifest.enc.
type Manifest struct {
	Entries []ManifestEntry `json:"entries"`
}
