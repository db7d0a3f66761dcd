// SPDX-License-Identifier: LGPL-3.0-or-later

package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/internal/logger"
)

// Vault guards one encrypted folder rooted at Dir. The derived key is
// cached in memory only while unlocked; Lock zeroes it.
type Vault struct {
	Dir string

	mu           sync.Mutex
	key          []byte
	unlocked     bool
	lastAccessed time.Time
	autoLockMin  int

	stopAutoLock chan struct{}
	autoLockDone chan struct{}
}

func configPath(dir string) string   { return filepath.Join(dir, configDirName, configFile) }
func manifestPath(dir string) string { return filepath.Join(dir, configDirName, manifestFile) }

// Create initializes a new vault at dir: generates a salt, derives a key
// from password, encrypts the constant verifier, and writes config.json
// plus an empty encrypted manifest.
func Create(dir, password string, autoLockMinutes int) (*Vault, error) {
	if autoLockMinutes <= 0 {
		autoLockMinutes = DefaultAutoLockMinutes
	}
	metaDir := filepath.Join(dir, configDirName)
	if _, err := os.Stat(configPath(dir)); err == nil {
		return nil, ErrAlreadyExists
	}
	if err := os.MkdirAll(metaDir, 0700); err != nil {
		return nil, fmt.Errorf("vault: create metadata dir: %w", err)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}
	key := crypto.DerivePasswordKey(password, salt)

	sealedVerifier, err := crypto.SealChunk(key, []byte(Verifier))
	if err != nil {
		return nil, fmt.Errorf("vault: seal verifier: %w", err)
	}

	cfg := Config{
		Salt:            base64.StdEncoding.EncodeToString(salt),
		SealedVerifier:  base64.StdEncoding.EncodeToString(sealedVerifier),
		AutoLockMinutes: autoLockMinutes,
		CreatedAt:       time.Now().UnixMilli(),
	}
	if err := writeJSON(configPath(dir), cfg); err != nil {
		return nil, err
	}

	v := &Vault{Dir: dir, key: key, unlocked: true, lastAccessed: time.Now(), autoLockMin: autoLockMinutes}
	if err := v.writeManifest(Manifest{}); err != nil {
		return nil, err
	}
	v.startAutoLock()
	return v, nil
}

// Open loads an existing vault's config without unlocking it.
func Open(dir string) (*Vault, error) {
	var cfg Config
	if err := readJSON(configPath(dir), &cfg); err != nil {
		return nil, fmt.Errorf("vault: read config: %w", err)
	}
	v := &Vault{Dir: dir, autoLockMin: cfg.AutoLockMinutes}
	v.startAutoLock()
	return v, nil
}

// Unlock re-derives the key from password, decrypts the verifier, and
// compares it to the expected constant. On match the key is cached and the
// vault marked unlocked.
func (v *Vault) Unlock(password string) error {
	var cfg Config
	if err := readJSON(configPath(v.Dir), &cfg); err != nil {
		return fmt.Errorf("vault: read config: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(cfg.Salt)
	if err != nil {
		return fmt.Errorf("vault: decode salt: %w", err)
	}
	sealedVerifier, err := base64.StdEncoding.DecodeString(cfg.SealedVerifier)
	if err != nil {
		return fmt.Errorf("vault: decode sealed verifier: %w", err)
	}

	key := crypto.DerivePasswordKey(password, salt)
	plain, err := crypto.OpenChunk(key, sealedVerifier)
	if err != nil || string(plain) != Verifier {
		return ErrWrongPassword
	}

	v.mu.Lock()
	v.key = key
	v.unlocked = true
	v.lastAccessed = time.Now()
	v.autoLockMin = cfg.AutoLockMinutes
	v.mu.Unlock()
	return nil
}

// Lock zeroes the cached key and marks the vault locked. Idempotent.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
	v.unlocked = false
}

// IsUnlocked reports whether the vault currently has a cached key.
func (v *Vault) IsUnlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.unlocked
}

func (v *Vault) touch() {
	v.mu.Lock()
	v.lastAccessed = time.Now()
	v.mu.Unlock()
}

func (v *Vault) cachedKey() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return nil, ErrLocked
	}
	return v.key, nil
}

// startAutoLock launches the background ticker described in §4.8: every
// autoLockCheckInterval, lock if idle past autoLockMin minutes.
func (v *Vault) startAutoLock() {
	v.stopAutoLock = make(chan struct{})
	v.autoLockDone = make(chan struct{})
	go func() {
		defer close(v.autoLockDone)
		ticker := time.NewTicker(autoLockCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				v.mu.Lock()
				idle := v.unlocked && time.Since(v.lastAccessed) > time.Duration(v.autoLockMin)*time.Minute
				v.mu.Unlock()
				if idle {
					v.Lock()
					logger.Info("vault: auto-locked after idle timeout", logger.String("dir", v.Dir))
				}
			case <-v.stopAutoLock:
				return
			}
		}
	}()
}

// Close stops the auto-lock ticker.
func (v *Vault) Close() {
	close(v.stopAutoLock)
	<-v.autoLockDone
}

func (v *Vault) readManifest() (Manifest, error) {
	key, err := v.cachedKey()
	if err != nil {
		return Manifest{}, err
	}
	raw, err := os.ReadFile(manifestPath(v.Dir))
	if err != nil {
		return Manifest{}, fmt.Errorf("vault: read manifest: %w", err)
	}
	if len(raw) == 0 {
		return Manifest{}, nil
	}
	plain, err := crypto.OpenChunk(key, raw)
	if err != nil {
		return Manifest{}, fmt.Errorf("vault: open manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(plain, &m); err != nil {
		return Manifest{}, fmt.Errorf("vault: decode manifest: %w", err)
	}
	return m, nil
}

func (v *Vault) writeManifest(m Manifest) error {
	key, err := v.cachedKey()
	if err != nil {
		return err
	}
	plain, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("vault: encode manifest: %w", err)
	}
	sealed, err := crypto.SealChunk(key, plain)
	if err != nil {
		return fmt.Errorf("vault: seal manifest: %w", err)
	}
	return os.WriteFile(manifestPath(v.Dir), sealed, 0600)
}

// obfuscatedName derives a fresh random 12-hex-char name with the .senc
// extension, matching the wire format's expectation (§4.8).
func obfuscatedName() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("vault: generate obfuscated name: %w", err)
	}
	return hex.EncodeToString(b) + ".senc", nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: encode %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0600)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
