package keystore

import (
	"crypto/rand"
	"sort"
	"sync"

	swarmcrypto "github.com/nordicnode/swarm/crypto"
)

// entry is the in-memory envelope for one stored key: a random salt
// plus the sealed chunk produced by swarmcrypto.SealChunk under the
// PBKDF2-derived passphrase key.
type entry struct {
	salt   []byte
	sealed []byte
}

// Memory is an in-memory Storage, used by tests and by callers that derive
// identity keys fresh on every run.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemory creates an empty in-memory keystore.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// Store implements Storage.
func (m *Memory) Store(name string, key []byte, passphrase string) error {
	if name == "" {
		return ErrInvalidName
	}
	salt, sealed, err := sealWithPassphrase(key, passphrase)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = entry{salt: salt, sealed: sealed}
	return nil
}

// Retrieve implements Storage.
func (m *Memory) Retrieve(name string, passphrase string) ([]byte, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	return openWithPassphrase(e, passphrase)
}

// Exists implements Storage.
func (m *Memory) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[name]
	return ok
}

// Delete implements Storage.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[name]; !ok {
		return ErrKeyNotFound
	}
	delete(m.entries, name)
	return nil
}

// List implements Storage.
func (m *Memory) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func sealWithPassphrase(key []byte, passphrase string) (salt, sealed []byte, err error) {
	salt = make([]byte, 16)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, err
	}
	dk := swarmcrypto.DerivePasswordKey(passphrase, salt)
	sealed, err = swarmcrypto.SealChunk(dk, key)
	return salt, sealed, err
}

func openWithPassphrase(e entry, passphrase string) ([]byte, error) {
	dk := swarmcrypto.DerivePasswordKey(passphrase, e.salt)
	pt, err := swarmcrypto.OpenChunk(dk, e.sealed)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return pt, nil
}
