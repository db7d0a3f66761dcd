package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	swarmcrypto "github.com/nordicnode/swarm/crypto"
)

// fileEnvelope is the on-disk JSON shape of one key file: a random salt and
// the AES-256-GCM sealed chunk produced under the PBKDF2-derived key.
type fileEnvelope struct {
	Salt   string `json:"salt"`
	Sealed string `json:"sealed"`
}

// FileVault is the default file-backed Storage: each key is one
// restricted-permission (0600) JSON file under dir, named "<name>.json".
type FileVault struct {
	dir string
	mu  sync.Mutex
}

// NewFileVault creates dir if needed and returns a FileVault rooted there.
func NewFileVault(dir string) (*FileVault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("keystore: create vault dir: %w", err)
	}
	return &FileVault{dir: dir}, nil
}

func (v *FileVault) path(name string) string {
	return filepath.Join(v.dir, name+".json")
}

// Store implements Storage.
func (v *FileVault) Store(name string, key []byte, passphrase string) error {
	if name == "" {
		return ErrInvalidName
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	dk := swarmcrypto.DerivePasswordKey(passphrase, salt)
	sealed, err := swarmcrypto.SealChunk(dk, key)
	if err != nil {
		return err
	}

	env := fileEnvelope{
		Salt:   base64.StdEncoding.EncodeToString(salt),
		Sealed: base64.StdEncoding.EncodeToString(sealed),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	return os.WriteFile(v.path(name), raw, 0600)
}

// Retrieve implements Storage.
func (v *FileVault) Retrieve(name string, passphrase string) ([]byte, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	v.mu.Lock()
	raw, err := os.ReadFile(v.path(name))
	v.mu.Unlock()
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}

	var env fileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("keystore: corrupt key file %s: %w", name, err)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("keystore: corrupt key file %s: %w", name, err)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Sealed)
	if err != nil {
		return nil, fmt.Errorf("keystore: corrupt key file %s: %w", name, err)
	}

	dk := swarmcrypto.DerivePasswordKey(passphrase, salt)
	pt, err := swarmcrypto.OpenChunk(dk, sealed)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return pt, nil
}

// Exists implements Storage.
func (v *FileVault) Exists(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := os.Stat(v.path(name))
	return err == nil
}

// Delete implements Storage.
func (v *FileVault) Delete(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := os.Remove(v.path(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return err
	}
	return nil
}

// List implements Storage.
func (v *FileVault) List() ([]string, error) {
	v.mu.Lock()
	entries, err := os.ReadDir(v.dir)
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
