// SPDX-License-Identifier: LGPL-3.0-or-later

package vault

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nordicnode/swarm/crypto"
)

// EncryptFile streams relPath (rooted at v.Dir) into a freshly named
// obfuscated .senc file, updates the manifest, and removes the plaintext
// original (§4.8). Returns the obfuscated name.
func (v *Vault) EncryptFile(relPath string) (string, error) {
	v.touch()
	key, err := v.cachedKey()
	if err != nil {
		return "", err
	}

	srcPath := filepath.Join(v.Dir, relPath)
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("vault: open plaintext: %w", err)
	}
	defer src.Close()

	name, err := obfuscatedName()
	if err != nil {
		return "", err
	}
	dstPath := filepath.Join(v.Dir, configDirName, name)
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("vault: create ciphertext: %w", err)
	}
	defer dst.Close()

	if err := writeSencHeader(dst); err != nil {
		return "", err
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			sealed, err := crypto.SealChunk(key, buf[:n])
			if err != nil {
				return "", fmt.Errorf("vault: seal chunk: %w", err)
			}
			if err := writeSencChunk(dst, sealed); err != nil {
				return "", err
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("vault: read plaintext: %w", readErr)
		}
	}

	m, err := v.readManifest()
	if err != nil {
		return "", err
	}
	m.Entries = append(m.Entries, ManifestEntry{ObfuscatedName: name, RealPath: relPath})
	if err := v.writeManifest(m); err != nil {
		return "", err
	}

	src.Close()
	if err := os.Remove(srcPath); err != nil {
		return "", fmt.Errorf("vault: remove plaintext: %w", err)
	}
	return name, nil
}

// DecryptToStream validates the header on the named obfuscated file and
// writes the decrypted plaintext to w.
func (v *Vault) DecryptToStream(obfuscatedName string, w io.Writer) error {
	v.touch()
	key, err := v.cachedKey()
	if err != nil {
		return err
	}

	src, err := os.Open(filepath.Join(v.Dir, configDirName, obfuscatedName))
	if err != nil {
		return fmt.Errorf("vault: open ciphertext: %w", err)
	}
	defer src.Close()

	if err := readSencHeader(src); err != nil {
		return err
	}

	for {
		sealed, err := readSencChunk(src)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		plain, err := crypto.OpenChunk(key, sealed)
		if err != nil {
			return fmt.Errorf("vault: open chunk: %w", err)
		}
		if _, err := w.Write(plain); err != nil {
			return fmt.Errorf("vault: write plaintext: %w", err)
		}
	}
}

// RealPath resolves an obfuscated name back to its tracked relative path.
func (v *Vault) RealPath(obfuscatedName string) (string, bool, error) {
	m, err := v.readManifest()
	if err != nil {
		return "", false, err
	}
	for _, e := range m.Entries {
		if e.ObfuscatedName == obfuscatedName {
			return e.RealPath, true, nil
		}
	}
	return "", false, nil
}

func writeSencHeader(w io.Writer) error {
	header := make([]byte, 8)
	copy(header[:4], sencMagic)
	binary.BigEndian.PutUint16(header[4:6], sencVersion)
	binary.BigEndian.PutUint16(header[6:8], ChunkSizeKB)
	_, err := w.Write(header)
	if err != nil {
		return fmt.Errorf("vault: write senc header: %w", err)
	}
	return nil
}

func readSencHeader(r io.Reader) error {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("vault: read senc header: %w", err)
	}
	if string(header[:4]) != sencMagic {
		return fmt.Errorf("vault: bad senc magic")
	}
	return nil
}

func writeSencChunk(w io.Writer, sealed []byte) error {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(sealed)))
	if _, err := w.Write(lenBuf); err != nil {
		return fmt.Errorf("vault: write chunk length: %w", err)
	}
	if _, err := w.Write(sealed); err != nil {
		return fmt.Errorf("vault: write chunk: %w", err)
	}
	return nil
}

func readSencChunk(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf)
	sealed := make([]byte, length)
	if _, err := io.ReadFull(r, sealed); err != nil {
		return nil, fmt.Errorf("vault: read chunk: %w", err)
	}
	return sealed, nil
}
