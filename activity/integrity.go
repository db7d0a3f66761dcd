// SPDX-License-Identifier: LGPL-3.0-or-later

package activity

import (
	"os"
	"path/filepath"

	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/state"
)

// CheckIntegrity walks every file tracked in repo, recomputes its hash, and
// classifies it healthy, corrupted (hash mismatch), or missing. It is
// read-only: it never mutates the repository or the file system (§4.9).
func CheckIntegrity(syncRoot string, repo state.Repository) (IntegrityResult, error) {
	tracked, err := repo.GetAll()
	if err != nil {
		return IntegrityResult{}, err
	}

	var result IntegrityResult
	for _, f := range tracked {
		if f.IsDirectory {
			continue
		}
		full := filepath.Join(syncRoot, f.RelativePath)
		fh, err := os.Open(full)
		if err != nil {
			if os.IsNotExist(err) {
				result.Missing = append(result.Missing, f.RelativePath)
				continue
			}
			return IntegrityResult{}, err
		}

		hash, err := crypto.HashFile(fh)
		fh.Close()
		if err != nil {
			return IntegrityResult{}, err
		}

		if hash == f.ContentHash {
			result.Healthy = append(result.Healthy, f.RelativePath)
		} else {
			result.Corrupted = append(result.Corrupted, f.RelativePath)
		}
	}
	return result, nil
}
