// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/ignore"
	"github.com/nordicnode/swarm/state"
)

// Rescan walks syncRoot, recomputes every file's hash, and compares it
// against the repository, emitting synthetic LocalChange events for
// drift the watcher missed (§4.5 "Full rescan"). It does not itself touch
// the repository or transport; callers feed the returned events through
// LocalPipeline.Process the same as watcher-sourced ones.
func Rescan(syncRoot string, matcher *ignore.Matcher, repo state.Repository) ([]LocalChange, error) {
	seen := make(map[string]bool)
	var changes []LocalChange

	err := filepath.Walk(syncRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(syncRoot, path)
		if relErr != nil || rel == "." {
			return nil
		}
		ignored, err := matcher.Match(rel, info.IsDir())
		if err != nil {
			return err
		}
		if ignored {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		seen[rel] = true
		hash, err := hashFileAt(path)
		if err != nil {
			return fmt.Errorf("syncengine: rescan hash %s: %w", rel, err)
		}

		record, err := repo.Get(rel)
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			return err
		}
		if record == nil {
			changes = append(changes, LocalChange{RelativePath: rel, Kind: ChangeCreate})
		} else if record.ContentHash != hash {
			changes = append(changes, LocalChange{RelativePath: rel, Kind: ChangeUpdate})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tracked, err := repo.GetAll()
	if err != nil {
		return nil, err
	}
	for _, f := range tracked {
		if f.IsDirectory || seen[f.RelativePath] {
			continue
		}
		changes = append(changes, LocalChange{RelativePath: f.RelativePath, Kind: ChangeDelete})
	}
	return changes, nil
}

func hashFileAt(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return crypto.HashFile(f)
}
