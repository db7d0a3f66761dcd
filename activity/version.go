// SPDX-License-Identifier: LGPL-3.0-or-later

package activity

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const versionsDirName = ".swarm/versions"

// DefaultRetentionCount and DefaultRetentionAge are the default pruning
// thresholds: keep the newest N snapshots, and drop any older than the age
// threshold regardless of count (§4.9).
const (
	DefaultRetentionCount = 10
	DefaultRetentionAge   = 30 * 24 * time.Hour
)

// VersionStore manages pre-change snapshots under syncRoot.
type VersionStore struct {
	SyncRoot       string
	RetentionCount int
	RetentionAge   time.Duration
}

// NewVersionStore builds a VersionStore with the default retention policy.
func NewVersionStore(syncRoot string) *VersionStore {
	return &VersionStore{
		SyncRoot:       syncRoot,
		RetentionCount: DefaultRetentionCount,
		RetentionAge:   DefaultRetentionAge,
	}
}

func (vs *VersionStore) dirFor(relPath string) string {
	return filepath.Join(vs.SyncRoot, versionsDirName, relPath)
}

// Snapshot copies the current content at relPath (relative to SyncRoot)
// into a timestamped version file, recording reason, before the caller
// replaces or removes the tracked file.
func (vs *VersionStore) Snapshot(relPath, reason string, now time.Time) (VersionRecord, error) {
	srcPath := filepath.Join(vs.SyncRoot, relPath)
	src, err := os.Open(srcPath)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("activity: open source for snapshot: %w", err)
	}
	defer src.Close()

	dir := vs.dirFor(relPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return VersionRecord{}, fmt.Errorf("activity: create version dir: %w", err)
	}

	stamp := now.UTC().Format("20060102T150405Z")
	dstPath := filepath.Join(dir, stamp)
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("activity: create version file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("activity: copy version content: %w", err)
	}

	return VersionRecord{RelativePath: relPath, Timestamp: stamp, Size: n, Reason: reason}, nil
}

// Prune removes versions for relPath beyond RetentionCount and older than
// RetentionAge, keeping at least the most recent one regardless of age.
func (vs *VersionStore) Prune(relPath string, now time.Time) error {
	dir := vs.dirFor(relPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("activity: list versions: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names))) // newest timestamp first

	for i, name := range names {
		keep := i < vs.RetentionCount
		if keep {
			ts, err := time.Parse("20060102T150405Z", name)
			if err == nil && now.Sub(ts) > vs.RetentionAge && i > 0 {
				keep = false
			}
		}
		if !keep {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				return fmt.Errorf("activity: prune version %s: %w", name, err)
			}
		}
	}
	return nil
}
