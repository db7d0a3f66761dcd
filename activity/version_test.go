// SPDX-License-Identifier: LGPL-3.0-or-later

package activity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotCopiesContent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "doc.txt"), []byte("version one"), 0644))

	vs := NewVersionStore(root)
	rec, err := vs.Snapshot("doc.txt", "overwritten by remote change", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "doc.txt", rec.RelativePath)
	require.Equal(t, int64(len("version one")), rec.Size)

	content, err := os.ReadFile(filepath.Join(root, versionsDirName, "doc.txt", rec.Timestamp))
	require.NoError(t, err)
	require.Equal(t, "version one", string(content))
}

func TestPruneKeepsOnlyRetentionCount(t *testing.T) {
	root := t.TempDir()
	vs := NewVersionStore(root)
	vs.RetentionCount = 2
	vs.RetentionAge = 365 * 24 * time.Hour

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v"), 0644))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := vs.Snapshot("a.txt", "edit", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	require.NoError(t, vs.Prune("a.txt", base.Add(10*time.Second)))

	entries, err := os.ReadDir(filepath.Join(root, versionsDirName, "a.txt"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestPruneOnMissingDirIsNoop(t *testing.T) {
	vs := NewVersionStore(t.TempDir())
	require.NoError(t, vs.Prune("never-snapshotted.txt", time.Now()))
}
