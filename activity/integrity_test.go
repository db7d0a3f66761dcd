// SPDX-License-Identifier: LGPL-3.0-or-later

package activity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/state"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *state.SQLiteRepository {
	t.Helper()
	repo, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCheckIntegrityClassifiesHealthyCorruptedMissing(t *testing.T) {
	root := t.TempDir()
	repo := openTestRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(root, "good.txt"), []byte("unchanged"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.txt"), []byte("tampered"), 0644))

	require.NoError(t, repo.AddOrUpdate(&state.SyncedFile{
		RelativePath: "good.txt",
		ContentHash:  crypto.HashBytes([]byte("unchanged")),
	}))
	require.NoError(t, repo.AddOrUpdate(&state.SyncedFile{
		RelativePath: "bad.txt",
		ContentHash:  crypto.HashBytes([]byte("original content")),
	}))
	require.NoError(t, repo.AddOrUpdate(&state.SyncedFile{
		RelativePath: "gone.txt",
		ContentHash:  crypto.HashBytes([]byte("anything")),
	}))

	result, err := CheckIntegrity(root, repo)
	require.NoError(t, err)
	require.Equal(t, []string{"good.txt"}, result.Healthy)
	require.Equal(t, []string{"bad.txt"}, result.Corrupted)
	require.Equal(t, []string{"gone.txt"}, result.Missing)
}

func TestCheckIntegritySkipsDirectories(t *testing.T) {
	root := t.TempDir()
	repo := openTestRepo(t)

	require.NoError(t, repo.AddOrUpdate(&state.SyncedFile{RelativePath: "subdir", IsDirectory: true}))

	result, err := CheckIntegrity(root, repo)
	require.NoError(t, err)
	require.Empty(t, result.Healthy)
	require.Empty(t, result.Corrupted)
	require.Empty(t, result.Missing)
}
