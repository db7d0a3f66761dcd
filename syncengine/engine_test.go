// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicnode/swarm/activity"
	"github.com/nordicnode/swarm/config"
	"github.com/nordicnode/swarm/state"
)

func newTestEngine(t *testing.T, peer *recordingPeer) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := state.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	log, err := activity.Open(filepath.Join(dir, "activity.log"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	var peers []PeerSender
	if peer != nil {
		peers = []PeerSender{peer}
	}

	engine, err := New(Config{SyncRoot: dir}, config.SyncSchedule{}, repo, log,
		func() []PeerSender { return peers }, nil,
		func(string) (config.TrustedPeer, bool) { return config.TrustedPeer{}, false })
	require.NoError(t, err)
	t.Cleanup(func() { engine.Stop() })

	return engine, dir
}

// TestEngineCoalescesRenameAcrossDeleteAndCreate exercises Engine.Run end to
// end: a real on-disk rename must collapse into a single SendRename
// dispatch, never a SendDelete followed by a Rename, and the renamed
// record must keep the content hash it had before the rename (§4.5 "Rename
// handling").
func TestEngineCoalescesRenameAcrossDeleteAndCreate(t *testing.T) {
	peer := &recordingPeer{id: "peer-1"}
	engine, dir := newTestEngine(t, peer)

	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("same content"), 0644))

	go engine.Run()
	// Let the initial Create settle into the repository before renaming, so
	// the Delete side of the rename has a prior hash to coalesce against.
	time.Sleep(DebounceWindow + 200*time.Millisecond)

	require.NoError(t, os.Rename(oldPath, newPath))

	deadline := time.Now().Add(RenameCoalesceWindow + 3*time.Second)
	for time.Now().Before(deadline) && len(peer.renames) == 0 {
		time.Sleep(20 * time.Millisecond)
	}

	require.Len(t, peer.renames, 1, "expected exactly one coalesced Rename dispatch")
	assert.Equal(t, "old.txt", peer.renames[0][0])
	assert.Equal(t, "new.txt", peer.renames[0][1])
	assert.Empty(t, peer.deletes, "a coalesced rename must not also dispatch a bare Delete")

	rec, err := engine.repo.Get("new.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ContentHash, "renamed record must keep its content hash, not an empty one from a premature delete")
}

// TestEngineFlushesUnmatchedDeleteAfterCoalesceWindow checks that a Delete
// withheld for rename-coalescing is still dispatched as a bare Delete once
// RenameCoalesceWindow passes with no matching Create.
func TestEngineFlushesUnmatchedDeleteAfterCoalesceWindow(t *testing.T) {
	peer := &recordingPeer{id: "peer-1"}
	engine, dir := newTestEngine(t, peer)

	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("bye"), 0644))

	go engine.Run()
	time.Sleep(DebounceWindow + 200*time.Millisecond)

	require.NoError(t, os.Remove(path))

	deadline := time.Now().Add(RenameCoalesceWindow + 3*time.Second)
	for time.Now().Before(deadline) && len(peer.deletes) == 0 {
		time.Sleep(20 * time.Millisecond)
	}

	require.Len(t, peer.deletes, 1, "expected the withheld delete to flush once the coalesce window passed")
	assert.Equal(t, "gone.txt", peer.deletes[0])
	assert.Empty(t, peer.renames)
}
