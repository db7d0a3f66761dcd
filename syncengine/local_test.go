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

type recordingPeer struct {
	id           string
	priorVersion bool
	creates      []string
	updates      []string
	deltas       []string
	deletes      []string
	renames      [][2]string
}

func (p *recordingPeer) PeerID() string                   { return p.id }
func (p *recordingPeer) HasPriorVersion(rel string) bool  { return p.priorVersion }
func (p *recordingPeer) SendCreate(lc LocalChange, size int64, hash string, modifiedAt int64) error {
	p.creates = append(p.creates, lc.RelativePath)
	return nil
}
func (p *recordingPeer) SendUpdate(lc LocalChange, size int64, hash string, modifiedAt int64) error {
	p.updates = append(p.updates, lc.RelativePath)
	return nil
}
func (p *recordingPeer) SendDelta(lc LocalChange, size int64, hash string, modifiedAt int64) error {
	p.deltas = append(p.deltas, lc.RelativePath)
	return nil
}
func (p *recordingPeer) SendDelete(rel string) error {
	p.deletes = append(p.deletes, rel)
	return nil
}
func (p *recordingPeer) SendRename(oldPath, newPath string) error {
	p.renames = append(p.renames, [2]string{oldPath, newPath})
	return nil
}

func newTestPipeline(t *testing.T, peer *recordingPeer) (*LocalPipeline, string, state.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := state.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logPath := filepath.Join(dir, "activity.log")
	log, err := activity.Open(logPath, 0)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	var peers []PeerSender
	if peer != nil {
		peers = []PeerSender{peer}
	}

	return &LocalPipeline{
		SyncRoot: dir,
		Repo:     repo,
		Versions: activity.NewVersionStore(dir),
		Log:      log,
		Gate:     NewGate(config.SyncSchedule{}),
		Peers: func() []PeerSender {
			return peers
		},
	}, dir, repo
}

func TestLocalPipelineProcessCreateDispatchesToPeers(t *testing.T) {
	peer := &recordingPeer{id: "peer1"}
	p, dir, repo := newTestPipeline(t, peer)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world"), 0644))

	err := p.Process(LocalChange{RelativePath: "hello.txt", Kind: ChangeCreate, DetectedAt: time.Now()})
	require.NoError(t, err)

	rec, err := repo.Get("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, state.ActionCreate, rec.Action)
	assert.Equal(t, []string{"hello.txt"}, peer.creates)
}

func TestLocalPipelineProcessUpdateUsesDeltaAboveThresholdWithPriorVersion(t *testing.T) {
	peer := &recordingPeer{id: "peer1", priorVersion: true}
	p, dir, repo := newTestPipeline(t, peer)

	full := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(full, []byte("seed"), 0644))
	require.NoError(t, p.Process(LocalChange{RelativePath: "big.bin", Kind: ChangeCreate, DetectedAt: time.Now()}))

	big := make([]byte, DeltaThresholdBytes+1)
	require.NoError(t, os.WriteFile(full, big, 0644))
	require.NoError(t, p.Process(LocalChange{RelativePath: "big.bin", Kind: ChangeUpdate, DetectedAt: time.Now()}))

	assert.Equal(t, []string{"big.bin"}, peer.deltas)
	assert.Empty(t, peer.updates)

	rec, err := repo.Get("big.bin")
	require.NoError(t, err)
	assert.Equal(t, state.ActionUpdate, rec.Action)
}

func TestLocalPipelineProcessSkipsBenignTouch(t *testing.T) {
	peer := &recordingPeer{id: "peer1"}
	p, dir, _ := newTestPipeline(t, peer)

	full := filepath.Join(dir, "same.txt")
	require.NoError(t, os.WriteFile(full, []byte("unchanged"), 0644))
	require.NoError(t, p.Process(LocalChange{RelativePath: "same.txt", Kind: ChangeCreate, DetectedAt: time.Now()}))
	peer.creates = nil

	require.NoError(t, os.Chtimes(full, time.Now(), time.Now()))
	require.NoError(t, p.Process(LocalChange{RelativePath: "same.txt", Kind: ChangeUpdate, DetectedAt: time.Now()}))

	assert.Empty(t, peer.creates)
	assert.Empty(t, peer.updates)
}

func TestLocalPipelineProcessDeleteRemovesRecordAndNotifiesPeers(t *testing.T) {
	peer := &recordingPeer{id: "peer1"}
	p, dir, repo := newTestPipeline(t, peer)

	full := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(full, []byte("bye"), 0644))
	require.NoError(t, p.Process(LocalChange{RelativePath: "gone.txt", Kind: ChangeCreate, DetectedAt: time.Now()}))
	require.NoError(t, os.Remove(full))

	require.NoError(t, p.Process(LocalChange{RelativePath: "gone.txt", Kind: ChangeDelete, DetectedAt: time.Now()}))

	_, err := repo.Get("gone.txt")
	assert.ErrorIs(t, err, state.ErrNotFound)
	assert.Equal(t, []string{"gone.txt"}, peer.deletes)
}

func TestLocalPipelineProcessRenameCarriesHashAndNotifiesPeers(t *testing.T) {
	peer := &recordingPeer{id: "peer1"}
	p, dir, repo := newTestPipeline(t, peer)

	full := filepath.Join(dir, "old.txt")
	require.NoError(t, os.WriteFile(full, []byte("content"), 0644))
	require.NoError(t, p.Process(LocalChange{RelativePath: "old.txt", Kind: ChangeCreate, DetectedAt: time.Now()}))
	oldRec, err := repo.Get("old.txt")
	require.NoError(t, err)

	require.NoError(t, p.Process(LocalChange{RelativePath: "new.txt", OldPath: "old.txt", Kind: ChangeRename, DetectedAt: time.Now()}))

	_, err = repo.Get("old.txt")
	assert.ErrorIs(t, err, state.ErrNotFound)

	newRec, err := repo.Get("new.txt")
	require.NoError(t, err)
	assert.Equal(t, oldRec.ContentHash, newRec.ContentHash)
	assert.Equal(t, "old.txt", newRec.OldPath)
	assert.Equal(t, [][2]string{{"old.txt", "new.txt"}}, peer.renames)
}

func TestLocalPipelineProcessDirectoryCreate(t *testing.T) {
	p, dir, repo := newTestPipeline(t, nil)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	require.NoError(t, p.Process(LocalChange{RelativePath: "sub", Kind: ChangeCreate, IsDirectory: true, DetectedAt: time.Now()}))

	rec, err := repo.Get("sub")
	require.NoError(t, err)
	assert.True(t, rec.IsDirectory)
}

func TestLocalPipelineProcessRespectsGatePause(t *testing.T) {
	peer := &recordingPeer{id: "peer1"}
	p, dir, _ := newTestPipeline(t, peer)
	p.Gate.Pause(time.Now(), time.Minute)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "paused.txt"), []byte("x"), 0644))
	require.NoError(t, p.Process(LocalChange{RelativePath: "paused.txt", Kind: ChangeCreate, DetectedAt: time.Now()}))

	assert.Empty(t, peer.creates)
}
