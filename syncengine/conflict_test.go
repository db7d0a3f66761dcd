// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicnode/swarm/config"
	"github.com/nordicnode/swarm/state"
)

func TestDetectAcceptsCreateWhenNoRecordAndNoLocalFile(t *testing.T) {
	d := Detect(nil, "", false, "hash-a", 1000, "peer1", 2000)
	assert.True(t, d.Accept)
	assert.Nil(t, d.Conflict)
}

func TestDetectNoOpWhenHashesMatch(t *testing.T) {
	record := &state.SyncedFile{ContentHash: "same"}
	d := Detect(record, "same", true, "same", 1000, "peer1", 2000)
	assert.True(t, d.Accept)
}

func TestDetectAcceptsNonConflictingUpdate(t *testing.T) {
	record := &state.SyncedFile{ContentHash: "base"}
	d := Detect(record, "base", true, "new-remote-hash", 1000, "peer1", 2000)
	assert.True(t, d.Accept)
}

func TestDetectFlagsConflictOnDivergence(t *testing.T) {
	record := &state.SyncedFile{ContentHash: "base", LastModified: 500}
	d := Detect(record, "local-divergent-hash", true, "remote-divergent-hash", 1000, "peer1", 2000)
	require.False(t, d.Accept)
	require.NotNil(t, d.Conflict)
	assert.Equal(t, "local-divergent-hash", d.Conflict.LocalHash)
	assert.Equal(t, "remote-divergent-hash", d.Conflict.RemoteHash)
}

func TestAutoLastWriterWinsPicksLaterMtime(t *testing.T) {
	c := ConflictRecord{LocalMtime: 1000, RemoteMtime: 2000, LocalHash: "a", RemoteHash: "b"}
	assert.Equal(t, ResolutionKeepRemote, autoLastWriterWins(c))

	c2 := ConflictRecord{LocalMtime: 2000, RemoteMtime: 1000, LocalHash: "a", RemoteHash: "b"}
	assert.Equal(t, ResolutionKeepLocal, autoLastWriterWins(c2))
}

func TestAutoLastWriterWinsTieBreaksOnHash(t *testing.T) {
	c := ConflictRecord{LocalMtime: 1000, RemoteMtime: 1000, LocalHash: "aaa", RemoteHash: "zzz"}
	assert.Equal(t, ResolutionKeepRemote, autoLastWriterWins(c))

	c2 := ConflictRecord{LocalMtime: 1000, RemoteMtime: 1000, LocalHash: "zzz", RemoteHash: "aaa"}
	assert.Equal(t, ResolutionKeepLocal, autoLastWriterWins(c2))
}

func TestResolveAppliesAutoResolveWhenPeerOptedIn(t *testing.T) {
	c := ConflictRecord{LocalMtime: 1000, RemoteMtime: 2000}
	peer := config.TrustedPeer{PeerID: "peer1", AutoResolve: true}
	assert.Equal(t, ResolutionKeepRemote, Resolve(c, peer, nil))
}

type stubCollaborator struct{ resolution Resolution }

func (s stubCollaborator) Resolve(c ConflictRecord) Resolution { return s.resolution }

func TestResolveConsultsCollaboratorWhenNotAutoResolve(t *testing.T) {
	c := ConflictRecord{}
	peer := config.TrustedPeer{PeerID: "peer1", AutoResolve: false}
	r := Resolve(c, peer, stubCollaborator{resolution: ResolutionKeepBoth})
	assert.Equal(t, ResolutionKeepBoth, r)
}

func TestResolveSkipsWhenNoCollaborator(t *testing.T) {
	c := ConflictRecord{}
	peer := config.TrustedPeer{}
	assert.Equal(t, ResolutionSkip, Resolve(c, peer, nil))
}
