// SPDX-License-Identifier: LGPL-3.0-or-later

package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTrust struct {
	trustedIDs map[string]bool
}

func (s stubTrust) IsTrusted(peerID string, _ []byte) bool {
	return s.trustedIDs[peerID]
}

func TestTableUpsertMarksTrustFromStore(t *testing.T) {
	trust := stubTrust{trustedIDs: map[string]bool{"peer-a": true}}
	table := NewTable(trust)

	p := table.Upsert(Beacon{PeerID: "peer-a"}, "10.0.0.2", time.Now())
	require.True(t, p.Trusted)

	p2 := table.Upsert(Beacon{PeerID: "peer-b"}, "10.0.0.3", time.Now())
	require.False(t, p2.Trusted)
}

func TestTableUpsertIsInsertOrUpdate(t *testing.T) {
	table := NewTable(nil)
	now := time.Now()

	table.Upsert(Beacon{PeerID: "peer-a", PeerName: "alpha"}, "10.0.0.2", now)
	table.Upsert(Beacon{PeerID: "peer-a", PeerName: "alpha-renamed"}, "10.0.0.2", now.Add(time.Second))

	require.Len(t, table.Snapshot(), 1)
	p, ok := table.Get("peer-a")
	require.True(t, ok)
	require.Equal(t, "alpha-renamed", p.PeerName)
}

func TestTableSweepRemovesExpiredPeers(t *testing.T) {
	table := NewTable(nil)
	now := time.Now()
	table.Upsert(Beacon{PeerID: "stale"}, "10.0.0.2", now.Add(-LivenessTimeout*2))
	table.Upsert(Beacon{PeerID: "fresh"}, "10.0.0.3", now)

	lost := table.Sweep(now)
	require.Len(t, lost, 1)
	require.Equal(t, "stale", lost[0].PeerID)

	_, ok := table.Get("stale")
	require.False(t, ok)
	_, ok = table.Get("fresh")
	require.True(t, ok)
}

func TestTableEmitsPeerEvents(t *testing.T) {
	table := NewTable(nil)
	now := time.Now()

	table.Upsert(Beacon{PeerID: "peer-a"}, "10.0.0.2", now.Add(-LivenessTimeout*2))

	select {
	case ev := <-table.Events():
		require.Equal(t, PeerSeen, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected PeerSeen event")
	}

	table.Sweep(now)
	select {
	case ev := <-table.Events():
		require.Equal(t, PeerLost, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected PeerLost event")
	}
}
