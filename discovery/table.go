// SPDX-License-Identifier: LGPL-3.0-or-later

package discovery

import (
	"sync"
	"time"

	"github.com/nordicnode/swarm/internal/metrics"
)

// PeerEvent is emitted on peer table transitions.
type PeerEvent struct {
	Kind PeerEventKind
	Peer Peer
}

// PeerEventKind tags a PeerEvent.
type PeerEventKind int

const (
	PeerSeen PeerEventKind = iota
	PeerLost
)

// Table is the live, mutex-guarded peer table: insert-or-update on beacon
// receipt, liveness sweep on a ticker.
type Table struct {
	mu    sync.RWMutex
	peers map[string]Peer
	trust TrustStore

	events chan PeerEvent
}

// NewTable builds an empty peer table. trust may be nil, in which case
// every peer is treated as untrusted.
func NewTable(trust TrustStore) *Table {
	return &Table{
		peers:  make(map[string]Peer),
		trust:  trust,
		events: make(chan PeerEvent, 64),
	}
}

// Events returns the channel peer-seen/peer-lost notifications are
// delivered on. Callers should drain it continuously: sends are
// non-blocking, and when the channel's buffer is full the new event is
// dropped (already buffered events are kept), since the table itself
// remains the source of truth.
func (t *Table) Events() <-chan PeerEvent {
	return t.events
}

// Upsert records a beacon observation, marking the peer trusted iff the
// configured TrustStore recognizes its identity key.
func (t *Table) Upsert(b Beacon, addr string, now time.Time) Peer {
	trusted := false
	if t.trust != nil {
		trusted = t.trust.IsTrusted(b.PeerID, b.IdentityPubKey)
	}

	p := Peer{Beacon: b, Addr: addr, LastSeen: now, Trusted: trusted}

	t.mu.Lock()
	t.peers[b.PeerID] = p
	t.mu.Unlock()

	t.emit(PeerEvent{Kind: PeerSeen, Peer: p})
	return p
}

// Sweep removes peers whose last-seen exceeds LivenessTimeout as of now,
// emitting PeerLost for each.
func (t *Table) Sweep(now time.Time) []Peer {
	var lost []Peer

	t.mu.Lock()
	for id, p := range t.peers {
		if now.Sub(p.LastSeen) >= LivenessTimeout {
			lost = append(lost, p)
			delete(t.peers, id)
		}
	}
	t.mu.Unlock()

	for _, p := range lost {
		metrics.PeersLost.Inc()
		t.emit(PeerEvent{Kind: PeerLost, Peer: p})
	}
	metrics.PeersKnown.Set(float64(len(t.Snapshot())))
	return lost
}

// RunSweepLoop sweeps the table every SweepInterval until stop is closed.
func (t *Table) RunSweepLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Sweep(time.Now())
		case <-stop:
			return
		}
	}
}

// Get returns the current record for peerID, if known.
func (t *Table) Get(peerID string) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[peerID]
	return p, ok
}

// Snapshot returns every currently known peer.
func (t *Table) Snapshot() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

func (t *Table) emit(ev PeerEvent) {
	select {
	case t.events <- ev:
	default:
	}
}
