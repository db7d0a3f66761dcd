// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"github.com/nordicnode/swarm/config"
	"github.com/nordicnode/swarm/internal/metrics"
	"github.com/nordicnode/swarm/state"
)

// Decision is the outcome of conflict detection: either the change is
// accepted outright, or it is a conflict requiring resolution.
type Decision struct {
	Accept     bool
	Conflict   *ConflictRecord
	Resolution Resolution // valid when Conflict != nil and already resolved
}

// Detect implements §4.5's remote-change conflict detection against the
// repository record R for relativePath, given the local on-disk hash
// (empty if the file does not exist) and the incoming change.
func Detect(record *state.SyncedFile, localDiskHash string, localExists bool, incomingHash string, incomingMtime int64, peerID string, now int64) Decision {
	if record == nil {
		if !localExists {
			return Decision{Accept: true}
		}
		// A local file exists but was never synced: treat as conflicting
		// creation, surfaced the same as any other divergence.
		return Decision{Accept: false, Conflict: &ConflictRecord{
			RelativePath: "",
			PeerID:       peerID,
			LocalHash:    localDiskHash,
			RemoteHash:   incomingHash,
			RemoteMtime:  incomingMtime,
		}}
	}
	if record.ContentHash == incomingHash {
		return Decision{Accept: true} // already in sync, no-op
	}
	if localDiskHash == record.ContentHash {
		return Decision{Accept: true} // non-conflicting update
	}
	return Decision{Accept: false, Conflict: &ConflictRecord{
		LocalHash:   localDiskHash,
		LocalMtime:  record.LastModified,
		RemoteHash:  incomingHash,
		RemoteMtime: incomingMtime,
	}}
}

// Resolve applies an auto-resolution strategy when the peer's trust record
// opts in (TrustedPeer.AutoResolve), otherwise consults collaborator. It
// always records the outcome in the conflicts-detected metric.
func Resolve(c ConflictRecord, peer config.TrustedPeer, collaborator ConflictCollaborator) Resolution {
	if peer.AutoResolve {
		r := autoLastWriterWins(c)
		metrics.ConflictsDetected.WithLabelValues("auto_last_writer_wins").Inc()
		return r
	}
	if collaborator == nil {
		metrics.ConflictsDetected.WithLabelValues("manual").Inc()
		return ResolutionSkip
	}
	r := collaborator.Resolve(c)
	label := "manual"
	if r == ResolutionKeepBoth {
		label = "auto_keep_both"
	}
	metrics.ConflictsDetected.WithLabelValues(label).Inc()
	return r
}

// autoLastWriterWins picks the strictly-greater mtime; ties are broken by
// the lexicographically higher content hash, so both peers reach the same
// answer without coordinating.
func autoLastWriterWins(c ConflictRecord) Resolution {
	if c.RemoteMtime > c.LocalMtime {
		return ResolutionKeepRemote
	}
	if c.LocalMtime > c.RemoteMtime {
		return ResolutionKeepLocal
	}
	if c.RemoteHash > c.LocalHash {
		return ResolutionKeepRemote
	}
	return ResolutionKeepLocal
}
