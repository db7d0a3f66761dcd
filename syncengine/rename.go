// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"sync"
	"time"
)

// pendingDelete is a Delete event held briefly awaiting a matching Create
// so the two can be coalesced into a Rename (§4.5 "Rename handling").
type pendingDelete struct {
	relativePath string
	contentHash  string
	at           time.Time
}

// RenameCoalescer holds recent Delete events by content hash, offering a
// matching Create the chance to collapse both into a single Rename event
// within RenameCoalesceWindow.
type RenameCoalescer struct {
	mu      sync.Mutex
	pending map[string]pendingDelete // keyed by content hash
}

// NewRenameCoalescer returns an empty coalescer.
func NewRenameCoalescer() *RenameCoalescer {
	return &RenameCoalescer{pending: make(map[string]pendingDelete)}
}

// ObserveDelete records a Delete for possible coalescing. A Delete with an
// empty contentHash is not recorded. Withholding the Delete meanwhile is
// left to the caller.
func (rc *RenameCoalescer) ObserveDelete(relativePath, contentHash string, now time.Time) {
	if contentHash == "" {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.pending[contentHash] = pendingDelete{relativePath: relativePath, contentHash: contentHash, at: now}
}

// ObserveCreate checks whether a just-seen Create with contentHash matches
// a pending Delete within the coalescing window. If so it returns the old
// path and true, consuming the pending Delete; the caller should emit a
// single Rename instead of separate Delete+Create events.
func (rc *RenameCoalescer) ObserveCreate(contentHash string, now time.Time) (oldPath string, matched bool) {
	if contentHash == "" {
		return "", false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	pd, ok := rc.pending[contentHash]
	if !ok {
		return "", false
	}
	delete(rc.pending, contentHash)
	if now.Sub(pd.at) > RenameCoalesceWindow {
		return "", false
	}
	return pd.relativePath, true
}

// Sweep drops pending deletes older than RenameCoalesceWindow, emitting
// them as bare deletes via the returned slice since no matching create
// arrived in time.
func (rc *RenameCoalescer) Sweep(now time.Time) []string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	var expired []string
	for hash, pd := range rc.pending {
		if now.Sub(pd.at) > RenameCoalesceWindow {
			expired = append(expired, pd.relativePath)
			delete(rc.pending, hash)
		}
	}
	return expired
}
