// SPDX-License-Identifier: LGPL-3.0-or-later

// Package state implements the durable file-state repository: the
// authoritative record of what the sync engine believes is on disk, what it
// last synced, and any in-flight transfers, backed by SQLite in WAL mode.
package state

import "errors"

// Action tags the kind of change a SyncedFile record represents.
type Action string

const (
	ActionCreate Action = "Create"
	ActionUpdate Action = "Update"
	ActionDelete Action = "Delete"
	ActionRename Action = "Rename"
)

// SyncedFile is the persisted record of one path's sync state.
//
// Beyond the bare relative-path/hash/mtime view, SyncedHash/SyncedMtime
// record the synced-base snapshot from the last successful sync, mirroring
// the three-view item model used by sync-shaped systems in the retrieval
// pack. The remote pipeline writes them when it applies a file; conflict
// detection (syncengine.Detect) does not read them and compares against
// ContentHash instead.
type SyncedFile struct {
	RelativePath string
	ContentHash  string
	Size         int64
	LastModified int64 // Unix milliseconds, UTC
	Action       Action
	SourcePeerID string
	IsDirectory  bool
	OldPath      string // set only when Action == ActionRename

	SyncedHash   string
	SyncedMtime  int64
	LastSyncedAt int64
}

// Checkpoint tracks a resumable in-flight file transfer.
type Checkpoint struct {
	ID               int64
	RelativePath     string
	PeerID           string
	IsIncoming       bool
	TotalBytes       int64
	BytesTransferred int64
	ContentHash      string
	TempFilePath     string
	StartedAt        int64
	LastUpdatedAt    int64
	IsCompleted      bool
}

// StaleRecord tracks a path that became excluded by an ignore pattern or
// schedule change while still present on disk, so it can be surfaced rather
// than silently dropped.
type StaleRecord struct {
	RelativePath string
	Reason       string
	DetectedAt   int64
	Size         int64
}

// ErrDegraded is returned by every data operation, reads as well as writes,
// once a read error has put the repository into the degraded state; reads
// are not served while degraded. Load clears the state.
var ErrDegraded = errors.New("state: repository degraded after read error")

// ErrNotFound indicates Get found no record for the given relative path.
var ErrNotFound = errors.New("state: no record for relative path")

// Repository is the durable file-state store. add_or_update is an upsert
// keyed by RelativePath; Remove is idempotent. On write error, an operation
// fails the caller without partial mutation; on read error, the repository
// enters the degraded state (see ErrDegraded) and every subsequent data
// call fails until Load clears that state.
type Repository interface {
	Get(relativePath string) (*SyncedFile, error)
	GetAll() ([]*SyncedFile, error)
	AddOrUpdate(f *SyncedFile) error
	Remove(relativePath string) error
	Exists(relativePath string) (bool, error)
	Count() (int, error)
	Clear() error
	SaveChanges() error
	Load() error
	AsSnapshot() ([]*SyncedFile, error)

	AddOrUpdateCheckpoint(c *Checkpoint) error
	GetCheckpoint(relativePath, peerID string) (*Checkpoint, error)
	RemoveCheckpoint(relativePath, peerID string) error

	MarkStale(s *StaleRecord) error
	ListStale() ([]*StaleRecord, error)
	ClearStale(relativePath string) error

	Close() error
}
