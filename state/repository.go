// SPDX-License-Identifier: LGPL-3.0-or-later

package state

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS file_states (
	relative_path TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	last_modified INTEGER NOT NULL DEFAULT 0,
	action TEXT NOT NULL,
	source_peer_id TEXT NOT NULL DEFAULT '',
	is_directory INTEGER NOT NULL DEFAULT 0,
	old_path TEXT NOT NULL DEFAULT '',
	synced_hash TEXT NOT NULL DEFAULT '',
	synced_mtime INTEGER NOT NULL DEFAULT 0,
	last_synced_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_file_states_content_hash ON file_states(content_hash);

CREATE TABLE IF NOT EXISTS transfer_checkpoints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	relative_path TEXT NOT NULL,
	peer_id TEXT NOT NULL,
	is_incoming INTEGER NOT NULL,
	total_bytes INTEGER NOT NULL,
	bytes_transferred INTEGER NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	temp_file_path TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	last_updated_at INTEGER NOT NULL,
	is_completed INTEGER NOT NULL DEFAULT 0,
	UNIQUE(relative_path, peer_id)
);

CREATE TABLE IF NOT EXISTS stale_records (
	relative_path TEXT PRIMARY KEY,
	reason TEXT NOT NULL DEFAULT '',
	detected_at INTEGER NOT NULL,
	size INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteRepository is the SQLite-backed Repository implementation.
type SQLiteRepository struct {
	mu       sync.RWMutex
	db       *sql.DB
	degraded bool
}

// Open opens (and if necessary creates) the state database at path in WAL
// mode and ensures the schema exists.
func Open(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes; avoid SQLITE_BUSY across goroutines

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("state: set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: create schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) checkDegraded() error {
	if r.degraded {
		return ErrDegraded
	}
	return nil
}

func (r *SQLiteRepository) markDegraded() {
	r.degraded = true
}

// Get returns the record for relativePath, or ErrNotFound.
func (r *SQLiteRepository) Get(relativePath string) (*SyncedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkDegraded(); err != nil {
		return nil, err
	}

	row := r.db.QueryRow(`SELECT relative_path, content_hash, size, last_modified, action,
		source_peer_id, is_directory, old_path, synced_hash, synced_mtime, last_synced_at
		FROM file_states WHERE relative_path = ?`, relativePath)

	f, err := scanSyncedFile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.markDegraded()
		return nil, fmt.Errorf("state: get %s: %w", relativePath, err)
	}
	return f, nil
}

// GetAll returns every tracked file-state record.
func (r *SQLiteRepository) GetAll() ([]*SyncedFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkDegraded(); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`SELECT relative_path, content_hash, size, last_modified, action,
		source_peer_id, is_directory, old_path, synced_hash, synced_mtime, last_synced_at
		FROM file_states`)
	if err != nil {
		r.markDegraded()
		return nil, fmt.Errorf("state: get all: %w", err)
	}
	defer rows.Close()

	var out []*SyncedFile
	for rows.Next() {
		f, err := scanSyncedFile(rows)
		if err != nil {
			r.markDegraded()
			return nil, fmt.Errorf("state: scan: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		r.markDegraded()
		return nil, err
	}
	return out, nil
}

// AddOrUpdate upserts f keyed by RelativePath.
func (r *SQLiteRepository) AddOrUpdate(f *SyncedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDegraded(); err != nil {
		return err
	}

	_, err := r.db.Exec(`INSERT INTO file_states
		(relative_path, content_hash, size, last_modified, action, source_peer_id, is_directory, old_path, synced_hash, synced_mtime, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(relative_path) DO UPDATE SET
			content_hash=excluded.content_hash,
			size=excluded.size,
			last_modified=excluded.last_modified,
			action=excluded.action,
			source_peer_id=excluded.source_peer_id,
			is_directory=excluded.is_directory,
			old_path=excluded.old_path,
			synced_hash=excluded.synced_hash,
			synced_mtime=excluded.synced_mtime,
			last_synced_at=excluded.last_synced_at`,
		f.RelativePath, f.ContentHash, f.Size, f.LastModified, string(f.Action),
		f.SourcePeerID, boolToInt(f.IsDirectory), f.OldPath, f.SyncedHash, f.SyncedMtime, f.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("state: add_or_update %s: %w", f.RelativePath, err)
	}
	return nil
}

// Remove deletes the record for relativePath. Idempotent: removing an
// absent path is not an error.
func (r *SQLiteRepository) Remove(relativePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDegraded(); err != nil {
		return err
	}

	if _, err := r.db.Exec(`DELETE FROM file_states WHERE relative_path = ?`, relativePath); err != nil {
		return fmt.Errorf("state: remove %s: %w", relativePath, err)
	}
	return nil
}

// Exists reports whether a record exists for relativePath.
func (r *SQLiteRepository) Exists(relativePath string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkDegraded(); err != nil {
		return false, err
	}

	var count int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM file_states WHERE relative_path = ?`, relativePath).Scan(&count)
	if err != nil {
		r.markDegraded()
		return false, err
	}
	return count > 0, nil
}

// Count returns the number of tracked file-state records.
func (r *SQLiteRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkDegraded(); err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(`SELECT COUNT(1) FROM file_states`).Scan(&count); err != nil {
		r.markDegraded()
		return 0, err
	}
	return count, nil
}

// Clear removes every file-state record.
func (r *SQLiteRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDegraded(); err != nil {
		return err
	}

	if _, err := r.db.Exec(`DELETE FROM file_states`); err != nil {
		return fmt.Errorf("state: clear: %w", err)
	}
	return nil
}

// SaveChanges is a no-op flush point: SQLiteRepository writes every mutation
// immediately, so there is nothing to batch.
func (r *SQLiteRepository) SaveChanges() error {
	return nil
}

// Load rehydrates nothing for the SQLite backend — every read already goes
// straight to the database — but it clears the degraded flag, allowing a
// caller to retry after reopening the connection.
func (r *SQLiteRepository) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.degraded = false
	return nil
}

// AsSnapshot returns a read-only consistent view of every record, suitable
// for manifest generation.
func (r *SQLiteRepository) AsSnapshot() ([]*SyncedFile, error) {
	return r.GetAll()
}

// AddOrUpdateCheckpoint upserts a transfer checkpoint keyed by (relative_path, peer_id).
func (r *SQLiteRepository) AddOrUpdateCheckpoint(c *Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDegraded(); err != nil {
		return err
	}

	_, err := r.db.Exec(`INSERT INTO transfer_checkpoints
		(relative_path, peer_id, is_incoming, total_bytes, bytes_transferred, content_hash, temp_file_path, started_at, last_updated_at, is_completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(relative_path, peer_id) DO UPDATE SET
			is_incoming=excluded.is_incoming,
			total_bytes=excluded.total_bytes,
			bytes_transferred=excluded.bytes_transferred,
			content_hash=excluded.content_hash,
			temp_file_path=excluded.temp_file_path,
			last_updated_at=excluded.last_updated_at,
			is_completed=excluded.is_completed`,
		c.RelativePath, c.PeerID, boolToInt(c.IsIncoming), c.TotalBytes, c.BytesTransferred,
		c.ContentHash, c.TempFilePath, c.StartedAt, c.LastUpdatedAt, boolToInt(c.IsCompleted))
	if err != nil {
		return fmt.Errorf("state: add_or_update checkpoint %s/%s: %w", c.RelativePath, c.PeerID, err)
	}
	return nil
}

// GetCheckpoint returns the checkpoint for (relativePath, peerID), or ErrNotFound.
func (r *SQLiteRepository) GetCheckpoint(relativePath, peerID string) (*Checkpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkDegraded(); err != nil {
		return nil, err
	}

	row := r.db.QueryRow(`SELECT id, relative_path, peer_id, is_incoming, total_bytes, bytes_transferred,
		content_hash, temp_file_path, started_at, last_updated_at, is_completed
		FROM transfer_checkpoints WHERE relative_path = ? AND peer_id = ?`, relativePath, peerID)

	c, err := scanCheckpoint(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.markDegraded()
		return nil, err
	}
	return c, nil
}

// RemoveCheckpoint deletes a checkpoint. Idempotent.
func (r *SQLiteRepository) RemoveCheckpoint(relativePath, peerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDegraded(); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM transfer_checkpoints WHERE relative_path = ? AND peer_id = ?`, relativePath, peerID)
	return err
}

// MarkStale records a path excluded from sync while still present on disk.
func (r *SQLiteRepository) MarkStale(s *StaleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDegraded(); err != nil {
		return err
	}
	_, err := r.db.Exec(`INSERT INTO stale_records (relative_path, reason, detected_at, size)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(relative_path) DO UPDATE SET reason=excluded.reason, detected_at=excluded.detected_at, size=excluded.size`,
		s.RelativePath, s.Reason, s.DetectedAt, s.Size)
	return err
}

// ListStale returns every stale record.
func (r *SQLiteRepository) ListStale() ([]*StaleRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if err := r.checkDegraded(); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`SELECT relative_path, reason, detected_at, size FROM stale_records`)
	if err != nil {
		r.markDegraded()
		return nil, err
	}
	defer rows.Close()

	var out []*StaleRecord
	for rows.Next() {
		s := &StaleRecord{}
		if err := rows.Scan(&s.RelativePath, &s.Reason, &s.DetectedAt, &s.Size); err != nil {
			r.markDegraded()
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ClearStale removes a path from the stale set, e.g. once it is re-included
// or deleted. Idempotent.
func (r *SQLiteRepository) ClearStale(relativePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkDegraded(); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM stale_records WHERE relative_path = ?`, relativePath)
	return err
}

// Close closes the underlying database connection.
func (r *SQLiteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncedFile(s scanner) (*SyncedFile, error) {
	var f SyncedFile
	var action string
	var isDir int
	if err := s.Scan(&f.RelativePath, &f.ContentHash, &f.Size, &f.LastModified, &action,
		&f.SourcePeerID, &isDir, &f.OldPath, &f.SyncedHash, &f.SyncedMtime, &f.LastSyncedAt); err != nil {
		return nil, err
	}
	f.Action = Action(action)
	f.IsDirectory = isDir != 0
	return &f, nil
}

func scanCheckpoint(s scanner) (*Checkpoint, error) {
	var c Checkpoint
	var isIncoming, isCompleted int
	if err := s.Scan(&c.ID, &c.RelativePath, &c.PeerID, &isIncoming, &c.TotalBytes, &c.BytesTransferred,
		&c.ContentHash, &c.TempFilePath, &c.StartedAt, &c.LastUpdatedAt, &isCompleted); err != nil {
		return nil, err
	}
	c.IsIncoming = isIncoming != 0
	c.IsCompleted = isCompleted != 0
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
