// SPDX-License-Identifier: LGPL-3.0-or-later

// Package activity implements the append-only activity log, file version
// snapshots with retention pruning, and the non-destructive integrity
// check (§4.9).
package activity

// Severity tags an activity log Entry's importance.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// EntryType tags what kind of event an Entry records.
type EntryType string

const (
	TypeLocalChange  EntryType = "local_change"
	TypeRemoteChange EntryType = "remote_change"
	TypeConflict     EntryType = "conflict"
	TypePeerEvent    EntryType = "peer_event"
	TypeVault        EntryType = "vault"
	TypeIntegrity    EntryType = "integrity"
)

// Entry is one append-only activity log record.
type Entry struct {
	TimestampMs  int64             `json:"timestamp_ms"`
	Type         EntryType         `json:"type"`
	Severity     Severity          `json:"severity"`
	Message      string            `json:"message"`
	RelativePath string            `json:"relative_path,omitempty"`
	PeerID       string            `json:"peer_id,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}

// VersionRecord describes one pruned-or-kept snapshot under
// <syncRoot>/.swarm/versions/<relpath>/<timestamp>.
type VersionRecord struct {
	RelativePath string
	Timestamp    string // YYYYMMDDTHHMMSSZ
	Size         int64
	Reason       string
}

// FileStatus classifies one file during an integrity check.
type FileStatus string

const (
	StatusHealthy   FileStatus = "healthy"
	StatusCorrupted FileStatus = "corrupted"
	StatusMissing   FileStatus = "missing"
)

// IntegrityResult is the outcome of a full integrity check.
type IntegrityResult struct {
	Healthy   []string
	Corrupted []string
	Missing   []string
}
