// SPDX-License-Identifier: LGPL-3.0-or-later

// Package syncengine turns file-system and remote-peer events into
// repository updates and outgoing transfers: the watcher, the local and
// remote change pipelines, conflict detection and resolution, schedule and
// power gating, and the periodic full rescan (§4.5).
package syncengine

import (
	"errors"
	"time"
)

// DeltaThresholdBytes is the minimum file size for which an Update to a
// peer with a prior version is sent as a delta instead of a full body.
const DeltaThresholdBytes = 1 << 20 // 1 MiB

// DebounceWindow coalesces repeated fsnotify events for the same relative
// path: only the last event within the window is acted on.
const DebounceWindow = 300 * time.Millisecond

// RenameCoalesceWindow bounds how long a Delete is held awaiting a
// content-hash-matching Create before it is treated as two separate events.
const RenameCoalesceWindow = 2 * time.Second

// RenameSweepInterval is how often the engine checks for pending deletes
// that outlived RenameCoalesceWindow without a matching create.
const RenameSweepInterval = 250 * time.Millisecond

// DefaultRescanInterval is how often the engine walks the whole sync
// folder to catch drift the watcher missed.
const DefaultRescanInterval = 15 * time.Minute

// SmallFrameBytes is the largest transfer that power gating still allows
// while deferring bulk transfers on low battery (§4.5 gating).
const SmallFrameBytes = 256 * 1024

// LowBatteryPercent is the threshold below which, combined with
// IsOnBattery, bulk outgoing transfers are deferred.
const LowBatteryPercent = 20

// MaxQueuedInbound is a bound for received frames buffered while inbound
// apply is paused. Nothing in the engine reads it: while inbound apply is
// paused, RemotePipeline's Apply methods return ErrGated and no received
// frame is queued.
const MaxQueuedInbound = 10000

// ChangeKind mirrors state.Action for locally observed or remotely
// received changes.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "Create"
	ChangeUpdate ChangeKind = "Update"
	ChangeDelete ChangeKind = "Delete"
	ChangeRename ChangeKind = "Rename"
)

// LocalChange is one debounced, ignore-filtered local file-system event
// ready for the local change pipeline.
type LocalChange struct {
	RelativePath string
	OldPath      string // set only for ChangeRename
	Kind         ChangeKind
	IsDirectory  bool
	DetectedAt   time.Time
}

// FileStateKind is the per-file engine state described in §4.5's diagram.
type FileStateKind int

const (
	StateIdle FileStateKind = iota
	StateHashing
	StatePlanning
	StateDispatching
	StateAwaitResolution
	StateReceiving
	StateApplying
	StateErrored
	StateCheckpointed
	StateResuming
)

func (s FileStateKind) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateHashing:
		return "Hashing"
	case StatePlanning:
		return "Planning"
	case StateDispatching:
		return "Dispatching"
	case StateAwaitResolution:
		return "AwaitResolution"
	case StateReceiving:
		return "Receiving"
	case StateApplying:
		return "Applying"
	case StateErrored:
		return "Errored"
	case StateCheckpointed:
		return "Checkpointed"
	case StateResuming:
		return "Resuming"
	default:
		return "Unknown"
	}
}

// Resolution is how a detected conflict was, or should be, settled.
type Resolution string

const (
	ResolutionKeepLocal  Resolution = "KeepLocal"
	ResolutionKeepRemote Resolution = "KeepRemote"
	ResolutionKeepBoth   Resolution = "KeepBoth"
	ResolutionSkip       Resolution = "Skip"
)

// AutoStrategy is an auto-resolution policy opted into per trusted peer.
type AutoStrategy string

const (
	AutoLastWriterWins AutoStrategy = "LastWriterWins"
	AutoKeepBoth       AutoStrategy = "KeepBoth"
)

// ConflictRecord describes a diverging change awaiting resolution.
type ConflictRecord struct {
	RelativePath string
	PeerID       string
	LocalHash    string
	LocalMtime   int64
	RemoteHash   string
	RemoteMtime  int64
	DetectedAt   time.Time
}

// ErrConflictUnresolved is returned when the conflict collaborator must be
// consulted and no auto-resolution policy applies.
var ErrConflictUnresolved = errors.New("syncengine: conflict requires manual resolution")

// ErrHashMismatch is returned when a received file body's streamed hash
// does not match the FileEnd frame's declared hash.
var ErrHashMismatch = errors.New("syncengine: received body hash mismatch")

// ErrGated is returned when an outgoing or inbound-apply operation is
// currently suppressed by schedule, power, or pause gating.
var ErrGated = errors.New("syncengine: operation deferred by gating policy")

// PowerStatus is the collaborator reporting the host's current power state
// (§4.5 gating); implemented externally (OS-specific, a Non-goal here).
type PowerStatus interface {
	IsOnBattery() bool
	BatteryPercent() int
}

// staticPower is a PowerStatus that never defers, used when no collaborator
// is wired (e.g. headless servers permanently on mains power).
type staticPower struct{}

func (staticPower) IsOnBattery() bool   { return false }
func (staticPower) BatteryPercent() int { return 100 }

// ConflictCollaborator surfaces unresolved conflicts to the user and
// returns the chosen resolution; implemented externally (tray app, CLI
// prompt, etc.).
type ConflictCollaborator interface {
	Resolve(c ConflictRecord) Resolution
}
