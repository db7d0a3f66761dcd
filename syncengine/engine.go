// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nordicnode/swarm/activity"
	"github.com/nordicnode/swarm/config"
	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/ignore"
	"github.com/nordicnode/swarm/internal/logger"
	"github.com/nordicnode/swarm/state"
)

// Config bundles an Engine's tunables; zero values are defaulted from the
// package constants (§4.5, §9 Open Question ii). DeltaThresholdBytes is
// stored but not read: the local pipeline's delta dispatch compares against
// the package constant DeltaThresholdBytes.
type Config struct {
	SyncRoot            string
	DeltaThresholdBytes int64
	RescanInterval      time.Duration
	ExcludedFolders     []string
}

func (c *Config) setDefaults() {
	if c.DeltaThresholdBytes == 0 {
		c.DeltaThresholdBytes = DeltaThresholdBytes
	}
	if c.RescanInterval == 0 {
		c.RescanInterval = DefaultRescanInterval
	}
}

// Engine wires the watcher, local and remote pipelines, gating, and
// periodic rescan into one component (§4.5).
type Engine struct {
	cfg     Config
	matcher *ignore.Matcher
	watcher *Watcher
	renames *RenameCoalescer
	local   *LocalPipeline
	remote  *RemotePipeline
	gate    *Gate
	repo    state.Repository

	mu         sync.Mutex
	fileStates map[string]FileStateKind

	pendingMu      sync.Mutex
	pendingDeletes map[string]LocalChange // keyed by relative path, withheld pending a matching Create

	stopRescan chan struct{}
	rescanDone chan struct{}

	stopRenameSweep chan struct{}
	renameSweepDone chan struct{}
}

// New builds an Engine. peers supplies the set of online trusted
// sync-enabled peers to dispatch local changes to; trustedPeers resolves a
// peer ID to its persisted trust record for conflict auto-resolution.
func New(cfg Config, schedule config.SyncSchedule, repo state.Repository, log *activity.Log,
	peers func() []PeerSender, conflicts ConflictCollaborator, trustedPeers func(string) (config.TrustedPeer, bool)) (*Engine, error) {
	cfg.setDefaults()

	matcher := ignore.NewMatcher(filepath.Join(cfg.SyncRoot, ".swarmignore"), alwaysExcluded(cfg.ExcludedFolders))
	watcher, err := NewWatcher(cfg.SyncRoot, matcher)
	if err != nil {
		return nil, err
	}
	versions := activity.NewVersionStore(cfg.SyncRoot)
	gate := NewGate(schedule)

	e := &Engine{
		cfg:             cfg,
		matcher:         matcher,
		watcher:         watcher,
		renames:         NewRenameCoalescer(),
		repo:            repo,
		gate:            gate,
		fileStates:      make(map[string]FileStateKind),
		pendingDeletes:  make(map[string]LocalChange),
		stopRescan:      make(chan struct{}),
		rescanDone:      make(chan struct{}),
		stopRenameSweep: make(chan struct{}),
		renameSweepDone: make(chan struct{}),
	}
	e.local = &LocalPipeline{SyncRoot: cfg.SyncRoot, Repo: repo, Versions: versions, Log: log, Gate: gate, Peers: peers}
	e.remote = &RemotePipeline{SyncRoot: cfg.SyncRoot, Repo: repo, Versions: versions, Log: log, Gate: gate, Conflicts: conflicts, TrustedPeers: trustedPeers}
	return e, nil
}

// alwaysExcluded prepends the dot-directories that are never synced (§4.5
// step 1) to the user-configured excluded folders.
func alwaysExcluded(userExcluded []string) []string {
	return append([]string{".swarm-vault", ".swarm"}, userExcluded...)
}

// Remote returns the pipeline responsible for applying frames received
// from peers, wired for the transport layer's frame handlers.
func (e *Engine) Remote() *RemotePipeline { return e.remote }

// Gate returns the engine's schedule/power/pause gate, so the supervisor
// can wire pause commands and power-status updates into it.
func (e *Engine) Gate() *Gate { return e.gate }

// Run starts the watcher and the periodic rescan loop; it blocks
// processing local changes until Stop is called.
func (e *Engine) Run() {
	go e.watcher.Run()
	go e.rescanLoop()
	go e.renameSweepLoop()

	for lc := range e.watcher.Events() {
		e.setState(lc.RelativePath, StateHashing)
		resolved, withheld := e.coalesceRename(lc)
		if withheld {
			continue
		}
		if err := e.local.Process(resolved); err != nil {
			logger.Warn("syncengine: local pipeline error", logger.String("path", resolved.RelativePath), logger.Error(err))
			e.setState(resolved.RelativePath, StateErrored)
			continue
		}
		e.setState(resolved.RelativePath, StateIdle)
	}
}

// coalesceRename checks a Delete/Create pair for a content-hash match
// within RenameCoalesceWindow, collapsing them into a single Rename event
// (§4.5 "Rename handling"). A Delete with a known prior hash is withheld
// (withheld=true) rather than dispatched immediately, since dispatching it
// right away would fan out a SendDelete to every peer before the matching
// Create has a chance to arrive; renameSweepLoop flushes it as a bare
// Delete once RenameCoalesceWindow passes with no match.
func (e *Engine) coalesceRename(lc LocalChange) (resolved LocalChange, withheld bool) {
	now := time.Now()
	switch lc.Kind {
	case ChangeDelete:
		hash := e.lastKnownHash(lc.RelativePath)
		if hash == "" {
			return lc, false
		}
		e.renames.ObserveDelete(lc.RelativePath, hash, now)
		e.pendingMu.Lock()
		e.pendingDeletes[lc.RelativePath] = lc
		e.pendingMu.Unlock()
		return lc, true
	case ChangeCreate:
		hash, exists := e.diskHash(lc.RelativePath)
		if !exists {
			return lc, false
		}
		if oldPath, matched := e.renames.ObserveCreate(hash, now); matched {
			e.pendingMu.Lock()
			delete(e.pendingDeletes, oldPath)
			e.pendingMu.Unlock()
			return LocalChange{RelativePath: lc.RelativePath, OldPath: oldPath, Kind: ChangeRename, DetectedAt: lc.DetectedAt}, false
		}
		return lc, false
	default:
		return lc, false
	}
}

// renameSweepLoop periodically flushes Delete events that coalesceRename
// withheld but that never found a matching Create within
// RenameCoalesceWindow.
func (e *Engine) renameSweepLoop() {
	defer close(e.renameSweepDone)
	ticker := time.NewTicker(RenameSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopRenameSweep:
			return
		case <-ticker.C:
			e.flushExpiredDeletes()
		}
	}
}

func (e *Engine) flushExpiredDeletes() {
	for _, relPath := range e.renames.Sweep(time.Now()) {
		e.pendingMu.Lock()
		lc, ok := e.pendingDeletes[relPath]
		delete(e.pendingDeletes, relPath)
		e.pendingMu.Unlock()
		if !ok {
			continue
		}
		if err := e.local.Process(lc); err != nil {
			logger.Warn("syncengine: deferred delete processing error", logger.String("path", lc.RelativePath), logger.Error(err))
			e.setState(lc.RelativePath, StateErrored)
			continue
		}
		e.setState(lc.RelativePath, StateIdle)
	}
}

func (e *Engine) lastKnownHash(relPath string) string {
	rec, err := e.repo.Get(relPath)
	if err != nil || rec == nil {
		return ""
	}
	return rec.ContentHash
}

func (e *Engine) diskHash(relPath string) (string, bool) {
	f, err := os.Open(filepath.Join(e.cfg.SyncRoot, relPath))
	if err != nil {
		return "", false
	}
	defer f.Close()
	h, err := crypto.HashFile(f)
	if err != nil {
		return "", false
	}
	return h, true
}

func (e *Engine) rescanLoop() {
	defer close(e.rescanDone)
	e.doRescan()

	ticker := time.NewTicker(e.cfg.RescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopRescan:
			return
		case <-ticker.C:
			e.doRescan()
		}
	}
}

func (e *Engine) doRescan() {
	changes, err := Rescan(e.cfg.SyncRoot, e.matcher, e.repo)
	if err != nil {
		logger.Warn("syncengine: rescan failed", logger.Error(err))
		return
	}
	for _, lc := range changes {
		if err := e.local.Process(lc); err != nil {
			logger.Warn("syncengine: rescan-driven local pipeline error", logger.String("path", lc.RelativePath), logger.Error(err))
		}
	}
}

func (e *Engine) setState(relPath string, s FileStateKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fileStates[relPath] = s
}

// FileState returns the current engine-view state machine state for
// relPath, or StateIdle if unknown.
func (e *Engine) FileState(relPath string) FileStateKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.fileStates[relPath]; ok {
		return s
	}
	return StateIdle
}

// Stop halts the watcher, rescan loop, and rename-coalescing sweep loop.
func (e *Engine) Stop() error {
	close(e.stopRescan)
	close(e.stopRenameSweep)
	<-e.rescanDone
	<-e.renameSweepDone
	return e.watcher.Close()
}
