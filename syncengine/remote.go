// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nordicnode/swarm/activity"
	"github.com/nordicnode/swarm/config"
	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/internal/logger"
	"github.com/nordicnode/swarm/internal/metrics"
	"github.com/nordicnode/swarm/state"
)

// IncomingFile describes a file body arriving over one FileHeader +
// FileChunk* + FileEnd subprotocol, already reassembled by the transport
// layer into a readable stream.
type IncomingFile struct {
	RelativePath string
	Size         int64
	Hash         string
	ModifiedAt   int64
	Body         io.Reader
}

// RemotePipeline implements §4.5's six-step remote change pipeline,
// including conflict detection and resolution.
type RemotePipeline struct {
	SyncRoot     string
	Repo         state.Repository
	Versions     *activity.VersionStore
	Log          *activity.Log
	Gate         *Gate
	Conflicts    ConflictCollaborator
	TrustedPeers func(peerID string) (config.TrustedPeer, bool)
}

// ApplyFile applies an incoming file body from peerID, running conflict
// detection first.
func (p *RemotePipeline) ApplyFile(peerID string, in IncomingFile) error {
	now := time.Now()
	if !p.Gate.AllowInboundApply(now) {
		return ErrGated
	}

	record, err := p.Repo.Get(in.RelativePath)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return err
	}

	localHash, localExists := p.diskHash(in.RelativePath)

	decision := Detect(record, localHash, localExists, in.Hash, in.ModifiedAt, peerID, now.UnixMilli())
	if !decision.Accept {
		return p.handleConflict(peerID, in, record, decision, now)
	}
	return p.acceptIncoming(peerID, in, record, now)
}

func (p *RemotePipeline) handleConflict(peerID string, in IncomingFile, record *state.SyncedFile, decision Decision, now time.Time) error {
	c := *decision.Conflict
	c.RelativePath = in.RelativePath
	c.PeerID = peerID
	c.DetectedAt = now

	trust, _ := p.TrustedPeers(peerID)
	resolution := Resolve(c, trust, p.Conflicts)

	p.appendLog(in.RelativePath, peerID, activity.TypeConflict, activity.SeverityWarning,
		fmt.Sprintf("conflict with %s resolved as %s", peerID, resolution))

	switch resolution {
	case ResolutionKeepRemote:
		return p.acceptIncoming(peerID, in, record, now)
	case ResolutionKeepBoth:
		renamed := conflictCopyName(in.RelativePath, peerID, now)
		copyIn := in
		copyIn.RelativePath = renamed
		return p.acceptIncoming(peerID, copyIn, nil, now)
	case ResolutionKeepLocal, ResolutionSkip:
		return nil
	default:
		return ErrConflictUnresolved
	}
}

func conflictCopyName(relPath, peerID string, now time.Time) string {
	ext := filepath.Ext(relPath)
	base := relPath[:len(relPath)-len(ext)]
	return fmt.Sprintf("%s (conflict from %s %s)%s", base, peerID, now.UTC().Format("20060102T150405Z"), ext)
}

func (p *RemotePipeline) acceptIncoming(peerID string, in IncomingFile, record *state.SyncedFile, now time.Time) error {
	if record != nil {
		if _, err := p.Versions.Snapshot(in.RelativePath, "remote update from "+peerID, now); err != nil {
			logger.Warn("syncengine: version snapshot failed", logger.String("path", in.RelativePath), logger.Error(err))
		}
	}

	full := filepath.Join(p.SyncRoot, in.RelativePath)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("syncengine: create parent dirs for %s: %w", in.RelativePath, err)
	}
	tmp := full + ".swarm-tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("syncengine: create temp file for %s: %w", in.RelativePath, err)
	}

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, hasher), in.Body); err != nil {
		dst.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncengine: write body for %s: %w", in.RelativePath, err)
	}
	dst.Close()

	gotHash := hex.EncodeToString(hasher.Sum(nil))
	if gotHash != in.Hash {
		os.Remove(tmp)
		metrics.HashMismatches.Inc()
		return ErrHashMismatch
	}

	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("syncengine: finalize %s: %w", in.RelativePath, err)
	}

	action := state.ActionCreate
	if record != nil {
		action = state.ActionUpdate
	}
	if err := p.Repo.AddOrUpdate(&state.SyncedFile{
		RelativePath: in.RelativePath,
		ContentHash:  in.Hash,
		Size:         in.Size,
		LastModified: in.ModifiedAt,
		Action:       action,
		SourcePeerID: peerID,
		SyncedHash:   in.Hash,
		SyncedMtime:  in.ModifiedAt,
		LastSyncedAt: now.UnixMilli(),
	}); err != nil {
		return err
	}

	p.appendLog(in.RelativePath, peerID, activity.TypeRemoteChange, activity.SeverityInfo,
		fmt.Sprintf("applied remote %s from %s", action, peerID))
	return nil
}

// ApplyDelete applies a remote Delete frame.
func (p *RemotePipeline) ApplyDelete(peerID, relativePath string) error {
	now := time.Now()
	if !p.Gate.AllowInboundApply(now) {
		return ErrGated
	}
	if _, err := p.Versions.Snapshot(relativePath, "remote delete from "+peerID, now); err != nil {
		logger.Debug("syncengine: no pre-delete snapshot available", logger.String("path", relativePath))
	}
	if err := os.Remove(filepath.Join(p.SyncRoot, relativePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("syncengine: remove %s: %w", relativePath, err)
	}
	if err := p.Repo.Remove(relativePath); err != nil {
		return err
	}
	p.appendLog(relativePath, peerID, activity.TypeRemoteChange, activity.SeverityInfo, "applied remote delete from "+peerID)
	return nil
}

// ApplyRename applies a remote Rename frame.
func (p *RemotePipeline) ApplyRename(peerID, oldPath, newPath string) error {
	now := time.Now()
	if !p.Gate.AllowInboundApply(now) {
		return ErrGated
	}
	oldFull := filepath.Join(p.SyncRoot, oldPath)
	newFull := filepath.Join(p.SyncRoot, newPath)
	if err := os.MkdirAll(filepath.Dir(newFull), 0755); err != nil {
		return err
	}
	if err := os.Rename(oldFull, newFull); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("syncengine: rename %s -> %s: %w", oldPath, newPath, err)
	}

	existing, err := p.Repo.Get(oldPath)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return err
	}
	if err := p.Repo.Remove(oldPath); err != nil {
		return err
	}
	rec := &state.SyncedFile{RelativePath: newPath, Action: state.ActionRename, OldPath: oldPath, SourcePeerID: peerID, LastModified: now.UnixMilli()}
	if existing != nil {
		rec.ContentHash = existing.ContentHash
		rec.Size = existing.Size
	}
	if err := p.Repo.AddOrUpdate(rec); err != nil {
		return err
	}
	p.appendLog(newPath, peerID, activity.TypeRemoteChange, activity.SeverityInfo, "applied remote rename from "+oldPath)
	return nil
}

func (p *RemotePipeline) diskHash(relativePath string) (hash string, exists bool) {
	full := filepath.Join(p.SyncRoot, relativePath)
	f, err := os.Open(full)
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

func (p *RemotePipeline) appendLog(relPath, peerID string, typ activity.EntryType, sev activity.Severity, message string) {
	if p.Log == nil {
		return
	}
	if err := p.Log.Append(activity.Entry{
		TimestampMs:  time.Now().UnixMilli(),
		Type:         typ,
		Severity:     sev,
		Message:      message,
		RelativePath: relPath,
		PeerID:       peerID,
	}); err != nil {
		logger.Warn("syncengine: activity log append failed", logger.Error(err))
	}
}
