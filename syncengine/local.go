// SPDX-License-Identifier: LGPL-3.0-or-later

package syncengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nordicnode/swarm/activity"
	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/internal/logger"
	"github.com/nordicnode/swarm/state"
)

// PeerSender abstracts the transport layer as far as the local pipeline is
// concerned: one online, trusted, sync-enabled peer to push a change to.
type PeerSender interface {
	PeerID() string
	HasPriorVersion(relativePath string) bool
	SendCreate(lc LocalChange, size int64, hash string, modifiedAt int64) error
	SendUpdate(lc LocalChange, size int64, hash string, modifiedAt int64) error
	SendDelta(lc LocalChange, size int64, hash string, modifiedAt int64) error
	SendDelete(relativePath string) error
	SendRename(oldPath, newPath string) error
}

// LocalPipeline implements §4.5's six-step local change pipeline.
type LocalPipeline struct {
	SyncRoot string
	Repo     state.Repository
	Versions *activity.VersionStore
	Log      *activity.Log
	Gate     *Gate
	Peers    func() []PeerSender
}

// Process runs one local change through the full pipeline. Steps 1
// (ignore-filtering) have already happened in the watcher; this picks up
// at step 2.
func (p *LocalPipeline) Process(lc LocalChange) error {
	now := time.Now()

	if lc.IsDirectory {
		return p.processDirectory(lc)
	}

	switch lc.Kind {
	case ChangeCreate, ChangeUpdate:
		return p.processContentChange(lc, now)
	case ChangeDelete:
		return p.processDelete(lc, now)
	case ChangeRename:
		return p.processRename(lc, now)
	default:
		return fmt.Errorf("syncengine: unknown local change kind %q", lc.Kind)
	}
}

func (p *LocalPipeline) processDirectory(lc LocalChange) error {
	if lc.Kind == ChangeDelete {
		return p.Repo.Remove(lc.RelativePath)
	}
	return p.Repo.AddOrUpdate(&state.SyncedFile{
		RelativePath: lc.RelativePath,
		IsDirectory:  true,
		Action:       state.Action(lc.Kind),
		LastModified: lc.DetectedAt.UnixMilli(),
	})
}

func (p *LocalPipeline) processContentChange(lc LocalChange, now time.Time) error {
	full := filepath.Join(p.SyncRoot, lc.RelativePath)
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // file vanished between event and processing; next event will settle it
		}
		return fmt.Errorf("syncengine: open %s: %w", lc.RelativePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("syncengine: stat %s: %w", lc.RelativePath, err)
	}
	hash, err := crypto.HashFile(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("syncengine: hash %s: %w", lc.RelativePath, err)
	}

	existing, err := p.Repo.Get(lc.RelativePath)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return fmt.Errorf("syncengine: lookup %s: %w", lc.RelativePath, err)
	}
	if existing != nil && existing.ContentHash == hash {
		return nil // benign touch, same content
	}

	if existing != nil {
		if _, err := p.Versions.Snapshot(lc.RelativePath, "local "+string(lc.Kind), now); err != nil {
			logger.Warn("syncengine: version snapshot failed", logger.String("path", lc.RelativePath), logger.Error(err))
		}
	}

	action := state.ActionCreate
	if existing != nil {
		action = state.ActionUpdate
	}
	modifiedAt := info.ModTime().UnixMilli()
	if err := p.Repo.AddOrUpdate(&state.SyncedFile{
		RelativePath: lc.RelativePath,
		ContentHash:  hash,
		Size:         info.Size(),
		LastModified: modifiedAt,
		Action:       action,
		SourcePeerID: "",
	}); err != nil {
		return fmt.Errorf("syncengine: upsert %s: %w", lc.RelativePath, err)
	}

	p.dispatch(lc, action, info.Size(), hash, modifiedAt, now)
	p.appendLog(lc.RelativePath, activity.TypeLocalChange, fmt.Sprintf("local %s", action))
	return nil
}

func (p *LocalPipeline) processDelete(lc LocalChange, now time.Time) error {
	existing, err := p.Repo.Get(lc.RelativePath)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := p.Versions.Snapshot(lc.RelativePath, "local delete", now); err != nil {
		// The file is already gone from disk by the time Delete fires, so a
		// snapshot is only possible if it was captured earlier; absence here
		// is expected, not an error worth failing the pipeline over.
		logger.Debug("syncengine: no pre-delete snapshot available", logger.String("path", lc.RelativePath))
	}
	_ = existing

	if err := p.Repo.Remove(lc.RelativePath); err != nil {
		return err
	}

	if p.Peers != nil {
		for _, peer := range p.Peers() {
			if !p.Gate.AllowOutgoing(now, 0) {
				continue
			}
			if err := peer.SendDelete(lc.RelativePath); err != nil {
				logger.Warn("syncengine: send delete failed", logger.String("peer", peer.PeerID()), logger.Error(err))
			}
		}
	}
	p.appendLog(lc.RelativePath, activity.TypeLocalChange, "local delete")
	return nil
}

func (p *LocalPipeline) processRename(lc LocalChange, now time.Time) error {
	existing, err := p.Repo.Get(lc.OldPath)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return err
	}
	hash := ""
	var size int64
	if existing != nil {
		hash = existing.ContentHash
		size = existing.Size
	}
	if err := p.Repo.Remove(lc.OldPath); err != nil {
		return err
	}
	if err := p.Repo.AddOrUpdate(&state.SyncedFile{
		RelativePath: lc.RelativePath,
		ContentHash:  hash,
		Size:         size,
		LastModified: now.UnixMilli(),
		Action:       state.ActionRename,
		OldPath:      lc.OldPath,
	}); err != nil {
		return err
	}

	if p.Peers != nil {
		for _, peer := range p.Peers() {
			if !p.Gate.AllowOutgoing(now, 0) {
				continue
			}
			if err := peer.SendRename(lc.OldPath, lc.RelativePath); err != nil {
				logger.Warn("syncengine: send rename failed", logger.String("peer", peer.PeerID()), logger.Error(err))
			}
		}
	}
	p.appendLog(lc.RelativePath, activity.TypeLocalChange, "local rename from "+lc.OldPath)
	return nil
}

// dispatch sends the change to every online trusted sync-enabled peer,
// using the delta path for large updates to peers known to hold a prior
// version (§4.5 step 5).
func (p *LocalPipeline) dispatch(lc LocalChange, action state.Action, size int64, hash string, modifiedAt int64, now time.Time) {
	if p.Peers == nil {
		return
	}
	for _, peer := range p.Peers() {
		if !p.Gate.AllowOutgoing(now, size) {
			continue
		}
		var err error
		switch {
		case action == state.ActionUpdate && size >= DeltaThresholdBytes && peer.HasPriorVersion(lc.RelativePath):
			err = peer.SendDelta(lc, size, hash, modifiedAt)
		case action == state.ActionCreate:
			err = peer.SendCreate(lc, size, hash, modifiedAt)
		default:
			err = peer.SendUpdate(lc, size, hash, modifiedAt)
		}
		if err != nil {
			logger.Warn("syncengine: dispatch to peer failed", logger.String("peer", peer.PeerID()), logger.String("path", lc.RelativePath), logger.Error(err))
		}
	}
}

func (p *LocalPipeline) appendLog(relPath string, typ activity.EntryType, message string) {
	if p.Log == nil {
		return
	}
	if err := p.Log.Append(activity.Entry{
		TimestampMs:  time.Now().UnixMilli(),
		Type:         typ,
		Severity:     activity.SeverityInfo,
		Message:      message,
		RelativePath: relPath,
	}); err != nil {
		logger.Warn("syncengine: activity log append failed", logger.Error(err))
	}
}
