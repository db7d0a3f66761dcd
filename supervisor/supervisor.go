// SPDX-License-Identifier: LGPL-3.0-or-later

package supervisor

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nordicnode/swarm/activity"
	"github.com/nordicnode/swarm/config"
	swarmcrypto "github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/delta"
	"github.com/nordicnode/swarm/discovery"
	"github.com/nordicnode/swarm/health"
	"github.com/nordicnode/swarm/ignore"
	"github.com/nordicnode/swarm/internal/logger"
	"github.com/nordicnode/swarm/state"
	"github.com/nordicnode/swarm/syncengine"
	"github.com/nordicnode/swarm/transport"
	"github.com/nordicnode/swarm/vault"
)

// Supervisor owns the lifecycle of every running subsystem: identity,
// discovery, transport, the state repository, per-folder vaults, and the
// sync engine (§5 "Concurrency and resource model", §6 "Supervisor").
type Supervisor struct {
	cfg      *config.Config
	identity swarmcrypto.KeyPair

	repo   state.Repository
	log    *activity.Log
	engine *syncengine.Engine

	table     *discovery.Table
	beacon    *discovery.Service
	listener  *transport.Listener
	maxFrame  uint32

	vaults   map[string]*vault.Vault
	vaultsMu sync.Mutex

	peersMu sync.Mutex
	peers   map[string]*connPeer

	health *health.HealthChecker
}

// New wires every subsystem from cfg but does not start any of them; call
// Run to start. identity is the already-unlocked long-lived identity key,
// typically loaded from keystore via cmd/swarmd before this is called.
func New(cfg *config.Config, identity swarmcrypto.KeyPair) (*Supervisor, error) {
	statePath := "state.db"
	if cfg.State != nil && cfg.State.DatabasePath != "" {
		statePath = cfg.State.DatabasePath
	}
	repo, err := state.Open(statePath)
	if err != nil {
		return nil, fmt.Errorf("supervisor: open state repository: %w", err)
	}

	logPath := filepath.Join(cfg.SyncFolderPath, ".swarm", "activity.log")
	alog, err := activity.Open(logPath, 0)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("supervisor: open activity log: %w", err)
	}

	s := &Supervisor{
		cfg:      cfg,
		identity: identity,
		repo:     repo,
		log:      alog,
		vaults:   make(map[string]*vault.Vault),
		peers:    make(map[string]*connPeer),
		maxFrame: transport.DefaultMaxFrameBytes,
	}
	if cfg.Transport != nil && cfg.Transport.MaxFrameBytes > 0 {
		s.maxFrame = cfg.Transport.MaxFrameBytes
	}

	matcher := ignore.NewMatcher(cfg.SyncFolderPath, append([]string{".swarm", ".swarm-vault"}, cfg.ExcludedFolders...))

	engCfg := syncengine.Config{
		SyncRoot:        cfg.SyncFolderPath,
		ExcludedFolders: cfg.ExcludedFolders,
	}
	engine, err := syncengine.New(engCfg, cfg.Schedule, repo, alog, s.onlinePeers, nil, s.trustedPeer)
	if err != nil {
		repo.Close()
		alog.Close()
		return nil, fmt.Errorf("supervisor: build sync engine: %w", err)
	}
	s.engine = engine

	if cfg.IsSyncCurrentlyPaused {
		switch {
		case cfg.PauseUntil == nil:
			engine.Gate().Pause(time.Now(), 0)
		case time.Until(*cfg.PauseUntil) > 0:
			engine.Gate().Pause(time.Now(), time.Until(*cfg.PauseUntil))
		}
	}

	for _, dir := range cfg.EncryptedFolders {
		if ignored, err := matcher.Match(dir, true); err == nil && ignored {
			logger.Warn("supervisor: encrypted folder is excluded from sync, skipping", logger.String("dir", dir))
			continue
		}
		v, err := vault.Open(dir)
		if err != nil {
			logger.Warn("supervisor: encrypted folder not yet initialized, skipping", logger.String("dir", dir), logger.Error(err))
			continue
		}
		s.vaults[dir] = v
	}

	s.health = health.NewHealthChecker(0)
	s.health.RegisterCheck("state_repository", health.StateRepositoryHealthCheck(func(ctx context.Context) error {
		_, err := repo.Count()
		return err
	}))

	return s, nil
}

// Run starts discovery, the transport listener, and the sync engine, and
// blocks until ctx is cancelled or a component fails fatally.
func (s *Supervisor) Run(ctx context.Context) error {
	trust := trustStoreFunc(s.isTrustedKey)

	table := discovery.NewTable(trust)
	s.table = table

	beaconPort := discovery.DefaultBeaconPort
	portStart, portEnd := transport.DefaultPortRangeStart, transport.DefaultPortRangeEnd
	if s.cfg.Discovery != nil && s.cfg.Discovery.BeaconPort != 0 {
		beaconPort = s.cfg.Discovery.BeaconPort
	}
	if s.cfg.Transport != nil {
		if s.cfg.Transport.PortRangeStart != 0 {
			portStart = s.cfg.Transport.PortRangeStart
		}
		if s.cfg.Transport.PortRangeEnd != 0 {
			portEnd = s.cfg.Transport.PortRangeEnd
		}
	}

	listener, err := transport.Listen("0.0.0.0", portStart, portEnd)
	if err != nil {
		return fmt.Errorf("supervisor: start transport listener: %w", err)
	}
	s.listener = listener

	selfBeacon := func() discovery.Beacon {
		return discovery.Beacon{
			PeerID:         s.cfg.LocalID,
			PeerName:       s.cfg.DeviceName,
			TransferPort:   listener.Port,
			IdentityPubKey: mustIdentityPublicBytes(s.identity),
			SyncEnabled:    s.cfg.IsSyncEnabled,
		}
	}
	beacon, err := discovery.Open("0.0.0.0", "255.255.255.255", beaconPort, table, selfBeacon)
	if err != nil {
		listener.Close()
		return fmt.Errorf("supervisor: open discovery beacon: %w", err)
	}
	s.beacon = beacon

	s.health.RegisterCheck("transport_listener", health.TransportHealthCheck(func(ctx context.Context) error {
		if s.listener == nil || s.listener.Addr() == nil {
			return fmt.Errorf("transport listener not bound")
		}
		return nil
	}))
	s.health.RegisterCheck("discovery_beacon", health.DiscoveryHealthCheck(func(ctx context.Context) error {
		if s.beacon == nil {
			return fmt.Errorf("discovery beacon not open")
		}
		return nil
	}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { beacon.Run(); return nil })
	g.Go(func() error { return s.acceptLoop(gctx) })
	if s.cfg.Health != nil && s.cfg.Health.Enabled {
		g.Go(func() error { return s.runHealthServer(gctx) })
	}
	g.Go(func() error { s.engine.Run(); return nil })
	g.Go(func() error { return s.watchPeerTable(gctx) })

	<-gctx.Done()
	s.shutdown()
	return g.Wait()
}

func (s *Supervisor) shutdown() {
	if s.beacon != nil {
		s.beacon.Close()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.engine != nil {
		s.engine.Stop()
	}
	s.vaultsMu.Lock()
	for _, v := range s.vaults {
		v.Close()
	}
	s.vaultsMu.Unlock()
	s.repo.Close()
	s.log.Close()
}

// runHealthServer serves s.health's system status over HTTP until ctx is
// cancelled, per cfg.Health's addr/path.
func (s *Supervisor) runHealthServer(ctx context.Context) error {
	path := "/health"
	if s.cfg.Health.Path != "" {
		path = s.cfg.Health.Path
	}
	mux := http.NewServeMux()
	mux.Handle(path, health.Handler(s.health))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", s.cfg.Health.Port), Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("supervisor: health server: %w", err)
		}
		return nil
	}
}

func (s *Supervisor) acceptLoop(ctx context.Context) error {
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("supervisor: accept: %w", err)
			}
		}
		go s.handleAccepted(raw)
	}
}

func (s *Supervisor) handleAccepted(raw net.Conn) {
	result, err := runHandshake(raw, s.identity, s.cfg.LocalID, s.cfg.DeviceName, false, s.maxFrame)
	if err != nil {
		logger.Warn("supervisor: inbound handshake failed", logger.Error(err))
		raw.Close()
		return
	}
	if !s.isTrustedKey(result.PeerID, result.IdentityPub) {
		logger.Debug("supervisor: rejecting connection from untrusted peer", logger.String("peer", result.PeerID))
		raw.Close()
		return
	}
	s.registerPeer(result.PeerID, raw, result.Session)
}

func (s *Supervisor) registerPeer(peerID string, raw net.Conn, session *transport.Session) {
	conn := transport.NewConn(raw, session, s.maxFrame)
	peer := newConnPeer(peerID, s.cfg.SyncFolderPath, conn)
	s.wireInboundHandlers(peerID, peer, conn)

	s.peersMu.Lock()
	s.peers[peerID] = peer
	s.peersMu.Unlock()

	if s.log != nil {
		_ = s.log.Append(activity.Entry{
			TimestampMs: time.Now().UnixMilli(),
			Type:        activity.TypePeerEvent,
			Severity:    activity.SeverityInfo,
			Message:     "peer connected",
			PeerID:      peerID,
		})
	}

	if err := s.sendManifest(peer); err != nil {
		logger.Warn("supervisor: send manifest failed", logger.String("peer", peerID), logger.Error(err))
	}
}

// sendManifest sends this node's full repository snapshot to peer so it can
// learn which files we already hold a prior version of (§4.5 "Full rescan",
// enabling the delta-vs-full dispatch decision).
func (s *Supervisor) sendManifest(peer *connPeer) error {
	snapshot, err := s.repo.AsSnapshot()
	if err != nil {
		return fmt.Errorf("supervisor: snapshot repository: %w", err)
	}
	entries := make([]transport.ManifestEntry, 0, len(snapshot))
	for _, f := range snapshot {
		entries = append(entries, transport.ManifestEntry{
			RelativePath: f.RelativePath,
			ContentHash:  f.ContentHash,
			Size:         f.Size,
			ModifiedAt:   f.LastModified,
			IsDirectory:  f.IsDirectory,
		})
	}
	return peer.sendJSON(transport.KindManifest, transport.ManifestPayload{Entries: entries})
}

// wireInboundHandlers registers the remote-pipeline side of every frame
// kind the engine can receive from peerID.
func (s *Supervisor) wireInboundHandlers(peerID string, peer *connPeer, conn *transport.Conn) {
	inbound := newFileAssembler(peerID, s.engine.Remote())

	conn.OnKind(transport.KindManifest, func(kind transport.Kind, payload []byte) error {
		var m transport.ManifestPayload
		if err := json.Unmarshal(payload, &m); err != nil {
			return err
		}
		for _, entry := range m.Entries {
			peer.NoteManifestEntry(entry.RelativePath)
		}
		return nil
	})
	conn.OnKind(transport.KindSignaturesRequest, func(kind transport.Kind, payload []byte) error {
		var req transport.SignaturesRequestPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return err
		}
		return s.onSignaturesRequest(peer, req)
	})
	conn.OnKind(transport.KindSignatures, func(kind transport.Kind, payload []byte) error {
		var sigs transport.SignaturesPayload
		if err := json.Unmarshal(payload, &sigs); err != nil {
			return err
		}
		peer.deliverSignatures(sigs.TransferID, sigs)
		return nil
	})
	deltas := newDeltaAssembler(peerID, s.cfg.SyncFolderPath, s.engine.Remote())
	conn.OnKind(transport.KindDeltaData, func(kind transport.Kind, payload []byte) error {
		var d transport.DeltaDataPayload
		if err := json.Unmarshal(payload, &d); err != nil {
			return err
		}
		return deltas.onData(d)
	})
	conn.OnKind(transport.KindFileHeader, func(kind transport.Kind, payload []byte) error {
		var h transport.FileHeaderPayload
		if err := json.Unmarshal(payload, &h); err != nil {
			return err
		}
		inbound.onHeader(h)
		return nil
	})
	conn.OnKind(transport.KindFileChunk, func(kind transport.Kind, payload []byte) error {
		var c transport.FileChunkPayload
		if err := json.Unmarshal(payload, &c); err != nil {
			return err
		}
		return inbound.onChunk(c)
	})
	conn.OnKind(transport.KindFileEnd, func(kind transport.Kind, payload []byte) error {
		var e transport.FileEndPayload
		if err := json.Unmarshal(payload, &e); err != nil {
			return err
		}
		return inbound.onEnd(e)
	})
	conn.OnKind(transport.KindDelete, func(kind transport.Kind, payload []byte) error {
		var d transport.DeletePayload
		if err := json.Unmarshal(payload, &d); err != nil {
			return err
		}
		return s.engine.Remote().ApplyDelete(peerID, d.RelativePath)
	})
	conn.OnKind(transport.KindRename, func(kind transport.Kind, payload []byte) error {
		var r transport.RenamePayload
		if err := json.Unmarshal(payload, &r); err != nil {
			return err
		}
		return s.engine.Remote().ApplyRename(peerID, r.OldPath, r.NewPath)
	})
}

// onSignaturesRequest signs our copy of req.RelativePath and answers with
// its block signatures, the first leg of the delta-transfer subprotocol
// (§4.7). A missing file answers with an empty signature set, telling the
// peer to send the whole thing as literal data.
func (s *Supervisor) onSignaturesRequest(peer *connPeer, req transport.SignaturesRequestPayload) error {
	f, err := os.Open(filepath.Join(s.cfg.SyncFolderPath, req.RelativePath))
	if err != nil {
		if os.IsNotExist(err) {
			return peer.sendJSON(transport.KindSignatures, transport.SignaturesPayload{
				TransferID: req.TransferID,
				BlockSize:  delta.BlockSize,
			})
		}
		return fmt.Errorf("supervisor: open %s for signing: %w", req.RelativePath, err)
	}
	defer f.Close()

	sigs, err := delta.Sign(f)
	if err != nil {
		return fmt.Errorf("supervisor: sign %s: %w", req.RelativePath, err)
	}

	blocks := make([]transport.SignatureBlock, 0, len(sigs))
	for _, sig := range sigs {
		blocks = append(blocks, transport.SignatureBlock{
			Index:          int64(sig.Index),
			WeakChecksum:   sig.Weak,
			StrongChecksum: hex.EncodeToString(sig.Strong[:]),
		})
	}

	return peer.sendJSON(transport.KindSignatures, transport.SignaturesPayload{
		TransferID: req.TransferID,
		BlockSize:  delta.BlockSize,
		Blocks:     blocks,
	})
}

// onlinePeers is passed to the sync engine as its peer source: every
// currently connected, trusted peer.
func (s *Supervisor) onlinePeers() []syncengine.PeerSender {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()
	out := make([]syncengine.PeerSender, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *Supervisor) trustedPeer(peerID string) (config.TrustedPeer, bool) {
	for _, tp := range s.cfg.TrustedPeers {
		if tp.PeerID == peerID {
			return tp, true
		}
	}
	return config.TrustedPeer{}, false
}

func (s *Supervisor) isTrustedKey(peerID string, identityPubKey []byte) bool {
	tp, ok := s.trustedPeer(peerID)
	if !ok {
		return false
	}
	return tp.IdentityPubKeyFingerprint == swarmcrypto.HashBytes(identityPubKey)
}

// watchPeerTable dials newly discovered trusted peers that aren't already
// connected, turning discovery sightings into live transport connections.
func (s *Supervisor) watchPeerTable(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.dialNewTrustedPeers()
		}
	}
}

func (s *Supervisor) dialNewTrustedPeers() {
	for _, peer := range s.table.Snapshot() {
		if !peer.Trusted {
			continue
		}
		s.peersMu.Lock()
		_, connected := s.peers[peer.PeerID]
		s.peersMu.Unlock()
		if connected {
			continue
		}
		addr := fmt.Sprintf("%s:%d", hostOf(peer.Addr), peer.TransferPort)
		raw, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			logger.Debug("supervisor: dial peer failed", logger.String("peer", peer.PeerID), logger.Error(err))
			continue
		}
		result, err := runHandshake(raw, s.identity, s.cfg.LocalID, s.cfg.DeviceName, true, s.maxFrame)
		if err != nil {
			logger.Warn("supervisor: outbound handshake failed", logger.String("peer", peer.PeerID), logger.Error(err))
			raw.Close()
			continue
		}
		s.registerPeer(result.PeerID, raw, result.Session)
	}
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func mustIdentityPublicBytes(identity swarmcrypto.KeyPair) []byte {
	b, err := identityPublicBytes(identity)
	if err != nil {
		return nil
	}
	return b
}

type trustStoreFunc func(peerID string, identityPubKey []byte) bool

func (f trustStoreFunc) IsTrusted(peerID string, identityPubKey []byte) bool { return f(peerID, identityPubKey) }

// fileAssembler reassembles one peer's FileHeader/FileChunk*/FileEnd
// subprotocol into a single IncomingFile applied through RemotePipeline.
type fileAssembler struct {
	peerID string
	remote *syncengine.RemotePipeline

	mu      sync.Mutex
	current map[string]*pendingTransfer
}

type pendingTransfer struct {
	header transport.FileHeaderPayload
	pr     *io.PipeReader
	pw     *io.PipeWriter
	done   chan error
}

func newFileAssembler(peerID string, remote *syncengine.RemotePipeline) *fileAssembler {
	return &fileAssembler{peerID: peerID, remote: remote, current: make(map[string]*pendingTransfer)}
}

func (a *fileAssembler) onHeader(h transport.FileHeaderPayload) {
	pr, pw := io.Pipe()
	t := &pendingTransfer{header: h, pr: pr, pw: pw, done: make(chan error, 1)}

	a.mu.Lock()
	a.current[h.TransferID] = t
	a.mu.Unlock()

	go func() {
		t.done <- a.remote.ApplyFile(a.peerID, syncengine.IncomingFile{
			RelativePath: h.RelativePath,
			Size:         h.Size,
			Hash:         h.Hash,
			ModifiedAt:   h.ModifiedAt,
			Body:         pr,
		})
	}()
}

func (a *fileAssembler) onChunk(c transport.FileChunkPayload) error {
	a.mu.Lock()
	t, ok := a.current[c.TransferID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: chunk for unknown transfer %s", c.TransferID)
	}
	_, err := t.pw.Write(c.Bytes)
	return err
}

func (a *fileAssembler) onEnd(e transport.FileEndPayload) error {
	a.mu.Lock()
	t, ok := a.current[e.TransferID]
	delete(a.current, e.TransferID)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: end for unknown transfer %s", e.TransferID)
	}
	t.pw.Close()
	return <-t.done
}

// deltaAssembler accumulates one peer's DeltaDataPayload stream per transfer
// ID into a delta.Instruction list, then reconstructs and applies the file
// against our existing on-disk copy once the Final frame arrives (§4.7).
type deltaAssembler struct {
	peerID   string
	syncRoot string
	remote   *syncengine.RemotePipeline

	mu      sync.Mutex
	pending map[string][]delta.Instruction
}

func newDeltaAssembler(peerID, syncRoot string, remote *syncengine.RemotePipeline) *deltaAssembler {
	return &deltaAssembler{peerID: peerID, syncRoot: syncRoot, remote: remote, pending: make(map[string][]delta.Instruction)}
}

func (a *deltaAssembler) onData(d transport.DeltaDataPayload) error {
	a.mu.Lock()
	instructions := a.pending[d.TransferID]
	a.mu.Unlock()

	if d.IsCopy {
		instructions = append(instructions, delta.Instruction{
			Kind:             delta.KindCopy,
			SourceBlockIndex: int(d.CopyBlock),
			Length:           int(d.CopyLength),
		})
	} else if len(d.Bytes) > 0 {
		instructions = append(instructions, delta.Instruction{Kind: delta.KindInsert, Bytes: d.Bytes})
	}

	if !d.Final {
		a.mu.Lock()
		a.pending[d.TransferID] = instructions
		a.mu.Unlock()
		return nil
	}

	a.mu.Lock()
	delete(a.pending, d.TransferID)
	a.mu.Unlock()

	base, err := os.Open(filepath.Join(a.syncRoot, d.RelativePath))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("supervisor: open base file %s for delta reconstruct: %w", d.RelativePath, err)
	}
	if base == nil {
		base, err = os.Open(os.DevNull)
		if err != nil {
			return fmt.Errorf("supervisor: open empty base for delta reconstruct: %w", err)
		}
	}
	defer base.Close()

	content, err := delta.Reconstruct(base, instructions, d.FinalHash)
	if err != nil {
		return fmt.Errorf("supervisor: reconstruct %s from delta: %w", d.RelativePath, err)
	}

	return a.remote.ApplyFile(a.peerID, syncengine.IncomingFile{
		RelativePath: d.RelativePath,
		Size:         d.Size,
		Hash:         d.FinalHash,
		ModifiedAt:   d.ModifiedAt,
		Body:         bytes.NewReader(content),
	})
}
