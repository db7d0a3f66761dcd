// SPDX-License-Identifier: LGPL-3.0-or-later

package supervisor

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nordicnode/swarm/delta"
	"github.com/nordicnode/swarm/syncengine"
	"github.com/nordicnode/swarm/transport"
)

// signatureResponseTimeout bounds how long SendDelta waits for a peer's
// SignaturesPayload before giving up on the delta path and falling back to
// a full-body send.
const signatureResponseTimeout = 10 * time.Second

// connPeer adapts one connected, trusted peer's transport.Conn to
// syncengine.PeerSender, turning the engine's abstract send calls into
// framed, JSON-encoded wire messages.
type connPeer struct {
	peerID   string
	syncRoot string
	conn     *transport.Conn

	mu            sync.Mutex
	priorVersions map[string]bool

	sigMu      sync.Mutex
	sigWaiters map[string]chan transport.SignaturesPayload
}

func newConnPeer(peerID, syncRoot string, conn *transport.Conn) *connPeer {
	return &connPeer{
		peerID:        peerID,
		syncRoot:      syncRoot,
		conn:          conn,
		priorVersions: make(map[string]bool),
		sigWaiters:    make(map[string]chan transport.SignaturesPayload),
	}
}

// awaitSignatures registers a waiter for transferID's SignaturesPayload
// response, to be delivered by deliverSignatures from the inbound frame
// handler.
func (p *connPeer) awaitSignatures(transferID string) chan transport.SignaturesPayload {
	ch := make(chan transport.SignaturesPayload, 1)
	p.sigMu.Lock()
	p.sigWaiters[transferID] = ch
	p.sigMu.Unlock()
	return ch
}

func (p *connPeer) cancelSignatureWait(transferID string) {
	p.sigMu.Lock()
	delete(p.sigWaiters, transferID)
	p.sigMu.Unlock()
}

// deliverSignatures is called by the inbound KindSignatures handler to wake
// up whichever SendDelta call is waiting on transferID, if any.
func (p *connPeer) deliverSignatures(transferID string, payload transport.SignaturesPayload) {
	p.sigMu.Lock()
	ch, ok := p.sigWaiters[transferID]
	if ok {
		delete(p.sigWaiters, transferID)
	}
	p.sigMu.Unlock()
	if ok {
		ch <- payload
	}
}

func (p *connPeer) PeerID() string { return p.peerID }

// HasPriorVersion reports whether this peer is known to already hold a
// previous copy of relativePath, making it eligible for a delta transfer
// instead of a full body send. Populated from manifest exchange; a miss
// here is safe, just forgoes the delta-path optimization.
func (p *connPeer) HasPriorVersion(relativePath string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.priorVersions[relativePath]
}

// NoteManifestEntry records that a peer's manifest claimed relativePath,
// called by the manifest-exchange handler once per entry.
func (p *connPeer) NoteManifestEntry(relativePath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.priorVersions[relativePath] = true
}

func (p *connPeer) SendCreate(lc syncengine.LocalChange, size int64, hash string, modifiedAt int64) error {
	return p.sendFileBody(lc.RelativePath, size, hash, modifiedAt)
}

func (p *connPeer) SendUpdate(lc syncengine.LocalChange, size int64, hash string, modifiedAt int64) error {
	return p.sendFileBody(lc.RelativePath, size, hash, modifiedAt)
}

// SendDelta asks the peer for its existing copy's block signatures, matches
// our new content against them, and streams only the copy/insert
// instructions rather than the whole file (§4.7). It falls back to a full
// body send if the peer doesn't answer in time.
func (p *connPeer) SendDelta(lc syncengine.LocalChange, size int64, hash string, modifiedAt int64) error {
	transferID := uuid.NewString()
	req := transport.SignaturesRequestPayload{
		RelativePath: lc.RelativePath,
		TransferID:   transferID,
		BlockSize:    delta.BlockSize,
	}
	ch := p.awaitSignatures(transferID)
	if err := p.sendJSON(transport.KindSignaturesRequest, req); err != nil {
		p.cancelSignatureWait(transferID)
		return fmt.Errorf("supervisor: request signatures for %s: %w", lc.RelativePath, err)
	}

	select {
	case sigs := <-ch:
		return p.sendDeltaStream(lc.RelativePath, size, hash, modifiedAt, transferID, sigs)
	case <-time.After(signatureResponseTimeout):
		p.cancelSignatureWait(transferID)
		return p.sendFileBody(lc.RelativePath, size, hash, modifiedAt)
	}
}

// sendDeltaStream matches our on-disk content against sigs and emits the
// resulting Copy/Insert instructions as DeltaDataPayload frames, terminated
// by a Final frame carrying the whole file's hash/size/modified time.
func (p *connPeer) sendDeltaStream(relativePath string, size int64, hash string, modifiedAt int64, transferID string, sigs transport.SignaturesPayload) error {
	content, err := os.ReadFile(filepath.Join(p.syncRoot, relativePath))
	if err != nil {
		return fmt.Errorf("supervisor: read %s for delta: %w", relativePath, err)
	}

	blockSigs := make([]delta.BlockSignature, 0, len(sigs.Blocks))
	for _, b := range sigs.Blocks {
		strongBytes, err := hex.DecodeString(b.StrongChecksum)
		if err != nil || len(strongBytes) != 32 {
			continue
		}
		var strong [32]byte
		copy(strong[:], strongBytes)
		blockSigs = append(blockSigs, delta.BlockSignature{Index: int(b.Index), Weak: b.WeakChecksum, Strong: strong})
	}

	instructions := delta.Match(content, delta.BuildIndex(blockSigs))

	if len(instructions) == 0 {
		return p.sendJSON(transport.KindDeltaData, transport.DeltaDataPayload{
			TransferID: transferID, RelativePath: relativePath,
			Final: true, FinalHash: hash, Size: size, ModifiedAt: modifiedAt,
		})
	}

	for i, instr := range instructions {
		payload := transport.DeltaDataPayload{TransferID: transferID, RelativePath: relativePath}
		if instr.Kind == delta.KindCopy {
			payload.IsCopy = true
			payload.CopyBlock = int64(instr.SourceBlockIndex)
			payload.CopyLength = int64(instr.Length)
		} else {
			payload.Bytes = instr.Bytes
		}
		if i == len(instructions)-1 {
			payload.Final = true
			payload.FinalHash = hash
			payload.Size = size
			payload.ModifiedAt = modifiedAt
		}
		if err := p.sendJSON(transport.KindDeltaData, payload); err != nil {
			return fmt.Errorf("supervisor: send delta op for %s: %w", relativePath, err)
		}
	}
	return nil
}

func (p *connPeer) sendFileBody(relativePath string, size int64, hash string, modifiedAt int64) error {
	transferID := uuid.NewString()

	header := transport.FileHeaderPayload{
		RelativePath: relativePath,
		Size:         size,
		Hash:         hash,
		ModifiedAt:   modifiedAt,
		TransferID:   transferID,
	}
	if err := p.sendJSON(transport.KindFileHeader, header); err != nil {
		return fmt.Errorf("supervisor: send file header for %s: %w", relativePath, err)
	}

	f, err := os.Open(filepath.Join(p.syncRoot, relativePath))
	if err != nil {
		return fmt.Errorf("supervisor: open %s for send: %w", relativePath, err)
	}
	defer f.Close()

	const chunkSize = 256 * 1024
	buf := make([]byte, chunkSize)
	var offset int64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			chunk := transport.FileChunkPayload{TransferID: transferID, Offset: offset, Bytes: append([]byte(nil), buf[:n]...)}
			if err := p.sendJSON(transport.KindFileChunk, chunk); err != nil {
				return fmt.Errorf("supervisor: send chunk for %s: %w", relativePath, err)
			}
			offset += int64(n)
		}
		if readErr != nil {
			break
		}
	}

	return p.sendJSON(transport.KindFileEnd, transport.FileEndPayload{
		TransferID:   transferID,
		RelativePath: relativePath,
		FinalHash:    hash,
	})
}

func (p *connPeer) SendDelete(relativePath string) error {
	return p.sendJSON(transport.KindDelete, transport.DeletePayload{RelativePath: relativePath})
}

func (p *connPeer) SendRename(oldPath, newPath string) error {
	return p.sendJSON(transport.KindRename, transport.RenamePayload{OldPath: oldPath, NewPath: newPath})
}

func (p *connPeer) sendJSON(kind transport.Kind, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("supervisor: encode %s payload: %w", kind, err)
	}
	return p.conn.Send(kind, payload)
}
