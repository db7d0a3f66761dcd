package supervisor

import (
	"encoding/hex"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicnode/swarm/delta"
	"github.com/nordicnode/swarm/syncengine"
	"github.com/nordicnode/swarm/transport"
)

// TestSendDeltaReconstructsRemoteFileFromSignatures drives the full
// SignaturesRequest -> Signatures -> DeltaData subprotocol between two
// in-process peers connected over net.Pipe, and checks the receiver ends up
// with bytes identical to the sender's.
func TestSendDeltaReconstructsRemoteFileFromSignatures(t *testing.T) {
	senderConn, receiverConn := net.Pipe()
	defer senderConn.Close()
	defer receiverConn.Close()

	senderRoot := t.TempDir()
	receiverPipeline, receiverRoot := newTestRemotePipelineForAssembler(t)

	base := "the quick brown fox jumps over the lazy dog, repeated for bulk. " +
		"the quick brown fox jumps over the lazy dog, repeated for bulk."
	updated := "the quick brown fox jumps over the lazy dog, repeated for bulk. " +
		"THE QUICK BROWN FOX JUMPS OVER A DIFFERENT DOG, repeated for bulk."

	require.NoError(t, os.WriteFile(filepath.Join(receiverRoot, "fox.txt"), []byte(base), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(senderRoot, "fox.txt"), []byte(updated), 0644))

	connA := transport.NewConn(senderConn, nil, transport.DefaultMaxFrameBytes)
	connB := transport.NewConn(receiverConn, nil, transport.DefaultMaxFrameBytes)
	defer connA.Close()
	defer connB.Close()

	sender := newConnPeer("receiver-peer", senderRoot, connA)
	connA.OnKind(transport.KindSignatures, func(kind transport.Kind, payload []byte) error {
		var sigs transport.SignaturesPayload
		if err := json.Unmarshal(payload, &sigs); err != nil {
			return err
		}
		sender.deliverSignatures(sigs.TransferID, sigs)
		return nil
	})

	responder := newConnPeer("sender-peer", receiverRoot, connB)
	connB.OnKind(transport.KindSignaturesRequest, func(kind transport.Kind, payload []byte) error {
		var req transport.SignaturesRequestPayload
		if err := json.Unmarshal(payload, &req); err != nil {
			return err
		}
		f, err := os.Open(filepath.Join(receiverRoot, req.RelativePath))
		if err != nil {
			return err
		}
		defer f.Close()
		sigs, err := delta.Sign(f)
		if err != nil {
			return err
		}
		blocks := make([]transport.SignatureBlock, 0, len(sigs))
		for _, s := range sigs {
			blocks = append(blocks, transport.SignatureBlock{
				Index:          int64(s.Index),
				WeakChecksum:   s.Weak,
				StrongChecksum: hex.EncodeToString(s.Strong[:]),
			})
		}
		return responder.sendJSON(transport.KindSignatures, transport.SignaturesPayload{
			TransferID: req.TransferID,
			BlockSize:  delta.BlockSize,
			Blocks:     blocks,
		})
	})
	assembler := newDeltaAssembler("sender-peer", receiverRoot, receiverPipeline)
	connB.OnKind(transport.KindDeltaData, func(kind transport.Kind, payload []byte) error {
		var d transport.DeltaDataPayload
		if err := json.Unmarshal(payload, &d); err != nil {
			return err
		}
		return assembler.onData(d)
	})

	hash := hashOfContent(updated)
	lc := syncengine.LocalChange{RelativePath: "fox.txt", Kind: syncengine.ChangeUpdate}
	require.NoError(t, sender.SendDelta(lc, int64(len(updated)), hash, time.Now().UnixMilli()))

	// Allow the async dispatch loops to finish applying the reconstructed file.
	deadline := time.Now().Add(2 * time.Second)
	var got []byte
	for time.Now().Before(deadline) {
		b, err := os.ReadFile(filepath.Join(receiverRoot, "fox.txt"))
		if err == nil && string(b) == updated {
			got = b
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, updated, string(got))
}
