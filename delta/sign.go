// SPDX-License-Identifier: LGPL-3.0-or-later

package delta

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/internal/metrics"
)

// Sign reads r in non-overlapping BlockSize blocks (the last may be short)
// and emits one BlockSignature per block.
func Sign(r io.Reader) ([]BlockSignature, error) {
	var sigs []BlockSignature
	buf := make([]byte, BlockSize)

	for index := 0; ; index++ {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			block := buf[:n]
			sigs = append(sigs, BlockSignature{
				Index:  index,
				Weak:   crypto.RollingChecksumOf(block),
				Strong: sha256.Sum256(block),
			})
			metrics.SignaturesComputed.Inc()
		}
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("delta: sign: %w", err)
		}
	}
	return sigs, nil
}

// SignatureIndex groups signatures by weak checksum for O(1) candidate
// lookup during matching, with strong-hash entries as the tiebreak list.
type SignatureIndex struct {
	byWeak map[uint32][]BlockSignature
}

// BuildIndex indexes sigs by weak checksum into a multimap.
func BuildIndex(sigs []BlockSignature) *SignatureIndex {
	idx := &SignatureIndex{byWeak: make(map[uint32][]BlockSignature, len(sigs))}
	for _, s := range sigs {
		idx.byWeak[s.Weak] = append(idx.byWeak[s.Weak], s)
	}
	return idx
}

// Candidates returns every signature sharing the given weak checksum.
func (idx *SignatureIndex) Candidates(weak uint32) []BlockSignature {
	return idx.byWeak[weak]
}

// MatchStrong returns the first candidate (for weak) whose strong hash
// equals strong, if any.
func (idx *SignatureIndex) MatchStrong(weak uint32, strong [32]byte) (BlockSignature, bool) {
	for _, s := range idx.byWeak[weak] {
		if s.Strong == strong {
			return s, true
		}
	}
	return BlockSignature{}, false
}
