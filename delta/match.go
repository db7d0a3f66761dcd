// SPDX-License-Identifier: LGPL-3.0-or-later

package delta

import (
	"crypto/sha256"

	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/internal/metrics"
)

// Match slides a BlockSize window over target and emits the Copy/Insert
// instruction stream needed to reconstruct target from the base file whose
// signatures are indexed by idx (§4.7 steps 2-5).
func Match(target []byte, idx *SignatureIndex) []Instruction {
	var instructions []Instruction
	var literals []byte

	flushLiterals := func() {
		if len(literals) == 0 {
			return
		}
		instructions = append(instructions, Instruction{Kind: KindInsert, Bytes: literals})
		metrics.DeltaInstructions.WithLabelValues("insert").Inc()
		literals = nil
	}

	n := len(target)
	if n == 0 {
		return nil
	}

	pos := 0
	var rc *crypto.RollingChecksum

	for pos < n {
		end := pos + BlockSize
		if end > n {
			// Final short window: try one last strong-hash match before
			// giving up and literalizing the remainder.
			window := target[pos:n]
			weak := crypto.RollingChecksumOf(window)
			if s, ok := idx.MatchStrong(weak, sha256.Sum256(window)); ok {
				flushLiterals()
				instructions = append(instructions, Instruction{
					Kind:             KindCopy,
					SourceBlockIndex: s.Index,
					Length:           len(window),
				})
				metrics.DeltaInstructions.WithLabelValues("copy").Inc()
				metrics.DeltaBytesSaved.Add(float64(len(window)))
			} else {
				literals = append(literals, window...)
			}
			pos = n
			break
		}

		window := target[pos:end]
		if rc == nil {
			rc = crypto.NewRollingChecksum(window)
		}
		weak := rc.Value()

		matched := false
		if len(idx.Candidates(weak)) > 0 {
			if s, ok := idx.MatchStrong(weak, sha256.Sum256(window)); ok {
				flushLiterals()
				instructions = append(instructions, Instruction{
					Kind:             KindCopy,
					SourceBlockIndex: s.Index,
					Length:           BlockSize,
				})
				metrics.DeltaInstructions.WithLabelValues("copy").Inc()
				metrics.DeltaBytesSaved.Add(float64(BlockSize))
				pos += BlockSize
				rc = nil
				matched = true
			}
		}
		if matched {
			continue
		}

		literals = append(literals, target[pos])
		if pos+BlockSize < n {
			rc.Roll(target[pos], target[pos+BlockSize])
		} else {
			rc = nil
		}
		pos++
		if len(literals) >= LiteralFlushSize {
			flushLiterals()
		}
	}

	flushLiterals()
	return instructions
}
