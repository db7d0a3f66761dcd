// SPDX-License-Identifier: LGPL-3.0-or-later

package delta

import (
	"fmt"
	"io"
	"time"

	"github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/internal/metrics"
)

// Reconstruct rebuilds the target bytes from base (opened for random read)
// plus instructions, verifying the result against finalHash. On mismatch it
// returns ErrHashMismatch and discards the partial output (§4.7
// correctness invariants).
func Reconstruct(base io.ReaderAt, instructions []Instruction, finalHash string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.ReconstructionDuration.Observe(time.Since(start).Seconds())
	}()

	var out []byte
	for _, instr := range instructions {
		switch instr.Kind {
		case KindCopy:
			buf := make([]byte, instr.Length)
			off := int64(instr.SourceBlockIndex) * int64(BlockSize)
			if _, err := base.ReadAt(buf, off); err != nil {
				return nil, fmt.Errorf("delta: read base block %d: %w", instr.SourceBlockIndex, err)
			}
			out = append(out, buf...)
		case KindInsert:
			out = append(out, instr.Bytes...)
		default:
			return nil, fmt.Errorf("delta: unknown instruction kind %d", instr.Kind)
		}
	}

	if crypto.HashBytes(out) != finalHash {
		return nil, ErrHashMismatch
	}
	return out, nil
}
