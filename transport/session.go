// SPDX-License-Identifier: LGPL-3.0-or-later

package transport

import (
	"crypto/cipher"
	"fmt"
	"sync"

	swarmcrypto "github.com/nordicnode/swarm/crypto"
)

const (
	directionOutbound byte = 0x01
	directionInbound  byte = 0x02
)

// Session wraps the per-connection AEAD state established once the
// handshake completes (§4.1): a 32-byte key, derived via
// crypto.DeriveSessionKey, and two strictly monotonic nonce counters (one
// per direction). Frame kind and length are authenticated as associated
// data, matching the framing layer's header.
type Session struct {
	mu          sync.Mutex
	aead        cipher.AEAD
	sendCounter uint64
	recvCounter uint64
	isInitiator bool
}

// NewSession builds a Session from an already-derived session key.
// isInitiator selects which direction byte this side uses when sending,
// so both ends of a connection use disjoint nonce spaces.
func NewSession(sessionKey []byte, isInitiator bool) (*Session, error) {
	aead, err := swarmcrypto.NewSessionAEAD(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("transport: session aead: %w", err)
	}
	return &Session{aead: aead, isInitiator: isInitiator}, nil
}

func (s *Session) sendDirection() byte {
	if s.isInitiator {
		return directionOutbound
	}
	return directionInbound
}

func (s *Session) recvDirection() byte {
	if s.isInitiator {
		return directionInbound
	}
	return directionOutbound
}

// Seal encrypts payload for kind, authenticating the frame header (kind
// byte, big-endian plaintext length) as associated data.
func (s *Session) Seal(kind Kind, payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := swarmcrypto.SessionNonce(s.sendDirection(), s.sendCounter)
	s.sendCounter++

	ad := associatedData(kind, len(payload))
	return s.aead.Seal(nil, nonce, payload, ad), nil
}

// Open decrypts a sealed frame payload for kind, enforcing strictly
// monotonic receive nonces; any out-of-order or replayed counter aborts
// the session per §4.1/§8's ordering guarantees.
func (s *Session) Open(kind Kind, sealed []byte, expectedCounter uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expectedCounter != s.recvCounter {
		return nil, ErrNonceReplay
	}

	nonce := swarmcrypto.SessionNonce(s.recvDirection(), expectedCounter)
	ad := associatedData(kind, len(sealed)-s.aead.Overhead())
	plain, err := s.aead.Open(nil, nonce, sealed, ad)
	if err != nil {
		return nil, fmt.Errorf("transport: session open: %w", err)
	}
	s.recvCounter++
	return plain, nil
}

// NextSendCounter returns the counter that will be used by the next Seal
// call, so callers can attach it to the frame for the peer's Open call.
func (s *Session) NextSendCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCounter
}

func associatedData(kind Kind, plaintextLen int) []byte {
	ad := make([]byte, 5)
	ad[0] = byte(kind)
	ad[1] = byte(plaintextLen >> 24)
	ad[2] = byte(plaintextLen >> 16)
	ad[3] = byte(plaintextLen >> 8)
	ad[4] = byte(plaintextLen)
	return ad
}
