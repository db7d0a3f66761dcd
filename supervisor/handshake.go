// SPDX-License-Identifier: LGPL-3.0-or-later

// Package supervisor wires every subsystem together into one running
// daemon: identity, discovery, transport, state, vault, and the sync
// engine (§6 "Supervisor").
package supervisor

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net"
	"sort"

	swarmcrypto "github.com/nordicnode/swarm/crypto"
	"github.com/nordicnode/swarm/crypto/keys"
	"github.com/nordicnode/swarm/transport"
)

// handshakeResult is what a completed handshake establishes for one
// connection: the peer's identity and the derived session.
type handshakeResult struct {
	PeerID      string
	PeerName    string
	IdentityPub []byte
	Session     *transport.Session
}

// runHandshake performs the mutual Ed25519-signed, X25519-derived handshake
// described in §4.1 over a freshly dialed or accepted raw connection.
// isInitiator selects which side sends first, so both peers agree on frame
// order without a separate negotiation round.
func runHandshake(conn net.Conn, identity swarmcrypto.KeyPair, selfID, selfName string, isInitiator bool, maxFrameBytes uint32) (*handshakeResult, error) {
	ephemeral, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("supervisor: generate ephemeral key: %w", err)
	}
	ephemeralPub := ephemeral.(*keys.X25519KeyPair).PublicBytesKey()

	identityPub, err := identityPublicBytes(identity)
	if err != nil {
		return nil, err
	}

	sig, err := swarmcrypto.SignHandshake(identity, selfID, ephemeralPub)
	if err != nil {
		return nil, fmt.Errorf("supervisor: sign handshake: %w", err)
	}

	out := transport.HandshakeWire{
		PeerID:       selfID,
		PeerName:     selfName,
		EphemeralPub: ephemeralPub,
		IdentityPub:  identityPub,
		Signature:    sig,
	}

	var peerWire transport.HandshakeWire
	if isInitiator {
		if err := sendHandshake(conn, out); err != nil {
			return nil, err
		}
		if peerWire, err = recvHandshake(conn, maxFrameBytes); err != nil {
			return nil, err
		}
	} else {
		if peerWire, err = recvHandshake(conn, maxFrameBytes); err != nil {
			return nil, err
		}
		if err := sendHandshake(conn, out); err != nil {
			return nil, err
		}
	}

	msg := swarmcrypto.HandshakeMessage{
		PeerID:       peerWire.PeerID,
		PeerName:     peerWire.PeerName,
		EphemeralPub: peerWire.EphemeralPub,
		IdentityPub:  peerWire.IdentityPub,
		Signature:    peerWire.Signature,
	}
	if err := swarmcrypto.VerifyHandshake(msg, verifyEd25519); err != nil {
		return nil, fmt.Errorf("supervisor: peer handshake signature invalid: %w", err)
	}

	secret, err := ephemeral.(*keys.X25519KeyPair).DeriveSharedSecret(peerWire.EphemeralPub)
	if err != nil {
		return nil, fmt.Errorf("supervisor: derive shared secret: %w", err)
	}
	lo, hi := sortedPeerIDs(selfID, peerWire.PeerID)
	sessionKey, err := swarmcrypto.DeriveSessionKey(secret, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("supervisor: derive session key: %w", err)
	}

	session, err := transport.NewSession(sessionKey, isInitiator)
	if err != nil {
		return nil, err
	}

	return &handshakeResult{
		PeerID:      peerWire.PeerID,
		PeerName:    peerWire.PeerName,
		IdentityPub: peerWire.IdentityPub,
		Session:     session,
	}, nil
}

func sendHandshake(conn net.Conn, wire transport.HandshakeWire) error {
	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("supervisor: encode handshake: %w", err)
	}
	return transport.WriteFrame(conn, transport.Frame{Kind: transport.KindHandshake, Payload: payload})
}

func recvHandshake(conn net.Conn, maxFrameBytes uint32) (transport.HandshakeWire, error) {
	f, err := transport.ReadFrame(conn, maxFrameBytes)
	if err != nil {
		return transport.HandshakeWire{}, fmt.Errorf("supervisor: read handshake: %w", err)
	}
	if f.Kind != transport.KindHandshake {
		return transport.HandshakeWire{}, fmt.Errorf("supervisor: expected Handshake frame, got %s", f.Kind)
	}
	var wire transport.HandshakeWire
	if err := json.Unmarshal(f.Payload, &wire); err != nil {
		return transport.HandshakeWire{}, fmt.Errorf("supervisor: decode handshake: %w", err)
	}
	return wire, nil
}

func identityPublicBytes(identity swarmcrypto.KeyPair) ([]byte, error) {
	pub, ok := identity.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("supervisor: identity key is not Ed25519")
	}
	return []byte(pub), nil
}

// verifyEd25519 adapts ed25519.Verify to the func(pub, message, sig []byte)
// error shape VerifyHandshake expects.
func verifyEd25519(pub, message, sig []byte) error {
	if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
		return swarmcrypto.ErrInvalidSignature
	}
	return nil
}

// sortedPeerIDs returns a, b in lexicographic order so both handshake
// participants derive an identical session key regardless of who initiated.
func sortedPeerIDs(a, b string) (lo, hi string) {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0], ids[1]
}
