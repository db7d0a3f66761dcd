package crypto

import (
	"bytes"
)

// HandshakeMessage is the plaintext exchanged as the first frame of a new
// connection (§4.1, §4.3): each side proves possession of its long-lived
// identity key over its own ephemeral public key before session keys are
// derived.
type HandshakeMessage struct {
	PeerID        string
	PeerName      string
	EphemeralPub  []byte
	IdentityPub   []byte
	Signature     []byte
}

// signedTranscript is the exact byte sequence a HandshakeMessage's
// Signature covers: peerID || ephemeralPub.
func signedTranscript(peerID string, ephemeralPub []byte) []byte {
	return bytes.Join([][]byte{[]byte(peerID), ephemeralPub}, nil)
}

// SignHandshake signs peerID||ephemeralPub with the caller's identity
// key pair, producing the Signature field of an outgoing HandshakeMessage.
func SignHandshake(identity KeyPair, peerID string, ephemeralPub []byte) ([]byte, error) {
	return identity.Sign(signedTranscript(peerID, ephemeralPub))
}

// VerifyHandshake checks that msg.Signature was produced by the identity
// key whose public bytes are msg.IdentityPub, over msg.PeerID||msg.EphemeralPub.
// verify is supplied by the caller (an Ed25519 verification function such
// as the supervisor's verifyEd25519) since this package has no dependency on the keys subpackage.
func VerifyHandshake(msg HandshakeMessage, verify func(pub, message, sig []byte) error) error {
	return verify(msg.IdentityPub, signedTranscript(msg.PeerID, msg.EphemeralPub), msg.Signature)
}
