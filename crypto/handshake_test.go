package crypto

import (
	gocrypto "crypto"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ed25519Identity struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newEd25519Identity(t *testing.T) *ed25519Identity {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &ed25519Identity{pub: pub, priv: priv}
}

func (k *ed25519Identity) PublicKey() gocrypto.PublicKey   { return k.pub }
func (k *ed25519Identity) PrivateKey() gocrypto.PrivateKey { return k.priv }
func (k *ed25519Identity) Type() KeyType                   { return KeyTypeEd25519 }
func (k *ed25519Identity) ID() string                      { return "test-identity" }

func (k *ed25519Identity) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, message), nil
}

func (k *ed25519Identity) Verify(message, signature []byte) error {
	if !ed25519.Verify(k.pub, message, signature) {
		return ErrInvalidSignature
	}
	return nil
}

func TestSignAndVerifyHandshake(t *testing.T) {
	identity := newEd25519Identity(t)
	ephemeralPub := []byte("0123456789012345678901234567890X")

	sig, err := SignHandshake(identity, "peer-1", ephemeralPub)
	require.NoError(t, err)

	msg := HandshakeMessage{
		PeerID:       "peer-1",
		EphemeralPub: ephemeralPub,
		IdentityPub:  identity.pub,
		Signature:    sig,
	}

	verify := func(pub, message, sig []byte) error {
		if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
			return ErrInvalidSignature
		}
		return nil
	}
	assert.NoError(t, VerifyHandshake(msg, verify))

	msg.PeerID = "peer-2"
	assert.Error(t, VerifyHandshake(msg, verify))
}
