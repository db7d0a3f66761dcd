package crypto

import (
	"crypto"
	"errors"
)

// KeyType identifies the algorithm family of a KeyPair.
type KeyType string

const (
	// KeyTypeEd25519 is used for long-lived peer identity keys.
	KeyTypeEd25519 KeyType = "Ed25519"
	// KeyTypeX25519 is used for ephemeral per-session key agreement.
	KeyTypeX25519 KeyType = "X25519"
)

// KeyPair is a cryptographic key pair capable of signing/verifying
// (identity keys) or key agreement (session keys), depending on Type.
type KeyPair interface {
	PublicKey() crypto.PublicKey
	PrivateKey() crypto.PrivateKey
	Type() KeyType
	Sign(message []byte) ([]byte, error)
	Verify(message, signature []byte) error
	ID() string
}

// Common errors shared by the crypto and keystore packages.
var (
	ErrKeyNotFound        = errors.New("crypto: key not found")
	ErrKeyExists          = errors.New("crypto: key already exists")
	ErrInvalidSignature   = errors.New("crypto: invalid signature")
	ErrSignNotSupported   = errors.New("crypto: key type does not support signing")
	ErrVerifyNotSupported = errors.New("crypto: key type does not support verification")
	ErrInvalidPassphrase  = errors.New("crypto: invalid passphrase")
)
