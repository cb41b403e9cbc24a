package solana

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var ErrInvalidKeyPair = errors.New("invalid keypair")

// KeyPair is an ephemeral signing key decoded from a caller supplied
// secret. It lives for a single operation and must never be logged or
// persisted.
type KeyPair struct {
	priv ed25519.PrivateKey
}

// NewKeyPair generates a random keypair.
func NewKeyPair() (KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return KeyPair{}, errors.Wrap(err, "failed to generate keypair")
	}

	return KeyPair{priv: priv}, nil
}

func (k KeyPair) Public() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

func (k KeyPair) Private() ed25519.PrivateKey {
	return k.priv
}

// ToBase58 encodes the 64 byte expanded secret (seed followed by the
// public key), matching the encoding ParseKeyPair accepts.
func (k KeyPair) ToBase58() string {
	return base58.Encode(k.priv)
}

// ParsePublicKey decodes a base58 encoded ed25519 public key.
func ParsePublicKey(v string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(v)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPublicKey, err.Error())
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.Wrapf(ErrInvalidPublicKey, "invalid length: %d", len(raw))
	}

	return raw, nil
}

// ParseKeyPair decodes a base58 encoded 64 byte expanded secret key.
//
// Decoding runs behind a recover boundary: malformed input must surface
// as ErrInvalidKeyPair, never as a panic. The returned error never
// contains the input.
func ParseKeyPair(v string) (kp KeyPair, err error) {
	defer func() {
		if r := recover(); r != nil {
			kp = KeyPair{}
			err = ErrInvalidKeyPair
		}
	}()

	raw, decodeErr := base58.Decode(v)
	if decodeErr != nil {
		return KeyPair{}, ErrInvalidKeyPair
	}
	if len(raw) != ed25519.PrivateKeySize {
		return KeyPair{}, ErrInvalidKeyPair
	}

	priv := ed25519.PrivateKey(raw)
	if !priv.Equal(ed25519.NewKeyFromSeed(priv.Seed())) {
		return KeyPair{}, ErrInvalidKeyPair
	}

	return KeyPair{priv: priv}, nil
}
