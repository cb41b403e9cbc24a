package solana

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPair_RoundTrip(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	parsed, err := ParseKeyPair(kp.ToBase58())
	require.NoError(t, err)

	assert.Equal(t, kp.Private(), parsed.Private())
	assert.Equal(t, kp.Public(), parsed.Public())
}

func TestParsePublicKey(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	pub, err := ParsePublicKey(base58.Encode(kp.Public()))
	require.NoError(t, err)
	assert.Equal(t, kp.Public(), pub)

	for _, invalid := range []string{
		"",
		"invalid_tree_pubkey",
		"0OIl",
		base58.Encode([]byte{1, 2, 3}),
		base58.Encode(make([]byte, 64)),
	} {
		_, err := ParsePublicKey(invalid)
		assert.ErrorIs(t, err, ErrInvalidPublicKey)
	}
}

func TestParseKeyPair_Invalid(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	for _, invalid := range []string{
		"",
		"not+base58",
		"abc",
		base58.Encode(kp.Public()),
		base58.Encode(make([]byte, ed25519.PrivateKeySize+1)),
	} {
		_, err := ParseKeyPair(invalid)
		assert.ErrorIs(t, err, ErrInvalidKeyPair)

		// The input must never leak into the error.
		if invalid != "" {
			assert.NotContains(t, err.Error(), invalid)
		}
	}
}

func TestParseKeyPair_MismatchedHalves(t *testing.T) {
	kp, err := NewKeyPair()
	require.NoError(t, err)

	// Corrupt the embedded public half; the secret no longer describes
	// a coherent keypair.
	raw := make([]byte, ed25519.PrivateKeySize)
	copy(raw, kp.Private())
	raw[ed25519.PrivateKeySize-1] ^= 0xff

	_, err = ParseKeyPair(base58.Encode(raw))
	assert.ErrorIs(t, err, ErrInvalidKeyPair)
}
