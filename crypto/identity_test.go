// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Tests that a new random identity keypair can be created and that its public
// key round-trips through the onion service id encoding.
func TestGenerateEd25519Keypair(t *testing.T) {
	kp, err := GenerateEd25519Keypair()
	require.NoError(t, err)

	id := kp.ServiceId()
	require.Len(t, string(id), 56)

	pub, err := id.PublicKey()
	require.NoError(t, err)
	require.Equal(t, kp.Public(), pub)
}

// Tests that expanding the same seed twice yields the same onion service id.
func TestEd25519KeypairFromSeedDeterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	kp1, err := Ed25519KeypairFromSeed(seed)
	require.NoError(t, err)

	kp2, err := Ed25519KeypairFromSeed(seed)
	require.NoError(t, err)

	require.Equal(t, kp1.ServiceId(), kp2.ServiceId())
}

// Tests that a malformed seed is rejected.
func TestEd25519KeypairFromSeedBadLength(t *testing.T) {
	_, err := Ed25519KeypairFromSeed(make([]byte, 16))
	require.ErrorIs(t, err, ErrBadSeed)
}

// Tests that signatures verify under the correct key and are rejected under
// any other.
func TestSignAndVerify(t *testing.T) {
	kp, err := GenerateEd25519Keypair()
	require.NoError(t, err)

	other, err := GenerateEd25519Keypair()
	require.NoError(t, err)

	msg := DomainSeparateIdentity([]byte("client"), []byte("server"), []byte("cookie"), []byte("default"))
	sig := kp.Sign(msg)

	require.NoError(t, Verify(kp.Public(), msg, sig))
	require.ErrorIs(t, Verify(other.Public(), msg, sig), ErrBadSignature)

	tampered := append([]byte{}, msg...)
	tampered[0] ^= 0xff
	require.ErrorIs(t, Verify(kp.Public(), tampered, sig), ErrBadSignature)
}

// Tests that the identity and endpoint domain separators never collide, so a
// signature minted for one handshake can never verify for the other.
func TestDomainSeparationNoCrossProtocolReplay(t *testing.T) {
	kp, err := GenerateEd25519Keypair()
	require.NoError(t, err)

	identityMsg := DomainSeparateIdentity([]byte("a"), []byte("b"))
	endpointMsg := DomainSeparateEndpoint([]byte("a"), []byte("b"))
	require.NotEqual(t, identityMsg, endpointMsg)

	sig := kp.Sign(identityMsg)
	require.NoError(t, Verify(kp.Public(), identityMsg, sig))
	require.ErrorIs(t, Verify(kp.Public(), endpointMsg, sig), ErrBadSignature)
}

// Tests that every onion service id decodes back to its source public key and
// that its checksum verifies (spec §8 testable property).
func TestOnionServiceIdRoundTrip(t *testing.T) {
	for i := 0; i < 16; i++ {
		kp, err := GenerateEd25519Keypair()
		require.NoError(t, err)

		id := OnionServiceIdFromPublicKey(kp.Public())
		require.NoError(t, id.Validate())

		pub, err := id.PublicKey()
		require.NoError(t, err)
		require.Equal(t, kp.Public(), pub)
	}
}

// Tests that corrupting the first character of an onion id is caught either
// by the base32 decoder or by the checksum verification.
func TestOnionServiceIdRejectsCorruption(t *testing.T) {
	kp, err := GenerateEd25519Keypair()
	require.NoError(t, err)

	id := OnionServiceIdFromPublicKey(kp.Public())

	corrupted := []byte(id)
	if corrupted[0] == 'a' {
		corrupted[0] = 'b'
	} else {
		corrupted[0] = 'a'
	}
	require.Error(t, V3OnionServiceId(corrupted).Validate())
}

// Tests that NewServerCookie produces distinct, full-width nonces.
func TestNewServerCookie(t *testing.T) {
	a, err := NewServerCookie()
	require.NoError(t, err)

	b, err := NewServerCookie()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}
