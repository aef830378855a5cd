// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Tests that a generated client-auth keypair's public key can be independently
// recomputed from just the private half, the way a client does after
// receiving only the private key over the wire.
func TestGenerateX25519Keypair(t *testing.T) {
	kp, err := GenerateX25519Keypair()
	require.NoError(t, err)

	pub, err := X25519PublicKeyFromPrivate(kp.PrivateKey())
	require.NoError(t, err)
	require.Equal(t, kp.PublicKey(), pub)
}

// Tests that the private key survives a base64 encode/decode round trip.
func TestX25519PrivateKeyEncoding(t *testing.T) {
	kp, err := GenerateX25519Keypair()
	require.NoError(t, err)

	encoded := EncodeX25519PrivateKey(kp.PrivateKey())
	decoded, err := DecodeX25519PrivateKey(encoded)
	require.NoError(t, err)
	require.Equal(t, kp.PrivateKey(), decoded)
}

// Tests that malformed encodings are rejected instead of silently truncated.
func TestX25519PrivateKeyDecodeRejectsBadLength(t *testing.T) {
	_, err := DecodeX25519PrivateKey("dG9vc2hvcnQ=")
	require.Error(t, err)
}
