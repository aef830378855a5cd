// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// X25519Keypair is an ephemeral keypair used for Tor v3 onion client
// authorization. The server mints one per admitted client during the identity
// handshake and hands the private half to the client; the public half is
// registered with the endpoint onion service.
type X25519Keypair struct {
	priv [32]byte
	pub  [32]byte
}

// GenerateX25519Keypair creates a brand new random client-auth keypair.
func GenerateX25519Keypair() (X25519Keypair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return X25519Keypair{}, err
	}
	// Clamp per RFC 7748 so every 32-byte string decodes to a valid scalar.
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return X25519Keypair{}, err
	}
	var kp X25519Keypair
	copy(kp.priv[:], priv[:])
	copy(kp.pub[:], pub)
	return kp, nil
}

// PrivateKey returns the raw 32-byte private scalar.
func (kp X25519Keypair) PrivateKey() [32]byte { return kp.priv }

// PublicKey returns the raw 32-byte public point.
func (kp X25519Keypair) PublicKey() [32]byte { return kp.pub }

// X25519PublicKeyFromPrivate recomputes the public half of a client-auth
// private key, used on the client side after receiving only the private key
// over the wire.
func X25519PublicKeyFromPrivate(priv [32]byte) ([32]byte, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], pub)
	return out, nil
}

// EncodeX25519PrivateKey base64-encodes a client-auth private key for
// embedding inside a Honk-RPC document field.
func EncodeX25519PrivateKey(priv [32]byte) string {
	return base64.StdEncoding.EncodeToString(priv[:])
}

// DecodeX25519PrivateKey parses a base64-encoded 32-byte client-auth private
// key, as produced by EncodeX25519PrivateKey.
func DecodeX25519PrivateKey(s string) ([32]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return [32]byte{}, fmt.Errorf("crypto: bad x25519 private key encoding: %w", err)
	}
	if len(raw) != 32 {
		return [32]byte{}, fmt.Errorf("crypto: x25519 private key must be 32 bytes, got %d", len(raw))
	}
	var out [32]byte
	copy(out[:], raw)
	return out, nil
}
