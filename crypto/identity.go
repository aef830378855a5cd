// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

// Package crypto implements the cryptographic primitives Gosling peers use to
// prove their identity and to bind handshake messages to a specific session:
// Ed25519 keypairs and the V3 onion service id derived from them, X25519
// keypairs for onion client authorization, and the domain-separated signing
// scheme that keeps the identity and endpoint handshakes from being confused
// with one another.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

var (
	// ErrBadSeed is returned when an Ed25519 keypair is reconstructed from a
	// seed that isn't exactly 32 bytes.
	ErrBadSeed = errors.New("crypto: ed25519 seed must be 32 bytes")

	// ErrBadSignature is returned by Verify when the signature does not match
	// the message under the claimed public key.
	ErrBadSignature = errors.New("crypto: signature verification failed")
)

// Ed25519Keypair is a long-lived identity keypair. Its public half, reduced
// through OnionServiceIdFromPublicKey, is the stable V3OnionServiceId of a
// peer.
//
// Note, constructing one is heavy (key expansion). Cache it.
type Ed25519Keypair struct {
	priv ed25519.PrivateKey
}

// GenerateEd25519Keypair creates a brand new random identity keypair.
func GenerateEd25519Keypair() (Ed25519Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Ed25519Keypair{}, err
	}
	return Ed25519Keypair{priv: priv}, nil
}

// Ed25519KeypairFromSeed expands a 32-byte seed into a full identity keypair.
func Ed25519KeypairFromSeed(seed []byte) (Ed25519Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Ed25519Keypair{}, ErrBadSeed
	}
	return Ed25519Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Ed25519KeypairFromKeyBlob parses Tor's 64-byte ED25519-V3 "key blob" form (the
// expanded secret key, not a seed) into an identity keypair.
func Ed25519KeypairFromKeyBlob(blob []byte) (Ed25519Keypair, error) {
	if len(blob) != ed25519.PrivateKeySize {
		return Ed25519Keypair{}, fmt.Errorf("crypto: key blob must be %d bytes, got %d", ed25519.PrivateKeySize, len(blob))
	}
	priv := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(priv, blob)
	return Ed25519Keypair{priv: priv}, nil
}

// KeyBlob serializes the keypair into Tor's 64-byte ED25519-V3 expanded secret
// key form, suitable for handing to a Tor controller's ADD_ONION command.
func (kp Ed25519Keypair) KeyBlob() []byte {
	blob := make([]byte, ed25519.PrivateKeySize)
	copy(blob, kp.priv)
	return blob
}

// PrivateKey returns the expanded Ed25519 private key, for handing to
// libraries that speak the standard library's crypto/ed25519 types directly.
func (kp Ed25519Keypair) PrivateKey() ed25519.PrivateKey {
	priv := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(priv, kp.priv)
	return priv
}

// Public returns the public key half of the keypair.
func (kp Ed25519Keypair) Public() ed25519.PublicKey {
	return kp.priv.Public().(ed25519.PublicKey)
}

// ServiceId derives the stable V3 onion service id identifying this keypair.
func (kp Ed25519Keypair) ServiceId() V3OnionServiceId {
	return OnionServiceIdFromPublicKey(kp.Public())
}

// Sign produces an Ed25519 signature over an arbitrary byte string. Callers
// building handshake proofs should pass the output of DomainSeparateIdentity
// or DomainSeparateEndpoint rather than a raw message, to prevent cross-protocol signature confusion.
func (kp Ed25519Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.priv, message)
}

// stage tags disambiguate signatures produced for different handshakes so a
// proof captured in one protocol can never be replayed as valid in another.
const (
	stageIdentity byte = 0x01
	stageEndpoint byte = 0x02
)

const (
	identityDomain = "gosling-identity"
	endpointDomain = "gosling-endpoint"
)

// DomainSeparateIdentity prefixes a buffer with the identity handshake's
// domain separator and stage tag, per spec: the client's identity proof signs
// over `domain_separator ‖ client_id ‖ server_id ‖ cookie ‖ endpoint_name`.
func DomainSeparateIdentity(parts ...[]byte) []byte {
	return domainSeparate(identityDomain, stageIdentity, parts...)
}

// DomainSeparateEndpoint prefixes a buffer with the endpoint handshake's
// domain separator and stage tag, binding `client_id ‖ endpoint_id ‖ cookie ‖
// channel_name`.
func DomainSeparateEndpoint(parts ...[]byte) []byte {
	return domainSeparate(endpointDomain, stageEndpoint, parts...)
}

func domainSeparate(domain string, stage byte, parts ...[]byte) []byte {
	size := len(domain) + 1
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, domain...)
	buf = append(buf, stage)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// Verify checks an Ed25519 signature produced over message by pub. It returns
// ErrBadSignature (never panics) on any mismatch.
func Verify(pub ed25519.PublicKey, message, signature []byte) error {
	if len(pub) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return ErrBadSignature
	}
	if !ed25519.Verify(pub, message, signature) {
		return ErrBadSignature
	}
	return nil
}

// NewServerCookie draws a fresh, uniformly random 32-byte nonce used to force
// a handshake signature to be session-bound and fresh.
func NewServerCookie() ([32]byte, error) {
	var cookie [32]byte
	if _, err := rand.Read(cookie[:]); err != nil {
		return [32]byte{}, err
	}
	return cookie, nil
}

// V3OnionServiceId is the 56-character, lowercase base32 rendering of a Tor v3
// onion service identity: base32(pubkey ‖ checksum ‖ version).
type V3OnionServiceId string

const (
	onionVersion       byte = 0x03
	onionChecksumLabel      = ".onion checksum"
)

var onionEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// OnionServiceIdFromPublicKey computes the v3 onion service id for an Ed25519
// public key.
func OnionServiceIdFromPublicKey(pub ed25519.PublicKey) V3OnionServiceId {
	checksum := onionChecksum(pub)

	raw := make([]byte, 0, ed25519.PublicKeySize+2+1)
	raw = append(raw, pub...)
	raw = append(raw, checksum[:2]...)
	raw = append(raw, onionVersion)

	return V3OnionServiceId(toLowerASCII(onionEncoding.EncodeToString(raw)))
}

// onionChecksum returns SHA3-256(".onion checksum" ‖ pubkey ‖ version); its
// first 2 bytes are the checksum used by v3 onion ids, and callers truncate.
func onionChecksum(pub ed25519.PublicKey) [32]byte {
	h := make([]byte, 0, len(onionChecksumLabel)+ed25519.PublicKeySize+1)
	h = append(h, onionChecksumLabel...)
	h = append(h, pub...)
	h = append(h, onionVersion)
	return sha3.Sum256(h)
}

// PublicKey decodes the onion service id back into its Ed25519 public key,
// verifying the embedded checksum and version in the process.
func (id V3OnionServiceId) PublicKey() (ed25519.PublicKey, error) {
	if len(id) != 56 {
		return nil, fmt.Errorf("crypto: onion id must be 56 characters, got %d", len(id))
	}
	raw, err := onionEncoding.DecodeString(toUpperASCII(string(id)))
	if err != nil {
		return nil, fmt.Errorf("crypto: bad onion id encoding: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize+2+1 {
		return nil, fmt.Errorf("crypto: decoded onion id has wrong length: %d", len(raw))
	}
	pub := ed25519.PublicKey(raw[:ed25519.PublicKeySize])
	checksum := raw[ed25519.PublicKeySize : ed25519.PublicKeySize+2]
	version := raw[ed25519.PublicKeySize+2]

	if version != onionVersion {
		return nil, fmt.Errorf("crypto: unsupported onion version: %d", version)
	}
	want := onionChecksum(pub)
	if !bytesEqual(checksum, want[:2]) {
		return nil, errors.New("crypto: onion id checksum mismatch")
	}
	return pub, nil
}

// Validate checks that the onion service id is well-formed and that its
// checksum verifies, without returning the decoded public key.
func (id V3OnionServiceId) Validate() error {
	_, err := id.PublicKey()
	return err
}

func (id V3OnionServiceId) String() string { return string(id) }

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
