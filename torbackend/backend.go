// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package torbackend

import (
	"context"
	"errors"
	"net"

	"github.com/pcwizz/gosling/crypto"
)

// BootstrapEvent reports Tor daemon bootstrap progress, mirroring the
// "bootstrap progress" half of the external Tor backend interface (§6).
type BootstrapEvent struct {
	Progress int    // 0-100
	Tag      string // Tor's own bootstrap phase tag, for logging
	Done     bool
	Err      error
}

// AddOnionRequest describes a service to publish.
type AddOnionRequest struct {
	Key        crypto.Ed25519Keypair
	VirtPort   int
	TargetPort int

	// AuthorizedClients restricts the service to these x25519 public keys.
	// Empty means unrestricted (the identity service).
	AuthorizedClients [][32]byte
}

// Backend is the external Tor controller transport the context consumes:
// bootstrap progress, onion publish/unpublish, and outbound connect via
// SOCKS5, per spec §6. ErrNoSuchService and ErrNotBootstrapped are the
// local-only failure kinds; everything else surfaces as an opaque error the
// caller reports as tor_error{kind}.
type Backend interface {
	// Bootstrap starts the Tor daemon bootstrap sequence and streams its
	// progress. The channel is closed once bootstrap finishes or fails.
	Bootstrap(ctx context.Context) (<-chan BootstrapEvent, error)

	// AddOnion publishes a new onion service and returns its address along
	// with the listener accepting connections for it.
	AddOnion(ctx context.Context, req AddOnionRequest) (crypto.V3OnionServiceId, net.Listener, error)

	// DeleteOnion unpublishes a previously added service.
	DeleteOnion(ctx context.Context, id crypto.V3OnionServiceId) error

	// Connect dials a v3 onion address through the Tor SOCKS5 proxy. The
	// backends in this package do not pass clientAuth on to Tor: the dial
	// carries no client authorization credentials.
	Connect(ctx context.Context, target crypto.V3OnionServiceId, virtPort int, clientAuth *[32]byte) (net.Conn, error)

	// Close tears down the backend and every onion service it published.
	Close() error
}

var (
	// ErrNoSuchService is returned by DeleteOnion for an unknown service id.
	ErrNoSuchService = errors.New("torbackend: no such onion service")

	// ErrNotBootstrapped reports a backend that has not finished
	// bootstrapping. The backends in this package do not check bootstrap
	// state in AddOnion or Connect and never return it.
	ErrNotBootstrapped = errors.New("torbackend: tor backend not bootstrapped")
)
