// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package torbackend

import (
	"context"
	"net"

	"github.com/ethereum/go-ethereum/log"

	"github.com/pcwizz/gosling/crypto"
)

// mockBackend is an in-memory Backend for tests: bootstrap completes
// immediately and publish/connect are simulated entirely over memconn.
type mockBackend struct {
	*gatewayBackend
}

// NewMockBackend returns a Backend that never touches a real Tor process.
// Each call gets its own private simulated onion network, so it can only
// ever dial services it published itself; use NewMockBackendWithGateway to
// simulate several independent backends talking to each other.
func NewMockBackend(logger log.Logger) Backend {
	return NewMockBackendWithGateway(NewMockGateway(), logger)
}

// NewMockBackendWithGateway returns a Backend backed by the given Gateway,
// letting callers share one simulated onion network across several
// mockBackend instances so they can publish and dial each other.
func NewMockBackendWithGateway(gw Gateway, logger log.Logger) Backend {
	return &mockBackend{gatewayBackend: newGatewayBackend(gw, logger)}
}

func (b *mockBackend) Bootstrap(ctx context.Context) (<-chan BootstrapEvent, error) {
	events := make(chan BootstrapEvent, 1)
	events <- BootstrapEvent{Progress: 100, Tag: "done", Done: true}
	close(events)
	return events, nil
}

func (b *mockBackend) AddOnion(ctx context.Context, req AddOnionRequest) (crypto.V3OnionServiceId, net.Listener, error) {
	return b.gatewayBackend.addOnion(ctx, req)
}

func (b *mockBackend) DeleteOnion(ctx context.Context, id crypto.V3OnionServiceId) error {
	return b.gatewayBackend.deleteOnion(ctx, id)
}

func (b *mockBackend) Connect(ctx context.Context, target crypto.V3OnionServiceId, virtPort int, clientAuth *[32]byte) (net.Conn, error) {
	return b.gatewayBackend.connect(ctx, target, virtPort, clientAuth)
}

func (b *mockBackend) Close() error {
	return b.gatewayBackend.closeAll()
}
