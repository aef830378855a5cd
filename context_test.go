// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package gosling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pcwizz/gosling/crypto"
	"github.com/pcwizz/gosling/torbackend"
)

func newTestContext(t *testing.T, gw torbackend.Gateway) (*Context, crypto.Ed25519Keypair) {
	t.Helper()

	identity, err := crypto.GenerateEd25519Keypair()
	require.NoError(t, err)

	ctx, err := New(Config{
		Identity:     identity,
		IdentityPort: 9000,
		EndpointPort: 9001,
		Backend:      torbackend.NewMockBackendWithGateway(gw, nil),
	})
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })

	require.NoError(t, ctx.BootstrapTor(context.Background()))
	return ctx, identity
}

func waitForEvent(t *testing.T, c *Context, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, ev := range c.PollEvents() {
			if ev.Kind == kind {
				return ev
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for event kind %s", kind)
	return Event{}
}

// Tests a full identity handshake followed by an endpoint channel open,
// driven entirely through two Contexts talking over the mock Tor backend.
func TestEndToEndIdentityAndChannel(t *testing.T) {
	gw := torbackend.NewMockGateway()
	server, _ := newTestContext(t, gw)
	client, _ := newTestContext(t, gw)

	require.NoError(t, server.StartIdentityServer(context.Background()))

	client.RequestRemoteEndpoint(context.Background(), server.serverID, "chat")
	ev := waitForEvent(t, client, EventEndpointClientRequestCompleted, 2*time.Second)
	require.Equal(t, "chat", ev.EndpointName)

	// The server side should have published the matching endpoint.
	waitForEvent(t, server, EventEndpointServerPublished, 2*time.Second)

	client.OpenEndpointChannel(context.Background(), ev.EndpointServiceId, ev.ClientAuthPrivateKey, "chat")
	clientEv := waitForEvent(t, client, EventEndpointClientChannelRequestCompleted, 2*time.Second)
	defer clientEv.Stream.Close()

	serverEv := waitForEvent(t, server, EventEndpointServerChannelRequestCompleted, 2*time.Second)
	defer serverEv.Stream.Close()

	require.Equal(t, "chat", clientEv.ChannelName)
	require.Equal(t, "chat", serverEv.ChannelName)

	if _, err := clientEv.Stream.Write([]byte("ping")); err != nil {
		t.Fatalf("failed to write on promoted channel: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := serverEv.Stream.Read(buf); err != nil {
		t.Fatalf("failed to read on promoted channel: %v", err)
	}
	require.Equal(t, "ping", string(buf))
}

// Tests that a blocked client fails the identity handshake and never
// receives an endpoint.
func TestEndToEndBlockedClient(t *testing.T) {
	serverIdentity, err := crypto.GenerateEd25519Keypair()
	require.NoError(t, err)

	clientIdentity, err := crypto.GenerateEd25519Keypair()
	require.NoError(t, err)

	gw := torbackend.NewMockGateway()

	server, err := New(Config{
		Identity:     serverIdentity,
		IdentityPort: 9000,
		EndpointPort: 9001,
		Blocklist:    map[crypto.V3OnionServiceId]bool{clientIdentity.ServiceId(): true},
		Backend:      torbackend.NewMockBackendWithGateway(gw, nil),
	})
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	require.NoError(t, server.BootstrapTor(context.Background()))
	require.NoError(t, server.StartIdentityServer(context.Background()))

	client, err := New(Config{
		Identity:     clientIdentity,
		IdentityPort: 9000,
		EndpointPort: 9001,
		Backend:      torbackend.NewMockBackendWithGateway(gw, nil),
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.BootstrapTor(context.Background()))

	client.RequestRemoteEndpoint(context.Background(), server.serverID, "chat")
	ev := waitForEvent(t, client, EventEndpointClientRequestFailed, 2*time.Second)
	require.Equal(t, "identity", ev.Phase)
}

// Tests that StopIdentityServer stops a running identity server and that
// stopping it again reports ErrIdentityServerNotRunning.
func TestStopIdentityServer(t *testing.T) {
	server, _ := newTestContext(t, torbackend.NewMockGateway())
	require.NoError(t, server.StartIdentityServer(context.Background()))
	require.NoError(t, server.StopIdentityServer(context.Background()))
	require.ErrorIs(t, server.StopIdentityServer(context.Background()), ErrIdentityServerNotRunning)
}
