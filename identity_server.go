// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package gosling

import (
	"context"
	"errors"
	"net"

	"github.com/pcwizz/gosling/crypto"
	"github.com/pcwizz/gosling/handshake"
	"github.com/pcwizz/gosling/honkrpc"
	"github.com/pcwizz/gosling/torbackend"
)

// ErrIdentityServerRunning is returned by StartIdentityServer when one is
// already published.
var ErrIdentityServerRunning = errors.New("gosling: identity server already started")

// ErrIdentityServerNotRunning is returned by StopIdentityServer when no
// identity server has been published.
var ErrIdentityServerNotRunning = errors.New("gosling: identity server not started")

// StartIdentityServer publishes this peer's identity onion service (spec
// §4.1/§4.4) and accepts incoming identity handshakes in the background.
// Each accepted connection gets its own short-lived Honk-RPC session running
// a fresh handshake.IdentityServer, so one misbehaving client cannot wedge
// another's handshake.
func (c *Context) StartIdentityServer(ctx context.Context) error {
	c.identityMu.Lock()
	if c.identityListener != nil {
		c.identityMu.Unlock()
		return ErrIdentityServerRunning
	}

	id, ln, err := c.backend.AddOnion(ctx, torbackend.AddOnionRequest{
		Key:        c.cfg.Identity,
		VirtPort:   c.cfg.IdentityPort,
		TargetPort: c.cfg.IdentityPort,
	})
	if err != nil {
		c.identityMu.Unlock()
		return err
	}

	acceptCtx, cancel := context.WithCancel(c.rootCtx)
	c.identityListener = ln
	c.identityCancel = cancel
	c.identityMu.Unlock()

	c.wg.Go(func() error {
		c.acceptIdentityConnections(acceptCtx, ln)
		return nil
	})

	c.enqueue(Event{Kind: EventIdentityServerPublished, EndpointServiceId: id})
	return nil
}

// StopIdentityServer unpublishes the identity onion service and stops
// accepting new handshakes. Handshakes already in flight run to completion.
func (c *Context) StopIdentityServer(ctx context.Context) error {
	c.identityMu.Lock()
	ln := c.identityListener
	cancel := c.identityCancel
	if ln == nil {
		c.identityMu.Unlock()
		return ErrIdentityServerNotRunning
	}
	c.identityListener = nil
	c.identityCancel = nil
	c.identityMu.Unlock()

	if cancel != nil {
		cancel()
	}
	return c.backend.DeleteOnion(ctx, c.serverID)
}

// acceptIdentityConnections accepts connections off ln until ctx is
// cancelled (via StopIdentityServer or Context.Close), running a fresh
// identity handshake server on each one.
func (c *Context) acceptIdentityConnections(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				c.enqueue(Event{Kind: EventIOError, Err: err})
				return
			}
		}
		c.wg.Go(func() error {
			c.serveIdentityConnection(ctx, conn)
			return nil
		})
	}
}

func (c *Context) serveIdentityConnection(ctx context.Context, conn net.Conn) {
	session := honkrpc.NewSession(conn, honkrpc.Config{Logger: c.logger})
	server := handshake.NewIdentityServer(c.serverID, c.cfg.Blocklist, c.cfg.ServerHooks, c.publishEndpoint, c.onEndpointPublished, c.logger)
	server.Register(session)

	done := make(chan struct{})
	c.reaper.track(session, done)
	defer close(done)

	if err := session.Serve(); err != nil {
		c.logger.Debug("identity session ended", "err", err)
	}
}

// publishEndpoint mints and publishes a freshly authorized endpoint service,
// supplied to handshake.IdentityServer as its PublishEndpointFunc.
func (c *Context) publishEndpoint(ctx context.Context, key crypto.Ed25519Keypair, endpointName string, clientAuthPub [32]byte) (crypto.V3OnionServiceId, error) {
	id, ln, err := c.backend.AddOnion(ctx, torbackend.AddOnionRequest{
		Key:               key,
		VirtPort:          c.cfg.EndpointPort,
		TargetPort:        c.cfg.EndpointPort,
		AuthorizedClients: [][32]byte{clientAuthPub},
	})
	if err != nil {
		return "", err
	}

	c.endpointsMu.Lock()
	c.pendingListeners[id] = ln
	c.endpointsMu.Unlock()

	c.enqueue(Event{Kind: EventEndpointServerPublished, EndpointServiceId: id, EndpointName: endpointName})
	return id, nil
}

// onEndpointPublished registers the freshly published endpoint so its
// channel-accept loop can start and StopEndpointServer can find it later.
func (c *Context) onEndpointPublished(pub handshake.PublishedEndpoint) {
	c.trackEndpointAccept(pub)
}

// RequestRemoteEndpoint drives the client role of the identity handshake
// against target's published identity service, minting and opening a new
// named endpoint (spec §4.1/§4.4). It blocks until the handshake finishes
// or fails; the result, or the failure, is reported as an event rather than
// returned.
func (c *Context) RequestRemoteEndpoint(ctx context.Context, target crypto.V3OnionServiceId, endpointName string) {
	conn, err := c.backend.Connect(ctx, target, c.cfg.IdentityPort, nil)
	if err != nil {
		c.enqueue(Event{Kind: EventEndpointClientRequestFailed, Role: "client", Phase: "connect", Err: err})
		return
	}

	session := honkrpc.NewSession(conn, honkrpc.Config{Logger: c.logger})
	c.wg.Go(func() error {
		_ = session.Serve()
		return nil
	})

	result, err := handshake.RunIdentityClient(ctx, session, c.cfg.Identity, target, endpointName, c.cfg.ClientHooks)
	session.Close()
	if err != nil {
		c.enqueue(Event{Kind: EventEndpointClientRequestFailed, Role: "client", Phase: "identity", Err: err})
		return
	}

	c.enqueue(Event{
		Kind:                 EventEndpointClientRequestCompleted,
		EndpointServiceId:    result.EndpointServiceId,
		EndpointName:         result.EndpointName,
		ClientAuthPrivateKey: result.ClientAuthPrivateKey,
	})
}
