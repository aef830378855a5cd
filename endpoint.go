// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package gosling

import (
	"context"
	"net"

	"github.com/pcwizz/gosling/crypto"
	"github.com/pcwizz/gosling/handshake"
	"github.com/pcwizz/gosling/honkrpc"
)

// trackEndpointAccept finishes publishing an endpoint minted by a successful
// identity handshake: it claims the listener stashed by publishEndpoint,
// starts its channel-accept loop restricted to the one authorized client,
// and records it so StopEndpointServer can find it later.
func (c *Context) trackEndpointAccept(pub handshake.PublishedEndpoint) {
	c.endpointsMu.Lock()
	ln, ok := c.pendingListeners[pub.ServiceId]
	if ok {
		delete(c.pendingListeners, pub.ServiceId)
	}
	c.endpointsMu.Unlock()
	if !ok {
		c.logger.Error("published endpoint has no pending listener", "id", pub.ServiceId)
		return
	}

	acceptCtx, cancel := context.WithCancel(c.rootCtx)
	svc := &endpointService{
		id:               pub.ServiceId,
		name:             pub.EndpointName,
		authorizedClient: pub.ClientId,
		listener:         ln,
		cancel:           cancel,
	}

	c.endpointsMu.Lock()
	c.endpoints[pub.ServiceId] = svc
	c.endpointsMu.Unlock()

	c.wg.Go(func() error {
		c.acceptEndpointConnections(acceptCtx, svc)
		return nil
	})
}

// StopEndpointServer unpublishes a previously minted endpoint service and
// stops accepting channel requests on it.
func (c *Context) StopEndpointServer(ctx context.Context, id crypto.V3OnionServiceId) error {
	c.endpointsMu.Lock()
	svc, ok := c.endpoints[id]
	if ok {
		delete(c.endpoints, id)
	}
	c.endpointsMu.Unlock()
	if !ok {
		return ErrNoSuchEndpoint
	}
	svc.cancel()
	return c.backend.DeleteOnion(ctx, id)
}

// ErrNoSuchEndpoint is returned by StopEndpointServer for an id this
// Context never published, or already stopped.
var ErrNoSuchEndpoint = errNoSuchEndpoint{}

type errNoSuchEndpoint struct{}

func (errNoSuchEndpoint) Error() string { return "gosling: no such endpoint service" }

func (c *Context) acceptEndpointConnections(ctx context.Context, svc *endpointService) {
	for {
		conn, err := svc.listener.Accept()
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
			c.serveEndpointConnection(ctx, svc, conn)
			return nil
		})
	}
}

func (c *Context) serveEndpointConnection(ctx context.Context, svc *endpointService, conn net.Conn) {
	session := honkrpc.NewSession(conn, honkrpc.Config{Logger: c.logger})

	onChannel := func(opened handshake.ChannelOpened) {
		c.enqueue(Event{
			Kind:        EventEndpointServerChannelRequestCompleted,
			PeerId:      opened.ClientId,
			ChannelName: opened.ChannelName,
			Stream:      opened.Stream,
		})
	}
	server := handshake.NewEndpointServer(svc.id, svc.authorizedClient, onChannel, c.logger)
	server.Register(session)

	done := make(chan struct{})
	c.reaper.trackRole(session, done, "endpoint_server")
	defer close(done)

	if err := session.Serve(); err != nil {
		c.logger.Debug("endpoint session ended", "err", err)
	}
}

// OpenEndpointChannel dials a peer's endpoint service, runs the client role
// of the endpoint handshake (spec §4.5) and, on success, reports the
// promoted raw byte-stream channel as an EventEndpointClientChannelRequestCompleted
// event. clientAuth is the x25519 private key obtained from the preceding
// identity handshake.
func (c *Context) OpenEndpointChannel(ctx context.Context, endpointID crypto.V3OnionServiceId, clientAuth [32]byte, channelName string) {
	conn, err := c.backend.Connect(ctx, endpointID, c.cfg.EndpointPort, &clientAuth)
	if err != nil {
		c.enqueue(Event{Kind: EventHandshakeError, Role: "client", Phase: "connect", Err: err, Code: "io_error"})
		return
	}

	session := honkrpc.NewSession(conn, honkrpc.Config{Logger: c.logger})
	c.wg.Go(func() error {
		_ = session.Serve()
		return nil
	})

	stream, err := handshake.RunEndpointClient(ctx, session, c.cfg.Identity, endpointID, channelName)
	if err != nil {
		session.Close()
		c.enqueue(Event{Kind: EventHandshakeError, Role: "client", Phase: "endpoint", Err: err, Code: "handshake_failed"})
		return
	}

	c.enqueue(Event{
		Kind:        EventEndpointClientChannelRequestCompleted,
		PeerId:      endpointID,
		ChannelName: channelName,
		Stream:      stream,
	})
}
