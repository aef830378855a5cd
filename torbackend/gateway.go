// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

// Package torbackend adapts the external Tor controller transport (§6 of the
// specification) behind a small interface, with a live github.com/cretz/bine
// implementation and an in-memory mock for tests.
package torbackend

import (
	"context"
	"net"

	"github.com/cretz/bine/tor"
	"golang.org/x/net/proxy"
)

// Gateway is the seam between the backend and the actual Tor process. Live
// code uses a real *tor.Tor; tests substitute an in-memory simulation so
// handshake and context logic can run without a Tor binary.
type Gateway interface {
	// Listen publishes an onion service and returns the local listener that
	// backs it. The context may be nil.
	Listen(ctx context.Context, conf *tor.ListenConf) (net.Listener, error)

	// Dialer returns a proxy.Dialer that reaches onion addresses. The
	// context may be nil.
	Dialer(ctx context.Context, conf *tor.DialConf) (proxy.Dialer, error)
}

// torGateway is the live Gateway, backed by a started Tor process.
type torGateway struct {
	proxy *tor.Tor
}

// NewTorGateway wraps an already-started Tor process as a Gateway.
func NewTorGateway(proxy *tor.Tor) Gateway {
	return &torGateway{proxy}
}

func (gw *torGateway) Listen(ctx context.Context, conf *tor.ListenConf) (net.Listener, error) {
	service, err := gw.proxy.Listen(ctx, conf)
	if err != nil {
		return nil, err
	}
	return service, nil
}

func (gw *torGateway) Dialer(ctx context.Context, conf *tor.DialConf) (proxy.Dialer, error) {
	return gw.proxy.Dialer(ctx, conf)
}
