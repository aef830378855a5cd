// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package torbackend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/akutz/memconn"
	"github.com/cretz/bine/tor"
	"github.com/cretz/bine/torutil"
	tored25519 "github.com/cretz/bine/torutil/ed25519"
	"golang.org/x/net/proxy"
)

// NewMockGateway returns a Gateway that simulates the global Tor network
// entirely in-memory via memconn, so Honk-RPC and handshake tests never
// touch a real Tor process or even loopback TCP.
func NewMockGateway() Gateway {
	return &mockGateway{services: make(map[string]net.Listener)}
}

// mockGateway simulates onion address resolution over memconn pipes.
type mockGateway struct {
	lock     sync.RWMutex
	services map[string]net.Listener
}

func (gw *mockGateway) Listen(ctx context.Context, conf *tor.ListenConf) (net.Listener, error) {
	gw.lock.Lock()
	defer gw.lock.Unlock()

	key, ok := conf.Key.(tored25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("torbackend: mock gateway requires an ed25519 keypair, got %T", conf.Key)
	}
	id := torutil.OnionServiceIDFromPublicKey(key.PublicKey())
	addr := fmt.Sprintf("%s:%d", id, conf.RemotePorts[0])

	if _, exists := gw.services[addr]; exists {
		return nil, fmt.Errorf("torbackend: mock service %s already published", addr)
	}
	listener, err := memconn.Listen("memu", addr)
	if err != nil {
		return nil, err
	}
	gw.services[addr] = listener
	return &mockListener{Listener: listener, gateway: gw, addr: addr}, nil
}

// mockListener deregisters its simulated onion address on Close.
type mockListener struct {
	net.Listener
	gateway *mockGateway
	addr    string
}

func (l *mockListener) Close() error {
	l.gateway.lock.Lock()
	delete(l.gateway.services, l.addr)
	l.gateway.lock.Unlock()
	return l.Listener.Close()
}

func (gw *mockGateway) Dialer(ctx context.Context, conf *tor.DialConf) (proxy.Dialer, error) {
	return &mockDialer{gw}, nil
}

// mockDialer resolves onion-style "<id>:<port>" addresses against the mock
// gateway's simulated service table.
type mockDialer struct {
	gateway *mockGateway
}

func (d *mockDialer) Dial(network, addr string) (net.Conn, error) {
	if network != "tcp" {
		return nil, errors.New("torbackend: mock gateway only simulates tcp")
	}
	d.gateway.lock.RLock()
	listener, ok := d.gateway.services[onionAddr(addr)]
	d.gateway.lock.RUnlock()
	if !ok {
		return nil, fmt.Errorf("torbackend: no such mock onion service %s", addr)
	}
	return memconn.Dial(listener.Addr().Network(), listener.Addr().String())
}

// onionAddr strips the conventional ".onion" suffix real Tor addresses carry
// so dial targets compare equal to the bare id:port keys used by Listen.
func onionAddr(addr string) string {
	const suffix = ".onion"
	for i := 0; i+len(suffix) <= len(addr); i++ {
		if addr[i:i+len(suffix)] == suffix {
			return addr[:i] + addr[i+len(suffix):]
		}
	}
	return addr
}
