// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package torbackend

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cretz/bine/tor"
	tored25519 "github.com/cretz/bine/torutil/ed25519"
	"github.com/ethereum/go-ethereum/log"

	"github.com/pcwizz/gosling/crypto"
	"github.com/pcwizz/gosling/params"
)

// gatewayBackend implements the Gateway-independent half of Backend
// (publish/unpublish/connect) on top of any Gateway; bineBackend and
// mockBackend each add their own Bootstrap and Close around it.
type gatewayBackend struct {
	gw     Gateway
	logger log.Logger

	lock      sync.Mutex
	listeners map[crypto.V3OnionServiceId]net.Listener
}

func newGatewayBackend(gw Gateway, logger log.Logger) *gatewayBackend {
	if logger == nil {
		logger = log.Root()
	}
	return &gatewayBackend{
		gw:        gw,
		logger:    logger,
		listeners: make(map[crypto.V3OnionServiceId]net.Listener),
	}
}

func (b *gatewayBackend) addOnion(ctx context.Context, req AddOnionRequest) (crypto.V3OnionServiceId, net.Listener, error) {
	id := req.Key.ServiceId()

	b.lock.Lock()
	if _, exists := b.listeners[id]; exists {
		b.lock.Unlock()
		return "", nil, fmt.Errorf("torbackend: service %s already published", id)
	}
	b.lock.Unlock()

	listener, err := b.gw.Listen(ctx, &tor.ListenConf{
		Key:         tored25519.FromCryptoPrivateKey(req.Key.PrivateKey()).PrivateKey(),
		RemotePorts: []int{req.VirtPort},
		LocalPort:   req.TargetPort,
		Version3:    true,
		NoWait:      true,
		ClientAuths: clientAuthsFor(req.AuthorizedClients),
	})
	if err != nil {
		return "", nil, err
	}
	listener = newBreakerListener(listener, params.SessionIdleTimeout)

	b.lock.Lock()
	b.listeners[id] = listener
	b.lock.Unlock()

	b.logger.Info("published onion service", "id", id, "virtport", req.VirtPort)
	return id, listener, nil
}

func (b *gatewayBackend) deleteOnion(ctx context.Context, id crypto.V3OnionServiceId) error {
	b.lock.Lock()
	listener, ok := b.listeners[id]
	if ok {
		delete(b.listeners, id)
	}
	b.lock.Unlock()

	if !ok {
		return ErrNoSuchService
	}
	b.logger.Info("unpublishing onion service", "id", id)
	return listener.Close()
}

func (b *gatewayBackend) connect(ctx context.Context, target crypto.V3OnionServiceId, virtPort int, clientAuth *[32]byte) (net.Conn, error) {
	dialer, err := b.gw.Dialer(ctx, &tor.DialConf{SkipEnableNetwork: true})
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s.onion:%d", target, virtPort)
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newBreaker(conn, params.SessionIdleTimeout), nil
}

func (b *gatewayBackend) closeAll() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	var firstErr error
	for id, listener := range b.listeners {
		if err := listener.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.listeners, id)
	}
	return firstErr
}

// clientAuthsFor maps x25519 client-authorization public keys onto bine's
// per-listener client auth list; an empty slice publishes an unrestricted
// (identity) service.
func clientAuthsFor(pubs [][32]byte) []*tor.ClientAuth {
	if len(pubs) == 0 {
		return nil
	}
	auths := make([]*tor.ClientAuth, len(pubs))
	for i, pub := range pubs {
		auths[i] = &tor.ClientAuth{Key: pub}
	}
	return auths
}

// breakerListener wraps every accepted connection in an idle-timeout
// breaker, the listener-side counterpart of newBreaker used on dial.
type breakerListener struct {
	net.Listener
	timeout time.Duration
}

func newBreakerListener(l net.Listener, timeout time.Duration) net.Listener {
	return &breakerListener{Listener: l, timeout: timeout}
}

func (l *breakerListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return newBreaker(conn, l.timeout), nil
}
