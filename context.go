// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package gosling

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/pcwizz/gosling/crypto"
	"github.com/pcwizz/gosling/handshake"
	"github.com/pcwizz/gosling/params"
	"github.com/pcwizz/gosling/torbackend"
)

// Config seeds a new Context. Identity, IdentityPort and EndpointPort are
// required; everything else has a sane zero value.
type Config struct {
	// WorkDir is where the live Tor backend keeps its runtime state. Unused
	// if Backend is supplied directly (tests inject a mock backend).
	WorkDir string

	// Identity is this peer's long-lived identity keypair.
	Identity crypto.Ed25519Keypair

	// IdentityPort and EndpointPort are the onion virtual ports the
	// identity service and endpoint services listen on.
	IdentityPort int
	EndpointPort int

	// Blocklist rejects identity handshakes from these client identities
	// outright. The consumer owns it; Gosling persists nothing (Non-goal).
	Blocklist map[crypto.V3OnionServiceId]bool

	ClientHooks handshake.ClientHooks
	ServerHooks handshake.ServerHooks

	// Backend overrides the Tor backend; nil makes New start a live
	// embedded Tor backend. Tests pass a mock backend from
	// torbackend.NewMockBackendWithGateway.
	Backend torbackend.Backend

	Logger log.Logger
}

// endpointService tracks one published endpoint's bookkeeping so
// stop_endpoint_server can unpublish and abort its listener.
type endpointService struct {
	id               crypto.V3OnionServiceId
	key              crypto.Ed25519Keypair
	name             string
	authorizedClient crypto.V3OnionServiceId
	listener         net.Listener
	cancel           context.CancelFunc
}

// Context owns the Tor backend, the identity listener, every published
// endpoint service and the set of in-flight handshakes, per spec §4.6/§3.
type Context struct {
	cfg     Config
	backend torbackend.Backend
	logger  log.Logger

	eventsMu sync.Mutex
	events   []Event

	serverID crypto.V3OnionServiceId

	identityMu       sync.Mutex
	identityListener net.Listener
	identityCancel   context.CancelFunc

	endpointsMu      sync.Mutex
	endpoints        map[crypto.V3OnionServiceId]*endpointService
	pendingListeners map[crypto.V3OnionServiceId]net.Listener

	reaper *reaper

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// wg tracks every goroutine the context spawns against rootCtx: the
	// reaper, each onion service's accept loop, and each accepted
	// connection's session. Close tears down the backend first, which
	// closes the listeners the accept loops block on, then waits on it.
	wg errgroup.Group
}

// New constructs a Context around cfg. Bootstrap must be called before
// publishing services or requesting endpoints.
func New(cfg Config) (*Context, error) {
	if cfg.IdentityPort == 0 {
		return nil, fmt.Errorf("gosling: Config.IdentityPort is required")
	}
	if cfg.EndpointPort == 0 {
		return nil, fmt.Errorf("gosling: Config.EndpointPort is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}
	backend := cfg.Backend
	if backend == nil {
		var err error
		backend, err = torbackend.NewBineBackend(context.Background(), torbackend.BineConfig{
			WorkDir: cfg.WorkDir,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
	}
	rootCtx, rootCancel := context.WithCancel(context.Background())

	c := &Context{
		cfg:              cfg,
		backend:          backend,
		logger:           logger.New("peer", cfg.Identity.ServiceId()),
		serverID:         cfg.Identity.ServiceId(),
		endpoints:        make(map[crypto.V3OnionServiceId]*endpointService),
		pendingListeners: make(map[crypto.V3OnionServiceId]net.Listener),
		rootCtx:          rootCtx,
		rootCancel:       rootCancel,
	}
	c.reaper = newReaper(c, params.ReapInterval, params.HandshakeStageTimeout)
	c.wg.Go(func() error {
		c.reaper.run(rootCtx)
		return nil
	})
	return c, nil
}

// Close tears down the backend (which implicitly closes every session),
// resolving in-flight local calls aborted and publishing no further events
// for them, per spec §5's drop semantics.
func (c *Context) Close() error {
	c.rootCancel()
	err := c.backend.Close()
	_ = c.wg.Wait()
	return err
}
