// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package torbackend

import (
	"context"
	"net"

	"github.com/cretz/bine/tor"
	"github.com/ethereum/go-ethereum/log"
	libtor "github.com/ipsn/go-libtor"

	"github.com/pcwizz/gosling/crypto"
)

// BineConfig configures the live Tor backend.
type BineConfig struct {
	WorkDir string     // Directory bine/Tor may use for runtime state
	Logger  log.Logger // Logger to tag with the backend's own context
}

// bineBackend is the live Backend, running an embedded Tor daemon via
// go-libtor and driving it over bine's control-port client.
type bineBackend struct {
	*gatewayBackend

	tor    *tor.Tor
	logger log.Logger
}

// NewBineBackend starts an embedded Tor process and returns a Backend
// fronting it. Bootstrap must still be called before publishing services.
func NewBineBackend(ctx context.Context, cfg BineConfig) (Backend, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}
	proxy, err := tor.Start(ctx, &tor.StartConf{
		ProcessCreator:    libtor.Creator,
		DataDir:           cfg.WorkDir,
		NoAutoSocksPort:   false,
		RetainTempDataDir: false,
	})
	if err != nil {
		return nil, err
	}
	gw := NewTorGateway(proxy)
	return &bineBackend{
		gatewayBackend: newGatewayBackend(gw, logger.New("backend", "tor")),
		tor:            proxy,
		logger:         logger,
	}, nil
}

// Bootstrap enables the Tor daemon's network and reports a single terminal
// event: Progress 100 with Done once EnableNetwork returns, or the error it
// failed with. Intermediate bootstrap progress is not reported.
func (b *bineBackend) Bootstrap(ctx context.Context) (<-chan BootstrapEvent, error) {
	events := make(chan BootstrapEvent, 16)

	go func() {
		defer close(events)

		if err := b.tor.EnableNetwork(ctx, true); err != nil {
			events <- BootstrapEvent{Err: err}
			return
		}
		events <- BootstrapEvent{Progress: 100, Tag: "done", Done: true}
	}()

	return events, nil
}

func (b *bineBackend) AddOnion(ctx context.Context, req AddOnionRequest) (crypto.V3OnionServiceId, net.Listener, error) {
	return b.gatewayBackend.addOnion(ctx, req)
}

func (b *bineBackend) DeleteOnion(ctx context.Context, id crypto.V3OnionServiceId) error {
	return b.gatewayBackend.deleteOnion(ctx, id)
}

func (b *bineBackend) Connect(ctx context.Context, target crypto.V3OnionServiceId, virtPort int, clientAuth *[32]byte) (net.Conn, error) {
	return b.gatewayBackend.connect(ctx, target, virtPort, clientAuth)
}

func (b *bineBackend) Close() error {
	err := b.gatewayBackend.closeAll()
	if cerr := b.tor.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
