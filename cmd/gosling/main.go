// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

// This file contains a development server that bootstraps a single Gosling
// peer and logs the events it emits, without any mobile integration.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jessevdk/go-flags"

	"github.com/pcwizz/gosling"
	"github.com/pcwizz/gosling/crypto"
	"github.com/pcwizz/gosling/torbackend"
)

var opts struct {
	DataDir      string `long:"datadir" description:"Directory for the embedded Tor process' runtime state" default:"gosling-data"`
	IdentityPort int    `long:"identity-port" description:"Virtual port the identity service listens on" default:"9000"`
	EndpointPort int    `long:"endpoint-port" description:"Virtual port endpoint services listen on" default:"9001"`
	Mock         bool   `long:"mock" description:"Run against an in-memory Tor simulation instead of a real embedded Tor process"`
	Verbosity    int    `long:"verbosity" description:"Log verbosity (0-5)" default:"3"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(opts.Verbosity), log.StreamHandler(os.Stderr, log.TerminalFormat(true))))

	identity, err := crypto.GenerateEd25519Keypair()
	if err != nil {
		log.Crit("failed to generate identity keypair", "err", err)
	}

	var backend torbackend.Backend
	if opts.Mock {
		backend = torbackend.NewMockBackend(log.Root())
	}

	ctx, err := gosling.New(gosling.Config{
		WorkDir:      opts.DataDir,
		Identity:     identity,
		IdentityPort: opts.IdentityPort,
		EndpointPort: opts.EndpointPort,
		Backend:      backend,
		Logger:       log.Root(),
	})
	if err != nil {
		log.Crit("failed to create gosling context", "err", err)
	}
	defer ctx.Close()

	fmt.Printf("identity: %s\n", identity.ServiceId())

	if err := ctx.BootstrapTor(context.Background()); err != nil {
		log.Crit("failed to bootstrap tor", "err", err)
	}
	if err := ctx.StartIdentityServer(context.Background()); err != nil {
		log.Crit("failed to start identity server", "err", err)
	}

	for {
		for _, ev := range ctx.PollEvents() {
			fmt.Printf("event: %s\n", ev.Kind)
		}
		time.Sleep(250 * time.Millisecond)
	}
}
