// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

// Package params collects the tunable constants shared across the Honk-RPC
// session, the handshake state machines and the context, mirroring the
// teacher's standalone params package.
package params

import "time"

const (
	// MaxEnvelopeSize bounds the encoded size of a single Honk-RPC envelope.
	// The default matches handshake traffic, which never needs to carry
	// anything larger than a small challenge document.
	MaxEnvelopeSize = 16 * 1024

	// MaxPendingCalls bounds the number of concurrently in-flight inbound
	// requests a session will dispatch to its handler before replying busy.
	MaxPendingCalls = 32

	// MaxDocumentNesting bounds how deeply a document or array may nest.
	MaxDocumentNesting = 32

	// CallTimeout is the default deadline for an outbound Honk-RPC call.
	CallTimeout = 60 * time.Second

	// SessionIdleTimeout disconnects a backend connection (a handshake
	// session or a channel promoted from one) that exchanges no bytes for
	// this long.
	SessionIdleTimeout = 2 * time.Minute

	// InboundRateLimit is the steady-state rate of inbound envelopes a
	// session accepts per second before throttling.
	InboundRateLimit = 64

	// InboundRateBurst is the burst allowance on top of InboundRateLimit.
	InboundRateBurst = 128

	// ReapInterval is how often the context's handshake reaper sweeps for
	// handshakes stuck past their stage deadline.
	ReapInterval = 5 * time.Second

	// HandshakeStageTimeout bounds how long a tracked handshake session may
	// stay open, counted from when the reaper started tracking it, before
	// the reaper closes it and reports a timeout.
	HandshakeStageTimeout = 30 * time.Second
)
