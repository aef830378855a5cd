// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

// Package gosling ties the crypto, document, honkrpc, handshake and
// torbackend packages together into the Context described by spec §4.6: the
// single entry point a consumer drives to bootstrap Tor, publish services,
// open endpoint channels and drain the resulting event stream.
package gosling

import (
	"net"

	"github.com/pcwizz/gosling/crypto"
)

// EventKind identifies what happened, so a consumer can switch on it before
// reading the kind-specific fields of an Event.
type EventKind int

const (
	EventTorBootstrapStatus EventKind = iota
	EventTorBootstrapCompleted
	EventTorBootstrapError
	EventIdentityServerPublished
	EventEndpointClientRequestCompleted
	EventEndpointClientRequestFailed
	EventEndpointServerPublished
	EventEndpointClientChannelRequestCompleted
	EventEndpointServerChannelRequestCompleted
	EventHandshakeError
	EventIOError
)

// String names the event kind, for logging.
func (k EventKind) String() string {
	switch k {
	case EventTorBootstrapStatus:
		return "tor_bootstrap_status"
	case EventTorBootstrapCompleted:
		return "tor_bootstrap_completed"
	case EventTorBootstrapError:
		return "tor_bootstrap_error"
	case EventIdentityServerPublished:
		return "identity_server_published"
	case EventEndpointClientRequestCompleted:
		return "endpoint_client_request_completed"
	case EventEndpointClientRequestFailed:
		return "endpoint_client_request_failed"
	case EventEndpointServerPublished:
		return "endpoint_server_published"
	case EventEndpointClientChannelRequestCompleted:
		return "endpoint_client_channel_request_completed"
	case EventEndpointServerChannelRequestCompleted:
		return "endpoint_server_channel_request_completed"
	case EventHandshakeError:
		return "handshake_error"
	case EventIOError:
		return "io_error"
	default:
		return "unknown"
	}
}

// Event is a single item of the consumer-facing event stream. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// Tor bootstrap fields.
	Progress int
	Err      error

	// Identity/endpoint publish fields.
	EndpointServiceId crypto.V3OnionServiceId
	EndpointName      string

	// Client-role identity handshake result fields.
	ClientAuthPrivateKey [32]byte

	// Endpoint channel fields.
	PeerId      crypto.V3OnionServiceId
	ChannelName string
	Stream      net.Conn

	// Failure taxonomy fields (handshake_error{role, phase, code}).
	Role  string
	Phase string
	Code  string
}

// enqueue appends an event under lock; poll_events drains it later.
func (c *Context) enqueue(ev Event) {
	c.eventsMu.Lock()
	c.events = append(c.events, ev)
	c.eventsMu.Unlock()
}

// PollEvents drains every event queued so far without blocking. Per spec
// §4.6/§5, this is the only operation safe to call concurrently with
// everything else on the consumer's own thread.
func (c *Context) PollEvents() []Event {
	c.eventsMu.Lock()
	defer c.eventsMu.Unlock()

	if len(c.events) == 0 {
		return nil
	}
	drained := c.events
	c.events = nil
	return drained
}
