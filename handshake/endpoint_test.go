// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package handshake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pcwizz/gosling/crypto"
)

// Tests the full happy-path endpoint handshake, checking that the session
// is detached and the raw stream is usable for arbitrary bytes afterwards.
func TestEndpointHandshakeHappyPath(t *testing.T) {
	cs, ss := identityPipe(t)

	endpoint := mustKeypair(t)
	client := mustKeypair(t)

	opened := make(chan ChannelOpened, 1)
	srv := NewEndpointServer(endpoint.ServiceId(), client.ServiceId(), func(ev ChannelOpened) {
		opened <- ev
	}, nil)
	srv.Register(ss)

	clientStream, err := RunEndpointClient(context.Background(), cs, client, endpoint.ServiceId(), "chat")
	require.NoError(t, err)
	defer clientStream.Close()

	ev := <-opened
	defer ev.Stream.Close()

	require.Equal(t, client.ServiceId(), ev.ClientId)
	require.Equal(t, "chat", ev.ChannelName)

	if _, err := clientStream.Write([]byte("hello")); err != nil {
		t.Fatalf("failed to write on promoted stream: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := ev.Stream.Read(buf); err != nil {
		t.Fatalf("failed to read on promoted stream: %v", err)
	}
	require.Equal(t, "hello", string(buf))
}

// Tests that a client identity other than the one the endpoint is
// restricted to is rejected.
func TestEndpointHandshakeNotAuthorized(t *testing.T) {
	cs, ss := identityPipe(t)

	endpoint := mustKeypair(t)
	authorized := mustKeypair(t)
	impostor := mustKeypair(t)

	srv := NewEndpointServer(endpoint.ServiceId(), authorized.ServiceId(), func(ChannelOpened) {}, nil)
	srv.Register(ss)

	_, err := RunEndpointClient(context.Background(), cs, impostor, endpoint.ServiceId(), "chat")
	require.ErrorIs(t, err, ErrNotAuthorized)
}
