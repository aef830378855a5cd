// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package torbackend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pcwizz/gosling/crypto"
)

// Tests that bootstrapping the mock backend completes immediately.
func TestMockBootstrapCompletesImmediately(t *testing.T) {
	backend := NewMockBackend(nil)
	defer backend.Close()

	events, err := backend.Bootstrap(context.Background())
	require.NoError(t, err)

	var last BootstrapEvent
	for ev := range events {
		last = ev
	}
	require.True(t, last.Done)
	require.NoError(t, last.Err)
}

// Tests that a published service can be dialed, and that once deleted, new
// connections to it fail.
func TestMockAddOnionAndConnect(t *testing.T) {
	backend := NewMockBackend(nil)
	defer backend.Close()

	kp, err := crypto.GenerateEd25519Keypair()
	require.NoError(t, err)

	id, ln, err := backend.AddOnion(context.Background(), AddOnionRequest{Key: kp, VirtPort: 1})
	require.NoError(t, err)
	require.Equal(t, kp.ServiceId(), id)
	defer ln.Close()

	conn, err := backend.Connect(context.Background(), id, 1, nil)
	require.NoError(t, err)
	conn.Close()

	require.NoError(t, backend.DeleteOnion(context.Background(), id))

	_, err = backend.Connect(context.Background(), id, 1, nil)
	require.Error(t, err)
}

// Tests that deleting an unknown service id fails with ErrNoSuchService.
func TestMockDeleteUnknownService(t *testing.T) {
	backend := NewMockBackend(nil)
	defer backend.Close()

	err := backend.DeleteOnion(context.Background(), crypto.V3OnionServiceId("not-a-real-service"))
	require.ErrorIs(t, err, ErrNoSuchService)
}

// Tests that publishing the same identity keypair twice fails.
func TestMockAddOnionDuplicate(t *testing.T) {
	backend := NewMockBackend(nil)
	defer backend.Close()

	kp, err := crypto.GenerateEd25519Keypair()
	require.NoError(t, err)

	_, ln, err := backend.AddOnion(context.Background(), AddOnionRequest{Key: kp, VirtPort: 1})
	require.NoError(t, err)
	defer ln.Close()

	_, _, err = backend.AddOnion(context.Background(), AddOnionRequest{Key: kp, VirtPort: 1})
	require.Error(t, err)
}
