// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package honkrpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/akutz/memconn"
	"github.com/stretchr/testify/require"

	"github.com/pcwizz/gosling/document"
)

// memconnPair dials an in-memory connection pair over a freshly named
// memconn address, the way the mock Tor backend simulates onion transport
// without touching the network.
func memconnPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	addr := "honkrpc-test-" + t.Name()

	ln, err := memconn.Listen("memu", addr)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := memconn.Dial("memu", addr)
	require.NoError(t, err)

	server := <-accepted
	return client, server
}

func pipe(t *testing.T) (*Session, *Session) {
	t.Helper()
	client, server := memconnPair(t)

	cs := NewSession(client, Config{CallTimeout: 2 * time.Second})
	ss := NewSession(server, Config{CallTimeout: 2 * time.Second})

	go cs.Serve()
	go ss.Serve()

	t.Cleanup(func() {
		cs.Close()
		ss.Close()
	})
	return cs, ss
}

// Tests a simple synchronous call/response round trip.
func TestCallRoundTrip(t *testing.T) {
	cs, ss := pipe(t)

	ss.RegisterHandler("ns", "echo", 0, func(ctx context.Context, req Request, resp Responder) {
		v, _ := req.Arguments.Get("x")
		resp.Complete(document.Map(document.NewPair("x", v)))
	})

	result, err := cs.Call(context.Background(), "ns", "echo", 0, document.Map(document.NewPair("x", document.Int32(7))))
	require.NoError(t, err)

	x, ok := result.Get("x")
	require.True(t, ok)
	v, ok := x.Int32()
	require.True(t, ok)
	require.Equal(t, int32(7), v)
}

// Tests that calling an unregistered function yields unknown_function.
func TestCallUnknownFunction(t *testing.T) {
	cs, _ := pipe(t)

	_, err := cs.Call(context.Background(), "ns", "missing", 0, document.Map())
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, CodeUnknownFunction, callErr.Code)
}

// Tests that calling a known function at an unregistered version yields
// unknown_version while the session stays usable (spec §8 boundary case).
func TestCallUnknownVersionSessionStaysUsable(t *testing.T) {
	cs, ss := pipe(t)

	ss.RegisterHandler("ns", "fn", 0, func(ctx context.Context, req Request, resp Responder) {
		resp.Complete(document.Map())
	})

	_, err := cs.Call(context.Background(), "ns", "fn", 1, document.Map())
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, CodeUnknownVersion, callErr.Code)

	_, err = cs.Call(context.Background(), "ns", "fn", 0, document.Map())
	require.NoError(t, err)
}

// Tests that an asynchronous ("pending") handler resolves once it completes
// its work, without blocking the session in the meantime.
func TestCallAsyncPending(t *testing.T) {
	cs, ss := pipe(t)

	release := make(chan struct{})
	ss.RegisterHandler("ns", "slow", 0, func(ctx context.Context, req Request, resp Responder) {
		go func() {
			<-release
			resp.Complete(document.Map(document.NewPair("done", document.Bool(true))))
		}()
	})

	done := make(chan struct{})
	var callErr error
	var result document.Document
	go func() {
		result, callErr = cs.Call(context.Background(), "ns", "slow", 0, document.Map())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("call resolved before release")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done
	require.NoError(t, callErr)
	v, _ := result.Get("done")
	b, _ := v.Bool()
	require.True(t, b)
}

// Tests that exceeding the pending-call budget yields busy without invoking
// the handler.
func TestPendingCallBudget(t *testing.T) {
	client, server := memconnPair(t)
	cs := NewSession(client, Config{CallTimeout: 2 * time.Second})
	ss := NewSession(server, Config{CallTimeout: 2 * time.Second, MaxPendingCalls: 1})
	go cs.Serve()
	go ss.Serve()
	t.Cleanup(func() { cs.Close(); ss.Close() })

	hold := make(chan struct{})
	invocations := make(chan struct{}, 8)
	ss.RegisterHandler("ns", "hold", 0, func(ctx context.Context, req Request, resp Responder) {
		invocations <- struct{}{}
		<-hold
		resp.Complete(document.Map())
	})

	firstDone := make(chan struct{})
	go func() {
		cs.Call(context.Background(), "ns", "hold", 0, document.Map())
		close(firstDone)
	}()
	<-invocations

	_, err := cs.Call(context.Background(), "ns", "hold", 0, document.Map())
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, CodeBusy, callErr.Code)
	require.Empty(t, invocations)

	close(hold)
	<-firstDone
}

// Tests that a call the peer never answers resolves with CodeTimeout once
// the session's call timeout expires.
func TestCallTimeout(t *testing.T) {
	cs, ss := pipe(t)

	ss.RegisterHandler("ns", "never", 0, func(ctx context.Context, req Request, resp Responder) {
		<-ctx.Done()
	})

	shortCtx := context.Background()
	cs2 := cs
	cs2.callTimeout = 50 * time.Millisecond

	_, err := cs2.Call(shortCtx, "ns", "never", 0, document.Map())
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	require.Equal(t, CodeTimeout, callErr.Code)
}

// Tests that closing a session resolves every outstanding local call with
// ErrAborted.
func TestCloseAbortsOutstandingCalls(t *testing.T) {
	cs, ss := pipe(t)

	ss.RegisterHandler("ns", "never", 0, func(ctx context.Context, req Request, resp Responder) {
		<-ctx.Done()
	})

	done := make(chan struct{})
	var callErr error
	go func() {
		_, callErr = cs.Call(context.Background(), "ns", "never", 0, document.Map())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cs.Close()
	<-done
	require.ErrorIs(t, callErr, ErrAborted)
}
