// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package gosling

import (
	"context"
	"sync"
	"time"

	"github.com/pcwizz/gosling/honkrpc"
)

// reaperEntry tracks one in-flight handshake session so the reaper can kill
// it if it never reaches a terminal state.
type reaperEntry struct {
	started time.Time
	done    <-chan struct{}
	role    string
}

// reaper sweeps handshake sessions stuck past their stage deadline,
// adapting the teacher's dedicated channel-driven scheduler goroutine to
// keep the pending-handshake pool of spec §3 bounded even when a peer
// simply stops responding mid-handshake.
type reaper struct {
	c        *Context
	interval time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	entries map[*honkrpc.Session]reaperEntry
}

func newReaper(c *Context, interval, timeout time.Duration) *reaper {
	return &reaper{
		c:        c,
		interval: interval,
		timeout:  timeout,
		entries:  make(map[*honkrpc.Session]reaperEntry),
	}
}

// track registers session as an in-flight handshake under the generic role
// "server". done must close once the handshake reaches a terminal state,
// whether success or failure.
func (r *reaper) track(session *honkrpc.Session, done <-chan struct{}) {
	r.trackRole(session, done, "server")
}

// trackRole is the role-aware variant track delegates to; role names the
// handshake in the timeout event ("endpoint_server", ...).
func (r *reaper) trackRole(session *honkrpc.Session, done <-chan struct{}, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[session] = reaperEntry{started: time.Now(), done: done, role: role}
}

// run drives the sweep loop until ctx is cancelled.
func (r *reaper) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *reaper) sweep() {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for session, entry := range r.entries {
		select {
		case <-entry.done:
			delete(r.entries, session)
			continue
		default:
		}
		if now.Sub(entry.started) > r.timeout {
			delete(r.entries, session)
			session.Close()
			r.c.enqueue(Event{Kind: EventHandshakeError, Role: entry.role, Phase: "stuck", Code: "timeout"})
		}
	}
}
