// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package torbackend

import (
	"net"
	"time"
)

// breaker wraps a net.Conn, closing it automatically once no traffic crosses
// it for the configured idle period. The backend wraps every connection it
// dials or accepts. A channel promoted from an endpoint session is that same
// wrapped connection, so the breaker stays on it after promotion and closes
// an idle channel as well.
type breaker struct {
	net.Conn

	timeout time.Duration
	timer   *time.Timer
}

// newBreaker wraps conn in an idle-timeout breaker.
func newBreaker(conn net.Conn, timeout time.Duration) net.Conn {
	return &breaker{
		Conn:    conn,
		timeout: timeout,
		timer:   time.AfterFunc(timeout, func() { conn.Close() }),
	}
}

func (b *breaker) Read(buf []byte) (int, error) {
	b.timer.Reset(b.timeout)
	return b.Conn.Read(buf)
}

func (b *breaker) Write(buf []byte) (int, error) {
	b.timer.Reset(b.timeout)
	return b.Conn.Write(buf)
}

func (b *breaker) Close() error {
	b.timer.Stop()
	return b.Conn.Close()
}
