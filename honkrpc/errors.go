// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package honkrpc

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable failure reason carried in a response or
// error section. The session-level codes occupy the low range; higher-level
// protocols (handshake) define their own codes from 100 upward to share the
// same wire field without colliding.
type ErrorCode int32

// Session-level error codes, reported to the peer over the wire.
const (
	CodeBadVersion ErrorCode = iota + 1
	CodeUnknownFunction
	CodeUnknownVersion
	CodeBadArguments
	CodeFailure
	CodeBusy
	CodeTimeout
)

// Local-only error kinds: conditions that never cross the wire because the
// session is already gone by the time they'd need to.
var (
	ErrDecodeError = errors.New("honkrpc: failed to decode envelope")
	ErrClosed      = errors.New("honkrpc: session closed")
	ErrAborted     = errors.New("honkrpc: call aborted")
)

// CallError is returned by Session.Call when the peer answered the request
// with an error response section.
type CallError struct {
	Code    ErrorCode
	Message string
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("honkrpc: call failed with code %d", e.Code)
	}
	return fmt.Sprintf("honkrpc: call failed with code %d: %s", e.Code, e.Message)
}
