// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

// Package handshake implements the identity and endpoint handshake state
// machines (§4.4/§4.5): short, linear sequences of Honk-RPC calls with
// cryptographic side-conditions that admit a peer and bootstrap a named
// byte-stream channel between two onion services.
package handshake

import (
	"errors"

	"github.com/pcwizz/gosling/honkrpc"
)

// Wire error codes specific to the identity and endpoint handshakes, sharing
// the honkrpc.ErrorCode wire field but occupying a band above the session-
// level codes so the two never collide.
const (
	CodeNotSupported honkrpc.ErrorCode = iota + 100
	CodeInvalidEndpoint
	CodeBlocked
	CodeBadProof
	CodeChallengeRejected
	CodeNotAuthorized
)

// Local error values a consumer can match against with errors.Is, produced by
// translating a CallError's wire code back into something meaningful without
// the caller needing to know the code table.
var (
	ErrNotSupported      = errors.New("handshake: server does not support this protocol version")
	ErrInvalidEndpoint   = errors.New("handshake: endpoint not recognized by server")
	ErrBlocked           = errors.New("handshake: client identity is blocked")
	ErrBadProof          = errors.New("handshake: identity proof failed verification")
	ErrChallengeRejected = errors.New("handshake: challenge response rejected")
	ErrNotAuthorized     = errors.New("handshake: client is not authorized for this endpoint")
	ErrUnexpectedStage   = errors.New("handshake: request received out of order")
)

// translate maps a CallError's wire code onto the matching sentinel, falling
// back to the raw error when the code isn't one handshake recognizes.
func translate(err error) error {
	var callErr *honkrpc.CallError
	if !errors.As(err, &callErr) {
		return err
	}
	switch callErr.Code {
	case honkrpc.CodeUnknownVersion:
		return ErrNotSupported
	case CodeNotSupported:
		return ErrNotSupported
	case CodeInvalidEndpoint:
		return ErrInvalidEndpoint
	case CodeBlocked:
		return ErrBlocked
	case CodeBadProof:
		return ErrBadProof
	case CodeChallengeRejected:
		return ErrChallengeRejected
	case CodeNotAuthorized:
		return ErrNotAuthorized
	default:
		return err
	}
}
