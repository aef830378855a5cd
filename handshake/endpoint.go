// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package handshake

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/pcwizz/gosling/crypto"
	"github.com/pcwizz/gosling/document"
	"github.com/pcwizz/gosling/honkrpc"
)

// EndpointNamespace is the Honk-RPC namespace the endpoint handshake runs
// under.
const EndpointNamespace = "gosling_endpoint"

// EndpointVersion is the only endpoint handshake version this package
// speaks.
const EndpointVersion int32 = 0

// RunEndpointClient drives the client role of the endpoint handshake to
// completion, then detaches the session and returns the raw stream promoted
// to a channel per spec §4.5.
func RunEndpointClient(ctx context.Context, session *honkrpc.Session, clientIdentity crypto.Ed25519Keypair, endpointID crypto.V3OnionServiceId, channelName string) (net.Conn, error) {
	beginResult, err := session.Call(ctx, EndpointNamespace, "begin_handshake", EndpointVersion, document.Map(
		document.NewPair("version", document.Int32(EndpointVersion)),
		document.NewPair("client_identity", document.String(string(clientIdentity.ServiceId()))),
		document.NewPair("channel", document.String(channelName)),
	))
	if err != nil {
		return nil, translate(err)
	}

	cookieDoc, ok := beginResult.Get("server_cookie")
	if !ok {
		return nil, fmt.Errorf("handshake: %w: missing server_cookie", ErrUnexpectedStage)
	}
	cookie, ok := cookieDoc.Binary()
	if !ok || len(cookie) != 32 {
		return nil, fmt.Errorf("handshake: %w: malformed server_cookie", ErrUnexpectedStage)
	}

	proofMsg := crypto.DomainSeparateEndpoint(
		[]byte(clientIdentity.ServiceId()),
		[]byte(endpointID),
		cookie,
		[]byte(channelName),
	)
	proof := clientIdentity.Sign(proofMsg)

	if _, err := session.Call(ctx, EndpointNamespace, "send_response", EndpointVersion, document.Map(
		document.NewPair("client_identity_proof", document.Binary(proof)),
	)); err != nil {
		return nil, translate(err)
	}

	return session.Detach(), nil
}

type endpointServerStage int

const (
	endpointStageBegin endpointServerStage = iota
	endpointStageAwaitingSignature
	endpointStageDone
)

// ChannelOpened reports a successfully authenticated channel request to the
// server's onChannel callback.
type ChannelOpened struct {
	ClientId    crypto.V3OnionServiceId
	ChannelName string
	Stream      net.Conn
}

// EndpointServer runs the server role of a single endpoint handshake, scoped
// to one connection's session. The endpoint onion service this session
// arrived on was already restricted (at the Tor layer) to exactly one
// authorized client, so authorization here only needs to confirm the
// claimed identity matches that client.
type EndpointServer struct {
	endpointID       crypto.V3OnionServiceId
	authorizedClient crypto.V3OnionServiceId
	onChannel        func(ChannelOpened)
	logger           log.Logger

	mu           sync.Mutex
	stage        endpointServerStage
	cookie       [32]byte
	clientID     crypto.V3OnionServiceId
	channelName  string
}

// NewEndpointServer constructs a server-role endpoint handshake handler
// restricted to authorizedClient.
func NewEndpointServer(endpointID, authorizedClient crypto.V3OnionServiceId, onChannel func(ChannelOpened), logger log.Logger) *EndpointServer {
	if logger == nil {
		logger = log.Root()
	}
	return &EndpointServer{
		endpointID:       endpointID,
		authorizedClient: authorizedClient,
		onChannel:        onChannel,
		logger:           logger,
	}
}

// Register installs this handshake's handlers onto session.
func (s *EndpointServer) Register(session *honkrpc.Session) {
	session.RegisterHandler(EndpointNamespace, "begin_handshake", EndpointVersion, func(ctx context.Context, req honkrpc.Request, resp honkrpc.Responder) {
		s.handleBegin(ctx, req, resp, session)
	})
	session.RegisterHandler(EndpointNamespace, "send_response", EndpointVersion, func(ctx context.Context, req honkrpc.Request, resp honkrpc.Responder) {
		s.handleSendResponse(ctx, req, resp, session)
	})
}

func (s *EndpointServer) handleBegin(ctx context.Context, req honkrpc.Request, resp honkrpc.Responder, session *honkrpc.Session) {
	versionDoc, _ := req.Arguments.Get("version")
	if v, _ := versionDoc.Int32(); v != EndpointVersion {
		resp.Error(honkrpc.CodeUnknownVersion, "")
		return
	}
	clientIdentityDoc, ok := req.Arguments.Get("client_identity")
	if !ok {
		resp.Error(honkrpc.CodeBadArguments, "missing client_identity")
		return
	}
	clientIDStr, ok := clientIdentityDoc.Str()
	if !ok {
		resp.Error(honkrpc.CodeBadArguments, "client_identity not a string")
		return
	}
	clientID := crypto.V3OnionServiceId(clientIDStr)
	if err := clientID.Validate(); err != nil {
		resp.Error(honkrpc.CodeBadArguments, "invalid client_identity: "+err.Error())
		return
	}
	if clientID != s.authorizedClient {
		resp.Error(CodeNotAuthorized, "")
		session.Close()
		return
	}

	channelDoc, ok := req.Arguments.Get("channel")
	if !ok {
		resp.Error(honkrpc.CodeBadArguments, "missing channel")
		return
	}
	channelName, ok := channelDoc.Str()
	if !ok || channelName == "" {
		resp.Error(honkrpc.CodeBadArguments, "invalid channel name")
		return
	}

	cookie, err := crypto.NewServerCookie()
	if err != nil {
		resp.Error(honkrpc.CodeFailure, err.Error())
		return
	}

	s.mu.Lock()
	s.stage = endpointStageAwaitingSignature
	s.cookie = cookie
	s.clientID = clientID
	s.channelName = channelName
	s.mu.Unlock()

	resp.Complete(document.Map(document.NewPair("server_cookie", document.Binary(cookie[:]))))
}

func (s *EndpointServer) handleSendResponse(ctx context.Context, req honkrpc.Request, resp honkrpc.Responder, session *honkrpc.Session) {
	s.mu.Lock()
	if s.stage != endpointStageAwaitingSignature {
		s.mu.Unlock()
		resp.Error(honkrpc.CodeBadArguments, "send_response received out of order")
		return
	}
	cookie, clientID, channelName := s.cookie, s.clientID, s.channelName
	s.stage = endpointStageDone
	s.mu.Unlock()

	proofDoc, ok := req.Arguments.Get("client_identity_proof")
	if !ok {
		resp.Error(honkrpc.CodeBadArguments, "missing client_identity_proof")
		return
	}
	proof, ok := proofDoc.Binary()
	if !ok {
		resp.Error(honkrpc.CodeBadArguments, "client_identity_proof not binary")
		return
	}
	clientPub, err := clientID.PublicKey()
	if err != nil {
		resp.Error(CodeBadProof, err.Error())
		session.Close()
		return
	}
	proofMsg := crypto.DomainSeparateEndpoint([]byte(clientID), []byte(s.endpointID), cookie[:], []byte(channelName))
	if err := crypto.Verify(clientPub, proofMsg, proof); err != nil {
		resp.Error(CodeBadProof, "")
		session.Close()
		return
	}

	resp.Complete(document.Map())

	stream := session.Detach()
	if s.onChannel != nil {
		s.onChannel(ChannelOpened{ClientId: clientID, ChannelName: channelName, Stream: stream})
	}
}
