// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package handshake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/pcwizz/gosling/crypto"
	"github.com/pcwizz/gosling/document"
	"github.com/pcwizz/gosling/honkrpc"
)

// IdentityNamespace is the Honk-RPC namespace the identity handshake runs
// under.
const IdentityNamespace = "gosling_identity"

// IdentityVersion is the only identity handshake version this package
// speaks. Per spec §9's first open question, the wire format (including
// exactly what the client signs) is fixed and must not be "improved"
// without a version bump.
const IdentityVersion int32 = 0

// ChallengeVerdict is the server's judgement of a client's challenge
// response.
type ChallengeVerdict int

const (
	VerdictPending ChallengeVerdict = iota
	VerdictValid
	VerdictInvalid
)

// ClientHooks are the consumer-supplied callbacks driving the client side of
// an identity handshake. Every field is optional.
type ClientHooks struct {
	// Started is invoked once the handshake begins.
	Started func()

	// ChallengeResponseSize lets the consumer hint how many bytes its
	// response will need, for callers that want to pre-allocate.
	ChallengeResponseSize func(endpointName string) int

	// BuildChallengeResponse computes the application-level response to the
	// server's challenge document. An empty map document is sent if
	// unset.
	BuildChallengeResponse func(endpointName string, challenge document.Document) document.Document
}

// ServerHooks are the consumer-supplied callbacks driving the server side of
// an identity handshake.
type ServerHooks struct {
	// EndpointSupported reports whether the server is willing to mint an
	// endpoint under this name. Nil means every endpoint name is accepted.
	EndpointSupported func(endpointName string) bool

	// BuildChallenge produces the application challenge document sent to
	// the client. Nil produces an empty document.
	BuildChallenge func(endpointName string) document.Document

	// VerifyChallengeResponse judges the client's response. Nil accepts
	// unconditionally.
	VerifyChallengeResponse func(endpointName string, challenge, response document.Document) ChallengeVerdict

	// PollChallengeResponseResult is consulted repeatedly while a verdict is
	// VerdictPending, until it returns VerdictValid or VerdictInvalid.
	PollChallengeResponseResult func(endpointName string) ChallengeVerdict
}

// ClientResult is what a successful client-role identity handshake yields:
// the address of, and client authorization for, the freshly minted endpoint
// service.
type ClientResult struct {
	EndpointServiceId    crypto.V3OnionServiceId
	EndpointName         string
	ClientAuthPrivateKey [32]byte
}

// RunIdentityClient drives the client role of the identity handshake to
// completion over an already-connected session, per spec §4.4.
func RunIdentityClient(ctx context.Context, session *honkrpc.Session, clientIdentity crypto.Ed25519Keypair, serverID crypto.V3OnionServiceId, endpointName string, hooks ClientHooks) (ClientResult, error) {
	if hooks.Started != nil {
		hooks.Started()
	}

	beginResult, err := session.Call(ctx, IdentityNamespace, "begin_handshake", IdentityVersion, document.Map(
		document.NewPair("version", document.Int32(IdentityVersion)),
		document.NewPair("client_identity", document.String(string(clientIdentity.ServiceId()))),
		document.NewPair("endpoint", document.String(endpointName)),
	))
	if err != nil {
		return ClientResult{}, translate(err)
	}

	cookieDoc, ok := beginResult.Get("server_cookie")
	if !ok {
		return ClientResult{}, fmt.Errorf("handshake: %w: missing server_cookie", ErrUnexpectedStage)
	}
	cookie, ok := cookieDoc.Binary()
	if !ok || len(cookie) != 32 {
		return ClientResult{}, fmt.Errorf("handshake: %w: malformed server_cookie", ErrUnexpectedStage)
	}
	challenge, _ := beginResult.Get("endpoint_challenge")

	var response document.Document
	if hooks.BuildChallengeResponse != nil {
		response = hooks.BuildChallengeResponse(endpointName, challenge)
	} else {
		response = document.Map()
	}

	proofMsg := crypto.DomainSeparateIdentity(
		[]byte(clientIdentity.ServiceId()),
		[]byte(serverID),
		cookie,
		[]byte(endpointName),
	)
	proof := clientIdentity.Sign(proofMsg)

	finalResult, err := session.Call(ctx, IdentityNamespace, "send_response", IdentityVersion, document.Map(
		document.NewPair("client_identity_proof", document.Binary(proof)),
		document.NewPair("challenge_response", response),
	))
	if err != nil {
		return ClientResult{}, translate(err)
	}

	endpointIDDoc, ok := finalResult.Get("endpoint_service_id")
	if !ok {
		return ClientResult{}, fmt.Errorf("handshake: %w: missing endpoint_service_id", ErrUnexpectedStage)
	}
	endpointIDStr, ok := endpointIDDoc.Str()
	if !ok {
		return ClientResult{}, fmt.Errorf("handshake: %w: endpoint_service_id not a string", ErrUnexpectedStage)
	}

	keyDoc, ok := finalResult.Get("endpoint_client_auth_private_key")
	if !ok {
		return ClientResult{}, fmt.Errorf("handshake: %w: missing endpoint_client_auth_private_key", ErrUnexpectedStage)
	}
	keyBytes, ok := keyDoc.Binary()
	if !ok || len(keyBytes) != 32 {
		return ClientResult{}, fmt.Errorf("handshake: %w: malformed endpoint_client_auth_private_key", ErrUnexpectedStage)
	}
	var clientAuthKey [32]byte
	copy(clientAuthKey[:], keyBytes)

	return ClientResult{
		EndpointServiceId:    crypto.V3OnionServiceId(endpointIDStr),
		EndpointName:         endpointName,
		ClientAuthPrivateKey: clientAuthKey,
	}, nil
}

// PublishEndpointFunc is called by the server once a client's challenge
// response is accepted, to mint and publish the new endpoint onion service.
// It is supplied by the context, which alone owns the Tor backend.
type PublishEndpointFunc func(ctx context.Context, key crypto.Ed25519Keypair, endpointName string, clientAuthPub [32]byte) (crypto.V3OnionServiceId, error)

// PublishedEndpoint describes a freshly minted endpoint service, reported to
// the onSuccess callback given to NewIdentityServer so the owning context
// can track it.
type PublishedEndpoint struct {
	ServiceId     crypto.V3OnionServiceId
	EndpointName  string
	ClientId      crypto.V3OnionServiceId
	ClientAuthPub [32]byte
}

type identityServerStage int

const (
	stageBegin identityServerStage = iota
	stageAwaitingResponse
	stageAwaitingVerification
	stageDone
)

// IdentityServer runs the server role of a single identity handshake,
// scoped to one connection's session per spec §4.4 ("a per-connection short
// session").
type IdentityServer struct {
	serverID  crypto.V3OnionServiceId
	blocklist map[crypto.V3OnionServiceId]bool
	hooks     ServerHooks
	publish   PublishEndpointFunc
	onSuccess func(PublishedEndpoint)
	logger    log.Logger

	mu           sync.Mutex
	stage        identityServerStage
	cookie       [32]byte
	challenge    document.Document
	clientID     crypto.V3OnionServiceId
	endpointName string
}

// NewIdentityServer constructs a server-role identity handshake handler.
// onSuccess, if non-nil, is invoked once an endpoint has been published.
func NewIdentityServer(serverID crypto.V3OnionServiceId, blocklist map[crypto.V3OnionServiceId]bool, hooks ServerHooks, publish PublishEndpointFunc, onSuccess func(PublishedEndpoint), logger log.Logger) *IdentityServer {
	if logger == nil {
		logger = log.Root()
	}
	return &IdentityServer{
		serverID:  serverID,
		blocklist: blocklist,
		hooks:     hooks,
		publish:   publish,
		onSuccess: onSuccess,
		logger:    logger,
	}
}

// Register installs this handshake's handlers onto session. Call once per
// accepted connection.
func (s *IdentityServer) Register(session *honkrpc.Session) {
	session.RegisterHandler(IdentityNamespace, "begin_handshake", IdentityVersion, func(ctx context.Context, req honkrpc.Request, resp honkrpc.Responder) {
		s.handleBegin(ctx, req, resp, session)
	})
	session.RegisterHandler(IdentityNamespace, "send_response", IdentityVersion, func(ctx context.Context, req honkrpc.Request, resp honkrpc.Responder) {
		s.handleSendResponse(ctx, req, resp, session)
	})
}

func (s *IdentityServer) handleBegin(ctx context.Context, req honkrpc.Request, resp honkrpc.Responder, session *honkrpc.Session) {
	versionDoc, _ := req.Arguments.Get("version")
	if v, _ := versionDoc.Int32(); v != IdentityVersion {
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

	endpointDoc, _ := req.Arguments.Get("endpoint")
	endpointName, _ := endpointDoc.Str()

	if s.hooks.EndpointSupported != nil && !s.hooks.EndpointSupported(endpointName) {
		resp.Error(CodeInvalidEndpoint, "")
		session.Close()
		return
	}
	if s.blocklist[clientID] {
		resp.Error(CodeBlocked, "")
		session.Close()
		return
	}

	cookie, err := crypto.NewServerCookie()
	if err != nil {
		resp.Error(honkrpc.CodeFailure, err.Error())
		return
	}
	var challenge document.Document
	if s.hooks.BuildChallenge != nil {
		challenge = s.hooks.BuildChallenge(endpointName)
	} else {
		challenge = document.Map()
	}

	s.mu.Lock()
	s.stage = stageAwaitingResponse
	s.cookie = cookie
	s.challenge = challenge
	s.clientID = clientID
	s.endpointName = endpointName
	s.mu.Unlock()

	resp.Complete(document.Map(
		document.NewPair("server_cookie", document.Binary(cookie[:])),
		document.NewPair("endpoint_challenge", challenge),
	))
}

func (s *IdentityServer) handleSendResponse(ctx context.Context, req honkrpc.Request, resp honkrpc.Responder, session *honkrpc.Session) {
	s.mu.Lock()
	if s.stage != stageAwaitingResponse {
		s.mu.Unlock()
		resp.Error(honkrpc.CodeBadArguments, "send_response received out of order")
		return
	}
	cookie, challenge, clientID, endpointName := s.cookie, s.challenge, s.clientID, s.endpointName
	s.stage = stageAwaitingVerification
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
	proofMsg := crypto.DomainSeparateIdentity([]byte(clientID), []byte(s.serverID), cookie[:], []byte(endpointName))
	if err := crypto.Verify(clientPub, proofMsg, proof); err != nil {
		resp.Error(CodeBadProof, "")
		session.Close()
		return
	}

	challengeResponse, _ := req.Arguments.Get("challenge_response")

	verdict := VerdictValid
	if s.hooks.VerifyChallengeResponse != nil {
		verdict = s.hooks.VerifyChallengeResponse(endpointName, challenge, challengeResponse)
	}
	s.resolveVerdict(ctx, verdict, clientID, endpointName, resp, session)
}

// resolveVerdict acts on a challenge verdict, polling the consumer hook
// while it stays pending, per spec §4.4 step 3.
func (s *IdentityServer) resolveVerdict(ctx context.Context, verdict ChallengeVerdict, clientID crypto.V3OnionServiceId, endpointName string, resp honkrpc.Responder, session *honkrpc.Session) {
	if verdict == VerdictPending {
		go s.pollVerdict(ctx, clientID, endpointName, resp, session)
		return
	}
	s.finishVerdict(ctx, verdict, clientID, endpointName, resp, session)
}

func (s *IdentityServer) pollVerdict(ctx context.Context, clientID crypto.V3OnionServiceId, endpointName string, resp honkrpc.Responder, session *honkrpc.Session) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hooks.PollChallengeResponseResult == nil {
				s.finishVerdict(ctx, VerdictValid, clientID, endpointName, resp, session)
				return
			}
			verdict := s.hooks.PollChallengeResponseResult(endpointName)
			if verdict == VerdictPending {
				continue
			}
			s.finishVerdict(ctx, verdict, clientID, endpointName, resp, session)
			return
		}
	}
}

func (s *IdentityServer) finishVerdict(ctx context.Context, verdict ChallengeVerdict, clientID crypto.V3OnionServiceId, endpointName string, resp honkrpc.Responder, session *honkrpc.Session) {
	s.mu.Lock()
	s.stage = stageDone
	s.mu.Unlock()

	if verdict == VerdictInvalid {
		resp.Error(CodeChallengeRejected, "")
		session.Close()
		return
	}

	endpointKey, err := crypto.GenerateEd25519Keypair()
	if err != nil {
		resp.Error(honkrpc.CodeFailure, err.Error())
		return
	}
	clientAuthKey, err := crypto.GenerateX25519Keypair()
	if err != nil {
		resp.Error(honkrpc.CodeFailure, err.Error())
		return
	}

	endpointID, err := s.publish(ctx, endpointKey, endpointName, clientAuthKey.PublicKey())
	if err != nil {
		s.logger.Warn("failed to publish endpoint service", "err", err)
		resp.Error(honkrpc.CodeFailure, err.Error())
		return
	}

	resp.Complete(document.Map(
		document.NewPair("endpoint_service_id", document.String(string(endpointID))),
		document.NewPair("endpoint_client_auth_private_key", document.Binary(clientAuthKey.PrivateKey()[:])),
	))

	if s.onSuccess != nil {
		s.onSuccess(PublishedEndpoint{
			ServiceId:     endpointID,
			EndpointName:  endpointName,
			ClientId:      clientID,
			ClientAuthPub: clientAuthKey.PublicKey(),
		})
	}
}
