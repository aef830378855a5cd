// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

// Package honkrpc implements a length-framed, request/response RPC session
// over a reliable ordered byte stream, carrying self-describing binary
// documents. It multiplexes concurrent calls, bounds pending work, rate
// limits inbound traffic and supports cooperative cancellation.
package honkrpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"

	"github.com/pcwizz/gosling/document"
	"github.com/pcwizz/gosling/params"
)

// Request is a single inbound call delivered to a registered Handler.
type Request struct {
	Namespace string
	Function  string
	Version   int32
	Arguments document.Document
}

// Responder lets a Handler answer a Request, synchronously or from a
// goroutine spawned later (the "pending" case of spec §4.2). Only the first
// call to Complete or Error has any effect.
type Responder struct {
	session *Session
	cookie  int64
	once    *sync.Once
}

// Complete answers the request with a successful result.
func (r Responder) Complete(result document.Document) {
	r.once.Do(func() {
		r.session.reply(responseSection{cookie: r.cookie, state: stateComplete, result: result, hasResult: true})
		r.session.finishInbound(r.cookie)
	})
}

// Error answers the request with a failure.
func (r Responder) Error(code ErrorCode, message string) {
	r.once.Do(func() {
		r.session.reply(responseSection{cookie: r.cookie, state: stateError, errorCode: int32(code), hasError: true, message: message})
		r.session.finishInbound(r.cookie)
	})
}

// Handler processes one inbound request. It may call resp synchronously
// before returning, or retain resp and call it later from another goroutine
// to implement spec §4.2's asynchronous "pending" responses. If neither
// Complete nor Error is called before ctx is cancelled by the peer issuing a
// cancel request, the handler should abandon its work.
type Handler func(ctx context.Context, req Request, resp Responder)

type handlerKey struct {
	namespace string
	function  string
	version   int32
}

// inboundCall tracks a request currently being served by a Handler.
type inboundCall struct {
	cancel context.CancelFunc
}

// localCall tracks an outbound request awaiting its response.
type localCall struct {
	ch chan responseSection
}

// Session wraps one honk_rpc connection. Create with NewSession, register
// handlers, then run Serve in a goroutine; Call issues outbound requests.
type Session struct {
	conn    net.Conn
	writeMu sync.Mutex

	detached     atomic.Bool
	detachedDone chan struct{}

	maxSize        int
	maxPendingCall int
	callTimeout    time.Duration

	handlersMu sync.RWMutex
	handlers   map[handlerKey]Handler

	nextCookie int64

	localMu sync.Mutex
	local   map[int64]*localCall

	inboundMu sync.Mutex
	inbound   map[int64]*inboundCall

	limiter *rate.Limiter

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error

	logger log.Logger
}

// Config customizes a Session's limits; the zero Config uses package params
// defaults.
type Config struct {
	MaxEnvelopeSize int
	MaxPendingCalls int
	CallTimeout     time.Duration
	RateLimit       rate.Limit
	RateBurst       int
	Logger          log.Logger
}

// NewSession wraps conn in a Session. The caller must call Serve to start
// processing inbound traffic.
func NewSession(conn net.Conn, cfg Config) *Session {
	if cfg.MaxEnvelopeSize == 0 {
		cfg.MaxEnvelopeSize = params.MaxEnvelopeSize
	}
	if cfg.MaxPendingCalls == 0 {
		cfg.MaxPendingCalls = params.MaxPendingCalls
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = params.CallTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = rate.Limit(params.InboundRateLimit)
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = params.InboundRateBurst
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}
	return &Session{
		conn:           conn,
		maxSize:        cfg.MaxEnvelopeSize,
		maxPendingCall: cfg.MaxPendingCalls,
		callTimeout:    cfg.CallTimeout,
		handlers:       make(map[handlerKey]Handler),
		local:          make(map[int64]*localCall),
		inbound:        make(map[int64]*inboundCall),
		limiter:        rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		closed:         make(chan struct{}),
		detachedDone:   make(chan struct{}),
		logger:         logger,
	}
}

// RegisterHandler installs h to serve requests addressed to
// (namespace, function, version).
func (s *Session) RegisterHandler(namespace, function string, version int32, h Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[handlerKey{namespace, function, version}] = h
}

// Serve reads and dispatches envelopes until the connection fails or Close
// is called. It returns the terminal error (io.EOF on a clean peer close).
func (s *Session) Serve() error {
	defer close(s.detachedDone)

	for {
		if s.detached.Load() {
			return nil
		}
		if err := s.limiter.Wait(context.Background()); err != nil {
			s.shutdown(err)
			return err
		}
		doc, err := readEnvelope(s.conn, s.maxSize)
		if err != nil {
			if s.detached.Load() {
				return nil
			}
			s.shutdown(err)
			return err
		}
		sections, err := parseEnvelope(doc)
		if err != nil {
			s.sendFatal(int32(CodeBadArguments), err.Error())
			s.shutdown(err)
			return err
		}
		for _, sec := range sections {
			kind, err := sectionKind(sec)
			if err != nil {
				s.sendFatal(int32(CodeBadArguments), err.Error())
				s.shutdown(err)
				return err
			}
			switch kind {
			case sectionRequest:
				s.handleRequestSection(sec)
			case sectionResponse:
				s.handleResponseSection(sec)
			case sectionError:
				s.handleErrorSection(sec)
			default:
				s.logger.Warn("dropping unknown section kind", "kind", kind)
			}
		}
	}
}

func (s *Session) handleRequestSection(sec document.Document) {
	req, err := parseRequestSection(sec)
	if err != nil {
		s.logger.Warn("dropping malformed request section", "err", err)
		return
	}
	if req.cancel {
		s.inboundMu.Lock()
		call, ok := s.inbound[req.cookie]
		if ok {
			delete(s.inbound, req.cookie)
		}
		s.inboundMu.Unlock()
		if ok {
			call.cancel()
		}
		return
	}

	s.inboundMu.Lock()
	if len(s.inbound) >= s.maxPendingCall {
		s.inboundMu.Unlock()
		s.reply(responseSection{cookie: req.cookie, state: stateError, errorCode: int32(CodeBusy), hasError: true})
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.inbound[req.cookie] = &inboundCall{cancel: cancel}
	s.inboundMu.Unlock()

	handler, ok := s.lookupHandler(req)
	if !ok {
		s.finishInbound(req.cookie)
		code := CodeUnknownFunction
		if s.hasFunction(req.namespace, req.function) {
			code = CodeUnknownVersion
		}
		s.reply(responseSection{cookie: req.cookie, state: stateError, errorCode: int32(code), hasError: true})
		return
	}

	resp := Responder{session: s, cookie: req.cookie, once: &sync.Once{}}
	reqValue := Request{Namespace: req.namespace, Function: req.function, Version: req.version, Arguments: req.arguments}
	go handler(ctx, reqValue, resp)
}

func (s *Session) lookupHandler(req requestSection) (Handler, bool) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	h, ok := s.handlers[handlerKey{req.namespace, req.function, req.version}]
	return h, ok
}

func (s *Session) hasFunction(namespace, function string) bool {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	for k := range s.handlers {
		if k.namespace == namespace && k.function == function {
			return true
		}
	}
	return false
}

func (s *Session) finishInbound(cookie int64) {
	s.inboundMu.Lock()
	delete(s.inbound, cookie)
	s.inboundMu.Unlock()
}

func (s *Session) handleResponseSection(sec document.Document) {
	resp, err := parseResponseSection(sec)
	if err != nil {
		s.logger.Warn("dropping malformed response section", "err", err)
		return
	}
	if resp.state == statePending {
		return // keepalive, nothing to deliver yet
	}
	s.localMu.Lock()
	call, ok := s.local[resp.cookie]
	if ok {
		delete(s.local, resp.cookie)
	}
	s.localMu.Unlock()
	if !ok {
		return
	}
	select {
	case call.ch <- resp:
	default:
	}
}

func (s *Session) handleErrorSection(sec document.Document) {
	errSec, err := parseErrorSection(sec)
	if err != nil {
		s.logger.Warn("dropping malformed error section", "err", err)
		return
	}
	s.logger.Error("peer reported session-fatal error", "code", errSec.code, "message", errSec.message)
	s.shutdown(fmt.Errorf("honkrpc: peer error %d: %s", errSec.code, errSec.message))
}

// Call issues an outbound request and blocks until it completes, errors,
// times out or the session closes. Cancelling ctx sends a best-effort
// cancel section to the peer.
func (s *Session) Call(ctx context.Context, namespace, function string, version int32, args document.Document) (document.Document, error) {
	select {
	case <-s.closed:
		return document.Document{}, ErrClosed
	default:
	}
	cookie := atomic.AddInt64(&s.nextCookie, 1)
	call := &localCall{ch: make(chan responseSection, 1)}

	s.localMu.Lock()
	s.local[cookie] = call
	s.localMu.Unlock()

	if err := s.writeEnvelope(buildEnvelope(buildRequestSection(requestSection{
		cookie: cookie, namespace: namespace, function: function, version: version, arguments: args,
	}))); err != nil {
		s.localMu.Lock()
		delete(s.local, cookie)
		s.localMu.Unlock()
		return document.Document{}, err
	}

	timer := time.NewTimer(s.callTimeout)
	defer timer.Stop()

	select {
	case resp := <-call.ch:
		if resp.state == stateError {
			code := ErrorCode(resp.errorCode)
			return document.Document{}, &CallError{Code: code, Message: resp.message}
		}
		return resp.result, nil

	case <-ctx.Done():
		s.cancelLocal(cookie)
		return document.Document{}, ctx.Err()

	case <-timer.C:
		s.cancelLocal(cookie)
		return document.Document{}, &CallError{Code: CodeTimeout}

	case <-s.closed:
		s.localMu.Lock()
		delete(s.local, cookie)
		s.localMu.Unlock()
		return document.Document{}, ErrAborted
	}
}

// cancelLocal removes a pending local call and best-effort notifies the peer.
func (s *Session) cancelLocal(cookie int64) {
	s.localMu.Lock()
	delete(s.local, cookie)
	s.localMu.Unlock()

	_ = s.writeEnvelope(buildEnvelope(buildRequestSection(requestSection{
		cookie: cookie, cancel: true, arguments: document.Map(),
	})))
}

func (s *Session) reply(r responseSection) {
	if err := s.writeEnvelope(buildEnvelope(buildResponseSection(r))); err != nil {
		s.logger.Debug("failed to write response", "cookie", r.cookie, "err", err)
	}
}

func (s *Session) sendFatal(code int32, message string) {
	_ = s.writeEnvelope(buildEnvelope(buildErrorSection(errorSection{code: code, message: message})))
}

func (s *Session) writeEnvelope(doc document.Document) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeEnvelope(s.conn, doc)
}

// shutdown tears the session down exactly once, resolving every outstanding
// local call as aborted per spec §4.2's shutdown contract.
func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.closeErr = err
		close(s.closed)

		s.localMu.Lock()
		s.local = make(map[int64]*localCall)
		s.localMu.Unlock()

		s.inboundMu.Lock()
		for _, call := range s.inbound {
			call.cancel()
		}
		s.inbound = make(map[int64]*inboundCall)
		s.inboundMu.Unlock()

		s.conn.Close()
	})
}

// Close terminates the session. Outstanding local calls resolve ErrAborted;
// subsequent Call invocations fail with ErrClosed.
func (s *Session) Close() error {
	s.shutdown(ErrClosed)
	return nil
}

// Done returns a channel closed once the session has shut down.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Detach stops the session's read loop without closing the underlying
// connection and returns it for raw use, implementing the endpoint
// handshake's post-success promotion to a plain byte-stream channel (spec
// §4.5). Detach must only be called once no further Honk-RPC traffic is
// expected; any bytes the peer still sends before that point are undefined.
func (s *Session) Detach() net.Conn {
	s.detached.Store(true)
	_ = s.conn.SetReadDeadline(time.Now())
	<-s.detachedDone
	_ = s.conn.SetReadDeadline(time.Time{})
	return s.conn
}
