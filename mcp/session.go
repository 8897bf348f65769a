// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"sync"
	"time"

	"github.com/mcpcore/go-mcp/internal/jsonrpc2"
)

// initState tracks where a session sits in the initialize handshake: every
// request but "initialize" is rejected with InvalidRequest until an
// initialize request has been received, and every request but
// notifications/initialized is rejected until that notification arrives.
type initState int

const (
	initNotStarted initState = iota
	initPending
	initComplete
)

// pendingCall is a continuation awaiting a response to one outbound
// request, keyed by RequestID in Session.pending.
type pendingCall struct {
	resolve func(result Value, rpcErr *Error)
	timer   *time.Timer
}

// Session is the per-connection state the protocol engine maintains on top
// of a Transport: the initialize handshake gate, outstanding request
// continuations, and the set of progress tokens the peer has authorized.
//
// All mutation goes through the methods below, which take the session's
// own mutex; Session is safe for concurrent use, and the engine that owns
// one touches it from its receive loop, from the goroutines running its
// inbound handlers, and from whichever goroutines are waiting on outbound
// calls.
type Session struct {
	id string

	mu             sync.Mutex
	init           initState
	nextID         int64
	pending        map[string]*pendingCall
	progressTokens map[string]bool // tokens the session has declared live, keyed by String()
	closed         bool
	onClose        []func()
}

// NewSession creates a fresh Session with the given stable identifier
// (empty for transports, such as stdio, that have no notion of one).
func NewSession(id string) *Session {
	return &Session{
		id:             id,
		pending:        map[string]*pendingCall{},
		progressTokens: map[string]bool{},
	}
}

// ID returns the session's stable identifier.
func (s *Session) ID() string { return s.id }

// nextRequestID mints the next outbound RequestID for this session's own
// calls (as opposed to IDs on requests the peer sends us, which are
// whatever the peer chose).
func (s *Session) nextRequestID() RequestID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return requestIDFromWire(jsonrpc2.Int64ID(s.nextID))
}

// checkInitGate reports whether method is allowed given the session's
// current handshake state.
func (s *Session) checkInitGate(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.init {
	case initNotStarted:
		return method == "initialize"
	case initPending:
		return method == "notifications/initialized"
	default:
		return true
	}
}

func (s *Session) markInitializeSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.init == initNotStarted {
		s.init = initPending
	}
}

func (s *Session) markInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init = initComplete
}

func (s *Session) isInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.init == initComplete
}

// registerPending records a continuation for an outbound request and arms
// a timer that fires resolve with a RequestTimeout error if no response
// resolves it first.
func (s *Session) registerPending(id RequestID, timeout time.Duration, resolve func(Value, *Error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.String()
	pc := &pendingCall{resolve: resolve}
	pc.timer = time.AfterFunc(timeout, func() {
		if call := s.takePending(key); call != nil {
			call.resolve(Value{}, NewTimeoutError(timeout))
		}
	})
	s.pending[key] = pc
}

func (s *Session) takePending(key string) *pendingCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.pending[key]
	if !ok {
		return nil
	}
	delete(s.pending, key)
	return pc
}

// resolvePending completes the pending call for id, if any, stopping its
// timeout timer. It reports whether a matching call was found.
func (s *Session) resolvePending(id RequestID, result Value, rpcErr *Error) bool {
	pc := s.takePending(id.String())
	if pc == nil {
		return false
	}
	pc.timer.Stop()
	pc.resolve(result, rpcErr)
	return true
}

// cancelAllPending resolves every outstanding call with a ConnectionClosed
// error, used when the session's transport disconnects.
func (s *Session) cancelAllPending() {
	s.mu.Lock()
	pending := s.pending
	s.pending = map[string]*pendingCall{}
	s.mu.Unlock()
	for _, pc := range pending {
		pc.timer.Stop()
		pc.resolve(Value{}, &Error{Kind: KindConnectionClosed})
	}
}

// declareProgressToken records that token is now live for an in-flight
// request, so progress notifications referencing it are accepted (progress
// is restricted to declared tokens only).
func (s *Session) declareProgressToken(token ProgressToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressTokens[token.String()] = true
}

// retireProgressToken marks token as no longer eligible for progress,
// called once the owning request's final response has been sent.
func (s *Session) retireProgressToken(token ProgressToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progressTokens, token.String())
}

func (s *Session) isProgressTokenLive(token ProgressToken) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressTokens[token.String()]
}

// Close runs registered close hooks exactly once and marks the session
// closed, failing any requests still outstanding.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	hooks := s.onClose
	s.mu.Unlock()

	s.cancelAllPending()
	for _, h := range hooks {
		h()
	}
}

// OnClose registers fn to run when Close is called. If the session is
// already closed, fn runs immediately.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}
