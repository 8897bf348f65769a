// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HandlerSetFactory builds the per-session handler set a newly created
// Server binds to its Engine. The Host calls it once per new session, on
// the POST that carries the initialize request.
type HandlerSetFactory func() (*Server, map[string]TypedHandler)

// Host is the stateful HTTP session host: it binds
// one listener to one path, demultiplexes inbound requests by
// Mcp-Session-Id, creates a new Session+Engine+transport on the POST that
// establishes a session, evicts idle sessions in the background, and
// throttles inbound traffic per remote address before any of the above
// ever runs (the SPEC_FULL.md-added admission-control layer).
type Host struct {
	cfg     *Config
	factory HandlerSetFactory
	logger  *slog.Logger

	registry *sessionRegistry

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	server *http.Server
}

// NewHost builds a Host that will serve cfg.Path on cfg.Addr, creating a
// fresh handler set via factory for every new session.
func NewHost(cfg *Config, factory HandlerSetFactory, logger *slog.Logger) *Host {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		cfg:      cfg,
		factory:  factory,
		logger:   logger,
		registry: newSessionRegistry(),
		limiters: map[string]*rate.Limiter{},
	}
}

func (h *Host) limiterFor(addr string) *rate.Limiter {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()
	l, ok := h.limiters[addr]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.cfg.RateLimitPerSecond), h.cfg.RateLimitBurst)
		h.limiters[addr] = l
	}
	return l
}

// ServeHTTP implements http.Handler. It applies the admission limiter,
// then the fixed validator pipeline, then dispatches by
// method to the session-establishing or session-bound path.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.RateLimitPerSecond > 0 {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !h.limiterFor(host).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
	}

	sessionID := r.Header.Get("Mcp-Session-Id")
	var rs *registeredSession
	if sessionID != "" {
		rs, _ = h.registry.get(sessionID)
	}

	var sess *httpSession
	if rs != nil {
		sess = rs.transport.sess
	}
	if rej := runValidators(defaultValidators(h.cfg.AllowedOrigins), r, sess); rej != nil {
		w.WriteHeader(rej.status)
		w.Write(rej.body)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r, sessionID, rs)
	case http.MethodGet:
		h.handleGet(w, r, sessionID, rs)
	case http.MethodDelete:
		h.handleDelete(w, r, sessionID, rs)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Host) handlePost(w http.ResponseWriter, r *http.Request, sessionID string, rs *registeredSession) {
	if rs == nil {
		maxBody := effectiveMaxBodyBytes(h.cfg.MaxBodyBytes)
		limited := r.Body
		if maxBody > 0 {
			limited = http.MaxBytesReader(w, r.Body, maxBody)
		}
		body, err := io.ReadAll(limited)
		if err != nil {
			if isMaxBytesError(err) {
				writeRequestBodyTooLarge(w)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if sessionID != "" {
			// Session header named a session that no longer exists.
			w.WriteHeader(http.StatusNotFound)
			w.Write(jsonRPCErrorBody(KindInvalidRequest, "unknown session"))
			return
		}
		if !bodyIsInitialize(body) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write(jsonRPCErrorBody(KindInvalidRequest, "missing Mcp-Session-Id"))
			return
		}
		rs = h.createSession()
		go rs.engine.Run(context.Background())
		rs.touch()
		rs.transport.ServePostBody(w, r, body)
		return
	}
	rs.touch()
	rs.transport.ServePost(w, r)
}

func (h *Host) handleGet(w http.ResponseWriter, r *http.Request, sessionID string, rs *registeredSession) {
	if rs == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	rs.touch()
	rs.transport.ServeGet(w, r)
}

func (h *Host) handleDelete(w http.ResponseWriter, r *http.Request, sessionID string, rs *registeredSession) {
	if rs == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	h.registry.remove(sessionID)
	rs.engine.CancelAll(r.Context(), "session deleted")
	rs.transport.ServeDelete(w, r)
}

func (h *Host) createSession() *registeredSession {
	id := newSessionID()
	maxBody := effectiveMaxBodyBytes(h.cfg.MaxBodyBytes)
	hsess := newHTTPSession(id, maxBody)
	if h.cfg.EventStoreCapacity > 0 {
		hsess.store = newEventStore(h.cfg.EventStoreCapacity)
	}
	transport := NewStreamableServerTransport(hsess)
	sess := NewSession(id)
	engine := NewEngine(transport, sess, h.logger)
	if h.cfg.RequestTimeout > 0 {
		engine.SetRequestTimeout(h.cfg.RequestTimeout)
	}

	server, handlers := h.factory()
	server.Bind(engine, handlers)

	rs := &registeredSession{id: id, transport: transport, engine: engine, session: sess, lastActive: time.Now()}
	h.registry.put(rs)
	sess.OnClose(func() { h.registry.remove(id) })
	return rs
}

// runEvictionLoop periodically evicts sessions idle longer than
// cfg.SessionIdleTimeout, until ctx is cancelled.
func (h *Host) runEvictionLoop(ctx context.Context) {
	timeout := h.cfg.SessionIdleTimeout
	if timeout <= 0 {
		timeout = DefaultSessionIdleTimeout
	}
	ticker := time.NewTicker(timeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.registry.evictIdle(timeout); n > 0 {
				h.logger.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

// ListenAndServe binds cfg.Addr and serves until ctx is cancelled.
func (h *Host) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(h.cfg.Path, h)
	h.server = &http.Server{Addr: h.cfg.Addr, Handler: mux}

	go h.runEvictionLoop(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- h.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// SessionCount reports how many sessions are currently registered, mainly
// for tests and diagnostics.
func (h *Host) SessionCount() int { return h.registry.count() }
