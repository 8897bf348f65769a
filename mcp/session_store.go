// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"sync"
	"time"
)

// registeredSession bundles one HTTP session's transport, engine, and
// liveness bookkeeping, as tracked by the Host.
type registeredSession struct {
	id        string
	transport *StreamableServerTransport
	engine    *Engine
	session   *Session

	mu         sync.Mutex
	lastActive time.Time
}

func (r *registeredSession) touch() {
	r.mu.Lock()
	r.lastActive = time.Now()
	r.mu.Unlock()
}

func (r *registeredSession) idleSince() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastActive)
}

// sessionRegistry is the Host's in-memory table of live sessions, keyed by
// the Mcp-Session-Id the client presents on each request. Durable,
// cross-process session persistence is out of scope for this module; a
// process restart drops every session, which is the documented behavior
// rather than a limitation to work around.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*registeredSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: map[string]*registeredSession{}}
}

func (r *sessionRegistry) get(id string) (*registeredSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sessionRegistry) put(s *registeredSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.id] = s
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// evictIdle disconnects and removes every session that has been idle
// longer than maxIdle, returning how many were evicted.
func (r *sessionRegistry) evictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	var stale []*registeredSession
	for id, s := range r.sessions {
		if s.idleSince() > maxIdle {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.engine.CancelAll(context.Background(), "session idle")
		_ = s.transport.Disconnect()
	}
	return len(stale)
}

func (r *sessionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
