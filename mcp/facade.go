// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"sync"
)

// Capability is a named unit of protocol functionality a Server or Client
// may advertise during initialize. Declaring one is what makes its
// associated methods callable; requests for an undeclared capability's
// methods fail with MethodNotFound.
type Capability string

// ServerOptions configures a Server's identity and declared capabilities.
type ServerOptions struct {
	Name         string
	Version      string
	Capabilities []Capability
}

// Server is the facade a program builds to expose MCP methods: it wraps
// an Engine with typed handler registration and capability-gated
// dispatch, so call sites never touch raw Value params directly.
type Server struct {
	opts ServerOptions

	mu           sync.RWMutex
	capabilities map[Capability]bool
	methods      map[string]Capability // method -> capability that gates it
	engine       *Engine
}

// NewServer creates a Server with the given identity and declared
// capabilities.
func NewServer(opts ServerOptions) *Server {
	caps := make(map[Capability]bool, len(opts.Capabilities))
	for _, c := range opts.Capabilities {
		caps[c] = true
	}
	return &Server{opts: opts, capabilities: caps, methods: map[string]Capability{}}
}

// Engine returns the Engine this server was bound to, or nil before Bind
// has run. Handlers installed by Bind use it to reach
// WithProgress and other engine-level helpers without threading an extra
// parameter through every HandlerFunc.
func (s *Server) Engine() *Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// HasCapability reports whether cap was declared for this server.
func (s *Server) HasCapability(cap Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities[cap]
}

// Bind attaches the server's handlers to e, gating each registered method
// behind its declared capability. Call this once per connected session.
func (s *Server) Bind(e *Engine, handlers map[string]TypedHandler) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
	e.RegisterHandler("initialize", s.handleInitialize)
	for method, h := range handlers {
		s.mu.RLock()
		cap, gated := s.methods[method]
		s.mu.RUnlock()
		hh := h
		e.RegisterHandler(method, func(ctx context.Context, sess *Session, params Value) (Value, *Error) {
			if gated && !s.HasCapability(cap) {
				return Value{}, &Error{Kind: KindMethodNotFound, Message: fmt.Sprintf("capability %q not declared", cap)}
			}
			return hh(ctx, sess, params)
		})
	}
}

// TypedHandler is a request handler registered through a Server.
type TypedHandler = HandlerFunc

// RegisterMethod associates method with the capability that must be
// declared for it to be callable, for use by Bind.
func (s *Server) RegisterMethod(method string, cap Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = cap
}

func (s *Server) handleInitialize(ctx context.Context, sess *Session, params Value) (Value, *Error) {
	in, err := DecodeInitializeParams(params)
	if err != nil {
		return Value{}, &Error{Kind: KindInvalidParams, Message: err.Error()}
	}

	caps := make([]Capability, 0, len(s.capabilities))
	s.mu.RLock()
	for c, on := range s.capabilities {
		if on {
			caps = append(caps, c)
		}
	}
	s.mu.RUnlock()

	result := InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfo{Name: s.opts.Name, Version: s.opts.Version},
		Capabilities:    caps,
	}
	_ = in.ClientInfo // identifies the peer for logging; no per-client gating today
	out, err := ValueOf(result)
	if err != nil {
		return Value{}, &Error{Kind: KindInternalError, Message: err.Error()}
	}
	return out, nil
}

// Client is the facade a program builds to drive an MCP server: typed
// wrappers over Engine.Call plus the three-action elicitation round-trip.
type Client struct {
	engine *Engine
}

// NewClient wraps e.
func NewClient(e *Engine) *Client { return &Client{engine: e} }

// Initialize performs the initialize handshake and, on success, sends
// notifications/initialized.
func (c *Client) Initialize(ctx context.Context, clientName, clientVersion string) (Value, *Error) {
	params := NewValue(map[string]any{
		"protocolVersion": ProtocolVersion,
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	})
	result, rpcErr := c.engine.Call(ctx, "initialize", params)
	if rpcErr != nil {
		return Value{}, rpcErr
	}
	if err := c.engine.Notify(ctx, "notifications/initialized", NewValue(map[string]any{})); err != nil {
		return Value{}, NewTransportError(err.Error())
	}
	return result, nil
}

// Call issues a typed request. It is a thin convenience wrapper over
// Engine.Call for code that already has a Value built.
func (c *Client) Call(ctx context.Context, method string, params Value, opts ...CallOption) (Value, *Error) {
	return c.engine.Call(ctx, method, params, opts...)
}

// ElicitationAction is the outcome a user chooses when a server asks the
// client to collect input mid-request.
type ElicitationAction string

const (
	ElicitationAccept  ElicitationAction = "accept"
	ElicitationDecline ElicitationAction = "decline"
	ElicitationCancel  ElicitationAction = "cancel"
)

// ElicitationHandler answers one elicitation/create request with an
// action and, for ElicitationAccept, the collected content.
type ElicitationHandler func(ctx context.Context, message string, schema Value) (ElicitationAction, Value)

// RegisterElicitation installs fn as the handler for inbound
// elicitation/create requests, translating its result into the three-action
// accept/decline/cancel wire shape.
func (c *Client) RegisterElicitation(e *Engine, fn ElicitationHandler) {
	e.RegisterHandler("elicitation/create", func(ctx context.Context, sess *Session, params Value) (Value, *Error) {
		obj, _ := params.Interface().(map[string]Value)
		var message string
		var schema Value
		if obj != nil {
			if m, ok := obj["message"]; ok {
				if s, ok := m.Interface().(string); ok {
					message = s
				}
			}
			schema = obj["requestedSchema"]
		}
		action, content := fn(ctx, message, schema)
		result := map[string]any{"action": string(action)}
		if action == ElicitationAccept {
			result["content"] = content.Interface()
		}
		return NewValue(result), nil
	})
}
