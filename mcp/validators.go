// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"mime"
	"net/http"
	"strings"

	"github.com/mcpcore/go-mcp/internal/fastjson"
	"github.com/mcpcore/go-mcp/internal/jsonrpc2"
)

// ProtocolVersion is the protocol version this module implements and
// advertises as its default when a peer omits MCP-Protocol-Version
// Absent means use the server's default version.
const ProtocolVersion = "2025-06-18"

// supportedProtocolVersions lists every version this server transport will
// accept on MCP-Protocol-Version.
var supportedProtocolVersions = map[string]bool{
	ProtocolVersion: true,
}

// httpValidator inspects one inbound streamable-HTTP request and either
// lets it through or produces the HTTP status/body that rejects it. The
// validators run in a fixed order: Origin, Accept,
// Content-Type, Protocol-Version, Session.
type httpValidator interface {
	validate(r *http.Request, sess *httpSession) *httpRejection
}

// httpRejection carries the status code and JSON-RPC-shaped body a
// validator wants written back to the client.
type httpRejection struct {
	status int
	body   []byte
}

// runValidators applies vs in order, short-circuiting on the first
// rejection.
func runValidators(vs []httpValidator, r *http.Request, sess *httpSession) *httpRejection {
	for _, v := range vs {
		if rej := v.validate(r, sess); rej != nil {
			return rej
		}
	}
	return nil
}

// defaultValidators returns the fixed-order validator pipeline described
// parameterized by the set of Origins the host will accept.
func defaultValidators(allowedOrigins []string) []httpValidator {
	return []httpValidator{
		originValidator{allowed: allowedOrigins},
		acceptHeaderValidator{},
		contentTypeValidator{},
		protocolVersionValidator{},
		sessionValidator{},
	}
}

func jsonRPCErrorBody(kind Kind, message string) []byte {
	e := &Error{Kind: kind, Message: message}
	we, err := e.ToWire()
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	data, err := fastjson.Marshal(struct {
		JSONRPC string              `json:"jsonrpc"`
		ID      any                 `json:"id"`
		Error   *jsonrpc2.WireError `json:"error"`
	}{JSONRPC: jsonrpc2.Version, ID: nil, Error: we})
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}

// originValidator rejects cross-origin requests whose Origin header is not
// in the configured allow-list. An absent Origin header (same-origin or a
// non-browser client) always passes.
type originValidator struct {
	allowed []string
}

func (v originValidator) validate(r *http.Request, _ *httpSession) *httpRejection {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	if len(v.allowed) == 0 {
		return nil
	}
	for _, a := range v.allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return nil
		}
	}
	return &httpRejection{status: http.StatusForbidden, body: jsonRPCErrorBody(KindInvalidRequest, "origin not allowed")}
}

// acceptHeaderValidator requires a POST to accept both application/json
// and text/event-stream, per the streamable HTTP transport's dual response
// shape, and a GET to accept text/event-stream. An absent Accept header or
// */* passes.
type acceptHeaderValidator struct{}

func (acceptHeaderValidator) validate(r *http.Request, _ *httpSession) *httpRejection {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		return nil
	}
	accept := r.Header.Get("Accept")
	if accept == "" || accept == "*/*" {
		return nil
	}
	wantsJSON := strings.Contains(accept, "application/json") || strings.Contains(accept, "*/*")
	wantsSSE := strings.Contains(accept, "text/event-stream") || strings.Contains(accept, "*/*")
	if r.Method == http.MethodPost && !(wantsJSON && wantsSSE) {
		return &httpRejection{status: http.StatusNotAcceptable, body: jsonRPCErrorBody(KindInvalidRequest, "Accept header must include application/json and text/event-stream")}
	}
	if r.Method == http.MethodGet && !wantsSSE {
		return &httpRejection{status: http.StatusNotAcceptable, body: jsonRPCErrorBody(KindInvalidRequest, "Accept header must include text/event-stream")}
	}
	return nil
}

// contentTypeValidator requires POST bodies to be application/json.
type contentTypeValidator struct{}

func (contentTypeValidator) validate(r *http.Request, _ *httpSession) *httpRejection {
	if r.Method != http.MethodPost {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil || mt != "application/json" {
		return &httpRejection{status: http.StatusUnsupportedMediaType, body: jsonRPCErrorBody(KindInvalidRequest, "Content-Type must be application/json")}
	}
	return nil
}

// protocolVersionValidator checks MCP-Protocol-Version against the set of
// versions this server supports. An absent header is accepted and treated
// as the server's default version.
type protocolVersionValidator struct{}

func (protocolVersionValidator) validate(r *http.Request, _ *httpSession) *httpRejection {
	v := r.Header.Get("MCP-Protocol-Version")
	if v == "" {
		return nil
	}
	if !supportedProtocolVersions[v] {
		return &httpRejection{status: http.StatusBadRequest, body: jsonRPCErrorBody(KindInvalidRequest, "unsupported MCP-Protocol-Version: "+v)}
	}
	return nil
}

// sessionValidator enforces that any request naming a session via
// Mcp-Session-Id refers to one that exists and has not been terminated.
// Requests establishing a new session (initialize, with no header yet)
// pass through untouched.
type sessionValidator struct{}

func (sessionValidator) validate(r *http.Request, sess *httpSession) *httpRejection {
	id := r.Header.Get("Mcp-Session-Id")
	if id == "" {
		return nil
	}
	if sess == nil {
		return &httpRejection{status: http.StatusNotFound, body: jsonRPCErrorBody(KindInvalidRequest, "unknown session")}
	}
	return nil
}
