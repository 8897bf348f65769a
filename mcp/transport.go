// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"iter"
	"net/http"
)

// AuthInfo carries whatever a transport's auth collaborator attached to an
// inbound message. Transport security itself is out of scope for this
// module; this is just a pass-through slot.
type AuthInfo struct {
	Subject string
	Scopes  []string
}

// RequestInfo exposes the inbound HTTP headers for transports that have
// them, so handlers can read things like MCP-Protocol-Version without the
// engine needing an HTTP dependency.
type RequestInfo struct {
	Header http.Header
}

// MessageContext accompanies every TransportMessage yielded by Receive. It
// carries optional auth/request metadata plus transport-specific closures
// that let the protocol engine control stream lifecycle without knowing
// the transport's concrete type.
type MessageContext struct {
	Auth        *AuthInfo
	Request     *RequestInfo
	RequestID   RequestID // if valid, the engine routes responses to this id's stream; the transports in this module leave it unset
	HasRequest  bool

	// CloseSSEStream closes the POST-bound SSE stream this message arrived
	// on, if any.
	CloseSSEStream func()
	// CloseStandaloneSSEStream closes the session's standalone GET SSE
	// stream, if any.
	CloseStandaloneSSEStream func()
}

// TransportMessage pairs raw wire bytes with their MessageContext, as
// yielded by Transport.Receive.
type TransportMessage struct {
	Data []byte
	Context MessageContext
}

// Transport is the pluggable boundary between wire bytes and the protocol
// engine. Implementations MUST serialize their own internal
// mutations; the engine calls Send from several goroutines at once (one
// per in-flight inbound handler, plus callers of Call and Notify) and
// concurrently with an in-flight Receive.
type Transport interface {
	// Connect performs whatever I/O setup this transport needs (dialing,
	// accepting, binding a channel). On failure it returns a
	// KindTransportError *Error.
	Connect(ctx context.Context) error

	// Disconnect is idempotent: calling it twice returns nil both times.
	// It terminates Receive's sequence and cancels in-flight Sends.
	Disconnect() error

	// Send writes one encoded message. relatedRequestID, if valid, is a
	// routing hint for multiplexing transports (e.g. the streamable HTTP
	// server transport uses it to pick the POST SSE stream to deliver on);
	// transports that have no notion of multiple streams ignore it.
	Send(ctx context.Context, data []byte, relatedRequestID RequestID) error

	// Receive returns a lazy, ordered sequence of inbound messages. The
	// sequence ends (with no further values) on clean shutdown; an error
	// element, if yielded, is terminal.
	Receive(ctx context.Context) iter.Seq2[TransportMessage, error]

	// SessionID is "" unless this transport is a multi-session HTTP server
	// transport.
	SessionID() string
}
