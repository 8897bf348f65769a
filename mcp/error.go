// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"
	"time"

	"github.com/mcpcore/go-mcp/internal/fastjson"
	"github.com/mcpcore/go-mcp/internal/jsonrpc2"
)

// Kind classifies an Error by its wire code.
type Kind int

const (
	KindUnknown Kind = iota
	KindParseError
	KindInvalidRequest
	KindMethodNotFound
	KindInvalidParams
	KindInternalError
	KindConnectionClosed
	KindRequestTimeout
	KindTransportError
	KindRequestCancelled
	KindResourceNotFound
	KindURLElicitationRequired
	KindServerError // code in [-32099, -32000], none of the above
)

var kindCodes = map[Kind]int{
	KindParseError:             jsonrpc2.CodeParseError,
	KindInvalidRequest:         jsonrpc2.CodeInvalidRequest,
	KindMethodNotFound:         jsonrpc2.CodeMethodNotFound,
	KindInvalidParams:          jsonrpc2.CodeInvalidParams,
	KindInternalError:          jsonrpc2.CodeInternalError,
	KindConnectionClosed:       jsonrpc2.CodeConnectionClosed,
	KindRequestTimeout:         jsonrpc2.CodeRequestTimeout,
	KindTransportError:         jsonrpc2.CodeTransportError,
	KindRequestCancelled:       jsonrpc2.CodeRequestCancelled,
	KindResourceNotFound:       jsonrpc2.CodeResourceNotFound,
	KindURLElicitationRequired: jsonrpc2.CodeURLElicitationRequired,
}

var defaultMessages = map[Kind]string{
	KindParseError:             "Invalid JSON",
	KindInvalidRequest:         "Invalid Request",
	KindMethodNotFound:         "Method not found",
	KindInvalidParams:          "Invalid params",
	KindInternalError:          "Internal error",
	KindConnectionClosed:       "Connection closed",
	KindRequestCancelled:       "cancelled",
}

// Error is the module's error model: a Kind (mapping to a fixed wire code,
// except KindServerError which carries its own code), an optional custom
// message, and optional structured data.
type Error struct {
	Kind    Kind
	Code    int // only meaningful for KindServerError
	Message string
	Timeout time.Duration // KindRequestTimeout
	Err     string        // KindTransportError: the underlying description
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return defaultMessages[e.Kind]
}

// WireCode returns the wire code for e.
func (e *Error) WireCode() int {
	if e.Kind == KindServerError {
		return e.Code
	}
	return kindCodes[e.Kind]
}

// NewTimeoutError builds a KindRequestTimeout error for the given deadline.
func NewTimeoutError(d time.Duration) *Error {
	return &Error{
		Kind:    KindRequestTimeout,
		Message: fmt.Sprintf("Request timed out after %s", d),
		Timeout: d,
	}
}

// NewCancelledError builds a KindRequestCancelled error with an optional
// caller-supplied reason; an empty reason uses the default message.
func NewCancelledError(reason string) *Error {
	return &Error{Kind: KindRequestCancelled, Message: reason}
}

// NewTransportError builds a KindTransportError wrapping the localized
// description of the underlying transport failure.
func NewTransportError(desc string) *Error {
	return &Error{Kind: KindTransportError, Message: desc, Err: desc}
}

// NewServerError builds a KindServerError with a caller-defined code, which
// must fall in [-32099, -32000] and not collide with a named kind's code.
func NewServerError(code int, message string) (*Error, error) {
	if code < -32099 || code > -32000 {
		return nil, fmt.Errorf("server error code %d out of range [-32099,-32000]", code)
	}
	for _, c := range kindCodes {
		if c == code {
			return nil, fmt.Errorf("server error code %d collides with a reserved kind", code)
		}
	}
	return &Error{Kind: KindServerError, Code: code, Message: message}, nil
}

// ToWire converts e to a jsonrpc2.WireError for transmission.
func (e *Error) ToWire() (*jsonrpc2.WireError, error) {
	var data any
	switch e.Kind {
	case KindRequestTimeout:
		data = map[string]any{"timeout": e.Timeout.Milliseconds()}
	case KindTransportError:
		data = map[string]any{"error": e.Err}
	}
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	return jsonrpc2.NewWireError(e.WireCode(), msg, data)
}

// kindForCode reconstructs a Kind from a wire code; returns KindServerError
// for any in-range code that isn't one of the named kinds.
func kindForCode(code int) Kind {
	for k, c := range kindCodes {
		if c == code {
			return k
		}
	}
	if code >= -32099 && code <= -32000 {
		return KindServerError
	}
	return KindUnknown
}

// ErrorFromWire reconstructs an *Error from a decoded jsonrpc2.WireError,
// an absent/default message decodes without a custom
// Message (so re-encoding reproduces the default), Timeout/Err are pulled
// from `data` for their respective kinds.
func ErrorFromWire(we *jsonrpc2.WireError) *Error {
	kind := kindForCode(we.Code)
	e := &Error{Kind: kind}
	if kind == KindServerError {
		e.Code = we.Code
	}
	if we.Message != defaultMessages[kind] {
		e.Message = we.Message
	}
	if len(we.Data) > 0 {
		var raw map[string]any
		if err := fastjson.Unmarshal(we.Data, &raw); err == nil {
			switch kind {
			case KindRequestTimeout:
				if ms, ok := raw["timeout"].(float64); ok {
					e.Timeout = time.Duration(ms) * time.Millisecond
				}
			case KindTransportError:
				if s, ok := raw["error"].(string); ok {
					e.Err = s
				}
			}
		}
	}
	return e
}
