// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"

	"github.com/mcpcore/go-mcp/internal/jsonrpc2"
)

// RequestID is a string or int identifier, unique within a session for the
// lifetime of the request it names. It is a thin wrapper over
// jsonrpc2.ID; the engine, session and server transport key their tables
// by its String() form.
type RequestID struct {
	id jsonrpc2.ID
}

func requestIDFromWire(id jsonrpc2.ID) RequestID { return RequestID{id} }

func (r RequestID) wire() jsonrpc2.ID { return r.id }

// String renders the id for logging.
func (r RequestID) String() string { return r.id.String() }

// IsValid reports whether r carries a value.
func (r RequestID) IsValid() bool { return r.id.IsValid() }

// Interface returns the underlying string or int64 wire value.
func (r RequestID) Interface() any { return r.id.Raw() }

// ProgressToken is a string or int, unique across in-flight requests in a
// session.
type ProgressToken struct {
	v any // string or int64
}

// NewProgressToken wraps a string or int64 as a ProgressToken.
func NewProgressToken(v any) (ProgressToken, error) {
	switch v.(type) {
	case string, int64:
		return ProgressToken{v}, nil
	default:
		return ProgressToken{}, fmt.Errorf("progress token must be string or int64, got %T", v)
	}
}

// Interface returns the underlying string or int64.
func (t ProgressToken) Interface() any { return t.v }

func (t ProgressToken) String() string { return fmt.Sprintf("%v", t.v) }

func valueToProgressToken(v Value) (ProgressToken, error) {
	switch x := v.Interface().(type) {
	case string:
		return ProgressToken{x}, nil
	case int64:
		return ProgressToken{x}, nil
	case float64:
		return ProgressToken{int64(x)}, nil
	default:
		return ProgressToken{}, fmt.Errorf("progress token must be string or number, got %T", x)
	}
}

func progressTokenToValue(t ProgressToken) Value { return NewValue(t.v) }
