// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes, plus the MCP-specific extensions used
// by package mcp's error model (see mcp.Error).
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeConnectionClosed = -32000
	CodeRequestTimeout   = -32001
	CodeResourceNotFound = -32002
	CodeTransportError   = -32003
	CodeRequestCancelled = -32004
	CodeURLElicitationRequired = -32042
)

// Sentinel errors usable with errors.Is; these wrap the base JSON-RPC
// protocol errors so that lower layers (like Decode) can classify a
// malformed message without constructing a full WireError.
var (
	ErrParse          = errors.New("parse error")
	ErrInvalidRequest = errors.New("invalid request")
	ErrMethodNotFound = errors.New("method not found")
	ErrInvalidParams  = errors.New("invalid params")
	ErrInternal       = errors.New("internal error")
)

// WireError is the `error` member of a JSON-RPC response.
type WireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("jsonrpc2: code %d: %s", e.Code, e.Message)
}

// NewWireError builds a WireError, marshaling data if non-nil.
func NewWireError(code int, message string, data any) (*WireError, error) {
	we := &WireError{Code: code, Message: message}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshaling error data: %w", err)
		}
		we.Data = b
	}
	return we, nil
}
