// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc2 implements the wire-level framing of JSON-RPC 2.0: the
// ID union, the Request/Response/Notification shapes, and encode/decode of
// both single messages and batches. It has no notion of transports,
// sessions, or dispatch — those live in package mcp.
package jsonrpc2

import (
	"encoding/json"
	"fmt"
)

// Version is the only JSON-RPC version this package understands.
const Version = "2.0"

// ID is a request identifier: a string, an int64, or absent (the zero
// value). The wire representation is a string, number, or null.
type ID struct {
	value any // nil, string, or int64
}

// StringID creates a string-valued ID.
func StringID(s string) ID { return ID{value: s} }

// Int64ID creates an int64-valued ID.
func Int64ID(i int64) ID { return ID{value: i} }

// IsValid reports whether id carries a value (as opposed to the zero ID,
// used for notifications).
func (id ID) IsValid() bool { return id.value != nil }

// Raw returns the underlying string, int64, or nil.
func (id ID) Raw() any { return id.value }

// String renders id for logging and as a map key in diagnostics.
func (id ID) String() string {
	switch v := id.value.(type) {
	case nil:
		return "<none>"
	case string:
		return v
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	coerced, err := coerceID(v)
	if err != nil {
		return err
	}
	*id = coerced
	return nil
}

// coerceID converts a decoded JSON value (nil, float64, or string) to an ID.
func coerceID(v any) (ID, error) {
	switch v := v.(type) {
	case nil:
		return ID{}, nil
	case float64:
		return Int64ID(int64(v)), nil
	case string:
		return StringID(v), nil
	}
	return ID{}, fmt.Errorf("%w: invalid id type %T", ErrParse, v)
}

// Request is a call (ID.IsValid()) or a notification (!ID.IsValid()).
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

// IsCall reports whether this request expects a response.
func (r *Request) IsCall() bool { return r.ID.IsValid() }

// Response answers a Request that IsCall().
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  *WireError
}

// wireRequest and wireResponse are the literal JSON shapes; wireCombined
// lets Decode sniff which one it received without a two-pass parse.
type wireRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// EncodeRequest marshals a Request (call or notification) to wire bytes.
func EncodeRequest(r *Request) ([]byte, error) {
	w := wireRequest{JSONRPC: Version, Method: r.Method, Params: r.Params}
	if r.ID.IsValid() {
		w.ID = &r.ID
	}
	data, err := json.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("marshaling jsonrpc request: %w", err)
	}
	return data, nil
}

// EncodeResponse marshals a Response to wire bytes.
func EncodeResponse(r *Response) ([]byte, error) {
	w := wireResponse{JSONRPC: Version, ID: &r.ID, Result: r.Result, Error: r.Error}
	data, err := json.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("marshaling jsonrpc response: %w", err)
	}
	return data, nil
}

// Message is either a *Request or a *Response, as produced by Decode.
type Message interface {
	isMessage()
}

func (*Request) isMessage()  {}
func (*Response) isMessage() {}

// Decode sniffs a single JSON-RPC object and returns the concrete message
// type: a *Request if "method" is present, otherwise a *Response.
//
// Decode uses StrictUnmarshal so that case-variant or unknown top-level
// fields are rejected rather than silently ignored — see strict.go.
func Decode(data []byte) (Message, error) {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if probe.Method != "" {
		var w wireRequest
		if err := StrictUnmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if w.JSONRPC != Version {
			return nil, fmt.Errorf("%w: jsonrpc version %q", ErrInvalidRequest, w.JSONRPC)
		}
		req := &Request{Method: w.Method, Params: w.Params}
		if w.ID != nil {
			req.ID = *w.ID
		}
		return req, nil
	}
	var w wireResponse
	if err := StrictUnmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if w.JSONRPC != Version {
		return nil, fmt.Errorf("%w: jsonrpc version %q", ErrInvalidRequest, w.JSONRPC)
	}
	if w.ID == nil {
		return nil, fmt.Errorf("%w: response with no id", ErrInvalidRequest)
	}
	return &Response{ID: *w.ID, Result: w.Result, Error: w.Error}, nil
}

// DecodeBatchOrSingle reports whether data is a JSON array, and decodes it
// either as a batch of messages (array) or a single message, preserving
// input order for responses per the JSON-RPC 2.0 batch rules.
func DecodeBatchOrSingle(data []byte) (msgs []Message, batch bool, err error) {
	trimmed := trimLeadingSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if len(raws) == 0 {
			return nil, true, fmt.Errorf("%w: empty batch", ErrInvalidRequest)
		}
		out := make([]Message, len(raws))
		for i, raw := range raws {
			m, err := Decode(raw)
			if err != nil {
				return nil, true, err
			}
			out[i] = m
		}
		return out, true, nil
	}
	m, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return []Message{m}, false, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}
