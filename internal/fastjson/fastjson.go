// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package fastjson is the indirection point through which package mcp
// marshals and unmarshals JSON (Value decoding, typed params and results).
// It exists so that codec can be swapped without touching call sites;
// today it is backed by segmentio/encoding/json, which is API-compatible
// with encoding/json but avoids most of its reflection overhead. The
// JSON-RPC message framing in internal/jsonrpc2 uses encoding/json
// directly and does not go through this package.
package fastjson

import (
	"bytes"

	segjson "github.com/segmentio/encoding/json"
)

// Marshal encodes v using the module's configured JSON codec.
func Marshal(v any) ([]byte, error) {
	return segjson.Marshal(v)
}

// Unmarshal decodes data into v using the module's configured JSON codec.
// Object keys are matched to struct fields case-sensitively.
func Unmarshal(data []byte, v any) error {
	dec := segjson.NewDecoder(bytes.NewReader(data))
	dec.DontMatchCaseInsensitiveStructFields()
	return dec.Decode(v)
}

// MarshalIndent is used by debugging/diagnostic paths that pretty-print
// wire messages.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return segjson.MarshalIndent(v, prefix, indent)
}
