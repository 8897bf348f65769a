// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

// This file holds the small set of typed shapes the core engine itself
// understands, as opposed to the open-ended application methods a Server
// registers (tools, resources, prompts, and the rest of the method
// catalog are out of scope for this module; see the non-goals).

// ClientInfo identifies the connecting client during initialize.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the server during initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the typed shape of an initialize request's params.
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// InitializeResult is the typed shape of a successful initialize result.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    []Capability `json:"capabilities"`
}

// notifications/cancelled and notifications/progress carry a requestId or
// progressToken field that is a string-or-number union, which doesn't fit a
// struct tag cleanly; the engine decodes those two directly off the params
// map (see handleCancelled and handleProgress) rather than through a typed
// shape here.

// DecodeInitializeParams decodes a raw Value into InitializeParams via the
// module's single JSON indirection point.
func DecodeInitializeParams(v Value) (InitializeParams, error) {
	var p InitializeParams
	err := remarshal(v.Interface(), &p)
	return p, err
}
