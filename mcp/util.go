// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"github.com/google/uuid"

	"github.com/mcpcore/go-mcp/internal/fastjson"
)

// newSessionID mints a fresh HTTP session identifier, a random
// v4 UUID in its canonical dashed form.
func newSessionID() string {
	return uuid.NewString()
}

// remarshal marshals from to JSON, and then unmarshals into to, which must be
// a pointer type.
func remarshal(from, to any) error {
	data, err := fastjson.Marshal(from)
	if err != nil {
		return err
	}
	if err := fastjson.Unmarshal(data, to); err != nil {
		return err
	}
	return nil
}
