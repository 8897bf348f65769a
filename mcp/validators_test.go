// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginValidator(t *testing.T) {
	v := originValidator{allowed: []string{"https://example.com"}}

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Origin", "https://evil.example")
	if rej := v.validate(r, nil); rej == nil {
		t.Error("expected disallowed origin to be rejected")
	}

	r.Header.Set("Origin", "https://example.com")
	if rej := v.validate(r, nil); rej != nil {
		t.Errorf("expected allowed origin to pass, got %+v", rej)
	}

	r.Header.Del("Origin")
	if rej := v.validate(r, nil); rej != nil {
		t.Errorf("expected absent Origin to pass, got %+v", rej)
	}
}

func TestAcceptHeaderValidator(t *testing.T) {
	v := acceptHeaderValidator{}

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Accept", "application/json")
	if rej := v.validate(r, nil); rej == nil {
		t.Error("expected POST missing text/event-stream to be rejected")
	}

	r.Header.Set("Accept", "application/json, text/event-stream")
	if rej := v.validate(r, nil); rej != nil {
		t.Errorf("expected valid Accept to pass, got %+v", rej)
	}
}

func TestContentTypeValidator(t *testing.T) {
	v := contentTypeValidator{}

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	r.Header.Set("Content-Type", "text/plain")
	if rej := v.validate(r, nil); rej == nil {
		t.Error("expected non-JSON Content-Type to be rejected")
	}

	r.Header.Set("Content-Type", "application/json")
	if rej := v.validate(r, nil); rej != nil {
		t.Errorf("expected application/json to pass, got %+v", rej)
	}
}

func TestProtocolVersionValidator(t *testing.T) {
	v := protocolVersionValidator{}

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	if rej := v.validate(r, nil); rej != nil {
		t.Errorf("expected absent MCP-Protocol-Version to pass (defaults to server version), got %+v", rej)
	}

	r.Header.Set("MCP-Protocol-Version", "1999-01-01")
	if rej := v.validate(r, nil); rej == nil {
		t.Error("expected unsupported protocol version to be rejected")
	}

	r.Header.Set("MCP-Protocol-Version", ProtocolVersion)
	if rej := v.validate(r, nil); rej != nil {
		t.Errorf("expected supported protocol version to pass, got %+v", rej)
	}
}

func TestSessionValidator(t *testing.T) {
	v := sessionValidator{}

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	if rej := v.validate(r, nil); rej != nil {
		t.Errorf("expected request without a session id to pass, got %+v", rej)
	}

	r.Header.Set("Mcp-Session-Id", "does-not-exist")
	if rej := v.validate(r, nil); rej == nil {
		t.Error("expected unknown session id to be rejected")
	}
}
