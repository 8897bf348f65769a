// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"testing"
	"time"
)

func TestSessionInitGate(t *testing.T) {
	s := NewSession("s1")

	if !s.checkInitGate("initialize") {
		t.Error("expected initialize to be allowed before any handshake")
	}
	if s.checkInitGate("tools/list") {
		t.Error("expected other methods to be rejected before initialize")
	}

	s.markInitializeSent()
	if s.checkInitGate("tools/list") {
		t.Error("expected other methods to still be rejected pending notifications/initialized")
	}
	if !s.checkInitGate("notifications/initialized") {
		t.Error("expected notifications/initialized to be allowed while pending")
	}

	s.markInitialized()
	if !s.checkInitGate("tools/list") {
		t.Error("expected any method to be allowed once initialized")
	}
}

func TestSessionPendingResolve(t *testing.T) {
	s := NewSession("s1")
	id := s.nextRequestID()

	resultCh := make(chan *Error, 1)
	s.registerPending(id, time.Second, func(v Value, rpcErr *Error) {
		resultCh <- rpcErr
	})

	if !s.resolvePending(id, NewValue(map[string]any{}), nil) {
		t.Fatal("expected resolvePending to find the pending call")
	}
	if err := <-resultCh; err != nil {
		t.Errorf("expected nil error, got %v", err)
	}

	if s.resolvePending(id, Value{}, nil) {
		t.Error("expected resolvePending to fail the second time for the same id")
	}
}

func TestSessionPendingTimeout(t *testing.T) {
	s := NewSession("s1")
	id := s.nextRequestID()

	resultCh := make(chan *Error, 1)
	s.registerPending(id, 20*time.Millisecond, func(v Value, rpcErr *Error) {
		resultCh <- rpcErr
	})

	select {
	case err := <-resultCh:
		if err == nil || err.Kind != KindRequestTimeout {
			t.Errorf("expected KindRequestTimeout, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pending call timeout")
	}
}

func TestSessionProgressTokenLifecycle(t *testing.T) {
	s := NewSession("s1")
	tok, err := NewProgressToken("tok-1")
	if err != nil {
		t.Fatalf("NewProgressToken: %v", err)
	}

	if s.isProgressTokenLive(tok) {
		t.Error("expected token not to be live before declaration")
	}
	s.declareProgressToken(tok)
	if !s.isProgressTokenLive(tok) {
		t.Error("expected token to be live after declaration")
	}
	s.retireProgressToken(tok)
	if s.isProgressTokenLive(tok) {
		t.Error("expected token not to be live after retirement")
	}
}

func TestSessionCloseCancelsPending(t *testing.T) {
	s := NewSession("s1")
	id := s.nextRequestID()

	resultCh := make(chan *Error, 1)
	s.registerPending(id, time.Minute, func(v Value, rpcErr *Error) {
		resultCh <- rpcErr
	})

	closed := false
	s.OnClose(func() { closed = true })
	s.Close()

	if !closed {
		t.Error("expected close hook to run")
	}
	select {
	case err := <-resultCh:
		if err == nil || err.Kind != KindConnectionClosed {
			t.Errorf("expected KindConnectionClosed, got %v", err)
		}
	default:
		t.Fatal("expected pending call to be resolved on Close")
	}
}
