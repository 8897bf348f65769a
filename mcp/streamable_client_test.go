// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestReconnectDelayGrowsThenCaps(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 1500 * time.Millisecond},
		{3, 2250 * time.Millisecond},
	}
	for _, c := range cases {
		if got := reconnectDelay(c.attempt); got != c.want {
			t.Errorf("reconnectDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}

	big := reconnectDelay(50)
	if big != reconnectMaxDelay {
		t.Errorf("reconnectDelay(50) = %v, want cap %v", big, reconnectMaxDelay)
	}
}

// TestStandaloneStreamSurfacesFatalAfterExhaustingRetries exercises spec
// §4.G's exhaustion behavior: once a standalone GET stream fails to
// reconnect reconnectMaxAttempts times in a row, Receive must yield a
// TransportError and end, rather than resetting state and retrying forever.
func TestStandaloneStreamSurfacesFatalAfterExhaustingRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewStreamableClientTransport(srv.URL, srv.Client(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var gotErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, err := range client.Receive(ctx) {
			if err != nil {
				gotErr = err
				return
			}
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("Receive never ended after retries were exhausted")
	}

	if gotErr == nil {
		t.Fatal("Receive ended without yielding the terminal error")
	}
	rpcErr, ok := gotErr.(*Error)
	if !ok || rpcErr.Kind != KindTransportError {
		t.Fatalf("Receive error = %v, want *Error{Kind: KindTransportError}", gotErr)
	}
}
