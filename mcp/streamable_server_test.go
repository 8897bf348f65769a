// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mcpcore/go-mcp/internal/jsonrpc2"
)

func TestRequestIDsInDistinguishesCallsFromNotifications(t *testing.T) {
	body := []byte(`[{"jsonrpc":"2.0","id":1,"method":"echo","params":{}},{"jsonrpc":"2.0","method":"notifications/ping"}]`)
	ids := requestIDsIn(body)
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("requestIDsIn = %v, want [1]", ids)
	}
}

func TestBodyIsInitialize(t *testing.T) {
	init := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if !bodyIsInitialize(init) {
		t.Error("bodyIsInitialize(initialize) = false, want true")
	}
	other := []byte(`{"jsonrpc":"2.0","id":1,"method":"echo","params":{}}`)
	if bodyIsInitialize(other) {
		t.Error("bodyIsInitialize(echo) = true, want false")
	}
}

func TestIsResponseFor(t *testing.T) {
	resp := []byte(`{"jsonrpc":"2.0","id":5,"result":{}}`)
	if !isResponseFor(resp, "5") {
		t.Error("isResponseFor(id=5, key=5) = false, want true")
	}
	if isResponseFor(resp, "6") {
		t.Error("isResponseFor(id=5, key=6) = true, want false")
	}
	notResponse := []byte(`{"jsonrpc":"2.0","method":"notifications/progress","params":{}}`)
	if isResponseFor(notResponse, "5") {
		t.Error("isResponseFor on a notification should be false")
	}
}

// readSSELines reads every "id:"/"data:" line pair from body until n events
// have been collected or the reader is exhausted.
func readSSELines(t *testing.T, body *http.Response, n int) []string {
	t.Helper()
	defer body.Body.Close()
	var out []string
	sc := bufio.NewScanner(body.Body)
	for sc.Scan() && len(out) < n {
		line := sc.Text()
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			out = append(out, rest)
		}
	}
	return out
}

func TestStreamableServerStandaloneReplaysAfterLastEventID(t *testing.T) {
	sess := newHTTPSession("sess-1", 0)
	transport := NewStreamableServerTransport(sess)

	// Seed three events directly on the standalone stream before any GET
	// is attached, as if they were produced while the client was offline.
	for i := 0; i < 3; i++ {
		sess.store.append(sess.id, "", []byte(`{"jsonrpc":"2.0","method":"notifications/progress","params":{}}`))
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		transport.ServeGet(w, r)
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Last-Event-ID", "0")

	client := srv.Client()
	client.Timeout = 2 * time.Second
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	lines := readSSELines(t, resp, 2)
	if len(lines) != 2 {
		t.Fatalf("replayed %d events, want 2 (events after seq 0)", len(lines))
	}
}

func TestStreamableServerRejectsSecondConcurrentStandaloneStream(t *testing.T) {
	sess := newHTTPSession("sess-2", 0)
	transport := NewStreamableServerTransport(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firstOpen := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil).WithContext(ctx)
		req.Header.Set("Accept", "text/event-stream")
		rec := httptest.NewRecorder()
		close(firstOpen)
		transport.ServeGet(rec, req)
	}()
	<-firstOpen
	// Give ServeGet's goroutine a chance to register itself as the
	// standalone stream before the second, conflicting GET arrives.
	time.Sleep(20 * time.Millisecond)

	req2 := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req2.Header.Set("Accept", "text/event-stream")
	rec2 := httptest.NewRecorder()
	transport.ServeGet(rec2, req2)
	if rec2.Code != http.StatusConflict {
		t.Errorf("second concurrent standalone GET status = %d, want %d", rec2.Code, http.StatusConflict)
	}

	cancel()
	<-firstDone
}

// TestStreamableServerDisconnectTerminatesOpenStandaloneStream exercises
// the DELETE/idle-eviction teardown path: closeAllStreams (called via
// Disconnect) must unblock a standalone GET stream that's still open, and
// must not panic if the request's own context later ends too (which would
// double-close sess.standaloneDone were it not nilled out).
func TestStreamableServerDisconnectTerminatesOpenStandaloneStream(t *testing.T) {
	sess := newHTTPSession("sess-4", 0)
	transport := NewStreamableServerTransport(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveReturned := make(chan struct{})
	opened := make(chan struct{})
	go func() {
		defer close(serveReturned)
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil).WithContext(ctx)
		req.Header.Set("Accept", "text/event-stream")
		rec := httptest.NewRecorder()
		close(opened)
		transport.ServeGet(rec, req)
	}()
	<-opened
	time.Sleep(20 * time.Millisecond)

	if err := transport.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	select {
	case <-serveReturned:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeGet did not return after Disconnect closed the session")
	}
	// ServeGet's own deferred cleanup ran above against an already-closed
	// sess.standaloneDone (closeAllStreams got there first); reaching this
	// point without a panic is the regression check.
}

func TestStreamableServerSendRoutesToPostStreamAndClosesOnResponse(t *testing.T) {
	sess := newHTTPSession("sess-3", 0)
	transport := NewStreamableServerTransport(sess)

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	sess.mu.Lock()
	sess.postWriters["1"] = rec
	sess.postDone["1"] = done
	sess.mu.Unlock()

	reqID := requestIDFromWire(jsonrpc2.Int64ID(1))
	if err := transport.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`), reqID); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case <-done:
	default:
		t.Error("postDone channel for id 1 should be closed once its response is sent")
	}
	if rec.Body.Len() == 0 {
		t.Error("expected SSE event bytes written to the response recorder")
	}
}
