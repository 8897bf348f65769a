// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"math"
	"mime"
	"net/http"
	"sync"
	"time"
)

// Backoff parameters for the client's standalone-SSE reconnection loop
// delay(attempt) = min(maxDelay, initialDelay *
// growFactor^(attempt-1)), attempts 1-indexed.
const (
	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 30 * time.Second
	reconnectGrowFactor   = 1.5
	reconnectMaxAttempts  = 2
)

func reconnectDelay(attempt int) time.Duration {
	d := float64(reconnectInitialDelay) * math.Pow(reconnectGrowFactor, float64(attempt-1))
	if d > float64(reconnectMaxDelay) {
		d = float64(reconnectMaxDelay)
	}
	return time.Duration(d)
}

// StreamableClientTransport is the client side of the streamable HTTP
// transport: it POSTs outbound messages to a single endpoint,
// optionally opens a standalone GET SSE stream for server-initiated
// traffic, and reconnects that stream with bounded exponential backoff,
// resuming via Last-Event-ID where possible and falling back to a fresh
// subscription on an unresumable gap.
type StreamableClientTransport struct {
	endpoint string
	client   *http.Client
	header   http.Header

	mu            sync.Mutex
	sessionID     string
	lastEventID   string
	incoming      chan TransportMessage
	done          chan struct{}
	closed        bool
	standaloneCtx context.CancelFunc
	fatal         chan error // standalone stream giving up after reconnectMaxAttempts
}

// NewStreamableClientTransport builds a client transport targeting
// endpoint. header, if non-nil, is copied onto every outbound request.
func NewStreamableClientTransport(endpoint string, client *http.Client, header http.Header) *StreamableClientTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &StreamableClientTransport{
		endpoint: endpoint,
		client:   client,
		header:   header.Clone(),
		incoming: make(chan TransportMessage, 16),
		done:     make(chan struct{}),
		fatal:    make(chan error, 1),
	}
}

func (t *StreamableClientTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Connect opens the standalone GET SSE stream in the background. A client
// that only ever calls methods and never needs server-initiated traffic
// may skip calling Connect and simply use Send/Receive over POST
// responses.
func (t *StreamableClientTransport) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.standaloneCtx = cancel
	t.mu.Unlock()
	go t.runStandalone(runCtx)
	return nil
}

func (t *StreamableClientTransport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.standaloneCtx != nil {
		t.standaloneCtx()
	}
	close(t.done)
	t.mu.Unlock()
	return nil
}

func (t *StreamableClientTransport) Receive(ctx context.Context) iter.Seq2[TransportMessage, error] {
	return func(yield func(TransportMessage, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.done:
				return
			case err := <-t.fatal:
				yield(TransportMessage{}, err)
				return
			case msg, ok := <-t.incoming:
				if !ok {
					return
				}
				if !yield(msg, nil) {
					return
				}
			}
		}
	}
}

func (t *StreamableClientTransport) newRequest(ctx context.Context, method, body string) (*http.Request, error) {
	var r io.Reader
	if body != "" {
		r = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, t.endpoint, r)
	if err != nil {
		return nil, err
	}
	for k, vs := range t.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	t.mu.Lock()
	sid := t.sessionID
	t.mu.Unlock()
	if sid != "" {
		req.Header.Set("Mcp-Session-Id", sid)
	}
	return req, nil
}

// Send POSTs data to the endpoint and streams any SSE response events
// back into Receive; relatedRequestID is unused by the client side (the
// server tells us which request a response belongs to via the JSON-RPC id
// itself).
func (t *StreamableClientTransport) Send(ctx context.Context, data []byte, _ RequestID) error {
	req, err := t.newRequest(ctx, http.MethodPost, string(data))
	if err != nil {
		return NewTransportError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return NewTransportError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return nil
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return NewTransportError(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, body))
	}

	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	ct := resp.Header.Get("Content-Type")
	switch {
	case hasMediaType(ct, "text/event-stream"):
		return t.consumeSSE(ctx, resp.Body, "")
	case hasMediaType(ct, "application/json"):
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return NewTransportError(err.Error())
		}
		return t.emit(ctx, body)
	default:
		return nil
	}
}

func hasMediaType(contentType, want string) bool {
	mt, _, _ := mime.ParseMediaType(contentType)
	return mt == want
}

func (t *StreamableClientTransport) emit(ctx context.Context, data []byte) error {
	msg := TransportMessage{Data: data}
	select {
	case t.incoming <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return &Error{Kind: KindConnectionClosed}
	}
}

// consumeSSE reads evt from body until it ends, emitting each event's data
// as an inbound message and tracking lastEventID for resumption.
func (t *StreamableClientTransport) consumeSSE(ctx context.Context, body io.ReadCloser, streamKey string) error {
	defer body.Close()
	for evt, err := range scanEvents(body) {
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return NewTransportError(err.Error())
		}
		if evt.id != "" {
			t.mu.Lock()
			t.lastEventID = evt.id
			t.mu.Unlock()
		}
		if err := t.emit(ctx, evt.data); err != nil {
			return err
		}
	}
	return nil
}

// runStandalone owns the GET SSE stream's lifecycle, reconnecting with
// bounded exponential backoff on failure. Once reconnectMaxAttempts are
// exhausted without a successful reconnect, it surfaces a TransportError
// through Receive and ends the standalone stream for good rather than
// retrying forever: a peer that can't be reached after repeated backoff is
// a terminal condition the caller needs to see, not a state hidden behind
// infinite silent retries.
func (t *StreamableClientTransport) runStandalone(ctx context.Context) {
	attempt := 0
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := t.openStandalone(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			attempt = 0
			lastErr = nil
			continue
		}
		lastErr = err

		attempt++
		if attempt > reconnectMaxAttempts {
			select {
			case t.fatal <- NewTransportError(fmt.Sprintf("standalone stream unreachable after %d attempts: %v", reconnectMaxAttempts, lastErr)):
			default:
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay(attempt)):
		}
	}
}

func (t *StreamableClientTransport) openStandalone(ctx context.Context) error {
	req, err := t.newRequest(ctx, http.MethodGet, "")
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	t.mu.Lock()
	last := t.lastEventID
	t.mu.Unlock()
	if last != "" {
		req.Header.Set("Last-Event-ID", last)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return fmt.Errorf("standalone stream status %d", resp.StatusCode)
	}
	return t.consumeSSE(ctx, resp.Body, "")
}
