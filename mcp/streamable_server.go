// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mcpcore/go-mcp/internal/jsonrpc2"
	"github.com/mcpcore/go-mcp/internal/mcpgodebug"
)

// debugSSEReplay enables one Debug line, with the replayed event count, for
// each successful Last-Event-ID replay, toggled by GOMCPDEBUG=ssereplay=1. The gap case is always logged
// at Warn regardless of this flag; this only adds detail to the common case.
var debugSSEReplay = mcpgodebug.Value("ssereplay") == "1"

// httpSession is the server-side bookkeeping for one streamable-HTTP
// connection: the set of open SSE streams it may deliver responses and
// notifications on, plus the event store backing resumption.
type httpSession struct {
	id          string
	store       *eventStore
	maxBody     int64
	retryMillis int

	mu          sync.Mutex
	postWriters map[string]http.ResponseWriter // requestID -> open SSE response for that request's stream
	postDone    map[string]chan struct{}
	standalone  http.ResponseWriter
	standaloneDone chan struct{}
}

func newHTTPSession(id string, maxBody int64) *httpSession {
	return &httpSession{
		id:          id,
		store:       newEventStore(DefaultEventStoreCapacity),
		maxBody:     maxBody,
		retryMillis: 1000,
		postWriters: map[string]http.ResponseWriter{},
		postDone:    map[string]chan struct{}{},
	}
}

// StreamableServerTransport implements Transport over one httpSession's
// multiplexed HTTP streams. A Host creates one per connecting
// client and feeds it inbound HTTP requests via its ServeXxx methods; the
// transport in turn surfaces them through Receive for the Engine to
// dispatch, and routes outbound Sends back onto the right SSE stream.
type StreamableServerTransport struct {
	sess *httpSession

	mu       sync.Mutex
	incoming chan TransportMessage
	closed   bool
	done     chan struct{}
}

// NewStreamableServerTransport wraps sess as a Transport.
func NewStreamableServerTransport(sess *httpSession) *StreamableServerTransport {
	return &StreamableServerTransport{
		sess:     sess,
		incoming: make(chan TransportMessage, 16),
		done:     make(chan struct{}),
	}
}

func (t *StreamableServerTransport) Connect(ctx context.Context) error { return nil }

func (t *StreamableServerTransport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.mu.Unlock()
	t.sess.closeAllStreams()
	t.sess.store.forget(t.sess.id)
	return nil
}

func (t *StreamableServerTransport) SessionID() string { return t.sess.id }

func (t *StreamableServerTransport) Receive(ctx context.Context) iter.Seq2[TransportMessage, error] {
	return func(yield func(TransportMessage, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.done:
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

// Send delivers data on the SSE stream associated with relatedRequestID,
// falling back to the standalone GET stream for server-initiated traffic
// with no related request.
func (t *StreamableServerTransport) Send(ctx context.Context, data []byte, relatedRequestID RequestID) error {
	key := ""
	if relatedRequestID.IsValid() {
		key = relatedRequestID.String()
	}
	evt := t.sess.store.append(t.sess.id, key, data)

	t.sess.mu.Lock()
	w, ok := t.sess.postWriters[key]
	if !ok && key == "" {
		w, ok = t.sess.standalone, t.sess.standalone != nil
	}
	t.sess.mu.Unlock()

	if !ok {
		return &Error{Kind: KindTransportError, Message: "no open stream for this message"}
	}
	_, err := writeEvent(w, evt)

	if key != "" && isResponseFor(data, key) {
		t.sess.closeStream(key)
	}
	return err
}

// isResponseFor reports whether data decodes to a JSON-RPC response whose
// id matches key; once the response for a POST-bound request has been
// sent, that request's SSE stream has nothing more to deliver.
func isResponseFor(data []byte, key string) bool {
	msgs, _, err := jsonrpc2.DecodeBatchOrSingle(data)
	if err != nil {
		return false
	}
	for _, m := range msgs {
		if resp, ok := m.(*jsonrpc2.Response); ok && requestIDFromWire(resp.ID).String() == key {
			return true
		}
	}
	return false
}

// closeStream tears down one POST-bound SSE stream, signalling any
// goroutine waiting in allClosed for it.
func (s *httpSession) closeStream(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.postWriters, key)
	if done, ok := s.postDone[key]; ok {
		select {
		case <-done:
		default:
			close(done)
		}
		delete(s.postDone, key)
	}
}

// deliverInbound pushes a decoded frame into the transport's Receive
// sequence, blocking until the Engine picks it up or ctx ends.
func (t *StreamableServerTransport) deliverInbound(ctx context.Context, msg TransportMessage) error {
	select {
	case t.incoming <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return &Error{Kind: KindConnectionClosed}
	}
}

// ServePost handles one POST request on this session: it decodes the body
// (single message or batch), feeds it to the engine, opens an SSE stream
// scoped to the request id(s) present, and blocks until every response in
// the batch has been sent or the client disconnects.
func (t *StreamableServerTransport) ServePost(w http.ResponseWriter, r *http.Request) {
	limited := r.Body
	if t.sess.maxBody > 0 {
		limited = http.MaxBytesReader(w, r.Body, t.sess.maxBody)
	}
	body, err := io.ReadAll(limited)
	if err != nil {
		if isMaxBytesError(err) {
			writeRequestBodyTooLarge(w)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t.ServePostBody(w, r, body)
}

// ServePostBody is ServePost for a body the caller has already read (the
// Host peeks the body to decide whether a session-less POST is allowed to
// establish a new session before handing it here).
func (t *StreamableServerTransport) ServePostBody(w http.ResponseWriter, r *http.Request, body []byte) {
	ids := requestIDsIn(body)
	if len(ids) > 0 {
		t.sess.mu.Lock()
		for _, id := range ids {
			t.sess.postWriters[id] = w
			t.sess.postDone[id] = make(chan struct{})
		}
		t.sess.mu.Unlock()
		defer func() {
			t.sess.mu.Lock()
			for _, id := range ids {
				delete(t.sess.postWriters, id)
				delete(t.sess.postDone, id)
				t.sess.store.forgetStream(t.sess.id, id)
			}
			t.sess.mu.Unlock()
		}()
	}

	ctx := r.Context()
	msg := TransportMessage{Data: body, Context: MessageContext{
		Request: &RequestInfo{Header: r.Header},
	}}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if id := r.Header.Get("Mcp-Session-Id"); id == "" && t.sess.id != "" {
		w.Header().Set("Mcp-Session-Id", t.sess.id)
	}
	w.WriteHeader(http.StatusOK)
	_ = writeRetry(w, t.sess.retryMillis)

	if err := t.deliverInbound(ctx, msg); err != nil {
		return
	}

	if len(ids) == 0 {
		// pure notification/response POST: nothing further to stream back.
		return
	}

	select {
	case <-allClosed(t.sess, ids):
	case <-ctx.Done():
	case <-t.done:
	}
}

// allClosed returns a channel that closes once every stream in ids has
// been torn down (i.e. its postWriters entry removed), waiting on each
// id's postDone channel in turn; callers also race
// against the request context, so this need only be approximately prompt.
func allClosed(sess *httpSession, ids []string) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		for _, id := range ids {
			sess.mu.Lock()
			done, ok := sess.postDone[id]
			sess.mu.Unlock()
			if ok {
				<-done
			}
		}
	}()
	return ch
}

// ServeGet opens the session's standalone SSE stream, optionally resuming
// from Last-Event-ID.
func (t *StreamableServerTransport) ServeGet(w http.ResponseWriter, r *http.Request) {
	t.sess.mu.Lock()
	if t.sess.standalone != nil {
		t.sess.mu.Unlock()
		http.Error(w, "standalone stream already open", http.StatusConflict)
		return
	}
	done := make(chan struct{})
	t.sess.standalone = w
	t.sess.standaloneDone = done
	t.sess.mu.Unlock()
	defer func() {
		t.sess.mu.Lock()
		t.sess.standalone = nil
		t.sess.standaloneDone = nil
		t.sess.mu.Unlock()
		select {
		case <-done:
		default:
			close(done)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = writeRetry(w, t.sess.retryMillis)

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		events, ok := t.sess.store.replayAfter(t.sess.id, "", last)
		if !ok {
			// Requested id fell off the ring buffer: the client must fall
			// back to a fresh subscription, which this freshly opened
			// stream already is, so just note the gap and continue.
			slog.Default().Warn("sse replay gap on standalone stream",
				"session", t.sess.id, "lastEventID", last)
		} else if debugSSEReplay {
			slog.Default().Debug("sse replay on standalone stream",
				"session", t.sess.id, "lastEventID", last, "replayed", len(events))
		}
		for _, evt := range events {
			if _, err := writeEvent(w, evt); err != nil {
				return
			}
		}
	}

	select {
	case <-r.Context().Done():
	case <-done:
		// Session torn down (DELETE, idle eviction, Disconnect) out from
		// under this stream: closeAllStreams already closed done.
	}
}

// ServeDelete terminates the session.
func (t *StreamableServerTransport) ServeDelete(w http.ResponseWriter, r *http.Request) {
	_ = t.Disconnect()
	w.WriteHeader(http.StatusOK)
}

func (s *httpSession) closeAllStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, done := range s.postDone {
		select {
		case <-done:
		default:
			close(done)
		}
		delete(s.postDone, id)
	}
	s.postWriters = map[string]http.ResponseWriter{}
	if s.standaloneDone != nil {
		select {
		case <-s.standaloneDone:
		default:
			close(s.standaloneDone)
		}
		s.standaloneDone = nil
	}
	s.standalone = nil
}

// bodyIsInitialize reports whether data contains an initialize request,
// which is the only JSON-RPC method allowed to establish a new session on
// a POST with no Mcp-Session-Id header.
func bodyIsInitialize(data []byte) bool {
	msgs, _, err := jsonrpc2.DecodeBatchOrSingle(data)
	if err != nil {
		return false
	}
	for _, m := range msgs {
		if req, ok := m.(*jsonrpc2.Request); ok && req.Method == "initialize" {
			return true
		}
	}
	return false
}

// requestIDsIn scans a raw JSON-RPC payload (single message or batch) for
// the wire ids of every element that IsCall(), without fully decoding
// params, so ServePost knows which stream keys to register before handing
// the body to the engine.
func requestIDsIn(data []byte) []string {
	msgs, _, err := jsonrpc2.DecodeBatchOrSingle(data)
	if err != nil {
		return nil
	}
	var ids []string
	for _, m := range msgs {
		if req, ok := m.(*jsonrpc2.Request); ok && req.IsCall() {
			ids = append(ids, requestIDFromWire(req.ID).String())
		}
	}
	return ids
}
