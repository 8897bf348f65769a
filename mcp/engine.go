// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcpcore/go-mcp/internal/fastjson"
	"github.com/mcpcore/go-mcp/internal/jsonrpc2"
	"github.com/mcpcore/go-mcp/internal/mcpgodebug"
)

// debugVerboseFrames enables pretty-printed logging of every inbound frame,
// toggled by GOMCPDEBUG=verboseframes=1. Meant for diagnosing interop
// failures against a peer implementation, not left on in production.
var debugVerboseFrames = mcpgodebug.Value("verboseframes") == "1"

// DefaultRequestTimeout is the per-request deadline an Engine starts with;
// SetRequestTimeout overrides it for the engine, and WithTimeout for a
// single outbound Call.
const DefaultRequestTimeout = 60 * time.Second

// inFlightRequest tracks one inbound request this engine is still handling,
// so it can later be cancelled administratively (Cancel/CancelAll) as well
// as in response to a peer's notifications/cancelled.
type inFlightRequest struct {
	id     RequestID
	cancel context.CancelFunc
}

// HandlerFunc answers one inbound request's params with a result Value or
// an *Error. ctx is cancelled if the peer sends notifications/cancelled
// for this request, or when the request's own timeout fires.
type HandlerFunc func(ctx context.Context, sess *Session, params Value) (Value, *Error)

// NotificationFunc handles one inbound notification; it cannot reply.
type NotificationFunc func(ctx context.Context, sess *Session, params Value)

// Engine is the transport-agnostic protocol core: it drives a
// Transport's Receive loop, correlates requests/responses, dispatches
// batches, enforces the initialize handshake gate and per-request
// timeouts, and exposes Notify/Call for outbound traffic and
// Cancel/CancelAll for in-flight inbound requests.
type Engine struct {
	transport Transport
	session   *Session
	logger    *slog.Logger

	mu             sync.Mutex
	handlers       map[string]HandlerFunc
	notifications  map[string]NotificationFunc
	cancelFuncs    map[string]inFlightRequest // live inbound request contexts, keyed by RequestID string
	requestTimeout time.Duration

	progressSink func(ctx context.Context, sess *Session, token ProgressToken, value Value)
}

// NewEngine builds an Engine driving t on behalf of session sess.
func NewEngine(t Transport, sess *Session, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		transport:      t,
		session:        sess,
		logger:         logger,
		handlers:       map[string]HandlerFunc{},
		notifications:  map[string]NotificationFunc{},
		cancelFuncs:    map[string]inFlightRequest{},
		requestTimeout: DefaultRequestTimeout,
	}
}

// SetRequestTimeout overrides the default per-request timeout.
func (e *Engine) SetRequestTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requestTimeout = d
}

// RegisterHandler installs the handler for an inbound request method,
// replacing any previous registration.
func (e *Engine) RegisterHandler(method string, h HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[method] = h
}

// RegisterNotification installs the handler for an inbound notification
// method.
func (e *Engine) RegisterNotification(method string, h NotificationFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifications[method] = h
}

// OnProgress installs the sink invoked for every inbound
// notifications/progress whose token the session previously declared via
// Call's progress option.
func (e *Engine) OnProgress(fn func(ctx context.Context, sess *Session, token ProgressToken, value Value)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progressSink = fn
}

func (e *Engine) handlerFor(method string) (HandlerFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handlers[method]
	return h, ok
}

func (e *Engine) notificationFor(method string) (NotificationFunc, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.notifications[method]
	return h, ok
}

// Run drives the transport's Receive loop until it ends or ctx is
// cancelled. It returns the terminal error, if any.
func (e *Engine) Run(ctx context.Context) error {
	defer e.session.Close()
	for msg, err := range e.transport.Receive(ctx) {
		if err != nil {
			return err
		}
		e.dispatch(ctx, msg)
	}
	return nil
}

// dispatch decodes one transport frame, which may be a single message or a
// JSON-RPC batch, and routes each element.
func (e *Engine) dispatch(ctx context.Context, msg TransportMessage) {
	if debugVerboseFrames {
		e.logVerboseFrame(msg.Data)
	}
	elems, _, err := jsonrpc2.DecodeBatchOrSingle(msg.Data)
	if err != nil {
		e.replyParseError(ctx, msg, err)
		return
	}
	for _, m := range elems {
		e.route(ctx, msg, m)
	}
}

func (e *Engine) logVerboseFrame(data []byte) {
	var raw any
	if err := fastjson.Unmarshal(data, &raw); err != nil {
		return
	}
	pretty, err := fastjson.MarshalIndent(raw, "", "  ")
	if err != nil {
		return
	}
	e.logger.Debug("inbound frame", "payload", string(pretty))
}

func (e *Engine) replyParseError(ctx context.Context, msg TransportMessage, cause error) {
	we, _ := (&Error{Kind: KindParseError, Message: cause.Error()}).ToWire()
	e.sendResponse(ctx, msg, jsonrpc2.ID{}, Value{}, we)
}

func (e *Engine) route(ctx context.Context, msg TransportMessage, m jsonrpc2.Message) {
	switch v := m.(type) {
	case *jsonrpc2.Request:
		if v.IsCall() {
			e.handleRequest(ctx, msg, v)
		} else {
			e.handleNotification(ctx, msg, v)
		}
	case *jsonrpc2.Response:
		e.handleResponse(v)
	}
}

func (e *Engine) handleRequest(ctx context.Context, msg TransportMessage, req *jsonrpc2.Request) {
	id := requestIDFromWire(req.ID)

	if !e.session.checkInitGate(req.Method) {
		we, _ := (&Error{Kind: KindInvalidRequest, Message: "session is not initialized"}).ToWire()
		e.sendResponse(ctx, msg, req.ID, Value{}, we)
		return
	}

	h, ok := e.handlerFor(req.Method)
	if !ok {
		we, _ := (&Error{Kind: KindMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}).ToWire()
		e.sendResponse(ctx, msg, req.ID, Value{}, we)
		return
	}

	e.mu.Lock()
	timeout := e.requestTimeout
	e.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	e.mu.Lock()
	e.cancelFuncs[id.String()] = inFlightRequest{id: id, cancel: cancel}
	e.mu.Unlock()

	if req.Method == "initialize" {
		e.session.markInitializeSent()
	}

	go func() {
		defer cancel()
		defer func() {
			e.mu.Lock()
			delete(e.cancelFuncs, id.String())
			e.mu.Unlock()
		}()

		var params Value
		if len(req.Params) > 0 {
			if err := params.UnmarshalJSON(req.Params); err != nil {
				we, _ := (&Error{Kind: KindInvalidParams, Message: err.Error()}).ToWire()
				e.sendResponse(ctx, msg, req.ID, Value{}, we)
				return
			}
		}
		if mf, ok := params.Interface().(map[string]Value); ok {
			if g, err := DecodeGeneralFields(mf, nil); err == nil {
				if tok, ok := g.GetMeta().ProgressToken(); ok {
					e.session.declareProgressToken(tok)
					defer e.session.retireProgressToken(tok)
				}
			}
		}

		result, rpcErr := h(reqCtx, e.session, params)

		if reqCtx.Err() == context.DeadlineExceeded && rpcErr == nil {
			rpcErr = NewTimeoutError(timeout)
			e.sendCancelledNotification(ctx, id, "timeout")
		}

		if rpcErr != nil {
			we, err := rpcErr.ToWire()
			if err != nil {
				we, _ = (&Error{Kind: KindInternalError}).ToWire()
			}
			e.sendResponse(ctx, msg, req.ID, Value{}, we)
			return
		}
		e.sendResponse(ctx, msg, req.ID, result, nil)
	}()
}

func mustEncode(v any) []byte {
	data, err := fastjson.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return data
}

// sendCancelledNotification emits notifications/cancelled for id, best
// effort: the peer may already be gone, so a send failure here is not
// reported to the caller.
func (e *Engine) sendCancelledNotification(ctx context.Context, id RequestID, reason string) {
	params := map[string]any{"requestId": id.Interface()}
	if reason != "" {
		params["reason"] = reason
	}
	notif, err := jsonrpc2.EncodeRequest(&jsonrpc2.Request{
		Method: "notifications/cancelled",
		Params: mustEncode(params),
	})
	if err != nil {
		return
	}
	_ = e.transport.Send(ctx, notif, RequestID{})
}

func (e *Engine) sendResponse(ctx context.Context, msg TransportMessage, id jsonrpc2.ID, result Value, rpcErr *jsonrpc2.WireError) {
	if !id.IsValid() && rpcErr == nil {
		return
	}
	var raw []byte
	if rpcErr == nil {
		raw, _ = result.MarshalJSON()
	}
	data, err := jsonrpc2.EncodeResponse(&jsonrpc2.Response{ID: id, Result: raw, Error: rpcErr})
	if err != nil {
		e.logger.Error("encode response", "error", err)
		return
	}
	related := requestIDFromWire(id)
	if rid := msg.Context.RequestID; rid.IsValid() {
		related = rid
	}
	if err := e.transport.Send(ctx, data, related); err != nil {
		e.logger.Warn("send response", "error", err)
	}
}

func (e *Engine) handleNotification(ctx context.Context, msg TransportMessage, n *jsonrpc2.Request) {
	var params Value
	if len(n.Params) > 0 {
		_ = params.UnmarshalJSON(n.Params)
	}

	switch n.Method {
	case "notifications/initialized":
		e.session.markInitialized()
		return
	case "notifications/cancelled":
		e.handleCancelled(params)
		return
	case "notifications/progress":
		e.handleProgress(ctx, params)
		return
	}

	if !e.session.checkInitGate(n.Method) {
		return
	}
	if h, ok := e.notificationFor(n.Method); ok {
		h(ctx, e.session, params)
	}
}

// handleCancelled processes an inbound notifications/cancelled. Per the
// cancellation contract, id may name either an outgoing request this side
// is still waiting on (resolved with RequestCancelled so the response that
// eventually arrives, if any, is discarded by the caller) or an inbound
// request this side is still handling (whose handler context is cancelled).
func (e *Engine) handleCancelled(params Value) {
	obj, ok := params.Interface().(map[string]Value)
	if !ok {
		return
	}
	idVal, ok := obj["requestId"]
	if !ok {
		return
	}
	var wireID jsonrpc2.ID
	switch x := idVal.Interface().(type) {
	case string:
		wireID = jsonrpc2.StringID(x)
	case float64:
		wireID = jsonrpc2.Int64ID(int64(x))
	default:
		return
	}
	id := requestIDFromWire(wireID)

	if e.session.resolvePending(id, Value{}, NewCancelledError("cancelled by peer")) {
		return
	}

	e.mu.Lock()
	inFlight, ok := e.cancelFuncs[id.String()]
	e.mu.Unlock()
	if ok {
		inFlight.cancel()
	}
}

func (e *Engine) handleProgress(ctx context.Context, params Value) {
	obj, ok := params.Interface().(map[string]Value)
	if !ok {
		return
	}
	tokVal, ok := obj["progressToken"]
	if !ok {
		return
	}
	tok, err := valueToProgressToken(tokVal)
	if err != nil || !e.session.isProgressTokenLive(tok) {
		return
	}
	e.mu.Lock()
	sink := e.progressSink
	e.mu.Unlock()
	if sink != nil {
		sink(ctx, e.session, tok, params)
	}
}

func (e *Engine) handleResponse(resp *jsonrpc2.Response) {
	id := requestIDFromWire(resp.ID)
	var result Value
	var rpcErr *Error
	if resp.Error != nil {
		rpcErr = ErrorFromWire(resp.Error)
	} else if len(resp.Result) > 0 {
		_ = result.UnmarshalJSON(resp.Result)
	}
	if !e.session.resolvePending(id, result, rpcErr) {
		e.logger.Warn("dropping response for unknown request id", "id", id.String())
	}
}

// CallOption configures an outbound Call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout  time.Duration
	progress ProgressToken
	hasProg  bool
}

// WithTimeout overrides the default per-call timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) { o.timeout = d }
}

// WithProgressToken declares a progress token for this call, so
// notifications/progress referencing it are delivered to the engine's
// progress sink.
func WithProgressToken(t ProgressToken) CallOption {
	return func(o *callOptions) { o.progress, o.hasProg = t, true }
}

// Call sends a request and blocks for its response (or ctx's cancellation,
// or the call's own timeout, whichever comes first).
func (e *Engine) Call(ctx context.Context, method string, params Value, opts ...CallOption) (Value, *Error) {
	o := callOptions{timeout: e.currentTimeout()}
	for _, f := range opts {
		f(&o)
	}

	id := e.session.nextRequestID()
	if o.hasProg {
		e.session.declareProgressToken(o.progress)
		defer e.session.retireProgressToken(o.progress)
		params = withProgressToken(params, o.progress)
	}

	raw, err := params.MarshalJSON()
	if err != nil {
		return Value{}, &Error{Kind: KindInvalidParams, Message: err.Error()}
	}
	data, err := jsonrpc2.EncodeRequest(&jsonrpc2.Request{ID: id.wire(), Method: method, Params: raw})
	if err != nil {
		return Value{}, &Error{Kind: KindInternalError, Message: err.Error()}
	}

	resultCh := make(chan struct {
		v Value
		e *Error
	}, 1)
	e.session.registerPending(id, o.timeout, func(v Value, rpcErr *Error) {
		resultCh <- struct {
			v Value
			e *Error
		}{v, rpcErr}
	})

	if err := e.transport.Send(ctx, data, RequestID{}); err != nil {
		e.session.takePending(id.String())
		return Value{}, NewTransportError(err.Error())
	}

	select {
	case r := <-resultCh:
		if method == "initialize" && r.e == nil {
			// This side initiated the handshake rather than receiving it,
			// so nothing else ever drives its own init gate forward; a
			// successful result is what unblocks inbound peer-initiated
			// requests (e.g. elicitation/create) on this session.
			e.session.markInitialized()
		}
		if r.e != nil && r.e.Kind == KindRequestTimeout {
			e.sendCancelledNotification(ctx, id, "timeout")
		}
		return r.v, r.e
	case <-ctx.Done():
		e.session.takePending(id.String())
		e.sendCancelledNotification(context.WithoutCancel(ctx), id, "client cancelled")
		return Value{}, &Error{Kind: KindRequestCancelled, Message: ctx.Err().Error()}
	}
}

func (e *Engine) currentTimeout() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestTimeout
}

// Notify sends a one-way notification; the transport's session need not be
// initialized for "notifications/initialized" or "notifications/cancelled"
// themselves, but all other outbound notifications assume an initialized
// session.
func (e *Engine) Notify(ctx context.Context, method string, params Value) error {
	raw, err := params.MarshalJSON()
	if err != nil {
		return err
	}
	data, err := jsonrpc2.EncodeRequest(&jsonrpc2.Request{Method: method, Params: raw})
	if err != nil {
		return err
	}
	return e.transport.Send(ctx, data, RequestID{})
}

// Cancel cancels the in-flight inbound request id by cancelling its
// handler's context and notifies the peer with notifications/cancelled, so
// it can stop waiting on a response that will never arrive. It reports
// whether id named a request this engine is still handling.
func (e *Engine) Cancel(ctx context.Context, id RequestID, reason string) bool {
	e.mu.Lock()
	inFlight, ok := e.cancelFuncs[id.String()]
	e.mu.Unlock()
	if !ok {
		return false
	}
	e.sendCancelledNotification(ctx, id, reason)
	inFlight.cancel()
	return true
}

// CancelAll cancels every inbound request this engine is still handling,
// notifying the peer for each. Used when a session is torn down (idle
// eviction, explicit DELETE) out from under handlers that are still
// running.
func (e *Engine) CancelAll(ctx context.Context, reason string) {
	e.mu.Lock()
	inFlights := make([]inFlightRequest, 0, len(e.cancelFuncs))
	for _, v := range e.cancelFuncs {
		inFlights = append(inFlights, v)
	}
	e.mu.Unlock()
	for _, f := range inFlights {
		e.sendCancelledNotification(ctx, f.id, reason)
		f.cancel()
	}
}
