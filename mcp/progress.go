// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"sync"
)

// ProgressReporter sends notifications/progress for one in-flight request.
// Handlers get one from WithProgress if the caller declared a progress
// token on that request.
//
// Progress values never decrease for a given token: Report drops any call
// whose value is not strictly greater than the last one reported (so a
// repeated value is dropped too), and becomes a no-op once the owning
// request's context ends, i.e. once its final response has been sent.
type ProgressReporter struct {
	engine *Engine
	token  ProgressToken

	mu       sync.Mutex
	last     float64
	reported bool
	done     bool
}

// newProgressReporter builds a reporter that emits notifications/progress
// for token over e, scoped to ctx.
func newProgressReporter(ctx context.Context, e *Engine, token ProgressToken) *ProgressReporter {
	r := &ProgressReporter{engine: e, token: token}
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		r.done = true
		r.mu.Unlock()
	}()
	return r
}

// Report emits a progress notification with the given value (and optional
// total/message), if value is strictly greater than the last reported
// value and the owning request has not yet completed.
func (r *ProgressReporter) Report(ctx context.Context, value float64, total *float64, message string) {
	r.mu.Lock()
	if r.done || (r.reported && value <= r.last) {
		r.mu.Unlock()
		return
	}
	r.last = value
	r.reported = true
	r.mu.Unlock()

	payload := map[string]any{
		"progressToken": r.token.Interface(),
		"progress":      value,
	}
	if total != nil {
		payload["total"] = *total
	}
	if message != "" {
		payload["message"] = message
	}
	_ = r.engine.Notify(ctx, "notifications/progress", NewValue(payload))
}

// withProgressToken returns params with _meta.progressToken set to token,
// preserving any other fields params or its existing _meta already carry.
// Call uses this so WithProgressToken actually reaches the peer on the
// wire instead of only being tracked locally.
func withProgressToken(params Value, token ProgressToken) Value {
	obj, ok := params.Interface().(map[string]Value)
	if !ok {
		obj = map[string]Value{}
	}
	meta, ok := obj["_meta"].Interface().(map[string]Value)
	if !ok {
		meta = map[string]Value{}
	}
	meta["progressToken"] = progressTokenToValue(token)
	obj["_meta"] = NewValue(meta)
	return NewValue(obj)
}

// progressTokenFromParams extracts a declared progress token from a
// request's params, honoring only tokens the session has registered as
// live (progress is restricted to declared tokens only).
func progressTokenFromParams(sess *Session, params Value) (ProgressToken, bool) {
	obj, ok := params.Interface().(map[string]Value)
	if !ok {
		return ProgressToken{}, false
	}
	g, err := DecodeGeneralFields(obj, nil)
	if err != nil {
		return ProgressToken{}, false
	}
	tok, ok := g.GetMeta().ProgressToken()
	if !ok || !sess.isProgressTokenLive(tok) {
		return ProgressToken{}, false
	}
	return tok, true
}

// WithProgress extracts the progress token (if any) from params and, if
// present, returns a ProgressReporter scoped to ctx along with ok=true.
func WithProgress(ctx context.Context, e *Engine, sess *Session, params Value) (*ProgressReporter, bool) {
	tok, ok := progressTokenFromParams(sess, params)
	if !ok {
		return nil, false
	}
	return newProgressReporter(ctx, e, tok), true
}
