// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"sync"
	"testing"
)

func TestProgressReporterDeliversMonotonicSequence(t *testing.T) {
	serverT, clientT := newPipe()
	serverEngine := NewEngine(serverT, NewSession("server"), nil)
	clientEngine := NewEngine(clientT, NewSession("client"), nil)

	serverEngine.RegisterHandler("initialize", func(ctx context.Context, sess *Session, params Value) (Value, *Error) {
		return NewValue(map[string]any{}), nil
	})
	serverEngine.RegisterHandler("countTo", func(ctx context.Context, sess *Session, params Value) (Value, *Error) {
		reporter, ok := WithProgress(ctx, serverEngine, sess, params)
		if !ok {
			t.Error("expected a declared progress token on countTo's params")
			return Value{}, nil
		}
		total := 100.0
		reporter.Report(ctx, 0, &total, "starting")
		reporter.Report(ctx, 50, &total, "")
		reporter.Report(ctx, 100, &total, "")
		return NewValue(map[string]any{"done": true}), nil
	})

	var mu sync.Mutex
	var seen []float64
	notifyDone := make(chan struct{}, 3)
	clientEngine.OnProgress(func(ctx context.Context, sess *Session, token ProgressToken, value Value) {
		obj, _ := value.Interface().(map[string]Value)
		progress, _ := obj["progress"].Interface().(float64)
		mu.Lock()
		seen = append(seen, progress)
		mu.Unlock()
		notifyDone <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go serverEngine.Run(ctx)
	go clientEngine.Run(ctx)

	client := NewClient(clientEngine)
	if _, rpcErr := client.Initialize(ctx, "c", "1.0"); rpcErr != nil {
		t.Fatalf("Initialize: %v", rpcErr)
	}

	token, err := NewProgressToken("p1")
	if err != nil {
		t.Fatalf("NewProgressToken: %v", err)
	}
	result, rpcErr := clientEngine.Call(ctx, "countTo", NewValue(map[string]any{}), WithProgressToken(token))
	if rpcErr != nil {
		t.Fatalf("Call(countTo): %v", rpcErr)
	}
	obj, _ := result.Interface().(map[string]Value)
	if done, _ := obj["done"].Interface().(bool); !done {
		t.Errorf("countTo result = %#v, want done=true", result.Interface())
	}

	for i := 0; i < 3; i++ {
		<-notifyDone
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("received %d progress notifications, want 3: %v", len(seen), seen)
	}
	want := []float64{0, 50, 100}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("progress[%d] = %v, want %v", i, seen[i], w)
		}
	}
}

func TestWithProgressTokenPutsTokenOnWire(t *testing.T) {
	token, err := NewProgressToken("tok-1")
	if err != nil {
		t.Fatalf("NewProgressToken: %v", err)
	}
	params := withProgressToken(NewValue(map[string]any{"a": 1.0}), token)
	obj, ok := params.Interface().(map[string]Value)
	if !ok {
		t.Fatalf("params is not an object: %#v", params.Interface())
	}
	meta, ok := obj["_meta"].Interface().(map[string]Value)
	if !ok {
		t.Fatalf("params._meta is not an object: %#v", obj["_meta"].Interface())
	}
	got, ok := meta["progressToken"].Interface().(string)
	if !ok || got != "tok-1" {
		t.Errorf("_meta.progressToken = %#v, want %q", meta["progressToken"].Interface(), "tok-1")
	}
	if a, _ := obj["a"].Interface().(float64); a != 1 {
		t.Errorf("original field a = %#v, want 1", obj["a"].Interface())
	}
}
