// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command mcpconform runs a streamable-HTTP MCP host preloaded with one of
// a handful of scenario handler sets, for exercising a client
// implementation's conformance against the core protocol behaviors: an
// initialize round-trip, a simple tool call, cancellation, progress, and
// SSE resumption.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcpcore/go-mcp/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mcpconform:", err)
		os.Exit(1)
	}
}

func run() error {
	port := flag.Int("port", 8080, "TCP port to listen on")
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := mcp.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Addr = fmt.Sprintf(":%d", *port)

	scenario := os.Getenv("MCP_CONFORMANCE_SCENARIO")
	if scenario == "" {
		scenario = "echo"
	}
	factory, ok := scenarios[scenario]
	if !ok {
		return fmt.Errorf("unknown scenario %q (known: echo, slow-progress, flaky-cancel)", scenario)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	host := mcp.NewHost(cfg, factory, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting conformance host", "addr", cfg.Addr, "path", cfg.Path, "scenario", scenario)
	if err := host.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

var scenarios = map[string]mcp.HandlerSetFactory{
	"echo":          echoScenario,
	"slow-progress": slowProgressScenario,
	"flaky-cancel":  flakyCancelScenario,
}

// echoScenario registers an "echo" method that reflects its params back
// as the result and an "add" method that sums params a and b, both under
// the "echo" capability, for the basic tool-call and invalid-meta-key
// conformance checks.
func echoScenario() (*mcp.Server, map[string]mcp.TypedHandler) {
	server := mcp.NewServer(mcp.ServerOptions{
		Name:         "mcpconform-echo",
		Version:      "1.0.0",
		Capabilities: []mcp.Capability{"echo"},
	})
	server.RegisterMethod("echo", "echo")

	handlers := map[string]mcp.TypedHandler{
		"echo": func(ctx context.Context, sess *mcp.Session, params mcp.Value) (mcp.Value, *mcp.Error) {
			return params, nil
		},
		"add": func(ctx context.Context, sess *mcp.Session, params mcp.Value) (mcp.Value, *mcp.Error) {
			obj, ok := params.Interface().(map[string]mcp.Value)
			if !ok {
				return mcp.Value{}, &mcp.Error{Kind: mcp.KindInvalidParams, Message: "expected object with a and b"}
			}
			a, aok := obj["a"].Interface().(float64)
			b, bok := obj["b"].Interface().(float64)
			if !aok || !bok {
				return mcp.Value{}, &mcp.Error{Kind: mcp.KindInvalidParams, Message: "a and b must be numbers"}
			}
			return mcp.NewValue(map[string]any{"sum": a + b}), nil
		},
	}
	server.RegisterMethod("add", "echo")
	return server, handlers
}

// slowProgressScenario registers a "countTo" method that reports
// monotonically increasing progress on its way to a result, for the
// progress and SSE-resumption conformance checks.
func slowProgressScenario() (*mcp.Server, map[string]mcp.TypedHandler) {
	server := mcp.NewServer(mcp.ServerOptions{
		Name:         "mcpconform-slow-progress",
		Version:      "1.0.0",
		Capabilities: []mcp.Capability{"longrunning"},
	})
	server.RegisterMethod("countTo", "longrunning")

	handlers := map[string]mcp.TypedHandler{
		"countTo": func(ctx context.Context, sess *mcp.Session, params mcp.Value) (mcp.Value, *mcp.Error) {
			obj, _ := params.Interface().(map[string]mcp.Value)
			n := 5.0
			if v, ok := obj["n"]; ok {
				if f, ok := v.Interface().(float64); ok {
					n = f
				}
			}
			reporter, hasToken := mcp.WithProgress(ctx, server.Engine(), sess, params)
			if err := countToHandler(ctx, n, reporter, hasToken); err != nil {
				return mcp.Value{}, err
			}
			return mcp.NewValue(map[string]any{"countedTo": n}), nil
		},
	}
	return server, handlers
}

// countToHandler counts from 1 to n, reporting progress as a percentage of
// n after each step when the caller declared a progress token.
func countToHandler(ctx context.Context, n float64, reporter *mcp.ProgressReporter, hasToken bool) *mcp.Error {
	total := 100.0
	for i := 1.0; i <= n; i++ {
		select {
		case <-ctx.Done():
			return mcp.NewCancelledError("context ended mid-count")
		case <-time.After(200 * time.Millisecond):
		}
		if hasToken {
			reporter.Report(ctx, (i/n)*total, &total, "")
		}
	}
	return nil
}

// flakyCancelScenario registers a "flaky" method that sleeps long enough
// to exercise client-initiated cancellation and, on about one call in
// ten, fails outright to exercise error-path handling.
func flakyCancelScenario() (*mcp.Server, map[string]mcp.TypedHandler) {
	server := mcp.NewServer(mcp.ServerOptions{
		Name:         "mcpconform-flaky-cancel",
		Version:      "1.0.0",
		Capabilities: []mcp.Capability{"flaky"},
	})
	server.RegisterMethod("flaky", "flaky")

	handlers := map[string]mcp.TypedHandler{
		"flaky": func(ctx context.Context, sess *mcp.Session, params mcp.Value) (mcp.Value, *mcp.Error) {
			select {
			case <-ctx.Done():
				return mcp.Value{}, mcp.NewCancelledError("request was cancelled")
			case <-time.After(2 * time.Second):
			}
			if rand.IntN(10) == 0 {
				return mcp.Value{}, &mcp.Error{Kind: mcp.KindInternalError, Message: "simulated failure"}
			}
			return mcp.NewValue(map[string]any{"ok": true}), nil
		},
	}
	return server, handlers
}
