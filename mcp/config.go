// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of a streamable HTTP host. LoadConfig fills
// every field with its default. In a Config built by hand, a zero
// SessionIdleTimeout, RequestTimeout, MaxBodyBytes or EventStoreCapacity
// also falls back to its default; Addr and Path have no fallback, and a
// zero RateLimitPerSecond turns throttling off.
type Config struct {
	// Addr is the host:port the Host binds its listener to.
	Addr string `yaml:"addr"`
	// Path is the single HTTP path the streamable transport is served on.
	Path string `yaml:"path"`

	// SessionIdleTimeout tears a session down after this long without any
	// request on it. Zero means DefaultSessionIdleTimeout.
	SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`
	// RequestTimeout is the per-request deadline applied to inbound calls.
	// Zero means DefaultRequestTimeout.
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// MaxBodyBytes caps request body size; 0 means DefaultMaxBodyBytes, a
	// negative value means unlimited.
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
	// EventStoreCapacity bounds how many SSE events are retained per
	// stream for resumption; 0 means DefaultEventStoreCapacity.
	EventStoreCapacity int `yaml:"eventStoreCapacity"`

	// AllowedOrigins is the Origin allow-list the origin validator checks
	// cross-origin requests against; "*" allows any origin. Empty means no
	// restriction is enforced.
	AllowedOrigins []string `yaml:"allowedOrigins"`

	// RateLimitPerSecond and RateLimitBurst configure the per-remote-address
	// admission limiter in front of the validator pipeline. Zero
	// RateLimitPerSecond disables throttling.
	RateLimitPerSecond float64 `yaml:"rateLimitPerSecond"`
	RateLimitBurst     int     `yaml:"rateLimitBurst"`
}

// DefaultSessionIdleTimeout is the default session idle eviction period.
const DefaultSessionIdleTimeout = 3600 * time.Second

// DefaultRateLimitPerSecond and DefaultRateLimitBurst are the admission
// limiter's defaults, chosen to absorb a well-behaved client's normal
// polling cadence while still bounding worst-case load per remote address.
const (
	DefaultRateLimitPerSecond = 50
	DefaultRateLimitBurst     = 100
)

// DefaultConfig returns a Config with every field at its documented
// default.
func DefaultConfig() *Config {
	return &Config{
		Addr:               ":8080",
		Path:               "/mcp",
		SessionIdleTimeout: DefaultSessionIdleTimeout,
		RequestTimeout:     DefaultRequestTimeout,
		MaxBodyBytes:       DefaultMaxBodyBytes,
		EventStoreCapacity: DefaultEventStoreCapacity,
		RateLimitPerSecond: DefaultRateLimitPerSecond,
		RateLimitBurst:     DefaultRateLimitBurst,
	}
}

// LoadConfig reads a YAML config file at path and overlays it onto
// DefaultConfig. An empty path returns DefaultConfig() unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var overlay struct {
		Addr                      *string  `yaml:"addr"`
		Path                      *string  `yaml:"path"`
		SessionIdleTimeoutSeconds *float64 `yaml:"sessionIdleTimeoutSeconds"`
		RequestTimeoutSeconds     *float64 `yaml:"requestTimeoutSeconds"`
		MaxBodyBytes              *int64   `yaml:"maxBodyBytes"`
		EventStoreCapacity        *int     `yaml:"eventStoreCapacity"`
		AllowedOrigins            []string `yaml:"allowedOrigins"`
		RateLimitPerSecond        *float64 `yaml:"rateLimitPerSecond"`
		RateLimitBurst            *int     `yaml:"rateLimitBurst"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	if overlay.Addr != nil {
		cfg.Addr = *overlay.Addr
	}
	if overlay.Path != nil {
		cfg.Path = *overlay.Path
	}
	if overlay.SessionIdleTimeoutSeconds != nil {
		cfg.SessionIdleTimeout = time.Duration(*overlay.SessionIdleTimeoutSeconds * float64(time.Second))
	}
	if overlay.RequestTimeoutSeconds != nil {
		cfg.RequestTimeout = time.Duration(*overlay.RequestTimeoutSeconds * float64(time.Second))
	}
	if overlay.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *overlay.MaxBodyBytes
	}
	if overlay.EventStoreCapacity != nil {
		cfg.EventStoreCapacity = *overlay.EventStoreCapacity
	}
	if overlay.AllowedOrigins != nil {
		cfg.AllowedOrigins = overlay.AllowedOrigins
	}
	if overlay.RateLimitPerSecond != nil {
		cfg.RateLimitPerSecond = *overlay.RateLimitPerSecond
	}
	if overlay.RateLimitBurst != nil {
		cfg.RateLimitBurst = *overlay.RateLimitBurst
	}
	return cfg, nil
}
