// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package mcpgodebug configures this module's compatibility and diagnostic
// knobs via the GOMCPDEBUG environment variable, the same comma-separated
// key=value convention the standard library uses for GODEBUG.
//
// For example:
//
//	GOMCPDEBUG=verboseframes=1,ssereplay=1
package mcpgodebug

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const compatibilityEnvKey = "GOMCPDEBUG"

var (
	once     sync.Once
	params   map[string]string
	parseErr error
)

// Value returns the value of the compatibility parameter with the given
// key, or the empty string if it was not set. A malformed GOMCPDEBUG value
// is reported once, lazily, the first time any key is looked up, rather
// than at package init: a library should not be able to crash a host
// process's startup over a typo in an env var it doesn't otherwise touch.
func Value(key string) string {
	once.Do(func() {
		params, parseErr = parseCompatibility(os.Getenv(compatibilityEnvKey))
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "mcpgodebug: %v\n", parseErr)
		}
	})
	return params[key]
}

func parseCompatibility(envValue string) (map[string]string, error) {
	if envValue == "" {
		return nil, nil
	}

	params := make(map[string]string)
	for part := range strings.SplitSeq(envValue, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%s: invalid format: %q", compatibilityEnvKey, part)
		}
		params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return params, nil
}
