// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// StrictUnmarshal decodes the fixed JSON-RPC envelope (data) into v with
// strict validation of the envelope's own field names:
//   - rejects two top-level keys that differ only in case (e.g. "id" and "Id")
//   - rejects a top-level key whose case doesn't exactly match v's json tags
//   - rejects unknown top-level fields
//
// This guards the envelope shape (jsonrpc/id/method/params or
// jsonrpc/id/result/error) against smuggling attacks that exploit Go's
// case-insensitive JSON unmarshalling, which JSON-RPC 2.0's case-sensitive
// field matching does not permit. It deliberately does not descend into
// params or result: those decode into json.RawMessage here and are
// arbitrary, caller-defined MCP content (tool arguments, resource payloads,
// elicitation schemas) that the mcp package's own Value codec validates on
// its own terms. Enforcing envelope-smuggling rules recursively onto opaque
// application payloads would reject legitimate messages for no security
// benefit.
func StrictUnmarshal(data []byte, v interface{}) error {
	raw, err := topLevelFields(data)
	if err != nil {
		// Not a JSON object: nothing for the envelope checks below to do,
		// fall through to the decoder, which will reject it on its own.
		raw = nil
	}
	if raw != nil {
		if err := checkEnvelopeFields(raw, extractExpectedFields(v)); err != nil {
			return fmt.Errorf("strict unmarshal: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("strict unmarshal: %w", err)
	}
	return nil
}

// topLevelFields parses data as a JSON object and returns its immediate
// keys, preserving each key's original casing.
func topLevelFields(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// checkEnvelopeFields rejects case-variant duplicate keys among raw's
// top-level fields, then checks each remaining key against expected
// (case-sensitive field names drawn from v's json tags): a key that matches
// an expected field only case-insensitively is a smuggling attempt and is
// reported explicitly, rather than left for DisallowUnknownFields to reject
// with a less specific message.
func checkEnvelopeFields(raw map[string]json.RawMessage, expected map[string]bool) error {
	seen := make(map[string]string, len(raw)) // lowercase -> original casing
	for key := range raw {
		lower := strings.ToLower(key)
		if original, ok := seen[lower]; ok && original != key {
			return fmt.Errorf("duplicate key with different case: %q and %q", original, key)
		}
		seen[lower] = key
	}
	for key := range raw {
		if expected[key] {
			continue
		}
		lower := strings.ToLower(key)
		for candidate := range expected {
			if strings.ToLower(candidate) == lower {
				return fmt.Errorf("field name case mismatch: got %q, expected %q", key, candidate)
			}
		}
		// No case-insensitive match either: an unknown field, left for
		// DisallowUnknownFields to reject.
	}
	return nil
}

// extractExpectedFields uses reflection to extract valid field names from
// v's json struct tags. Returns a map of field names that are expected in
// the JSON.
func extractExpectedFields(v interface{}) map[string]bool {
	fields := make(map[string]bool)

	t := reflect.TypeOf(v)
	if t == nil {
		return fields
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fields
	}

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := tag
		if idx := strings.Index(tag, ","); idx != -1 {
			name = tag[:idx]
		}
		if name != "" {
			fields[name] = true
		}
	}
	return fields
}
