// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/mcpcore/go-mcp/internal/fastjson"
)

// Value is a self-describing JSON value: null, bool, int64, float64,
// string, []Value, or map[string]Value. Deserialization from JSON into a
// Value is total — any syntactically valid JSON document decodes to one.
type Value struct {
	v any
}

// NewValue wraps a plain Go value (the result of decoding JSON into `any`,
// or a hand-built combination of the above types) as a Value.
func NewValue(v any) Value { return Value{normalize(v)} }

// Interface returns the underlying value as `any`.
func (v Value) Interface() any { return v.v }

// IsNull reports whether v holds JSON null (or is the zero Value).
func (v Value) IsNull() bool { return v.v == nil }

// ValueOf marshals a typed Go value (e.g. a fixed-shape result struct) and
// decodes it back into a Value, so callers can build results from typed
// structs instead of map[string]any while keeping Value's own invariant
// that it only ever holds the JSON primitive shapes.
func ValueOf(v any) (Value, error) {
	data, err := fastjson.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	var out Value
	if err := out.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return out, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, val := range x {
			m[k] = NewValue(val)
		}
		return m
	case []any:
		a := make([]Value, len(x))
		for i, val := range x {
			a[i] = NewValue(val)
		}
		return a
	case float64, int64, int, string, bool, nil:
		return x
	case map[string]Value, []Value:
		return x
	default:
		return x
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return fastjson.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := fastjson.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.v = normalize(raw)
	return nil
}

// metaKeyPattern implements the reserved-key grammar:
// ([a-zA-Z][a-zA-Z0-9-]*(\.[a-zA-Z][a-zA-Z0-9-]*)*\/)?[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?
var metaKeyPattern = regexp.MustCompile(
	`^([a-zA-Z][a-zA-Z0-9-]*(\.[a-zA-Z][a-zA-Z0-9-]*)*/)?[a-zA-Z0-9]([a-zA-Z0-9._-]*[a-zA-Z0-9])?$`,
)

// ErrInvalidMetaKey is returned (wrapped) when a `_meta` key fails
// validation, either on encode or decode.
var ErrInvalidMetaKey = fmt.Errorf("invalid meta key")

// ValidateMetaKey reports whether key is a legal MetaFields key.
func ValidateMetaKey(key string) error {
	if key == "" || !metaKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidMetaKey, key)
	}
	return nil
}

// MetaFields is the `_meta` object carried by request/response/notification
// params and results: an arbitrary map of Values keyed by
// `[prefix/]name`-shaped strings.
type MetaFields map[string]Value

// progressTokenKey is the reserved MetaFields entry used to correlate
// progress notifications with the request that authorized them.
const progressTokenKey = "progressToken"

// ProgressToken projects the reserved "progressToken" entry to a
// ProgressToken, or returns the zero ProgressToken and false if it is
// absent or not a string or number.
func (m MetaFields) ProgressToken() (ProgressToken, bool) {
	v, ok := m[progressTokenKey]
	if !ok {
		return ProgressToken{}, false
	}
	tok, err := valueToProgressToken(v)
	if err != nil {
		return ProgressToken{}, false
	}
	return tok, true
}

// Validate checks every key against ValidateMetaKey, returning the first
// violation found. Keys are checked in sorted order so errors are
// deterministic.
func (m MetaFields) Validate() error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ValidateMetaKey(k); err != nil {
			return err
		}
	}
	return nil
}

func (m MetaFields) MarshalJSON() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return fastjson.Marshal(map[string]Value(m))
}

func (m *MetaFields) UnmarshalJSON(data []byte) error {
	var raw map[string]Value
	if err := fastjson.Unmarshal(data, &raw); err != nil {
		return err
	}
	mf := MetaFields(raw)
	if err := mf.Validate(); err != nil {
		return err
	}
	*m = mf
	return nil
}

// GeneralFields is the pair of `_meta` plus dynamic additional fields
// shared by every params/result shape.
//
// On encode, Meta is emitted under "_meta" if non-empty, and Additional is
// flattened into the enclosing object under its own keys — excluding
// "_meta" itself and any key in a caller-supplied reserved set (the
// fixed field names already declared on the enclosing struct).
type GeneralFields struct {
	Meta       MetaFields
	Additional map[string]Value
}

// GetMeta returns the Meta field, or nil if unset. It exists so handler
// code can write `params.GetMeta().ProgressToken()` without a nil check on
// GeneralFields itself.
func (g GeneralFields) GetMeta() MetaFields { return g.Meta }

// EncodeInto validates and flattens g onto the dynamic `dst` map that the
// caller will marshal alongside its own fixed fields. `reserved` lists the
// fixed field names (as they appear on the wire) that Additional must not
// shadow.
func (g GeneralFields) EncodeInto(dst map[string]Value, reserved map[string]bool) error {
	if len(g.Meta) > 0 {
		if err := g.Meta.Validate(); err != nil {
			return err
		}
		dst["_meta"] = NewValue(map[string]any(nil)) // placeholder, replaced below
		metaVal := make(map[string]Value, len(g.Meta))
		for k, v := range g.Meta {
			metaVal[k] = v
		}
		dst["_meta"] = Value{v: metaVal}
	}
	for k, v := range g.Additional {
		if k == "_meta" || reserved[k] {
			continue
		}
		dst[k] = v
	}
	return nil
}

// DecodeGeneralFields extracts `_meta` (validating it) and the remaining dynamic
// fields (excluding `reserved`) from a decoded object map.
func DecodeGeneralFields(obj map[string]Value, reserved map[string]bool) (GeneralFields, error) {
	g := GeneralFields{Additional: map[string]Value{}}
	for k, v := range obj {
		switch {
		case k == "_meta":
			raw, ok := v.Interface().(map[string]Value)
			if !ok {
				return GeneralFields{}, fmt.Errorf("_meta must be an object")
			}
			mf := MetaFields(raw)
			if err := mf.Validate(); err != nil {
				return GeneralFields{}, err
			}
			g.Meta = mf
		case reserved[k]:
			// fixed field, handled by the caller's own struct tags.
		default:
			g.Additional[k] = v
		}
	}
	return g, nil
}
