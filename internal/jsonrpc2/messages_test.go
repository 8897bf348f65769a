// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestRequestRoundTrip(t *testing.T) {
	tests := []*Request{
		{ID: Int64ID(1), Method: "initialize", Params: json.RawMessage(`{"a":1}`)},
		{ID: StringID("abc"), Method: "tools/call"},
		{Method: "notifications/initialized"}, // no ID: notification
	}
	for _, want := range tests {
		data, err := EncodeRequest(want)
		if err != nil {
			t.Fatalf("EncodeRequest: %v", err)
		}
		msg, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		got, ok := msg.(*Request)
		if !ok {
			t.Fatalf("Decode returned %T, want *Request", msg)
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateComparable(ID{})); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	werr, err := NewWireError(CodeMethodNotFound, "method not found", nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []*Response{
		{ID: Int64ID(2), Result: json.RawMessage(`{"ok":true}`)},
		{ID: StringID("x"), Error: werr},
	}
	for _, want := range tests {
		data, err := EncodeResponse(want)
		if err != nil {
			t.Fatalf("EncodeResponse: %v", err)
		}
		msg, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		got, ok := msg.(*Response)
		if !ok {
			t.Fatalf("Decode returned %T, want *Response", msg)
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateComparable(ID{})); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestDecodeBatch(t *testing.T) {
	req1, _ := EncodeRequest(&Request{ID: Int64ID(1), Method: "ping"})
	req2, _ := EncodeRequest(&Request{Method: "notifications/cancelled"})
	data := []byte("[" + string(req1) + "," + string(req2) + "]")

	msgs, isBatch, err := DecodeBatchOrSingle(data)
	if err != nil {
		t.Fatal(err)
	}
	if !isBatch {
		t.Fatal("expected batch")
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
}

func TestDecodeBatchEmptyRejected(t *testing.T) {
	if _, _, err := DecodeBatchOrSingle([]byte("[]")); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestDecodeResponseMissingID(t *testing.T) {
	if _, err := Decode([]byte(`{"jsonrpc":"2.0","result":{}}`)); err == nil {
		t.Fatal("expected error for response without id")
	}
}

func TestIDIsValid(t *testing.T) {
	var zero ID
	if zero.IsValid() {
		t.Error("zero ID should be invalid")
	}
	if !Int64ID(0).IsValid() {
		t.Error("Int64ID(0) should be valid")
	}
	if !StringID("").IsValid() {
		t.Error("StringID(\"\") should be valid")
	}
}
