// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteAndScanEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	want := []sseEvent{
		{id: "1", data: []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)},
		{id: "2", data: []byte(`{"jsonrpc":"2.0","method":"notifications/progress"}`)},
	}
	for _, evt := range want {
		if _, err := writeEvent(rec, evt); err != nil {
			t.Fatalf("writeEvent: %v", err)
		}
	}

	var got []sseEvent
	for evt, err := range scanEvents(bytes.NewReader(rec.Body.Bytes())) {
		if err != nil {
			t.Fatalf("scanEvents: %v", err)
		}
		got = append(got, evt)
	}

	if diff := cmp.Diff(want, got, cmp.AllowUnexported(sseEvent{})); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestScanEventsMultilineData(t *testing.T) {
	raw := "id: 7\ndata: line one\ndata: line two\n\n"
	var got []sseEvent
	for evt, err := range scanEvents(bytes.NewReader([]byte(raw))) {
		if err != nil {
			t.Fatalf("scanEvents: %v", err)
		}
		got = append(got, evt)
	}
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	want := "line one\nline two"
	if string(got[0].data) != want {
		t.Errorf("data = %q, want %q", got[0].data, want)
	}
	if got[0].id != "7" {
		t.Errorf("id = %q, want 7", got[0].id)
	}
}
