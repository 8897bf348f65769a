// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import "testing"

func TestEventStoreReplayAfter(t *testing.T) {
	s := newEventStore(10)
	var ids []string
	for i := 0; i < 5; i++ {
		evt := s.append("sess-1", "", []byte("payload"))
		ids = append(ids, evt.id)
	}

	events, ok := s.replayAfter("sess-1", "", ids[1])
	if !ok {
		t.Fatal("expected replay to succeed")
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, evt := range events {
		if evt.id != ids[2+i] {
			t.Errorf("event[%d].id = %q, want %q", i, evt.id, ids[2+i])
		}
	}
}

func TestEventStoreReplayGapOnEviction(t *testing.T) {
	s := newEventStore(2)
	var ids []string
	for i := 0; i < 5; i++ {
		evt := s.append("sess-1", "", []byte("payload"))
		ids = append(ids, evt.id)
	}

	if _, ok := s.replayAfter("sess-1", "", ids[0]); ok {
		t.Error("expected a replay gap for an event id that has aged out of the ring")
	}
}

func TestEventStoreForget(t *testing.T) {
	s := newEventStore(10)
	s.append("sess-1", "", []byte("a"))
	s.append("sess-2", "", []byte("b"))
	s.forget("sess-1")

	if _, ok := s.streams[streamKey{"sess-1", ""}]; ok {
		t.Error("expected sess-1's stream to be forgotten")
	}
	if _, ok := s.streams[streamKey{"sess-2", ""}]; !ok {
		t.Error("expected sess-2's stream to remain")
	}
}

func TestEventStoreForgetStream(t *testing.T) {
	s := newEventStore(10)
	s.append("sess-1", "req-1", []byte("a"))
	s.append("sess-1", "req-2", []byte("b"))
	s.forgetStream("sess-1", "req-1")

	if _, ok := s.streams[streamKey{"sess-1", "req-1"}]; ok {
		t.Error("expected req-1's stream to be forgotten")
	}
	if _, ok := s.streams[streamKey{"sess-1", "req-2"}]; !ok {
		t.Error("expected req-2's stream to remain")
	}
}
