// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"
	"sync"
)

// DefaultEventStoreCapacity is the default number of events retained per
// stream for resumption, overridable via Config.EventStoreCapacity.
const DefaultEventStoreCapacity = 1024

// streamKey identifies one SSE stream within a session: either a
// request-bound POST stream (keyed by its RequestID) or the session's
// single standalone GET stream (the zero RequestID).
type streamKey struct {
	sessionID string
	requestID string // "" for the standalone stream
}

// eventStore is a bounded, per-stream ring buffer of previously sent SSE
// events, keyed by (session, stream). It backs resumption via
// Last-Event-ID: a client that reconnects with an event id it
// has already seen replays everything strictly after it; an id that has
// aged out of the ring is a replay gap, reported as such so the caller can
// fall back to a fresh subscription.
type eventStore struct {
	mu       sync.Mutex
	capacity int
	streams  map[streamKey]*ring
}

func newEventStore(capacity int) *eventStore {
	if capacity <= 0 {
		capacity = DefaultEventStoreCapacity
	}
	return &eventStore{capacity: capacity, streams: map[streamKey]*ring{}}
}

// ring is a fixed-capacity circular buffer of sseEvents with monotonically
// increasing sequence numbers, allowing O(1) append and O(gap) replay.
type ring struct {
	buf      []sseEvent
	seqs     []uint64
	start    int // index of oldest entry
	size     int
	nextSeq  uint64
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]sseEvent, capacity), seqs: make([]uint64, capacity)}
}

func (r *ring) append(data []byte) sseEvent {
	seq := r.nextSeq
	r.nextSeq++
	evt := sseEvent{id: fmt.Sprintf("%d", seq), data: data}

	idx := (r.start + r.size) % len(r.buf)
	if r.size == len(r.buf) {
		r.start = (r.start + 1) % len(r.buf)
	} else {
		r.size++
	}
	r.buf[idx] = evt
	r.seqs[idx] = seq
	return evt
}

// oldestSeq returns the sequence number of the oldest retained event, and
// whether the ring holds anything at all.
func (r *ring) oldestSeq() (uint64, bool) {
	if r.size == 0 {
		return 0, false
	}
	return r.seqs[r.start], true
}

// after returns every retained event with sequence number > after, in
// order, plus ok=false if after predates the oldest retained event (a
// replay gap). after == -1 means "replay from the very start".
func (r *ring) after(after int64) (events []sseEvent, ok bool) {
	if r.size == 0 {
		return nil, true
	}
	oldest, _ := r.oldestSeq()
	if after >= 0 && uint64(after)+1 < oldest {
		return nil, false
	}
	for i := 0; i < r.size; i++ {
		idx := (r.start + i) % len(r.buf)
		if int64(r.seqs[idx]) > after {
			events = append(events, r.buf[idx])
		}
	}
	return events, true
}

// append records data as a new event on the named stream and returns it.
func (s *eventStore) append(sessionID, requestID string, data []byte) sseEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := streamKey{sessionID, requestID}
	r, ok := s.streams[k]
	if !ok {
		r = newRing(s.capacity)
		s.streams[k] = r
	}
	return r.append(data)
}

// replayAfter returns every event on the named stream sent after lastEventID,
// and ok=false if lastEventID is outside the retained window (the caller
// should treat this as an unresumable gap).
func (s *eventStore) replayAfter(sessionID, requestID, lastEventID string) (events []sseEvent, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, present := s.streams[streamKey{sessionID, requestID}]
	if !present {
		return nil, lastEventID == ""
	}
	after := int64(-1)
	if lastEventID != "" {
		var parsed uint64
		if _, err := fmt.Sscanf(lastEventID, "%d", &parsed); err != nil {
			return nil, false
		}
		after = int64(parsed)
	}
	return r.after(after)
}

// forget discards all retained events for a session, e.g. once the stream
// closes normally or the session itself is torn down.
func (s *eventStore) forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.streams {
		if k.sessionID == sessionID {
			delete(s.streams, k)
		}
	}
}

// forgetStream discards the retained events for one stream only, used when
// a POST-bound SSE stream completes (its request/response is done; no
// further resumption is meaningful).
func (s *eventStore) forgetStream(sessionID, requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, streamKey{sessionID, requestID})
}
