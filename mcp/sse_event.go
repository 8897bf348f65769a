// Copyright 2026 The Go MCP Core Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
)

// sseEvent is a single Server-Sent Event: an optional monotonic id and the
// JSON-RPC message payload.
type sseEvent struct {
	id   string
	data []byte
}

// writeEvent writes evt to w in SSE wire format and flushes if possible.
// It returns an error if the write fails (e.g. the client disconnected).
func writeEvent(w http.ResponseWriter, evt sseEvent) (int, error) {
	var buf bytes.Buffer
	if evt.id != "" {
		fmt.Fprintf(&buf, "id: %s\n", evt.id)
	}
	buf.WriteString("event: message\n")
	for _, line := range strings.Split(string(evt.data), "\n") {
		fmt.Fprintf(&buf, "data: %s\n", line)
	}
	buf.WriteString("\n")
	n, err := w.Write(buf.Bytes())
	if err != nil {
		return n, err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return n, nil
}

// writeRetry emits the optional priming `retry: <ms>` line a stream may
// send immediately on open.
func writeRetry(w http.ResponseWriter, ms int) error {
	_, err := fmt.Fprintf(w, "retry: %d\n\n", ms)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return err
}

// scanEvents parses an SSE byte stream into a sequence of (event, error)
// pairs, terminating cleanly on io.EOF (reported as the final iteration
// simply stopping, with no error value yielded).
func scanEvents(r io.Reader) iter.Seq2[sseEvent, error] {
	return func(yield func(sseEvent, error) bool) {
		br := bufio.NewReader(r)
		var id string
		var data bytes.Buffer
		haveData := false

		flush := func() bool {
			if !haveData {
				return true
			}
			evt := sseEvent{id: id, data: bytes.TrimSuffix(data.Bytes(), []byte("\n"))}
			id, haveData = "", false
			data.Reset()
			return yield(evt, nil)
		}

		for {
			line, err := br.ReadString('\n')
			trimmed := strings.TrimRight(line, "\r\n")
			if trimmed == "" {
				if !flush() {
					return
				}
			} else if rest, ok := strings.CutPrefix(trimmed, "id: "); ok {
				id = rest
			} else if rest, ok := strings.CutPrefix(trimmed, "data: "); ok {
				if haveData {
					data.WriteByte('\n')
				}
				data.WriteString(rest)
				haveData = true
			} // ignore "event:", "retry:", and comment lines

			if err != nil {
				if err == io.EOF {
					flush()
					return
				}
				yield(sseEvent{}, err)
				return
			}
		}
	}
}
