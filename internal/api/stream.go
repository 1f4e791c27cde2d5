// Copyright 2023 - MinIO, Inc. All rights reserved.
// Use of this source code is governed by the AGPLv3
// license that can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
)

// Broadcast is an io.Writer that forwards every write to
// all of its subscribers. The zero value has no subscribers
// and is ready for use.
type Broadcast struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]io.Writer
}

// Subscribe adds w to the subscribers of b. The returned
// function removes w again and can be called more than once.
func (b *Broadcast) Subscribe(w io.Writer) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = map[uint64]io.Writer{}
	}
	id := b.next
	b.next++
	b.subs[id] = w

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Len returns the number of subscribers.
func (b *Broadcast) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Write writes p to every subscriber. A failing subscriber
// does not prevent the others from receiving p. Write
// reports the first error, if any.
func (b *Broadcast) Write(p []byte) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var err error
	for _, w := range b.subs {
		n, wErr := w.Write(p)
		if wErr == nil && n < len(p) {
			wErr = io.ErrShortWrite
		}
		if err == nil {
			err = wErr
		}
	}
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// StreamErrorLog returns an io.Writer that sends each
// log line written to it as JSON-encoded ErrorLogEvent
// to w and flushes w afterwards.
func StreamErrorLog(w io.Writer) io.Writer {
	s := &stream{w: w}
	s.flusher, _ = w.(http.Flusher)
	s.encoder = json.NewEncoder(w)
	return s
}

// StreamAuditLog returns an io.Writer that forwards
// writes to w unchanged and flushes w afterwards.
func StreamAuditLog(w io.Writer) io.Writer {
	s := &stream{w: w}
	s.flusher, _ = w.(http.Flusher)
	return s
}

type stream struct {
	w       io.Writer
	encoder *json.Encoder // nil for raw streams
	flusher http.Flusher
}

func (s *stream) Write(p []byte) (int, error) {
	n := len(p)
	if s.encoder == nil {
		var err error
		if n, err = s.w.Write(p); err != nil {
			return n, err
		}
	} else {
		if n == 0 {
			return 0, nil
		}
		line := p
		if line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
		if err := s.encoder.Encode(ErrorLogEvent{Message: string(line)}); err != nil {
			return 0, err
		}
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return n, nil
}
