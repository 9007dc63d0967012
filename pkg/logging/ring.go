// Copyright 2024 Probeworks
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// RingWriter keeps the most recent log lines in memory so they can be
// inspected over the HTTP API of a headless probe.
type RingWriter struct {
	mutex    sync.RWMutex
	capacity int
	lines    []RingEntry
	next     int
	filled   bool
}

// RingEntry is a single captured log line.
type RingEntry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// NewRingWriter creates a RingWriter holding up to capacity lines.
func NewRingWriter(capacity int) *RingWriter {
	if capacity <= 0 {
		capacity = 256
	}
	return &RingWriter{
		capacity: capacity,
		lines:    make([]RingEntry, capacity),
	}
}

// Write records a message without level information.
func (w *RingWriter) Write(p []byte) (n int, err error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel records a message at the given level.
func (w *RingWriter) WriteLevel(l zerolog.Level, p []byte) (n int, err error) {
	entry := RingEntry{
		Level:   l.String(),
		Message: strings.TrimRight(string(p), "\n"),
	}
	w.mutex.Lock()
	w.lines[w.next] = entry
	w.next = (w.next + 1) % w.capacity
	if w.next == 0 {
		w.filled = true
	}
	w.mutex.Unlock()
	return len(p), nil
}

// Tail returns up to max of the most recent lines, oldest first.
func (w *RingWriter) Tail(max int) []RingEntry {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	size := w.next
	if w.filled {
		size = w.capacity
	}
	if max <= 0 || max > size {
		max = size
	}
	result := make([]RingEntry, 0, max)
	start := w.next - max
	if start < 0 {
		start += w.capacity
	}
	for i := 0; i < max; i++ {
		result = append(result, w.lines[(start+i)%w.capacity])
	}
	return result
}
