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
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func TestRingWriterTailOrder(t *testing.T) {
	w := NewRingWriter(4)
	for i := 0; i < 3; i++ {
		if _, err := w.WriteLevel(zerolog.InfoLevel, []byte(fmt.Sprintf("line %d\n", i))); err != nil {
			t.Fatalf("WriteLevel failed: %v", err)
		}
	}
	tail := w.Tail(0)
	if len(tail) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(tail))
	}
	for i, entry := range tail {
		if expected := fmt.Sprintf("line %d", i); entry.Message != expected {
			t.Errorf("line %d: got %q, want %q", i, entry.Message, expected)
		}
		if entry.Level != "info" {
			t.Errorf("line %d: got level %q", i, entry.Level)
		}
	}
}

func TestRingWriterOverflow(t *testing.T) {
	w := NewRingWriter(4)
	for i := 0; i < 10; i++ {
		w.WriteLevel(zerolog.DebugLevel, []byte(fmt.Sprintf("line %d", i)))
	}
	tail := w.Tail(0)
	if len(tail) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(tail))
	}
	for i, entry := range tail {
		if expected := fmt.Sprintf("line %d", i+6); entry.Message != expected {
			t.Errorf("line %d: got %q, want %q", i, entry.Message, expected)
		}
	}
}

func TestRingWriterTailLimit(t *testing.T) {
	w := NewRingWriter(8)
	for i := 0; i < 5; i++ {
		w.WriteLevel(zerolog.InfoLevel, []byte(fmt.Sprintf("line %d", i)))
	}
	tail := w.Tail(2)
	if len(tail) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(tail))
	}
	if tail[0].Message != "line 3" || tail[1].Message != "line 4" {
		t.Errorf("unexpected tail %v", tail)
	}
}

func TestRingWriterWriteWithoutLevel(t *testing.T) {
	w := NewRingWriter(2)
	n, err := w.Write([]byte("plain\n"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 6 {
		t.Errorf("expected 6 bytes written, got %d", n)
	}
	tail := w.Tail(0)
	if len(tail) != 1 || tail[0].Message != "plain" {
		t.Fatalf("unexpected tail %v", tail)
	}
}
