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
	"io"

	"github.com/rs/zerolog"
)

// multiWriter copies every log line to all attached writers, forwarding
// the zerolog level to writers that can use it (the ring buffer keeps it,
// plain writers get the raw line).
type multiWriter struct {
	writers []io.Writer
}

// NewMultiWriter creates a log output that copies every write to all
// given writers.
func NewMultiWriter(writers ...io.Writer) io.Writer {
	return &multiWriter{
		writers: writers,
	}
}

func (l *multiWriter) Write(p []byte) (n int, err error) {
	return l.WriteLevel(zerolog.NoLevel, p)
}

func (l *multiWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	for _, w := range l.writers {
		var werr error
		if lw, ok := w.(zerolog.LevelWriter); ok {
			_, werr = lw.WriteLevel(level, p)
		} else {
			_, werr = w.Write(p)
		}
		if werr != nil && err == nil {
			// A failing destination must not silence the others.
			err = werr
		}
	}
	return len(p), err
}
