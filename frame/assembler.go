// Package frame turns an arbitrary stream of transport chunks into complete
// newline-delimited records.
//
// It knows nothing about the records themselves: an Assembler only finds line
// boundaries, and a Deduper only compares consecutive transport units.
package frame

import (
	"bytes"
	"iter"
	"strings"
)

// Assembler buffers raw chunks for one connection and yields complete lines.
//
// The zero value is ready to use. An Assembler is not safe for concurrent use;
// each connection owns its own instance.
type Assembler struct {
	buf []byte
}

// Feed appends chunk to the line buffer and returns a sequence over the
// complete lines now available.
//
// Lines are yielded without the trailing '\n' and are otherwise untouched (a
// trailing '\r' is kept). Empty and whitespace-only lines are skipped. A line
// is removed from the buffer only when it is yielded, so if the consumer stops
// early the remaining lines are yielded by the next call to Feed. Content after
// the last newline stays buffered.
//
// There is no bound on buffer growth: a peer that never sends '\n' keeps
// accumulating.
func (a *Assembler) Feed(chunk []byte) iter.Seq[string] {
	a.buf = append(a.buf, chunk...)
	return func(yield func(string) bool) {
		for {
			i := bytes.IndexByte(a.buf, '\n')
			if i < 0 {
				return
			}
			line := string(a.buf[:i])
			a.consume(i + 1)
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
}

// Buffered reports how many bytes are waiting for a newline.
func (a *Assembler) Buffered() int { return len(a.buf) }

// Reset drops any buffered partial content without emitting it.
func (a *Assembler) Reset() { a.buf = nil }

// consume removes the first n bytes. The backing array is reused once it has
// been fully drained so a steady stream does not keep reallocating.
func (a *Assembler) consume(n int) {
	if n >= len(a.buf) {
		a.buf = a.buf[:0]
		return
	}
	a.buf = a.buf[n:]
}
