// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package line frames a serial byte stream into terminator-delimited lines.
package line

import (
	"errors"
	"fmt"
)

// Terminator ends every sentence on the GPS serial line.
const Terminator = '\n'

// DefaultMaxLength is the longest NMEA 0183 sentence (82 bytes incl. CR LF).
const DefaultMaxLength = 82

// ErrOverflow is returned by Feed when a line exceeds the buffer capacity
// before its terminator arrives. The partial line is discarded.
var ErrOverflow = errors.New("line: buffer overflow before terminator")

// Reassembler accumulates bytes one at a time into a fixed-capacity buffer.
// It is owned by a single goroutine.
type Reassembler struct {
	buf []byte
	pos int

	// discarding is set after an overflow; bytes are dropped until the next
	// terminator so the tail of the overlong line is never framed.
	discarding bool
}

// New returns a Reassembler whose buffer holds at most maxLen bytes,
// terminator included.
func New(maxLen int) (*Reassembler, error) {
	if maxLen < 2 {
		return nil, fmt.Errorf("line: max length %d too small", maxLen)
	}
	return &Reassembler{buf: make([]byte, maxLen)}, nil
}

// Feed appends b to the current line. When b is the terminator it returns the
// complete line (terminator included) and true. The returned slice aliases the
// internal buffer and is only valid until the next call to Feed.
//
// ErrOverflow is returned once per overlong line.
func (r *Reassembler) Feed(b byte) ([]byte, bool, error) {
	if r.discarding {
		if b == Terminator {
			r.discarding = false
		}
		return nil, false, nil
	}

	if r.pos == len(r.buf) {
		r.pos = 0
		if b != Terminator {
			r.discarding = true
		}
		return nil, false, ErrOverflow
	}

	r.buf[r.pos] = b
	r.pos++

	if b != Terminator {
		return nil, false, nil
	}

	n := r.pos
	r.pos = 0
	return r.buf[:n], true, nil
}

// Reset drops any partially accumulated line.
func (r *Reassembler) Reset() {
	r.pos = 0
	r.discarding = false
}

// Pending reports how many bytes of the current line are buffered.
func (r *Reassembler) Pending() int { return r.pos }

// Cap returns the maximum line length, terminator included.
func (r *Reassembler) Cap() int { return len(r.buf) }
