// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package txbuf holds encoded records between the GPS reader and the radio sender.
package txbuf

import (
	"fmt"
	"sync"

	"github.com/relabs-tech/gps_lorawan/internal/record"
)

// Buffer is a byte ring sized to a whole number of records. When full, a push
// overwrites the oldest bytes. One goroutine pushes and one pops; the mutex
// keeps each operation atomic with respect to the cursors.
type Buffer struct {
	mu    sync.Mutex
	data  []byte
	write int // next byte to write
	count int // valid bytes, 0..len(data)
}

// New allocates a buffer holding up to records encoded records.
func New(records int) (*Buffer, error) {
	if records <= 0 {
		return nil, fmt.Errorf("txbuf: capacity must be at least one record, got %d", records)
	}
	return &Buffer{data: make([]byte, records*record.Size)}, nil
}

// PushRecord appends all bytes of r. It reports whether older data was
// overwritten to make room.
func (b *Buffer) PushRecord(r record.Record) (overwrote bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range r {
		b.data[b.write] = c
		b.write = (b.write + 1) % len(b.data)
		if b.count < len(b.data) {
			b.count++
		} else {
			overwrote = true
		}
	}
	return overwrote
}

// PopRecord removes and returns the oldest record. It returns false and
// leaves the buffer untouched when less than a full record is stored.
func (b *Buffer) PopRecord() (record.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var r record.Record
	if b.count < record.Size {
		return r, false
	}
	read := (b.write - b.count + len(b.data)) % len(b.data)
	for i := range r {
		r[i] = b.data[read]
		read = (read + 1) % len(b.data)
	}
	b.count -= record.Size
	return r, true
}

// Len returns the number of whole records stored.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count / record.Size
}

// Cap returns the capacity in records.
func (b *Buffer) Cap() int { return len(b.data) / record.Size }
