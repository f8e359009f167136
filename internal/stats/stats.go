// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stats counts pipeline events for logs, the web monitor and the display.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/gps_lorawan/internal/record"
)

// Stats is safe for concurrent use by the reader and sender goroutines.
type Stats struct {
	Lines         atomic.Uint64
	Fixes         atomic.Uint64
	FramingErrors atomic.Uint64
	ParseErrors   atomic.Uint64
	Overwrites    atomic.Uint64
	Sent          atomic.Uint64
	SendFailures  atomic.Uint64
	Skipped       atomic.Uint64

	mu       sync.RWMutex
	lastSent record.Decoded
	haveSent bool
	lastAt   time.Time
}

// Snapshot is a point-in-time copy, ready for JSON.
type Snapshot struct {
	Lines         uint64          `json:"lines"`
	Fixes         uint64          `json:"fixes"`
	FramingErrors uint64          `json:"framing_errors"`
	ParseErrors   uint64          `json:"parse_errors"`
	Overwrites    uint64          `json:"overwrites"`
	Sent          uint64          `json:"sent"`
	SendFailures  uint64          `json:"send_failures"`
	Skipped       uint64          `json:"skipped"`
	LastSent      *record.Decoded `json:"last_sent,omitempty"`
	LastSentAt    string          `json:"last_sent_at,omitempty"`
}

// RecordSent stores the most recent successfully transmitted record.
func (s *Stats) RecordSent(d record.Decoded, at time.Time) {
	s.Sent.Add(1)
	s.mu.Lock()
	s.lastSent, s.haveSent, s.lastAt = d, true, at
	s.mu.Unlock()
}

func (s *Stats) Snapshot() Snapshot {
	out := Snapshot{
		Lines:         s.Lines.Load(),
		Fixes:         s.Fixes.Load(),
		FramingErrors: s.FramingErrors.Load(),
		ParseErrors:   s.ParseErrors.Load(),
		Overwrites:    s.Overwrites.Load(),
		Sent:          s.Sent.Load(),
		SendFailures:  s.SendFailures.Load(),
		Skipped:       s.Skipped.Load(),
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.haveSent {
		d := s.lastSent
		out.LastSent = &d
		out.LastSentAt = s.lastAt.UTC().Format(time.RFC3339)
	}
	return out
}
