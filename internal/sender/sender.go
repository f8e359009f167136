// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sender drains the transmission buffer onto the radio at a fixed period.
package sender

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_lorawan/internal/radio"
	"github.com/relabs-tech/gps_lorawan/internal/record"
	"github.com/relabs-tech/gps_lorawan/internal/stats"
)

// DefaultPeriod keeps a 27-byte uplink within the 1% duty cycle of EU868 at DR5.
const DefaultPeriod = 20 * time.Second

// Source is the read side of the transmission buffer.
type Source interface {
	PopRecord() (record.Record, bool)
}

// Clock abstracts time for the schedule.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Outcome describes one cycle.
type Outcome struct {
	At      time.Time
	Skipped bool // buffer held no complete record
	Status  radio.Status
	Record  record.Record
}

// Sender is the timer-driven side of the pipeline.
type Sender struct {
	src    Source
	radio  radio.Transmitter
	period time.Duration
	clock  Clock
	stats  *stats.Stats

	// Notify, when set, is called after every cycle from the sender goroutine.
	Notify func(Outcome)
}

// Option configures a Sender.
type Option func(*Sender)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Sender) { s.clock = c } }

// WithStats records cycle outcomes in st.
func WithStats(st *stats.Stats) Option { return func(s *Sender) { s.stats = st } }

// New returns a Sender draining src into tx every period.
func New(src Source, tx radio.Transmitter, period time.Duration, opts ...Option) (*Sender, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sender: period must be positive, got %v", period)
	}
	s := &Sender{
		src:    src,
		radio:  tx,
		period: period,
		clock:  realClock{},
		stats:  &stats.Stats{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run fires the first cycle immediately and then every period until ctx is
// cancelled. Deadlines are fixed multiples of the period from the start, so
// a slow send never shifts later cycles; deadlines already missed are skipped.
func (s *Sender) Run(ctx context.Context) error {
	next := s.clock.Now()
	log.WithField("period", s.period).Info("sender: started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(next.Sub(s.clock.Now())):
		}

		s.Tick(ctx)

		next = next.Add(s.period)
		if now := s.clock.Now(); !next.After(now) {
			missed := now.Sub(next)/s.period + 1
			next = next.Add(missed * s.period)
			log.WithField("missed", int64(missed)).Warn("sender: cycle overran its period")
		}
	}
}

// Tick runs one cycle: pop at most one record and hand it to the radio.
// Failed records are dropped, not requeued.
func (s *Sender) Tick(ctx context.Context) Outcome {
	out := Outcome{At: s.clock.Now()}

	rec, ok := s.src.PopRecord()
	if !ok {
		out.Skipped = true
		s.stats.Skipped.Add(1)
		log.Debug("sender: nothing to send")
		s.notify(out)
		return out
	}
	out.Record = rec

	out.Status = s.radio.Send(ctx, rec.Payload())
	if out.Status != radio.StatusOK {
		s.stats.SendFailures.Add(1)
		log.WithField("status", out.Status).Error("sender: transmission failed, record dropped")
		s.notify(out)
		return out
	}

	if d, err := record.Decode(rec.Payload()); err == nil {
		s.stats.RecordSent(d, out.At)
		log.WithField("record", d.String()).Info("sender: record sent")
	}
	s.notify(out)
	return out
}

func (s *Sender) notify(o Outcome) {
	if s.Notify != nil {
		s.Notify(o)
	}
}
