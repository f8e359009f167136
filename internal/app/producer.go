// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_lorawan/internal/gps"
	"github.com/relabs-tech/gps_lorawan/internal/line"
	"github.com/relabs-tech/gps_lorawan/internal/record"
	"github.com/relabs-tech/gps_lorawan/internal/stats"
)

// Sink is the write side of the transmission buffer.
type Sink interface {
	PushRecord(record.Record) (overwrote bool)
}

// Producer is the byte path: serial bytes in, encoded records out.
// Feed and Run must be called from a single goroutine.
type Producer struct {
	lines      *line.Reassembler
	dispatcher *gps.Dispatcher
	encoder    *record.Encoder
	sink       Sink
	stats      *stats.Stats
}

// NewProducer wires a line reassembler of maxLine bytes to sink.
func NewProducer(maxLine int, addr record.DevAddr, sink Sink, st *stats.Stats) (*Producer, error) {
	lr, err := line.New(maxLine)
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	if st == nil {
		st = &stats.Stats{}
	}
	return &Producer{
		lines:      lr,
		dispatcher: gps.NewDispatcher(),
		encoder:    record.NewEncoder(addr),
		sink:       sink,
		stats:      st,
	}, nil
}

// Feed consumes one received byte. Framing and parse errors are counted and
// logged; the byte path never stops on bad input.
func (p *Producer) Feed(b byte) {
	raw, complete, err := p.lines.Feed(b)
	if err != nil {
		p.stats.FramingErrors.Add(1)
		log.WithField("max", p.lines.Cap()).Warn("producer: line too long, discarding until next terminator")
		return
	}
	if !complete {
		return
	}
	p.stats.Lines.Add(1)

	fix, ok, err := p.dispatcher.Dispatch(raw)
	if err != nil {
		p.stats.ParseErrors.Add(1)
		log.WithError(err).Warn("producer: dropping sentence")
		return
	}
	if !ok {
		return
	}
	p.stats.Fixes.Add(1)

	rec := p.encoder.Encode(fix)
	if p.sink.PushRecord(rec) {
		p.stats.Overwrites.Add(1)
		log.Warn("producer: transmission buffer full, oldest record overwritten")
	}
	log.WithFields(log.Fields{
		"time": fix.Time.String(),
		"lat":  fix.Latitude,
		"lon":  fix.Longitude,
	}).Debug("producer: fix buffered")
}

// Run feeds everything read from r until ctx is cancelled or r fails.
// A blocked read only returns once the port is closed, so callers cancel
// ctx and then close r.
func (p *Producer) Run(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			p.Feed(b)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("producer: read: %w", err)
		}
	}
}
