// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// MockPort as the GPS serial port selects the simulated receiver.
const MockPort = "mock"

// Center of the simulated track.
const (
	mockCenterLat = 16.94955
	mockCenterLon = -43.19180
	mockRadiusDeg = 0.001
	mockLapS      = 600.0
	mockSpeedKn   = 5.0
)

// MockReceiver stands in for a serial GPS. It emits one RMC sentence per
// interval for a point circling a fixed center, and swallows commands.
type MockReceiver struct {
	pr   *io.PipeReader
	pw   *io.PipeWriter
	done chan struct{}
	once sync.Once
}

// NewMockReceiver starts emitting sentences every interval.
func NewMockReceiver(interval time.Duration) *MockReceiver {
	pr, pw := io.Pipe()
	m := &MockReceiver{pr: pr, pw: pw, done: make(chan struct{})}
	go m.run(time.Now(), interval)
	return m
}

func (m *MockReceiver) run(start time.Time, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			if _, err := io.WriteString(m.pw, MockRMC(now.UTC(), now.Sub(start).Seconds())); err != nil {
				return
			}
		}
	}
}

func (m *MockReceiver) Read(p []byte) (int, error) { return m.pr.Read(p) }

// Write accepts configuration commands and ignores them.
func (m *MockReceiver) Write(p []byte) (int, error) { return len(p), nil }

// Close stops the generator; pending reads return io.EOF.
func (m *MockReceiver) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.pw.Close()
	})
	return nil
}

// MockRMC renders the simulated position elapsed seconds into the track as a
// complete, checksummed RMC sentence stamped with t.
func MockRMC(t time.Time, elapsed float64) string {
	a := 2 * math.Pi * elapsed / mockLapS
	lat := mockCenterLat + mockRadiusDeg*math.Sin(a)
	lon := mockCenterLon + mockRadiusDeg*math.Cos(a)

	payload := fmt.Sprintf("GPRMC,%s.00,A,%s,%s,%.3f,0.0,%s,0.0,W",
		t.Format("150405"),
		nmeaDegrees(lat, 2, "N", "S"),
		nmeaDegrees(lon, 3, "E", "W"),
		mockSpeedKn,
		t.Format("020106"))

	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", payload, ck)
}

// nmeaDegrees formats v as (d)ddmm.mmmmm followed by its hemisphere.
func nmeaDegrees(v float64, width int, pos, neg string) string {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	minutes := (v - deg) * 60
	return fmt.Sprintf("%0*d%08.5f,%s", width, int(deg), minutes, hemi)
}
