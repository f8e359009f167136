// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package indicator blinks a status LED when a record leaves the radio.
package indicator

import (
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultOnTime is how long a pulse keeps the LED lit.
const DefaultOnTime = 150 * time.Millisecond

// Indicator is pulsed once per successful transmission.
type Indicator interface {
	Pulse()
}

// Nop is used when no LED is configured.
type Nop struct{}

func (Nop) Pulse() {}

// LED drives an active-high GPIO pin.
type LED struct {
	pin    gpio.PinOut
	onTime time.Duration
	busy   atomic.Bool
}

// NewLED wraps an already resolved pin and switches it off.
func NewLED(pin gpio.PinOut, onTime time.Duration) (*LED, error) {
	if onTime <= 0 {
		onTime = DefaultOnTime
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("indicator: %s: %w", pin, err)
	}
	return &LED{pin: pin, onTime: onTime}, nil
}

// Open initialises the host drivers and looks up pin by name, e.g. "GPIO17".
func Open(name string) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("indicator: periph init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("indicator: no such pin %q", name)
	}
	return NewLED(p, DefaultOnTime)
}

// Pulse lights the LED for the on time without blocking. A pulse requested
// while one is in progress is ignored.
func (l *LED) Pulse() {
	if !l.busy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer l.busy.Store(false)
		l.blink()
	}()
}

func (l *LED) blink() {
	if err := l.pin.Out(gpio.High); err != nil {
		log.WithError(err).Warn("indicator: led on")
		return
	}
	time.Sleep(l.onTime)
	if err := l.pin.Out(gpio.Low); err != nil {
		log.WithError(err).Warn("indicator: led off")
	}
}
