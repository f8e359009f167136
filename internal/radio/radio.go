// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package radio sends uplink payloads over a LoRaWAN link.
package radio

import (
	"context"
	"errors"
)

// Status is the outcome of a single send attempt.
type Status int

const (
	StatusOK Status = iota
	StatusNotJoined
	StatusBusy // duty-cycle restriction or channel busy
	StatusTimeout
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotJoined:
		return "not joined"
	case StatusBusy:
		return "busy"
	case StatusTimeout:
		return "timeout"
	case StatusError:
		return "error"
	}
	return "unknown"
}

var (
	ErrNotJoined = errors.New("radio: not joined")
	ErrTimeout   = errors.New("radio: no reply from modem")
)

// Transmitter performs one synchronous send attempt. It never retries.
type Transmitter interface {
	Send(ctx context.Context, payload []byte) Status
}

// ABP holds activation-by-personalization parameters, hex encoded.
type ABP struct {
	DevEUI      string
	AppEUI      string
	DevAddr     string
	NwkSKey     string
	AppSKey     string
	ChannelMask uint16 // 0x00FF selects the first 8 channels
	DataRate    int
}
