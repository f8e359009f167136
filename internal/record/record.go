// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package record encodes GPS fixes into the fixed-width uplink payload.
//
// Layout (27 bytes):
//
//	 0      header (0)
//	 1..4   device address
//	 5..7   reserved (0)
//	 8..13  day, month, year%100, hour, minute, second
//	14..17  latitude:  integer degrees, then 3 base-100 chunks of micro-degrees
//	18..21  longitude: same as latitude
//	22..24  speed: integer part, then 2 base-100 chunks of 1e-4 units
//	25      pad (0)
//	26      terminator ('\n')
//
// Base-100 chunks are stored least significant first. Coordinates are
// absolute values; the hemisphere is not transmitted.
package record

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/gps_lorawan/internal/gps"
)

const (
	// PayloadSize is the number of bytes before the terminator.
	PayloadSize = 26
	// Size is the full record width as written to the transmission buffer.
	Size = PayloadSize + 1

	// Terminator closes every record.
	Terminator byte = '\n'

	// InvalidCoordinate replaces latitude and longitude when the receiver has
	// no position.
	InvalidCoordinate = 90.0
)

// Field offsets.
const (
	offHeader    = 0
	offDevAddr   = 1
	offReserved  = 5
	offTimestamp = 8
	offLatitude  = 14
	offLongitude = 18
	offSpeed     = 22
	offPad       = 25
	offTerm      = 26
)

const (
	microDegrees  = 1_000_000
	maxFracCoord  = microDegrees - 1
	speedScale    = 10_000
	maxFracSpeed  = speedScale - 1
	maxByteValue  = math.MaxUint8
	coordFieldLen = 4
)

// ErrShortRecord is returned by Decode for input shorter than PayloadSize.
var ErrShortRecord = errors.New("record: short record")

// DevAddr is the 4-byte LoRaWAN device address.
type DevAddr [4]byte

// ParseDevAddr decodes an 8-character hex device address such as "260B1F2A".
func ParseDevAddr(s string) (DevAddr, error) {
	var a DevAddr
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("record: device address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("record: device address %q must be %d bytes, got %d", s, len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a DevAddr) String() string { return fmt.Sprintf("%X", a[:]) }

// MarshalText renders the address as upper-case hex in JSON.
func (a DevAddr) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *DevAddr) UnmarshalText(b []byte) error {
	v, err := ParseDevAddr(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Record is one encoded fix, terminator included.
type Record [Size]byte

// Payload returns the bytes handed to the radio.
func (r *Record) Payload() []byte { return r[:] }

// Encoder writes fixes for a single device. Header, address and reserved
// bytes are set once in the template and never touched per fix.
type Encoder struct {
	template Record
}

// NewEncoder returns an Encoder for the given device address.
func NewEncoder(addr DevAddr) *Encoder {
	e := &Encoder{}
	e.template[offHeader] = 0
	copy(e.template[offDevAddr:offReserved], addr[:])
	e.template[offTerm] = Terminator
	return e
}

// Encode converts fix into a record.
func (e *Encoder) Encode(fix gps.Fix) Record {
	r := e.template

	ts := fix.Time
	r[offTimestamp+0] = ts.Day
	r[offTimestamp+1] = ts.Month
	r[offTimestamp+2] = ts.Year % 100
	r[offTimestamp+3] = ts.Hour
	r[offTimestamp+4] = ts.Minute
	r[offTimestamp+5] = ts.Second

	lat, lon := math.Abs(fix.Latitude), math.Abs(fix.Longitude)
	if !finite(lat) || !finite(lon) {
		lat, lon = InvalidCoordinate, InvalidCoordinate
	}
	putCoordinate(r[offLatitude:offLatitude+coordFieldLen], lat)
	putCoordinate(r[offLongitude:offLongitude+coordFieldLen], lon)
	putSpeed(r[offSpeed:offPad], fix.Speed)

	r[offPad] = 0
	return r
}

// Encode is a convenience wrapper for one-off encoding.
func Encode(fix gps.Fix, addr DevAddr) Record {
	return NewEncoder(addr).Encode(fix)
}

// putCoordinate writes a non-negative coordinate into a 4-byte field.
func putCoordinate(dst []byte, v float64) {
	deg, frac := int64(maxByteValue), int64(maxFracCoord)
	if v < maxByteValue+1 {
		micro := int64(math.Round(v * microDegrees))
		deg, frac = micro/microDegrees, micro%microDegrees
		if deg > maxByteValue {
			deg, frac = maxByteValue, maxFracCoord
		}
	}
	dst[0] = byte(deg)
	dst[1] = byte(frac % 100)
	dst[2] = byte(frac / 100 % 100)
	dst[3] = byte(frac / 10_000 % 100)
}

// putSpeed writes speed into a 3-byte field, clamped to [0, 255.9999].
func putSpeed(dst []byte, v float64) {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	var whole, frac int64
	if math.IsInf(v, 1) || v >= maxByteValue+1 {
		whole, frac = maxByteValue, maxFracSpeed
	} else {
		scaled := int64(math.Round(v * speedScale))
		whole, frac = scaled/speedScale, scaled%speedScale
		if whole > maxByteValue {
			whole, frac = maxByteValue, maxFracSpeed
		}
	}
	dst[0] = byte(whole)
	dst[1] = byte(frac % 100)
	dst[2] = byte(frac / 100 % 100)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
