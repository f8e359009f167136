// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import "fmt"

// Timestamp is the UTC date and time of a fix as reported by RMC.
type Timestamp struct {
	Day    uint8 `json:"day"`    // 1-31
	Month  uint8 `json:"month"`  // 1-12
	Year   uint8 `json:"year"`   // year modulo 100
	Hour   uint8 `json:"hour"`   // 0-23
	Minute uint8 `json:"minute"` // 0-59
	Second uint8 `json:"second"` // 0-59
}

func (t Timestamp) String() string {
	return fmt.Sprintf("20%02d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// Fix represents a single position/velocity/time sample taken from one RMC sentence.
// Latitude and Longitude are NaN when the receiver reports no valid position.
type Fix struct {
	Latitude  float64   `json:"lat"`         // signed decimal degrees
	Longitude float64   `json:"lon"`         // signed decimal degrees
	Speed     float64   `json:"speed_knots"` // speed over ground
	Time      Timestamp `json:"time"`
}
