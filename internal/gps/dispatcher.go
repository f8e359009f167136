// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"
)

// ErrParse wraps decoder failures for sentences that should have produced a fix.
var ErrParse = errors.New("gps: sentence parse failed")

// SentenceType is the three-letter NMEA sentence identifier (talker stripped).
type SentenceType string

const (
	SentenceUnknown SentenceType = ""
	SentenceRMC     SentenceType = nmea.TypeRMC
	SentenceGGA     SentenceType = nmea.TypeGGA
	SentenceGSV     SentenceType = nmea.TypeGSV
)

// Classify returns the sentence type from the line prefix, e.g. "$GNRMC,..." -> RMC.
// Lines that are not NMEA or carry an unsupported type yield SentenceUnknown.
func Classify(line []byte) SentenceType {
	if len(line) == 0 || line[0] != '$' {
		return SentenceUnknown
	}
	end := bytes.IndexAny(line, ",*")
	if end < 0 {
		return SentenceUnknown
	}
	id := line[1:end]
	if len(id) < 3 {
		return SentenceUnknown
	}
	switch t := SentenceType(strings.ToUpper(string(id[len(id)-3:]))); t {
	case SentenceRMC, SentenceGGA, SentenceGSV:
		return t
	}
	return SentenceUnknown
}

// Dispatcher turns complete serial lines into fixes.
type Dispatcher struct {
	// Terminator delimits the significant part of a line.
	Terminator byte
}

// NewDispatcher returns a Dispatcher for newline-terminated sentences.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{Terminator: '\n'}
}

// Dispatch classifies line and, for RMC sentences, decodes a Fix.
//
// ok is false for every line that does not yield a fix. err is non-nil only
// when an RMC sentence fails to decode; it wraps ErrParse. GGA and GSV are
// decoded for logging only.
func (d *Dispatcher) Dispatch(line []byte) (fix Fix, ok bool, err error) {
	if i := bytes.IndexByte(line, d.Terminator); i >= 0 {
		line = line[:i+1]
	}
	raw := strings.TrimSpace(string(line))

	switch Classify([]byte(raw)) {
	case SentenceRMC:
		s, err := nmea.Parse(raw)
		if err != nil {
			return Fix{}, false, fmt.Errorf("%w: %v", ErrParse, err)
		}
		rmc, isRMC := s.(nmea.RMC)
		if !isRMC {
			return Fix{}, false, fmt.Errorf("%w: unexpected %T for RMC", ErrParse, s)
		}
		return fixFromRMC(rmc), true, nil

	case SentenceGGA:
		s, err := nmea.Parse(raw)
		if err != nil {
			log.WithError(err).Debug("gps: GGA parse error")
			return Fix{}, false, nil
		}
		if gga, isGGA := s.(nmea.GGA); isGGA {
			log.WithFields(log.Fields{
				"fix_quality": gga.FixQuality,
				"satellites":  gga.NumSatellites,
			}).Debug("gps: GGA")
		}

	case SentenceGSV:
		s, err := nmea.Parse(raw)
		if err != nil {
			log.WithError(err).Debug("gps: GSV parse error")
			return Fix{}, false, nil
		}
		if gsv, isGSV := s.(nmea.GSV); isGSV {
			log.Debugf("gps: GSV message %d of %d, satellites in view: %d",
				gsv.MessageNumber, gsv.TotalMessages, gsv.NumberSVsInView)
			for _, sat := range gsv.Info {
				log.Debugf("gps: GSV sat nr %d, elevation: %d, azimuth: %d, snr: %d dB",
					sat.SVPRNNumber, sat.Elevation, sat.Azimuth, sat.SNR)
			}
		}
	}
	return Fix{}, false, nil
}

func fixFromRMC(m nmea.RMC) Fix {
	f := Fix{
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Speed:     m.Speed,
		Time: Timestamp{
			Day:    uint8(m.Date.DD),
			Month:  uint8(m.Date.MM),
			Year:   uint8(m.Date.YY % 100),
			Hour:   uint8(m.Time.Hour),
			Minute: uint8(m.Time.Minute),
			Second: uint8(m.Time.Second),
		},
	}
	// A void fix carries no usable position.
	if m.Validity != nmea.ValidRMC {
		f.Latitude = math.NaN()
		f.Longitude = math.NaN()
	}
	return f
}
