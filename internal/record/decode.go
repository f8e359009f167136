package record

import (
	"fmt"

	"github.com/relabs-tech/gps_lorawan/internal/gps"
)

// Decoded is the receiver-side view of a record.
type Decoded struct {
	DevAddr   DevAddr       `json:"dev_addr"`
	Time      gps.Timestamp `json:"time"`
	Latitude  float64       `json:"lat"` // absolute degrees
	Longitude float64       `json:"lon"` // absolute degrees
	Speed     float64       `json:"speed"`
}

// Decode parses a payload produced by Encode. The terminator is optional so
// that radio payloads trimmed by a network server still decode.
func Decode(b []byte) (Decoded, error) {
	if len(b) < PayloadSize {
		return Decoded{}, fmt.Errorf("%w: %d bytes", ErrShortRecord, len(b))
	}
	var d Decoded
	copy(d.DevAddr[:], b[offDevAddr:offReserved])
	d.Time = gps.Timestamp{
		Day:    b[offTimestamp+0],
		Month:  b[offTimestamp+1],
		Year:   b[offTimestamp+2],
		Hour:   b[offTimestamp+3],
		Minute: b[offTimestamp+4],
		Second: b[offTimestamp+5],
	}
	d.Latitude = coordinate(b[offLatitude : offLatitude+coordFieldLen])
	d.Longitude = coordinate(b[offLongitude : offLongitude+coordFieldLen])
	d.Speed = float64(b[offSpeed]) + float64(chunks(b[offSpeed+1:offPad]))/speedScale
	return d, nil
}

func coordinate(f []byte) float64 {
	return float64(f[0]) + float64(chunks(f[1:]))/microDegrees
}

// chunks rebuilds a value from base-100 bytes, least significant first.
func chunks(b []byte) int64 {
	var v, mul int64 = 0, 1
	for _, c := range b {
		v += int64(c) * mul
		mul *= 100
	}
	return v
}

func (d Decoded) String() string {
	return fmt.Sprintf("dev=%s time=%s lat=%.6f lon=%.6f speed=%.4f",
		d.DevAddr, d.Time, d.Latitude, d.Longitude, d.Speed)
}
