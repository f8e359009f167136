package app

import (
	"context"
	"fmt"
	"image"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/gps_lorawan/internal/stats"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// RunDisplay shows the last sent record and the counters on an SSD1306
// until ctx is cancelled. pending returns the buffered record count.
func RunDisplay(ctx context.Context, busName string, interval time.Duration, st *stats.Stats, pending func() int) error {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open(busName)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Info("display: initialized")

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.WithError(err).Warn("display: error showing splash")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		buffered := 0
		if pending != nil {
			buffered = pending()
		}
		if err := dev.Draw(dev.Bounds(), renderStatus(st.Snapshot(), buffered), image.Point{}); err != nil {
			log.WithError(err).Warn("display: error updating")
		}
	}
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, row int, s string) {
	d.Dot = fixed.P(0, 13*(row+1))
	d.DrawString(s)
}

func renderSplash() *image1bit.VerticalLSB {
	img, d := newFrame()
	d.Dot = fixed.P(10, 26)
	d.DrawString("GPS LoRaWAN")
	d.Dot = fixed.P(5, 43)
	d.DrawString("Waiting for fix")
	return img
}

// renderStatus draws four text rows: position, time, counters, buffer.
func renderStatus(snap stats.Snapshot, buffered int) *image1bit.VerticalLSB {
	img, d := newFrame()

	if snap.LastSent == nil {
		drawLine(d, 0, "Nothing sent yet")
		drawLine(d, 1, fmt.Sprintf("fixes %d", snap.Fixes))
	} else {
		r := snap.LastSent
		drawLine(d, 0, fmt.Sprintf("%.5f %.5f", r.Latitude, r.Longitude))
		drawLine(d, 1, r.Time.String())
	}
	drawLine(d, 2, fmt.Sprintf("tx %d fail %d", snap.Sent, snap.SendFailures))
	drawLine(d, 3, fmt.Sprintf("buf %d ovr %d", buffered, snap.Overwrites))
	return img
}
