// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gps_lorawan/internal/config"
	"github.com/relabs-tech/gps_lorawan/internal/gps"
	"github.com/relabs-tech/gps_lorawan/internal/indicator"
	"github.com/relabs-tech/gps_lorawan/internal/radio"
	"github.com/relabs-tech/gps_lorawan/internal/sender"
	"github.com/relabs-tech/gps_lorawan/internal/stats"
	"github.com/relabs-tech/gps_lorawan/internal/txbuf"
)

// Pipeline holds the two tasks of the tracker and the buffer between them.
type Pipeline struct {
	Stats    *stats.Stats
	Buffer   *txbuf.Buffer
	Producer *Producer
	Sender   *sender.Sender
}

// NewPipeline builds the byte path and the periodic sender for tx.
func NewPipeline(cfg *config.Config, tx radio.Transmitter, opts ...sender.Option) (*Pipeline, error) {
	st := &stats.Stats{}
	buf, err := txbuf.New(cfg.TxBufferRecords)
	if err != nil {
		return nil, err
	}
	prod, err := NewProducer(cfg.LineMaxLength, cfg.LoRaWANDevAddr, buf, st)
	if err != nil {
		return nil, err
	}
	snd, err := sender.New(buf, tx, cfg.Period(), append([]sender.Option{sender.WithStats(st)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Stats: st, Buffer: buf, Producer: prod, Sender: snd}, nil
}

// Run drives both tasks until ctx is cancelled or the GPS stream fails.
// The reader is closed on the way out so a blocked read returns.
func (p *Pipeline) Run(ctx context.Context, gpsPort io.ReadCloser) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Producer.Run(gctx, gpsPort) })
	g.Go(func() error { return p.Sender.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		if err := gpsPort.Close(); err != nil {
			log.WithError(err).Warn("tracker: closing GPS port")
		}
		return nil
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openSerial opens port at baud, 8N1.
func openSerial(port string, baud int) (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	rw, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	return rw, nil
}

// openGPS opens the configured receiver, or the simulated one when the
// port is "mock".
func openGPS(cfg *config.Config) (io.ReadWriteCloser, error) {
	if cfg.GPSSerialPort == gps.MockPort {
		log.Warn("tracker: using simulated GPS receiver")
		return gps.NewMockReceiver(500 * time.Millisecond), nil
	}
	return openSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
}

// configureGPS selects RMC output at 2 Hz.
func configureGPS(w io.Writer) error {
	for _, cmd := range gps.StartupCommands() {
		if _, err := io.WriteString(w, cmd); err != nil {
			return fmt.Errorf("gps configure: %w", err)
		}
	}
	return nil
}

// newTransmitter builds and activates the configured radio backend. The
// returned func releases it.
func newTransmitter(ctx context.Context, cfg *config.Config) (radio.Transmitter, func(), error) {
	switch cfg.RadioBackend {
	case config.BackendMQTT:
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDTracker).
			SetAutoReconnect(true)
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, nil, fmt.Errorf("mqtt connect: %w", token.Error())
		}
		up := radio.NewMQTTUplink(client, cfg.TopicUplink, cfg.LoRaWANDevAddr.String(), cfg.RadioTimeout())
		log.Infof("tracker: publishing uplinks to %s on %s", up.Topic(), cfg.MQTTBroker)
		return up, func() { client.Disconnect(250) }, nil

	default:
		port, err := openSerial(cfg.RadioSerialPort, cfg.RadioBaudRate)
		if err != nil {
			return nil, nil, fmt.Errorf("radio: %w", err)
		}
		modem := radio.NewATModem(port, cfg.LoRaWANFPort, cfg.RadioTimeout())
		if err := modem.Join(ctx, cfg.ABP()); err != nil {
			port.Close()
			return nil, nil, err
		}
		log.WithField("devaddr", cfg.LoRaWANDevAddr).Info("tracker: radio joined (ABP)")
		return modem, func() { port.Close() }, nil
	}
}

// RunTracker runs the tracker until SIGINT or SIGTERM.
func RunTracker() error {
	cfg := config.Get()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- 1) GPS receiver ----
	gpsPort, err := openGPS(cfg)
	if err != nil {
		return fmt.Errorf("gps: %w", err)
	}
	log.Infof("tracker: GPS serial port opened on %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)
	if err := configureGPS(gpsPort); err != nil {
		gpsPort.Close()
		return err
	}

	// ---- 2) Radio ----
	tx, release, err := newTransmitter(ctx, cfg)
	if err != nil {
		gpsPort.Close()
		return err
	}
	defer release()

	// ---- 3) Pipeline ----
	p, err := NewPipeline(cfg, tx)
	if err != nil {
		gpsPort.Close()
		return err
	}

	var led indicator.Indicator = indicator.Nop{}
	if cfg.LEDPin != "" {
		l, err := indicator.Open(cfg.LEDPin)
		if err != nil {
			log.WithError(err).Warn("tracker: LED disabled")
		} else {
			led = l
		}
	}

	var monitor *Monitor
	if cfg.WebServerPort > 0 {
		monitor = NewMonitor(p.Stats, p.Buffer.Len)
		go func() {
			if err := monitor.Serve(ctx, cfg.WebServerPort); err != nil {
				log.WithError(err).Error("tracker: web monitor stopped")
			}
		}()
	}

	if cfg.DisplayEnable {
		interval := time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond
		go func() {
			if err := RunDisplay(ctx, cfg.DisplayI2CBus, interval, p.Stats, p.Buffer.Len); err != nil {
				log.WithError(err).Error("tracker: display stopped")
			}
		}()
	}

	p.Sender.Notify = func(o sender.Outcome) {
		if !o.Skipped && o.Status == radio.StatusOK {
			led.Pulse()
		}
		if monitor != nil {
			monitor.Publish(o)
		}
	}

	err = p.Run(ctx, gpsPort)
	snap := p.Stats.Snapshot()
	log.WithFields(log.Fields{
		"lines":  snap.Lines,
		"fixes":  snap.Fixes,
		"sent":   snap.Sent,
		"failed": snap.SendFailures,
	}).Info("tracker: shutting down")
	return err
}
