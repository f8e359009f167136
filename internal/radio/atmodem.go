// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package radio

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Modem replies.
const (
	replyOK          = "OK"
	replyBusy        = "AT_BUSY_ERROR"
	replyNotJoined   = "AT_NO_NETWORK_JOINED"
	replyErrorPrefix = "AT_"
	eventPrefix      = "+EVT:"
)

// ATModem drives a LoRaWAN module that speaks a line-oriented AT dialect over
// a UART (RAK3172 / RUI3 style).
type ATModem struct {
	rw      io.ReadWriter
	fport   int
	timeout time.Duration

	mu     sync.Mutex // one command in flight
	lines  chan string
	joined atomic.Bool
}

// NewATModem wraps rw and starts the reply reader. Replies slower than
// timeout are reported as StatusTimeout.
func NewATModem(rw io.ReadWriter, fport int, timeout time.Duration) *ATModem {
	m := &ATModem{
		rw:      rw,
		fport:   fport,
		timeout: timeout,
		lines:   make(chan string, 8),
	}
	go m.readLoop()
	return m
}

func (m *ATModem) readLoop() {
	sc := bufio.NewScanner(m.rw)
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, eventPrefix) {
			log.WithField("event", l).Debug("radio: modem event")
			continue
		}
		select {
		case m.lines <- l:
		default:
			log.WithField("line", l).Warn("radio: dropping unread modem line")
		}
	}
	if err := sc.Err(); err != nil {
		log.WithError(err).Error("radio: modem read loop stopped")
	}
	close(m.lines)
}

// command writes cmd and waits for the first reply line that is not an echo.
func (m *ATModem) command(ctx context.Context, cmd string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A reply that arrived after a previous timeout must not answer this command.
drain:
	for {
		select {
		case l, ok := <-m.lines:
			if !ok {
				return "", io.ErrUnexpectedEOF
			}
			log.WithField("line", l).Debug("radio: discarding stale modem line")
		default:
			break drain
		}
	}

	if _, err := io.WriteString(m.rw, cmd+"\r\n"); err != nil {
		return "", fmt.Errorf("radio: write %q: %w", commandName(cmd), err)
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	for {
		select {
		case l, ok := <-m.lines:
			if !ok {
				return "", io.ErrUnexpectedEOF
			}
			if l == cmd {
				continue
			}
			return l, nil
		case <-timer.C:
			return "", fmt.Errorf("%w: %s", ErrTimeout, commandName(cmd))
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// commandName strips arguments so keys never end up in logs.
func commandName(cmd string) string {
	if i := strings.IndexByte(cmd, '='); i >= 0 {
		return cmd[:i]
	}
	return cmd
}

// Join configures ABP activation. Every command must be acknowledged with OK.
func (m *ATModem) Join(ctx context.Context, abp ABP) error {
	cmds := []string{
		"AT+NJM=0",
		"AT+DEVEUI=" + abp.DevEUI,
		"AT+APPEUI=" + abp.AppEUI,
		"AT+DEVADDR=" + abp.DevAddr,
		"AT+NWKSKEY=" + abp.NwkSKey,
		"AT+APPSKEY=" + abp.AppSKey,
		fmt.Sprintf("AT+MASK=%04X", abp.ChannelMask),
		fmt.Sprintf("AT+DR=%d", abp.DataRate),
	}
	for _, c := range cmds {
		reply, err := m.command(ctx, c)
		if err != nil {
			return fmt.Errorf("radio: join: %w", err)
		}
		if reply != replyOK {
			return fmt.Errorf("radio: join: %s rejected: %s", commandName(c), reply)
		}
	}
	m.joined.Store(true)
	log.WithField("dev_addr", abp.DevAddr).Info("radio: ABP join complete")
	return nil
}

// Joined reports whether Join succeeded.
func (m *ATModem) Joined() bool { return m.joined.Load() }

// Send transmits payload as an unconfirmed uplink on the configured port.
func (m *ATModem) Send(ctx context.Context, payload []byte) Status {
	if !m.joined.Load() {
		return StatusNotJoined
	}
	cmd := fmt.Sprintf("AT+SEND=%d:%s", m.fport, strings.ToUpper(hex.EncodeToString(payload)))
	reply, err := m.command(ctx, cmd)
	if err != nil {
		log.WithError(err).Warn("radio: send failed")
		if errors.Is(err, ErrTimeout) {
			return StatusTimeout
		}
		return StatusError
	}
	return statusFromReply(reply)
}

func statusFromReply(reply string) Status {
	switch {
	case reply == replyOK:
		return StatusOK
	case reply == replyNotJoined:
		return StatusNotJoined
	case reply == replyBusy:
		return StatusBusy
	case strings.HasPrefix(reply, replyErrorPrefix), strings.HasPrefix(reply, "ERROR"):
		return StatusError
	}
	log.WithField("reply", reply).Warn("radio: unexpected modem reply")
	return StatusError
}
