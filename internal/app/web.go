// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/gps_lorawan/internal/record"
	"github.com/relabs-tech/gps_lorawan/internal/sender"
	"github.com/relabs-tech/gps_lorawan/internal/stats"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // monitor is served on the local network only
	},
}

const wsWriteTimeout = 2 * time.Second

// CycleEvent is pushed to websocket clients after every sender cycle.
type CycleEvent struct {
	At      time.Time       `json:"at"`
	Skipped bool            `json:"skipped"`
	Status  string          `json:"status,omitempty"`
	Record  *record.Decoded `json:"record,omitempty"`
}

func eventFromOutcome(o sender.Outcome) CycleEvent {
	ev := CycleEvent{At: o.At.UTC(), Skipped: o.Skipped}
	if o.Skipped {
		return ev
	}
	ev.Status = o.Status.String()
	if d, err := record.Decode(o.Record.Payload()); err == nil {
		ev.Record = &d
	}
	return ev
}

// Monitor serves the status API and streams cycle events.
type Monitor struct {
	stats   *stats.Stats
	pending func() int

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewMonitor reports st; pending, if set, returns the buffered record count.
func NewMonitor(st *stats.Stats, pending func() int) *Monitor {
	return &Monitor{
		stats:   st,
		pending: pending,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

type statusResponse struct {
	stats.Snapshot
	Buffered int `json:"buffered"`
}

// Handler returns the monitor routes.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", m.handleStatus)
	mux.HandleFunc("/ws", m.handleWS)
	return mux
}

func (m *Monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Snapshot: m.stats.Snapshot()}
	if m.pending != nil {
		resp.Buffered = m.pending()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Warn("web: json encode error")
	}
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("web: websocket upgrade error")
		return
	}
	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()
	log.WithField("remote", r.RemoteAddr).Info("web: monitor client connected")

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("web: websocket error")
			}
			break
		}
	}
	m.drop(conn)
}

func (m *Monitor) drop(conn *websocket.Conn) {
	m.mu.Lock()
	delete(m.clients, conn)
	m.mu.Unlock()
	conn.Close()
}

// closeAll disconnects websocket clients, which Shutdown does not track.
func (m *Monitor) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		c.Close()
		delete(m.clients, c)
	}
}

// Clients returns the number of connected websocket clients.
func (m *Monitor) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Publish sends o to every connected client. Clients that fail to keep up
// are disconnected.
func (m *Monitor) Publish(o sender.Outcome) {
	ev := eventFromOutcome(o)

	m.mu.Lock()
	var failed []*websocket.Conn
	for c := range m.clients {
		c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteJSON(ev); err != nil {
			failed = append(failed, c)
		}
	}
	m.mu.Unlock()

	for _, c := range failed {
		log.Info("web: dropping slow monitor client")
		m.drop(c)
	}
}

// Serve listens on port until ctx is cancelled.
func (m *Monitor) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
		m.closeAll()
	}()

	log.Infof("web: monitor listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}
