package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gps_lorawan/internal/gps"
	"github.com/relabs-tech/gps_lorawan/internal/radio"
	"github.com/relabs-tech/gps_lorawan/internal/record"
	"github.com/relabs-tech/gps_lorawan/internal/sender"
	"github.com/relabs-tech/gps_lorawan/internal/stats"
)

func testRecord() record.Record {
	return record.Encode(gps.Fix{
		Latitude:  16.94955,
		Longitude: -43.19180,
		Time:      gps.Timestamp{Day: 9, Month: 2, Year: 18, Hour: 13, Minute: 25, Second: 2},
	}, testAddr)
}

func TestMonitor_Status(t *testing.T) {
	st := &stats.Stats{}
	st.Lines.Add(7)
	m := NewMonitor(st, func() int { return 3 })

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(7), body["lines"])
	assert.Equal(t, float64(3), body["buffered"])
}

func TestMonitor_StreamsOutcomes(t *testing.T) {
	m := NewMonitor(&stats.Stats{}, nil)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return m.Clients() == 1 }, time.Second, 5*time.Millisecond)

	at := time.Date(2018, 2, 9, 13, 25, 2, 0, time.UTC)
	m.Publish(sender.Outcome{At: at, Skipped: true})
	m.Publish(sender.Outcome{At: at, Status: radio.StatusOK, Record: testRecord()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var skipped CycleEvent
	require.NoError(t, conn.ReadJSON(&skipped))
	assert.True(t, skipped.Skipped)
	assert.Nil(t, skipped.Record)

	var sent CycleEvent
	require.NoError(t, conn.ReadJSON(&sent))
	assert.Equal(t, "ok", sent.Status)
	require.NotNil(t, sent.Record)
	assert.InDelta(t, 16.94955, sent.Record.Latitude, 1e-6)
	assert.Equal(t, uint8(25), sent.Record.Time.Minute)

	conn.Close()
	assert.Eventually(t, func() bool { return m.Clients() == 0 }, time.Second, 5*time.Millisecond)
}
