package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gps_lorawan/internal/config"
	"github.com/relabs-tech/gps_lorawan/internal/gps"
	"github.com/relabs-tech/gps_lorawan/internal/radio"
	"github.com/relabs-tech/gps_lorawan/internal/record"
	"github.com/relabs-tech/gps_lorawan/internal/sender"
	"github.com/relabs-tech/gps_lorawan/internal/stats"
	"github.com/relabs-tech/gps_lorawan/internal/txbuf"
)

func init() {
	log.SetOutput(io.Discard)
}

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", payload, ck)
}

const rmcPayload = "GPRMC,132502.00,A,1656.97300,N,04311.50800,W,0.000,0.0,090218,0.0,W"

var testAddr = record.DevAddr{0x26, 0x0B, 0x1F, 0x2A}

func feedString(p *Producer, s string) {
	for i := 0; i < len(s); i++ {
		p.Feed(s[i])
	}
}

func newTestProducer(t *testing.T, records int) (*Producer, *txbuf.Buffer, *stats.Stats) {
	t.Helper()
	buf, err := txbuf.New(records)
	require.NoError(t, err)
	st := &stats.Stats{}
	p, err := NewProducer(82, testAddr, buf, st)
	require.NoError(t, err)
	return p, buf, st
}

func TestProducer_RMCBecomesRecord(t *testing.T) {
	p, buf, st := newTestProducer(t, 4)

	feedString(p, nmeaLine("GPGGA,132502.00,1656.97300,N,04311.50800,W,1,08,0.9,545.4,M,46.9,M,,"))
	feedString(p, nmeaLine(rmcPayload))

	require.Equal(t, 1, buf.Len())
	assert.Equal(t, uint64(2), st.Lines.Load())
	assert.Equal(t, uint64(1), st.Fixes.Load())

	rec, ok := buf.PopRecord()
	require.True(t, ok)
	assert.Equal(t, byte(0), rec[0])
	assert.Equal(t, testAddr[:], rec[1:5])
	assert.Equal(t, []byte{9, 2, 18, 13, 25, 2}, rec[8:14])
	assert.Equal(t, []byte{16, 50, 95, 94}, rec[14:18])
	assert.Equal(t, []byte{43, 0, 18, 19}, rec[18:22])
	assert.Equal(t, []byte{0, 0, 0}, rec[22:25])
	assert.Equal(t, byte('\n'), rec[record.Size-1])
}

func TestProducer_RecoversFromNoise(t *testing.T) {
	p, buf, st := newTestProducer(t, 4)

	// Overlong garbage, a corrupted sentence, then a good one.
	feedString(p, strings.Repeat("x", 200)+"\n")
	feedString(p, "$GPRMC,132502.00,A,1656.97300,N*00\r\n")
	feedString(p, nmeaLine(rmcPayload))

	assert.Equal(t, uint64(1), st.FramingErrors.Load())
	assert.Equal(t, uint64(1), st.ParseErrors.Load())
	assert.Equal(t, 1, buf.Len())
}

func TestProducer_CountsOverwrites(t *testing.T) {
	p, buf, st := newTestProducer(t, 2)
	for i := 0; i < 5; i++ {
		feedString(p, nmeaLine(rmcPayload))
	}
	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, uint64(3), st.Overwrites.Load())
}

func TestProducer_RunStopsAtEOF(t *testing.T) {
	p, buf, _ := newTestProducer(t, 4)
	err := p.Run(context.Background(), strings.NewReader(nmeaLine(rmcPayload)+nmeaLine(rmcPayload)))
	require.NoError(t, err)
	assert.Equal(t, 2, buf.Len())
}

func TestNewProducer_RejectsTinyLine(t *testing.T) {
	_, err := NewProducer(1, testAddr, nil, nil)
	assert.Error(t, err)
}

func TestConfigureGPS(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, configureGPS(&sb))
	assert.Contains(t, sb.String(), "$PMTK314,")
	assert.Contains(t, sb.String(), "$PMTK300,500,0,0,0,0*28\r\n")
	assert.NotContains(t, sb.String(), "\r\n\r\n")
}

func TestOpenGPS_Mock(t *testing.T) {
	cfg := testConfig()
	cfg.GPSSerialPort = gps.MockPort
	port, err := openGPS(cfg)
	require.NoError(t, err)
	require.NoError(t, configureGPS(port))
	require.NoError(t, port.Close())
}

// chanTransmitter hands every payload to a channel.
type chanTransmitter struct {
	out chan []byte
}

func (c *chanTransmitter) Send(_ context.Context, payload []byte) radio.Status {
	c.out <- append([]byte(nil), payload...)
	return radio.StatusOK
}

// fastClock collapses every wait to a millisecond.
type fastClock struct{}

func (fastClock) Now() time.Time                       { return time.Now() }
func (fastClock) After(time.Duration) <-chan time.Time { return time.After(time.Millisecond) }

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.LoRaWANDevAddr = testAddr
	cfg.TxBufferRecords = 8
	return cfg
}

func TestPipeline_SerialToRadio(t *testing.T) {
	tx := &chanTransmitter{out: make(chan []byte, 4)}
	p, err := NewPipeline(testConfig(), tx, sender.WithClock(fastClock{}))
	require.NoError(t, err)

	r, w := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = p.Run(ctx, r)
	}()

	_, err = io.WriteString(w, nmeaLine(rmcPayload))
	require.NoError(t, err)

	select {
	case got := <-tx.out:
		require.Len(t, got, record.Size)
		d, err := record.Decode(got)
		require.NoError(t, err)
		assert.Equal(t, testAddr, d.DevAddr)
		assert.InDelta(t, 16.94955, d.Latitude, 1e-6)
		assert.InDelta(t, 43.1918, d.Longitude, 1e-6)
	case <-time.After(5 * time.Second):
		t.Fatal("no uplink")
	}

	cancel()
	wg.Wait()
	assert.NoError(t, runErr)
	assert.Equal(t, uint64(1), p.Stats.Sent.Load())
}

func TestPipeline_TickSendsEncodedFix(t *testing.T) {
	tx := &chanTransmitter{out: make(chan []byte, 1)}
	p, err := NewPipeline(testConfig(), tx)
	require.NoError(t, err)

	out := p.Sender.Tick(context.Background())
	assert.True(t, out.Skipped)

	feedString(p.Producer, nmeaLine(rmcPayload))
	out = p.Sender.Tick(context.Background())
	require.False(t, out.Skipped)
	assert.Equal(t, radio.StatusOK, out.Status)

	got := <-tx.out
	assert.Equal(t, out.Record[:], got)
}
