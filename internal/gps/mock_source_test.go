package gps

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRMC_Decodes(t *testing.T) {
	at := time.Date(2018, 2, 9, 13, 25, 2, 0, time.UTC)
	for _, elapsed := range []float64{0, 150, 300, 450} {
		fix, ok, err := NewDispatcher().Dispatch([]byte(MockRMC(at, elapsed)))
		require.NoError(t, err, "elapsed %v", elapsed)
		require.True(t, ok)
		assert.InDelta(t, mockCenterLat, fix.Latitude, 2*mockRadiusDeg)
		assert.InDelta(t, mockCenterLon, fix.Longitude, 2*mockRadiusDeg)
		assert.InDelta(t, mockSpeedKn, fix.Speed, 1e-9)
		assert.Equal(t, "2018-02-09 13:25:02", fix.Time.String())
	}
}

func TestMockReceiver_StreamsUntilClosed(t *testing.T) {
	m := NewMockReceiver(5 * time.Millisecond)
	n, err := m.Write([]byte(PMTKSetUpdate2Hz))
	require.NoError(t, err)
	assert.Equal(t, len(PMTKSetUpdate2Hz), n)

	sc := bufio.NewScanner(m)
	require.True(t, sc.Scan())
	assert.Equal(t, SentenceRMC, Classify(sc.Bytes()))

	require.NoError(t, m.Close())
	for sc.Scan() {
	}
	assert.NoError(t, sc.Err())
}
