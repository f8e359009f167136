package txbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gps_lorawan/internal/record"
)

// numbered returns a record whose every byte is n, which makes ordering and
// misaligned reads obvious.
func numbered(n byte) record.Record {
	var r record.Record
	for i := range r {
		r[i] = n
	}
	return r
}

func TestPushPop_FIFO(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)

	for i := byte(1); i <= 3; i++ {
		assert.False(t, b.PushRecord(numbered(i)))
	}
	assert.Equal(t, 3, b.Len())

	for i := byte(1); i <= 3; i++ {
		r, ok := b.PopRecord()
		require.True(t, ok)
		assert.Equal(t, numbered(i), r)
	}
	assert.Equal(t, 0, b.Len())
}

func TestPush_OverwritesOldest(t *testing.T) {
	const k, n = 3, 8
	b, err := New(k)
	require.NoError(t, err)

	overwrites := 0
	for i := byte(1); i <= n; i++ {
		if b.PushRecord(numbered(i)) {
			overwrites++
		}
	}
	assert.Equal(t, n-k, overwrites)
	assert.Equal(t, k, b.Len())

	for i := byte(n - k + 1); i <= n; i++ {
		r, ok := b.PopRecord()
		require.True(t, ok)
		assert.Equal(t, numbered(i), r)
	}
	_, ok := b.PopRecord()
	assert.False(t, ok)
}

func TestPop_Empty(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)

	_, ok := b.PopRecord()
	assert.False(t, ok)
	assert.Equal(t, 0, b.count)
	assert.Equal(t, 0, b.write)
}

func TestPop_PartialRecordLeavesStateUnchanged(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)

	// Only reachable through a short write; simulate it directly.
	b.data[0], b.data[1] = 7, 7
	b.write, b.count = 2, 2

	_, ok := b.PopRecord()
	assert.False(t, ok)
	assert.Equal(t, 2, b.write)
	assert.Equal(t, 2, b.count)
}

func TestPushPop_Interleaved(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)

	b.PushRecord(numbered(1))
	b.PushRecord(numbered(2))
	r, _ := b.PopRecord()
	assert.Equal(t, numbered(1), r)

	b.PushRecord(numbered(3)) // wraps around the end of the ring
	r, _ = b.PopRecord()
	assert.Equal(t, numbered(2), r)
	r, _ = b.PopRecord()
	assert.Equal(t, numbered(3), r)
}

func TestPushPop_Concurrent(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			b.PushRecord(numbered(byte(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if r, ok := b.PopRecord(); ok {
				// Every popped record must be whole, never a mix of two.
				for _, c := range r {
					if c != r[0] {
						t.Errorf("torn record: %v", r)
						return
					}
				}
			}
		}
	}()
	wg.Wait()
}

func TestNew_RejectsZero(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}
