package line

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedAll pushes every byte of s and returns copies of the completed lines
// and the number of overflow errors seen.
func feedAll(t *testing.T, r *Reassembler, s string) ([]string, int) {
	t.Helper()
	var lines []string
	overflows := 0
	for i := 0; i < len(s); i++ {
		l, ok, err := r.Feed(s[i])
		if err != nil {
			assert.ErrorIs(t, err, ErrOverflow)
			overflows++
			continue
		}
		if ok {
			lines = append(lines, string(l))
		}
	}
	return lines, overflows
}

func TestFeed_SingleSentence(t *testing.T) {
	r, err := New(DefaultMaxLength)
	require.NoError(t, err)

	sentence := "$GPRMC,132502.00,A,1656.97300,N,04311.50800,W,0.000,0.0,090218,0.0,W*7B\r\n"
	lines, overflows := feedAll(t, r, sentence)

	assert.Equal(t, 0, overflows)
	require.Len(t, lines, 1)
	assert.Equal(t, sentence, lines[0])
	assert.Equal(t, 0, r.Pending())
}

func TestFeed_NoOutputBeforeTerminator(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)

	lines, _ := feedAll(t, r, "$GPGGA,1")
	assert.Empty(t, lines)
	assert.Equal(t, 8, r.Pending())
}

func TestFeed_OverflowDiscardsAndResyncs(t *testing.T) {
	r, err := New(10)
	require.NoError(t, err)

	lines, overflows := feedAll(t, r, "$GPXXX,0123456789ABCDEF\n$GPOK\n")

	assert.Equal(t, 1, overflows)
	require.Len(t, lines, 1)
	assert.Equal(t, "$GPOK\n", lines[0])
}

func TestFeed_ExactCapacity(t *testing.T) {
	r, err := New(6)
	require.NoError(t, err)

	lines, overflows := feedAll(t, r, "$ABCD\n")
	assert.Equal(t, 0, overflows)
	assert.Equal(t, []string{"$ABCD\n"}, lines)

	// A terminator arriving right after a full buffer ends the bad line
	// without entering discard mode.
	lines, overflows = feedAll(t, r, "$ABCDE\n$X\n")
	assert.Equal(t, 1, overflows)
	assert.Equal(t, []string{"$X\n"}, lines)
}

func TestFeed_BackToBackLines(t *testing.T) {
	r, err := New(DefaultMaxLength)
	require.NoError(t, err)

	lines, _ := feedAll(t, r, "a\nbb\n\nccc\n")
	assert.Equal(t, []string{"a\n", "bb\n", "\n", "ccc\n"}, lines)
}

func TestNew_RejectsTinyBuffer(t *testing.T) {
	_, err := New(1)
	assert.Error(t, err)
}
