package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestNewLED_StartsOff(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", Num: 17, L: gpio.High}
	_, err := NewLED(pin, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, gpio.Low, pin.Read())
}

func TestLED_BlinkEndsLow(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", Num: 17}
	led, err := NewLED(pin, time.Millisecond)
	require.NoError(t, err)

	led.blink()
	assert.Equal(t, gpio.Low, pin.Read())
}

func TestLED_PulseLightsThenClears(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17", Num: 17}
	led, err := NewLED(pin, 50*time.Millisecond)
	require.NoError(t, err)

	led.Pulse()
	assert.Eventually(t, func() bool { return pin.Read() == gpio.High }, time.Second, time.Millisecond)
	// Overlapping pulses are dropped while busy.
	led.Pulse()
	assert.Eventually(t, func() bool { return !led.busy.Load() && pin.Read() == gpio.Low }, time.Second, 5*time.Millisecond)
}

func TestNop(t *testing.T) {
	var i Indicator = Nop{}
	i.Pulse()
}
