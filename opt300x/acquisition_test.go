package opt300x

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDevice_SingleRead(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name       string
		conversion ConversionTime
		polls      int
	}{
		{"800ms", ConversionTime800ms, 80},
		{"100ms", ConversionTime100ms, 10},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sleeper := &sleepCounter{}
			dev, sim := newSimDevice(t, OPT3001, func() float64 { return 320.5 }, WithSleep(sleeper.sleep))
			require.NoError(t, dev.SetConversionTime(ctx, test.conversion))

			raw, lux, err := dev.SingleRead(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint16(0x3FA6), raw)
			assert.InDelta(t, 320.48, lux, 1e-9)
			assert.Equal(t, test.polls, sleeper.calls)
			assert.Equal(t, time.Duration(test.polls)*pollInterval, sleeper.total)
			assert.Equal(t, ModeShutdown, Configuration(sim.Peek(regConfiguration)).Mode())
		})
	}
}

func TestDevice_SingleReadTimeout(t *testing.T) {
	sleeper := &sleepCounter{}
	sim := NewSimulator(OPT3001, func() float64 { return 100 }, WithStalledConversions())
	dev := New(sim, WithCallback(noInterrupt), WithSleep(sleeper.sleep))
	require.NoError(t, dev.Init(context.Background()))

	_, _, err := dev.SingleRead(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, pollAttempts, sleeper.calls)
	assert.Equal(t, 0, sim.Reads(regResult))
}

func TestDevice_SingleReadReadyOnLastPoll(t *testing.T) {
	ctx := context.Background()
	m := &MockTransport{}
	m.expectIdentity()
	m.On("ReadRegister", mock.Anything, byte(0x44), byte(regConfiguration)).Return(uint16(0xC810), nil).Once()
	m.On("WriteRegister", mock.Anything, byte(0x44), byte(regConfiguration), uint16(0xCA10)).Return(nil).Once()
	m.On("ReadRegister", mock.Anything, byte(0x44), byte(regConfiguration)).Return(uint16(0xCA10), nil).Times(pollAttempts - 1)
	m.On("ReadRegister", mock.Anything, byte(0x44), byte(regConfiguration)).Return(uint16(0xC890), nil).Once()
	m.On("ReadRegister", mock.Anything, byte(0x44), byte(regResult)).Return(uint16(0x5FFF), nil).Once()

	sleeper := &sleepCounter{}
	dev := New(m, WithCallback(noInterrupt), WithSleep(sleeper.sleep))
	require.NoError(t, dev.Init(ctx))

	raw, lux, err := dev.SingleRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5FFF), raw)
	assert.InDelta(t, 1310.40, lux, 1e-9)
	assert.Equal(t, pollAttempts, sleeper.calls)
	m.AssertExpectations(t)
}

func TestDevice_SingleReadOverflow(t *testing.T) {
	sleeper := &sleepCounter{}
	dev, sim := newSimDevice(t, OPT3001, func() float64 { return 100 }, WithSleep(sleeper.sleep))
	sim.SetOverflow(true)

	_, _, err := dev.SingleRead(context.Background())
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Equal(t, 80, sleeper.calls)
	assert.Equal(t, 0, sim.Reads(regResult))
}

func TestDevice_SingleReadTransportFailure(t *testing.T) {
	dev, sim := newSimDevice(t, OPT3001, nil)
	sim.FailWrite(regConfiguration, errors.New("nack"))

	_, _, err := dev.SingleRead(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 0, sim.Reads(regResult))
}

func TestDevice_OPT3002SingleRead(t *testing.T) {
	dev, _ := newSimDevice(t, OPT3002, func() float64 { return 2457.6 })

	raw, value, err := dev.OPT3002SingleRead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0800), raw)
	assert.InDelta(t, 2457.6, value, 1e-9)

	_, _, err = dev.SingleRead(context.Background())
	assert.ErrorIs(t, err, ErrWrongVariant)
}

func TestDevice_ContinuousRead(t *testing.T) {
	ctx := context.Background()
	level := 1000.0
	dev, sim := newSimDevice(t, OPT3001, func() float64 { return level })

	require.NoError(t, dev.StartContinuousRead(ctx))
	raw, lux, err := dev.ContinuousRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5C35), raw)
	assert.InDelta(t, 1000, lux, 1e-9)

	level = 40.95
	raw, _, err = dev.ContinuousRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0FFF), raw)

	_, _, err = dev.OPT3002ContinuousRead(ctx)
	assert.ErrorIs(t, err, ErrWrongVariant)

	require.NoError(t, dev.StopContinuousRead(ctx))
	assert.Equal(t, ModeShutdown, Configuration(sim.Peek(regConfiguration)).Mode())
}

func TestDevice_ContinuousReadOverflow(t *testing.T) {
	ctx := context.Background()
	m := &MockTransport{}
	m.expectIdentity()
	m.On("ReadRegister", mock.Anything, byte(0x44), byte(regConfiguration)).Return(uint16(0xC500), nil).Once()
	dev := New(m, WithCallback(noInterrupt))
	require.NoError(t, dev.Init(ctx))

	_, _, err := dev.ContinuousRead(ctx)
	assert.ErrorIs(t, err, ErrOverflow)
	m.AssertNotCalled(t, "ReadRegister", mock.Anything, byte(0x44), byte(regResult))
	m.AssertExpectations(t)
}

func TestDevice_OPT3002ContinuousRead(t *testing.T) {
	ctx := context.Background()
	dev, sim := newSimDevice(t, OPT3002, func() float64 { return 1.2 })
	require.NoError(t, dev.StartContinuousRead(ctx))

	raw, value, err := dev.OPT3002ContinuousRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0001), raw)
	assert.InDelta(t, 1.2, value, 1e-9)

	sim.SetOverflow(true)
	_, _, err = dev.OPT3002ContinuousRead(ctx)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestDevice_HandleInterrupt(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		config   uint16
		expected []Interrupt
	}{
		{"none", 0xC810, nil},
		{"high", 0xC850, []Interrupt{InterruptHighLimit}},
		{"low", 0xC830, []Interrupt{InterruptLowLimit}},
		{"both", 0xC870, []Interrupt{InterruptHighLimit, InterruptLowLimit}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var got []Interrupt
			dev, sim := newSimDevice(t, OPT3001, nil, WithCallback(func(i Interrupt) {
				got = append(got, i)
			}))
			sim.Poke(regConfiguration, test.config)
			reads := sim.Reads(regConfiguration)

			require.NoError(t, dev.HandleInterrupt(ctx))
			assert.Equal(t, test.expected, got)
			assert.Equal(t, reads+1, sim.Reads(regConfiguration))
		})
	}
}

func TestDevice_HandleInterruptReadFailure(t *testing.T) {
	called := false
	dev, sim := newSimDevice(t, OPT3001, nil, WithCallback(func(Interrupt) { called = true }))
	sim.Poke(regConfiguration, 0xC870)
	sim.FailRead(regConfiguration, errors.New("nack"))

	assert.ErrorIs(t, dev.HandleInterrupt(context.Background()), ErrTransport)
	assert.False(t, called)
}

func TestDevice_ComparatorWindow(t *testing.T) {
	ctx := context.Background()
	level := 500.0
	var got []Interrupt
	dev, _ := newSimDevice(t, OPT3001, func() float64 { return level }, WithCallback(func(i Interrupt) {
		got = append(got, i)
	}))

	low, err := dev.LimitConvertToRegister(100)
	require.NoError(t, err)
	high, err := dev.LimitConvertToRegister(1000)
	require.NoError(t, err)
	require.NoError(t, dev.SetLowLimit(ctx, low))
	require.NoError(t, dev.SetHighLimit(ctx, high))
	require.NoError(t, dev.SetInterruptLatch(ctx, false))

	_, _, err = dev.SingleRead(ctx)
	require.NoError(t, err)
	require.NoError(t, dev.HandleInterrupt(ctx))
	assert.Empty(t, got)

	level = 2000
	_, _, err = dev.SingleRead(ctx)
	require.NoError(t, err)
	require.NoError(t, dev.HandleInterrupt(ctx))
	assert.Equal(t, []Interrupt{InterruptHighLimit}, got)

	got = nil
	level = 50
	_, _, err = dev.SingleRead(ctx)
	require.NoError(t, err)
	require.NoError(t, dev.HandleInterrupt(ctx))
	assert.Equal(t, []Interrupt{InterruptLowLimit}, got)
}

func TestSimulator_InterruptPin(t *testing.T) {
	ctx := context.Background()
	level := 500.0
	dev, sim := newSimDevice(t, OPT3001, func() float64 { return level })

	high, err := dev.LimitConvertToRegister(1000)
	require.NoError(t, err)
	require.NoError(t, dev.SetHighLimit(ctx, high))
	require.NoError(t, dev.StartContinuousRead(ctx))

	pin, err := sim.Level(ctx)
	require.NoError(t, err)
	assert.True(t, pin, "active low pin idles high")

	level = 5000
	pin, _ = sim.Level(ctx)
	assert.True(t, pin, "conversion completes after the observation")
	pin, _ = sim.Level(ctx)
	assert.False(t, pin)

	// reading the configuration clears latched flags and releases the pin
	var got []Interrupt
	dev.callback = func(i Interrupt) { got = append(got, i) }
	level = 500
	require.NoError(t, dev.HandleInterrupt(ctx))
	assert.Equal(t, []Interrupt{InterruptHighLimit}, got)
	pin, _ = sim.Level(ctx)
	assert.True(t, pin)

	require.NoError(t, dev.SetInterruptPolarity(ctx, PolarityHigh))
	pin, _ = sim.Level(ctx)
	assert.False(t, pin)
}
