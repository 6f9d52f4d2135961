package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/als"
	"github.com/mklimuk/als/opt300x"
)

func playbackBus(ops ...i2ctest.IO) *GenericBus {
	p := &i2ctest.Playback{Ops: ops, DontPanic: true}
	b := NewGenericBus("test", WithSpeed(400*physic.KiloHertz))
	b.open = func(string) (i2c.BusCloser, error) {
		return p, nil
	}
	return b
}

func TestGenericBus_NotOpen(t *testing.T) {
	b := playbackBus()
	assert.ErrorContains(t, b.WriteToAddr(context.Background(), 0x44, []byte{0x01}), "not open")
	assert.NoError(t, b.Close())
}

func TestGenericBus_OpenFailure(t *testing.T) {
	b := NewGenericBus("missing")
	b.open = func(string) (i2c.BusCloser, error) {
		return nil, errors.New("no such bus")
	}
	assert.ErrorContains(t, b.Open(context.Background()), "no such bus")
}

func TestGenericBus_Transfers(t *testing.T) {
	ctx := context.Background()
	b := playbackBus(
		i2ctest.IO{Addr: 0x44, W: []byte{0x03, 0x5F, 0xFF}},
		i2ctest.IO{Addr: 0x44, R: []byte{0xC8, 0x10}},
		i2ctest.IO{Addr: 0x44, W: []byte{0x7F}, R: []byte{0x30, 0x01}},
	)
	require.NoError(t, b.Open(ctx))
	require.NoError(t, b.Open(ctx))

	require.NoError(t, b.WriteToAddr(ctx, 0x44, []byte{0x03, 0x5F, 0xFF}))
	buf := make([]byte, 2)
	require.NoError(t, b.ReadFromAddr(ctx, 0x44, buf))
	assert.Equal(t, []byte{0xC8, 0x10}, buf)
	require.NoError(t, b.TxAddr(ctx, 0x44, []byte{0x7F}, buf))
	assert.Equal(t, []byte{0x30, 0x01}, buf)

	require.NoError(t, b.SetSpeed(100*physic.KiloHertz))
	// playback refuses to close with unplayed operations
	require.NoError(t, b.Close())
}

func TestGenericBus_Device(t *testing.T) {
	ctx := context.Background()
	b := playbackBus(
		i2ctest.IO{Addr: 0x44, W: []byte{0x7E}, R: []byte{0x54, 0x49}},
		i2ctest.IO{Addr: 0x44, W: []byte{0x7F}, R: []byte{0x30, 0x01}},
		i2ctest.IO{Addr: 0x44, W: []byte{0x01}, R: []byte{0xC8, 0x10}},
		i2ctest.IO{Addr: 0x44, W: []byte{0x01, 0xCC, 0x10}},
		i2ctest.IO{Addr: 0x44, W: []byte{0x01}, R: []byte{0xCC, 0x90}},
		i2ctest.IO{Addr: 0x44, W: []byte{0x00}, R: []byte{0x5F, 0xFF}},
	)
	dev := opt300x.New(als.NewWordBus(b), opt300x.WithCallback(func(opt300x.Interrupt) {}))
	require.NoError(t, dev.Init(ctx))

	require.NoError(t, dev.StartContinuousRead(ctx))
	raw, lux, err := dev.ContinuousRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5FFF), raw)
	assert.InDelta(t, 1310.40, lux, 1e-9)
	require.NoError(t, b.Close())
}
