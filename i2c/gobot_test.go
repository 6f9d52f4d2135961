package i2c

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gi2c "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/als"
)

type fakeConnection struct {
	gi2c.Connection
	written [][]byte
	reply   []byte
}

func (c *fakeConnection) Write(b []byte) (int, error) {
	c.written = append(c.written, append([]byte(nil), b...))
	return len(b), nil
}

func (c *fakeConnection) Read(b []byte) (int, error) {
	return copy(b, c.reply), nil
}

func (c *fakeConnection) Close() error {
	return nil
}

type fakeConnector struct {
	gi2c.Connector
	conns    map[int]*fakeConnection
	requests [][2]int
	err      error
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (gi2c.Connection, error) {
	f.requests = append(f.requests, [2]int{address, busNr})
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.conns[address]
	if !ok {
		c = &fakeConnection{}
		f.conns[address] = c
	}
	return c, nil
}

func (f *fakeConnector) DefaultI2cBus() int {
	return 0
}

func TestGobotBus_Transfers(t *testing.T) {
	ctx := context.Background()
	connector := &fakeConnector{conns: map[int]*fakeConnection{
		0x44: {reply: []byte{0x54, 0x49}},
	}}
	b := NewGobotBus(connector, 2)

	w := als.NewWordBus(b)
	value, err := w.ReadRegister(ctx, 0x44, 0x7E)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x5449), value)
	require.NoError(t, w.WriteRegister(ctx, 0x44, 0x02, 0x0FFF))

	assert.Equal(t, [][]byte{{0x7E}, {0x02, 0x0F, 0xFF}}, connector.conns[0x44].written)
	// the driver is started once per address on the selected bus
	assert.Equal(t, [][2]int{{0x44, 2}}, connector.requests)

	require.NoError(t, b.Close())
}

func TestGobotBus_DefaultBus(t *testing.T) {
	connector := &fakeConnector{conns: map[int]*fakeConnection{}}
	b := NewGobotBus(connector, -1)

	require.NoError(t, b.WriteToAddr(context.Background(), 0x45, []byte{0x01}))
	assert.Equal(t, [][2]int{{0x45, 0}}, connector.requests)
}

func TestGobotBus_StartFailure(t *testing.T) {
	connector := &fakeConnector{conns: map[int]*fakeConnection{}, err: errors.New("no bus")}
	b := NewGobotBus(connector, 1)

	err := b.ReadFromAddr(context.Background(), 0x44, make([]byte, 2))
	assert.ErrorContains(t, err, "no bus")
}
