package gpio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/als"
)

// MockI2CBus is a mock implementation of als.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return m.Called(ctx, address, buffer).Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestMCP23017_ConfigureInput(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x01}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x21), mock.Anything).Return([]byte{0x01}, nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x01, 0x09}).Return(nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x0D}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x21), mock.Anything).Return([]byte{0x00}, nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x0D, 0x08}).Return(nil).Once()

	exp := NewMCP23017(bus, DefaultMCP23017Address)
	require.NoError(t, exp.ConfigureInput(ctx, PortB, 3))
	bus.AssertExpectations(t)
}

func TestMCP23017_PinLevel(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x20), []byte{0x09}).Return(nil)
	bus.On("ReadFromAddr", ctx, byte(0x20), mock.Anything).Return([]byte{0x04}, nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x20), mock.Anything).Return([]byte{0x00}, nil).Once()

	exp := NewMCP23017(bus, 0x20, WithBank(1))
	line := exp.Pin(PortA, 2)
	level, err := line.Level(ctx)
	require.NoError(t, err)
	assert.True(t, level)
	level, err = line.Level(ctx)
	require.NoError(t, err)
	assert.False(t, level)
}

func TestMCP23017_BusyRetry(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x00, 0xFF}).Return(als.ErrBusBusy).Once()
	bus.On("Release", ctx).Return(nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x00, 0xFF}).Return(nil).Once()

	exp := NewMCP23017(bus, DefaultMCP23017Address, WithRetryLimit(2))
	require.NoError(t, exp.SetDirection(ctx, PortA, 0xFF))
	bus.AssertExpectations(t)
}

func TestMCP23017_RetryLimit(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x0A}).Return(als.ErrBusBusy)
	bus.On("Release", ctx).Return(nil)

	exp := NewMCP23017(bus, DefaultMCP23017Address)
	_, err := exp.ReadSettings(ctx, PortA)
	assert.ErrorIs(t, err, als.ErrBusBusy)
	assert.ErrorContains(t, err, "retry limit")
	bus.AssertNumberOfCalls(t, "Release", 1)
	bus.AssertNotCalled(t, "ReadFromAddr", mock.Anything, mock.Anything, mock.Anything)
}
