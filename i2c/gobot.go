package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gi2c "gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/als"
)

var _ als.I2CBus = &GobotBus{}

// GobotBus talks to devices through a gobot I2C connector, for example
// the adaptor of a NanoPi board. One generic driver is started per address.
type GobotBus struct {
	mx        sync.Mutex
	connector gi2c.Connector
	bus       int
	drivers   map[byte]*gi2c.GenericDriver
}

// NewGobotBus uses bus number bus of the connector, a negative number selects
// the connector default.
func NewGobotBus(connector gi2c.Connector, bus int) *GobotBus {
	return &GobotBus{
		connector: connector,
		bus:       bus,
		drivers:   map[byte]*gi2c.GenericDriver{},
	}
}

func (b *GobotBus) driver(address byte) (*gi2c.GenericDriver, error) {
	if d, ok := b.drivers[address]; ok {
		return d, nil
	}
	opts := []func(gi2c.Config){}
	if b.bus >= 0 {
		opts = append(opts, func(c gi2c.Config) {
			c.SetBus(b.bus)
		})
	}
	d := gi2c.NewGenericDriver(b.connector, fmt.Sprintf("i2c-%#02x", address), int(address), opts...)
	err := d.Start()
	if err != nil {
		return nil, fmt.Errorf("start error: %w", err)
	}
	b.drivers[address] = d
	return d, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return fmt.Errorf("could not read from %x: %w", address, err)
	}
	err = d.Read(buffer)
	if err != nil {
		return fmt.Errorf("could not read from %x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	d, err := b.driver(address)
	if err != nil {
		return fmt.Errorf("could not write to %x: %w", address, err)
	}
	err = d.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to %x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Close halts every driver started so far.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var err error
	for addr, d := range b.drivers {
		err = errors.Join(err, d.Halt())
		delete(b.drivers, addr)
	}
	return err
}
