package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/als"
)

var _ als.I2CBus = &GenericBus{}
var _ als.Transceiver = &GenericBus{}
var _ als.Opener = &GenericBus{}

// GenericBus is a host I2C bus reached through periph. The bus is opened on
// the first Open call so the handle can be built before the host is ready.
type GenericBus struct {
	mx    sync.Mutex
	name  string
	speed physic.Frequency
	open  func(name string) (i2c.BusCloser, error)
	bus   i2c.BusCloser
	log   *slog.Logger
}

type Opt func(*GenericBus)

// WithSpeed sets the bus clock applied when the bus is opened.
func WithSpeed(f physic.Frequency) Opt {
	return func(b *GenericBus) {
		b.speed = f
	}
}

func WithLogger(log *slog.Logger) Opt {
	return func(b *GenericBus) {
		if log != nil {
			b.log = log
		}
	}
}

// NewGenericBus prepares the bus named dev, an empty name selects the first
// bus registered on the host.
func NewGenericBus(dev string, opts ...Opt) *GenericBus {
	b := &GenericBus{
		name: dev,
		open: openHost,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func openHost(name string) (i2c.BusCloser, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return bus, nil
}

func (b *GenericBus) Open(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus != nil {
		return nil
	}
	bus, err := b.open(b.name)
	if err != nil {
		return err
	}
	if b.speed > 0 {
		err = bus.SetSpeed(b.speed)
		if err != nil {
			_ = bus.Close()
			return fmt.Errorf("could not set bus speed to %s: %w", b.speed, err)
		}
	}
	b.bus = bus
	b.log.Debug("i2c bus opened", "bus", bus.String(), "speed", b.speed)
	return nil
}

// SetSpeed changes the clock of an open bus, or the clock used by the next Open.
func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.speed = f
	if b.bus == nil {
		return nil
	}
	err := b.bus.SetSpeed(f)
	if err != nil {
		return fmt.Errorf("could not set bus speed to %s: %w", f, err)
	}
	return nil
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.tx(address, nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.tx(address, buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", address, err)
	}
	return nil
}

// TxAddr writes w and reads r in one transaction joined by a repeated start.
func (b *GenericBus) TxAddr(ctx context.Context, address byte, w, r []byte) error {
	err := b.tx(address, w, r)
	if err != nil {
		return fmt.Errorf("could not transfer on i2c bus %x: %w", address, err)
	}
	return nil
}

func (b *GenericBus) tx(address byte, w, r []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return fmt.Errorf("bus %q is not open", b.name)
	}
	return b.bus.Tx(uint16(address), w, r)
}

func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.bus == nil {
		return nil
	}
	err := b.bus.Close()
	b.bus = nil
	return err
}
