package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/als"
)

type registry int

const DefaultMCP23017Address = 0x21

const (
	IODIR registry = iota
	GPPU
	IOCON
	GPIO
)

// Port is one of the two 8-bit I/O ports of the expander.
type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

// BankAddr maps registers to addresses for IOCON.BANK = 0 and IOCON.BANK = 1.
var BankAddr = []map[Port]map[registry]byte{
	{
		PortA: {IODIR: 0x00, GPPU: 0x0C, IOCON: 0x0A, GPIO: 0x12},
		PortB: {IODIR: 0x01, GPPU: 0x0D, IOCON: 0x0B, GPIO: 0x13},
	},
	{
		PortA: {IODIR: 0x00, GPPU: 0x06, IOCON: 0x05, GPIO: 0x09},
		PortB: {IODIR: 0x10, GPPU: 0x16, IOCON: 0x15, GPIO: 0x19},
	},
}

// MCP23017 is a 16-bit I/O expander. Transfers that fail with a busy bus are
// retried after releasing the bus.
type MCP23017 struct {
	mx         sync.Mutex
	transport  als.I2CBus
	bank       int
	address    byte
	retryLimit int
}

type MCP23017Opt func(*MCP23017)

// WithBank selects the register layout matching IOCON.BANK.
func WithBank(bank int) MCP23017Opt {
	return func(m *MCP23017) {
		m.bank = bank & 0x1
	}
}

func WithRetryLimit(limit int) MCP23017Opt {
	return func(m *MCP23017) {
		if limit > 0 {
			m.retryLimit = limit
		}
	}
}

func NewMCP23017(bus als.I2CBus, address byte, opts ...MCP23017Opt) *MCP23017 {
	m := &MCP23017{retryLimit: 1, transport: bus, address: address}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetDirection writes the direction register of a port, 1 bits are inputs.
func (m *MCP23017) SetDirection(ctx context.Context, port Port, inout byte) error {
	err := m.writeRegistry(ctx, BankAddr[m.bank][port][IODIR], inout)
	if err != nil {
		return fmt.Errorf("could not set direction of gpio %s set: %w", port, err)
	}
	return nil
}

// SetPullUp enables the 100k pull-ups of a port, open-drain interrupt outputs need one.
func (m *MCP23017) SetPullUp(ctx context.Context, port Port, settings byte) error {
	err := m.writeRegistry(ctx, BankAddr[m.bank][port][GPPU], settings)
	if err != nil {
		return fmt.Errorf("could not set pull-up on gpio %s set: %w", port, err)
	}
	return nil
}

func (m *MCP23017) ReadSettings(ctx context.Context, port Port) (byte, error) {
	res, err := m.readRegistry(ctx, BankAddr[m.bank][port][IOCON])
	if err != nil {
		return 0, fmt.Errorf("could not read settings of gpio %s set: %w", port, err)
	}
	return res, nil
}

// ReadPort returns the levels of all pins of a port.
func (m *MCP23017) ReadPort(ctx context.Context, port Port) (byte, error) {
	res, err := m.readRegistry(ctx, BankAddr[m.bank][port][GPIO])
	if err != nil {
		return 0, fmt.Errorf("could not read gpio %s set: %w", port, err)
	}
	return res, nil
}

// Pin returns one expander input as a Line.
func (m *MCP23017) Pin(port Port, pin int) *ExpanderLine {
	return &ExpanderLine{expander: m, port: port, mask: 1 << (pin & 0x7)}
}

// ConfigureInput turns a single pin into an input with pull-up, other pins
// of the port keep their configuration.
func (m *MCP23017) ConfigureInput(ctx context.Context, port Port, pin int) error {
	mask := byte(1 << (pin & 0x7))
	dir, err := m.readRegistry(ctx, BankAddr[m.bank][port][IODIR])
	if err != nil {
		return fmt.Errorf("could not read direction of gpio %s set: %w", port, err)
	}
	err = m.SetDirection(ctx, port, dir|mask)
	if err != nil {
		return err
	}
	pull, err := m.readRegistry(ctx, BankAddr[m.bank][port][GPPU])
	if err != nil {
		return fmt.Errorf("could not read pull-up of gpio %s set: %w", port, err)
	}
	return m.SetPullUp(ctx, port, pull|mask)
}

func (m *MCP23017) writeRegistry(ctx context.Context, addr byte, value byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.retry(ctx, func() error {
		return m.transport.WriteToAddr(ctx, m.address, []byte{addr, value})
	})
}

func (m *MCP23017) readRegistry(ctx context.Context, addr byte) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	buf := make([]byte, 1)
	err := m.retry(ctx, func() error {
		err := m.transport.WriteToAddr(ctx, m.address, []byte{addr})
		if err != nil {
			return fmt.Errorf("could not set I/O registry address: %w", err)
		}
		return m.transport.ReadFromAddr(ctx, m.address, buf)
	})
	return buf[0], err
}

func (m *MCP23017) retry(ctx context.Context, op func() error) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, als.ErrBusBusy) {
			return err
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return fmt.Errorf("retry limit reached: %w", err)
}

// ExpanderLine is a single MCP23017 pin.
type ExpanderLine struct {
	expander *MCP23017
	port     Port
	mask     byte
}

func (l *ExpanderLine) Level(ctx context.Context) (bool, error) {
	v, err := l.expander.ReadPort(ctx, l.port)
	if err != nil {
		return false, err
	}
	return v&l.mask != 0, nil
}
