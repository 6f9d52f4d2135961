package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/als"
	"github.com/mklimuk/als/adapter"
	"github.com/mklimuk/als/gpio"
	"github.com/mklimuk/als/i2c"
	"github.com/mklimuk/als/opt300x"
)

const (
	adapterMCP2221 = "mcp2221"
	adapterGeneric = "generic"
	adapterNanoPi  = "nanopi"
	adapterSim     = "sim"
)

var deviceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Usage:   "bus adapter: mcp2221, generic, nanopi or sim",
		Value:   adapterMCP2221,
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "i2c bus name for the generic adapter, bus number for nanopi",
		Value:   "/dev/i2c-1",
	},
	&cli.IntFlag{
		Name:  "speed",
		Usage: "bus speed in Hz",
		Value: 100_000,
	},
	indexFlag,
	&cli.StringFlag{
		Name:  "type",
		Usage: "chip type: OPT3001, OPT3002, OPT3004, OPT3005, OPT3006 or OPT3007",
		Value: "OPT3001",
	},
	&cli.StringFlag{
		Name:  "addr",
		Usage: "ADDR pin strap: GND, VCC, SDA or SCL",
		Value: "GND",
	},
	&cli.Float64Flag{
		Name:  "sim-light",
		Usage: "light level seen by the sim adapter",
		Value: 320.5,
	},
}

// session is an initialized chip together with the bus it sits on.
type session struct {
	dev     *opt300x.Device
	variant opt300x.Variant
	adapter string
	bus     als.I2CBus
	mcp     *adapter.MCP2221
	sim     *opt300x.Simulator
	cleanup []func() error
}

func openSession(c *cli.Context, callback opt300x.InterruptHandler) (*session, error) {
	variant, err := opt300x.ParseVariant(c.String("type"))
	if err != nil {
		return nil, err
	}
	pin, err := opt300x.ParseAddrPin(c.String("addr"))
	if err != nil {
		return nil, err
	}
	s := &session{variant: variant, adapter: c.String("adapter")}
	var transport opt300x.Transport
	switch s.adapter {
	case adapterMCP2221:
		s.mcp = adapter.NewMCP2221(adapter.WithIndex(c.Int("mcp2221-index")))
		s.bus = s.mcp
		transport = als.NewWordBus(s.mcp)
	case adapterGeneric:
		freq := physic.Frequency(c.Int("speed")) * physic.Hertz
		s.bus = i2c.NewGenericBus(c.String("device"), i2c.WithSpeed(freq))
		transport = als.NewWordBus(s.bus)
	case adapterNanoPi:
		nr, err := busNumber(c.String("device"))
		if err != nil {
			return nil, err
		}
		npi := nanopi.NewNeoAdaptor()
		err = npi.I2cBusAdaptor.Connect()
		if err != nil {
			return nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		s.cleanup = append(s.cleanup, npi.I2cBusAdaptor.Finalize)
		s.bus = i2c.NewGobotBus(npi, nr)
		transport = als.NewWordBus(s.bus)
	case adapterSim:
		light := c.Float64("sim-light")
		s.sim = opt300x.NewSimulator(variant, func() float64 { return light }, opt300x.WithSimulatorAddrPin(pin))
		transport = s.sim
	default:
		return nil, fmt.Errorf("unknown adapter %q", s.adapter)
	}

	s.dev = opt300x.New(transport,
		opt300x.WithVariant(variant),
		opt300x.WithAddrPin(pin),
		opt300x.WithLogger(slog.Default().With("adapter", s.adapter)),
		opt300x.WithCallback(callback),
	)
	err = s.dev.Init(c.Context)
	if err != nil {
		return nil, errors.Join(err, s.runCleanup())
	}
	if s.mcp != nil {
		err = s.mcp.SetSpeed(c.Context, c.Int("speed"))
		if err != nil {
			return nil, errors.Join(err, s.Close(c.Context))
		}
	}
	return s, nil
}

// Close puts the chip back into shutdown and releases the bus.
func (s *session) Close(ctx context.Context) error {
	err := s.dev.StopContinuousRead(ctx)
	return errors.Join(err, s.dev.Deinit(ctx), s.runCleanup())
}

func (s *session) runCleanup() error {
	var err error
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		err = errors.Join(err, s.cleanup[i]())
	}
	s.cleanup = nil
	return err
}

// closeSession is deferred by commands, errors are only reported.
func closeSession(ctx context.Context, s *session) {
	if err := s.Close(ctx); err != nil {
		slog.Error("could not close device", "error", err)
	}
}

// busNumber accepts "2", "i2c-2" or "/dev/i2c-2". An empty name selects the
// connector default.
func busNumber(name string) (int, error) {
	if name == "" {
		return -1, nil
	}
	trimmed := name[strings.LastIndex(name, "-")+1:]
	nr, err := strconv.Atoi(trimmed)
	if err != nil || nr < 0 {
		return 0, fmt.Errorf("invalid bus %q", name)
	}
	return nr, nil
}

// Variant aware helpers so commands work with every part number.

func (s *session) unit() string {
	return s.variant.Unit().String()
}

func (s *session) setAutoRange(ctx context.Context) error {
	switch s.variant {
	case opt300x.OPT3002:
		return s.dev.SetOPT3002Range(ctx, opt300x.OPT3002RangeAuto)
	case opt300x.OPT3005:
		return s.dev.SetOPT3005Range(ctx, opt300x.OPT3005RangeAuto)
	default:
		return s.dev.SetRange(ctx, opt300x.RangeAuto)
	}
}

func (s *session) singleRead(ctx context.Context) (uint16, float64, error) {
	if s.variant == opt300x.OPT3002 {
		return s.dev.OPT3002SingleRead(ctx)
	}
	return s.dev.SingleRead(ctx)
}

func (s *session) continuousRead(ctx context.Context) (uint16, float64, error) {
	if s.variant == opt300x.OPT3002 {
		return s.dev.OPT3002ContinuousRead(ctx)
	}
	return s.dev.ContinuousRead(ctx)
}

func (s *session) limitToRegister(value float64) (uint16, error) {
	if s.variant == opt300x.OPT3002 {
		return s.dev.OPT3002LimitConvertToRegister(value)
	}
	return s.dev.LimitConvertToRegister(value)
}

// interruptLine picks where the INT pin of the chip is read from. source
// "auto" selects the simulator pin, a GP pin of the MCP2221 or a host GPIO
// depending on the adapter.
func (s *session) interruptLine(ctx context.Context, source, pin string, expanderAddr byte, active gpio.ActiveLevel) (gpio.Line, error) {
	if source == "auto" {
		switch s.adapter {
		case adapterSim:
			source = "sim"
		case adapterMCP2221:
			source = "mcp2221"
		default:
			source = "host"
		}
	}
	switch source {
	case "sim":
		if s.sim == nil {
			return nil, fmt.Errorf("sim interrupt source requires the sim adapter")
		}
		return s.sim, nil
	case "mcp2221":
		if s.mcp == nil {
			return nil, fmt.Errorf("mcp2221 interrupt source requires the mcp2221 adapter")
		}
		nr, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(pin), "GP"))
		if err != nil {
			return nil, fmt.Errorf("invalid MCP2221 pin %q", pin)
		}
		return gpio.NewBridgeLine(s.mcp, nr), nil
	case "expander":
		if s.bus == nil {
			return nil, fmt.Errorf("expander interrupt source requires an i2c adapter")
		}
		port, nr, err := expanderPin(pin)
		if err != nil {
			return nil, err
		}
		exp := gpio.NewMCP23017(s.bus, expanderAddr)
		err = exp.ConfigureInput(ctx, port, nr)
		if err != nil {
			return nil, fmt.Errorf("could not configure expander: %w", err)
		}
		return exp.Pin(port, nr), nil
	case "host":
		return gpio.OpenHostLine(pin, active)
	default:
		return nil, fmt.Errorf("unknown interrupt source %q", source)
	}
}

// expanderPin parses MCP23017 pins written as A0..A7 or B0..B7.
func expanderPin(name string) (gpio.Port, int, error) {
	if len(name) != 2 || name[1] < '0' || name[1] > '7' {
		return 0, 0, fmt.Errorf("invalid expander pin %q", name)
	}
	nr := int(name[1] - '0')
	switch name[0] {
	case 'A', 'a':
		return gpio.PortA, nr, nil
	case 'B', 'b':
		return gpio.PortB, nr, nil
	}
	return 0, 0, fmt.Errorf("invalid expander pin %q", name)
}
