package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/als/cmd/als/console"
	"github.com/mklimuk/als/gpio"
	"github.com/mklimuk/als/opt300x"
)

var infoCmd = cli.Command{
	Name:  "info",
	Usage: "show chip and driver information",
	Action: func(c *cli.Context) error {
		enc := yaml.NewEncoder(console.Output())
		defer func() { _ = enc.Close() }()
		err := enc.Encode(opt300x.Info())
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Failure(err))
		}
		return nil
	},
}

var timesFlags = []cli.Flag{
	&cli.UintFlag{
		Name:  "times",
		Usage: "number of reads",
		Value: 3,
	},
	&cli.DurationFlag{
		Name:  "interval",
		Usage: "delay before each read",
		Value: time.Second,
	},
}

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "read the light level in continuous mode",
	Flags:   append(append([]cli.Flag{}, deviceFlags...), timesFlags...),
	Action: func(c *cli.Context) error {
		s, err := openSession(c, logInterrupt)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Failure(err))
		}
		defer closeSession(c.Context, s)
		err = configureAcquisition(c.Context, s)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Failure(err))
		}
		err = s.dev.StartContinuousRead(c.Context)
		if err != nil {
			return console.Exit(1, "could not start continuous read: %s", console.Failure(err))
		}
		return repeat(c, func(ctx context.Context) (uint16, float64, error) {
			return s.continuousRead(ctx)
		}, s.unit())
	},
}

var shotCmd = cli.Command{
	Name:  "shot",
	Usage: "read the light level with single-shot conversions",
	Flags: append(append([]cli.Flag{}, deviceFlags...), timesFlags...),
	Action: func(c *cli.Context) error {
		s, err := openSession(c, logInterrupt)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Failure(err))
		}
		defer closeSession(c.Context, s)
		err = configureAcquisition(c.Context, s)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Failure(err))
		}
		return repeat(c, s.singleRead, s.unit())
	},
}

var interruptCmd = cli.Command{
	Name:    "interrupt",
	Aliases: []string{"int"},
	Usage:   "wait for the light level to leave the threshold window",
	Flags: append(append([]cli.Flag{}, deviceFlags...),
		&cli.UintFlag{
			Name:  "times",
			Usage: "number of interrupts to handle",
			Value: 3,
		},
		&cli.Float64Flag{
			Name:  "low-threshold",
			Usage: "interrupt low threshold",
			Value: 50,
		},
		&cli.Float64Flag{
			Name:  "high-threshold",
			Usage: "interrupt high threshold",
			Value: 100,
		},
		&cli.BoolFlag{
			Name:  "latch",
			Usage: "latch interrupt flags until read",
			Value: true,
		},
		&cli.StringFlag{
			Name:  "polarity",
			Usage: "INT pin polarity: low or high",
			Value: "low",
		},
		&cli.StringFlag{
			Name:  "int-source",
			Usage: "where the INT pin is read: auto, sim, mcp2221, expander or host",
			Value: "auto",
		},
		&cli.StringFlag{
			Name:  "int-pin",
			Usage: "INT pin: GP pin number for mcp2221, A0..B7 for expander, gpio name for host",
			Value: "1",
		},
		&cli.UintFlag{
			Name:  "expander-addr",
			Usage: "MCP23017 bus address",
			Value: uint(gpio.DefaultMCP23017Address),
		},
		&cli.DurationFlag{
			Name:  "poll",
			Usage: "INT pin poll interval",
			Value: 10 * time.Millisecond,
		},
	),
	Action: func(c *cli.Context) error {
		polarity := opt300x.PolarityLow
		active := gpio.ActiveLow
		switch c.String("polarity") {
		case "low":
		case "high":
			polarity = opt300x.PolarityHigh
			active = gpio.ActiveHigh
		default:
			return console.Exit(1, "unknown polarity %q", c.String("polarity"))
		}

		s, err := openSession(c, logInterrupt)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Failure(err))
		}
		defer closeSession(c.Context, s)
		err = configureInterrupt(c.Context, s, c.Float64("low-threshold"), c.Float64("high-threshold"), c.Bool("latch"), polarity)
		if err != nil {
			return console.Exit(1, "configuration error: %s", console.Failure(err))
		}
		line, err := s.interruptLine(c.Context, c.String("int-source"), c.String("int-pin"), byte(c.Uint("expander-addr")), active)
		if err != nil {
			return console.Exit(1, "interrupt line error: %s", console.Failure(err))
		}

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		times := c.Uint("times")
		var handled uint
		err = gpio.Watch(ctx, line, active, c.Duration("poll"), func(ctx context.Context) error {
			err := s.dev.HandleInterrupt(ctx)
			if err != nil {
				return err
			}
			_, value, err := s.continuousRead(ctx)
			if err != nil && !errors.Is(err, opt300x.ErrOverflow) {
				return err
			}
			handled++
			console.Printf("%d/%d: %s\n", handled, times, console.Reading(value, s.unit()))
			if handled >= times {
				cancel()
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return console.Exit(1, "interrupt handling error: %s", console.Failure(err))
		}
		return nil
	},
}

func logInterrupt(i opt300x.Interrupt) {
	console.PInfof(console.PictoBell, "irq %s", console.Irq(i))
}

// configureAcquisition applies the read settings: auto range, 800ms
// conversions, mask exponent off and a fault count of one.
func configureAcquisition(ctx context.Context, s *session) error {
	err := s.setAutoRange(ctx)
	if err != nil {
		return err
	}
	err = s.dev.SetConversionTime(ctx, opt300x.ConversionTime800ms)
	if err != nil {
		return err
	}
	err = s.dev.SetMaskExponent(ctx, false)
	if err != nil {
		return err
	}
	return s.dev.SetFaultCount(ctx, opt300x.FaultCountOne)
}

func configureInterrupt(ctx context.Context, s *session, low, high float64, latch bool, polarity opt300x.Polarity) error {
	err := configureAcquisition(ctx, s)
	if err != nil {
		return err
	}
	err = s.dev.SetInterruptLatch(ctx, latch)
	if err != nil {
		return err
	}
	err = s.dev.SetInterruptPolarity(ctx, polarity)
	if err != nil {
		return err
	}
	lowReg, err := s.limitToRegister(low)
	if err != nil {
		return err
	}
	err = s.dev.SetLowLimit(ctx, lowReg)
	if err != nil {
		return err
	}
	highReg, err := s.limitToRegister(high)
	if err != nil {
		return err
	}
	err = s.dev.SetHighLimit(ctx, highReg)
	if err != nil {
		return err
	}
	slog.Debug("interrupt window set", "low", lowReg, "high", highReg)
	return s.dev.StartContinuousRead(ctx)
}

func repeat(c *cli.Context, read func(ctx context.Context) (uint16, float64, error), unit string) error {
	times := c.Uint("times")
	for i := uint(1); i <= times; i++ {
		select {
		case <-c.Context.Done():
			return nil
		case <-time.After(c.Duration("interval")):
		}
		raw, value, err := read(c.Context)
		if err != nil {
			console.Errorf("%d/%d: read failed: %s", i, times, console.Failure(err))
			continue
		}
		console.Printf("%d/%d: %s (raw %#04x)\n", i, times, console.Reading(value, unit), raw)
	}
	return nil
}
