package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/als/cmd/als/console"
)

var registers = map[string]byte{
	"result":       0x00,
	"config":       0x01,
	"low":          0x02,
	"high":         0x03,
	"manufacturer": 0x7E,
	"device":       0x7F,
}

// parseRegister accepts a register name or its address, e.g. "config" or "0x01".
func parseRegister(s string) (byte, error) {
	if reg, ok := registers[strings.ToLower(s)]; ok {
		return reg, nil
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown register %q", s)
	}
	return byte(v), nil
}

func parseWord(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid register value %q", s)
	}
	return uint16(v), nil
}

var configCmd = cli.Command{
	Name: "config",
	Subcommands: []*cli.Command{
		&configShowCmd,
	},
}

var configShowCmd = cli.Command{
	Name:  "show",
	Usage: "decode the configuration register",
	Flags: deviceFlags,
	Action: func(c *cli.Context) error {
		s, err := openSession(c, logInterrupt)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Failure(err))
		}
		defer closeSession(c.Context, s)
		conf, err := s.dev.GetConfiguration(c.Context)
		if err != nil {
			return console.Exit(1, "could not read configuration: %s", console.Failure(err))
		}
		enc := yaml.NewEncoder(console.Output())
		defer func() { _ = enc.Close() }()
		err = enc.Encode(conf.Fields())
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Failure(err))
		}
		return nil
	},
}

var regCmd = cli.Command{
	Name:  "reg",
	Usage: "raw register access",
	Subcommands: []*cli.Command{
		&regGetCmd,
		&regSetCmd,
	},
}

var regGetCmd = cli.Command{
	Name:      "get",
	ArgsUsage: "<register>",
	Flags:     deviceFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		reg, err := parseRegister(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Failure(err))
		}
		s, err := openSession(c, logInterrupt)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Failure(err))
		}
		defer closeSession(c.Context, s)
		value, err := s.dev.GetRegister(c.Context, reg)
		if err != nil {
			return console.Exit(1, "could not read register: %s", console.Failure(err))
		}
		console.Printf("%#02x: %s\n", reg, console.Word(value))
		return nil
	},
}

var regSetCmd = cli.Command{
	Name:      "set",
	ArgsUsage: "<register> <value>",
	Flags: append(append([]cli.Flag{}, deviceFlags...), &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "do not ask for confirmation",
	}),
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		reg, err := parseRegister(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "%s", console.Failure(err))
		}
		value, err := parseWord(c.Args().Get(1))
		if err != nil {
			return console.Exit(1, "%s", console.Failure(err))
		}
		if !c.Bool("yes") {
			answer, err := console.YesOrNo(fmt.Sprintf("write %#04x to register %#02x?", value, reg))
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Failure(err))
			}
			if answer != console.Yes {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}
		s, err := openSession(c, logInterrupt)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Failure(err))
		}
		defer closeSession(c.Context, s)
		err = s.dev.SetRegister(c.Context, reg, value)
		if err != nil {
			return console.Exit(1, "could not write register: %s", console.Failure(err))
		}
		console.Printf("%#02x: %s\n", reg, console.Written(value))
		return nil
	},
}

var selftestCmd = cli.Command{
	Name:  "selftest",
	Usage: "write and read back every configuration field",
	Flags: deviceFlags,
	Action: func(c *cli.Context) error {
		s, err := openSession(c, logInterrupt)
		if err != nil {
			return console.Exit(1, "device initialization error: %s", console.Failure(err))
		}
		defer closeSession(c.Context, s)
		failed := 0
		for _, res := range selftest(c.Context, s) {
			if res.err != nil {
				failed++
				console.Errorf("%s: %s", res.name, console.Failure(res.err))
				continue
			}
			console.PInfof(console.PictoCheck, "%s", res.name)
		}
		if failed > 0 {
			return console.Exit(1, "%d checks failed", failed)
		}
		return nil
	},
}
