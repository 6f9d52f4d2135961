package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/als/adapter"
	"github.com/mklimuk/als/cmd/als/console"
)

var indexFlag = &cli.IntFlag{
	Name:  "mcp2221-index",
	Usage: "index of the MCP2221 when more than one is connected",
	Value: -1,
}

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "MCP2221 USB bridge maintenance",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221GPIOCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithIndex(c.Int("mcp2221-index")))
		status, err := a.Status(c.Context)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Failure(err))
		}
		return encodeYAML(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a stuck transfer and release the bus",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithIndex(c.Int("mcp2221-index")))
		status, err := a.ReleaseBus(c.Context)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Failure(err))
		}
		return encodeYAML(status)
	},
}

var mcp2221GPIOCmd = cli.Command{
	Name:  "gpio",
	Usage: "show GP pin settings and levels",
	Flags: []cli.Flag{indexFlag},
	Action: func(c *cli.Context) error {
		a := adapter.NewMCP2221(adapter.WithIndex(c.Int("mcp2221-index")))
		err := a.Open(c.Context)
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Failure(err))
		}
		defer func() { _ = a.Close() }()
		pins, err := gpioReport(c.Context, a)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Failure(err))
		}
		return encodeYAML(pins)
	},
}

type gpioPin struct {
	Pin         string `yaml:"pin"`
	Mode        string `yaml:"mode"`
	Designation byte   `yaml:"designation"`
	Value       byte   `yaml:"value"`
}

func gpioReport(ctx context.Context, a *adapter.MCP2221) ([]gpioPin, error) {
	params, err := a.GetGPIOParameters(ctx)
	if err != nil {
		return nil, err
	}
	values, err := a.ReadGPIO(ctx)
	if err != nil {
		return nil, err
	}
	pins := make([]gpioPin, len(params.Mode))
	for i := range pins {
		pins[i] = gpioPin{
			Pin:         fmt.Sprintf("GP%d", i),
			Mode:        params.Mode[i].String(),
			Designation: byte(params.Designation[i]),
			Value:       values.Value[i],
		}
	}
	return pins, nil
}

func encodeYAML(v any) error {
	enc := yaml.NewEncoder(console.Output())
	defer func() { _ = enc.Close() }()
	err := enc.Encode(v)
	if err != nil {
		return console.Exit(1, "encoding error: %s", console.Failure(err))
	}
	return nil
}
