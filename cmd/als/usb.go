package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/karalabe/hid"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/als/adapter"
	"github.com/mklimuk/als/cmd/als/console"
)

var usbCmd = cli.Command{
	Name:  "usb",
	Usage: "list USB HID devices",
	Subcommands: cli.Commands{
		&usbLsCmd,
		&usbDetectCmd,
	},
}

var usbLsCmd = cli.Command{
	Name: "ls",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(console.Output(), 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "PATH\tSERIAL\tVENDOR\tPRODUCT ID\tMANUFACTURER\tPRODUCT\n")
		for _, dev := range hid.Enumerate(0, 0) {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%#x\t%#x\t%s\t%s\n",
				dev.Path, dev.Serial, dev.VendorID, dev.ProductID, dev.Manufacturer, dev.Product)
		}
		return w.Flush()
	},
}

var usbDetectCmd = cli.Command{
	Name:  "detect",
	Usage: "list connected I2C bridges",
	Action: func(c *cli.Context) error {
		w := tabwriter.NewWriter(console.Output(), 24, 0, 1, ' ', 0)
		_, _ = fmt.Fprintf(w, "INDEX\tVENDOR\tPRODUCT\tDEVICE\tSERIAL\n")
		for i, dev := range hid.Enumerate(adapter.VendorID, adapter.ProductID) {
			_, _ = fmt.Fprintf(w, "%d\t%#x\t%#x\t%s\t%s\n", i, dev.VendorID, dev.ProductID, "MCP2221", dev.Serial)
		}
		return w.Flush()
	},
}
