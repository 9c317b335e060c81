package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2chal"
	"github.com/mklimuk/i2chal/cmd/i2chal/console"
)

// 0x00-0x07 and 0x78-0x7F are reserved addresses
const (
	scanFirst = 0x08
	scanLast  = 0x77
)

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "read bytes from a device",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "7-bit device address", Required: true},
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: "number of bytes to read", Value: 1},
	},
	Action: func(c *cli.Context) error {
		addr, err := parseAddress(c.String("addr"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		count := c.Int("count")
		if count < 0 || count > 0xFFFF {
			return console.Exit(1, "count out of range: %d", count)
		}
		return withHAL(c, func(ctx context.Context, h i2chal.HAL) error {
			buf := make([]byte, count)
			err := h.Read(ctx, addr, buf)
			if err != nil {
				return console.ExitStatus("read", err)
			}
			console.Printf("%s", hex.Dump(buf))
			return nil
		})
	},
}

var writeCmd = cli.Command{
	Name:      "write",
	Aliases:   []string{"wr"},
	Usage:     "write hex encoded bytes to a device",
	ArgsUsage: "<hex bytes>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "7-bit device address", Required: true},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		addr, err := parseAddress(c.String("addr"))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		data, err := hex.DecodeString(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "could not decode data: %v", err)
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("write %d bytes to %#x?", len(data), addr))
			if err != nil {
				return console.Exit(1, "prompt error: %v", err)
			}
			if !ok {
				console.Warn("aborted")
				return nil
			}
		}
		return withHAL(c, func(ctx context.Context, h i2chal.HAL) error {
			err := h.Write(ctx, addr, data)
			if err != nil {
				return console.ExitStatus("write", err)
			}
			console.Infof("wrote %s bytes to %s", console.White(len(data)), console.White(fmt.Sprintf("%#x", addr)))
			return nil
		})
	},
}

var scanCmd = cli.Command{
	Name:  "scan",
	Usage: "read one byte from every address and list the devices that answer",
	Action: func(c *cli.Context) error {
		return withHAL(c, func(ctx context.Context, h i2chal.HAL) error {
			w := tabwriter.NewWriter(os.Stdout, 8, 0, 1, ' ', 0)
			_, _ = fmt.Fprintf(w, "ADDRESS\tSTATUS\n")
			buf := make([]byte, 1)
			for addr := scanFirst; addr <= scanLast; addr++ {
				err := h.Read(ctx, uint8(addr), buf)
				switch {
				case err == nil:
					_, _ = fmt.Fprintf(w, "%#x\t%s\n", addr, console.Green("ACK"))
				case errors.Is(err, i2chal.ErrNoAck):
					console.Debugf("no device at %#x", addr)
				default:
					_, _ = fmt.Fprintf(w, "%#x\t%s\n", addr, console.Code(i2chal.CodeOf(err)))
				}
			}
			_ = w.Flush()
			return nil
		})
	},
}

var selectBusCmd = cli.Command{
	Name:      "select-bus",
	Usage:     "select the bus used by following transfers",
	ArgsUsage: "<index>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		idx, err := strconv.ParseUint(c.Args().Get(0), 0, 8)
		if err != nil {
			return console.Exit(1, "could not parse bus index: %v", err)
		}
		h, err := openHAL(c)
		if err != nil {
			return err
		}
		err = h.SelectBus(uint8(idx))
		console.Printf("status: %s\n", console.Code(i2chal.CodeOf(err)))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		return nil
	},
}
