package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/i2chal/cmd/i2chal/console"
	"github.com/mklimuk/i2chal/driver/mcp2221"
	"github.com/mklimuk/i2chal/halctx"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "inspect the MCP2221 bridge",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		return printMCP2221Status(c, func(ctx context.Context, a *mcp2221.MCP2221, port int) (*mcp2221.Status, error) {
			return a.Status(ctx, port)
		})
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name: "release",
	Action: func(c *cli.Context) error {
		return printMCP2221Status(c, func(ctx context.Context, a *mcp2221.MCP2221, port int) (*mcp2221.Status, error) {
			return a.ReleaseBus(ctx, port)
		})
	},
}

func printMCP2221Status(c *cli.Context, get func(ctx context.Context, a *mcp2221.MCP2221, port int) (*mcp2221.Status, error)) error {
	ctx := halctx.WithTrace(context.Background(), c.Bool("verbose"))
	status, err := get(ctx, mcp2221.New(), c.Int("port"))
	if err != nil {
		return console.Exit(1, "adapter communication error: %s", console.Red(err))
	}
	enc := yaml.NewEncoder(os.Stdout)
	err = enc.Encode(status)
	if err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}
