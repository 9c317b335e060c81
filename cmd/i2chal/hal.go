package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2chal"
	"github.com/mklimuk/i2chal/cmd/i2chal/console"
	"github.com/mklimuk/i2chal/config"
	"github.com/mklimuk/i2chal/driver/gobot"
	"github.com/mklimuk/i2chal/driver/loopback"
	"github.com/mklimuk/i2chal/driver/mcp2221"
	"github.com/mklimuk/i2chal/driver/periph"
	"github.com/mklimuk/i2chal/halctx"
	"github.com/mklimuk/i2chal/legacy"
	"github.com/mklimuk/i2chal/master"
)

// loopbackAddress is the device attached to the loopback driver.
const loopbackAddress = 0x42

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("variant") {
		cfg.Variant = c.String("variant")
	}
	if c.IsSet("driver") {
		cfg.Driver = c.String("driver")
	}
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.IsSet("port") {
		cfg.Bus.Port = c.Int("port")
	}
	return cfg, cfg.Validate()
}

func newHAL(cfg config.Config) (i2chal.HAL, error) {
	opts := []i2chal.Opt{i2chal.WithBusConfig(cfg.Bus)}
	switch cfg.Variant {
	case config.VariantLegacy:
		var driver i2chal.PortDriver
		switch cfg.Driver {
		case config.DriverLoopback:
			driver = loopback.New(loopbackAddress)
		case config.DriverGobot:
			driver = gobot.NewNanoPi()
		case config.DriverMCP2221:
			driver = mcp2221.New()
		default:
			return nil, fmt.Errorf("driver %s has no port interface", cfg.Driver)
		}
		return legacy.New(driver, opts...), nil
	case config.VariantMaster:
		var driver i2chal.MasterDriver
		switch cfg.Driver {
		case config.DriverLoopback:
			driver = loopback.New(loopbackAddress)
		case config.DriverPeriph:
			driver = periph.NewDriver(cfg.Device)
		default:
			return nil, fmt.Errorf("driver %s has no bus interface", cfg.Driver)
		}
		return master.New(driver, opts...), nil
	}
	return nil, fmt.Errorf("unknown variant %q", cfg.Variant)
}

// openHAL builds the adapter without initializing the bus.
func openHAL(c *cli.Context) (i2chal.HAL, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, console.Exit(1, "configuration error: %s", console.Red(err))
	}
	h, err := newHAL(cfg)
	if err != nil {
		return nil, console.Exit(1, "adapter error: %s", console.Red(err))
	}
	return h, nil
}

// withHAL runs fn between Init and Free of the configured adapter.
func withHAL(c *cli.Context, fn func(ctx context.Context, h i2chal.HAL) error) error {
	h, err := openHAL(c)
	if err != nil {
		return err
	}
	ctx := halctx.WithTrace(c.Context, c.Bool("verbose"))
	err = h.Init(ctx)
	if err != nil {
		return console.ExitStatus("adapter initialization", err)
	}
	defer func() {
		err := h.Free(ctx)
		if err != nil {
			console.Errorf("error closing bus: %s", console.Red(err))
		}
	}()
	return fn(ctx, h)
}

func parseAddress(s string) (uint8, error) {
	addr, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("could not parse address %q: %w", s, err)
	}
	err = i2chal.ValidateAddress(uint8(addr))
	if err != nil {
		return 0, err
	}
	return uint8(addr), nil
}
