// Package tinygo exposes any tinygo.org/x/drivers I2C implementation, such as
// machine.I2C0 on a microcontroller, as a master driver.
package tinygo

import (
	"context"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/mklimuk/i2chal"
)

var _ i2chal.MasterDriver = &Driver{}

type Opts struct {
	// Configure applies the bus configuration to the peripheral, typically
	// by calling machine.I2C.Configure.
	Configure func(cfg i2chal.BusConfig) error
}

type Opt func(*Opts)

func WithConfigure(configure func(cfg i2chal.BusConfig) error) Opt {
	return func(o *Opts) {
		o.Configure = configure
	}
}

type Driver struct {
	i2c    drivers.I2C
	config Opts
	open   bool
}

func NewDriver(i2c drivers.I2C, opts ...Opt) *Driver {
	var config Opts
	for _, opt := range opts {
		opt(&config)
	}
	return &Driver{i2c: i2c, config: config}
}

func (d *Driver) NewBus(cfg i2chal.BusConfig) (i2chal.Bus, error) {
	if d.open {
		return nil, fmt.Errorf("i2c peripheral in use: %w", i2chal.ErrInvalidState)
	}
	if d.config.Configure != nil {
		err := d.config.Configure(cfg)
		if err != nil {
			return nil, fmt.Errorf("could not configure i2c peripheral: %w", err)
		}
	}
	d.open = true
	return &bus{driver: d}, nil
}

type bus struct {
	driver *Driver
	closed bool
}

func (b *bus) AddDevice(cfg i2chal.DeviceConfig) (i2chal.Device, error) {
	if b.closed {
		return nil, fmt.Errorf("bus deleted: %w", i2chal.ErrInvalidState)
	}
	if cfg.AddressWidth != i2chal.AddressWidth7Bit {
		return nil, fmt.Errorf("%w: address width %d", i2chal.ErrInvalidArg, cfg.AddressWidth)
	}
	return &device{i2c: b.driver.i2c, addr: uint16(cfg.Address)}, nil
}

// Close releases the peripheral; tinygo has no way to unconfigure it.
func (b *bus) Close() error {
	if b.closed {
		return fmt.Errorf("bus already deleted: %w", i2chal.ErrInvalidState)
	}
	b.closed = true
	b.driver.open = false
	return nil
}

type device struct {
	i2c  drivers.I2C
	addr uint16
}

func (d *device) Transmit(ctx context.Context, buffer []byte) error {
	return i2chal.Classify(d.i2c.Tx(d.addr, buffer, nil))
}

func (d *device) Receive(ctx context.Context, buffer []byte) error {
	return i2chal.Classify(d.i2c.Tx(d.addr, nil, buffer))
}

func (d *device) Close() error {
	return nil
}
