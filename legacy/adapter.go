// Package legacy implements the HAL over a port addressed driver. The port is
// configured and installed once; every transfer names the port and address.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mklimuk/i2chal"
)

var _ i2chal.HAL = &Adapter{}

// Adapter is not safe for concurrent use.
type Adapter struct {
	driver    i2chal.PortDriver
	opts      i2chal.Opts
	installed bool
	tx        i2chal.Transfers
}

func New(driver i2chal.PortDriver, opts ...i2chal.Opt) *Adapter {
	return &Adapter{
		driver: driver,
		opts:   i2chal.NewOpts(opts...),
	}
}

func (a *Adapter) SelectBus(idx uint8) error {
	return fmt.Errorf("select bus %d: %w", idx, i2chal.ErrNotImplemented)
}

func (a *Adapter) Init(ctx context.Context) error {
	port := a.opts.Bus.Port
	if a.installed {
		return fmt.Errorf("port %d already installed: %w", port, i2chal.ErrInvalidState)
	}
	err := a.opts.Bus.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration of i2c port %d: %w", port, err)
	}
	err = a.driver.Configure(port, a.opts.Bus)
	if err != nil {
		return fmt.Errorf("could not configure i2c port %d: %w", port, err)
	}
	err = a.driver.Install(port)
	if err != nil {
		return fmt.Errorf("could not install i2c driver on port %d: %w", port, err)
	}
	a.installed = true
	slog.Debug("i2c port installed", "port", port, "sda", a.opts.Bus.SDA, "scl", a.opts.Bus.SCL, "frequency", a.opts.Bus.Frequency)
	return nil
}

// Free deletes the driver from the port once a transfer abandoned at its
// deadline has returned or timed out once more. The adapter is left
// uninstalled even if the driver reports a failure.
func (a *Adapter) Free(ctx context.Context) error {
	if !a.installed {
		return nil
	}
	port := a.opts.Bus.Port
	a.installed = false
	var errs []error
	err := a.tx.Wait(a.opts.Bus.Timeout)
	if err != nil {
		errs = append(errs, err)
	}
	err = a.driver.Delete(port)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: port %d: %w", i2chal.ErrTeardown, port, errors.Join(errs...))
	}
	slog.Debug("i2c port released", "port", port)
	return nil
}

func (a *Adapter) Read(ctx context.Context, address uint8, buffer []byte) error {
	if err := a.ready(address); err != nil {
		return fmt.Errorf("could not read from i2c device %#x: %w", address, err)
	}
	port := a.opts.Bus.Port
	err := a.tx.Read(ctx, a.opts.Bus.Timeout, buffer, func(ctx context.Context, buffer []byte) error {
		return a.driver.ReadFromDevice(ctx, port, address, buffer)
	})
	if err != nil {
		return fmt.Errorf("could not read from i2c device %#x: %w", address, err)
	}
	return nil
}

func (a *Adapter) Write(ctx context.Context, address uint8, buffer []byte) error {
	if err := a.ready(address); err != nil {
		return fmt.Errorf("could not write to i2c device %#x: %w", address, err)
	}
	port := a.opts.Bus.Port
	err := a.tx.Write(ctx, a.opts.Bus.Timeout, buffer, func(ctx context.Context, buffer []byte) error {
		return a.driver.WriteToDevice(ctx, port, address, buffer)
	})
	if err != nil {
		return fmt.Errorf("could not write to i2c device %#x: %w", address, err)
	}
	return nil
}

func (a *Adapter) SleepUsec(usec uint32) {
	i2chal.Sleep(usec, a.opts.Bus.Tick, a.opts.Sleep)
}

func (a *Adapter) ready(address uint8) error {
	if !a.installed {
		return i2chal.ErrNotInitialized
	}
	return i2chal.ValidateAddress(address)
}
