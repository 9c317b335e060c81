// Package master implements the HAL over a bus/device handle driver.
//
// Init creates the bus handle. Device handles are created on first access to
// an address and kept until Free, one per address.
package master

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mklimuk/i2chal"
)

var _ i2chal.HAL = &Adapter{}

// Adapter is not safe for concurrent use.
type Adapter struct {
	driver  i2chal.MasterDriver
	opts    i2chal.Opts
	bus     i2chal.Bus
	devices map[uint8]i2chal.Device
	tx      i2chal.Transfers
}

func New(driver i2chal.MasterDriver, opts ...i2chal.Opt) *Adapter {
	return &Adapter{
		driver:  driver,
		opts:    i2chal.NewOpts(opts...),
		devices: make(map[uint8]i2chal.Device),
	}
}

func (a *Adapter) SelectBus(idx uint8) error {
	return fmt.Errorf("select bus %d: %w", idx, i2chal.ErrNotImplemented)
}

func (a *Adapter) Init(ctx context.Context) error {
	if a.bus != nil {
		return fmt.Errorf("bus on port %d already initialized: %w", a.opts.Bus.Port, i2chal.ErrInvalidState)
	}
	err := a.opts.Bus.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration of bus on port %d: %w", a.opts.Bus.Port, err)
	}
	bus, err := a.driver.NewBus(a.opts.Bus)
	if err != nil {
		return fmt.Errorf("could not create i2c bus on port %d: %w", a.opts.Bus.Port, err)
	}
	if bus == nil {
		return fmt.Errorf("could not create i2c bus on port %d: %w", a.opts.Bus.Port, i2chal.ErrNoMem)
	}
	a.bus = bus
	slog.Debug("i2c bus created", "port", a.opts.Bus.Port, "sda", a.opts.Bus.SDA, "scl", a.opts.Bus.SCL, "frequency", a.opts.Bus.Frequency)
	return nil
}

// Free removes all devices, then deletes the bus. A transfer abandoned at its
// deadline is given one more timeout to return first. Handles are dropped even
// when the driver fails to release them; failures are joined under
// ErrTeardown.
func (a *Adapter) Free(ctx context.Context) error {
	var errs []error
	if a.bus != nil {
		err := a.tx.Wait(a.opts.Bus.Timeout)
		if err != nil {
			errs = append(errs, err)
		}
	}
	addresses := a.Devices()
	for _, addr := range addresses {
		err := a.devices[addr].Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("device %#x: %w", addr, err))
		}
		delete(a.devices, addr)
	}
	if a.bus != nil {
		err := a.bus.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("bus on port %d: %w", a.opts.Bus.Port, err))
		}
		a.bus = nil
		slog.Debug("i2c bus deleted", "port", a.opts.Bus.Port, "devices", len(addresses))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", i2chal.ErrTeardown, errors.Join(errs...))
	}
	return nil
}

func (a *Adapter) Read(ctx context.Context, address uint8, buffer []byte) error {
	dev, err := a.device(address)
	if err != nil {
		return fmt.Errorf("could not read from i2c device %#x: %w", address, err)
	}
	err = a.tx.Read(ctx, a.opts.Bus.Timeout, buffer, dev.Receive)
	if err != nil {
		return fmt.Errorf("could not read from i2c device %#x: %w", address, err)
	}
	return nil
}

func (a *Adapter) Write(ctx context.Context, address uint8, buffer []byte) error {
	dev, err := a.device(address)
	if err != nil {
		return fmt.Errorf("could not write to i2c device %#x: %w", address, err)
	}
	err = a.tx.Write(ctx, a.opts.Bus.Timeout, buffer, dev.Transmit)
	if err != nil {
		return fmt.Errorf("could not write to i2c device %#x: %w", address, err)
	}
	return nil
}

func (a *Adapter) SleepUsec(usec uint32) {
	i2chal.Sleep(usec, a.opts.Bus.Tick, a.opts.Sleep)
}

// Devices returns the addresses with a live device handle, in ascending order.
func (a *Adapter) Devices() []uint8 {
	addresses := make([]uint8, 0, len(a.devices))
	for addr := range a.devices {
		addresses = append(addresses, addr)
	}
	slices.Sort(addresses)
	return addresses
}

func (a *Adapter) device(address uint8) (i2chal.Device, error) {
	if a.bus == nil {
		return nil, i2chal.ErrNotInitialized
	}
	if err := i2chal.ValidateAddress(address); err != nil {
		return nil, err
	}
	if dev, ok := a.devices[address]; ok {
		return dev, nil
	}
	dev, err := a.bus.AddDevice(a.opts.Bus.Device(address))
	if err != nil {
		return nil, fmt.Errorf("could not add device: %w", err)
	}
	if dev == nil {
		return nil, fmt.Errorf("could not add device: %w", i2chal.ErrNoMem)
	}
	a.devices[address] = dev
	slog.Debug("i2c device added", "address", fmt.Sprintf("%#x", address))
	return dev, nil
}
