// Package periph provides a master driver on top of periph.io buses, e.g.
// Linux i2c-dev character devices.
package periph

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/i2chal"
)

var _ i2chal.MasterDriver = &Driver{}

// Driver opens the bus named by dev, or the bus numbered after the configured
// port when dev is empty.
type Driver struct {
	dev     string
	once    sync.Once
	initErr error
	open    func(name string) (i2c.BusCloser, error)
}

func NewDriver(dev string) *Driver {
	return &Driver{dev: dev, open: i2creg.Open}
}

func (d *Driver) NewBus(cfg i2chal.BusConfig) (i2chal.Bus, error) {
	d.once.Do(func() {
		state, err := host.Init()
		if err != nil {
			d.initErr = fmt.Errorf("could not init host: %w", err)
			return
		}
		for _, driver := range state.Loaded {
			slog.Debug("periph driver loaded", "driver", driver.String())
		}
	})
	if d.initErr != nil {
		return nil, d.initErr
	}
	name := d.dev
	if name == "" {
		name = strconv.Itoa(cfg.Port)
	}
	bus, err := d.open(name)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus %s: %w", name, err)
	}
	return newBus(bus, cfg), nil
}

type Bus struct {
	bus i2c.BusCloser
}

func newBus(bus i2c.BusCloser, cfg i2chal.BusConfig) *Bus {
	err := bus.SetSpeed(physic.Frequency(cfg.Frequency) * physic.Hertz)
	if err != nil {
		// sysfs buses take their clock from the device tree
		slog.Debug("bus speed not applied", "bus", bus.String(), "frequency", cfg.Frequency, "error", err)
	}
	return &Bus{bus: bus}
}

func (b *Bus) AddDevice(cfg i2chal.DeviceConfig) (i2chal.Device, error) {
	if cfg.AddressWidth != i2chal.AddressWidth7Bit {
		return nil, fmt.Errorf("%w: address width %d", i2chal.ErrInvalidArg, cfg.AddressWidth)
	}
	return &Device{dev: &i2c.Dev{Bus: b.bus, Addr: uint16(cfg.Address)}}, nil
}

func (b *Bus) Close() error {
	return b.bus.Close()
}

type Device struct {
	dev *i2c.Dev
}

func (d *Device) Transmit(ctx context.Context, buffer []byte) error {
	err := d.dev.Tx(buffer, nil)
	if err != nil {
		return fmt.Errorf("could not write to i2c bus %x: %w", d.dev.Addr, i2chal.Classify(err))
	}
	return nil
}

func (d *Device) Receive(ctx context.Context, buffer []byte) error {
	err := d.dev.Tx(nil, buffer)
	if err != nil {
		return fmt.Errorf("could not read from i2c bus %x: %w", d.dev.Addr, i2chal.Classify(err))
	}
	return nil
}

// Close is a no-op: periph devices are plain bus and address pairs.
func (d *Device) Close() error {
	return nil
}
