// Package loopback provides an in-memory i2c driver. Every attached device
// echoes back the last bytes written to it. It implements both the port and
// the master driver contracts.
package loopback

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/i2chal"
	"github.com/mklimuk/i2chal/halctx"
)

var (
	_ i2chal.PortDriver   = &Loopback{}
	_ i2chal.MasterDriver = &Loopback{}
)

type Loopback struct {
	mx         sync.Mutex
	configured map[int]i2chal.BusConfig
	installed  map[int]bool
	memory     map[uint8][]byte
	stalled    map[uint8]bool
}

// New returns a loopback with devices attached at the given addresses.
func New(addresses ...uint8) *Loopback {
	l := &Loopback{
		configured: make(map[int]i2chal.BusConfig),
		installed:  make(map[int]bool),
		memory:     make(map[uint8][]byte),
		stalled:    make(map[uint8]bool),
	}
	for _, addr := range addresses {
		l.memory[addr] = nil
	}
	return l
}

func (l *Loopback) Attach(address uint8) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if _, ok := l.memory[address]; !ok {
		l.memory[address] = nil
	}
}

// Stall makes transfers to address block until their context is done, like
// a slave holding the clock line low.
func (l *Loopback) Stall(address uint8) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.memory[address] = nil
	l.stalled[address] = true
}

func (l *Loopback) Installed(port int) bool {
	l.mx.Lock()
	defer l.mx.Unlock()
	return l.installed[port]
}

func (l *Loopback) Configure(port int, cfg i2chal.BusConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.mx.Lock()
	defer l.mx.Unlock()
	l.configured[port] = cfg
	return nil
}

func (l *Loopback) Install(port int) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	if _, ok := l.configured[port]; !ok {
		return fmt.Errorf("port %d not configured: %w", port, i2chal.ErrInvalidState)
	}
	if l.installed[port] {
		return fmt.Errorf("port %d in use: %w", port, i2chal.ErrInvalidState)
	}
	l.installed[port] = true
	return nil
}

func (l *Loopback) Delete(port int) error {
	l.mx.Lock()
	defer l.mx.Unlock()
	if !l.installed[port] {
		return fmt.Errorf("port %d not installed: %w", port, i2chal.ErrInvalidState)
	}
	delete(l.installed, port)
	return nil
}

func (l *Loopback) WriteToDevice(ctx context.Context, port int, address uint8, buffer []byte) error {
	if !l.Installed(port) {
		return fmt.Errorf("port %d: %w", port, i2chal.ErrInvalidState)
	}
	return l.write(ctx, address, buffer)
}

func (l *Loopback) ReadFromDevice(ctx context.Context, port int, address uint8, buffer []byte) error {
	if !l.Installed(port) {
		return fmt.Errorf("port %d: %w", port, i2chal.ErrInvalidState)
	}
	return l.read(ctx, address, buffer)
}

func (l *Loopback) NewBus(cfg i2chal.BusConfig) (i2chal.Bus, error) {
	err := l.Configure(cfg.Port, cfg)
	if err != nil {
		return nil, err
	}
	err = l.Install(cfg.Port)
	if err != nil {
		return nil, err
	}
	return &bus{loop: l, port: cfg.Port, devices: make(map[*device]struct{})}, nil
}

func (l *Loopback) write(ctx context.Context, address uint8, buffer []byte) error {
	if err := l.wait(ctx, address); err != nil {
		return err
	}
	halctx.Dump(ctx, "loopback write", buffer, "address", fmt.Sprintf("%#x", address))
	l.mx.Lock()
	defer l.mx.Unlock()
	l.memory[address] = append([]byte(nil), buffer...)
	return nil
}

func (l *Loopback) read(ctx context.Context, address uint8, buffer []byte) error {
	if err := l.wait(ctx, address); err != nil {
		return err
	}
	l.mx.Lock()
	n := copy(buffer, l.memory[address])
	l.mx.Unlock()
	clear(buffer[n:])
	halctx.Dump(ctx, "loopback read", buffer, "address", fmt.Sprintf("%#x", address))
	return nil
}

func (l *Loopback) wait(ctx context.Context, address uint8) error {
	l.mx.Lock()
	_, present := l.memory[address]
	stalled := l.stalled[address]
	l.mx.Unlock()
	if !present {
		return fmt.Errorf("%w: address %#x", i2chal.ErrNoAck, address)
	}
	if stalled {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

type bus struct {
	loop    *Loopback
	port    int
	closed  bool
	devices map[*device]struct{}
}

func (b *bus) AddDevice(cfg i2chal.DeviceConfig) (i2chal.Device, error) {
	if b.closed {
		return nil, fmt.Errorf("bus on port %d deleted: %w", b.port, i2chal.ErrInvalidState)
	}
	if cfg.AddressWidth != i2chal.AddressWidth7Bit {
		return nil, fmt.Errorf("%w: address width %d", i2chal.ErrInvalidArg, cfg.AddressWidth)
	}
	dev := &device{bus: b, address: cfg.Address}
	b.devices[dev] = struct{}{}
	return dev, nil
}

func (b *bus) Close() error {
	if b.closed {
		return fmt.Errorf("bus on port %d already deleted: %w", b.port, i2chal.ErrInvalidState)
	}
	if len(b.devices) > 0 {
		return fmt.Errorf("bus on port %d has %d devices attached: %w", b.port, len(b.devices), i2chal.ErrInvalidState)
	}
	b.closed = true
	return b.loop.Delete(b.port)
}

type device struct {
	bus     *bus
	address uint8
	removed bool
}

func (d *device) Transmit(ctx context.Context, buffer []byte) error {
	if d.removed {
		return fmt.Errorf("device %#x removed: %w", d.address, i2chal.ErrInvalidState)
	}
	return d.bus.loop.write(ctx, d.address, buffer)
}

func (d *device) Receive(ctx context.Context, buffer []byte) error {
	if d.removed {
		return fmt.Errorf("device %#x removed: %w", d.address, i2chal.ErrInvalidState)
	}
	return d.bus.loop.read(ctx, d.address, buffer)
}

func (d *device) Close() error {
	if d.removed {
		return fmt.Errorf("device %#x already removed: %w", d.address, i2chal.ErrInvalidState)
	}
	d.removed = true
	delete(d.bus.devices, d)
	return nil
}
