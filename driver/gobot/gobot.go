// Package gobot provides a port driver on top of gobot platform adaptors. The
// port is the gobot bus number.
package gobot

import (
	"context"
	"fmt"
	"io"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/i2chal"
)

var _ i2chal.PortDriver = &Driver{}

type Driver struct {
	mx         sync.Mutex
	connector  i2c.Connector
	connect    func() error
	finalize   func() error
	configured map[int]i2chal.BusConfig
	installed  map[int]bool
}

// NewDriver wraps a connector. connect and finalize bring the adaptor's i2c
// buses up and down; either may be nil.
func NewDriver(connector i2c.Connector, connect, finalize func() error) *Driver {
	return &Driver{
		connector:  connector,
		connect:    connect,
		finalize:   finalize,
		configured: make(map[int]i2chal.BusConfig),
		installed:  make(map[int]bool),
	}
}

// NewNanoPi returns a driver for the FriendlyElec NanoPi NEO.
func NewNanoPi() *Driver {
	npi := nanopi.NewNeoAdaptor()
	return NewDriver(npi, npi.I2cBusAdaptor.Connect, npi.I2cBusAdaptor.Finalize)
}

// Configure records the port configuration. Linux buses take pins and clock
// from the device tree, so only the port is checked.
func (d *Driver) Configure(port int, cfg i2chal.BusConfig) error {
	if port < 0 {
		return fmt.Errorf("%w: port %d", i2chal.ErrInvalidArg, port)
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.configured[port] = cfg
	return nil
}

func (d *Driver) Install(port int) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if _, ok := d.configured[port]; !ok {
		return fmt.Errorf("port %d not configured: %w", port, i2chal.ErrInvalidState)
	}
	if d.installed[port] {
		return fmt.Errorf("port %d in use: %w", port, i2chal.ErrInvalidState)
	}
	if len(d.installed) == 0 && d.connect != nil {
		err := d.connect()
		if err != nil {
			return fmt.Errorf("adaptor connect error: %w", err)
		}
	}
	d.installed[port] = true
	return nil
}

func (d *Driver) Delete(port int) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.installed[port] {
		return fmt.Errorf("port %d not installed: %w", port, i2chal.ErrInvalidState)
	}
	delete(d.installed, port)
	delete(d.configured, port)
	if len(d.installed) == 0 && d.finalize != nil {
		err := d.finalize()
		if err != nil {
			return fmt.Errorf("adaptor finalize error: %w", err)
		}
	}
	return nil
}

func (d *Driver) WriteToDevice(ctx context.Context, port int, address uint8, buffer []byte) error {
	conn, err := d.connection(port, address)
	if err != nil {
		return err
	}
	n, err := conn.Write(buffer)
	if err != nil {
		return fmt.Errorf("write error: %w", i2chal.Classify(err))
	}
	if n != len(buffer) {
		return fmt.Errorf("short write: %d of %d: %w", n, len(buffer), io.ErrShortWrite)
	}
	return nil
}

func (d *Driver) ReadFromDevice(ctx context.Context, port int, address uint8, buffer []byte) error {
	conn, err := d.connection(port, address)
	if err != nil {
		return err
	}
	n, err := conn.Read(buffer)
	if err != nil {
		return fmt.Errorf("read error: %w", i2chal.Classify(err))
	}
	if n != len(buffer) {
		return fmt.Errorf("short read: %d of %d: %w", n, len(buffer), io.ErrUnexpectedEOF)
	}
	return nil
}

func (d *Driver) connection(port int, address uint8) (i2c.Connection, error) {
	d.mx.Lock()
	installed := d.installed[port]
	d.mx.Unlock()
	if !installed {
		return nil, fmt.Errorf("port %d: %w", port, i2chal.ErrInvalidState)
	}
	conn, err := d.connector.GetI2cConnection(int(address), port)
	if err != nil {
		return nil, fmt.Errorf("could not get connection to %#x on bus %d: %w", address, port, err)
	}
	return conn, nil
}
