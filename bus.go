package i2chal

import (
	"context"
)

// HAL is the contract a sensor driver expects from the platform: one bus,
// blocking byte transfers to 7-bit addresses and a coarse sleep.
type HAL interface {
	// SelectBus routes following transfers to the bus with the given index.
	// Single-bus setups do not implement it.
	SelectBus(idx uint8) error
	Init(ctx context.Context) error
	Free(ctx context.Context) error
	Read(ctx context.Context, address uint8, buffer []byte) error
	Write(ctx context.Context, address uint8, buffer []byte) error
	SleepUsec(usec uint32)
}

// PortDriver is a port addressed I2C master driver. Every transfer names the
// port and the device address; there are no device handles.
type PortDriver interface {
	Configure(port int, cfg BusConfig) error
	Install(port int) error
	Delete(port int) error
	WriteToDevice(ctx context.Context, port int, address uint8, buffer []byte) error
	ReadFromDevice(ctx context.Context, port int, address uint8, buffer []byte) error
}

// MasterDriver hands out bus handles which in turn hand out device handles.
type MasterDriver interface {
	NewBus(cfg BusConfig) (Bus, error)
}

// Bus is an initialized master bus.
type Bus interface {
	AddDevice(cfg DeviceConfig) (Device, error)
	// Close deletes the bus. All devices must be removed before.
	Close() error
}

// Device is a slave device attached to a Bus.
type Device interface {
	Transmit(ctx context.Context, buffer []byte) error
	Receive(ctx context.Context, buffer []byte) error
	// Close removes the device from its bus.
	Close() error
}
