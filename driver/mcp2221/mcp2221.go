// Package mcp2221 drives the Microchip MCP2221 USB to I2C bridge through HID
// reports. The port is the index of the bridge among the attached MCP2221
// devices.
package mcp2221

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/i2chal"
	"github.com/mklimuk/i2chal/halctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const (
	cmdStatus     = 0x10
	cmdWriteData  = 0x90
	cmdReadData   = 0x91
	cmdGetI2CData = 0x40

	statusCancelTransfer = 0x10
	statusSetSpeed       = 0x20
	statusSpeedAccepted  = 0x20

	readDataError = 0x41

	clockHz = 12_000_000
)

var ErrCommandFailed = errors.New("command failed")

var _ i2chal.PortDriver = &MCP2221{}

type MCP2221 struct {
	mx           sync.Mutex
	request      []byte
	response     []byte
	responseWait time.Duration
	installed    map[int]bool
}

type Status struct {
	I2CDataBufferCounter   int    `yaml:"data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"speed_divider"`
	I2CTimeout             int    `yaml:"timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

func New() *MCP2221 {
	return &MCP2221{
		request:      make([]byte, 64),
		response:     make([]byte, 64),
		responseWait: 50 * time.Millisecond,
		installed:    make(map[int]bool),
	}
}

// Configure sets the bridge's i2c clock divider.
func (d *MCP2221) Configure(port int, cfg i2chal.BusConfig) error {
	divider, err := speedDivider(cfg.Frequency)
	if err != nil {
		return err
	}
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[3] = statusSetSpeed
	d.request[4] = divider
	err = d.send(context.Background(), port, true)
	if err != nil {
		return fmt.Errorf("set speed command failed: %w", err)
	}
	if d.response[3] != statusSpeedAccepted {
		return fmt.Errorf("speed %d Hz not accepted: %w", cfg.Frequency, i2chal.ErrBusBusy)
	}
	return nil
}

func (d *MCP2221) Install(port int) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.installed[port] {
		return fmt.Errorf("port %d in use: %w", port, i2chal.ErrInvalidState)
	}
	d.installed[port] = true
	return nil
}

// Delete cancels any pending transfer, leaving the bridge's i2c engine idle.
func (d *MCP2221) Delete(port int) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if !d.installed[port] {
		return fmt.Errorf("port %d not installed: %w", port, i2chal.ErrInvalidState)
	}
	delete(d.installed, port)
	_, err := d.releaseBus(context.Background(), port)
	return err
}

func (d *MCP2221) WriteToDevice(ctx context.Context, port int, address uint8, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(buffer) > len(d.request)-4 {
		return fmt.Errorf("%w: %d bytes exceed a single report", i2chal.ErrInvalidArg, len(buffer))
	}
	d.resetBuffers()
	d.request[0] = cmdWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	if len(buffer) > 0 {
		copy(d.request[4:], buffer)
	}
	err := d.send(ctx, port, true)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	// write could not be performed
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy")
		return i2chal.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) ReadFromDevice(ctx context.Context, port int, address uint8, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(buffer) > len(d.response)-4 {
		return fmt.Errorf("%w: %d bytes exceed a single report", i2chal.ErrInvalidArg, len(buffer))
	}
	d.resetBuffers()
	d.request[0] = cmdReadData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx, port, true)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	d.request[0] = cmdGetI2CData
	resetBuffer(d.response)
	err = d.send(ctx, port, true)
	if err != nil {
		return fmt.Errorf("error getting read data from adapter: %w", err)
	}
	if d.response[1] == readDataError {
		return fmt.Errorf("error reading the I2C slave data from the I2C engine: %w", i2chal.ErrNoAck)
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("invalid data size byte; expected %d, got %d", len(buffer), d.response[3])
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context, port int) (*Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatus
	err := d.send(ctx, port, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func (d *MCP2221) ReleaseBus(ctx context.Context, port int) (*Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.releaseBus(ctx, port)
}

func (d *MCP2221) releaseBus(ctx context.Context, port int) (*Status, error) {
	d.resetBuffers()
	d.request[0] = cmdStatus
	d.request[2] = statusCancelTransfer
	err := d.send(ctx, port, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *Status {
	/*
		9: Lower byte (16-bit value) of the requested I2C transfer length
		10: Higher byte (16-bit value) of the requested I2C transfer length
		11:	Lower byte (16-bit value) of the already transferred (through I2C) number of bytes
		12:	Higher byte (16-bit value) of the already transferred (through I2C) number of bytes
		13:	Internal I2C data buffer counter
		14: Current I2C communication speed divider value
		15: Current I2C timeout value
		16:	Lower byte (16-bit value) of the I2C address being used
		17:	Higher byte (16-bit value) of the I2C address being used
	*/
	status := &Status{
		I2CDataBufferCounter: int(buffer[13]),
		I2CSpeedDivider:      int(buffer[14]),
		I2CTimeout:           int(buffer[15]),
		ReadPending:          int(buffer[25]),
		CurrentAddress:       hex.EncodeToString(buffer[16:18]),
	}
	status.LastWriteRequestedSize = binary.LittleEndian.Uint16(buffer[9:11])
	status.LastWriteSentSize = binary.LittleEndian.Uint16(buffer[11:13])
	return status
}

// speedDivider returns the clock divider for the requested SCL frequency.
// The bridge supports 47 kHz to 400 kHz.
func speedDivider(frequency uint32) (byte, error) {
	if frequency < 47_000 || frequency > 400_000 {
		return 0, fmt.Errorf("%w: frequency %d Hz out of range", i2chal.ErrInvalidArg, frequency)
	}
	return byte(clockHz/frequency - 3), nil
}

func (d *MCP2221) send(ctx context.Context, port int, response bool) error {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return fmt.Errorf("MCP2221 device not found")
	}
	if port >= len(devs) {
		return fmt.Errorf("no device with id %d", port)
	}
	dev, err := devs[port].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	defer func() {
		_ = dev.Close()
	}()
	halctx.Dump(ctx, "sending message to adapter", d.request, "port", port)
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	timer := time.NewTimer(d.responseWait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	slog.Debug("reading response from adapter")
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != 64 {
		return fmt.Errorf("short read: %d", n)
	}
	halctx.Dump(ctx, "read message from adapter", d.response, "port", port)
	return nil
}

func (d *MCP2221) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	clear(buf)
}
