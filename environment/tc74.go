package environment

import (
	"context"
	"errors"
	"fmt"
)

const TC74Address = 0x4D

const (
	tc74TempRegister   = 0x00
	tc74ConfigRegister = 0x01

	tc74DataReady = 0x40
)

var ErrNotReady = errors.New("conversion not ready")

// TC74 represents a Microchip TC74 Digital Temperature Sensor
// See: https://ww1.microchip.com/downloads/en/DeviceDoc/21462D.pdf
type TC74 struct {
	transport Transport
	address   uint8
}

type TC74Config struct {
	Address uint8
}

type TC74ConfigOption func(*TC74Config)

func WithAddress(address uint8) TC74ConfigOption {
	return func(c *TC74Config) {
		c.Address = address
	}
}

func NewTC74(trans Transport, opts ...TC74ConfigOption) *TC74 {
	config := &TC74Config{
		Address: TC74Address,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &TC74{transport: trans, address: config.Address}
}

func (sensor *TC74) GetConfig(ctx context.Context) (byte, error) {
	return sensor.register(ctx, tc74ConfigRegister)
}

// GetTemperature reads the temperature register once the DATA_RDY bit is set.
func (sensor *TC74) GetTemperature(ctx context.Context) (float32, error) {
	config, err := sensor.GetConfig(ctx)
	if err != nil {
		return 0, fmt.Errorf("tc74: could not get config: %w", err)
	}
	if config&tc74DataReady == 0 {
		return 0, fmt.Errorf("tc74: %w", ErrNotReady)
	}
	raw, err := sensor.register(ctx, tc74TempRegister)
	if err != nil {
		return 0, fmt.Errorf("tc74: could not get temperature: %w", err)
	}
	// two's complement
	return float32(int8(raw)), nil
}

func (sensor *TC74) register(ctx context.Context, reg byte) (byte, error) {
	err := sensor.transport.Write(ctx, sensor.address, []byte{reg})
	if err != nil {
		return 0, fmt.Errorf("could not select register %#x: %w", reg, err)
	}
	resp := make([]byte, 1)
	err = sensor.transport.Read(ctx, sensor.address, resp)
	if err != nil {
		return 0, fmt.Errorf("could not read register %#x: %w", reg, err)
	}
	return resp[0], nil
}
