package environment

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

const HIH6021Address = 0x27

// measurement cycle takes typically 36.65ms
const hih6021MeasureUsec = 50_000

var divider = float32(1<<14 - 2)

var ErrStaleData = errors.New("stale data")
var ErrCommandMode = errors.New("device in command mode")

// HIH6021 represents Honeywell HumidIcon Digital Humidity/Temperature sensor
type HIH6021 struct {
	transport Transport
	lastTemp  float32
	lastHum   float32
}

func NewHIH6021(trans Transport) *HIH6021 {
	return &HIH6021{transport: trans}
}

func (sensor *HIH6021) GetTemperature(ctx context.Context) (float32, error) {
	err := sensor.measure(ctx)
	return sensor.lastTemp, err
}

func (sensor *HIH6021) GetHumidity(ctx context.Context) (float32, error) {
	err := sensor.measure(ctx)
	return sensor.lastHum, err
}

func (sensor *HIH6021) GetTempAndHum(ctx context.Context) (float32, float32, error) {
	err := sensor.measure(ctx)
	return sensor.lastTemp, sensor.lastHum, err
}

func (sensor *HIH6021) measure(ctx context.Context) error {
	// an empty write is the measurement request
	err := sensor.transport.Write(ctx, HIH6021Address, []byte{})
	if err != nil {
		return fmt.Errorf("could not write measurement request to device: %w", err)
	}
	sensor.transport.SleepUsec(hih6021MeasureUsec)
	resp := make([]byte, 4)
	err = sensor.transport.Read(ctx, HIH6021Address, resp)
	if err != nil {
		return fmt.Errorf("could not read measurement from device: %w", err)
	}
	if resp[0]&0x80 > 0 {
		return ErrCommandMode
	}
	// data already fetched since the last measurement
	if resp[0]&0x40 > 0 {
		return ErrStaleData
	}
	sensor.lastHum = convertHumidity(resp[0:2])
	sensor.lastTemp = convertTemperature(resp[2:4])
	return nil
}

func convertHumidity(resp []byte) float32 {
	hum := float32(binary.BigEndian.Uint16(resp)) / divider * 100
	if hum > 100.00 {
		return 100.00
	}
	return hum
}

func convertTemperature(resp []byte) float32 {
	shift := resp[0] & 0x03
	shift <<= 6
	lsb := (resp[1] >> 2) | shift
	msb := resp[0] >> 2
	return float32(binary.BigEndian.Uint16([]byte{msb, lsb}))/divider*165 - 40
}
