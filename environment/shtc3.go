package environment

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/sigurn/crc8"
)

// SHTC3 I2C address (7-bit)
const SHTC3Address = 0x70

// Commands (Big Endian on the wire)
const (
	shtc3CmdWake  uint16 = 0x3517
	shtc3CmdSleep uint16 = 0xB098

	// Normal power, clock stretching disabled
	// Measure T first, then RH
	shtc3CmdMeasureTFirstNoCS uint16 = 0x7866
)

const (
	shtc3WakeUsec    = 240
	shtc3MeasureUsec = 12_100
)

// Sensirion CRC-8, polynomial 0x31, init 0xFF
var shtCRCTable = crc8.MakeTable(crc8.Params{
	Poly:   0x31,
	Init:   0xFF,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
	Check:  0xF7,
	Name:   "CRC-8/SENSIRION",
})

// Transport is the part of the HAL a Sensirion driver calls into.
type Transport interface {
	Read(ctx context.Context, address uint8, buffer []byte) error
	Write(ctx context.Context, address uint8, buffer []byte) error
	SleepUsec(usec uint32)
}

// SHTC3 represents Sensirion SHTC3 Temperature/Humidity sensor
// Typical usage:
//
//	s := NewSHTC3(hal)
//	t, h, err := s.GetTempAndHum(ctx)
type SHTC3 struct {
	transport Transport
	address   uint8
	lastTemp  float32
	lastHum   float32
}

func NewSHTC3(trans Transport) *SHTC3 {
	return &SHTC3{transport: trans, address: SHTC3Address}
}

// GetTemperature performs a single measurement and returns temperature in Celsius.
func (s *SHTC3) GetTemperature(ctx context.Context) (float32, error) {
	if err := s.measure(ctx); err != nil {
		return 0, err
	}
	return s.lastTemp, nil
}

// GetHumidity performs a single measurement and returns relative humidity in %RH.
func (s *SHTC3) GetHumidity(ctx context.Context) (float32, error) {
	if err := s.measure(ctx); err != nil {
		return 0, err
	}
	return s.lastHum, nil
}

// GetTempAndHum performs a single measurement and returns temperature and humidity.
func (s *SHTC3) GetTempAndHum(ctx context.Context) (float32, float32, error) {
	if err := s.measure(ctx); err != nil {
		return 0, 0, err
	}
	return s.lastTemp, s.lastHum, nil
}

func (s *SHTC3) measure(ctx context.Context) error {
	if err := s.writeCmd(ctx, shtc3CmdWake); err != nil {
		return fmt.Errorf("shtc3: wake failed: %w", err)
	}
	s.transport.SleepUsec(shtc3WakeUsec)

	if err := s.writeCmd(ctx, shtc3CmdMeasureTFirstNoCS); err != nil {
		return fmt.Errorf("shtc3: measure command failed: %w", err)
	}
	s.transport.SleepUsec(shtc3MeasureUsec)

	// Read 6 bytes: T[0:2], CRC, RH[3:5]
	buf := make([]byte, 6)
	if err := s.transport.Read(ctx, s.address, buf); err != nil {
		return fmt.Errorf("shtc3: read failed: %w", err)
	}

	if !shtCRC8Check(buf[0:2], buf[2]) {
		return fmt.Errorf("shtc3: temperature CRC mismatch")
	}
	if !shtCRC8Check(buf[3:5], buf[5]) {
		return fmt.Errorf("shtc3: humidity CRC mismatch")
	}

	s.lastTemp = convertSHTC3Temperature(binary.BigEndian.Uint16(buf[0:2]))
	s.lastHum = convertSHTC3Humidity(binary.BigEndian.Uint16(buf[3:5]))

	// Go back to sleep to save power
	if err := s.writeCmd(ctx, shtc3CmdSleep); err != nil {
		return fmt.Errorf("shtc3: sleep failed: %w", err)
	}
	return nil
}

func (s *SHTC3) writeCmd(ctx context.Context, cmd uint16) error {
	var out [2]byte
	binary.BigEndian.PutUint16(out[:], cmd)
	return s.transport.Write(ctx, s.address, out[:])
}

// T(C) = -45 + 175 * rawT / 65535
func convertSHTC3Temperature(raw uint16) float32 {
	return -45.0 + (175.0 * float32(raw) / 65535.0)
}

// RH(%) = 100 * rawRH / 65535
func convertSHTC3Humidity(raw uint16) float32 {
	return 100.0 * float32(raw) / 65535.0
}

func shtCRC8(data []byte) byte {
	return crc8.Checksum(data, shtCRCTable)
}

func shtCRC8Check(data []byte, expected byte) bool {
	return shtCRC8(data) == expected
}
