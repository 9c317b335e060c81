package environment

import (
	"context"
	"encoding/binary"
	"fmt"
)

const BH1750AddrHigh = 0b1011100
const BH1750AddrLow = 0b0100011

const opCodeSingleLowResolution = 0b00100011

// typically 16ms, max 24ms
const bh1750MeasureUsec = 25_000

type BH1750 struct {
	transport Transport
	addr      uint8
	buf       []byte
}

func NewBH1750(transport Transport, addr uint8) *BH1750 {
	return &BH1750{
		addr:      addr,
		transport: transport,
		buf:       make([]byte, 2),
	}
}

func (sensor *BH1750) GetLux(ctx context.Context) (int, error) {
	err := sensor.transport.Write(ctx, sensor.addr, []byte{opCodeSingleLowResolution})
	if err != nil {
		return 0, fmt.Errorf("could not write command: %w", err)
	}
	sensor.transport.SleepUsec(bh1750MeasureUsec)
	err = sensor.transport.Read(ctx, sensor.addr, sensor.buf)
	if err != nil {
		return 0, fmt.Errorf("could not read data: %w", err)
	}
	res := float32(binary.BigEndian.Uint16(sensor.buf)) / 1.2
	return int(res), nil
}
