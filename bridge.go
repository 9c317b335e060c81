package i2chal

import "context"

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// I2CBus is the transport of sensor drivers written against addressed reads
// and writes.
type I2CBus interface {
	AddressableReader
	AddressableWriter
}

var _ I2CBus = &BusBridge{}

// BusBridge exposes an initialized HAL as an I2CBus. Release frees the HAL.
type BusBridge struct {
	hal HAL
}

func NewBusBridge(h HAL) *BusBridge {
	return &BusBridge{hal: h}
}

func (b *BusBridge) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.hal.Read(ctx, address, buffer)
}

func (b *BusBridge) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.hal.Write(ctx, address, buffer)
}

func (b *BusBridge) Release(ctx context.Context) error {
	return b.hal.Free(ctx)
}
