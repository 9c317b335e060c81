package gobot

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gobot.io/x/gobot/v2/drivers/i2c"

	"github.com/mklimuk/i2chal"
)

type fakeConn struct {
	i2c.Connection
	data []byte
	n    int
	err  error
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.data = append([]byte(nil), p...)
	if c.n > 0 {
		return c.n, c.err
	}
	return len(p), c.err
}

func (c *fakeConn) Read(p []byte) (int, error) {
	n := copy(p, c.data)
	if c.n > 0 {
		n = c.n
	}
	return n, c.err
}

type fakeConnector struct {
	conn    *fakeConn
	address int
	bus     int
}

func (f *fakeConnector) GetI2cConnection(address int, busNr int) (i2c.Connection, error) {
	f.address, f.bus = address, busNr
	return f.conn, nil
}

func (f *fakeConnector) DefaultI2cBus() int { return 0 }

func TestDriver_ConnectFinalizeOnce(t *testing.T) {
	var connects, finalizes int
	d := NewDriver(&fakeConnector{conn: &fakeConn{}},
		func() error { connects++; return nil },
		func() error { finalizes++; return nil })
	cfg := i2chal.DefaultBusConfig()

	assert.ErrorIs(t, d.Install(0), i2chal.ErrInvalidState)
	require.NoError(t, d.Configure(0, cfg))
	require.NoError(t, d.Configure(1, cfg))
	require.NoError(t, d.Install(0))
	require.NoError(t, d.Install(1))
	assert.ErrorIs(t, d.Install(1), i2chal.ErrInvalidState)
	assert.Equal(t, 1, connects)

	require.NoError(t, d.Delete(0))
	assert.Equal(t, 0, finalizes)
	require.NoError(t, d.Delete(1))
	assert.Equal(t, 1, finalizes)
	assert.ErrorIs(t, d.Delete(1), i2chal.ErrInvalidState)
}

func TestDriver_Transfers(t *testing.T) {
	ctx := context.Background()
	conn := &fakeConn{}
	connector := &fakeConnector{conn: conn}
	d := NewDriver(connector, nil, nil)

	assert.ErrorIs(t, d.WriteToDevice(ctx, 1, 0x40, []byte{1}), i2chal.ErrInvalidState)

	require.NoError(t, d.Configure(1, i2chal.DefaultBusConfig()))
	require.NoError(t, d.Install(1))
	require.NoError(t, d.WriteToDevice(ctx, 1, 0x40, []byte{0xAA, 0xBB}))
	assert.Equal(t, 0x40, connector.address)
	assert.Equal(t, 1, connector.bus)

	buf := make([]byte, 2)
	require.NoError(t, d.ReadFromDevice(ctx, 1, 0x40, buf))
	assert.Equal(t, []byte{0xAA, 0xBB}, buf)

	conn.n = 1
	assert.ErrorIs(t, d.WriteToDevice(ctx, 1, 0x40, []byte{1, 2}), io.ErrShortWrite)
	assert.ErrorIs(t, d.ReadFromDevice(ctx, 1, 0x40, buf), io.ErrUnexpectedEOF)

	conn.n = 0
	conn.err = errors.New("write /dev/i2c-1: remote I/O error")
	assert.ErrorIs(t, d.WriteToDevice(ctx, 1, 0x40, []byte{1}), i2chal.ErrNoAck)
}
