package master

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/i2chal"
	"github.com/mklimuk/i2chal/driver/loopback"
)

type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) NewBus(cfg i2chal.BusConfig) (i2chal.Bus, error) {
	args := m.Called(cfg)
	bus, _ := args.Get(0).(i2chal.Bus)
	return bus, args.Error(1)
}

type MockBus struct {
	mock.Mock
}

func (m *MockBus) AddDevice(cfg i2chal.DeviceConfig) (i2chal.Device, error) {
	args := m.Called(cfg)
	dev, _ := args.Get(0).(i2chal.Device)
	return dev, args.Error(1)
}

func (m *MockBus) Close() error {
	return m.Called().Error(0)
}

type MockDevice struct {
	mock.Mock
}

func (m *MockDevice) Transmit(ctx context.Context, buffer []byte) error {
	return m.Called(ctx, buffer).Error(0)
}

func (m *MockDevice) Receive(ctx context.Context, buffer []byte) error {
	args := m.Called(ctx, buffer)
	if data, ok := args.Get(0).([]byte); ok {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockDevice) Close() error {
	return m.Called().Error(0)
}

const sensorAddress = 0x70

func TestAdapter_SelectBusNotImplemented(t *testing.T) {
	driver := new(MockDriver)
	a := New(driver)
	err := a.SelectBus(3)
	assert.ErrorIs(t, err, i2chal.ErrNotImplemented)
	assert.Nil(t, a.bus)
	assert.Empty(t, a.Devices())
	driver.AssertExpectations(t)
}

func TestAdapter_InitFailures(t *testing.T) {
	t.Run("driver error", func(t *testing.T) {
		driver := new(MockDriver)
		driver.On("NewBus", mock.Anything).Return(nil, i2chal.ErrInvalidArg).Once()
		a := New(driver)
		err := a.Init(context.Background())
		assert.ErrorIs(t, err, i2chal.ErrInvalidArg)
		assert.Nil(t, a.bus)
	})
	t.Run("no handle", func(t *testing.T) {
		driver := new(MockDriver)
		driver.On("NewBus", mock.Anything).Return(nil, nil).Once()
		a := New(driver)
		err := a.Init(context.Background())
		assert.ErrorIs(t, err, i2chal.ErrNoMem)
		assert.Nil(t, a.bus)
	})
}

func TestAdapter_DoubleInitRejected(t *testing.T) {
	bus := new(MockBus)
	driver := new(MockDriver)
	driver.On("NewBus", mock.Anything).Return(bus, nil).Once()
	a := New(driver)
	require.NoError(t, a.Init(context.Background()))
	assert.ErrorIs(t, a.Init(context.Background()), i2chal.ErrInvalidState)
	driver.AssertExpectations(t)
}

func TestAdapter_LazyDevicePerAddress(t *testing.T) {
	ctx := context.Background()
	cfg := i2chal.DefaultBusConfig()
	first, second := new(MockDevice), new(MockDevice)
	bus := new(MockBus)
	bus.On("AddDevice", cfg.Device(0x44)).Return(first, nil).Once()
	bus.On("AddDevice", cfg.Device(sensorAddress)).Return(second, nil).Once()
	driver := new(MockDriver)
	driver.On("NewBus", cfg).Return(bus, nil).Once()

	first.On("Transmit", mock.Anything, []byte{0x24, 0x00}).Return(nil).Twice()
	second.On("Receive", mock.Anything, mock.Anything).Return([]byte{0xAA, 0xBB}, nil).Once()

	a := New(driver, i2chal.WithBusConfig(cfg))
	require.NoError(t, a.Init(ctx))
	assert.Empty(t, a.Devices())

	require.NoError(t, a.Write(ctx, 0x44, []byte{0x24, 0x00}))
	require.NoError(t, a.Write(ctx, 0x44, []byte{0x24, 0x00}))
	buf := make([]byte, 2)
	require.NoError(t, a.Read(ctx, sensorAddress, buf))
	assert.Equal(t, []byte{0xAA, 0xBB}, buf)
	assert.Equal(t, []uint8{0x44, sensorAddress}, a.Devices())

	bus.AssertExpectations(t)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestAdapter_AddDeviceFailures(t *testing.T) {
	ctx := context.Background()
	bus := new(MockBus)
	bus.On("AddDevice", mock.Anything).Return(nil, nil).Once()
	bus.On("AddDevice", mock.Anything).Return(nil, i2chal.ErrInvalidArg).Once()
	driver := new(MockDriver)
	driver.On("NewBus", mock.Anything).Return(bus, nil)
	a := New(driver)
	require.NoError(t, a.Init(ctx))

	assert.ErrorIs(t, a.Write(ctx, sensorAddress, []byte{0x00}), i2chal.ErrNoMem)
	assert.ErrorIs(t, a.Read(ctx, sensorAddress, make([]byte, 1)), i2chal.ErrInvalidArg)
	assert.Empty(t, a.Devices())
}

func TestAdapter_FreeReleasesDevicesBeforeBus(t *testing.T) {
	ctx := context.Background()
	dev := new(MockDevice)
	bus := new(MockBus)
	bus.On("AddDevice", mock.Anything).Return(dev, nil).Once()
	driver := new(MockDriver)
	driver.On("NewBus", mock.Anything).Return(bus, nil).Once()
	dev.On("Transmit", mock.Anything, mock.Anything).Return(nil)
	removed := dev.On("Close").Return(nil).Once()
	bus.On("Close").Return(nil).Once().NotBefore(removed)

	a := New(driver)
	require.NoError(t, a.Init(ctx))
	require.NoError(t, a.Write(ctx, sensorAddress, []byte{0x01}))
	require.NoError(t, a.Free(ctx))
	assert.Nil(t, a.bus)
	assert.Empty(t, a.Devices())
	dev.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestAdapter_FreeClearsStateOnFailure(t *testing.T) {
	ctx := context.Background()
	dev := new(MockDevice)
	bus := new(MockBus)
	bus.On("AddDevice", mock.Anything).Return(dev, nil)
	driver := new(MockDriver)
	driver.On("NewBus", mock.Anything).Return(bus, nil)
	dev.On("Transmit", mock.Anything, mock.Anything).Return(nil)
	dev.On("Close").Return(errors.New("remove failed")).Once()
	bus.On("Close").Return(errors.New("delete failed")).Once()

	a := New(driver)
	require.NoError(t, a.Init(ctx))
	require.NoError(t, a.Write(ctx, sensorAddress, []byte{0x01}))

	err := a.Free(ctx)
	assert.ErrorIs(t, err, i2chal.ErrTeardown)
	assert.ErrorContains(t, err, "remove failed")
	assert.ErrorContains(t, err, "delete failed")
	assert.Nil(t, a.bus)
	assert.Empty(t, a.Devices())

	assert.NoError(t, a.Free(ctx))
	bus.AssertNumberOfCalls(t, "Close", 1)
}

func TestAdapter_TransfersBeforeInit(t *testing.T) {
	a := New(new(MockDriver))
	buf := make([]byte, 1)
	assert.ErrorIs(t, a.Read(context.Background(), sensorAddress, buf), i2chal.ErrNotInitialized)
	assert.ErrorIs(t, a.Write(context.Background(), sensorAddress, buf), i2chal.ErrNotInitialized)
	assert.Empty(t, a.Devices())
}

func TestAdapter_Loopback(t *testing.T) {
	ctx := context.Background()
	driver := loopback.New(sensorAddress, 0x44)
	a := New(driver, i2chal.WithTimeout(50*time.Millisecond))

	for cycle := 0; cycle < 2; cycle++ {
		require.NoError(t, a.Init(ctx))
		require.NoError(t, a.Write(ctx, sensorAddress, []byte{0x10, byte(cycle)}))
		require.NoError(t, a.Write(ctx, 0x44, []byte{0x20, 0x21, 0x22}))

		buf := make([]byte, 2)
		require.NoError(t, a.Read(ctx, sensorAddress, buf))
		assert.Equal(t, []byte{0x10, byte(cycle)}, buf)
		buf = make([]byte, 3)
		require.NoError(t, a.Read(ctx, 0x44, buf))
		assert.Equal(t, []byte{0x20, 0x21, 0x22}, buf)

		assert.ErrorIs(t, a.Read(ctx, 0x45, buf), i2chal.ErrNoAck)
		require.NoError(t, a.Free(ctx))
		assert.False(t, driver.Installed(0))
	}
}

func TestAdapter_StalledDeviceTimesOut(t *testing.T) {
	ctx := context.Background()
	driver := loopback.New()
	driver.Stall(sensorAddress)
	a := New(driver, i2chal.WithTimeout(20*time.Millisecond))
	require.NoError(t, a.Init(ctx))
	defer func() { _ = a.Free(ctx) }()

	err := a.Read(ctx, sensorAddress, make([]byte, 2))
	assert.ErrorIs(t, err, i2chal.ErrTimeout)
}

func TestAdapter_SleepUsec(t *testing.T) {
	a := New(new(MockDriver), i2chal.WithTick(time.Millisecond))
	start := time.Now()
	a.SleepUsec(2_500)
	assert.GreaterOrEqual(t, time.Since(start), 2_500*time.Microsecond)

	start = time.Now()
	a.SleepUsec(0)
	assert.Less(t, time.Since(start), time.Millisecond*10)
}

func TestAdapter_RejectsWideAddress(t *testing.T) {
	ctx := context.Background()
	bus := new(MockBus)
	driver := new(MockDriver)
	driver.On("NewBus", mock.Anything).Return(bus, nil)
	a := New(driver)
	require.NoError(t, a.Init(ctx))
	for _, addr := range []uint8{0x80, 0xFF} {
		err := a.Read(ctx, addr, make([]byte, 1))
		assert.ErrorIs(t, err, i2chal.ErrInvalidArg)
		assert.Equal(t, i2chal.CodeInvalidArg, i2chal.CodeOf(err))
		assert.ErrorIs(t, a.Write(ctx, addr, []byte{0x00}), i2chal.ErrInvalidArg)
	}
	assert.Empty(t, a.Devices())
	bus.AssertNotCalled(t, "AddDevice", mock.Anything)
}

func TestAdapter_InitRejectsInvalidConfig(t *testing.T) {
	driver := new(MockDriver)
	a := New(driver, i2chal.WithBusConfig(i2chal.BusConfig{Frequency: 0}))
	err := a.Init(context.Background())
	assert.ErrorIs(t, err, i2chal.ErrInvalidArg)
	assert.Nil(t, a.bus)
	driver.AssertNotCalled(t, "NewBus", mock.Anything)
}

// stuckDevice ignores ctx and returns once release is closed, filling read
// buffers with 0xEE.
type stuckDevice struct {
	release chan struct{}
}

func (d *stuckDevice) Transmit(ctx context.Context, buffer []byte) error {
	<-d.release
	return nil
}

func (d *stuckDevice) Receive(ctx context.Context, buffer []byte) error {
	<-d.release
	for i := range buffer {
		buffer[i] = 0xEE
	}
	return nil
}

func (d *stuckDevice) Close() error { return nil }

func TestAdapter_AbandonedTransferKeepsBusBusy(t *testing.T) {
	ctx := context.Background()
	dev := &stuckDevice{release: make(chan struct{})}
	bus := new(MockBus)
	bus.On("AddDevice", mock.Anything).Return(dev, nil)
	bus.On("Close").Return(nil)
	driver := new(MockDriver)
	driver.On("NewBus", mock.Anything).Return(bus, nil)
	a := New(driver, i2chal.WithTimeout(10*time.Millisecond))
	require.NoError(t, a.Init(ctx))

	buf := make([]byte, 4)
	assert.ErrorIs(t, a.Read(ctx, sensorAddress, buf), i2chal.ErrTimeout)
	// a second device shares the same wires
	assert.ErrorIs(t, a.Write(ctx, 0x44, []byte{0x01}), i2chal.ErrBusBusy)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)

	close(dev.release)
	assert.Eventually(t, func() bool {
		return a.Read(ctx, sensorAddress, buf) == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0xEE, 0xEE, 0xEE, 0xEE}, buf)
	require.NoError(t, a.Free(ctx))
}

func TestAdapter_FreeWithStuckTransfer(t *testing.T) {
	ctx := context.Background()
	dev := &stuckDevice{release: make(chan struct{})}
	defer close(dev.release)
	bus := new(MockBus)
	bus.On("AddDevice", mock.Anything).Return(dev, nil)
	bus.On("Close").Return(nil).Once()
	driver := new(MockDriver)
	driver.On("NewBus", mock.Anything).Return(bus, nil)
	a := New(driver, i2chal.WithTimeout(10*time.Millisecond))
	require.NoError(t, a.Init(ctx))

	assert.ErrorIs(t, a.Write(ctx, sensorAddress, []byte{0x01}), i2chal.ErrTimeout)
	err := a.Free(ctx)
	assert.ErrorIs(t, err, i2chal.ErrTeardown)
	assert.ErrorIs(t, err, i2chal.ErrBusBusy)
	assert.Nil(t, a.bus)
	assert.Empty(t, a.Devices())
	bus.AssertExpectations(t)
}
