package i2chal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounded_PassesResult(t *testing.T) {
	assert.NoError(t, Bounded(context.Background(), time.Second, func(ctx context.Context) error {
		return nil
	}))
	fault := errors.New("bus fault")
	assert.Same(t, fault, Bounded(context.Background(), time.Second, func(ctx context.Context) error {
		return fault
	}))
}

func TestBounded_HungTransferTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	start := time.Now()
	err := Bounded(context.Background(), 20*time.Millisecond, func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBounded_DriverDeadlineIsTimeout(t *testing.T) {
	err := Bounded(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestBounded_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Bounded(ctx, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// stuckTransfer ignores its context and returns only once release is closed.
func stuckTransfer(release <-chan struct{}, fill byte) func(ctx context.Context, buffer []byte) error {
	return func(ctx context.Context, buffer []byte) error {
		<-release
		for i := range buffer {
			buffer[i] = fill
		}
		return nil
	}
}

func TestTransfers_AbandonedReadKeepsCallerBuffer(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	var tx Transfers

	buf := make([]byte, 4)
	err := tx.Read(ctx, 10*time.Millisecond, buf, stuckTransfer(release, 0xEE))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, tx.Busy())

	err = tx.Read(ctx, 10*time.Millisecond, buf, stuckTransfer(release, 0x11))
	assert.ErrorIs(t, err, ErrBusBusy)
	assert.Equal(t, CodeInvalidState, CodeOf(err))

	close(release)
	require.NoError(t, tx.Wait(time.Second))
	assert.False(t, tx.Busy())
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)

	require.NoError(t, tx.Read(ctx, time.Second, buf, stuckTransfer(release, 0x11)))
	assert.Equal(t, []byte{0x11, 0x11, 0x11, 0x11}, buf)
}

func TestTransfers_AbandonedWriteSeesOriginalData(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	sent := make(chan []byte, 1)
	var tx Transfers

	buf := []byte{0x35, 0x17}
	err := tx.Write(ctx, 10*time.Millisecond, buf, func(ctx context.Context, buffer []byte) error {
		<-release
		sent <- append([]byte(nil), buffer...)
		return nil
	})
	assert.ErrorIs(t, err, ErrTimeout)

	// the caller owns buf again once Write returned
	buf[0], buf[1] = 0xFF, 0xFF
	close(release)
	assert.Equal(t, []byte{0x35, 0x17}, <-sent)
}

func TestTransfers_WaitGivesUp(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	var tx Transfers

	assert.NoError(t, tx.Wait(time.Millisecond))
	err := tx.Read(context.Background(), 5*time.Millisecond, make([]byte, 1), stuckTransfer(release, 0))
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, tx.Wait(5*time.Millisecond), ErrBusBusy)
	assert.True(t, tx.Busy())
}

func TestTransfers_FailedTransferFreesBus(t *testing.T) {
	var tx Transfers
	fault := errors.New("arbitration lost")
	err := tx.Write(context.Background(), time.Second, []byte{1}, func(ctx context.Context, buffer []byte) error {
		return fault
	})
	assert.Same(t, fault, err)
	assert.False(t, tx.Busy())
}
