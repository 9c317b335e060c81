package i2chal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Bounded runs a transfer and waits at most timeout for it to complete. An
// expired deadline is reported as ErrTimeout. The transfer keeps running in
// the background if it does not honor ctx, so it must not touch memory the
// caller reuses after a timeout. Transfers takes care of that for adapters.
func Bounded(ctx context.Context, timeout time.Duration, transfer func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- transfer(ctx)
	}()
	select {
	case err := <-done:
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}

// Transfers runs the driver transfers of one bus under a deadline. Drivers
// only ever see a private copy of the caller's buffer, and a read is copied
// back only when it completes in time. A transfer abandoned at its deadline
// keeps the bus busy until the driver returns from it; transfers started in
// the meantime fail with ErrBusBusy.
//
// Transfers is not safe for concurrent use.
type Transfers struct {
	running chan struct{}
}

// Read receives len(buffer) bytes with rx.
func (t *Transfers) Read(ctx context.Context, timeout time.Duration, buffer []byte, rx func(ctx context.Context, buffer []byte) error) error {
	scratch := make([]byte, len(buffer))
	err := t.run(ctx, timeout, func(ctx context.Context) error {
		return rx(ctx, scratch)
	})
	if err != nil {
		return err
	}
	copy(buffer, scratch)
	return nil
}

// Write transmits buffer with tx.
func (t *Transfers) Write(ctx context.Context, timeout time.Duration, buffer []byte, tx func(ctx context.Context, buffer []byte) error) error {
	scratch := make([]byte, len(buffer))
	copy(scratch, buffer)
	return t.run(ctx, timeout, func(ctx context.Context) error {
		return tx(ctx, scratch)
	})
}

// Busy reports whether an abandoned transfer is still running.
func (t *Transfers) Busy() bool {
	if t.running == nil {
		return false
	}
	select {
	case <-t.running:
		t.running = nil
		return false
	default:
		return true
	}
}

// Wait blocks until an abandoned transfer returns or timeout passes. It
// returns ErrBusBusy in the latter case.
func (t *Transfers) Wait(timeout time.Duration) error {
	if !t.Busy() {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.running:
		t.running = nil
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: abandoned transfer still running after %s", ErrBusBusy, timeout)
	}
}

func (t *Transfers) run(ctx context.Context, timeout time.Duration, transfer func(ctx context.Context) error) error {
	if t.Busy() {
		return fmt.Errorf("%w: previous transfer timed out and is still running", ErrBusBusy)
	}
	done := make(chan struct{})
	t.running = done
	err := Bounded(ctx, timeout, func(ctx context.Context) error {
		defer close(done)
		return transfer(ctx)
	})
	// done is closed before Bounded sees the result, so a completed transfer
	// never leaves the bus busy
	t.Busy()
	return err
}
