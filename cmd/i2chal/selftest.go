package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2chal"
	"github.com/mklimuk/i2chal/cmd/i2chal/console"
	"github.com/mklimuk/i2chal/driver/loopback"
	"github.com/mklimuk/i2chal/halctx"
	"github.com/mklimuk/i2chal/legacy"
	"github.com/mklimuk/i2chal/master"
)

var selftestCmd = cli.Command{
	Name:  "selftest",
	Usage: "exercise both adapter variants against the loopback driver",
	Action: func(c *cli.Context) error {
		ctx := halctx.WithTrace(c.Context, c.Bool("verbose"))
		failed := 0
		for _, variant := range []struct {
			name string
			hal  i2chal.HAL
		}{
			{"legacy", legacy.New(loopback.New(loopbackAddress), i2chal.WithTimeout(100*time.Millisecond))},
			{"master", master.New(loopback.New(loopbackAddress), i2chal.WithTimeout(100*time.Millisecond))},
		} {
			err := selftest(ctx, variant.hal)
			if err != nil {
				failed++
				console.Errorf("%s: %s", variant.name, console.Red(err))
				continue
			}
			console.PInfof(console.PictoFinish, "%s: %s", variant.name, console.Green("ok"))
		}
		if failed > 0 {
			return console.Exit(1, "%d variants failed", failed)
		}
		return nil
	},
}

func selftest(ctx context.Context, h i2chal.HAL) error {
	if err := h.Write(ctx, loopbackAddress, []byte{0x00}); !errors.Is(err, i2chal.ErrNotInitialized) {
		return fmt.Errorf("write before init: got %v", err)
	}
	if err := h.SelectBus(1); i2chal.CodeOf(err) != i2chal.CodeNotImplemented {
		return fmt.Errorf("select bus: got %v", err)
	}
	for cycle := 0; cycle < 2; cycle++ {
		if err := h.Init(ctx); err != nil {
			return fmt.Errorf("init cycle %d: %w", cycle, err)
		}
		data := []byte{0xDE, 0xAD, 0xBE, byte(cycle)}
		if err := h.Write(ctx, loopbackAddress, data); err != nil {
			return err
		}
		buf := make([]byte, len(data))
		if err := h.Read(ctx, loopbackAddress, buf); err != nil {
			return err
		}
		if !bytes.Equal(data, buf) {
			return fmt.Errorf("round trip mismatch: wrote %x, read %x", data, buf)
		}
		if err := h.Read(ctx, loopbackAddress+1, buf); !errors.Is(err, i2chal.ErrNoAck) {
			return fmt.Errorf("read from absent device: got %v", err)
		}
		if err := h.Free(ctx); err != nil {
			return fmt.Errorf("free cycle %d: %w", cycle, err)
		}
	}
	start := time.Now()
	h.SleepUsec(1500)
	if elapsed := time.Since(start); elapsed < 1500*time.Microsecond {
		return fmt.Errorf("slept %s, want at least 1.5ms", elapsed)
	}
	return nil
}
