package main

import (
	"fmt"
	"math"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2chal/cmd/i2chal/console"
)

var sleepCmd = cli.Command{
	Name:  "sleep",
	Usage: "sleep through the adapter and report the elapsed time",
	Flags: []cli.Flag{
		&cli.UintFlag{Name: "usec", Aliases: []string{"u"}, Usage: "microseconds to sleep", Value: 1000},
	},
	Action: func(c *cli.Context) error {
		usec, err := parseUsec(uint64(c.Uint("usec")))
		if err != nil {
			return console.Exit(1, "%s", console.Red(err))
		}
		h, err := openHAL(c)
		if err != nil {
			return err
		}
		start := time.Now()
		h.SleepUsec(usec)
		elapsed := time.Since(start)
		console.Printf("requested %s, slept %s\n", console.White(time.Duration(usec)*time.Microsecond), console.White(elapsed))
		return nil
	},
}

// parseUsec narrows a flag value to the HAL's 32-bit microsecond argument.
func parseUsec(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("usec out of range: %d exceeds %d", v, uint64(math.MaxUint32))
	}
	return uint32(v), nil
}
