package i2chal

import "time"

// Ticks returns the number of whole ticks covering usec microseconds. A
// partial tick counts as a full one.
func Ticks(usec uint32, tick time.Duration) int64 {
	if usec == 0 {
		return 0
	}
	if tick <= 0 {
		tick = time.Microsecond
	}
	d := time.Duration(usec) * time.Microsecond
	return int64((d + tick - 1) / tick)
}

// Sleep blocks for at least usec microseconds using sleep, rounded up to tick.
func Sleep(usec uint32, tick time.Duration, sleep func(time.Duration)) {
	n := Ticks(usec, tick)
	if n == 0 {
		return
	}
	if tick <= 0 {
		tick = time.Microsecond
	}
	sleep(time.Duration(n) * tick)
}
