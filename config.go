package i2chal

import (
	"fmt"
	"time"
)

type ClockSource int

const (
	ClockSourceDefault ClockSource = iota
	ClockSourceAPB
	ClockSourceXTAL
)

type AddressWidth int

const AddressWidth7Bit AddressWidth = 7

// MaxAddress is the highest 7-bit slave address.
const MaxAddress = 0x7F

const (
	DefaultPort         = 0
	DefaultSDA          = 21
	DefaultSCL          = 22
	DefaultFrequency    = 100_000
	DefaultGlitchFilter = 7
	DefaultTimeout      = time.Second
	DefaultTick         = 10 * time.Millisecond
)

const maxFrequency = 1_000_000

// BusConfig describes the one bus an adapter drives.
type BusConfig struct {
	Port         int           `yaml:"port"`
	SDA          int           `yaml:"sda"`
	SCL          int           `yaml:"scl"`
	ClockSource  ClockSource   `yaml:"clock_source"`
	Frequency    uint32        `yaml:"frequency"`
	GlitchFilter int           `yaml:"glitch_filter"`
	PullUp       bool          `yaml:"pull_up"`
	Timeout      time.Duration `yaml:"timeout"`
	Tick         time.Duration `yaml:"tick"`
}

func DefaultBusConfig() BusConfig {
	return BusConfig{
		Port:         DefaultPort,
		SDA:          DefaultSDA,
		SCL:          DefaultSCL,
		ClockSource:  ClockSourceDefault,
		Frequency:    DefaultFrequency,
		GlitchFilter: DefaultGlitchFilter,
		PullUp:       true,
		Timeout:      DefaultTimeout,
		Tick:         DefaultTick,
	}
}

func (c BusConfig) Validate() error {
	if c.Port < 0 {
		return fmt.Errorf("%w: port %d", ErrInvalidArg, c.Port)
	}
	if c.SDA < 0 || c.SCL < 0 {
		return fmt.Errorf("%w: pins sda=%d scl=%d", ErrInvalidArg, c.SDA, c.SCL)
	}
	if c.SDA == c.SCL {
		return fmt.Errorf("%w: sda and scl share pin %d", ErrInvalidArg, c.SDA)
	}
	if c.Frequency == 0 || c.Frequency > maxFrequency {
		return fmt.Errorf("%w: frequency %d Hz", ErrInvalidArg, c.Frequency)
	}
	if c.GlitchFilter < 0 || c.GlitchFilter > 255 {
		return fmt.Errorf("%w: glitch filter %d", ErrInvalidArg, c.GlitchFilter)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout %s", ErrInvalidArg, c.Timeout)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("%w: tick %s", ErrInvalidArg, c.Tick)
	}
	return nil
}

// Device returns the configuration of a 7-bit device on this bus clocked at
// the bus frequency.
func (c BusConfig) Device(address uint8) DeviceConfig {
	return DeviceConfig{
		Address:      address,
		AddressWidth: AddressWidth7Bit,
		Speed:        c.Frequency,
	}
}

type DeviceConfig struct {
	Address      uint8
	AddressWidth AddressWidth
	Speed        uint32
}

func ValidateAddress(address uint8) error {
	if address > MaxAddress {
		return fmt.Errorf("%w: address %#x is not 7-bit", ErrInvalidArg, address)
	}
	return nil
}

// Opts are shared by both adapter variants.
type Opts struct {
	Bus   BusConfig
	Sleep func(time.Duration)
}

type Opt func(*Opts)

func WithBusConfig(cfg BusConfig) Opt {
	return func(o *Opts) {
		o.Bus = cfg
	}
}

func WithTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.Bus.Timeout = timeout
	}
}

func WithTick(tick time.Duration) Opt {
	return func(o *Opts) {
		o.Bus.Tick = tick
	}
}

// WithSleep replaces time.Sleep as the blocking primitive behind SleepUsec.
func WithSleep(sleep func(time.Duration)) Opt {
	return func(o *Opts) {
		o.Sleep = sleep
	}
}

func NewOpts(opts ...Opt) Opts {
	o := Opts{
		Bus:   DefaultBusConfig(),
		Sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
