// Package config loads the adapter configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/i2chal"
)

// Version is injected at build time.
var Version = "dev"

const (
	VariantLegacy = "legacy"
	VariantMaster = "master"
)

const (
	DriverLoopback = "loopback"
	DriverPeriph   = "periph"
	DriverGobot    = "gobot"
	DriverMCP2221  = "mcp2221"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// drivers lists the variants each driver can back.
var drivers = map[string][]string{
	DriverLoopback: {VariantLegacy, VariantMaster},
	DriverPeriph:   {VariantMaster},
	DriverGobot:    {VariantLegacy},
	DriverMCP2221:  {VariantLegacy},
}

type Config struct {
	Variant string           `yaml:"variant"`
	Driver  string           `yaml:"driver"`
	Device  string           `yaml:"device"`
	Bus     i2chal.BusConfig `yaml:"bus"`
}

func Default() Config {
	return Config{
		Variant: VariantMaster,
		Driver:  DriverPeriph,
		Device:  "/dev/i2c-1",
		Bus:     i2chal.DefaultBusConfig(),
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	variants, ok := drivers[c.Driver]
	if !ok {
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, c.Driver)
	}
	if !slices.Contains(variants, c.Variant) {
		return fmt.Errorf("%w: driver %s does not support variant %q", ErrInvalidConfig, c.Driver, c.Variant)
	}
	err := c.Bus.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) Encode() ([]byte, error) {
	return yaml.Marshal(c)
}
