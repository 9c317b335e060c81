package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2chal"
	"github.com/mklimuk/i2chal/cmd/i2chal/console"
	"github.com/mklimuk/i2chal/environment"
)

type tempHumSensor interface {
	GetTempAndHum(ctx context.Context) (float32, float32, error)
}

var measureCmd = cli.Command{
	Name:    "measure",
	Aliases: []string{"temp"},
	Usage:   "read temperature and humidity from a sensor on the bus",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sensor",
			Value: "shtc3",
			Usage: "sensor type (shtc3|hih6021|tc74)",
		},
	},
	Action: func(c *cli.Context) error {
		return withHAL(c, func(ctx context.Context, h i2chal.HAL) error {
			if c.String("sensor") == "tc74" {
				temp, err := environment.NewTC74(h).GetTemperature(ctx)
				if err != nil {
					return console.Exit(1, "error getting temperature read: %s", console.Red(err))
				}
				console.Printf("%s  %s\n", console.PictoThermometer, console.White(temp))
				return nil
			}
			var sensor tempHumSensor
			switch c.String("sensor") {
			case "shtc3":
				sensor = environment.NewSHTC3(h)
			case "hih6021":
				sensor = environment.NewHIH6021(h)
			default:
				return console.Exit(1, "unknown sensor %s", console.Red(c.String("sensor")))
			}
			temp, hum, err := sensor.GetTempAndHum(ctx)
			if err != nil {
				return console.Exit(1, "error getting temperature read: %s", console.Red(err))
			}
			console.Printf("%s  %s\n%s %s\n", console.PictoThermometer, console.White(temp), console.PictoHumidity, console.White(hum))
			return nil
		})
	},
}

var luxCmd = cli.Command{
	Name:  "lux",
	Usage: "read ambient light from a BH1750",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "high",
			Usage: "use the ADDR-high address",
		},
	},
	Action: func(c *cli.Context) error {
		return withHAL(c, func(ctx context.Context, h i2chal.HAL) error {
			addr := uint8(environment.BH1750AddrLow)
			if c.Bool("high") {
				addr = environment.BH1750AddrHigh
			}
			lux, err := environment.NewBH1750(h, addr).GetLux(ctx)
			if err != nil {
				return console.Exit(1, "error getting light read: %s", console.Red(err))
			}
			console.Printf("%s lux\n", console.White(lux))
			return nil
		})
	},
}
