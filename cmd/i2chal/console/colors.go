package console

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/mklimuk/i2chal"
)

var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
)

// Code renders a HAL status code with its numeric value, e.g. "NOT_FOUND (0x105)".
func Code(code i2chal.Code) string {
	text := fmt.Sprintf("%s (%#x)", code, int16(code))
	if code < 0 {
		text = fmt.Sprintf("%s (%d)", code, int16(code))
	}
	switch code {
	case i2chal.CodeOK:
		return Green(text)
	case i2chal.CodeNotImplemented, i2chal.CodeNotFound:
		return Yellow(text)
	default:
		return Red(text)
	}
}
