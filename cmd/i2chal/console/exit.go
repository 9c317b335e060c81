package console

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/i2chal"
)

func Exit(code int, msg string, args ...interface{}) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// ExitStatus reports a failed HAL operation together with its status code.
func ExitStatus(op string, err error) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf("%s error: %s\nstatus: %s", op, Red(err), Code(i2chal.CodeOf(err))), 1)
}
