package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// The adapters are hardware facing; integration tests need a bus with an
// SHTC3 or a loopback configuration in I2CHAL_CONFIG.
var checks = []struct {
	use   string
	short string
	run   func() error
}{
	{"test", "Run unit tests", test.Test},
	{"lint", "Run linting", test.Lint},
	{"integration-test", "Run integration tests against a configured bus", test.Integ},
}

// QualityCmds returns one command per check.
func QualityCmds() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(checks))
	for _, check := range checks {
		cmds = append(cmds, &cobra.Command{
			Use:   check.use,
			Short: check.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				err := check.run()
				if err != nil {
					return fmt.Errorf("%s failed: %w", check.use, err)
				}
				return nil
			},
		})
	}
	return cmds
}
