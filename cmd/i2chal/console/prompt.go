package console

import (
	"errors"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Confirm asks a yes/no question and defaults to no. An interrupted or closed
// prompt counts as no.
func Confirm(question string) (bool, error) {
	rl, err := readline.New(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	defer func() {
		_ = rl.Close()
	}()
	answer, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
