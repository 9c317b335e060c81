package i2chal

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Code is the numeric status a sensor driver receives. Zero means success.
type Code int16

const (
	CodeOK             Code = 0
	CodeFail           Code = -1
	CodeNotImplemented Code = 31
	CodeNoMem          Code = 0x101
	CodeInvalidArg     Code = 0x102
	CodeInvalidState   Code = 0x103
	CodeNotFound       Code = 0x105
	CodeTimeout        Code = 0x107
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeNotImplemented:
		return "NOT_IMPLEMENTED"
	case CodeNoMem:
		return "NO_MEM"
	case CodeInvalidArg:
		return "INVALID_ARG"
	case CodeInvalidState:
		return "INVALID_STATE"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeTimeout:
		return "TIMEOUT"
	default:
		return "FAIL"
	}
}

var (
	ErrNotImplemented = errors.New("not implemented")
	ErrNoMem          = errors.New("could not allocate i2c handle")
	ErrInvalidArg     = errors.New("invalid argument")
	ErrInvalidState   = errors.New("invalid state")
	ErrNotInitialized = fmt.Errorf("i2c bus not initialized: %w", ErrInvalidState)
	ErrNoAck          = errors.New("device did not acknowledge")
	ErrTimeout        = errors.New("i2c transfer timed out")
	ErrTeardown       = errors.New("could not release i2c resources")
	ErrBusBusy        = fmt.Errorf("I2C engine is busy (command not completed)")
)

// CodeOf extracts the status code of err.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrNotImplemented):
		return CodeNotImplemented
	case errors.Is(err, ErrNoMem):
		return CodeNoMem
	case errors.Is(err, ErrInvalidArg):
		return CodeInvalidArg
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrBusBusy):
		return CodeInvalidState
	case errors.Is(err, ErrNoAck):
		return CodeNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return CodeFail
}

// Status is CodeOf as the raw value returned over the C-style contract.
func Status(err error) int16 {
	return int16(CodeOf(err))
}

// Classify maps errors of OS level i2c drivers, which are usually formatted
// rather than wrapped, onto ErrNoAck and ErrTimeout.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNoAck) || errors.Is(err, ErrTimeout) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "remote i/o error"),
		strings.Contains(msg, "no such device or address"),
		strings.Contains(msg, "nack"):
		return fmt.Errorf("%w: %v", ErrNoAck, err)
	case strings.Contains(msg, "timed out"), strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
