package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gova-training/gova/internal/backend"
	"github.com/gova-training/gova/internal/contract"
	"github.com/gova-training/gova/internal/output"
)

type AppError struct {
	Code    int
	Err     error
	Printed bool
}

func (e AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return AppError{Code: code, Err: err}
}

func WrapPrinted(code int, err error) error {
	if err == nil {
		return nil
	}
	return AppError{Code: code, Err: err, Printed: true}
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e AppError
	if errors.As(err, &e) {
		return e.Code
	}
	return 1
}

func failWithHint(printer output.Printer, code contract.ErrorCode, err error, hint string, exitCode int) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	_ = printer.Error(code, err.Error(), hint)
	return WrapPrinted(exitCode, err)
}

// exitForKind maps a backend failure class to the error code and process
// exit status a command reports.
func exitForKind(kind backend.Kind) (contract.ErrorCode, int) {
	switch kind {
	case backend.KindValidation:
		return contract.ErrInvalidUsage, 2
	case backend.KindCredentials, backend.KindAuthorization:
		return contract.ErrUnauthorized, 3
	case backend.KindNotFound:
		return contract.ErrNotFound, 4
	case backend.KindConflict:
		return contract.ErrConflict, 5
	case backend.KindTransport:
		return contract.ErrBackendUnavailable, 6
	default:
		return contract.ErrGeneric, 1
	}
}

func kindOf(err error) backend.Kind {
	if k := backend.KindOf(err); k != "" {
		return k
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return backend.KindTransport
	}
	return backend.KindServer
}

var kindHints = map[backend.Kind]string{
	backend.KindValidation:    "Check the command arguments and try again",
	backend.KindCredentials:   "Check your email and password",
	backend.KindAuthorization: "Run `gova login` and try again",
	backend.KindNotFound:      "Check the identifier and try again",
	backend.KindConflict:      "Run `gova slots` to pick a free slot",
	backend.KindTransport:     "Run `gova doctor` to check the booking service",
	backend.KindServer:        "Try again later",
}

// failBackend prints a classified backend failure. The message is the
// server's own when it sent one.
func failBackend(printer output.Printer, err error) error {
	kind := kindOf(err)
	code, exit := exitForKind(kind)
	msg := err.Error()
	var be *backend.Error
	if !interrupted(err) && errors.As(err, &be) && be.Message != "" {
		msg = be.Message
	}
	_ = printer.Error(code, msg, kindHints[kind])
	return WrapPrinted(exit, err)
}
