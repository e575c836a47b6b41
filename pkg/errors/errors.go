package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrEmptyInput        = errors.New("empty input")
	ErrNotConverged      = errors.New("did not converge")
	ErrTimeout           = errors.New("timed out")
	ErrInternal          = errors.New("internal error")
)

// Exit codes used by the linker CLI.
const (
	ExitOK            = 0
	ExitInternal      = 1
	ExitInvalidInput  = 2
	ExitNotConverged  = 3
	ExitInputNotFound = 4
	ExitTimeout       = 5
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Invalid is shorthand for an ErrInvalidConfig AppError.
func Invalid(format string, args ...any) *AppError {
	return Newf(ErrInvalidConfig, ExitInvalidInput, format, args...)
}

// ConvergenceError reports an EM run that hit its iteration ceiling.
type ConvergenceError struct {
	Iterations int
	Delta      float64
	Tolerance  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s after %d iterations (last delta %.3g, tolerance %.3g)",
		ErrNotConverged.Error(), e.Iterations, e.Delta, e.Tolerance)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrNotConverged
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrNotConverged):
		return ExitNotConverged
	case errors.Is(err, ErrTimeout):
		return ExitTimeout
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrDimensionMismatch),
		errors.Is(err, ErrEmptyInput):
		return ExitInvalidInput
	default:
		return ExitInternal
	}
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
