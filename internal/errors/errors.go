package errors

import (
	"errors"
	"fmt"
)

// Lock protocol failures. Every error returned by the lockfile package wraps
// exactly one of these.
var (
	ErrNameTooLong     = errors.New("name too long")
	ErrTableFull       = errors.New("too many locked files")
	ErrLockUnavailable = errors.New("lock unavailable")
	ErrLockIO          = errors.New("cannot open lockfile")
	ErrOpenFailed      = errors.New("failed to open locked file")
	ErrNotFound        = errors.New("not found in locked files list")
)

var (
	// ErrInvalidConfiguration is wrapped by every ConfigError.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnitFailed marks a work unit whose worker reported failure.
	ErrUnitFailed = errors.New("work unit failed")
)

// New, Errorf, Is, As and Join forward to the standard library so callers
// need a single errors import.

func New(message string) error {
	return errors.New(message)
}

func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap prefixes err with message, keeping err matchable.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// LockError ties a lock failure to the lock file it concerns. PID is the
// recorded holder when known.
type LockError struct {
	LockFile string
	PID      int
	Err      error
}

func (e *LockError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("lockfile %s (held by PID %d): %v", e.LockFile, e.PID, e.Err)
	}
	return fmt.Sprintf("lockfile %s: %v", e.LockFile, e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

func NewLockError(lockFile string, pid int, err error) *LockError {
	return &LockError{LockFile: lockFile, PID: pid, Err: err}
}

// UnitError reports a failed work unit together with whatever it printed.
type UnitError struct {
	Unit   int
	Output string
	Err    error
}

func (e *UnitError) Error() string {
	msg := fmt.Sprintf("unit %d failed", e.Unit)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

func NewUnitError(unit int, err error, output string) *UnitError {
	return &UnitError{Unit: unit, Output: output, Err: err}
}

// ConfigError names the configuration key that failed validation.
type ConfigError struct {
	Parameter string
	Value     interface{}
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s=%v: %v", e.Parameter, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Parameter, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(parameter string, value interface{}, err error) *ConfigError {
	return &ConfigError{Parameter: parameter, Value: value, Err: err}
}
