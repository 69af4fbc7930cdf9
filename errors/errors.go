// Package errors provides the error taxonomy for the daqstreams runtime:
// spawn errors, command errors, and classified instrument faults.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// FaultClass represents the classification of instrument faults
type FaultClass int

const (
	// FaultRecoverable represents faults the instrument task can recover
	// from via a Recover command (transient I/O, device busy)
	FaultRecoverable FaultClass = iota
	// FaultFatal represents unrecoverable faults that must terminate the
	// owning instrument task
	FaultFatal
)

// String returns the string representation of FaultClass
func (fc FaultClass) String() string {
	switch fc {
	case FaultRecoverable:
		return "recoverable"
	case FaultFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for the DAQ error taxonomy
var (
	// Spawn errors, surfaced by Manager.Spawn
	ErrAlreadyRunning   = errors.New("instrument already running")
	ErrInvalidConfig    = errors.New("invalid instrument configuration")
	ErrConnectionFailed = errors.New("hardware connection failed")
	ErrUnknownType      = errors.New("unknown instrument type")

	// Command errors, surfaced by Manager.SendCommand
	ErrNotFound       = errors.New("instrument not found")
	ErrTimeout        = errors.New("command timed out")
	ErrInvalidInState = errors.New("command not valid in current state")
	ErrDeviceRejected = errors.New("command rejected by device")

	// Adapter and connection errors
	ErrNotConnected  = errors.New("adapter not connected")
	ErrReadTimeout   = errors.New("adapter read timeout")
	ErrAdapterClosed = errors.New("adapter closed")

	// Lifecycle errors
	ErrShuttingDown = errors.New("instrument is shutting down")
	ErrTaskExited   = errors.New("instrument task exited")
)

// Fault wraps an error with its fault classification and origin
type Fault struct {
	Class      FaultClass
	Err        error
	Instrument string
	Operation  string
}

// Error implements the error interface
func (f *Fault) Error() string {
	return f.Err.Error()
}

// Unwrap returns the underlying error
func (f *Fault) Unwrap() error {
	return f.Err
}

// IsRecoverable checks if an error is a recoverable instrument fault.
// Unclassified transient conditions (timeouts, cancelled contexts) also
// count as recoverable so that a bare adapter timeout does not kill a task.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}

	var f *Fault
	if errors.As(err, &f) {
		return f.Class == FaultRecoverable
	}

	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrReadTimeout) ||
		errors.Is(err, ErrDeviceRejected) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	return false
}

// IsFatal checks if an error is a fatal instrument fault
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var f *Fault
	if errors.As(err, &f) {
		return f.Class == FaultFatal
	}

	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrAdapterClosed) {
		return true
	}

	return false
}

// Classify returns the fault class for an error. Unknown errors default to
// recoverable so a single bad reading never terminates an instrument task.
func Classify(err error) FaultClass {
	if IsFatal(err) {
		return FaultFatal
	}
	return FaultRecoverable
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapRecoverable wraps an error as a recoverable fault with context
func WrapRecoverable(err error, instrument, method, action string) error {
	if err == nil {
		return nil
	}
	return &Fault{
		Class:      FaultRecoverable,
		Err:        Wrap(err, instrument, method, action),
		Instrument: instrument,
		Operation:  method,
	}
}

// WrapFatal wraps an error as a fatal fault with context
func WrapFatal(err error, instrument, method, action string) error {
	if err == nil {
		return nil
	}
	return &Fault{
		Class:      FaultFatal,
		Err:        Wrap(err, instrument, method, action),
		Instrument: instrument,
		Operation:  method,
	}
}

// New returns an error that formats as the given text. Re-exported so
// callers do not need to import both this package and the standard library.
func New(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
