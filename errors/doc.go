// Package errors provides standardized error handling for the daqstreams runtime.
//
// # Overview
//
// The package defines the error taxonomy of the DAQ core in three groups:
//
//   - Spawn errors: ErrAlreadyRunning, ErrInvalidConfig, ErrConnectionFailed,
//     ErrUnknownType - surfaced to callers of Manager.Spawn.
//   - Command errors: ErrNotFound, ErrTimeout, ErrInvalidInState,
//     ErrDeviceRejected - surfaced to callers of Manager.SendCommand.
//   - Instrument faults: task-local conditions classified as recoverable or
//     fatal, which drive the Error lifecycle state and decide whether a
//     Recover command is accepted.
//
// All types support errors.Is, errors.As and error wrapping chains.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if _, exists := m.instruments[id]; exists {
//	    return errors.ErrAlreadyRunning
//	}
//
// Wrap errors with component context:
//
//	if err := adapter.Connect(ctx, cfg); err != nil {
//	    return errors.Wrap(err, "ESP300", "Initialize", "adapter connect")
//	}
//
// Classify faults to decide whether a task may recover:
//
//	if err := drv.poll(ctx); err != nil {
//	    if errors.IsFatal(err) {
//	        return err // task exits, Manager reaps the handle
//	    }
//	    drv.setError(err, true) // recoverable, Recover command accepted
//	}
//
// # Error Wrapping Pattern
//
// All wrapping follows the format "component.method: action failed: %w" so
// logs stay parseable across the runtime. WrapRecoverable and WrapFatal set
// the fault class; Wrap preserves whatever classification is already present.
package errors
