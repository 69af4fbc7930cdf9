package instrument

import (
	"context"
	"time"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/measurement"
)

// Instrument is the base lifecycle capability every device implements.
// The Manager is written against this interface only; capability-specific
// code asserts for the richer interfaces at call sites that need them.
type Instrument interface {
	// ID returns the unique instrument identifier
	ID() string

	// Status returns the current lifecycle snapshot. Pure query: callers
	// never need exclusive access.
	Status() Status

	// Initialize establishes the hardware connection:
	// Disconnected → Connecting → Ready, or Error on failure. Called from
	// inside the instrument task, never by the Manager directly.
	Initialize(ctx context.Context) error

	// Shutdown releases the hardware connection:
	// any state → ShuttingDown → Disconnected. Idempotent.
	Shutdown(ctx context.Context) error

	// Measurements returns a fresh named subscription to this instrument's
	// own outgoing feed. Multiple subscribers receive independently.
	Measurements(name string) *measurement.Subscription

	// Execute runs one command, state-checked: commands invalid in the
	// current state return a ResponseErr (e.g. Start while already
	// Acquiring). The error return is reserved for transport-level
	// failures; device-level rejection goes in the Response.
	Execute(ctx context.Context, cmd Command) (Response, error)
}

// Camera is the imaging capability.
type Camera interface {
	Instrument

	// SetExposure sets exposure time in milliseconds
	SetExposure(ctx context.Context, ms float64) error

	// SetROI sets the region of interest
	SetROI(ctx context.Context, roi ROI) error

	// SetBinning sets horizontal and vertical binning
	SetBinning(ctx context.Context, h, v int) error

	// StartAcquisition begins continuous frame acquisition
	StartAcquisition(ctx context.Context) error

	// StopAcquisition ends acquisition
	StopAcquisition(ctx context.Context) error
}

// ROI is a camera region of interest.
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Stage is the motion capability. Position units are whatever the concrete
// controller moves in (millimeters, degrees); the interface hides both the
// wire protocol and the unit system.
type Stage interface {
	Instrument

	// MoveAbsolute moves to an absolute position
	MoveAbsolute(ctx context.Context, position float64) error

	// MoveRelative moves by a signed distance from the current position
	MoveRelative(ctx context.Context, distance float64) error

	// Position returns the current position. Pure query.
	Position(ctx context.Context) (float64, error)

	// StopMotion halts motion immediately
	StopMotion(ctx context.Context) error

	// Moving reports whether the stage is in motion. Pure query.
	Moving(ctx context.Context) (bool, error)

	// Home drives the stage to its reference position
	Home(ctx context.Context) error

	// SetVelocity sets the motion velocity in units/second
	SetVelocity(ctx context.Context, v float64) error
}

// PowerSensor is the optical power measurement capability.
type PowerSensor interface {
	Instrument

	// SetWavelength sets the calibration wavelength in nanometers
	SetWavelength(ctx context.Context, nm float64) error

	// SetRange sets the measurement range in watts
	SetRange(ctx context.Context, watts float64) error

	// Zero re-zeroes the sensor against ambient background
	Zero(ctx context.Context) error
}

// TunableSource is the tunable light source capability.
type TunableSource interface {
	Instrument

	// SetWavelength tunes the output wavelength in nanometers
	SetWavelength(ctx context.Context, nm float64) error

	// SetShutter opens (true) or closes (false) the shutter
	SetShutter(ctx context.Context, open bool) error

	// Enable turns emission on
	Enable(ctx context.Context) error

	// Disable turns emission off
	Disable(ctx context.Context) error
}

// settlePollInterval is the fixed interval WaitSettled polls Moving at.
const settlePollInterval = 50 * time.Millisecond

// WaitSettled polls Moving until the stage reports stationary or the
// timeout expires. Every stage gets identical settling semantics from this
// one helper: a bounded loop with an explicit deadline, never an indefinite
// block.
func WaitSettled(ctx context.Context, s Stage, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()

	for {
		moving, err := s.Moving(ctx)
		if err != nil {
			return errors.Wrap(err, s.ID(), "WaitSettled", "motion query")
		}
		if !moving {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrap(errors.ErrTimeout, s.ID(), "WaitSettled", "motion settle")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
