package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/measurement"
)

// esp300Params configures one axis of a Newport ESP300 motion controller.
type esp300Params struct {
	Axis     int     `json:"axis"`
	Velocity float64 `json:"velocity"`
}

// ESP300 drives a single axis of a Newport ESP300 controller as a linear
// stage. Positions and velocities are in millimeters.
type ESP300 struct {
	device
	axis int
}

var _ instrument.Stage = (*ESP300)(nil)

// NewESP300 is the factory for the "esp300" instrument type.
func NewESP300(id string, params json.RawMessage, deps instrument.Dependencies) (instrument.Instrument, error) {
	p := esp300Params{Axis: 1, Velocity: 5.0}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, errors.WrapFatal(err, id, "NewESP300", "params parse")
		}
	}
	if p.Axis < 1 || p.Axis > 3 {
		return nil, errors.WrapFatal(
			fmt.Errorf("axis %d outside controller range 1-3: %w", p.Axis, errors.ErrInvalidConfig),
			id, "NewESP300", "params validation")
	}
	return &ESP300{device: newDevice(id, deps), axis: p.Axis}, nil
}

// Initialize implements instrument.Instrument. The probe reads the axis
// stage model to confirm the controller answers before declaring Ready.
func (e *ESP300) Initialize(ctx context.Context) error {
	return e.connect(ctx, func(ctx context.Context) error {
		_, err := e.ask(ctx, fmt.Sprintf("%dID?", e.axis))
		return err
	})
}

// Shutdown implements instrument.Instrument.
func (e *ESP300) Shutdown(_ context.Context) error {
	return e.disconnect()
}

// MoveAbsolute implements instrument.Stage.
func (e *ESP300) MoveAbsolute(ctx context.Context, position float64) error {
	if err := e.requireState(instrument.StateReady); err != nil {
		return err
	}
	return e.send(ctx, fmt.Sprintf("%dPA%.6f", e.axis, position))
}

// MoveRelative implements instrument.Stage.
func (e *ESP300) MoveRelative(ctx context.Context, distance float64) error {
	if err := e.requireState(instrument.StateReady); err != nil {
		return err
	}
	return e.send(ctx, fmt.Sprintf("%dPR%.6f", e.axis, distance))
}

// Position implements instrument.Stage. Each successful query is also
// published on the instrument's measurement feed.
func (e *ESP300) Position(ctx context.Context) (float64, error) {
	line, err := e.ask(ctx, fmt.Sprintf("%dTP?", e.axis))
	if err != nil {
		return 0, errors.Wrap(err, e.id, "Position", "position query")
	}
	pos, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, errors.Wrap(err, e.id, "Position", "position parse")
	}
	e.publish(&measurement.Scalar{
		Name:      e.id + "_position",
		Value:     pos,
		Unit:      "mm",
		Timestamp: time.Now(),
	})
	return pos, nil
}

// Moving implements instrument.Stage. The controller reports motion done
// with "1".
func (e *ESP300) Moving(ctx context.Context) (bool, error) {
	line, err := e.ask(ctx, fmt.Sprintf("%dMD?", e.axis))
	if err != nil {
		return false, errors.Wrap(err, e.id, "Moving", "motion done query")
	}
	return line != "1", nil
}

// StopMotion implements instrument.Stage.
func (e *ESP300) StopMotion(ctx context.Context) error {
	return e.send(ctx, fmt.Sprintf("%dST", e.axis))
}

// Home implements instrument.Stage.
func (e *ESP300) Home(ctx context.Context) error {
	if err := e.requireState(instrument.StateReady); err != nil {
		return err
	}
	return e.send(ctx, fmt.Sprintf("%dOR", e.axis))
}

// SetVelocity implements instrument.Stage. Velocity in mm/s.
func (e *ESP300) SetVelocity(ctx context.Context, v float64) error {
	if err := e.requireState(instrument.StateReady); err != nil {
		return err
	}
	if v <= 0 {
		return errors.Wrap(errors.ErrInvalidConfig, e.id, "SetVelocity", "velocity validation")
	}
	return e.send(ctx, fmt.Sprintf("%dVA%.6f", e.axis, v))
}

// Execute implements instrument.Instrument.
func (e *ESP300) Execute(ctx context.Context, cmd instrument.Command) (instrument.Response, error) {
	switch cmd.Op {
	case instrument.OpSetParameter:
		return e.setParameter(ctx, cmd)
	case instrument.OpGetParameter:
		return e.getParameter(ctx, cmd)
	case instrument.OpCustom:
		return e.custom(ctx, cmd)
	default:
		return instrument.Err(errors.ErrInvalidInState), nil
	}
}

func (e *ESP300) setParameter(ctx context.Context, cmd instrument.Command) (instrument.Response, error) {
	var v float64
	if err := json.Unmarshal(cmd.Value, &v); err != nil {
		return instrument.Errf("parameter %q: %v", cmd.Name, err), nil
	}
	var err error
	switch cmd.Name {
	case "position":
		err = e.MoveAbsolute(ctx, v)
	case "velocity":
		err = e.SetVelocity(ctx, v)
	default:
		return instrument.Errf("unknown parameter %q", cmd.Name), nil
	}
	if err != nil {
		return instrument.Err(err), nil
	}
	return instrument.Ok(), nil
}

func (e *ESP300) getParameter(ctx context.Context, cmd instrument.Command) (instrument.Response, error) {
	switch cmd.Name {
	case "position":
		pos, err := e.Position(ctx)
		if err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Value(pos), nil
	case "moving":
		moving, err := e.Moving(ctx)
		if err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Value(moving), nil
	default:
		return instrument.Errf("unknown parameter %q", cmd.Name), nil
	}
}

func (e *ESP300) custom(ctx context.Context, cmd instrument.Command) (instrument.Response, error) {
	var err error
	switch cmd.Verb {
	case "home":
		err = e.Home(ctx)
	case "stop_motion":
		err = e.StopMotion(ctx)
	case "move_relative":
		var dist float64
		if err := json.Unmarshal(cmd.Value, &dist); err != nil {
			return instrument.Errf("move_relative payload: %v", err), nil
		}
		err = e.MoveRelative(ctx, dist)
	default:
		return instrument.Errf("unknown verb %q", cmd.Verb), nil
	}
	if err != nil {
		return instrument.Err(err), nil
	}
	return instrument.Ok(), nil
}
