package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/measurement"
)

// ell14PulsesPerRev is the encoder resolution of the ELL14 rotation mount.
const ell14PulsesPerRev = 262144

// ell14Params configures a Thorlabs ELL14 rotation mount on the Elliptec
// bus.
type ell14Params struct {
	Address string `json:"address"`
}

// ELL14 drives a Thorlabs ELL14 rotation mount as a rotary stage. Positions
// are in degrees; the wire protocol speaks encoder pulses in hexadecimal,
// and the conversion never leaks past this type.
type ELL14 struct {
	device
	addr string
}

var _ instrument.Stage = (*ELL14)(nil)

// NewELL14 is the factory for the "ell14" instrument type.
func NewELL14(id string, params json.RawMessage, deps instrument.Dependencies) (instrument.Instrument, error) {
	p := ell14Params{Address: "0"}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, errors.WrapFatal(err, id, "NewELL14", "params parse")
		}
	}
	if len(p.Address) != 1 {
		return nil, errors.WrapFatal(
			fmt.Errorf("bus address %q must be one character: %w", p.Address, errors.ErrInvalidConfig),
			id, "NewELL14", "params validation")
	}
	return &ELL14{device: newDevice(id, deps), addr: p.Address}, nil
}

func degreesToPulses(deg float64) int32 {
	return int32(deg / 360.0 * ell14PulsesPerRev)
}

func pulsesToDegrees(pulses int32) float64 {
	return float64(pulses) / ell14PulsesPerRev * 360.0
}

// parsePulseReply extracts the signed pulse count from a reply like
// "0PO00011F70". The 8 hex digits are a two's complement 32-bit value.
func (e *ELL14) parsePulseReply(line, wantTag string) (int32, error) {
	if len(line) < 3+8 || !strings.HasPrefix(line[1:3], wantTag) {
		return 0, fmt.Errorf("malformed reply %q", line)
	}
	raw, err := strconv.ParseUint(line[3:11], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed reply %q: %w", line, err)
	}
	return int32(uint32(raw)), nil
}

// Initialize implements instrument.Instrument. The probe requests device
// info to confirm the mount answers at the configured address.
func (e *ELL14) Initialize(ctx context.Context) error {
	return e.connect(ctx, func(ctx context.Context) error {
		_, err := e.ask(ctx, e.addr+"in")
		return err
	})
}

// Shutdown implements instrument.Instrument.
func (e *ELL14) Shutdown(_ context.Context) error {
	return e.disconnect()
}

// MoveAbsolute implements instrument.Stage. Position in degrees.
func (e *ELL14) MoveAbsolute(ctx context.Context, position float64) error {
	if err := e.requireState(instrument.StateReady); err != nil {
		return err
	}
	pulses := degreesToPulses(position)
	return e.send(ctx, fmt.Sprintf("%sma%08X", e.addr, uint32(pulses)))
}

// MoveRelative implements instrument.Stage. Distance in degrees.
func (e *ELL14) MoveRelative(ctx context.Context, distance float64) error {
	if err := e.requireState(instrument.StateReady); err != nil {
		return err
	}
	pulses := degreesToPulses(distance)
	return e.send(ctx, fmt.Sprintf("%smr%08X", e.addr, uint32(pulses)))
}

// Position implements instrument.Stage. Degrees, published on the
// measurement feed.
func (e *ELL14) Position(ctx context.Context) (float64, error) {
	line, err := e.ask(ctx, e.addr+"gp")
	if err != nil {
		return 0, errors.Wrap(err, e.id, "Position", "position query")
	}
	pulses, err := e.parsePulseReply(line, "PO")
	if err != nil {
		return 0, errors.Wrap(err, e.id, "Position", "position parse")
	}
	deg := pulsesToDegrees(pulses)
	e.publish(&measurement.Scalar{
		Name:      e.id + "_position",
		Value:     deg,
		Unit:      "deg",
		Timestamp: time.Now(),
	})
	return deg, nil
}

// ell14BusyMask selects the motion bits of the status byte: bit 0 is
// moving, bit 1 is mechanical busy.
const ell14BusyMask = 0x03

// Moving implements instrument.Stage. Status "00" means idle; any busy bit
// set means the mount is still in motion.
func (e *ELL14) Moving(ctx context.Context) (bool, error) {
	line, err := e.ask(ctx, e.addr+"gs")
	if err != nil {
		return false, errors.Wrap(err, e.id, "Moving", "status query")
	}
	if len(line) < 5 || !strings.HasPrefix(line[1:3], "GS") {
		return false, errors.Wrap(
			fmt.Errorf("malformed reply %q", line), e.id, "Moving", "status parse")
	}
	status, err := strconv.ParseUint(line[3:5], 16, 8)
	if err != nil {
		return false, errors.Wrap(
			fmt.Errorf("malformed status %q: %w", line, err), e.id, "Moving", "status parse")
	}
	return status&ell14BusyMask != 0, nil
}

// StopMotion implements instrument.Stage.
func (e *ELL14) StopMotion(ctx context.Context) error {
	return e.send(ctx, e.addr+"st")
}

// Home implements instrument.Stage. Homes clockwise.
func (e *ELL14) Home(ctx context.Context) error {
	if err := e.requireState(instrument.StateReady); err != nil {
		return err
	}
	return e.send(ctx, e.addr+"ho0")
}

// SetVelocity implements instrument.Stage. The mount takes velocity as a
// percentage of maximum, 1-100.
func (e *ELL14) SetVelocity(ctx context.Context, v float64) error {
	if err := e.requireState(instrument.StateReady); err != nil {
		return err
	}
	if v < 1 || v > 100 {
		return errors.Wrap(errors.ErrInvalidConfig, e.id, "SetVelocity", "velocity validation")
	}
	return e.send(ctx, fmt.Sprintf("%ssv%02X", e.addr, int(v)))
}

// Execute implements instrument.Instrument.
func (e *ELL14) Execute(ctx context.Context, cmd instrument.Command) (instrument.Response, error) {
	switch cmd.Op {
	case instrument.OpSetParameter:
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

	case instrument.OpGetParameter:
		switch cmd.Name {
		case "position":
			deg, err := e.Position(ctx)
			if err != nil {
				return instrument.Err(err), nil
			}
			return instrument.Value(deg), nil
		default:
			return instrument.Errf("unknown parameter %q", cmd.Name), nil
		}

	case instrument.OpCustom:
		switch cmd.Verb {
		case "home":
			if err := e.Home(ctx); err != nil {
				return instrument.Err(err), nil
			}
			return instrument.Ok(), nil
		case "stop_motion":
			if err := e.StopMotion(ctx); err != nil {
				return instrument.Err(err), nil
			}
			return instrument.Ok(), nil
		default:
			return instrument.Errf("unknown verb %q", cmd.Verb), nil
		}

	default:
		return instrument.Err(errors.ErrInvalidInState), nil
	}
}
