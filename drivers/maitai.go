package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/instrument"
)

// maitaiParams configures a Spectra-Physics Mai Tai tunable laser.
type maitaiParams struct {
	MinWavelengthNM float64 `json:"min_wavelength_nm"`
	MaxWavelengthNM float64 `json:"max_wavelength_nm"`
}

// MaiTai drives a Spectra-Physics Mai Tai tunable Ti:sapphire laser.
// Wavelengths in nanometers, bounded by the configured tuning range.
type MaiTai struct {
	device
	minNM, maxNM float64
}

var _ instrument.TunableSource = (*MaiTai)(nil)

// NewMaiTai is the factory for the "maitai" instrument type.
func NewMaiTai(id string, params json.RawMessage, deps instrument.Dependencies) (instrument.Instrument, error) {
	p := maitaiParams{MinWavelengthNM: 690, MaxWavelengthNM: 1040}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, errors.WrapFatal(err, id, "NewMaiTai", "params parse")
		}
	}
	if p.MinWavelengthNM >= p.MaxWavelengthNM {
		return nil, errors.WrapFatal(
			fmt.Errorf("tuning range %.0f-%.0f nm inverted: %w",
				p.MinWavelengthNM, p.MaxWavelengthNM, errors.ErrInvalidConfig),
			id, "NewMaiTai", "params validation")
	}
	return &MaiTai{device: newDevice(id, deps), minNM: p.MinWavelengthNM, maxNM: p.MaxWavelengthNM}, nil
}

// Initialize implements instrument.Instrument. Probes with an identity
// query and closes the shutter so the laser comes up in a safe state.
func (m *MaiTai) Initialize(ctx context.Context) error {
	return m.connect(ctx, func(ctx context.Context) error {
		if _, err := m.ask(ctx, "*IDN?"); err != nil {
			return err
		}
		return m.send(ctx, "SHUTTER 0")
	})
}

// Shutdown implements instrument.Instrument. Closes the shutter and stops
// emission before dropping the connection.
func (m *MaiTai) Shutdown(ctx context.Context) error {
	if m.state() == instrument.StateReady || m.state() == instrument.StateAcquiring {
		if err := m.send(ctx, "SHUTTER 0"); err != nil {
			m.logger.Warn("shutter close on shutdown failed", "error", err)
		}
		if err := m.send(ctx, "OFF"); err != nil {
			m.logger.Warn("emission off on shutdown failed", "error", err)
		}
	}
	return m.disconnect()
}

// SetWavelength implements instrument.TunableSource.
func (m *MaiTai) SetWavelength(ctx context.Context, nm float64) error {
	if err := m.requireState(instrument.StateReady, instrument.StateAcquiring); err != nil {
		return err
	}
	if nm < m.minNM || nm > m.maxNM {
		return errors.Wrap(
			fmt.Errorf("wavelength %.1f nm outside tuning range %.0f-%.0f: %w",
				nm, m.minNM, m.maxNM, errors.ErrDeviceRejected),
			m.id, "SetWavelength", "range check")
	}
	return m.send(ctx, fmt.Sprintf("WAVELENGTH %d", int(nm)))
}

// Wavelength queries the current wavelength in nanometers.
func (m *MaiTai) Wavelength(ctx context.Context) (float64, error) {
	line, err := m.ask(ctx, "READ:WAVELENGTH?")
	if err != nil {
		return 0, errors.Wrap(err, m.id, "Wavelength", "wavelength query")
	}
	return strconv.ParseFloat(strings.TrimSuffix(line, "nm"), 64)
}

// Power queries the output power in watts.
func (m *MaiTai) Power(ctx context.Context) (float64, error) {
	line, err := m.ask(ctx, "READ:POWER?")
	if err != nil {
		return 0, errors.Wrap(err, m.id, "Power", "power query")
	}
	return strconv.ParseFloat(strings.TrimSuffix(line, "W"), 64)
}

// SetShutter implements instrument.TunableSource.
func (m *MaiTai) SetShutter(ctx context.Context, open bool) error {
	if err := m.requireState(instrument.StateReady, instrument.StateAcquiring); err != nil {
		return err
	}
	if open {
		return m.send(ctx, "SHUTTER 1")
	}
	return m.send(ctx, "SHUTTER 0")
}

// Enable implements instrument.TunableSource. Turns pump emission on.
func (m *MaiTai) Enable(ctx context.Context) error {
	if err := m.requireState(instrument.StateReady); err != nil {
		return err
	}
	return m.send(ctx, "ON")
}

// Disable implements instrument.TunableSource.
func (m *MaiTai) Disable(ctx context.Context) error {
	if err := m.requireState(instrument.StateReady, instrument.StateAcquiring); err != nil {
		return err
	}
	return m.send(ctx, "OFF")
}

// Execute implements instrument.Instrument.
func (m *MaiTai) Execute(ctx context.Context, cmd instrument.Command) (instrument.Response, error) {
	switch cmd.Op {
	case instrument.OpStart:
		if err := m.Enable(ctx); err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Ok(), nil

	case instrument.OpStop:
		if err := m.Disable(ctx); err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Ok(), nil

	case instrument.OpSetParameter:
		switch cmd.Name {
		case "wavelength_nm":
			var nm float64
			if err := json.Unmarshal(cmd.Value, &nm); err != nil {
				return instrument.Errf("parameter %q: %v", cmd.Name, err), nil
			}
			if err := m.SetWavelength(ctx, nm); err != nil {
				return instrument.Err(err), nil
			}
			return instrument.Ok(), nil
		case "shutter":
			var open bool
			if err := json.Unmarshal(cmd.Value, &open); err != nil {
				return instrument.Errf("parameter %q: %v", cmd.Name, err), nil
			}
			if err := m.SetShutter(ctx, open); err != nil {
				return instrument.Err(err), nil
			}
			return instrument.Ok(), nil
		default:
			return instrument.Errf("unknown parameter %q", cmd.Name), nil
		}

	case instrument.OpGetParameter:
		var (
			v   float64
			err error
		)
		switch cmd.Name {
		case "wavelength_nm":
			v, err = m.Wavelength(ctx)
		case "power":
			v, err = m.Power(ctx)
		default:
			return instrument.Errf("unknown parameter %q", cmd.Name), nil
		}
		if err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Value(v), nil

	default:
		return instrument.Err(errors.ErrInvalidInState), nil
	}
}
