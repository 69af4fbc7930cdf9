package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/measurement"
)

// newport1830cParams configures a Newport 1830-C optical power meter.
type newport1830cParams struct {
	WavelengthNM   float64 `json:"wavelength_nm"`
	SampleInterval string  `json:"sample_interval"`
}

// Newport1830C drives a Newport 1830-C optical power meter. While
// acquiring, a background sampler polls the detector and publishes power
// readings in watts on the measurement feed.
type Newport1830C struct {
	device

	wavelengthNM   float64
	sampleInterval time.Duration

	runMu     sync.Mutex
	sampleCtx context.CancelFunc
	sampleWG  sync.WaitGroup
}

var _ instrument.PowerSensor = (*Newport1830C)(nil)

// NewNewport1830C is the factory for the "newport1830c" instrument type.
func NewNewport1830C(id string, params json.RawMessage, deps instrument.Dependencies) (instrument.Instrument, error) {
	p := newport1830cParams{WavelengthNM: 800, SampleInterval: "100ms"}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, errors.WrapFatal(err, id, "NewNewport1830C", "params parse")
		}
	}
	interval, err := time.ParseDuration(p.SampleInterval)
	if err != nil || interval <= 0 {
		return nil, errors.WrapFatal(
			fmt.Errorf("sample_interval %q: %w", p.SampleInterval, errors.ErrInvalidConfig),
			id, "NewNewport1830C", "params validation")
	}
	if p.WavelengthNM < 400 || p.WavelengthNM > 1100 {
		return nil, errors.WrapFatal(
			fmt.Errorf("wavelength_nm %v: %w", p.WavelengthNM, errors.ErrInvalidConfig),
			id, "NewNewport1830C", "params validation")
	}
	return &Newport1830C{
		device:         newDevice(id, deps),
		wavelengthNM:   p.WavelengthNM,
		sampleInterval: interval,
	}, nil
}

// Initialize implements instrument.Instrument. Probes with a units query,
// then selects watts, auto-ranging, and the configured calibration
// wavelength.
func (n *Newport1830C) Initialize(ctx context.Context) error {
	return n.connect(ctx, func(ctx context.Context) error {
		if _, err := n.ask(ctx, "U?"); err != nil {
			return err
		}
		if err := n.send(ctx, "U1"); err != nil {
			return err
		}
		if err := n.send(ctx, "R0"); err != nil {
			return err
		}
		return n.send(ctx, fmt.Sprintf("W%d", int(n.wavelengthNM)))
	})
}

// Shutdown implements instrument.Instrument. Stops the sampler before
// dropping the connection.
func (n *Newport1830C) Shutdown(_ context.Context) error {
	n.stopSampler()
	return n.disconnect()
}

// SetWavelength implements instrument.PowerSensor. Calibration wavelength
// in nanometers.
func (n *Newport1830C) SetWavelength(ctx context.Context, nm float64) error {
	if err := n.requireState(instrument.StateReady, instrument.StateAcquiring); err != nil {
		return err
	}
	if nm < 400 || nm > 1100 {
		return errors.Wrap(errors.ErrInvalidConfig, n.id, "SetWavelength", "wavelength validation")
	}
	return n.send(ctx, fmt.Sprintf("W%d", int(nm)))
}

// SetRange implements instrument.PowerSensor. Zero watts selects
// auto-ranging.
func (n *Newport1830C) SetRange(ctx context.Context, watts float64) error {
	if err := n.requireState(instrument.StateReady, instrument.StateAcquiring); err != nil {
		return err
	}
	if watts == 0 {
		return n.send(ctx, "R0")
	}
	// Manual ranges 1-8 cover 2nW through 2W in decades.
	rng := 1
	for threshold := 2e-9; threshold < watts && rng < 8; threshold *= 10 {
		rng++
	}
	return n.send(ctx, fmt.Sprintf("R%d", rng))
}

// Zero implements instrument.PowerSensor. Only valid while idle: zeroing
// during acquisition would corrupt in-flight readings.
func (n *Newport1830C) Zero(ctx context.Context) error {
	if err := n.requireState(instrument.StateReady); err != nil {
		return err
	}
	return n.send(ctx, "Z1")
}

// readPower performs one detector exchange.
func (n *Newport1830C) readPower(ctx context.Context) (float64, error) {
	line, err := n.ask(ctx, "D?")
	if err != nil {
		return 0, errors.Wrap(err, n.id, "readPower", "detector query")
	}
	watts, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, errors.Wrap(err, n.id, "readPower", "reading parse")
	}
	return watts, nil
}

// startSampler transitions Ready → Acquiring and launches the polling
// goroutine.
func (n *Newport1830C) startSampler() error {
	n.runMu.Lock()
	defer n.runMu.Unlock()

	if err := n.requireState(instrument.StateReady); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.sampleCtx = cancel
	n.setState(instrument.StateAcquiring)

	n.sampleWG.Add(1)
	go func() {
		defer n.sampleWG.Done()
		ticker := time.NewTicker(n.sampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			watts, err := n.readPower(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				n.logger.Warn("power sample failed", "error", err)
				continue
			}
			n.publish(&measurement.Scalar{
				Name:      n.id + "_power",
				Value:     watts,
				Unit:      "W",
				Timestamp: time.Now(),
			})
		}
	}()
	return nil
}

// stopSampler halts the polling goroutine and returns to Ready. No-op when
// not acquiring.
func (n *Newport1830C) stopSampler() {
	n.runMu.Lock()
	defer n.runMu.Unlock()

	if n.sampleCtx == nil {
		return
	}
	n.sampleCtx()
	n.sampleCtx = nil
	n.sampleWG.Wait()
	if n.state() == instrument.StateAcquiring {
		n.setState(instrument.StateReady)
	}
}

// Execute implements instrument.Instrument.
func (n *Newport1830C) Execute(ctx context.Context, cmd instrument.Command) (instrument.Response, error) {
	switch cmd.Op {
	case instrument.OpStart:
		if err := n.startSampler(); err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Ok(), nil

	case instrument.OpStop:
		if n.state() != instrument.StateAcquiring {
			return instrument.Err(errors.ErrInvalidInState), nil
		}
		n.stopSampler()
		return instrument.Ok(), nil

	case instrument.OpSetParameter:
		var v float64
		if err := json.Unmarshal(cmd.Value, &v); err != nil {
			return instrument.Errf("parameter %q: %v", cmd.Name, err), nil
		}
		var err error
		switch cmd.Name {
		case "wavelength_nm":
			err = n.SetWavelength(ctx, v)
		case "range_watts":
			err = n.SetRange(ctx, v)
		default:
			return instrument.Errf("unknown parameter %q", cmd.Name), nil
		}
		if err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Ok(), nil

	case instrument.OpGetParameter:
		switch cmd.Name {
		case "power":
			watts, err := n.readPower(ctx)
			if err != nil {
				return instrument.Err(err), nil
			}
			return instrument.Value(watts), nil
		default:
			return instrument.Errf("unknown parameter %q", cmd.Name), nil
		}

	case instrument.OpCustom:
		switch cmd.Verb {
		case "zero":
			if err := n.Zero(ctx); err != nil {
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
