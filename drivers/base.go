package drivers

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/hardware"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/measurement"
)

const defaultReadTimeout = 2 * time.Second

// device carries the lifecycle state machine, adapter access, and
// measurement feed shared by every driver. Adapter I/O is serialized by io;
// status has its own lock so queries never wait behind a slow device
// exchange.
type device struct {
	id     string
	logger *slog.Logger

	io          sync.Mutex
	adapter     hardware.Adapter
	conn        hardware.Config
	readTimeout time.Duration

	statusMu sync.RWMutex
	status   instrument.Status

	dist *measurement.Distributor
}

func newDevice(id string, deps instrument.Dependencies) device {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return device{
		id:          id,
		logger:      logger.With("instrument", id),
		adapter:     deps.Adapter,
		conn:        deps.Conn,
		readTimeout: defaultReadTimeout,
		dist:        measurement.NewDistributor(measurement.DefaultConfig(), logger),
		status:      instrument.Status{State: instrument.StateDisconnected},
	}
}

func (d *device) ID() string { return d.id }

func (d *device) Status() instrument.Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.status
}

func (d *device) Measurements(name string) *measurement.Subscription {
	return d.dist.Subscribe(name)
}

func (d *device) setState(s instrument.State) {
	d.statusMu.Lock()
	d.status = instrument.Status{State: s}
	d.statusMu.Unlock()
}

func (d *device) setFault(err error) {
	d.statusMu.Lock()
	d.status = instrument.Status{
		State:       instrument.StateError,
		Fault:       err.Error(),
		Recoverable: errors.IsRecoverable(err),
	}
	d.statusMu.Unlock()
}

func (d *device) state() instrument.State {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()
	return d.status.State
}

// requireState checks the current state against the allowed set. Commands
// arriving in a wrong state fail with ErrInvalidInState rather than
// touching the device.
func (d *device) requireState(allowed ...instrument.State) error {
	current := d.state()
	for _, s := range allowed {
		if current == s {
			return nil
		}
	}
	return errors.ErrInvalidInState
}

// connect drives Disconnected → Connecting → Ready, with the supplied probe
// run after the transport opens to verify the device answers.
func (d *device) connect(ctx context.Context, probe func(ctx context.Context) error) error {
	if d.state() == instrument.StateReady || d.state() == instrument.StateAcquiring {
		return errors.ErrAlreadyRunning
	}
	d.setState(instrument.StateConnecting)

	d.io.Lock()
	err := d.adapter.Connect(ctx, d.conn)
	d.io.Unlock()
	// An already-open transport happens when a previous attempt failed at
	// the probe stage; reuse it.
	if err != nil && !errors.Is(err, errors.ErrAlreadyRunning) {
		d.setFault(err)
		return errors.Wrap(err, d.id, "Initialize", "transport connect")
	}

	if probe != nil {
		if err := probe(ctx); err != nil {
			d.setFault(err)
			return errors.Wrap(err, d.id, "Initialize", "identity probe")
		}
	}

	d.setState(instrument.StateReady)
	d.logger.Info("instrument connected")
	return nil
}

// disconnect drives any state → ShuttingDown → Disconnected and closes the
// measurement feed. Idempotent.
func (d *device) disconnect() error {
	if d.state() == instrument.StateDisconnected {
		return nil
	}
	d.setState(instrument.StateShuttingDown)

	d.io.Lock()
	err := d.adapter.Close()
	d.io.Unlock()

	d.dist.Close()
	d.setState(instrument.StateDisconnected)
	d.logger.Info("instrument disconnected")
	return err
}

// publish hands one measurement to the feed.
func (d *device) publish(m measurement.Measurement) {
	d.dist.Broadcast(m)
}

// send writes one command line with no expected reply.
func (d *device) send(ctx context.Context, cmd string) error {
	d.io.Lock()
	defer d.io.Unlock()
	return d.adapter.Write(ctx, []byte(cmd+"\r"))
}

// ask writes one command line and reads the single reply line, holding the
// I/O lock across the exchange so concurrent callers cannot interleave
// request and response.
func (d *device) ask(ctx context.Context, cmd string) (string, error) {
	d.io.Lock()
	defer d.io.Unlock()

	if err := d.adapter.Write(ctx, []byte(cmd+"\r")); err != nil {
		return "", err
	}
	line, err := d.adapter.ReadLine(ctx, d.readTimeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(line)), nil
}
