package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/hardware"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/measurement"
	"github.com/easternanemone/daqstreams/metric"
)

const (
	// commandQueueDepth bounds how many commands may wait per instrument
	// before senders block (and eventually time out).
	commandQueueDepth = 32

	defaultShutdownTimeout = 5 * time.Second
	defaultCommandTimeout  = 10 * time.Second
	defaultRespawnDelay    = time.Second
)

// SpawnSpec describes one instrument to bring up.
type SpawnSpec struct {
	ID      string
	Type    string
	Adapter string          // adapter kind, "mock" when empty
	Conn    hardware.Config // connection config passed to the adapter
	Params  json.RawMessage // driver-specific parameters
}

// AdapterFactory builds the transport for a spawn. The default uses the
// hardware package factory registry; tests substitute scripted mocks.
type AdapterFactory func(spec SpawnSpec) (hardware.Adapter, error)

type commandResult struct {
	resp instrument.Response
	err  error
}

type commandRequest struct {
	cmd   instrument.Command
	reply chan commandResult
}

// handle is the manager's side of one running instrument task. The runID
// distinguishes incarnations of the same instrument ID, so a supervisor
// finishing an old task never removes a newer respawn.
type handle struct {
	id     string
	runID  uuid.UUID
	spec   SpawnSpec
	inst   instrument.Instrument
	cmds   chan commandRequest
	cancel context.CancelFunc
	done   chan struct{}

	respawns int

	mu      sync.Mutex
	exitErr error
}

func (h *handle) setExit(err error) {
	h.mu.Lock()
	h.exitErr = err
	h.mu.Unlock()
}

func (h *handle) exitError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Manager owns every instrument task and the shared measurement
// distributor downstream consumers subscribe to.
type Manager struct {
	logger     *slog.Logger
	registry   *instrument.Registry
	metrics    *metric.Metrics
	dist       *measurement.Distributor
	adapters   AdapterFactory
	shutdownTO time.Duration
	commandTO  time.Duration

	respawnMax   int
	respawnDelay time.Duration

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics wires the core runtime metrics. The shared distributor's
// delivery accounting is bridged automatically.
func WithMetrics(m *metric.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithShutdownTimeout sets the per-instrument graceful shutdown budget used
// by ShutdownAll.
func WithShutdownTimeout(d time.Duration) Option {
	return func(mgr *Manager) { mgr.shutdownTO = d }
}

// WithCommandTimeout sets the round-trip budget used when SendCommand is
// called with a non-positive timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(mgr *Manager) { mgr.commandTO = d }
}

// WithRespawn enables automatic respawn after abnormal task exit, at most
// max times per instrument with the given delay between attempts.
func WithRespawn(max int, delay time.Duration) Option {
	return func(mgr *Manager) {
		mgr.respawnMax = max
		mgr.respawnDelay = delay
	}
}

// WithAdapterFactory overrides how adapters are built for spawns.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(mgr *Manager) { mgr.adapters = f }
}

// New creates a Manager. distCfg sizes the shared distributor; a nil
// logger falls back to slog.Default.
func New(registry *instrument.Registry, distCfg measurement.Config, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:       logger.With("component", "manager"),
		registry:     registry,
		shutdownTO:   defaultShutdownTimeout,
		commandTO:    defaultCommandTimeout,
		respawnDelay: defaultRespawnDelay,
		handles:      make(map[string]*handle),
	}
	m.adapters = func(spec SpawnSpec) (hardware.Adapter, error) {
		kind := spec.Adapter
		if kind == "" {
			kind = "mock"
		}
		return hardware.NewAdapter(kind)
	}
	for _, opt := range opts {
		opt(m)
	}

	var distOpts []measurement.Option
	if m.metrics != nil {
		distOpts = append(distOpts, measurement.WithDeliveryHook(m.metrics.DeliveryHook()))
	}
	m.dist = measurement.NewDistributor(distCfg, logger, distOpts...)
	return m
}

// Spawn brings up one instrument: builds its adapter and driver, starts the
// task goroutine, and registers the handle. Spawning an ID that is already
// running fails with ErrAlreadyRunning.
func (m *Manager) Spawn(spec SpawnSpec) error {
	if spec.ID == "" || spec.Type == "" {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Manager", "Spawn", "spec validation")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.Wrap(errors.ErrShuttingDown, "Manager", "Spawn", "manager state check")
	}
	if h, exists := m.handles[spec.ID]; exists {
		select {
		case <-h.done:
			// Previous incarnation finished; its supervisor just has not
			// removed the handle yet.
		default:
			return errors.Wrap(errors.ErrAlreadyRunning, "Manager", "Spawn", "duplicate id check")
		}
	}

	return m.spawnLocked(spec, 0)
}

// spawnLocked creates and starts one task incarnation. Caller holds m.mu.
func (m *Manager) spawnLocked(spec SpawnSpec, respawns int) error {
	adapter, err := m.adapters(spec)
	if err != nil {
		return errors.Wrap(err, "Manager", "Spawn", "adapter creation")
	}

	inst, err := m.registry.Create(spec.Type, spec.ID, spec.Params, instrument.Dependencies{
		Logger:  m.logger,
		Adapter: adapter,
		Conn:    spec.Conn,
	})
	if err != nil {
		return errors.Wrap(err, "Manager", "Spawn", "instrument creation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		id:       spec.ID,
		runID:    uuid.New(),
		spec:     spec,
		inst:     inst,
		cmds:     make(chan commandRequest, commandQueueDepth),
		cancel:   cancel,
		done:     make(chan struct{}),
		respawns: respawns,
	}
	m.handles[spec.ID] = h

	m.logger.Info("instrument task starting",
		"instrument", spec.ID, "type", spec.Type, "run_id", h.runID)

	go m.runTask(ctx, h)
	go m.supervise(h)
	return nil
}

// lookup returns the live handle for id, or nil.
func (m *Manager) lookup(id string) *handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles[id]
}

// SendCommand routes one command to an instrument and waits for the reply.
// Timeout covers the full round trip, queueing included; a non-positive
// timeout falls back to the configured command timeout. Commands to unknown
// or crashed instruments fail with ErrNotFound.
func (m *Manager) SendCommand(
	ctx context.Context, id string, cmd instrument.Command, timeout time.Duration,
) (instrument.Response, error) {
	h := m.lookup(id)
	if h == nil {
		return instrument.Response{}, errors.Wrap(errors.ErrNotFound, "Manager", "SendCommand", "instrument lookup")
	}
	if timeout <= 0 {
		timeout = m.commandTO
	}

	start := time.Now()
	req := commandRequest{cmd: cmd, reply: make(chan commandResult, 1)}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case h.cmds <- req:
	case <-h.done:
		return instrument.Response{}, errors.Wrap(errors.ErrNotFound, "Manager", "SendCommand", "task exited")
	case <-timer.C:
		m.observeCommand(h, cmd, "timeout", start)
		return instrument.Response{}, errors.Wrap(errors.ErrTimeout, "Manager", "SendCommand", "command enqueue")
	case <-ctx.Done():
		return instrument.Response{}, ctx.Err()
	}

	select {
	case res := <-req.reply:
		status := "ok"
		if res.err != nil || res.resp.Kind == instrument.ResponseErr {
			status = "error"
		}
		m.observeCommand(h, cmd, status, start)
		return res.resp, res.err
	case <-h.done:
		// The task died with this command in flight; it will never reply.
		m.observeCommand(h, cmd, "lost", start)
		return instrument.Response{}, errors.Wrap(errors.ErrNotFound, "Manager", "SendCommand", "task exited mid-command")
	case <-timer.C:
		m.observeCommand(h, cmd, "timeout", start)
		return instrument.Response{}, errors.Wrap(errors.ErrTimeout, "Manager", "SendCommand", "command reply wait")
	case <-ctx.Done():
		return instrument.Response{}, ctx.Err()
	}
}

func (m *Manager) observeCommand(h *handle, cmd instrument.Command, status string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.CommandsTotal.WithLabelValues(h.id, cmd.Op.String(), status).Inc()
	m.metrics.CommandDuration.WithLabelValues(h.id, cmd.Op.String()).
		Observe(time.Since(start).Seconds())
}

// Status returns the lifecycle snapshot of one instrument.
func (m *Manager) Status(id string) (instrument.Status, error) {
	h := m.lookup(id)
	if h == nil {
		return instrument.Status{}, errors.Wrap(errors.ErrNotFound, "Manager", "Status", "instrument lookup")
	}
	return h.inst.Status(), nil
}

// Instrument returns the running instrument for capability assertion.
func (m *Manager) Instrument(id string) (instrument.Instrument, error) {
	h := m.lookup(id)
	if h == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "Manager", "Instrument", "instrument lookup")
	}
	return h.inst, nil
}

// List returns the IDs of all registered instruments, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subscribe attaches a named consumer to the shared measurement feed.
func (m *Manager) Subscribe(name string) *measurement.Subscription {
	return m.dist.Subscribe(name)
}

// DistributorMetrics returns delivery health for every shared-feed
// subscriber.
func (m *Manager) DistributorMetrics() []measurement.SubscriberSnapshot {
	return m.dist.Snapshot()
}

// ShutdownAll gracefully stops every instrument in parallel. Each gets the
// configured shutdown budget to finish; tasks that exceed it are cancelled.
// The returned map holds one entry per instrument, nil on clean shutdown.
func (m *Manager) ShutdownAll(ctx context.Context) map[string]error {
	m.mu.Lock()
	m.closed = true
	targets := make([]*handle, 0, len(m.handles))
	for _, h := range m.handles {
		targets = append(targets, h)
	}
	m.mu.Unlock()

	var (
		resultMu sync.Mutex
		results  = make(map[string]error, len(targets))
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, h := range targets {
		h := h
		g.Go(func() error {
			err := m.shutdownOne(ctx, h)
			resultMu.Lock()
			results[h.id] = err
			resultMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.dist.Close()
	m.logger.Info("all instrument tasks stopped", "count", len(targets))
	return results
}

// shutdownOne asks one task to stop gracefully, forcing cancellation when
// the budget runs out.
func (m *Manager) shutdownOne(ctx context.Context, h *handle) error {
	req := commandRequest{cmd: instrument.Shutdown(), reply: make(chan commandResult, 1)}
	timer := time.NewTimer(m.shutdownTO)
	defer timer.Stop()

	select {
	case h.cmds <- req:
	case <-h.done:
		return h.exitError()
	case <-timer.C:
		return m.forceStop(h)
	case <-ctx.Done():
		return m.forceStop(h)
	}

	select {
	case res := <-req.reply:
		<-h.done
		return res.err
	case <-h.done:
		return h.exitError()
	case <-timer.C:
		m.logger.Warn("graceful shutdown timed out, cancelling task", "instrument", h.id)
		return m.forceStop(h)
	case <-ctx.Done():
		return m.forceStop(h)
	}
}

func (m *Manager) forceStop(h *handle) error {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(m.shutdownTO):
		return errors.Wrap(errors.ErrTimeout, "Manager", "ShutdownAll",
			fmt.Sprintf("instrument %s did not stop after cancellation", h.id))
	}
	return errors.Wrap(errors.ErrTimeout, "Manager", "ShutdownAll",
		fmt.Sprintf("instrument %s required forced cancellation", h.id))
}
