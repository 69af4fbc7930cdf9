package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/pkg/retry"
)

// runTask is the instrument task: the single goroutine owning all
// interaction with one instrument. It initializes the hardware with the
// connection retry policy, bridges the instrument's feed into the shared
// distributor, then processes commands in arrival order until shutdown,
// cancellation, or a crash.
func (m *Manager) runTask(ctx context.Context, h *handle) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			h.setExit(errors.WrapFatal(
				fmt.Errorf("task panic: %v", r), h.id, "task", "command processing"))
			m.logger.Error("instrument task panicked", "instrument", h.id, "panic", r)
		}
		m.releaseInstrument(h)
		m.observeState(h)
	}()

	if err := m.initialize(ctx, h); err != nil {
		h.setExit(err)
		m.logger.Error("instrument initialization failed", "instrument", h.id, "error", err)
		return
	}
	m.observeState(h)

	// Forward the instrument's own feed into the shared distributor until
	// the instrument closes it during shutdown.
	sub := h.inst.Measurements("manager/" + h.id)
	go func() {
		for meas := range sub.C() {
			m.dist.Broadcast(meas)
			if m.metrics != nil {
				m.metrics.MeasurementsPublished.WithLabelValues(h.id).Inc()
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.setExit(ctx.Err())
			return

		case req := <-h.cmds:
			if done := m.processCommand(ctx, h, req); done {
				return
			}
		}
	}
}

// releaseInstrument force-closes an instrument whose task is exiting
// without having shut it down: panic, initialization failure, or
// cancellation. Closing the feed also terminates the measurement bridge,
// and the hardware connection is released before any respawn opens a
// fresh one.
func (m *Manager) releaseInstrument(h *handle) {
	if h.inst.Status().State == instrument.StateDisconnected {
		return
	}
	shCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTO)
	defer cancel()
	if err := h.inst.Shutdown(shCtx); err != nil {
		m.logger.Warn("instrument cleanup failed", "instrument", h.id, "error", err)
	}
}

// processCommand handles one command inside the task. Returns true when the
// task should exit.
func (m *Manager) processCommand(ctx context.Context, h *handle, req commandRequest) bool {
	switch req.cmd.Op {
	case instrument.OpShutdown:
		err := h.inst.Shutdown(ctx)
		if err != nil {
			req.reply <- commandResult{resp: instrument.Err(err), err: nil}
		} else {
			req.reply <- commandResult{resp: instrument.Ok()}
		}
		m.observeState(h)
		m.logger.Info("instrument task stopped", "instrument", h.id, "run_id", h.runID)
		return true

	case instrument.OpRecover:
		status := h.inst.Status()
		if status.State != instrument.StateError || !status.Recoverable {
			req.reply <- commandResult{resp: instrument.Err(errors.ErrInvalidInState)}
			return false
		}
		if err := m.initialize(ctx, h); err != nil {
			req.reply <- commandResult{resp: instrument.Err(err)}
		} else {
			req.reply <- commandResult{resp: instrument.Ok()}
		}
		m.observeState(h)
		return false

	default:
		resp, err := h.inst.Execute(ctx, req.cmd)
		req.reply <- commandResult{resp: resp, err: err}
		m.observeState(h)
		return false
	}
}

// initialize connects the hardware using the connection retry policy.
// Fatal faults (bad config, closed adapter) stop retrying immediately.
func (m *Manager) initialize(ctx context.Context, h *handle) error {
	return retry.Do(ctx, retry.Connection(), func() error {
		err := h.inst.Initialize(ctx)
		if m.metrics != nil {
			status := "ok"
			if err != nil {
				status = "error"
			}
			m.metrics.ConnectAttempts.WithLabelValues(h.id, status).Inc()
		}
		if err != nil && errors.IsFatal(err) {
			return retry.NonRetryable(err)
		}
		return err
	})
}

// observeState mirrors the instrument's lifecycle state into the gauge.
func (m *Manager) observeState(h *handle) {
	if m.metrics == nil {
		return
	}
	m.metrics.InstrumentState.WithLabelValues(h.id).
		Set(float64(h.inst.Status().State))
}

// supervise waits for one task incarnation to finish, fails queued
// commands, removes the handle, and respawns crashed tasks when enabled.
func (m *Manager) supervise(h *handle) {
	<-h.done

	// Senders that were queued behind the exited task get a synthesized
	// not-found failure instead of hanging.
	for {
		select {
		case req := <-h.cmds:
			req.reply <- commandResult{err: errors.Wrap(
				fmt.Errorf("%w: %w", errors.ErrNotFound, errors.ErrTaskExited),
				h.id, "task", "command processing")}
			continue
		default:
		}
		break
	}

	exitErr := h.exitError()
	abnormal := exitErr != nil && !errors.Is(exitErr, context.Canceled)

	m.mu.Lock()
	if cur, ok := m.handles[h.id]; ok && cur.runID == h.runID {
		delete(m.handles, h.id)
	}
	respawn := abnormal && !m.closed && m.respawnMax > 0 && h.respawns < m.respawnMax
	m.mu.Unlock()

	if exitErr != nil {
		m.logger.Warn("instrument task exited",
			"instrument", h.id, "run_id", h.runID, "error", exitErr)
	}
	if !respawn {
		return
	}

	time.Sleep(m.respawnDelay)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, exists := m.handles[h.id]; exists {
		// Someone spawned a replacement in the meantime.
		return
	}
	if m.metrics != nil {
		m.metrics.TaskRespawns.WithLabelValues(h.id).Inc()
	}
	m.logger.Info("respawning crashed instrument task",
		"instrument", h.id, "attempt", h.respawns+1)
	if err := m.spawnLocked(h.spec, h.respawns+1); err != nil {
		m.logger.Error("respawn failed", "instrument", h.id, "error", err)
	}
}
