package hardware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/easternanemone/daqstreams/errors"
)

type mockState int

const (
	mockIdle mockState = iota
	mockConnected
	mockClosed
)

// Mock is a scripted in-memory Adapter for driver tests and simulated
// instruments. Stub maps request lines to response lines; unsolicited
// responses can be queued with Push. Unlike real adapters, Mock is
// mutex-guarded throughout so tests can script it from other goroutines.
type Mock struct {
	mu    sync.Mutex
	state mockState

	script  map[string]string
	pending []string
	written []string

	connectErrs []error
	writeErr    error
	readDelay   time.Duration

	connectCount int
	cfg          Config
}

// NewMock creates an unconnected mock adapter with an empty script.
func NewMock() *Mock {
	return &Mock{script: make(map[string]string)}
}

// Stub registers a canned response for an exact request line. The request
// is matched after trailing CR/LF is stripped.
func (m *Mock) Stub(request, response string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script[request] = response
	return m
}

// Push queues a response line to be returned by the next ReadLine even
// without a preceding Write. Used to simulate devices that stream
// unsolicited data.
func (m *Mock) Push(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, line)
}

// FailConnect makes the next len(errs) Connect calls fail in order before
// succeeding. Used to exercise connection retry.
func (m *Mock) FailConnect(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErrs = append(m.connectErrs, errs...)
}

// FailWrites makes all subsequent Write calls fail with err until cleared
// with a nil err.
func (m *Mock) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetReadDelay delays every ReadLine by d before producing a response.
func (m *Mock) SetReadDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readDelay = d
}

// Writes returns every request line written so far, in order.
func (m *Mock) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.written))
	copy(out, m.written)
	return out
}

// ConnectCount returns how many Connect attempts have been made, including
// failed ones.
func (m *Mock) ConnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCount
}

// Connect implements Adapter.
func (m *Mock) Connect(_ context.Context, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connectCount++
	switch m.state {
	case mockClosed:
		return errors.ErrAdapterClosed
	case mockConnected:
		return errors.ErrAlreadyRunning
	}

	if len(m.connectErrs) > 0 {
		err := m.connectErrs[0]
		m.connectErrs = m.connectErrs[1:]
		return err
	}

	m.cfg = cfg
	m.state = mockConnected
	return nil
}

// Write implements Adapter. The written line is recorded and, when the
// script has a matching entry, the scripted response is queued for the next
// ReadLine.
func (m *Mock) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkConnected(); err != nil {
		return err
	}
	if m.writeErr != nil {
		return m.writeErr
	}

	line := strings.TrimRight(string(data), "\r\n")
	m.written = append(m.written, line)
	if resp, ok := m.script[line]; ok {
		m.pending = append(m.pending, resp)
	}
	return nil
}

// ReadLine implements Adapter. Returns the next queued response, or
// ErrReadTimeout when nothing is pending after the configured delay.
func (m *Mock) ReadLine(ctx context.Context, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	if err := m.checkConnected(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	delay := m.readDelay
	m.mu.Unlock()

	if delay > 0 {
		if delay > timeout {
			delay = timeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkConnected(); err != nil {
		return nil, err
	}
	if len(m.pending) == 0 {
		return nil, errors.ErrReadTimeout
	}
	line := m.pending[0]
	m.pending = m.pending[1:]
	return []byte(line), nil
}

// Close implements Adapter.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = mockClosed
	return nil
}

func (m *Mock) checkConnected() error {
	switch m.state {
	case mockClosed:
		return errors.ErrAdapterClosed
	case mockIdle:
		return errors.ErrNotConnected
	}
	return nil
}
