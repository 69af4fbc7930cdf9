package instrument

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/measurement"
)

// stubStage implements Stage with a programmable Moving sequence.
type stubStage struct {
	movingPolls atomic.Int64
	movingFor   int64
	movingErr   error
}

func (s *stubStage) ID() string                            { return "stub-stage" }
func (s *stubStage) Status() Status                        { return Status{State: StateReady} }
func (s *stubStage) Initialize(context.Context) error      { return nil }
func (s *stubStage) Shutdown(context.Context) error        { return nil }
func (s *stubStage) Measurements(string) *measurement.Subscription {
	return nil
}
func (s *stubStage) Execute(context.Context, Command) (Response, error) {
	return Ok(), nil
}
func (s *stubStage) MoveAbsolute(context.Context, float64) error { return nil }
func (s *stubStage) MoveRelative(context.Context, float64) error { return nil }
func (s *stubStage) Position(context.Context) (float64, error)   { return 0, nil }
func (s *stubStage) StopMotion(context.Context) error            { return nil }
func (s *stubStage) Home(context.Context) error                  { return nil }
func (s *stubStage) SetVelocity(context.Context, float64) error  { return nil }

func (s *stubStage) Moving(context.Context) (bool, error) {
	if s.movingErr != nil {
		return false, s.movingErr
	}
	n := s.movingPolls.Add(1)
	return n <= s.movingFor, nil
}

func TestWaitSettledReturnsWhenStationary(t *testing.T) {
	s := &stubStage{movingFor: 3}
	err := WaitSettled(context.Background(), s, time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, s.movingPolls.Load(), int64(4))
}

func TestWaitSettledTimesOut(t *testing.T) {
	s := &stubStage{movingFor: 1 << 30}
	err := WaitSettled(context.Background(), s, 120*time.Millisecond)
	assert.ErrorIs(t, err, errors.ErrTimeout)
}

func TestWaitSettledPropagatesQueryError(t *testing.T) {
	s := &stubStage{movingErr: errors.ErrNotConnected}
	err := WaitSettled(context.Background(), s, time.Second)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestWaitSettledHonorsContext(t *testing.T) {
	s := &stubStage{movingFor: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	err := WaitSettled(ctx, s, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommandConstructors(t *testing.T) {
	cmd := SetParameter("exposure_ms", 10.5)
	assert.Equal(t, OpSetParameter, cmd.Op)
	assert.Equal(t, "exposure_ms", cmd.Name)
	assert.JSONEq(t, "10.5", string(cmd.Value))

	cmd = GetParameter("wavelength_nm")
	assert.Equal(t, OpGetParameter, cmd.Op)
	assert.Equal(t, "wavelength_nm", cmd.Name)

	cmd = Custom("home", nil)
	assert.Equal(t, OpCustom, cmd.Op)
	assert.Equal(t, "home", cmd.Verb)

	assert.Equal(t, OpStart, Start().Op)
	assert.Equal(t, OpStop, Stop().Op)
	assert.Equal(t, OpShutdown, Shutdown().Op)
	assert.Equal(t, OpRecover, Recover().Op)
}

func TestResponseConstructors(t *testing.T) {
	assert.Equal(t, ResponseOk, Ok().Kind)

	r := Value(map[string]float64{"position": 12.5})
	require.Equal(t, ResponseValue, r.Kind)
	assert.JSONEq(t, `{"position":12.5}`, string(r.Value))

	r = Err(errors.ErrInvalidInState)
	assert.Equal(t, ResponseErr, r.Kind)
	assert.Contains(t, r.Err, "not valid in current state")

	r = Errf("unknown parameter %q", "gain")
	assert.Equal(t, ResponseErr, r.Kind)
	assert.Equal(t, `unknown parameter "gain"`, r.Err)
}

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateReady:        "ready",
		StateAcquiring:    "acquiring",
		StateError:        "error",
		StateShuttingDown: "shutting_down",
		State(99):         "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
