package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/hardware"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/measurement"
)

func newTestESP300(t *testing.T, mock *hardware.Mock) *ESP300 {
	t.Helper()
	inst, err := NewESP300("stage1", nil, instrument.Dependencies{Adapter: mock})
	require.NoError(t, err)
	return inst.(*ESP300)
}

func TestESP300InitializeAndShutdown(t *testing.T) {
	mock := hardware.NewMock().Stub("1ID?", "UTM150PP.1")
	stage := newTestESP300(t, mock)
	ctx := context.Background()

	assert.Equal(t, instrument.StateDisconnected, stage.Status().State)
	require.NoError(t, stage.Initialize(ctx))
	assert.Equal(t, instrument.StateReady, stage.Status().State)

	require.NoError(t, stage.Shutdown(ctx))
	assert.Equal(t, instrument.StateDisconnected, stage.Status().State)
}

func TestESP300InitializeFailureSetsError(t *testing.T) {
	mock := hardware.NewMock()
	mock.FailConnect(errors.ErrConnectionFailed)
	stage := newTestESP300(t, mock)

	err := stage.Initialize(context.Background())
	require.Error(t, err)
	status := stage.Status()
	assert.Equal(t, instrument.StateError, status.State)
	assert.NotEmpty(t, status.Fault)
}

func TestESP300RejectsMotionBeforeInitialize(t *testing.T) {
	stage := newTestESP300(t, hardware.NewMock())
	err := stage.MoveAbsolute(context.Background(), 10)
	assert.ErrorIs(t, err, errors.ErrInvalidInState)
}

func TestESP300MoveAndPosition(t *testing.T) {
	mock := hardware.NewMock().
		Stub("1ID?", "UTM150PP.1").
		Stub("1TP?", "12.500000").
		Stub("1MD?", "1")
	stage := newTestESP300(t, mock)
	ctx := context.Background()
	require.NoError(t, stage.Initialize(ctx))

	sub := stage.Measurements("test")

	require.NoError(t, stage.MoveAbsolute(ctx, 12.5))
	require.NoError(t, instrument.WaitSettled(ctx, stage, time.Second))

	pos, err := stage.Position(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12.5, pos)

	select {
	case m := <-sub.C():
		s := m.(*measurement.Scalar)
		assert.Equal(t, "stage1_position", s.Channel())
		assert.Equal(t, 12.5, s.Value)
		assert.Equal(t, "mm", s.Unit)
	case <-time.After(time.Second):
		t.Fatal("no position measurement published")
	}

	assert.Contains(t, mock.Writes(), "1PA12.500000")
}

func TestESP300VelocityValidation(t *testing.T) {
	mock := hardware.NewMock().Stub("1ID?", "UTM150PP.1")
	stage := newTestESP300(t, mock)
	require.NoError(t, stage.Initialize(context.Background()))

	assert.ErrorIs(t, stage.SetVelocity(context.Background(), -1), errors.ErrInvalidConfig)
	assert.NoError(t, stage.SetVelocity(context.Background(), 2.5))
}

func TestESP300ExecuteDispatch(t *testing.T) {
	mock := hardware.NewMock().
		Stub("1ID?", "UTM150PP.1").
		Stub("1TP?", "3.000000")
	stage := newTestESP300(t, mock)
	ctx := context.Background()
	require.NoError(t, stage.Initialize(ctx))

	resp, err := stage.Execute(ctx, instrument.SetParameter("position", 3.0))
	require.NoError(t, err)
	assert.Equal(t, instrument.ResponseOk, resp.Kind)

	resp, err = stage.Execute(ctx, instrument.GetParameter("position"))
	require.NoError(t, err)
	require.Equal(t, instrument.ResponseValue, resp.Kind)
	assert.JSONEq(t, "3", string(resp.Value))

	resp, err = stage.Execute(ctx, instrument.SetParameter("warp", 1.0))
	require.NoError(t, err)
	assert.Equal(t, instrument.ResponseErr, resp.Kind)

	resp, err = stage.Execute(ctx, instrument.Start())
	require.NoError(t, err)
	assert.Equal(t, instrument.ResponseErr, resp.Kind)

	resp, err = stage.Execute(ctx, instrument.Custom("home", nil))
	require.NoError(t, err)
	assert.Equal(t, instrument.ResponseOk, resp.Kind)
	assert.Contains(t, mock.Writes(), "1OR")
}

func TestESP300AxisValidation(t *testing.T) {
	_, err := NewESP300("bad", []byte(`{"axis": 7}`), instrument.Dependencies{Adapter: hardware.NewMock()})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
