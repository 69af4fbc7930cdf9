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

func newTestPowerMeter(t *testing.T, mock *hardware.Mock) *Newport1830C {
	t.Helper()
	inst, err := NewNewport1830C("pm1", []byte(`{"sample_interval": "10ms"}`),
		instrument.Dependencies{Adapter: mock})
	require.NoError(t, err)
	return inst.(*Newport1830C)
}

func pmMock() *hardware.Mock {
	return hardware.NewMock().
		Stub("U?", "1").
		Stub("D?", "9.5e-3")
}

func TestPowerMeterInitialize(t *testing.T) {
	mock := pmMock()
	pm := newTestPowerMeter(t, mock)
	require.NoError(t, pm.Initialize(context.Background()))

	assert.Equal(t, instrument.StateReady, pm.Status().State)
	assert.Contains(t, mock.Writes(), "U1")
	assert.Contains(t, mock.Writes(), "R0")
	assert.Contains(t, mock.Writes(), "W800")
}

func TestPowerMeterInitializeAppliesConfiguredWavelength(t *testing.T) {
	mock := pmMock()
	inst, err := NewNewport1830C("pm1",
		[]byte(`{"wavelength_nm": 1064, "sample_interval": "10ms"}`),
		instrument.Dependencies{Adapter: mock})
	require.NoError(t, err)

	pm := inst.(*Newport1830C)
	require.NoError(t, pm.Initialize(context.Background()))
	assert.Contains(t, mock.Writes(), "W1064")
}

func TestPowerMeterSamplerPublishes(t *testing.T) {
	pm := newTestPowerMeter(t, pmMock())
	ctx := context.Background()
	require.NoError(t, pm.Initialize(ctx))

	sub := pm.Measurements("test")

	resp, err := pm.Execute(ctx, instrument.Start())
	require.NoError(t, err)
	require.Equal(t, instrument.ResponseOk, resp.Kind)
	assert.Equal(t, instrument.StateAcquiring, pm.Status().State)

	for i := 0; i < 3; i++ {
		select {
		case m := <-sub.C():
			s := m.(*measurement.Scalar)
			assert.Equal(t, "pm1_power", s.Channel())
			assert.Equal(t, 9.5e-3, s.Value)
			assert.Equal(t, "W", s.Unit)
		case <-time.After(time.Second):
			t.Fatal("sampler did not publish")
		}
	}

	resp, err = pm.Execute(ctx, instrument.Stop())
	require.NoError(t, err)
	require.Equal(t, instrument.ResponseOk, resp.Kind)
	assert.Equal(t, instrument.StateReady, pm.Status().State)
}

func TestPowerMeterDoubleStartRejected(t *testing.T) {
	pm := newTestPowerMeter(t, pmMock())
	ctx := context.Background()
	require.NoError(t, pm.Initialize(ctx))

	resp, err := pm.Execute(ctx, instrument.Start())
	require.NoError(t, err)
	require.Equal(t, instrument.ResponseOk, resp.Kind)

	resp, err = pm.Execute(ctx, instrument.Start())
	require.NoError(t, err)
	assert.Equal(t, instrument.ResponseErr, resp.Kind)

	pm.stopSampler()
}

func TestPowerMeterStopWhileIdleRejected(t *testing.T) {
	pm := newTestPowerMeter(t, pmMock())
	ctx := context.Background()
	require.NoError(t, pm.Initialize(ctx))

	resp, err := pm.Execute(ctx, instrument.Stop())
	require.NoError(t, err)
	assert.Equal(t, instrument.ResponseErr, resp.Kind)
}

func TestPowerMeterZeroOnlyWhileIdle(t *testing.T) {
	pm := newTestPowerMeter(t, pmMock())
	ctx := context.Background()
	require.NoError(t, pm.Initialize(ctx))

	require.NoError(t, pm.Zero(ctx))

	require.NoError(t, pm.startSampler())
	assert.ErrorIs(t, pm.Zero(ctx), errors.ErrInvalidInState)
	pm.stopSampler()
}

func TestPowerMeterWavelengthValidation(t *testing.T) {
	pm := newTestPowerMeter(t, pmMock())
	ctx := context.Background()
	require.NoError(t, pm.Initialize(ctx))

	assert.ErrorIs(t, pm.SetWavelength(ctx, 200), errors.ErrInvalidConfig)
	assert.NoError(t, pm.SetWavelength(ctx, 800))
}

func TestPowerMeterShutdownStopsSampler(t *testing.T) {
	pm := newTestPowerMeter(t, pmMock())
	ctx := context.Background()
	require.NoError(t, pm.Initialize(ctx))
	require.NoError(t, pm.startSampler())

	require.NoError(t, pm.Shutdown(ctx))
	assert.Equal(t, instrument.StateDisconnected, pm.Status().State)
}

func TestPowerMeterIntervalValidation(t *testing.T) {
	_, err := NewNewport1830C("bad", []byte(`{"sample_interval": "fast"}`),
		instrument.Dependencies{Adapter: hardware.NewMock()})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestPowerMeterWavelengthParamValidation(t *testing.T) {
	_, err := NewNewport1830C("bad", []byte(`{"wavelength_nm": 200}`),
		instrument.Dependencies{Adapter: hardware.NewMock()})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
