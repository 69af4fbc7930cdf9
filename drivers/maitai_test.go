package drivers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/hardware"
	"github.com/easternanemone/daqstreams/instrument"
)

func newTestMaiTai(t *testing.T, mock *hardware.Mock) *MaiTai {
	t.Helper()
	inst, err := NewMaiTai("laser1", nil, instrument.Dependencies{Adapter: mock})
	require.NoError(t, err)
	return inst.(*MaiTai)
}

func laserMock() *hardware.Mock {
	return hardware.NewMock().
		Stub("*IDN?", "Spectra-Physics,MaiTai,0000,1.0").
		Stub("READ:WAVELENGTH?", "800nm").
		Stub("READ:POWER?", "2.45W")
}

func TestMaiTaiInitializeClosesShutter(t *testing.T) {
	mock := laserMock()
	laser := newTestMaiTai(t, mock)
	require.NoError(t, laser.Initialize(context.Background()))

	assert.Equal(t, instrument.StateReady, laser.Status().State)
	assert.Contains(t, mock.Writes(), "SHUTTER 0")
}

func TestMaiTaiWavelengthRange(t *testing.T) {
	mock := laserMock()
	laser := newTestMaiTai(t, mock)
	ctx := context.Background()
	require.NoError(t, laser.Initialize(ctx))

	assert.ErrorIs(t, laser.SetWavelength(ctx, 500), errors.ErrDeviceRejected)
	assert.ErrorIs(t, laser.SetWavelength(ctx, 1200), errors.ErrDeviceRejected)

	require.NoError(t, laser.SetWavelength(ctx, 800))
	assert.Contains(t, mock.Writes(), "WAVELENGTH 800")
}

func TestMaiTaiQueriesStripUnits(t *testing.T) {
	laser := newTestMaiTai(t, laserMock())
	ctx := context.Background()
	require.NoError(t, laser.Initialize(ctx))

	nm, err := laser.Wavelength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 800.0, nm)

	w, err := laser.Power(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.45, w)
}

func TestMaiTaiShutterAndEmission(t *testing.T) {
	mock := laserMock()
	laser := newTestMaiTai(t, mock)
	ctx := context.Background()
	require.NoError(t, laser.Initialize(ctx))

	require.NoError(t, laser.Enable(ctx))
	require.NoError(t, laser.SetShutter(ctx, true))
	require.NoError(t, laser.SetShutter(ctx, false))
	require.NoError(t, laser.Disable(ctx))

	writes := mock.Writes()
	assert.Contains(t, writes, "ON")
	assert.Contains(t, writes, "SHUTTER 1")
	assert.Contains(t, writes, "OFF")
}

func TestMaiTaiShutdownForcesSafeState(t *testing.T) {
	mock := laserMock()
	laser := newTestMaiTai(t, mock)
	ctx := context.Background()
	require.NoError(t, laser.Initialize(ctx))

	require.NoError(t, laser.Shutdown(ctx))
	assert.Equal(t, instrument.StateDisconnected, laser.Status().State)

	writes := mock.Writes()
	assert.Contains(t, writes, "OFF")
}

func TestMaiTaiExecuteDispatch(t *testing.T) {
	laser := newTestMaiTai(t, laserMock())
	ctx := context.Background()
	require.NoError(t, laser.Initialize(ctx))

	resp, err := laser.Execute(ctx, instrument.SetParameter("wavelength_nm", 750.0))
	require.NoError(t, err)
	assert.Equal(t, instrument.ResponseOk, resp.Kind)

	resp, err = laser.Execute(ctx, instrument.GetParameter("power"))
	require.NoError(t, err)
	require.Equal(t, instrument.ResponseValue, resp.Kind)
	assert.JSONEq(t, "2.45", string(resp.Value))

	resp, err = laser.Execute(ctx, instrument.SetParameter("wavelength_nm", 200.0))
	require.NoError(t, err)
	assert.Equal(t, instrument.ResponseErr, resp.Kind)
}

func TestMaiTaiInvertedRangeRejected(t *testing.T) {
	_, err := NewMaiTai("bad", []byte(`{"min_wavelength_nm": 1000, "max_wavelength_nm": 700}`),
		instrument.Dependencies{Adapter: hardware.NewMock()})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
