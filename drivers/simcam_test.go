package drivers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/measurement"
)

func newTestSimCam(t *testing.T, params string) *SimCam {
	t.Helper()
	var raw []byte
	if params != "" {
		raw = []byte(params)
	}
	inst, err := NewSimCam("cam1", raw, instrument.Dependencies{})
	require.NoError(t, err)
	return inst.(*SimCam)
}

func TestSimCamPublishesFrames(t *testing.T) {
	cam := newTestSimCam(t, `{"width": 64, "height": 48, "frame_rate": 100}`)
	ctx := context.Background()
	require.NoError(t, cam.Initialize(ctx))

	sub := cam.Measurements("test")
	require.NoError(t, cam.StartAcquisition(ctx))
	assert.Equal(t, instrument.StateAcquiring, cam.Status().State)

	var frames []*measurement.Image
	for len(frames) < 3 {
		select {
		case m := <-sub.C():
			frames = append(frames, m.(*measurement.Image))
		case <-time.After(time.Second):
			t.Fatal("no frames published")
		}
	}

	require.NoError(t, cam.StopAcquisition(ctx))
	assert.Equal(t, instrument.StateReady, cam.Status().State)

	for _, f := range frames {
		assert.Equal(t, "cam1_frames", f.Channel())
		assert.Equal(t, 64, f.Width)
		assert.Equal(t, 48, f.Height)
		assert.Equal(t, measurement.DepthU16, f.Pixels.Depth())
		require.NoError(t, f.Validate())
	}
}

func TestSimCamBinningShrinksFrames(t *testing.T) {
	cam := newTestSimCam(t, `{"width": 64, "height": 64, "frame_rate": 100}`)
	ctx := context.Background()
	require.NoError(t, cam.Initialize(ctx))
	require.NoError(t, cam.SetBinning(ctx, 2, 2))

	sub := cam.Measurements("test")
	require.NoError(t, cam.StartAcquisition(ctx))
	defer func() { _ = cam.StopAcquisition(ctx) }()

	select {
	case m := <-sub.C():
		f := m.(*measurement.Image)
		assert.Equal(t, 32, f.Width)
		assert.Equal(t, 32, f.Height)
		assert.Equal(t, 2, f.Meta.BinningH)
	case <-time.After(time.Second):
		t.Fatal("no frame published")
	}
}

func TestSimCamROIValidation(t *testing.T) {
	cam := newTestSimCam(t, `{"width": 64, "height": 48, "frame_rate": 10}`)
	ctx := context.Background()
	require.NoError(t, cam.Initialize(ctx))

	err := cam.SetROI(ctx, instrument.ROI{X: 32, Y: 0, Width: 64, Height: 48})
	assert.ErrorIs(t, err, errors.ErrDeviceRejected)

	require.NoError(t, cam.SetROI(ctx, instrument.ROI{X: 16, Y: 8, Width: 32, Height: 32}))
}

func TestSimCamGeometryLockedWhileAcquiring(t *testing.T) {
	cam := newTestSimCam(t, `{"width": 64, "height": 48, "frame_rate": 100}`)
	ctx := context.Background()
	require.NoError(t, cam.Initialize(ctx))
	require.NoError(t, cam.StartAcquisition(ctx))
	defer func() { _ = cam.StopAcquisition(ctx) }()

	err := cam.SetROI(ctx, instrument.ROI{Width: 32, Height: 32})
	assert.ErrorIs(t, err, errors.ErrInvalidInState)
	assert.ErrorIs(t, cam.SetBinning(ctx, 2, 2), errors.ErrInvalidInState)

	// Exposure may change mid-acquisition.
	assert.NoError(t, cam.SetExposure(ctx, 5))
}

func TestSimCamDoubleStartRejected(t *testing.T) {
	cam := newTestSimCam(t, "")
	ctx := context.Background()
	require.NoError(t, cam.Initialize(ctx))
	require.NoError(t, cam.StartAcquisition(ctx))
	defer func() { _ = cam.StopAcquisition(ctx) }()

	assert.ErrorIs(t, cam.StartAcquisition(ctx), errors.ErrInvalidInState)
}

func TestSimCamShutdownWhileAcquiring(t *testing.T) {
	cam := newTestSimCam(t, `{"width": 32, "height": 32, "frame_rate": 100}`)
	ctx := context.Background()
	require.NoError(t, cam.Initialize(ctx))
	require.NoError(t, cam.StartAcquisition(ctx))

	sub := cam.Measurements("test")
	require.NoError(t, cam.Shutdown(ctx))
	assert.Equal(t, instrument.StateDisconnected, cam.Status().State)

	// Feed is closed; subscription drains then terminates.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed after shutdown")
		}
	}
}

func TestSimCamRegisterAll(t *testing.T) {
	r := instrument.NewRegistry()
	require.NoError(t, RegisterAll(r))
	assert.Equal(t, []string{"ell14", "esp300", "maitai", "newport1830c", "simcam"}, r.Types())
}
