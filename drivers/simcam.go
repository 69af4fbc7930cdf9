package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/easternanemone/daqstreams/errors"
	"github.com/easternanemone/daqstreams/instrument"
	"github.com/easternanemone/daqstreams/measurement"
)

// simCamParams configures the simulated camera.
type simCamParams struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
}

// SimCam is a simulated camera producing synthetic 16-bit frames at a
// configured rate. It needs no hardware adapter, which makes it the
// reference instrument for pipeline tests and demo configurations.
type SimCam struct {
	device

	paramMu  sync.Mutex
	width    int
	height   int
	rate     float64
	exposure float64
	binH     int
	binV     int
	roi      instrument.ROI

	runMu    sync.Mutex
	frameCtx context.CancelFunc
	frameWG  sync.WaitGroup
	frameSeq uint64
}

var _ instrument.Camera = (*SimCam)(nil)

// NewSimCam is the factory for the "simcam" instrument type.
func NewSimCam(id string, params json.RawMessage, deps instrument.Dependencies) (instrument.Instrument, error) {
	p := simCamParams{Width: 640, Height: 480, FrameRate: 10}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, errors.WrapFatal(err, id, "NewSimCam", "params parse")
		}
	}
	if p.Width <= 0 || p.Height <= 0 || p.FrameRate <= 0 {
		return nil, errors.WrapFatal(
			fmt.Errorf("dimensions %dx%d at %.1f fps: %w",
				p.Width, p.Height, p.FrameRate, errors.ErrInvalidConfig),
			id, "NewSimCam", "params validation")
	}
	return &SimCam{
		device:   newDevice(id, deps),
		width:    p.Width,
		height:   p.Height,
		rate:     p.FrameRate,
		exposure: 10,
		binH:     1,
		binV:     1,
		roi:      instrument.ROI{Width: p.Width, Height: p.Height},
	}, nil
}

// Initialize implements instrument.Instrument. No transport to open.
func (c *SimCam) Initialize(_ context.Context) error {
	if c.state() == instrument.StateReady || c.state() == instrument.StateAcquiring {
		return errors.ErrAlreadyRunning
	}
	c.setState(instrument.StateConnecting)
	c.setState(instrument.StateReady)
	c.logger.Info("simulated camera ready")
	return nil
}

// Shutdown implements instrument.Instrument.
func (c *SimCam) Shutdown(ctx context.Context) error {
	if c.state() == instrument.StateAcquiring {
		if err := c.StopAcquisition(ctx); err != nil {
			c.logger.Warn("stop on shutdown failed", "error", err)
		}
	}
	if c.state() == instrument.StateDisconnected {
		return nil
	}
	c.setState(instrument.StateShuttingDown)
	c.dist.Close()
	c.setState(instrument.StateDisconnected)
	return nil
}

// SetExposure implements instrument.Camera. Milliseconds.
func (c *SimCam) SetExposure(_ context.Context, ms float64) error {
	if err := c.requireState(instrument.StateReady, instrument.StateAcquiring); err != nil {
		return err
	}
	if ms <= 0 {
		return errors.Wrap(errors.ErrInvalidConfig, c.id, "SetExposure", "exposure validation")
	}
	c.paramMu.Lock()
	c.exposure = ms
	c.paramMu.Unlock()
	return nil
}

// SetROI implements instrument.Camera. Changing geometry during
// acquisition would tear frames, so it is only valid while idle.
func (c *SimCam) SetROI(_ context.Context, roi instrument.ROI) error {
	if err := c.requireState(instrument.StateReady); err != nil {
		return err
	}
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	if roi.X < 0 || roi.Y < 0 || roi.Width <= 0 || roi.Height <= 0 ||
		roi.X+roi.Width > c.width || roi.Y+roi.Height > c.height {
		return errors.Wrap(
			fmt.Errorf("roi %+v exceeds sensor %dx%d: %w", roi, c.width, c.height, errors.ErrDeviceRejected),
			c.id, "SetROI", "geometry check")
	}
	c.roi = roi
	return nil
}

// SetBinning implements instrument.Camera.
func (c *SimCam) SetBinning(_ context.Context, h, v int) error {
	if err := c.requireState(instrument.StateReady); err != nil {
		return err
	}
	if h < 1 || v < 1 || h > 8 || v > 8 {
		return errors.Wrap(errors.ErrInvalidConfig, c.id, "SetBinning", "binning validation")
	}
	c.paramMu.Lock()
	c.binH, c.binV = h, v
	c.paramMu.Unlock()
	return nil
}

// StartAcquisition implements instrument.Camera. Ready → Acquiring; frames
// are published until StopAcquisition.
func (c *SimCam) StartAcquisition(_ context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if err := c.requireState(instrument.StateReady); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.frameCtx = cancel
	c.setState(instrument.StateAcquiring)

	c.frameWG.Add(1)
	go func() {
		defer c.frameWG.Done()
		interval := time.Duration(float64(time.Second) / c.rate)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.publish(c.nextFrame())
			}
		}
	}()
	return nil
}

// StopAcquisition implements instrument.Camera.
func (c *SimCam) StopAcquisition(_ context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.frameCtx == nil {
		return errors.ErrInvalidInState
	}
	c.frameCtx()
	c.frameCtx = nil
	c.frameWG.Wait()
	c.setState(instrument.StateReady)
	return nil
}

// nextFrame synthesizes one 16-bit frame: a diagonal gradient with a phase
// that advances per frame, so consumers can verify ordering and motion.
func (c *SimCam) nextFrame() *measurement.Image {
	c.paramMu.Lock()
	roi := c.roi
	binH, binV := c.binH, c.binV
	exposure := c.exposure
	c.paramMu.Unlock()

	w := roi.Width / binH
	h := roi.Height / binV
	seq := c.frameSeq
	c.frameSeq++

	pixels := make([]uint16, w*h)
	phase := float64(seq) * 0.1
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := (math.Sin(float64(x)*0.05+phase) + math.Cos(float64(y)*0.05)) * 0.25
			pixels[y*w+x] = uint16((v + 0.5) * math.MaxUint16)
		}
	}

	return &measurement.Image{
		Name:   c.id + "_frames",
		Pixels: measurement.PixelsU16(pixels),
		Width:  w,
		Height: h,
		Meta: measurement.ImageMetadata{
			ExposureMs: exposure,
			BinningH:   binH,
			BinningV:   binV,
		},
		Timestamp: time.Now(),
	}
}

// Execute implements instrument.Instrument.
func (c *SimCam) Execute(ctx context.Context, cmd instrument.Command) (instrument.Response, error) {
	switch cmd.Op {
	case instrument.OpStart:
		if err := c.StartAcquisition(ctx); err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Ok(), nil

	case instrument.OpStop:
		if err := c.StopAcquisition(ctx); err != nil {
			return instrument.Err(err), nil
		}
		return instrument.Ok(), nil

	case instrument.OpSetParameter:
		switch cmd.Name {
		case "exposure_ms":
			var ms float64
			if err := json.Unmarshal(cmd.Value, &ms); err != nil {
				return instrument.Errf("parameter %q: %v", cmd.Name, err), nil
			}
			if err := c.SetExposure(ctx, ms); err != nil {
				return instrument.Err(err), nil
			}
			return instrument.Ok(), nil
		case "roi":
			var roi instrument.ROI
			if err := json.Unmarshal(cmd.Value, &roi); err != nil {
				return instrument.Errf("parameter %q: %v", cmd.Name, err), nil
			}
			if err := c.SetROI(ctx, roi); err != nil {
				return instrument.Err(err), nil
			}
			return instrument.Ok(), nil
		default:
			return instrument.Errf("unknown parameter %q", cmd.Name), nil
		}

	case instrument.OpGetParameter:
		c.paramMu.Lock()
		defer c.paramMu.Unlock()
		switch cmd.Name {
		case "exposure_ms":
			return instrument.Value(c.exposure), nil
		case "roi":
			return instrument.Value(c.roi), nil
		default:
			return instrument.Errf("unknown parameter %q", cmd.Name), nil
		}

	default:
		return instrument.Err(errors.ErrInvalidInState), nil
	}
}
