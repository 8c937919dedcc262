package vision

import (
	"fmt"
	"log/slog"
	"os"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lockon/pkg/camera"
	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// Capture reads frames from a camera device or a video file.
type Capture struct {
	cfg    camera.Config
	vc     *gocv.VideoCapture
	seq    uint64
	logger *slog.Logger
}

// OpenCamera opens the configured source. Failure is not retried and is
// reported as camera.ErrOpen.
func OpenCamera(cfg camera.Config, logger *slog.Logger) (*Capture, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if _, statErr := os.Stat(cfg.Device); statErr == nil {
		vc, err = gocv.VideoCaptureFile(cfg.Device)
	} else if id, ok := cfg.DeviceIndex(); ok {
		vc, err = gocv.VideoCaptureDevice(id)
	} else {
		return nil, fmt.Errorf("%w: %q is neither a file nor a camera index", camera.ErrOpen, cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", camera.ErrOpen, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w %q", camera.ErrOpen, cfg.Device)
	}

	if cfg.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	}
	if cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}

	logger.Info("video source opened",
		"device", cfg.Device,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
	)

	return &Capture{cfg: cfg, vc: vc, logger: logger}, nil
}

// Next blocks until the next frame arrives. Any read failure ends the
// stream with ErrEndOfStream.
func (c *Capture) Next() (detection.Frame, error) {
	mat := gocv.NewMat()
	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, camera.ErrEndOfStream
	}
	c.seq++
	return NewFrame(mat, c.seq), nil
}

// Close releases the device.
func (c *Capture) Close() error {
	return c.vc.Close()
}
