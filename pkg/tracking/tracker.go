// Package tracking keeps a lock on one color target across frames and
// publishes it once per frame.
package tracking

import (
	"context"
	"image"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-lockon/internal/log"
	"github.com/teslashibe/go-lockon/pkg/metrics"
	"github.com/teslashibe/go-lockon/pkg/state"
	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// FrameSource yields frames in order. Next blocks until a frame is ready
// and returns an error when the stream has ended or failed.
type FrameSource interface {
	Next() (detection.Frame, error)
}

// Detector finds candidate blobs in a frame for an HSV range.
type Detector interface {
	Detect(f detection.Frame, r detection.Range) ([]detection.Blob, error)
}

// Calibrator derives an HSV range from a region of a frame.
type Calibrator interface {
	Calibrate(f detection.Frame, region image.Rectangle, tol detection.Tolerance) (detection.Range, error)
}

// Publisher receives the lock result once per frame.
type Publisher interface {
	Publish(r *state.Region) state.Snapshot
	ShutdownRequested() bool
}

// FrameSink receives processed frames for streaming. The frame is only
// valid for the duration of the call.
type FrameSink interface {
	SendFrame(f detection.Frame)
}

// Tracker runs the capture, detect, lock and publish loop for a single
// color target.
type Tracker struct {
	config     Config
	source     FrameSource
	detector   Detector
	calibrator Calibrator
	publisher  Publisher
	sink       FrameSink
	metrics    *metrics.Metrics
	logger     *slog.Logger

	inbox chan Event

	// Guarded by mu; written only by the loop and tuning calls
	mu         sync.RWMutex
	rng        detection.Range
	tolerance  detection.Tolerance
	engine     *LockEngine
	candidates []detection.Blob
	frames     uint64

	// Loop-owned
	current detection.Frame
}

// New creates a tracker. The calibrator may be nil when calibration is
// disabled.
func New(config Config, source FrameSource, detector Detector, publisher Publisher) *Tracker {
	buf := config.EventBuffer
	if buf < 1 {
		buf = 1
	}
	return &Tracker{
		config:    config,
		source:    source,
		detector:  detector,
		publisher: publisher,
		logger:    log.Component("tracker"),
		inbox:     make(chan Event, buf),
		rng:       detection.DefaultRange(),
		tolerance: config.Tolerance,
		engine:    NewLockEngine(config.LockThreshold),
	}
}

// SetCalibrator sets the range calibrator used on acquisition
func (t *Tracker) SetCalibrator(c Calibrator) {
	t.calibrator = c
}

// SetFrameSink sets the sink for streamed frames
func (t *Tracker) SetFrameSink(s FrameSink) {
	t.sink = s
}

// SetMetrics sets the metrics collector
func (t *Tracker) SetMetrics(m *metrics.Metrics) {
	t.metrics = m
}

// SetLogger replaces the component logger
func (t *Tracker) SetLogger(l *slog.Logger) {
	if l != nil {
		t.logger = l
	}
}

// Range returns the active HSV range.
func (t *Tracker) Range() detection.Range {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rng
}

// Lock returns the current lock state.
func (t *Tracker) Lock() LockState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.engine.State()
}

// Frames returns the number of frames processed.
func (t *Tracker) Frames() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frames
}

// Run processes frames until the context is cancelled, the stream ends,
// a quit event arrives, or (with shutdown coordination) the published
// shutdown flag is raised. Normal termination returns nil.
func (t *Tracker) Run(ctx context.Context) error {
	defer t.releaseFrame()

	t.logger.Info("tracker started",
		"lock_threshold", t.config.LockThreshold,
		"min_area", t.config.MinArea,
		"calibration", t.config.CalibrationEnabled,
		"shutdown_coordination", t.config.ShutdownCoordination,
		"range", t.Range().String())

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopping", "reason", "context cancelled")
			return nil
		default:
		}

		if t.config.ShutdownCoordination && t.publisher.ShutdownRequested() {
			t.logger.Info("tracker stopping", "reason", "shutdown requested")
			return nil
		}

		frame, err := t.source.Next()
		if err != nil {
			t.logger.Info("tracker stopping", "reason", "end of stream", "error", err)
			return nil
		}

		if quit := t.Step(frame); quit {
			t.logger.Info("tracker stopping", "reason", "quit")
			return nil
		}
	}
}

// Step processes one frame: detect, maintain the lock, apply pending
// events, then publish. The tracker takes ownership of the frame. It
// reports whether a quit event was seen.
func (t *Tracker) Step(frame detection.Frame) bool {
	blobs, err := t.detector.Detect(frame, t.Range())
	if err != nil {
		t.metrics.ObserveDetectError()
		t.logger.Warn("detection failed, skipping frame", "error", err)
		frame.Close()
		return false
	}

	t.releaseFrame()
	t.current = frame

	t.mu.Lock()
	t.frames++
	t.candidates = blobs
	t.observe(t.engine.Maintain(blobs))
	quit := t.drain()
	region := t.lockedRegion()
	count := t.frames
	t.mu.Unlock()

	t.metrics.ObserveFrame(len(blobs))
	t.publisher.Publish(region)
	t.metrics.ObservePublish()

	if t.sink != nil && t.config.FrameStreamEvery > 0 && count%uint64(t.config.FrameStreamEvery) == 0 {
		t.sink.SendFrame(frame)
	}

	return quit
}

// drain applies every queued event against the current frame. Caller
// holds mu.
func (t *Tracker) drain() bool {
	quit := false
	for {
		select {
		case ev := <-t.inbox:
			if t.apply(ev) {
				quit = true
			}
		default:
			return quit
		}
	}
}

func (t *Tracker) apply(ev Event) bool {
	switch ev.Kind {
	case EventSelect:
		tr := t.engine.Acquire(ev.Point, t.candidates)
		if tr == NoChange {
			t.logger.Debug("select missed all candidates", "x", ev.Point.X, "y", ev.Point.Y, "candidates", len(t.candidates))
			return false
		}
		t.observe(tr)
		if t.config.CalibrationEnabled {
			t.calibrate(t.engine.State().Region)
		}

	case EventReset:
		t.observe(t.engine.Reset())
		t.rng = detection.DefaultRange()
		t.metrics.ObserveReset()

	case EventOverride:
		t.rng = ev.Range
		t.metrics.ObserveOverride()
		t.logger.Info("hsv range overridden", "range", t.rng.String())

	case EventQuit:
		return true
	}
	return false
}

// calibrate narrows the active range to the locked region. On failure the
// lock is kept along with the previous range.
func (t *Tracker) calibrate(b detection.Blob) {
	if t.calibrator == nil || t.current == nil {
		return
	}
	rng, err := t.calibrator.Calibrate(t.current, b.Rect(), t.tolerance)
	if err != nil {
		t.logger.Warn("calibration failed, keeping range", "error", err, "range", t.rng.String())
		return
	}
	t.rng = rng
	t.metrics.ObserveCalibration()
	t.logger.Info("hsv range calibrated", "range", rng.String())
}

func (t *Tracker) observe(tr Transition) {
	st := t.engine.State()
	switch tr {
	case Acquired:
		t.metrics.ObserveAcquire()
		t.logger.Info("lock acquired", "x", st.Center.X, "y", st.Center.Y, "w", st.Region.W, "h", st.Region.H)
	case Maintained:
		t.logger.Debug("lock maintained", "x", st.Center.X, "y", st.Center.Y)
	case Lost:
		t.metrics.ObserveLoss()
		t.logger.Info("lock lost", "threshold", t.engine.Threshold())
	case Cleared:
		t.logger.Info("lock reset")
	}
}

func (t *Tracker) lockedRegion() *state.Region {
	st := t.engine.State()
	if !st.Locked() {
		return nil
	}
	return &state.Region{X: st.Region.X, Y: st.Region.Y, W: st.Region.W, H: st.Region.H}
}

func (t *Tracker) releaseFrame() {
	if t.current != nil {
		if err := t.current.Close(); err != nil {
			t.logger.Debug("frame close failed", "error", err)
		}
		t.current = nil
	}
}
