// Package lockon wires the tracking loop, state server, actuation loop
// and supervisor into one process.
package lockon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-lockon/internal/config"
	"github.com/teslashibe/go-lockon/internal/log"
	"github.com/teslashibe/go-lockon/pkg/actuation"
	"github.com/teslashibe/go-lockon/pkg/metrics"
	"github.com/teslashibe/go-lockon/pkg/state"
	"github.com/teslashibe/go-lockon/pkg/supervisor"
	"github.com/teslashibe/go-lockon/pkg/tracking"
	"github.com/teslashibe/go-lockon/pkg/vision"
	"github.com/teslashibe/go-lockon/pkg/web"
)

// App is the main lock-on application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config config.File
	logger *slog.Logger

	// Shared state
	publisher *state.Publisher
	metrics   *metrics.Metrics

	// Vision
	capture    *vision.Capture
	detector   *vision.ColorDetector
	calibrator *vision.Calibrator

	// Loops
	tracker    *tracking.Tracker
	consumer   *actuation.Consumer
	actuator   actuation.Actuator
	supervisor *supervisor.Supervisor

	// State server
	webServer *web.Server
}

// New creates a new application with the given configuration.
func New(cfg config.File) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pub := state.NewPublisher("")
	return &App{
		config:     cfg,
		logger:     log.Component("app"),
		publisher:  pub,
		metrics:    metrics.New(),
		supervisor: supervisor.New(pub, supervisor.DefaultInterval),
	}, nil
}

// Init opens the camera and builds every component.
// Call this after New() and before Run(). A camera that cannot be opened
// is returned as a wrapped camera.ErrOpen.
func (a *App) Init() error {
	a.logger.Info("lockon starting", "session", a.publisher.Snapshot().Session)

	capture, err := vision.OpenCamera(a.config.Camera, a.logger)
	if err != nil {
		return err
	}
	a.capture = capture

	a.detector = vision.NewColorDetector(a.config.Tracking.MinArea)
	a.calibrator = vision.NewCalibrator()

	a.tracker = tracking.New(a.config.Tracking, a.capture, a.detector, a.publisher)
	a.tracker.SetCalibrator(a.calibrator)
	a.tracker.SetMetrics(a.metrics)

	a.webServer = web.NewServer(a.config.Web, a.publisher, a.tracker, a.metrics)
	a.webServer.OnShutdown = a.supervisor.Request
	if a.config.Web.StreamCamera && a.config.Tracking.FrameStreamEvery > 0 {
		a.webServer.SetFrameEncoder(vision.EncodeJPEG)
		a.tracker.SetFrameSink(a.webServer)
	}

	if err := a.initActuation(); err != nil {
		return fmt.Errorf("actuation init: %w", err)
	}
	return nil
}

// initActuation builds the in-process consumer. It always reads the local
// publisher; remote sources are for the standalone actuator.
func (a *App) initActuation() error {
	if a.config.Actuation.SerialPort != "" {
		act, err := actuation.OpenSerial(a.config.Actuation.SerialPort, a.config.Actuation.BaudRate)
		if err != nil {
			return err
		}
		a.actuator = act
	} else {
		a.actuator = actuation.NewLogActuator(nil)
	}

	cfg := a.config.Actuation
	cfg.Source = actuation.SourceLocal
	a.consumer = actuation.NewConsumer(cfg, actuation.PublisherSource{Publisher: a.publisher}, a.actuator)
	return nil
}

// Run starts every loop and blocks until shutdown. The supervisor raises
// the shutdown flag; the tracking loop stops at its next frame boundary
// and the actuation loop on its next poll. The state server outlives the
// loops by the web shutdown grace so remote consumers read the flag.
func (a *App) Run(ctx context.Context) error {
	// A signal must not take the state server down with the loops
	a.webServer.StartAsync(context.WithoutCancel(ctx))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	trackerDone := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(trackerDone)
		if err := a.tracker.Run(ctx); err != nil {
			a.logger.Error("tracking loop failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := a.consumer.Run(ctx); err != nil {
			a.logger.Error("actuation loop failed", "error", err)
		}
	}()

	reason := a.supervisor.Run(ctx, trackerDone)

	// Loops without shutdown coordination still stop on cancel
	cancel()
	wg.Wait()

	if err := a.webServer.Stop(a.config.Web.ShutdownGrace); err != nil {
		a.logger.Warn("web shutdown", "error", err)
	}

	a.logger.Info("lockon stopped",
		"reason", reason,
		"frames", a.tracker.Frames(),
		"locks", a.metrics.LocksAcquired.Load())
	return nil
}

// Shutdown releases every component.
func (a *App) Shutdown() {
	if a.webServer != nil {
		if err := a.webServer.Shutdown(); err != nil {
			a.logger.Warn("web shutdown", "error", err)
		}
	}
	if a.actuator != nil {
		a.actuator.Close()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.capture != nil {
		a.capture.Close()
	}
	a.logger.Info("goodbye")
}
