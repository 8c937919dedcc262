// Package web serves the tracker state contract and the operator API
package web

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-lockon/internal/log"
	"github.com/teslashibe/go-lockon/pkg/hub"
	"github.com/teslashibe/go-lockon/pkg/metrics"
	"github.com/teslashibe/go-lockon/pkg/state"
	"github.com/teslashibe/go-lockon/pkg/tracking"
	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// Config configures the state server
type Config struct {
	Port         string `yaml:"port" json:"port"`
	StreamCamera bool   `yaml:"stream_camera" json:"stream_camera"` // Serve /ws/camera
	AccessLog    bool   `yaml:"access_log" json:"access_log"`

	// How long the final snapshot stays served after shutdown is raised,
	// so remote actuation consumers get at least one poll in
	ShutdownGrace time.Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Port:          "8080",
		StreamCamera:  true,
		ShutdownGrace: 500 * time.Millisecond,
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("web: port is required")
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("web: shutdown_grace must not be negative, got %v", c.ShutdownGrace)
	}
	return nil
}

// Tracker is the operator-facing surface of the tracking loop
type Tracker interface {
	Select(p image.Point) error
	Reset() error
	Quit() error
	Override(r detection.Range) error
	GetTuningParams() tracking.TuningParams
	SetTuningParams(p tracking.TuningParams)
}

// FrameEncoder turns a frame into an image payload (JPEG)
type FrameEncoder func(f detection.Frame) ([]byte, error)

// Server is the state server
type Server struct {
	app       *fiber.App
	config    Config
	logger    *slog.Logger
	publisher *state.Publisher
	tracker   Tracker
	metrics   *metrics.Metrics
	encode    FrameEncoder

	// Hubs for websocket broadcast
	stateHub  *hub.Hub
	cameraHub *hub.Hub

	mu       sync.Mutex
	stopHubs context.CancelFunc
	stopped  bool
	stopOnce sync.Once
	stopErr  error

	// Shutdown request callback; when nil the flag is raised directly
	OnShutdown func(reason string)
}

// NewServer creates a new state server. The tracker and metrics may be
// nil, in which case the related routes report 503 or are not mounted.
func NewServer(config Config, publisher *state.Publisher, tracker Tracker, m *metrics.Metrics) *Server {
	s := &Server{
		config:    config,
		logger:    log.Component("web"),
		publisher: publisher,
		tracker:   tracker,
		metrics:   m,
		stateHub:  hub.New("state"),
		cameraHub: hub.New("camera"),
	}
	for _, h := range []*hub.Hub{s.stateHub, s.cameraHub} {
		if err := m.WatchHub(h.Name(), h.Dropped); err != nil {
			s.logger.Warn("hub metrics", "error", err)
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "lockon",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	if config.AccessLog {
		app.Use(logger.New())
	}

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/state", s.handleState)
	api.Post("/select", s.handleSelect)
	api.Post("/reset", s.handleReset)
	api.Post("/quit", s.handleQuit)
	api.Post("/shutdown", s.handleShutdown)
	api.Put("/hsv", s.handleOverride)
	api.Put("/direction", s.handleDirection)
	api.Get("/tuning", s.handleGetTuning)
	api.Put("/tuning", s.handleSetTuning)

	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/state", websocket.New(s.handleStateWS))
	if config.StreamCamera {
		app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	}

	s.app = app
	return s
}

// SetFrameEncoder sets the encoder used for the camera stream
func (s *Server) SetFrameEncoder(fn FrameEncoder) {
	s.encode = fn
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port and serves until Stop.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs, forwards every published snapshot to state
// subscribers and blocks serving HTTP on ln. Cancelling ctx closes the
// websocket hubs; HTTP keeps serving until Stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ln.Close()
	}
	hubCtx, stopHubs := context.WithCancel(ctx)
	s.stopHubs = stopHubs
	s.mu.Unlock()

	go s.stateHub.Run(hubCtx)
	go s.cameraHub.Run(hubCtx)

	unsubscribe := s.publisher.Subscribe(func(snap state.Snapshot) {
		if s.stateHub.ClientCount() == 0 {
			return
		}
		if err := s.stateHub.BroadcastJSON(snap); err != nil {
			s.logger.Warn("snapshot encode failed", "error", err)
		}
	})
	defer unsubscribe()

	s.logger.Info("state server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// StartAsync starts the server in a goroutine
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// SendFrame encodes a frame and broadcasts it to camera clients. Frames
// are only encoded when someone is watching.
func (s *Server) SendFrame(f detection.Frame) {
	if s.encode == nil || !s.config.StreamCamera || s.cameraHub.ClientCount() == 0 {
		return
	}
	data, err := s.encode(f)
	if err != nil {
		s.logger.Debug("frame encode failed", "error", err)
		return
	}
	s.cameraHub.BroadcastBinary(data)
}

// Stop keeps serving for grace so remote followers can read the final
// snapshot, then closes the hubs once their queued messages are handed
// to clients and shuts HTTP down. Only the first call has any effect.
func (s *Server) Stop(grace time.Duration) error {
	s.stopOnce.Do(func() {
		if grace > 0 {
			s.logger.Info("serving final state", "grace", grace)
			time.Sleep(grace)
		}

		s.mu.Lock()
		s.stopped = true
		stopHubs := s.stopHubs
		s.mu.Unlock()
		if stopHubs != nil {
			stopHubs()
			<-s.stateHub.Done()
			<-s.cameraHub.Done()
		}
		s.stopErr = s.app.Shutdown()
	})
	return s.stopErr
}

// Shutdown stops the web server without a grace period
func (s *Server) Shutdown() error {
	return s.Stop(0)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
