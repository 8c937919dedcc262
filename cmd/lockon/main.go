// lockon tracks one colored object from a camera, keeps a lock on it
// across frames and publishes the target for an actuation consumer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-lockon/internal/config"
	"github.com/teslashibe/go-lockon/internal/log"
	"github.com/teslashibe/go-lockon/pkg/camera"
	"github.com/teslashibe/go-lockon/pkg/lockon"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel)

	app, err := lockon.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(2)
	}

	if err := app.Init(); err != nil {
		if errors.Is(err, camera.ErrOpen) {
			log.Error("cannot open camera", "device", cfg.Camera.Device, "error", err)
		} else {
			log.Error("initialization failed", "error", err)
		}
		app.Shutdown()
		os.Exit(1)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		app.Shutdown()
		os.Exit(1)
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() (config.File, error) {
	path := flag.String("config", "", "YAML config file")
	device := flag.String("camera", "", "Camera index or video file path")
	preset := flag.String("preset", "", "Camera preset: "+fmt.Sprint(camera.PresetNames()))
	threshold := flag.Float64("threshold", 0, "Lock threshold in pixels")
	legacy := flag.Bool("legacy", false, "Fixed black range, 100 px gate, ignore shutdown flag")
	port := flag.String("port", "", "State server port")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	serialPort := flag.String("serial", "", "Serial motor controller (default: log actions)")
	stream := flag.Int("stream", -1, "Stream every Nth frame to /ws/camera (0 = off)")
	flag.Parse()

	cfg, err := config.LoadProfile(*path, *legacy)
	if err != nil {
		return cfg, err
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["camera"] {
		cfg.Camera.Device = *device
	}
	if set["preset"] {
		var ok bool
		if cfg.Camera, ok = camera.ApplyPreset(cfg.Camera, *preset); !ok {
			return cfg, fmt.Errorf("unknown camera preset %q", *preset)
		}
	}
	if set["threshold"] {
		cfg.Tracking.LockThreshold = *threshold
	}
	if set["port"] {
		cfg.Web.Port = *port
	}
	if set["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if set["serial"] {
		cfg.Actuation.SerialPort = *serialPort
	}
	if set["stream"] {
		cfg.Tracking.FrameStreamEvery = *stream
	}
	return cfg, cfg.Validate()
}
