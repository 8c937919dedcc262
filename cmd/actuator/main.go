// actuator follows a remote lockon tracker and emits one motor action per
// poll until the tracker publishes shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-lockon/internal/config"
	"github.com/teslashibe/go-lockon/internal/log"
	"github.com/teslashibe/go-lockon/pkg/actuation"
)

func main() {
	cfg, logLevel, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		log.Error("cannot reach tracker", "url", cfg.TrackerURL, "error", err)
		os.Exit(1)
	}
	defer closeSource()

	var act actuation.Actuator
	if cfg.SerialPort != "" {
		if act, err = actuation.OpenSerial(cfg.SerialPort, cfg.BaudRate); err != nil {
			log.Error("cannot open serial port", "port", cfg.SerialPort, "error", err)
			os.Exit(1)
		}
	} else {
		act = actuation.NewLogActuator(nil)
	}
	defer act.Close()

	if err := actuation.NewConsumer(cfg, source, act).Run(ctx); err != nil {
		log.Warn("actuation loop ended", "error", err)
	}
}

func openSource(ctx context.Context, cfg actuation.Config) (actuation.Source, func(), error) {
	switch cfg.Source {
	case actuation.SourceWS:
		ws, err := actuation.DialWS(ctx, cfg.TrackerURL)
		if err != nil {
			return nil, nil, err
		}
		return ws, func() { ws.Close() }, nil
	default:
		return actuation.NewHTTPSource(cfg.TrackerURL, nil), func() {}, nil
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() (actuation.Config, string, error) {
	path := flag.String("config", "", "YAML config file")
	url := flag.String("tracker", "", "Tracker base URL")
	source := flag.String("source", "", "State source: http or ws")
	interval := flag.Duration("interval", 0, "Poll interval")
	serialPort := flag.String("serial", "", "Serial motor controller (default: log actions)")
	baud := flag.Int("baud", 0, "Serial baud rate")
	maxFailures := flag.Int("max-failures", -1, "Failed polls after a seen tracker before giving up (0 = never)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	file, err := config.Load(*path)
	if err != nil {
		return actuation.Config{}, "", err
	}
	cfg := file.Actuation
	if cfg.Source == actuation.SourceLocal {
		cfg.Source = actuation.SourceHTTP
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["tracker"] {
		cfg.TrackerURL = *url
	}
	if set["source"] {
		cfg.Source = actuation.SourceKind(*source)
	}
	if set["interval"] {
		cfg.PollInterval = *interval
	}
	if set["serial"] {
		cfg.SerialPort = *serialPort
	}
	if set["baud"] {
		cfg.BaudRate = *baud
	}
	if set["max-failures"] {
		cfg.MaxFailures = *maxFailures
	}
	if set["log-level"] {
		file.LogLevel = *logLevel
	}
	if cfg.Source == actuation.SourceLocal {
		return cfg, "", fmt.Errorf("source %q needs an in-process tracker; use http or ws", cfg.Source)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return cfg, file.LogLevel, cfg.Validate()
}
