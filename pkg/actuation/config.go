package actuation

import (
	"fmt"
	"time"
)

// SourceKind selects where the consumer reads state from
type SourceKind string

const (
	SourceLocal SourceKind = "local" // Same process, direct publisher reads
	SourceHTTP  SourceKind = "http"  // Poll GET /api/state
	SourceWS    SourceKind = "ws"    // Follow /ws/state
)

// Config holds actuation consumer settings
type Config struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	Source       SourceKind    `yaml:"source" json:"source"`
	TrackerURL   string        `yaml:"tracker_url" json:"tracker_url"` // Base URL of a remote tracker

	// Consecutive failed polls, after state was seen once, that end the
	// loop with ErrSourceLost. Zero keeps polling forever.
	MaxFailures int `yaml:"max_failures" json:"max_failures"`

	// Optional serial motor controller; empty logs actions instead
	SerialPort string `yaml:"serial_port" json:"serial_port"`
	BaudRate   int    `yaml:"baud_rate" json:"baud_rate"`
}

// DefaultConfig returns the in-process 100 ms polling configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: 100 * time.Millisecond,
		Source:       SourceLocal,
		TrackerURL:   "http://localhost:8080",
		MaxFailures:  3,
		BaudRate:     9600,
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	switch c.Source {
	case SourceLocal:
	case SourceHTTP, SourceWS:
		if c.TrackerURL == "" {
			return fmt.Errorf("tracker_url is required for source %q", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q (want local, http or ws)", c.Source)
	}
	if c.MaxFailures < 0 {
		return fmt.Errorf("max_failures must not be negative, got %d", c.MaxFailures)
	}
	if c.SerialPort != "" && c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", c.BaudRate)
	}
	return nil
}
