// Package camera describes the video source feeding the tracker. A source
// is either a camera index ("0") or a path to a video file.
package camera

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrOpen is returned when the video source cannot be opened.
	ErrOpen = errors.New("camera: cannot open video source")

	// ErrEndOfStream is returned once a frame read fails.
	ErrEndOfStream = errors.New("camera: end of stream")
)

// Config holds video source parameters.
type Config struct {
	// Device is a camera index ("0") or a file path.
	Device string `json:"device" yaml:"device"`

	// Requested capture size and rate. Zero keeps the driver default.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
	FPS    int `json:"fps" yaml:"fps"`
}

// Capture limits accepted by Validate.
const (
	MaxWidth  = 4096
	MaxHeight = 2160
	MaxFPS    = 120
)

// DefaultConfig opens the first camera at its native mode.
func DefaultConfig() Config {
	return Config{Device: "0"}
}

// Validate checks the config values.
func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("camera: device is required")
	}
	if c.Width < 0 || c.Width > MaxWidth {
		return fmt.Errorf("camera: width must be between 0 and %d, got %d", MaxWidth, c.Width)
	}
	if c.Height < 0 || c.Height > MaxHeight {
		return fmt.Errorf("camera: height must be between 0 and %d, got %d", MaxHeight, c.Height)
	}
	if c.FPS < 0 || c.FPS > MaxFPS {
		return fmt.Errorf("camera: fps must be between 0 and %d, got %d", MaxFPS, c.FPS)
	}
	return nil
}

// DeviceIndex returns the camera index when Device is numeric.
func (c *Config) DeviceIndex() (int, bool) {
	id, err := strconv.Atoi(c.Device)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
