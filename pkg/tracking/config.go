package tracking

import (
	"fmt"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// Config holds all tunable parameters for color lock-on tracking
type Config struct {
	// Lock gating
	LockThreshold float64 `yaml:"lock_threshold" json:"lock_threshold"` // Max center jump between frames (pixels)

	// Detection
	MinArea float64 `yaml:"min_area" json:"min_area"` // Blobs must exceed this contour area

	// Calibration
	CalibrationEnabled bool                `yaml:"calibration_enabled" json:"calibration_enabled"` // Narrow the HSV range on acquisition
	Tolerance          detection.Tolerance `yaml:"tolerance" json:"tolerance"`                     // Half-width around the region mean

	// Coordination
	ShutdownCoordination bool `yaml:"shutdown_coordination" json:"shutdown_coordination"` // Stop when the published shutdown flag is set

	// Inputs and outputs
	EventBuffer      int `yaml:"event_buffer" json:"event_buffer"`             // Pending operator events
	FrameStreamEvery int `yaml:"frame_stream_every" json:"frame_stream_every"` // Stream every Nth frame, 0 = off
}

// DefaultConfig returns the calibrating, shutdown-aware configuration
func DefaultConfig() Config {
	return Config{
		LockThreshold: 2000,
		MinArea:       detection.DefaultMinArea,

		CalibrationEnabled: true,
		Tolerance:          detection.DefaultTolerance(),

		ShutdownCoordination: true,

		EventBuffer:      16,
		FrameStreamEvery: 0,
	}
}

// LegacyConfig returns the fixed-range configuration: a tight 100 px gate,
// no calibration and no external shutdown coordination
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.LockThreshold = 100
	cfg.CalibrationEnabled = false
	cfg.ShutdownCoordination = false
	return cfg
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.LockThreshold <= 0 {
		return fmt.Errorf("lock_threshold must be positive, got %v", c.LockThreshold)
	}
	if c.MinArea < 0 {
		return fmt.Errorf("min_area must be non-negative, got %v", c.MinArea)
	}
	if err := c.Tolerance.Validate(); err != nil {
		return err
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("event_buffer must be at least 1, got %d", c.EventBuffer)
	}
	if c.FrameStreamEvery < 0 {
		return fmt.Errorf("frame_stream_every must be non-negative, got %d", c.FrameStreamEvery)
	}
	return nil
}
