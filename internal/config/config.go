// Package config loads go-lockon configuration from an optional YAML file
// and LOCKON_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-lockon/pkg/actuation"
	"github.com/teslashibe/go-lockon/pkg/camera"
	"github.com/teslashibe/go-lockon/pkg/tracking"
	"github.com/teslashibe/go-lockon/pkg/web"
)

// File is the full configuration of a go-lockon process.
type File struct {
	LogLevel string `yaml:"log_level"`

	// Legacy starts tracking from the fixed-range, 100 px profile
	Legacy bool `yaml:"legacy"`

	Camera    camera.Config    `yaml:"camera"`
	Tracking  tracking.Config  `yaml:"tracking"`
	Web       web.Config       `yaml:"web"`
	Actuation actuation.Config `yaml:"actuation"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		LogLevel:  "info",
		Camera:    camera.DefaultConfig(),
		Tracking:  tracking.DefaultConfig(),
		Web:       web.DefaultConfig(),
		Actuation: actuation.DefaultConfig(),
	}
}

// Load reads path (if non-empty), applies environment overrides and
// validates the result. Unknown YAML keys are rejected.
func Load(path string) (File, error) {
	return LoadProfile(path, false)
}

// LoadProfile is Load with the legacy profile forced on when legacy is
// set. Tracking keys from the file and environment still refine it.
func LoadProfile(path string, legacy bool) (File, error) {
	f := Default()
	if legacy {
		f.Legacy = true
		f.Tracking = tracking.LegacyConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return f, fmt.Errorf("read config: %w", err)
		}
		if err := f.decode(data); err != nil {
			return f, fmt.Errorf("parse config %s: %w", path, err)
		}
		f.Legacy = f.Legacy || legacy
	}

	if err := f.ApplyEnv(); err != nil {
		return f, err
	}
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

// decode overlays YAML onto f. The legacy switch is read first so the
// file's tracking keys refine the legacy profile rather than the default.
func (f *File) decode(data []byte) error {
	var probe struct {
		Legacy bool `yaml:"legacy"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Legacy {
		f.Tracking = tracking.LegacyConfig()
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv applies LOCKON_* overrides.
func (f *File) ApplyEnv() error {
	f.LogLevel = Env(EnvLogLevel, f.LogLevel)
	f.Camera.Device = Env(EnvCamera, f.Camera.Device)
	f.Web.Port = Env(EnvPort, f.Web.Port)
	f.Actuation.SerialPort = Env(EnvSerialPort, f.Actuation.SerialPort)
	f.Actuation.TrackerURL = Env(EnvTrackerURL, f.Actuation.TrackerURL)

	threshold, err := EnvFloat(EnvLockThreshold, f.Tracking.LockThreshold)
	if err != nil {
		return err
	}
	f.Tracking.LockThreshold = threshold

	poll, err := EnvDuration(EnvPollInterval, f.Actuation.PollInterval)
	if err != nil {
		return err
	}
	f.Actuation.PollInterval = poll
	return nil
}

// Validate checks every section and reports all problems at once.
func (f *File) Validate() error {
	var errs []error
	if err := f.Camera.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := f.Tracking.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracking: %w", err))
	}
	if err := f.Web.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := f.Actuation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("actuation: %w", err))
	}
	return errors.Join(errs...)
}
