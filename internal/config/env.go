package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment overrides.
const (
	EnvCamera        = "LOCKON_CAMERA"
	EnvLockThreshold = "LOCKON_LOCK_THRESHOLD"
	EnvPort          = "LOCKON_PORT"
	EnvLogLevel      = "LOCKON_LOG_LEVEL"
	EnvSerialPort    = "LOCKON_SERIAL_PORT"
	EnvTrackerURL    = "LOCKON_TRACKER_URL"
	EnvPollInterval  = "LOCKON_POLL_INTERVAL"
)

// Env returns the value of key, or def when unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvFloat parses key as a float, returning def when unset.
func EnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// EnvDuration parses key as a duration, returning def when unset.
func EnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
