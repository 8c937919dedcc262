// Package metrics exposes tracker counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds pipeline counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	FramesProcessed atomic.Uint64
	BlobsDetected   atomic.Uint64
	DetectErrors    atomic.Uint64
	LocksAcquired   atomic.Uint64
	LocksLost       atomic.Uint64
	Resets          atomic.Uint64
	Calibrations    atomic.Uint64
	Overrides       atomic.Uint64
	Locked          atomic.Bool
	Published       atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.register()
	return m
}

func (m *Metrics) register() {
	counters := []struct {
		name, help string
		v          *atomic.Uint64
	}{
		{"lockon_frames_processed_total", "Frames run through the detection pipeline", &m.FramesProcessed},
		{"lockon_blobs_detected_total", "Candidate blobs above the minimum area", &m.BlobsDetected},
		{"lockon_detect_errors_total", "Frames the detector failed on", &m.DetectErrors},
		{"lockon_locks_acquired_total", "Unlocked to locked transitions", &m.LocksAcquired},
		{"lockon_locks_lost_total", "Locks dropped for lack of a candidate within threshold", &m.LocksLost},
		{"lockon_resets_total", "Explicit reset commands", &m.Resets},
		{"lockon_calibrations_total", "HSV ranges derived from a selected region", &m.Calibrations},
		{"lockon_overrides_total", "Manual HSV overrides applied", &m.Overrides},
		{"lockon_states_published_total", "Snapshots published to the state contract", &m.Published},
	}
	for _, c := range counters {
		v := c.v
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "lockon_locked", Help: "1 while a target is locked"},
		func() float64 {
			if m.Locked.Load() {
				return 1
			}
			return 0
		},
	))
}

// WatchHub exports a websocket hub's dropped broadcast count under the
// hub label. Watching the same hub twice is a no-op.
func (m *Metrics) WatchHub(name string, dropped func() uint64) error {
	if m == nil {
		return nil
	}
	err := m.registry.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "lockon_hub_dropped_total",
			Help:        "Broadcasts dropped because the hub queue was full",
			ConstLabels: prometheus.Labels{"hub": name},
		},
		func() float64 { return float64(dropped()) },
	))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFrame counts a processed frame and its candidates.
func (m *Metrics) ObserveFrame(blobs int) {
	if m == nil {
		return
	}
	m.FramesProcessed.Add(1)
	if blobs > 0 {
		m.BlobsDetected.Add(uint64(blobs))
	}
}

// ObserveDetectError counts a frame the detector failed on.
func (m *Metrics) ObserveDetectError() {
	if m != nil {
		m.DetectErrors.Add(1)
	}
}

// ObserveAcquire records a new lock.
func (m *Metrics) ObserveAcquire() {
	if m != nil {
		m.LocksAcquired.Add(1)
		m.Locked.Store(true)
	}
}

// ObserveLoss records a dropped lock.
func (m *Metrics) ObserveLoss() {
	if m != nil {
		m.LocksLost.Add(1)
		m.Locked.Store(false)
	}
}

// ObserveReset records an explicit reset.
func (m *Metrics) ObserveReset() {
	if m != nil {
		m.Resets.Add(1)
		m.Locked.Store(false)
	}
}

// ObserveCalibration counts a derived HSV range.
func (m *Metrics) ObserveCalibration() {
	if m != nil {
		m.Calibrations.Add(1)
	}
}

// ObserveOverride counts a manual HSV override.
func (m *Metrics) ObserveOverride() {
	if m != nil {
		m.Overrides.Add(1)
	}
}

// ObservePublish counts a published snapshot.
func (m *Metrics) ObservePublish() {
	if m != nil {
		m.Published.Add(1)
	}
}
