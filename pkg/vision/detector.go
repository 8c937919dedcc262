package vision

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// ColorDetector runs the color gate and blob extraction on a frame.
type ColorDetector struct {
	gate    *ColorGate
	minArea float64
	mu      sync.Mutex // Protects the gate kernel
}

// NewColorDetector creates a detector discarding blobs with area <= minArea.
func NewColorDetector(minArea float64) *ColorDetector {
	if minArea <= 0 {
		minArea = detection.DefaultMinArea
	}
	return &ColorDetector{
		gate:    NewColorGate(DefaultMorphIterations),
		minArea: minArea,
	}
}

// Detect returns the candidate blobs of f under the HSV range r.
func (d *ColorDetector) Detect(f detection.Frame, r detection.Range) ([]detection.Blob, error) {
	src, err := matOf(f)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	mask := gocv.NewMat()
	defer mask.Close()
	d.gate.Apply(src, r, &mask)

	return Extract(mask, d.minArea), nil
}

// Close releases resources.
func (d *ColorDetector) Close() error {
	return d.gate.Close()
}
