// Package vision implements the OpenCV side of the color tracker: frame
// capture, the HSV color gate, contour-based blob extraction, region
// sampling for calibration and JPEG encoding.
package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// Frame wraps a BGR gocv.Mat captured from the camera.
type Frame struct {
	Mat gocv.Mat
	Seq uint64 // Arrival order, starting at 1
}

// NewFrame takes ownership of mat.
func NewFrame(mat gocv.Mat, seq uint64) *Frame {
	return &Frame{Mat: mat, Seq: seq}
}

// Bounds returns the frame rectangle.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Mat.Cols(), f.Mat.Rows())
}

// Close releases the Mat.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// matOf unwraps a detection.Frame produced by this package.
func matOf(f detection.Frame) (gocv.Mat, error) {
	vf, ok := f.(*Frame)
	if !ok || vf == nil {
		return gocv.Mat{}, fmt.Errorf("vision: unsupported frame type %T", f)
	}
	if vf.Mat.Empty() {
		return gocv.Mat{}, fmt.Errorf("vision: empty frame %d", vf.Seq)
	}
	return vf.Mat, nil
}

var _ detection.Frame = (*Frame)(nil)
