package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// Calibrator derives an HSV range from the mean color of a frame region.
type Calibrator struct{}

// NewCalibrator creates a calibrator.
func NewCalibrator() *Calibrator {
	return &Calibrator{}
}

// Calibrate samples region of f (clipped to the frame) in HSV space and
// returns mean ± tol, clamped to valid bounds.
func (c *Calibrator) Calibrate(f detection.Frame, region image.Rectangle, tol detection.Tolerance) (detection.Range, error) {
	src, err := matOf(f)
	if err != nil {
		return detection.Range{}, err
	}

	rect := region.Intersect(f.Bounds())
	if rect.Empty() {
		return detection.Range{}, detection.ErrEmptyRegion
	}

	roi := src.Region(rect)
	defer roi.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)

	h, s, v := channelSamples(hsv)
	return detection.RangeFromSamples(h, s, v, tol)
}

// channelSamples flattens a 3-channel 8-bit Mat into per-channel slices.
func channelSamples(m gocv.Mat) (h, s, v []float64) {
	rows, cols := m.Rows(), m.Cols()
	n := rows * cols
	h = make([]float64, 0, n)
	s = make([]float64, 0, n)
	v = make([]float64, 0, n)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px := m.GetVecbAt(y, x)
			h = append(h, float64(px[0]))
			s = append(s, float64(px[1]))
			v = append(v, float64(px[2]))
		}
	}
	return h, s, v
}
