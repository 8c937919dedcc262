package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// DefaultMorphIterations is the number of erosion and then dilation passes.
const DefaultMorphIterations = 2

// ColorGate converts a BGR frame into a binary foreground mask.
type ColorGate struct {
	kernel     gocv.Mat
	iterations int
}

// NewColorGate creates a gate using a 3x3 rectangular kernel.
func NewColorGate(iterations int) *ColorGate {
	if iterations <= 0 {
		iterations = DefaultMorphIterations
	}
	return &ColorGate{
		kernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
		iterations: iterations,
	}
}

// Apply thresholds src in HSV space against r and writes the cleaned mask
// into mask. The mask always has the same size as src.
func (g *ColorGate) Apply(src gocv.Mat, r detection.Range, mask *gocv.Mat) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(src, &hsv, gocv.ColorBGRToHSV)

	lower := gocv.NewScalar(float64(r.Lower.H), float64(r.Lower.S), float64(r.Lower.V), 0)
	upper := gocv.NewScalar(float64(r.Upper.H), float64(r.Upper.S), float64(r.Upper.V), 0)
	gocv.InRangeWithScalar(hsv, lower, upper, mask)

	tmp := gocv.NewMat()
	defer tmp.Close()
	for i := 0; i < g.iterations; i++ {
		gocv.Erode(*mask, &tmp, g.kernel)
		tmp.CopyTo(mask)
	}
	for i := 0; i < g.iterations; i++ {
		gocv.Dilate(*mask, &tmp, g.kernel)
		tmp.CopyTo(mask)
	}
}

// Close releases the structuring element.
func (g *ColorGate) Close() error {
	return g.kernel.Close()
}
