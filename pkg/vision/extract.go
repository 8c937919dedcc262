package vision

import (
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// Extract finds the external contours of mask and returns one Blob per
// contour whose area exceeds minArea, in contour enumeration order.
func Extract(mask gocv.Mat, minArea float64) []detection.Blob {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	blobs := make([]detection.Blob, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		blobs = append(blobs, detection.FromRect(gocv.BoundingRect(contour), gocv.ContourArea(contour)))
	}
	return detection.FilterByArea(blobs, minArea)
}
