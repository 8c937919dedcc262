package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// EncodeJPEG encodes a frame for the camera stream.
func EncodeJPEG(f detection.Frame) ([]byte, error) {
	src, err := matOf(f)
	if err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, src)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
