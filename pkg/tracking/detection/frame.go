package detection

import "image"

// Frame is one captured image, immutable while it is being processed.
// Frames are ordered by arrival only.
type Frame interface {
	// Bounds returns the pixel rectangle of the frame, anchored at (0,0).
	Bounds() image.Rectangle

	// Close releases the underlying buffer.
	Close() error
}
