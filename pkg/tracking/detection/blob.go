// Package detection provides the frame-independent geometry and color math
// used by the color lock-on tracker: candidate blobs, HSV ranges and the
// calibration window derived from a selected region.
package detection

import (
	"image"
	"math"
)

// DefaultMinArea is the contour area a region must exceed to become a Blob.
const DefaultMinArea = 500.0

// Blob is a candidate foreground region found in a single frame.
// Blobs are not identity-tracked; they only live for one frame.
type Blob struct {
	X, Y int     // Top-left corner in pixels
	W, H int     // Bounding box size in pixels
	Area float64 // Contour area in pixels
}

// FromRect builds a Blob from a bounding rectangle and its contour area.
func FromRect(r image.Rectangle, area float64) Blob {
	return Blob{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy(), Area: area}
}

// Rect returns the bounding rectangle of the blob.
func (b Blob) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Center returns the integer center of the bounding box.
func (b Blob) Center() image.Point {
	return image.Pt(b.X+b.W/2, b.Y+b.H/2)
}

// Contains reports whether p lies inside the bounding box, edges included.
func (b Blob) Contains(p image.Point) bool {
	return b.X <= p.X && p.X <= b.X+b.W && b.Y <= p.Y && p.Y <= b.Y+b.H
}

// DistanceTo returns the Euclidean distance from the blob center to p.
func (b Blob) DistanceTo(p image.Point) float64 {
	c := b.Center()
	return math.Hypot(float64(c.X-p.X), float64(c.Y-p.Y))
}

// FilterByArea keeps blobs whose area strictly exceeds minArea.
// Input order is preserved.
func FilterByArea(blobs []Blob, minArea float64) []Blob {
	out := blobs[:0:0]
	for _, b := range blobs {
		if b.Area > minArea {
			out = append(out, b)
		}
	}
	return out
}

// Nearest returns the blob whose center is closest to p.
// Equidistant candidates are broken top-most first, then left-most, so the
// choice does not depend on contour enumeration order.
func Nearest(blobs []Blob, p image.Point) (Blob, float64, bool) {
	if len(blobs) == 0 {
		return Blob{}, 0, false
	}

	best := blobs[0]
	bestDist := best.DistanceTo(p)
	for _, b := range blobs[1:] {
		d := b.DistanceTo(p)
		switch {
		case d < bestDist:
			best, bestDist = b, d
		case d == bestDist && before(b, best):
			best = b
		}
	}
	return best, bestDist, true
}

// before orders blobs by center row, then center column.
func before(a, b Blob) bool {
	ca, cb := a.Center(), b.Center()
	if ca.Y != cb.Y {
		return ca.Y < cb.Y
	}
	return ca.X < cb.X
}

// FirstContaining returns the first blob, in the given order, containing p.
func FirstContaining(blobs []Blob, p image.Point) (Blob, bool) {
	for _, b := range blobs {
		if b.Contains(p) {
			return b, true
		}
	}
	return Blob{}, false
}
