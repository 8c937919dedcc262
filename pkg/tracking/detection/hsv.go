package detection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Channel bounds in OpenCV's 8-bit HSV space.
const (
	MaxHue        = 180
	MaxSaturation = 255
	MaxValue      = 255
)

// ErrEmptyRegion is returned when a calibration region holds no pixels.
var ErrEmptyRegion = errors.New("detection: empty calibration region")

// HSV is one point in HSV space.
type HSV struct {
	H int `json:"h" yaml:"h"`
	S int `json:"s" yaml:"s"`
	V int `json:"v" yaml:"v"`
}

// Clamp returns the color with every channel forced into its valid bound.
func (c HSV) Clamp() HSV {
	return HSV{
		H: clampInt(c.H, 0, MaxHue),
		S: clampInt(c.S, 0, MaxSaturation),
		V: clampInt(c.V, 0, MaxValue),
	}
}

// String formats the color as (h,s,v).
func (c HSV) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.H, c.S, c.V)
}

// Range is the inclusive HSV window used by the color gate.
type Range struct {
	Lower HSV `json:"lower" yaml:"lower"`
	Upper HSV `json:"upper" yaml:"upper"`
}

// DefaultRange matches dark (black) objects.
func DefaultRange() Range {
	return Range{
		Lower: HSV{H: 0, S: 0, V: 0},
		Upper: HSV{H: 180, S: 255, V: 50},
	}
}

// Clamp returns the range with both ends forced into valid bounds.
func (r Range) Clamp() Range {
	return Range{Lower: r.Lower.Clamp(), Upper: r.Upper.Clamp()}
}

func (r Range) String() string {
	return r.Lower.String() + "-" + r.Upper.String()
}

// Inverted reports whether any channel has lower > upper. An inverted
// range matches nothing on that channel.
func (r Range) Inverted() bool {
	return r.Lower.H > r.Upper.H || r.Lower.S > r.Upper.S || r.Lower.V > r.Upper.V
}

// Tolerance is the per-channel half-width of a calibration window.
type Tolerance struct {
	H int `json:"h" yaml:"h"`
	S int `json:"s" yaml:"s"`
	V int `json:"v" yaml:"v"`
}

// DefaultTolerance returns the (10, 50, 50) calibration half-width.
func DefaultTolerance() Tolerance {
	return Tolerance{H: 10, S: 50, V: 50}
}

// Validate rejects negative half-widths.
func (t Tolerance) Validate() error {
	if t.H < 0 || t.S < 0 || t.V < 0 {
		return fmt.Errorf("tolerance must be non-negative, got (%d,%d,%d)", t.H, t.S, t.V)
	}
	return nil
}

// Window derives the range mean ± tol, clamped per channel. Negative
// tolerances are treated by magnitude so the window never inverts.
func Window(mean HSV, tol Tolerance) Range {
	m := mean.Clamp()
	dh, ds, dv := absInt(tol.H), absInt(tol.S), absInt(tol.V)
	return Range{
		Lower: HSV{H: m.H - dh, S: m.S - ds, V: m.V - dv},
		Upper: HSV{H: m.H + dh, S: m.S + ds, V: m.V + dv},
	}.Clamp()
}

// MeanOf averages per-channel samples of a region. Means are truncated to
// integers.
func MeanOf(h, s, v []float64) (HSV, error) {
	if len(h) == 0 || len(h) != len(s) || len(h) != len(v) {
		return HSV{}, ErrEmptyRegion
	}
	return HSV{
		H: int(math.Floor(stat.Mean(h, nil))),
		S: int(math.Floor(stat.Mean(s, nil))),
		V: int(math.Floor(stat.Mean(v, nil))),
	}, nil
}

// RangeFromSamples computes the calibration range for a selected region
// from its per-channel pixel samples.
func RangeFromSamples(h, s, v []float64, tol Tolerance) (Range, error) {
	mean, err := MeanOf(h, s, v)
	if err != nil {
		return Range{}, err
	}
	return Window(mean, tol), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
