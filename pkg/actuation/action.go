// Package actuation consumes published tracker state and turns the
// direction command into motor actions.
package actuation

import "github.com/teslashibe/go-lockon/pkg/state"

// Action is a motor action line.
type Action string

const (
	PanLeft        Action = "Pan left"
	PanRight       Action = "Pan right"
	TiltUp         Action = "Tilt up"
	TiltDown       Action = "Tilt down"
	TargetCentered Action = "Target centered"
	NoTarget       Action = "No target"
)

// ActionFor maps a direction to its action. Absent and "none" both mean
// there is nothing to steer toward.
func ActionFor(d *state.Direction) Action {
	if d == nil {
		return NoTarget
	}
	switch *d {
	case state.Left:
		return PanLeft
	case state.Right:
		return PanRight
	case state.Up:
		return TiltUp
	case state.Down:
		return TiltDown
	case state.Center:
		return TargetCentered
	default:
		return NoTarget
	}
}
