package tracking

import (
	"image"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// Status is the lock engine state.
type Status int

const (
	Unlocked Status = iota
	Locked
)

func (s Status) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// LockState is either Unlocked or Locked on a region and its center.
type LockState struct {
	Status Status
	Region detection.Blob
	Center image.Point
}

// Locked reports whether a region is held.
func (s LockState) Locked() bool {
	return s.Status == Locked
}

// Transition is the outcome of one lock engine step.
type Transition int

const (
	NoChange   Transition = iota // Nothing happened
	Acquired                     // A select point hit a candidate
	Maintained                   // The nearest candidate stayed within threshold
	Lost                         // No candidate within threshold
	Cleared                      // Explicit reset
)

func (t Transition) String() string {
	switch t {
	case Acquired:
		return "acquired"
	case Maintained:
		return "maintained"
	case Lost:
		return "lost"
	case Cleared:
		return "cleared"
	default:
		return "none"
	}
}

// LockEngine keeps one candidate locked across frames by nearest-neighbor
// distance gating. It is not safe for concurrent use.
type LockEngine struct {
	threshold float64
	state     LockState
}

// NewLockEngine creates an unlocked engine with the given gate in pixels.
func NewLockEngine(threshold float64) *LockEngine {
	return &LockEngine{threshold: threshold}
}

// State returns the current lock state.
func (e *LockEngine) State() LockState {
	return e.state
}

// Threshold returns the distance gate in pixels.
func (e *LockEngine) Threshold() float64 {
	return e.threshold
}

// SetThreshold changes the distance gate. Non-positive values are ignored.
func (e *LockEngine) SetThreshold(px float64) {
	if px > 0 {
		e.threshold = px
	}
}

// Acquire locks onto the first candidate, in extraction order, whose box
// contains p. Selecting while already locked moves the lock to the hit
// candidate. A miss leaves the state untouched.
func (e *LockEngine) Acquire(p image.Point, blobs []detection.Blob) Transition {
	b, ok := detection.FirstContaining(blobs, p)
	if !ok {
		return NoChange
	}
	e.lockOn(b)
	return Acquired
}

// Maintain re-acquires the lock on this frame's candidates. The nearest
// candidate keeps the lock when its center is strictly closer than the
// threshold; otherwise, including when there are no candidates, the lock
// is dropped immediately.
func (e *LockEngine) Maintain(blobs []detection.Blob) Transition {
	if !e.state.Locked() {
		return NoChange
	}

	b, dist, ok := detection.Nearest(blobs, e.state.Center)
	if !ok || dist >= e.threshold {
		e.state = LockState{}
		return Lost
	}
	e.lockOn(b)
	return Maintained
}

// Reset drops any lock.
func (e *LockEngine) Reset() Transition {
	e.state = LockState{}
	return Cleared
}

func (e *LockEngine) lockOn(b detection.Blob) {
	e.state = LockState{Status: Locked, Region: b, Center: b.Center()}
}
