package tracking

import (
	"errors"
	"image"

	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// ErrInboxFull is returned when an operator event cannot be queued.
var ErrInboxFull = errors.New("tracking: event inbox full")

// EventKind identifies an operator input.
type EventKind int

const (
	EventSelect   EventKind = iota // Select point in frame coordinates
	EventReset                     // Drop the lock and restore the default range
	EventQuit                      // Stop the tracking loop
	EventOverride                  // Replace the active HSV range
)

func (k EventKind) String() string {
	switch k {
	case EventSelect:
		return "select"
	case EventReset:
		return "reset"
	case EventQuit:
		return "quit"
	case EventOverride:
		return "override"
	default:
		return "unknown"
	}
}

// Event is an operator input delivered to the tracking loop. Events are
// queued from any goroutine and drained once per frame by the loop.
type Event struct {
	Kind  EventKind
	Point image.Point
	Range detection.Range
}

// Select queues a select point.
func (t *Tracker) Select(p image.Point) error {
	return t.send(Event{Kind: EventSelect, Point: p})
}

// Reset queues a reset.
func (t *Tracker) Reset() error {
	return t.send(Event{Kind: EventReset})
}

// Quit queues a quit request.
func (t *Tracker) Quit() error {
	return t.send(Event{Kind: EventQuit})
}

// Override queues a manual HSV range.
func (t *Tracker) Override(r detection.Range) error {
	return t.send(Event{Kind: EventOverride, Range: r.Clamp()})
}

func (t *Tracker) send(ev Event) error {
	select {
	case t.inbox <- ev:
		return nil
	default:
		return ErrInboxFull
	}
}
