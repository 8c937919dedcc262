// Package state is the cross-process contract between the tracking loop and
// its consumers. The tracker publishes one immutable Snapshot per frame and
// readers always see a complete snapshot from a single write.
package state

import (
	"fmt"
	"time"
)

// Direction is the steering command vocabulary of the actuation side.
type Direction string

const (
	Left   Direction = "left"
	Right  Direction = "right"
	Up     Direction = "up"
	Down   Direction = "down"
	Center Direction = "center"
	None   Direction = "none"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Left, Right, Up, Down, Center, None:
		return d, nil
	default:
		return "", fmt.Errorf("state: unknown direction %q", s)
	}
}

// Point is a pixel coordinate in frame space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Region is a locked bounding box in frame space.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Center returns the region center, the published target.
func (r Region) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Snapshot is one published state. Target is present exactly when
// SelectedRegion is, and always equals its center.
type Snapshot struct {
	Seq            uint64     `json:"seq"`
	Session        string     `json:"session"`
	Target         *Point     `json:"target"`
	SelectedRegion *Region    `json:"selected_region"`
	Direction      *Direction `json:"direction"`
	Shutdown       bool       `json:"shutdown"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Locked reports whether a target is present.
func (s Snapshot) Locked() bool {
	return s.Target != nil
}

// Consistent reports whether the target/region pairing holds.
func (s Snapshot) Consistent() bool {
	if (s.Target == nil) != (s.SelectedRegion == nil) {
		return false
	}
	return s.Target == nil || *s.Target == s.SelectedRegion.Center()
}
