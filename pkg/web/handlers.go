package web

import (
	"encoding/json"
	"errors"
	"image"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-lockon/pkg/hub"
	"github.com/teslashibe/go-lockon/pkg/state"
	"github.com/teslashibe/go-lockon/pkg/tracking"
	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// SelectRequest is a select point in frame coordinates
type SelectRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// DirectionRequest sets or clears the published direction
type DirectionRequest struct {
	Direction *string `json:"direction"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleState returns the latest snapshot
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.publisher.Snapshot())
}

func (s *Server) handleSelect(c *fiber.Ctx) error {
	var req SelectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if req.X == nil || req.Y == nil {
		return fiber.NewError(fiber.StatusBadRequest, "x and y are required")
	}
	if err := s.send(func(t Tracker) error { return t.Select(image.Pt(*req.X, *req.Y)) }); err != nil {
		return err
	}
	return accepted(c)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	if err := s.send(Tracker.Reset); err != nil {
		return err
	}
	return accepted(c)
}

func (s *Server) handleQuit(c *fiber.Ctx) error {
	if err := s.send(Tracker.Quit); err != nil {
		return err
	}
	return accepted(c)
}

// handleShutdown asks the supervisor to raise the shutdown flag
func (s *Server) handleShutdown(c *fiber.Ctx) error {
	s.logger.Info("shutdown requested via api")
	if s.OnShutdown != nil {
		s.OnShutdown("api")
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"shutdown": true})
	}
	s.publisher.RequestShutdown()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"shutdown": true})
}

// handleOverride replaces the active HSV range; values are clamped and
// a range with lower above upper on any channel is rejected
func (s *Server) handleOverride(c *fiber.Ctx) error {
	var r detection.Range
	if err := c.BodyParser(&r); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	r = r.Clamp()
	if r.Inverted() {
		return fiber.NewError(fiber.StatusBadRequest, "inverted range "+r.String())
	}
	if err := s.send(func(t Tracker) error { return t.Override(r) }); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(r)
}

// handleDirection lets an external producer write the direction field.
// A null or absent direction clears it.
func (s *Server) handleDirection(c *fiber.Ctx) error {
	var req DirectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}

	var dir *state.Direction
	if req.Direction != nil {
		d, err := state.ParseDirection(*req.Direction)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		dir = &d
	}
	return c.JSON(s.publisher.SetDirection(dir))
}

func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	if s.tracker == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "tracker not attached")
	}
	return c.JSON(s.tracker.GetTuningParams())
}

func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	if s.tracker == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "tracker not attached")
	}
	var p tracking.TuningParams
	if err := c.BodyParser(&p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if err := p.Tolerance.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.tracker.SetTuningParams(p)
	return c.JSON(s.tracker.GetTuningParams())
}

// send delivers an operator event to the tracker. Events are applied on
// the next processed frame.
func (s *Server) send(fn func(Tracker) error) error {
	if s.tracker == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "tracker not attached")
	}
	if err := fn(s.tracker); err != nil {
		if errors.Is(err, tracking.ErrInboxFull) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return err
	}
	return nil
}

func accepted(c *fiber.Ctx) error {
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
}

// handleStateWS streams snapshots, starting with the current one
func (s *Server) handleStateWS(c *websocket.Conn) {
	hub.NewClientWithGreeting(s.stateHub, c, s.currentSnapshot).Run()
}

// currentSnapshot encodes the latest snapshot as a hub message
func (s *Server) currentSnapshot() (hub.Message, bool) {
	data, err := json.Marshal(s.publisher.Snapshot())
	if err != nil {
		s.logger.Warn("snapshot encode failed", "error", err)
		return hub.Message{}, false
	}
	return hub.Message{Type: hub.JSONMessage, Data: data}, true
}

// handleCameraWS streams JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
