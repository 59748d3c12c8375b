package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/places"
	"github.com/teslashibe/go-guide/pkg/route"
	"github.com/teslashibe/go-guide/pkg/session"
	"github.com/teslashibe/go-guide/pkg/triplog"
	"github.com/teslashibe/go-guide/pkg/vision"
)

const (
	msgMissingCoords = "Missing lat/lng coordinates"
	msgNotActive     = "No active navigation. Start navigation first."
	msgRobotBusy     = "Robot is already navigating. Stop current navigation first."
)

const (
	// cameraCheckTimeout bounds the camera check in /health.
	cameraCheckTimeout = 5 * time.Second

	// geocodeTimeout bounds a destination_query lookup.
	geocodeTimeout = 10 * time.Second
)

// coords is a lat/lng pair where either half may be missing.
type coords struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (c *coords) point() (direction.Point, bool) {
	if c == nil || c.Lat == nil || c.Lng == nil {
		return direction.Point{}, false
	}
	return direction.Point{Lat: *c.Lat, Lng: *c.Lng}, true
}

// destination is given either as coordinates or as a place query.
type destination struct {
	coords
	Query string `json:"destination_query"`
}

// resolve returns the destination, geocoding the query when coordinates are
// missing. Errors are *fiber.Error with the response status.
func (s *Server) resolve(ctx context.Context, d *destination) (direction.Point, *places.Place, error) {
	if p, ok := d.point(); ok {
		return p, nil, nil
	}
	if d.Query == "" {
		return direction.Point{}, nil, fiber.NewError(fiber.StatusBadRequest, msgMissingCoords)
	}
	if s.geocoder == nil {
		return direction.Point{}, nil, fiber.NewError(fiber.StatusServiceUnavailable, "destination lookup not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()
	place, err := s.geocoder.Geocode(ctx, d.Query)
	switch {
	case errors.Is(err, places.ErrNotFound):
		return direction.Point{}, nil, fiber.NewError(fiber.StatusNotFound, "Destination not found: "+d.Query)
	case err != nil:
		s.logger.Warn("geocode failed", "query", d.Query, "error", err)
		return direction.Point{}, nil, fiber.NewError(fiber.StatusBadGateway, "destination lookup failed")
	}
	s.logger.Info("destination resolved", "query", d.Query, "name", place.Name, "position", place.Position.String())
	return place.Position, &place, nil
}

// StartNavigationRequest is the body of POST /navigation/start.
type StartNavigationRequest struct {
	destination
	RouteInstructions []string `json:"route_instructions"`
	CurrentLocation   *coords  `json:"current_location"`
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "online",
		"message": "go-guide navigation API",
		"endpoints": fiber.Map{
			"navigation": "/navigation/{start,update-gps,stop,test-guidance,status}",
			"robot":      "/robot/{navigate-to,stop,status}",
			"vision":     "/vision/{describe,capture}",
			"trips":      "/api/trips",
			"health":     "/health",
		},
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"backend": "online",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"camera":  "not configured",
	}
	if s.camera != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), cameraCheckTimeout)
		defer cancel()
		if _, err := s.camera.CaptureFrame(ctx); err != nil {
			resp["camera"] = "offline - " + err.Error()
		} else {
			resp["camera"] = "online"
		}
	}
	if s.robots != nil {
		resp["robots_connected"] = s.robots.RobotCount()
	}
	if s.events != nil {
		resp["status_subscribers"] = s.events.ClientCount()
	}
	return c.JSON(resp)
}

func (s *Server) handleStartNavigation(c *fiber.Ctx) error {
	var req StartNavigationRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	dest, place, err := s.resolve(c.UserContext(), &req.destination)
	if err != nil {
		return err
	}

	sreq := session.StartRequest{Destination: dest, Instructions: req.RouteInstructions}
	if cur, ok := req.CurrentLocation.point(); ok {
		sreq.Current = &cur
	}

	started, err := s.sessions.StartNavigation(c.UserContext(), sreq)
	if err != nil {
		if errors.Is(err, route.ErrInvalidDestination) || errors.Is(err, direction.ErrInvalidPoint) {
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.JSON(struct {
		Success bool          `json:"success"`
		Message string        `json:"message"`
		Place   *places.Place `json:"place,omitempty"`
		session.Started
	}{true, "Navigation started", place, started})
}

func (s *Server) handleUpdateGPS(c *fiber.Ctx) error {
	var req coords
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	p, ok := req.point()
	if !ok {
		return fail(c, fiber.StatusBadRequest, msgMissingCoords)
	}
	upd, err := s.sessions.UpdatePosition(p.Lat, p.Lng)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(struct {
		Success bool `json:"success"`
		session.PositionUpdate
	}{true, upd})
}

func (s *Server) handleStopNavigation(c *fiber.Ctx) error {
	wasActive := s.sessions.StopNavigation()
	return c.JSON(fiber.Map{
		"success":    true,
		"message":    "Navigation stopped",
		"was_active": wasActive,
	})
}

func (s *Server) handleTestGuidance(c *fiber.Ctx) error {
	a, spoke, err := s.sessions.ForceGuidanceTick(c.UserContext())
	switch {
	case errors.Is(err, session.ErrNotActive):
		return fail(c, fiber.StatusBadRequest, msgNotActive)
	case errors.Is(err, control.ErrNoFix):
		return fail(c, fiber.StatusBadRequest, "No location fix yet. Send /navigation/update-gps first.")
	}

	resp := fiber.Map{
		"success":           err == nil,
		"message":           "Navigation guidance triggered",
		"spoken":            spoke,
		"navigation_active": s.sessions.Status().Guidance.Active,
	}
	if spoke {
		resp["announcement"] = a.Text
		resp["kind"] = a.Kind.String()
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	return c.JSON(resp)
}

func (s *Server) handleNavigationStatus(c *fiber.Ctx) error {
	return c.JSON(s.sessions.Status())
}

func (s *Server) handleRobotNavigate(c *fiber.Ctx) error {
	var req destination
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	dest, place, err := s.resolve(c.UserContext(), &req)
	if err != nil {
		return err
	}

	started, err := s.sessions.StartRobot(dest)
	switch {
	case errors.Is(err, session.ErrRobotBusy):
		return fail(c, fiber.StatusConflict, msgRobotBusy)
	case errors.Is(err, session.ErrNoRobot):
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, direction.ErrInvalidPoint):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	return c.JSON(struct {
		Success bool          `json:"success"`
		Message string        `json:"message"`
		Mode    string        `json:"mode"`
		Place   *places.Place `json:"place,omitempty"`
		session.RobotStarted
	}{true, "Robot navigation started", "path_finding", place, started})
}

func (s *Server) handleRobotStop(c *fiber.Ctx) error {
	wasRunning, err := s.sessions.StopRobot(c.UserContext())
	resp := fiber.Map{
		"success":        true,
		"message":        "Robot navigation stopped",
		"was_navigating": wasRunning,
	}
	if err != nil {
		resp["warning"] = err.Error()
	}
	return c.JSON(resp)
}

func (s *Server) handleRobotStatus(c *fiber.Ctx) error {
	return c.JSON(s.sessions.RobotStatus(c.UserContext()))
}

func (s *Server) handleTrips(c *fiber.Ctx) error {
	trips, err := s.history.Recent(c.UserContext(), c.QueryInt("limit", triplog.DefaultRecent))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"trips": trips, "count": len(trips)})
}

func (s *Server) handleDescribe(c *fiber.Ctx) error {
	text, err := s.sessions.Look(c.UserContext())
	if err != nil {
		code := fiber.StatusBadGateway
		if errors.Is(err, session.ErrNoVision) {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"success":     false,
			"error":       err.Error(),
			"description": vision.FallbackText,
		})
	}
	return c.JSON(fiber.Map{"success": true, "description": text})
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	if s.camera == nil {
		return fail(c, fiber.StatusServiceUnavailable, "camera not configured")
	}
	frame, err := s.camera.CaptureFrame(c.UserContext())
	if err != nil {
		return fail(c, fiber.StatusBadGateway, err.Error())
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(frame)
}
