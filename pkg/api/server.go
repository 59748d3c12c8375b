// Package api exposes the guidance sessions over HTTP and WebSocket.
package api

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-guide/pkg/hub"
	"github.com/teslashibe/go-guide/pkg/link"
	"github.com/teslashibe/go-guide/pkg/places"
	"github.com/teslashibe/go-guide/pkg/session"
	"github.com/teslashibe/go-guide/pkg/triplog"
	"github.com/teslashibe/go-guide/pkg/vision"
)

// Config holds HTTP server settings.
type Config struct {
	// CORSOrigins is a comma separated allow list; "*" allows any origin.
	CORSOrigins string

	// JWTSecret enables HS256 bearer auth on the command routes and the
	// WebSocket upgrades when set.
	JWTSecret string

	// AccessLog receives one line per request. Nil disables access logging.
	AccessLog io.Writer
}

// Server is the guidance HTTP server
type Server struct {
	app      *fiber.App
	cfg      Config
	sessions *session.Manager
	logger   *slog.Logger
	started  time.Time

	events   *hub.Hub
	robots   *link.Hub
	camera   vision.Provider
	geocoder places.Geocoder
	history  triplog.History
}

// Option configures optional collaborators.
type Option func(*Server)

// WithEvents mounts the status feed at /ws/status.
func WithEvents(h *hub.Hub) Option {
	return func(s *Server) { s.events = h }
}

// WithRobotLink mounts the robot WebSocket link and its listing routes.
func WithRobotLink(h *link.Hub) Option {
	return func(s *Server) { s.robots = h }
}

// WithCamera enables /vision/capture and the camera health check.
func WithCamera(p vision.Provider) Option {
	return func(s *Server) { s.camera = p }
}

// WithGeocoder lets start requests name their destination with
// destination_query instead of coordinates.
func WithGeocoder(g places.Geocoder) Option {
	return func(s *Server) { s.geocoder = g }
}

// WithTripHistory mounts GET /api/trips.
func WithTripHistory(h triplog.History) Option {
	return func(s *Server) { s.history = h }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds the fiber app and registers every route.
func New(cfg Config, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		logger:   slog.Default(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")

	app := fiber.New(fiber.Config{
		AppName:               "go-guide",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	if cfg.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency}\n",
			Output: cfg.AccessLog,
		}))
	}
	origins := cfg.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)

	var guard []fiber.Handler
	if cfg.JWTSecret != "" {
		guard = append(guard, RequireJWT([]byte(cfg.JWTSecret), s.logger))
	}

	nav := app.Group("/navigation", guard...)
	nav.Post("/start", s.handleStartNavigation)
	nav.Post("/update-gps", s.handleUpdateGPS)
	nav.Post("/stop", s.handleStopNavigation)
	nav.Post("/test-guidance", s.handleTestGuidance)
	nav.Get("/status", s.handleNavigationStatus)

	robot := app.Group("/robot", guard...)
	robot.Post("/navigate-to", s.handleRobotNavigate)
	robot.Post("/stop", s.handleRobotStop)
	robot.Get("/status", s.handleRobotStatus)

	vis := app.Group("/vision", guard...)
	vis.Post("/describe", s.handleDescribe)
	vis.Get("/capture", s.handleCapture)

	// upgrades carry the token like any other route
	for _, h := range guard {
		app.Use("/ws", h)
	}

	if s.events != nil {
		app.Use("/ws/status", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/status", s.events.Handler())
	}

	rest := app.Group("/api", guard...)
	if s.history != nil {
		rest.Get("/trips", s.handleTrips)
	}
	if s.robots != nil {
		s.robots.RegisterRoutes(app)
		s.robots.RegisterAPIRoutes(rest)
	}

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return fail(c, code, err.Error())
}

func fail(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
