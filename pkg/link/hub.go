// Package link accepts WebSocket connections from robots that report their
// own GPS fix and compass heading and receive steering commands back.
package link

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/protocol"
)

// ErrNotConnected is returned when sending to a robot that has no live connection.
var ErrNotConnected = errors.New("link: robot not connected")

// DefaultMaxAge bounds how old a reported fix may be before it counts as absent.
const DefaultMaxAge = 10 * time.Second

// DefaultWriteTimeout bounds a write whose context carries no deadline.
const DefaultWriteTimeout = 5 * time.Second

// RobotConnection represents a connected robot
type RobotConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	// writes holds one token; a writer owns the socket while holding it.
	writes chan struct{}
	closed bool

	mu         sync.Mutex
	lastSeen   time.Time
	position   *direction.Point
	positionAt time.Time
	heading    *float64
	headingAt  time.Time
}

func newRobotConnection(id string, conn *websocket.Conn, now time.Time) *RobotConnection {
	r := &RobotConnection{
		ID:        id,
		Conn:      conn,
		Connected: now,
		lastSeen:  now,
		writes:    make(chan struct{}, 1),
	}
	r.writes <- struct{}{}
	return r
}

// Send writes a message to the robot. Writes are serialized per connection and
// bounded by the context deadline, or DefaultWriteTimeout when it has none.
// A failed write closes the connection so the robot can reconnect.
func (r *RobotConnection) Send(ctx context.Context, msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	select {
	case <-r.writes:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { r.writes <- struct{}{} }()
	if r.closed {
		return ErrNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	if err := r.Conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := r.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		_ = r.Conn.Close()
		return err
	}
	return nil
}

// detach waits out any in-flight write and refuses later ones. The handler
// calls it before the websocket is released.
func (r *RobotConnection) detach() {
	<-r.writes
	r.closed = true
	r.writes <- struct{}{}
}

// Hub manages WebSocket connections from robots
type Hub struct {
	mu     sync.RWMutex
	robots map[string]*RobotConnection
	maxAge time.Duration
	logger *slog.Logger
	now    func() time.Time

	onFix func(robotID string, p direction.Point)

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	fixesReceived    atomic.Uint64
}

// NewHub creates a new robot hub. maxAge <= 0 uses DefaultMaxAge.
func NewHub(maxAge time.Duration, logger *slog.Logger) *Hub {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		robots: make(map[string]*RobotConnection),
		maxAge: maxAge,
		logger: logger.With("component", "link"),
		now:    time.Now,
	}
}

// OnFix sets a callback for every accepted position report.
func (h *Hub) OnFix(callback func(robotID string, p direction.Point)) {
	h.mu.Lock()
	h.onFix = callback
	h.mu.Unlock()
}

// RegisterRoutes mounts /ws/robot and /ws/robot/:id.
func (h *Hub) RegisterRoutes(r fiber.Router) {
	r.Use("/ws/robot", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws/robot", websocket.New(h.handleRobot))
	r.Get("/ws/robot/:id", websocket.New(h.handleRobot))
}

func (h *Hub) handleRobot(c *websocket.Conn) {
	robotID := c.Params("id")
	if robotID == "" {
		robotID = uuid.NewString()
	}

	now := h.now()
	robot := newRobotConnection(robotID, c, now)

	h.mu.Lock()
	if old, ok := h.robots[robotID]; ok {
		_ = old.Conn.Close()
	}
	h.robots[robotID] = robot
	count := len(h.robots)
	h.mu.Unlock()

	h.logger.Info("robot connected", "robot", robotID, "total", count)

	defer func() {
		h.mu.Lock()
		if h.robots[robotID] == robot {
			delete(h.robots, robotID)
		}
		count := len(h.robots)
		h.mu.Unlock()
		robot.detach()
		h.logger.Info("robot disconnected", "robot", robotID, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("read ended", "robot", robotID, "error", err)
			return
		}
		h.messagesReceived.Add(1)
		h.handleMessage(robot, data)
	}
}

func (h *Hub) handleMessage(robot *RobotConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Warn("bad message", "robot", robot.ID, "error", err)
		return
	}

	now := h.now()
	robot.mu.Lock()
	robot.lastSeen = now
	robot.mu.Unlock()

	switch msg.Type {
	case protocol.TypeGPS:
		var gps protocol.GPSData
		if err := msg.ParseData(&gps); err != nil {
			h.logger.Warn("bad gps", "robot", robot.ID, "error", err)
			return
		}
		p := direction.Point{Lat: gps.Lat, Lng: gps.Lng}
		if err := p.Validate(); err != nil {
			h.logger.Warn("rejected gps", "robot", robot.ID, "error", err)
			return
		}
		robot.mu.Lock()
		robot.position = &p
		robot.positionAt = now
		robot.mu.Unlock()
		h.fixesReceived.Add(1)

		h.mu.RLock()
		cb := h.onFix
		h.mu.RUnlock()
		if cb != nil {
			cb(robot.ID, p)
		}

	case protocol.TypeHeading:
		var hd protocol.HeadingData
		if err := msg.ParseData(&hd); err != nil {
			h.logger.Warn("bad heading", "robot", robot.ID, "error", err)
			return
		}
		deg := hd.Degrees
		robot.mu.Lock()
		robot.heading = &deg
		robot.headingAt = now
		robot.mu.Unlock()

	case protocol.TypePing:
		pong, err := protocol.NewPongMessage(msg.Timestamp, now.UnixMilli())
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
			if err := h.send(ctx, robot, pong); err != nil {
				h.logger.Debug("pong failed", "robot", robot.ID, "error", err)
			}
			cancel()
		}
	}
}

func (h *Hub) send(ctx context.Context, robot *RobotConnection, msg *protocol.Message) error {
	if err := robot.Send(ctx, msg); err != nil {
		return err
	}
	h.messagesSent.Add(1)
	return nil
}

// SendCommand sends a steering command to a robot within ctx.
func (h *Hub) SendCommand(ctx context.Context, robotID string, cmd direction.Command) error {
	h.mu.RLock()
	robot, ok := h.robots[robotID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	msg, err := protocol.NewCommandMessage(cmd.String())
	if err != nil {
		return err
	}
	return h.send(ctx, robot, msg)
}

// GetRobot returns a robot connection by ID
func (h *Hub) GetRobot(robotID string) *RobotConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.robots[robotID]
}

// RobotCount returns the number of connected robots
func (h *Hub) RobotCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.robots)
}

// Stats contains hub statistics
type Stats struct {
	RobotCount       int    `json:"robot_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FixesReceived    uint64 `json:"fixes_received"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		RobotCount:       h.RobotCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FixesReceived:    h.fixesReceived.Load(),
	}
}

// RobotInfo contains info about a connected robot
type RobotInfo struct {
	ID        string           `json:"id"`
	Connected time.Time        `json:"connected"`
	LastSeen  time.Time        `json:"last_seen"`
	Position  *direction.Point `json:"position,omitempty"`
	Heading   *float64         `json:"heading,omitempty"`
}

// GetRobotInfos returns info about all connected robots
func (h *Hub) GetRobotInfos() []RobotInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]RobotInfo, 0, len(h.robots))
	for _, r := range h.robots {
		r.mu.Lock()
		infos = append(infos, RobotInfo{
			ID:        r.ID,
			Connected: r.Connected,
			LastSeen:  r.lastSeen,
			Position:  r.position,
			Heading:   r.heading,
		})
		r.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers read-only robot listing routes.
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	robots := api.Group("/robots")

	robots.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"robots": h.GetRobotInfos(),
			"count":  h.RobotCount(),
		})
	})

	robots.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
