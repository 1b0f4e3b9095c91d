// Package ingest provides the WebSocket endpoint for remote driver monitors.
// Each connection owns its own analyzers and is evaluated sequentially in
// its read loop.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/motion"
	"github.com/teslashibe/go-vigil/pkg/protocol"
	"github.com/teslashibe/go-vigil/pkg/telemetry"
)

// ErrNotConnected is returned when sending to an unknown session.
var ErrNotConnected = errors.New("ingest: session not connected")

// Config holds the per-connection analyzer settings.
type Config struct {
	Analyzer drowsiness.Config
	Hazard   hazard.Config
	Motion   motion.Config
	Alert    alert.Config
}

// DefaultConfig returns defaults for every per-connection component.
func DefaultConfig() Config {
	return Config{
		Analyzer: drowsiness.DefaultConfig(),
		Hazard:   hazard.DefaultConfig(),
		Motion:   motion.DefaultConfig(),
		Alert:    alert.DefaultConfig(),
	}
}

// Hub manages WebSocket connections from remote monitors
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	logger   *slog.Logger

	// Server-side detection for raw frames. Guarded by detectMu since
	// gocv networks are not safe for concurrent use.
	detectMu sync.Mutex
	faces    detection.FaceDetector

	// Callbacks
	onState  func(sessionID string, state drowsiness.DriverState)
	onHazard func(sessionID string, state hazard.State)
	onAlert  func(a alert.Alert)
	onOpen   func(sessionID string)
	onClose  func(sessionID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	rejected         atomic.Uint64
}

// NewHub creates a new ingest hub. Invalid analyzer settings are an error.
func NewHub(cfg Config, logger *slog.Logger) (*Hub, error) {
	if err := cfg.Analyzer.Validate(); err != nil {
		return nil, err
	}
	if problems := cfg.Hazard.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("ingest: invalid hazard config: %v", problems)
	}
	return &Hub{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		logger:   log.Or(logger).With("component", "ingest"),
	}, nil
}

// SetFaceDetector enables server-side detection for frame messages.
func (h *Hub) SetFaceDetector(d detection.FaceDetector) {
	h.detectMu.Lock()
	h.faces = d
	h.detectMu.Unlock()
}

// OnState sets the callback for driver state changes
func (h *Hub) OnState(callback func(sessionID string, state drowsiness.DriverState)) {
	h.mu.Lock()
	h.onState = callback
	h.mu.Unlock()
}

// OnHazard sets the callback for hazard state changes
func (h *Hub) OnHazard(callback func(sessionID string, state hazard.State)) {
	h.mu.Lock()
	h.onHazard = callback
	h.mu.Unlock()
}

// OnAlert sets the callback for emitted alerts
func (h *Hub) OnAlert(callback func(a alert.Alert)) {
	h.mu.Lock()
	h.onAlert = callback
	h.mu.Unlock()
}

// OnSession sets the callbacks for connect and disconnect
func (h *Hub) OnSession(open, closed func(sessionID string)) {
	h.mu.Lock()
	h.onOpen = open
	h.onClose = closed
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/ingest", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/ingest", websocket.New(h.handleSession))
	app.Get("/ws/ingest/:id", websocket.New(h.handleSession))
}

func (h *Hub) handleSession(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	s, err := h.newSession(id, c)
	if err != nil {
		h.logger.Error("session setup failed", "session", id, "error", err)
		return
	}

	h.mu.Lock()
	if old, ok := h.sessions[id]; ok {
		// A reconnect under the same id replaces the stale connection.
		old.Conn.Close()
	}
	h.sessions[id] = s
	count := len(h.sessions)
	openCb := h.onOpen
	h.mu.Unlock()

	telemetry.IngestConnections.Inc()
	h.logger.Info("session connected", "session", id, "total", count)
	if openCb != nil {
		openCb(id)
	}

	defer func() {
		h.mu.Lock()
		if h.sessions[id] == s {
			delete(h.sessions, id)
		}
		count := len(h.sessions)
		closeCb := h.onClose
		h.mu.Unlock()

		telemetry.IngestConnections.Dec()
		h.logger.Info("session disconnected", "session", id, "total", count)
		if closeCb != nil {
			closeCb(id)
		}
	}()

	// Read loop. Messages are handled one at a time, so a session never
	// has more than one evaluation in flight.
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("session read ended", "session", id, "error", err)
			return
		}

		s.touch()
		h.messagesReceived.Add(1)
		h.handleMessage(s, data)
	}
}

// handleMessage processes an incoming message from a session
func (h *Hub) handleMessage(s *Session, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.reject(s, err)
		return
	}

	switch msg.Type {
	case protocol.TypeObservation:
		obs, err := msg.GetObservationData()
		if err != nil {
			h.reject(s, fmt.Errorf("bad observation: %w", err))
			return
		}
		s.observe(obs.FrameID, obs.Observation())

	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		frame, err := msg.GetFrameData()
		if err != nil {
			h.reject(s, fmt.Errorf("bad frame: %w", err))
			return
		}
		obs, err := h.detect(frame)
		if err != nil {
			h.reject(s, err)
			return
		}
		s.observe(frame.FrameID, obs)

	case protocol.TypeObjects:
		objs, err := msg.GetObjectsData()
		if err != nil {
			h.reject(s, fmt.Errorf("bad objects: %w", err))
			return
		}
		s.road(objs)

	case protocol.TypeMotion:
		m, err := msg.GetMotionData()
		if err != nil {
			h.reject(s, fmt.Errorf("bad motion: %w", err))
			return
		}
		if driving, changed := s.gate.Update(m.Sample()); changed {
			h.logger.Info("motion gate changed", "session", s.ID, "driving", driving)
		}

	case protocol.TypeConfig:
		cd, err := msg.GetConfigData()
		if err != nil {
			h.reject(s, fmt.Errorf("bad config: %w", err))
			return
		}
		if err := s.applyPreset(cd.Preset); err != nil {
			h.reject(s, err)
		}

	case protocol.TypePing:
		var pingID string
		if ping, err := msg.GetPingData(); err == nil {
			pingID = ping.ID
		}
		pong, err := protocol.NewPongMessage(pingID, msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			h.send(s, pong)
		}

	default:
		h.reject(s, fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

// detect runs server-side face detection on a raw frame.
func (h *Hub) detect(f *protocol.FrameData) (drowsiness.Observation, error) {
	h.detectMu.Lock()
	defer h.detectMu.Unlock()

	if h.faces == nil {
		return drowsiness.Observation{}, errors.New("server-side detection not configured")
	}
	jpeg, err := f.DecodeFrameData()
	if err != nil {
		return drowsiness.Observation{}, fmt.Errorf("bad frame data: %w", err)
	}

	obs := drowsiness.Observation{
		At:       time.Duration(f.TimeMs) * time.Millisecond,
		Width:    f.Width,
		Height:   f.Height,
		Rotation: f.Rotation,
	}
	faces, err := h.faces.DetectFaces(jpeg)
	if err != nil {
		telemetry.DetectorErrors.WithLabelValues("ingest", "face").Inc()
		obs.Err = err
	} else {
		obs.Faces = faces
	}
	return obs, nil
}

func (h *Hub) reject(s *Session, err error) {
	h.rejected.Add(1)
	h.logger.Debug("message rejected", "session", s.ID, "error", err)
	if msg, merr := protocol.NewErrorMessage(err.Error()); merr == nil {
		h.send(s, msg)
	}
}

func (h *Hub) send(s *Session, msg *protocol.Message) {
	if err := s.Send(msg); err != nil {
		h.logger.Debug("send failed", "session", s.ID, "error", err)
		return
	}
	h.messagesSent.Add(1)
}

// SendTo sends a message to a specific session
func (h *Hub) SendTo(sessionID string, msg *protocol.Message) error {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()

	if !ok {
		return ErrNotConnected
	}

	h.messagesSent.Add(1)
	return s.Send(msg)
}

// Broadcast sends a message to all connected sessions
func (h *Hub) Broadcast(msg *protocol.Message) {
	for _, s := range h.Sessions() {
		h.send(s, msg)
	}
}

// Session returns a session by ID
func (h *Hub) Session(sessionID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[sessionID]
}

// Sessions returns all connected sessions
func (h *Hub) Sessions() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// SessionCount returns the number of connected sessions
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Stats contains hub statistics
type Stats struct {
	Sessions         int    `json:"sessions"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	Rejected         uint64 `json:"rejected"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		Sessions:         h.SessionCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		Rejected:         h.rejected.Load(),
	}
}

// GetSessionInfos returns info about all connected sessions
func (h *Hub) GetSessionInfos() []SessionInfo {
	sessions := h.Sessions()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// RegisterAPIRoutes registers API routes for session inspection
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	sessions := api.Group("/sessions")

	sessions.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sessions": h.GetSessionInfos(),
			"count":    h.SessionCount(),
		})
	})

	sessions.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	sessions.Get("/:id", func(c *fiber.Ctx) error {
		s := h.Session(c.Params("id"))
		if s == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrNotConnected.Error()})
		}
		return c.JSON(s.Info())
	})
}

// callbacks returns the current callback set.
func (h *Hub) callbacks() (func(string, drowsiness.DriverState), func(string, hazard.State), func(alert.Alert)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onState, h.onHazard, h.onAlert
}
