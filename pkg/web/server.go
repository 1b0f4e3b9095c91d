// Package web provides the dashboard API and live state feeds
package web

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/hub"
	"github.com/teslashibe/go-vigil/pkg/ingest"
	"github.com/teslashibe/go-vigil/pkg/motion"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
	"github.com/teslashibe/go-vigil/pkg/protocol"
	"github.com/teslashibe/go-vigil/pkg/triplog"
)

// recentAlerts is the in-memory alert buffer size used without a trip log
const recentAlerts = 100

// DriverSource reports the latest result of a local driver pipeline
type DriverSource interface {
	Snapshot() pipeline.DriverSnapshot
	Config() drowsiness.Config
	Reconfigure(cfg drowsiness.Config) error
}

// RoadSource reports the latest result of a local road pipeline
type RoadSource interface {
	Snapshot() pipeline.RoadSnapshot
}

// StatsSource reports capture statistics
type StatsSource interface {
	Name() string
	Stats() pipeline.Stats
}

// Options configures optional server components. Nil fields disable the
// matching endpoints.
type Options struct {
	CORSOrigins string
	StaticDir   string
	Version     string
	AccessLog   bool // Log every request

	Cameras *camera.Manager
	Gate    *motion.Gate
	Trips   *triplog.Store
	Ingest  *ingest.Hub
	Logger  *slog.Logger
}

// Server is the dashboard and API server
type Server struct {
	app    *fiber.App
	opts   Options
	logger *slog.Logger

	// Local pipelines
	mu      sync.RWMutex
	drivers map[string]DriverSource
	roads   map[string]RoadSource
	runners []StatsSource

	// Latest published states by source
	stateMu sync.RWMutex
	states  map[string]drowsiness.DriverState
	hazards map[string]hazard.State

	// Alert buffer when no trip log is configured (last 100 entries)
	alertsMu sync.RWMutex
	alerts   []alert.Alert

	// Hubs for websocket broadcast
	stateHub *hub.Hub
	alertHub *hub.Hub
}

// NewServer creates a new dashboard server
func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		logger:   log.Or(opts.Logger).With("component", "web"),
		drivers:  make(map[string]DriverSource),
		roads:    make(map[string]RoadSource),
		states:   make(map[string]drowsiness.DriverState),
		hazards:  make(map[string]hazard.State),
		alerts:   make([]alert.Alert, 0, recentAlerts),
		stateHub: hub.New("state"),
		alertHub: hub.New("alerts"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Vigil",
		DisableStartupMessage: true,
	})

	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if opts.AccessLog {
		app.Use(logger.New())
	}

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/alerts", s.handleGetAlerts)
	api.Get("/config", s.handleGetConfig)
	api.Patch("/config", s.handlePatchConfig)
	api.Get("/cameras", s.handleListCameras)
	api.Get("/cameras/:name", s.handleGetCamera)
	api.Patch("/cameras/:name", s.handlePatchCamera)
	api.Post("/motion", s.handleMotion)

	if opts.Ingest != nil {
		opts.Ingest.RegisterAPIRoutes(api)
		opts.Ingest.RegisterRoutes(app)
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/alerts", websocket.New(s.handleAlertsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// AddDriver registers a local driver pipeline under its camera name
func (s *Server) AddDriver(name string, d DriverSource) {
	s.mu.Lock()
	s.drivers[name] = d
	s.mu.Unlock()
}

// AddRoad registers a local road pipeline under its camera name
func (s *Server) AddRoad(name string, r RoadSource) {
	s.mu.Lock()
	s.roads[name] = r
	s.mu.Unlock()
}

// AddRunner registers a capture loop for status reporting
func (s *Server) AddRunner(r StatsSource) {
	s.mu.Lock()
	s.runners = append(s.runners, r)
	s.mu.Unlock()
}

// Start runs the hubs and serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.stateHub.Run(ctx)
	go s.alertHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// PublishState records a driver state change and broadcasts it
func (s *Server) PublishState(source string, state drowsiness.DriverState) {
	s.stateMu.Lock()
	s.states[source] = state
	s.stateMu.Unlock()

	msg, err := protocol.NewStateMessage(source, 0, state)
	if err != nil {
		return
	}
	s.broadcast(s.stateHub, msg)
}

// PublishHazard records a hazard state change and broadcasts it
func (s *Server) PublishHazard(source string, state hazard.State) {
	s.stateMu.Lock()
	s.hazards[source] = state
	s.stateMu.Unlock()

	msg, err := protocol.NewHazardMessage(source, 0, state)
	if err != nil {
		return
	}
	s.broadcast(s.stateHub, msg)
}

// PublishAlert buffers an alert and broadcasts it
func (s *Server) PublishAlert(a alert.Alert) {
	s.alertsMu.Lock()
	s.alerts = append(s.alerts, a)
	if len(s.alerts) > recentAlerts {
		s.alerts = s.alerts[1:]
	}
	s.alertsMu.Unlock()

	msg, err := protocol.NewAlertMessage(a)
	if err != nil {
		return
	}
	s.broadcast(s.alertHub, msg)
}

// ForgetSource drops the latest states of a disconnected source
func (s *Server) ForgetSource(source string) {
	s.stateMu.Lock()
	delete(s.states, source)
	delete(s.hazards, source)
	s.stateMu.Unlock()
}

func (s *Server) broadcast(h *hub.Hub, msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Warn("encode broadcast failed", "error", err)
		return
	}
	h.Broadcast(hub.NewJSONMessage(data))
}

// currentStates returns state messages for every known source, sorted by
// source, for newly connected dashboards.
func (s *Server) currentStates() []hub.Message {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	seen := make(map[string]bool, len(s.states)+len(s.hazards))
	for src := range s.states {
		seen[src] = true
	}
	for src := range s.hazards {
		seen[src] = true
	}
	sources := make([]string, 0, len(seen))
	for src := range seen {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var out []hub.Message
	add := func(msg *protocol.Message, err error) {
		if err != nil {
			return
		}
		if data, err := msg.Bytes(); err == nil {
			out = append(out, hub.NewJSONMessage(data))
		}
	}
	for _, src := range sources {
		if st, ok := s.states[src]; ok {
			add(protocol.NewStateMessage(src, 0, st))
		}
		if hz, ok := s.hazards[src]; ok {
			add(protocol.NewHazardMessage(src, 0, hz))
		}
	}
	return out
}

// errNoDriver is returned by config endpoints without a local driver pipeline
var errNoDriver = errors.New("no local driver pipeline")
