package web

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/hub"
	"github.com/teslashibe/go-vigil/pkg/ingest"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
	"github.com/teslashibe/go-vigil/pkg/protocol"
)

// Status is the /api/status response
type Status struct {
	Time    time.Time                         `json:"time"`
	Driving bool                              `json:"driving"`
	States  map[string]drowsiness.DriverState `json:"states"`
	Hazards map[string]hazard.State           `json:"hazards"`
	Drivers []pipeline.DriverSnapshot         `json:"drivers"`
	Roads   []pipeline.RoadSnapshot           `json:"roads"`
	Runners map[string]pipeline.Stats         `json:"runners"`
	Ingest  *ingest.Stats                     `json:"ingest,omitempty"`
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": s.opts.Version,
	})
}

// handleStatus returns the current state of every source
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := Status{
		Time:    time.Now(),
		Driving: s.opts.Gate == nil || s.opts.Gate.Driving(),
		States:  make(map[string]drowsiness.DriverState),
		Hazards: make(map[string]hazard.State),
		Drivers: []pipeline.DriverSnapshot{},
		Roads:   []pipeline.RoadSnapshot{},
		Runners: make(map[string]pipeline.Stats),
	}

	s.stateMu.RLock()
	for k, v := range s.states {
		st.States[k] = v
	}
	for k, v := range s.hazards {
		st.Hazards[k] = v
	}
	s.stateMu.RUnlock()

	s.mu.RLock()
	for _, d := range s.drivers {
		st.Drivers = append(st.Drivers, d.Snapshot())
	}
	for _, r := range s.roads {
		st.Roads = append(st.Roads, r.Snapshot())
	}
	for _, r := range s.runners {
		st.Runners[r.Name()] = r.Stats()
	}
	s.mu.RUnlock()

	sort.Slice(st.Drivers, func(i, j int) bool { return st.Drivers[i].Camera < st.Drivers[j].Camera })
	sort.Slice(st.Roads, func(i, j int) bool { return st.Roads[i].Camera < st.Roads[j].Camera })

	if s.opts.Ingest != nil {
		stats := s.opts.Ingest.GetStats()
		st.Ingest = &stats
	}
	return c.JSON(st)
}

// handleGetAlerts returns recent alerts, newest first
func (s *Server) handleGetAlerts(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 500",
		})
	}

	if s.opts.Trips != nil {
		records, err := s.opts.Trips.RecentAlerts(c.UserContext(), limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(records)
	}

	s.alertsMu.RLock()
	defer s.alertsMu.RUnlock()
	out := make([]alert.Alert, 0, min(limit, len(s.alerts)))
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.alerts[i])
	}
	return c.JSON(out)
}

// driver returns the named driver pipeline, or the only one when name is empty
func (s *Server) driver(name string) (string, DriverSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name != "" {
		d, ok := s.drivers[name]
		return name, d, ok
	}
	if len(s.drivers) == 1 {
		for n, d := range s.drivers {
			return n, d, true
		}
	}
	return "", nil, false
}

// handleGetConfig returns the analyzer configuration of a driver pipeline
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	name, d, ok := s.driver(c.Query("camera"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": errNoDriver.Error()})
	}
	return c.JSON(fiber.Map{
		"camera": name,
		"config": d.Config(),
	})
}

// ConfigPatch is the request body for PATCH /api/config. Zero fields keep
// the current value; Preset is applied first.
type ConfigPatch struct {
	Preset              string  `json:"preset,omitempty"`
	ClosedEyesThreshold string  `json:"closed_eyes_threshold,omitempty"` // Go duration, e.g. "1500ms"
	SmoothingAlpha      float64 `json:"smoothing_alpha,omitempty"`

	Sources *drowsiness.Sources `json:"sources,omitempty"`
}

// Apply returns cfg with the patch applied.
func (p ConfigPatch) Apply(cfg drowsiness.Config) (drowsiness.Config, error) {
	if p.Preset != "" {
		preset, ok := drowsiness.PresetConfig(p.Preset)
		if !ok {
			return cfg, fiber.NewError(fiber.StatusBadRequest, "unknown preset: "+p.Preset)
		}
		// Presets keep the enabled sources.
		preset.Sources = cfg.Sources
		cfg = preset
	}
	if p.ClosedEyesThreshold != "" {
		d, err := time.ParseDuration(p.ClosedEyesThreshold)
		if err != nil {
			return cfg, fiber.NewError(fiber.StatusBadRequest, "closed_eyes_threshold: "+err.Error())
		}
		cfg.ClosedEyesThreshold = d
	}
	if p.SmoothingAlpha != 0 {
		cfg.SmoothingAlpha = p.SmoothingAlpha
	}
	if p.Sources != nil {
		cfg.Sources = *p.Sources
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return cfg, nil
}

// handlePatchConfig updates the analyzer configuration of a driver pipeline
func (s *Server) handlePatchConfig(c *fiber.Ctx) error {
	name, d, ok := s.driver(c.Query("camera"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": errNoDriver.Error()})
	}

	var patch ConfigPatch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON: " + err.Error()})
	}

	cfg, err := patch.Apply(d.Config())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := d.Reconfigure(cfg); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Info("analyzer config updated", "camera", name, "threshold", cfg.ClosedEyesThreshold)
	return c.JSON(fiber.Map{
		"camera": name,
		"config": cfg,
	})
}

// handleListCameras returns every camera configuration
func (s *Server) handleListCameras(c *fiber.Ctx) error {
	if s.opts.Cameras == nil {
		return c.JSON(fiber.Map{"cameras": []any{}})
	}
	return c.JSON(fiber.Map{"cameras": s.opts.Cameras.Configs()})
}

// handleGetCamera returns one camera configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.opts.Cameras == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no cameras configured"})
	}
	cfg, ok := s.opts.Cameras.GetConfig(c.Params("name"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown camera"})
	}
	return c.JSON(cfg)
}

// handlePatchCamera updates camera configuration fields
func (s *Server) handlePatchCamera(c *fiber.Ctx) error {
	if s.opts.Cameras == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no cameras configured"})
	}

	name := c.Params("name")
	if _, ok := s.opts.Cameras.GetConfig(name); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown camera"})
	}

	var params map[string]any
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON: " + err.Error()})
	}

	if err := s.opts.Cameras.UpdateConfig(name, params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cfg, _ := s.opts.Cameras.GetConfig(name)
	return c.JSON(cfg)
}

// handleMotion feeds a motion sample to the driving gate
func (s *Server) handleMotion(c *fiber.Ctx) error {
	if s.opts.Gate == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "motion gate disabled"})
	}

	var data protocol.MotionData
	if err := json.Unmarshal(c.Body(), &data); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON: " + err.Error()})
	}

	driving, changed := s.opts.Gate.Update(data.Sample())
	if changed {
		s.logger.Info("motion gate changed", "driving", driving)
	}
	return c.JSON(fiber.Map{
		"driving": driving,
		"changed": changed,
	})
}

// handleStateWS streams driver and hazard state changes
func (s *Server) handleStateWS(c *websocket.Conn) {
	client := hub.NewClient(s.stateHub, c, s.currentStates()...)
	if client == nil {
		return
	}
	client.Run()
}

// handleAlertsWS streams emitted alerts
func (s *Server) handleAlertsWS(c *websocket.Conn) {
	client := hub.NewClient(s.alertHub, c)
	if client == nil {
		return
	}
	client.Run()
}
