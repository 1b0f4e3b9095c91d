package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/motion"
	"github.com/teslashibe/go-vigil/pkg/protocol"
	"github.com/teslashibe/go-vigil/pkg/telemetry"
)

// Session is one connected remote monitor. Its analyzers are only touched
// from the connection's read loop.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	hub *Hub

	// Write lock for Conn
	wmu sync.Mutex

	analyzer *drowsiness.Analyzer
	hazards  *hazard.Analyzer
	gate     *motion.Gate
	monitor  *alert.Monitor
	states   *drowsiness.Publisher[drowsiness.DriverState]
	roads    *drowsiness.Publisher[hazard.State]
	frameID  uint64

	mu       sync.RWMutex
	preset   string
	lastSeen time.Time
	state    drowsiness.DriverState
	hazard   hazard.State
	frames   uint64
}

// SessionInfo contains info about a connected session
type SessionInfo struct {
	ID        string                 `json:"id"`
	Connected time.Time              `json:"connected"`
	LastSeen  time.Time              `json:"last_seen"`
	Preset    string                 `json:"preset"`
	Frames    uint64                 `json:"frames"`
	State     drowsiness.DriverState `json:"state"`
	Hazard    hazard.State           `json:"hazard"`
	Driving   bool                   `json:"driving"`
}

func (h *Hub) newSession(id string, conn *websocket.Conn) (*Session, error) {
	analyzer, err := drowsiness.NewAnalyzer(h.cfg.Analyzer)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:        id,
		Conn:      conn,
		Connected: now,
		hub:       h,
		analyzer:  analyzer,
		hazards:   hazard.NewAnalyzer(h.cfg.Hazard),
		gate:      motion.NewGate(h.cfg.Motion),
		preset:    "custom",
		lastSeen:  now,
		state:     drowsiness.Initializing(),
	}
	s.monitor = alert.NewMonitor(id, h.cfg.Alert, s.gate, s.onAlert)
	// Callbacks run inline on the read loop, so replies keep frame order.
	s.states = drowsiness.NewPublisher(s.onState, drowsiness.Inline)
	s.roads = drowsiness.NewPublisher(s.onHazard, drowsiness.Inline)
	return s, nil
}

// Send sends a message to the session
func (s *Session) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// Info returns a snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionInfo{
		ID:        s.ID,
		Connected: s.Connected,
		LastSeen:  s.lastSeen,
		Preset:    s.preset,
		Frames:    s.frames,
		State:     s.state,
		Hazard:    s.hazard,
		Driving:   s.gate.Driving(),
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// observe evaluates one driver frame.
func (s *Session) observe(frameID uint64, obs drowsiness.Observation) {
	s.frameID = frameID
	state := s.analyzer.Evaluate(obs)

	s.mu.Lock()
	s.frames++
	s.state = state
	s.mu.Unlock()

	s.states.Publish(state)
}

// road evaluates one road frame. A detector error clears the hazard.
func (s *Session) road(objs *protocol.ObjectsData) {
	s.frameID = objs.FrameID
	var state hazard.State
	if objs.Error != "" {
		s.hazards.Reset()
		state = hazard.Clear()
	} else {
		state = s.hazards.Evaluate(objs.Objects)
	}

	s.mu.Lock()
	s.hazard = state
	s.mu.Unlock()

	s.roads.Publish(state)
}

// applyPreset swaps the analyzer for one built from a named preset. The
// run restarts from Initializing.
func (s *Session) applyPreset(name string) error {
	cfg, ok := drowsiness.PresetConfig(name)
	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	analyzer, err := drowsiness.NewAnalyzer(cfg)
	if err != nil {
		return err
	}
	s.analyzer = analyzer
	s.states.Forget()

	s.mu.Lock()
	s.preset = name
	s.state = drowsiness.Initializing()
	s.mu.Unlock()
	return nil
}

func (s *Session) onState(state drowsiness.DriverState) {
	telemetry.ObserveTransition("ingest", state.Kind.String())
	if msg, err := protocol.NewStateMessage(s.ID, s.frameID, state); err == nil {
		s.hub.send(s, msg)
	}
	stateCb, _, _ := s.hub.callbacks()
	if stateCb != nil {
		stateCb(s.ID, state)
	}
	s.monitor.ObserveDriver(state)
}

func (s *Session) onHazard(state hazard.State) {
	telemetry.ObserveTransition("ingest", "hazard_"+state.Kind.String())
	if msg, err := protocol.NewHazardMessage(s.ID, s.frameID, state); err == nil {
		s.hub.send(s, msg)
	}
	_, hazardCb, _ := s.hub.callbacks()
	if hazardCb != nil {
		hazardCb(s.ID, state)
	}
	s.monitor.ObserveHazard(state)
}

func (s *Session) onAlert(a alert.Alert) {
	if msg, err := protocol.NewAlertMessage(a); err == nil {
		s.hub.send(s, msg)
	}
	_, _, alertCb := s.hub.callbacks()
	if alertCb != nil {
		alertCb(a)
	}
}
