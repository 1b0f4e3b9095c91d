// Package alert decides when driver and road states warrant an alert.
// Alerts are values; sounding a tone or vibrating is left to consumers.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/motion"
	"github.com/teslashibe/go-vigil/pkg/telemetry"
)

// Kind is the alert category.
type Kind string

const (
	KindDrowsy  Kind = "drowsy"
	KindHazard  Kind = "hazard"
	KindWarning Kind = "warning"
)

// Alert is one emitted alert.
type Alert struct {
	ID       string      `json:"id"`
	Kind     Kind        `json:"kind"`
	Source   string      `json:"source"`
	Detail   string      `json:"detail"`
	ClosedMs int64       `json:"closed_ms,omitempty"`
	Hazard   hazard.Kind `json:"hazard,omitempty"`
	At       time.Time   `json:"at"`
}

// Config holds alert cooldowns
type Config struct {
	DrowsyCooldown time.Duration `json:"drowsy_cooldown"` // Minimum gap between drowsiness alerts
	HazardCooldown time.Duration `json:"hazard_cooldown"` // Minimum gap between alerts of one hazard kind
}

// DefaultConfig returns the recommended configuration
func DefaultConfig() Config {
	return Config{
		DrowsyCooldown: 5 * time.Second,
		HazardCooldown: 3 * time.Second,
	}
}

// Policy applies cooldowns to driver and hazard states. It is not safe for
// concurrent use; Monitor serializes access.
type Policy struct {
	cfg        Config
	lastDrowsy time.Time
	lastHazard map[hazard.Kind]time.Time
	prevDriver drowsiness.DriverState
}

// NewPolicy creates a policy.
func NewPolicy(cfg Config) *Policy {
	return &Policy{
		cfg:        cfg,
		lastHazard: make(map[hazard.Kind]time.Time),
		prevDriver: drowsiness.Initializing(),
	}
}

// Evaluate returns the alerts due at now. Drowsiness and hazard alerts
// require driving; warnings for detector errors do not.
func (p *Policy) Evaluate(now time.Time, driver drowsiness.DriverState, hz hazard.State, driving bool) []Alert {
	var alerts []Alert

	if driver.Kind == drowsiness.KindError && driver != p.prevDriver {
		alerts = append(alerts, Alert{
			Kind:   KindWarning,
			Detail: driver.Reason,
			At:     now,
		})
	}
	p.prevDriver = driver

	if driving && driver.IsDrowsy() && due(now, p.lastDrowsy, p.cfg.DrowsyCooldown) {
		p.lastDrowsy = now
		alerts = append(alerts, Alert{
			Kind:     KindDrowsy,
			Detail:   fmt.Sprintf("eyes closed for %dms", driver.ClosedMs),
			ClosedMs: driver.ClosedMs,
			At:       now,
		})
	}

	if driving && hz.Present() && due(now, p.lastHazard[hz.Kind], p.cfg.HazardCooldown) {
		p.lastHazard[hz.Kind] = now
		alerts = append(alerts, Alert{
			Kind:   KindHazard,
			Detail: fmt.Sprintf("%s ahead (%s %.0f%%)", hz.Kind, hz.Class, hz.Confidence*100),
			Hazard: hz.Kind,
			At:     now,
		})
	}

	return alerts
}

func due(now, last time.Time, cooldown time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= cooldown
}

// Sink receives emitted alerts.
type Sink func(Alert)

// Monitor holds the latest driver and hazard states for one source and
// runs the policy whenever either changes. Driver and road pipelines call
// it from their own goroutines.
type Monitor struct {
	mu     sync.Mutex
	source string
	policy *Policy
	gate   *motion.Gate
	driver drowsiness.DriverState
	hazard hazard.State
	sink   Sink
	now    func() time.Time
}

// NewMonitor creates a monitor. A nil gate means always driving.
func NewMonitor(source string, cfg Config, gate *motion.Gate, sink Sink) *Monitor {
	return &Monitor{
		source: source,
		policy: NewPolicy(cfg),
		gate:   gate,
		driver: drowsiness.Initializing(),
		sink:   sink,
		now:    time.Now,
	}
}

// Source returns the monitored source name.
func (m *Monitor) Source() string { return m.source }

// ObserveDriver records a driver state and returns any alerts emitted.
func (m *Monitor) ObserveDriver(s drowsiness.DriverState) []Alert {
	m.mu.Lock()
	m.driver = s
	alerts := m.evaluate()
	m.mu.Unlock()
	return m.deliver(alerts)
}

// ObserveHazard records a hazard state and returns any alerts emitted.
func (m *Monitor) ObserveHazard(h hazard.State) []Alert {
	m.mu.Lock()
	m.hazard = h
	alerts := m.evaluate()
	m.mu.Unlock()
	return m.deliver(alerts)
}

func (m *Monitor) evaluate() []Alert {
	driving := m.gate == nil || m.gate.Driving()
	alerts := m.policy.Evaluate(m.now(), m.driver, m.hazard, driving)
	for i := range alerts {
		alerts[i].ID = uuid.NewString()
		alerts[i].Source = m.source
	}
	return alerts
}

func (m *Monitor) deliver(alerts []Alert) []Alert {
	for _, a := range alerts {
		telemetry.AlertsTotal.WithLabelValues(string(a.Kind)).Inc()
		if m.sink != nil {
			m.sink(a)
		}
	}
	return alerts
}
