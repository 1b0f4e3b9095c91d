package camera

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Manager holds the current configuration of every camera and handles
// runtime updates.
type Manager struct {
	configs map[string]Config
	mu      sync.RWMutex

	// Callback when a camera's config changes (for reopening its source)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager for the given cameras.
func NewManager(cfgs ...Config) (*Manager, error) {
	m := &Manager{configs: make(map[string]Config, len(cfgs))}
	for _, cfg := range cfgs {
		if errs := cfg.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("camera %q: validation failed: %v", cfg.Name, errs)
		}
		if _, dup := m.configs[cfg.Name]; dup {
			return nil, fmt.Errorf("camera %q: duplicate name", cfg.Name)
		}
		m.configs[cfg.Name] = cfg
	}
	return m, nil
}

// Names returns the camera names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetConfig returns the configuration of the named camera.
func (m *Manager) GetConfig(name string) (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[name]
	return cfg, ok
}

// SetConfig replaces a camera's configuration.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	old, ok := m.configs[cfg.Name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown camera: %s", cfg.Name)
	}
	if old.Role != cfg.Role {
		m.mu.Unlock()
		return fmt.Errorf("camera %s: role cannot change", cfg.Name)
	}
	m.configs[cfg.Name] = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}
	return nil
}

// UpdateConfig updates specific fields of one camera's configuration.
// Accepts a map of field names to values, plus an optional "preset".
func (m *Manager) UpdateConfig(name string, params map[string]any) error {
	cfg, ok := m.GetConfig(name)
	if !ok {
		return fmt.Errorf("unknown camera: %s", name)
	}

	if presetName, ok := params["preset"].(string); ok {
		if cfg, ok = ApplyPreset(cfg, presetName); !ok {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
	}

	for key, value := range params {
		switch key {
		case "device":
			if v, ok := value.(string); ok {
				cfg.Device = v
			}
		case "width":
			if v, ok := toInt(value); ok {
				cfg.Width = v
			}
		case "height":
			if v, ok := toInt(value); ok {
				cfg.Height = v
			}
		case "framerate":
			if v, ok := toInt(value); ok {
				cfg.Framerate = v
			}
		case "quality":
			if v, ok := toInt(value); ok {
				cfg.Quality = v
			}
		case "rotation":
			if v, ok := toInt(value); ok {
				cfg.Rotation = v
			}
		case "mirror":
			if v, ok := value.(bool); ok {
				cfg.Mirror = v
			}
		}
	}

	return m.SetConfig(cfg)
}

// Configs returns every camera configuration sorted by name.
func (m *Manager) Configs() []Config {
	names := m.Names()
	out := make([]Config, 0, len(names))
	for _, name := range names {
		if cfg, ok := m.GetConfig(name); ok {
			out = append(out, cfg)
		}
	}
	return out
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
