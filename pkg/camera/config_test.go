package camera

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), RoadConfig()} {
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("%s: unexpected errors %v", cfg.Name, errs)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want string
	}{
		{"missing name", func(c *Config) { c.Name = "" }, "name"},
		{"bad role", func(c *Config) { c.Role = "rear" }, "role"},
		{"tiny width", func(c *Config) { c.Width = 10 }, "width"},
		{"huge framerate", func(c *Config) { c.Framerate = 240 }, "framerate"},
		{"bad quality", func(c *Config) { c.Quality = 0 }, "quality"},
		{"odd rotation", func(c *Config) { c.Rotation = 45 }, "rotation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			errs := cfg.Validate()
			if len(errs) != 1 || !strings.HasPrefix(errs[0], tt.want) {
				t.Errorf("Expected one %q error, got %v", tt.want, errs)
			}
		})
	}
}

func TestConfig_Size(t *testing.T) {
	cfg := DefaultConfig()
	if w, h := cfg.Size(); w != 640 || h != 480 {
		t.Errorf("Expected 640x480, got %dx%d", w, h)
	}
	cfg.Rotation = 270
	if w, h := cfg.Size(); w != 480 || h != 640 {
		t.Errorf("Expected 480x640 when rotated, got %dx%d", w, h)
	}
}

func TestApplyPreset(t *testing.T) {
	base := RoadConfig()
	for _, name := range PresetNames() {
		cfg, ok := ApplyPreset(base, name)
		if !ok {
			t.Errorf("Preset %q not found", name)
			continue
		}
		if cfg.Name != base.Name || cfg.Device != base.Device || cfg.Role != base.Role {
			t.Errorf("Preset %q changed camera identity", name)
		}
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("Preset %q invalid: %v", name, errs)
		}
	}
	if _, ok := ApplyPreset(base, "fisheye"); ok {
		t.Error("Expected unknown preset to fail")
	}
}

func TestManager(t *testing.T) {
	m, err := NewManager(DefaultConfig(), RoadConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if names := m.Names(); len(names) != 2 || names[0] != "cabin" || names[1] != "road" {
		t.Fatalf("Unexpected names %v", names)
	}

	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	if err := m.UpdateConfig("cabin", map[string]any{"rotation": float64(90), "mirror": true}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	cfg, _ := m.GetConfig("cabin")
	if cfg.Rotation != 90 || !cfg.Mirror {
		t.Errorf("Update not applied: %+v", cfg)
	}
	if len(applied) != 1 || applied[0].Rotation != 90 {
		t.Errorf("Expected change callback, got %+v", applied)
	}

	if err := m.UpdateConfig("cabin", map[string]any{"preset": PresetLowPower, "quality": float64(60)}); err != nil {
		t.Fatalf("UpdateConfig preset: %v", err)
	}
	cfg, _ = m.GetConfig("cabin")
	if cfg.Width != 320 || cfg.Quality != 60 {
		t.Errorf("Expected preset with override, got %+v", cfg)
	}

	if err := m.UpdateConfig("cabin", map[string]any{"width": float64(5)}); err == nil {
		t.Error("Expected validation error")
	}
	if err := m.UpdateConfig("dash", nil); err == nil {
		t.Error("Expected unknown camera error")
	}

	bad := RoadConfig()
	bad.Role = RoleDriver
	if err := m.SetConfig(bad); err == nil {
		t.Error("Expected role change to be rejected")
	}

	m.OnConfigChange = func(Config) error { return ErrDeviceUnavailable }
	if err := m.UpdateConfig("road", map[string]any{"framerate": float64(5)}); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected callback error to propagate, got %v", err)
	}
}

func TestNewManager_Rejects(t *testing.T) {
	if _, err := NewManager(DefaultConfig(), DefaultConfig()); err == nil {
		t.Error("Expected duplicate name error")
	}
	bad := DefaultConfig()
	bad.Device = ""
	if _, err := NewManager(bad); err == nil {
		t.Error("Expected validation error")
	}
}
