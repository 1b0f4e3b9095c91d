package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	dc, err := cfg.DrowsinessConfig()
	require.NoError(t, err)
	assert.Equal(t, drowsiness.DefaultConfig(), dc)

	cams := cfg.CameraConfigs()
	require.Len(t, cams, 1)
	assert.Equal(t, camera.RoleDriver, cams[0].Role)
	assert.Equal(t, "cabin", cams[0].Name)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	yaml := `
server:
  addr: ":9090"
analyzer:
  preset: sensitive
  closed_eyes_threshold: 1200ms
  landmarks: false
cameras:
  road:
    enabled: true
    device: /dev/video2
alert:
  drowsy_cooldown: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Alert.DrowsyCooldown)
	assert.Equal(t, 3*time.Second, cfg.Alert.HazardCooldown)

	dc, err := cfg.DrowsinessConfig()
	require.NoError(t, err)
	assert.Equal(t, 1200*time.Millisecond, dc.ClosedEyesThreshold)
	assert.Equal(t, drowsiness.SensitiveConfig().SmoothingAlpha, dc.SmoothingAlpha)
	assert.False(t, dc.Sources.Landmarks)
	assert.True(t, dc.Sources.Probability)

	cams := cfg.CameraConfigs()
	require.Len(t, cams, 2)
	assert.Equal(t, camera.RoleRoad, cams[1].Role)
	assert.Equal(t, "/dev/video2", cams[1].Device)
	assert.Equal(t, 1280, cams[1].Width)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VIGIL_SERVER_ADDR", ":7070")
	t.Setenv("VIGIL_ANALYZER_PRESET", "relaxed")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "relaxed", cfg.Analyzer.Preset)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown preset", func(c *Config) { c.Analyzer.Preset = "sleepy" }, "analyzer.preset"},
		{"bad alpha", func(c *Config) { c.Analyzer.SmoothingAlpha = 1.5 }, "smoothing_alpha"},
		{"unsmoothed alpha", func(c *Config) { c.Analyzer.SmoothingAlpha = 1 }, "smoothing_alpha"},
		{"no sources", func(c *Config) {
			c.Analyzer.Probability, c.Analyzer.Contour, c.Analyzer.Landmarks = false, false, false
		}, "sources"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"hazard frames", func(c *Config) { c.Hazard.MinFrames = 0 }, "hazard.min_frames"},
		{"camera size", func(c *Config) { c.Cameras.Driver.Width = 0 }, "cameras.driver"},
		{"negative cooldown", func(c *Config) { c.Alert.DrowsyCooldown = -time.Second }, "cooldowns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestModelPaths(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("models", "face_detection_yunet.onnx"), cfg.EyeDetectorConfig().Face.ModelPath)
	assert.Equal(t, filepath.Join("models", "haarcascade_eye.xml"), cfg.EyeDetectorConfig().CascadePath)
	assert.Equal(t, filepath.Join("models", "yolov8n.onnx"), cfg.ObjectDetectorConfig().ModelPath)

	cfg.Models.FaceMesh = "/opt/mesh.onnx"
	assert.Equal(t, "/opt/mesh.onnx", cfg.FaceMeshConfig().ModelPath)

	cfg.Analyzer.Probability = false
	assert.Empty(t, cfg.EyeDetectorConfig().CascadePath)
}
