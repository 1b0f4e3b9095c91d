// Package config loads the go-vigil application configuration from defaults,
// an optional YAML file and VIGIL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/detection/opencv"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/motion"
)

// EnvPrefix is prepended to environment overrides, e.g. VIGIL_SERVER_ADDR.
const EnvPrefix = "VIGIL"

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Models   ModelsConfig   `mapstructure:"models"`
	Cameras  CamerasConfig  `mapstructure:"cameras"`
	Motion   MotionConfig   `mapstructure:"motion"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Hazard   HazardConfig   `mapstructure:"hazard"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	Ingest      bool   `mapstructure:"ingest"` // Accept remote monitors on /ws/ingest
	CORSOrigins string `mapstructure:"cors_origins"`
}

// AnalyzerConfig picks a drowsiness preset. Non-zero overrides replace the
// preset's values.
type AnalyzerConfig struct {
	Preset              string        `mapstructure:"preset"`
	ClosedEyesThreshold time.Duration `mapstructure:"closed_eyes_threshold"`
	SmoothingAlpha      float64       `mapstructure:"smoothing_alpha"`
	Probability         bool          `mapstructure:"probability"`
	Contour             bool          `mapstructure:"contour"`
	Landmarks           bool          `mapstructure:"landmarks"`
}

// ModelsConfig holds model file locations
type ModelsConfig struct {
	Dir        string `mapstructure:"dir"`
	Face       string `mapstructure:"face"`
	EyeCascade string `mapstructure:"eye_cascade"`
	FaceMesh   string `mapstructure:"face_mesh"`
	Objects    string `mapstructure:"objects"`
}

// CameraConfig is one capture device
type CameraConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Name      string `mapstructure:"name"`
	Device    string `mapstructure:"device"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	Framerate int    `mapstructure:"framerate"`
	Quality   int    `mapstructure:"quality"`
	Rotation  int    `mapstructure:"rotation"`
	Mirror    bool   `mapstructure:"mirror"`
}

// CamerasConfig holds the local cameras
type CamerasConfig struct {
	Driver CameraConfig `mapstructure:"driver"`
	Road   CameraConfig `mapstructure:"road"`
}

// MotionConfig holds the driving gate settings
type MotionConfig struct {
	AssumeDriving         bool          `mapstructure:"assume_driving"`
	MinActivityConfidence float64       `mapstructure:"min_activity_confidence"`
	MinSpeedMps           float64       `mapstructure:"min_speed_mps"`
	OpenAfter             time.Duration `mapstructure:"open_after"`
	CloseAfter            time.Duration `mapstructure:"close_after"`
}

// AlertConfig holds alert cooldowns
type AlertConfig struct {
	DrowsyCooldown time.Duration `mapstructure:"drowsy_cooldown"`
	HazardCooldown time.Duration `mapstructure:"hazard_cooldown"`
}

// HazardConfig holds road hazard thresholds
type HazardConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
	MinArea       float64 `mapstructure:"min_area"`
	CorridorMin   float64 `mapstructure:"corridor_min"`
	CorridorMax   float64 `mapstructure:"corridor_max"`
	MinFrames     int     `mapstructure:"min_frames"`
}

// StoreConfig holds the trip log location. An empty path disables it.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level         string `mapstructure:"level"`
	TraceAnalysis bool   `mapstructure:"trace_analysis"`
}

// DefaultConfig returns a new configuration with default values
func DefaultConfig() *Config {
	driver := camera.DefaultConfig()
	road := camera.RoadConfig()
	mc := motion.DefaultConfig()
	ac := alert.DefaultConfig()
	hc := hazard.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			Ingest:      true,
			CORSOrigins: "*",
		},
		Analyzer: AnalyzerConfig{
			Preset:      "default",
			Probability: true,
			Contour:     true,
			Landmarks:   true,
		},
		Models: ModelsConfig{
			Dir:        "models",
			Face:       "face_detection_yunet.onnx",
			EyeCascade: "haarcascade_eye.xml",
			FaceMesh:   "face_landmark.onnx",
			Objects:    "yolov8n.onnx",
		},
		Cameras: CamerasConfig{
			Driver: fromCamera(driver, true),
			Road:   fromCamera(road, false),
		},
		Motion: MotionConfig{
			AssumeDriving:         true,
			MinActivityConfidence: mc.MinActivityConfidence,
			MinSpeedMps:           mc.MinSpeedMps,
			OpenAfter:             mc.OpenAfter,
			CloseAfter:            mc.CloseAfter,
		},
		Alert: AlertConfig{
			DrowsyCooldown: ac.DrowsyCooldown,
			HazardCooldown: ac.HazardCooldown,
		},
		Hazard: HazardConfig{
			MinConfidence: hc.MinConfidence,
			MinArea:       hc.MinArea,
			CorridorMin:   hc.CorridorMin,
			CorridorMax:   hc.CorridorMax,
			MinFrames:     hc.MinFrames,
		},
		Store: StoreConfig{
			Path: "data/trips.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func fromCamera(c camera.Config, enabled bool) CameraConfig {
	return CameraConfig{
		Enabled:   enabled,
		Name:      c.Name,
		Device:    c.Device,
		Width:     c.Width,
		Height:    c.Height,
		Framerate: c.Framerate,
		Quality:   c.Quality,
		Rotation:  c.Rotation,
		Mirror:    c.Mirror,
	}
}

// Load loads configuration from defaults, the file at configPath (if set,
// otherwise ./vigil.yaml when present) and the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("vigil")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vigil")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.ingest", d.Server.Ingest)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("analyzer.preset", d.Analyzer.Preset)
	v.SetDefault("analyzer.closed_eyes_threshold", d.Analyzer.ClosedEyesThreshold)
	v.SetDefault("analyzer.smoothing_alpha", d.Analyzer.SmoothingAlpha)
	v.SetDefault("analyzer.probability", d.Analyzer.Probability)
	v.SetDefault("analyzer.contour", d.Analyzer.Contour)
	v.SetDefault("analyzer.landmarks", d.Analyzer.Landmarks)

	v.SetDefault("models.dir", d.Models.Dir)
	v.SetDefault("models.face", d.Models.Face)
	v.SetDefault("models.eye_cascade", d.Models.EyeCascade)
	v.SetDefault("models.face_mesh", d.Models.FaceMesh)
	v.SetDefault("models.objects", d.Models.Objects)

	for key, c := range map[string]CameraConfig{"driver": d.Cameras.Driver, "road": d.Cameras.Road} {
		prefix := "cameras." + key + "."
		v.SetDefault(prefix+"enabled", c.Enabled)
		v.SetDefault(prefix+"name", c.Name)
		v.SetDefault(prefix+"device", c.Device)
		v.SetDefault(prefix+"width", c.Width)
		v.SetDefault(prefix+"height", c.Height)
		v.SetDefault(prefix+"framerate", c.Framerate)
		v.SetDefault(prefix+"quality", c.Quality)
		v.SetDefault(prefix+"rotation", c.Rotation)
		v.SetDefault(prefix+"mirror", c.Mirror)
	}

	v.SetDefault("motion.assume_driving", d.Motion.AssumeDriving)
	v.SetDefault("motion.min_activity_confidence", d.Motion.MinActivityConfidence)
	v.SetDefault("motion.min_speed_mps", d.Motion.MinSpeedMps)
	v.SetDefault("motion.open_after", d.Motion.OpenAfter)
	v.SetDefault("motion.close_after", d.Motion.CloseAfter)

	v.SetDefault("alert.drowsy_cooldown", d.Alert.DrowsyCooldown)
	v.SetDefault("alert.hazard_cooldown", d.Alert.HazardCooldown)

	v.SetDefault("hazard.min_confidence", d.Hazard.MinConfidence)
	v.SetDefault("hazard.min_area", d.Hazard.MinArea)
	v.SetDefault("hazard.corridor_min", d.Hazard.CorridorMin)
	v.SetDefault("hazard.corridor_max", d.Hazard.CorridorMax)
	v.SetDefault("hazard.min_frames", d.Hazard.MinFrames)

	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.trace_analysis", d.Log.TraceAnalysis)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q must be debug, info, warn or error", c.Log.Level))
	}

	if _, err := c.DrowsinessConfig(); err != nil {
		problems = append(problems, err.Error())
	}
	for _, p := range c.HazardConfig().Validate() {
		problems = append(problems, "hazard."+p)
	}
	if c.Motion.OpenAfter < 0 || c.Motion.CloseAfter < 0 {
		problems = append(problems, "motion durations must not be negative")
	}
	if c.Alert.DrowsyCooldown < 0 || c.Alert.HazardCooldown < 0 {
		problems = append(problems, "alert cooldowns must not be negative")
	}

	for _, cam := range c.CameraConfigs() {
		for _, p := range cam.Validate() {
			problems = append(problems, fmt.Sprintf("cameras.%s: %s", cam.Role, p))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DrowsinessConfig resolves the analyzer preset and overrides.
func (c *Config) DrowsinessConfig() (drowsiness.Config, error) {
	cfg, ok := drowsiness.PresetConfig(c.Analyzer.Preset)
	if !ok {
		return drowsiness.Config{}, fmt.Errorf("analyzer.preset %q is unknown", c.Analyzer.Preset)
	}
	if c.Analyzer.ClosedEyesThreshold != 0 {
		cfg.ClosedEyesThreshold = c.Analyzer.ClosedEyesThreshold
	}
	if c.Analyzer.SmoothingAlpha != 0 {
		cfg.SmoothingAlpha = c.Analyzer.SmoothingAlpha
	}
	cfg.Sources = drowsiness.Sources{
		Probability: c.Analyzer.Probability,
		Contour:     c.Analyzer.Contour,
		Landmarks:   c.Analyzer.Landmarks,
	}
	if err := cfg.Validate(); err != nil {
		return drowsiness.Config{}, err
	}
	return cfg, nil
}

// HazardConfig returns the road hazard settings.
func (c *Config) HazardConfig() hazard.Config {
	return hazard.Config{
		MinConfidence: c.Hazard.MinConfidence,
		MinArea:       c.Hazard.MinArea,
		CorridorMin:   c.Hazard.CorridorMin,
		CorridorMax:   c.Hazard.CorridorMax,
		MinFrames:     c.Hazard.MinFrames,
	}
}

// MotionConfig returns the driving gate settings.
func (c *Config) MotionConfig() motion.Config {
	return motion.Config{
		MinActivityConfidence: c.Motion.MinActivityConfidence,
		MinSpeedMps:           c.Motion.MinSpeedMps,
		OpenAfter:             c.Motion.OpenAfter,
		CloseAfter:            c.Motion.CloseAfter,
		AssumeDriving:         c.Motion.AssumeDriving,
	}
}

// AlertConfig returns the alert cooldowns.
func (c *Config) AlertConfig() alert.Config {
	return alert.Config{
		DrowsyCooldown: c.Alert.DrowsyCooldown,
		HazardCooldown: c.Alert.HazardCooldown,
	}
}

// CameraConfigs returns the enabled cameras.
func (c *Config) CameraConfigs() []camera.Config {
	var cams []camera.Config
	if c.Cameras.Driver.Enabled {
		cams = append(cams, c.Cameras.Driver.camera(camera.RoleDriver))
	}
	if c.Cameras.Road.Enabled {
		cams = append(cams, c.Cameras.Road.camera(camera.RoleRoad))
	}
	return cams
}

func (c CameraConfig) camera(role string) camera.Config {
	return camera.Config{
		Name:      c.Name,
		Role:      role,
		Device:    c.Device,
		Width:     c.Width,
		Height:    c.Height,
		Framerate: c.Framerate,
		Quality:   c.Quality,
		Rotation:  c.Rotation,
		Mirror:    c.Mirror,
	}
}

// EyeDetectorConfig returns the face and eye detector settings.
func (c *Config) EyeDetectorConfig() opencv.EyeConfig {
	cfg := opencv.DefaultEyeConfig()
	cfg.Face.ModelPath = c.modelPath(c.Models.Face)
	if c.Analyzer.Probability {
		cfg.CascadePath = c.modelPath(c.Models.EyeCascade)
	} else {
		cfg.CascadePath = ""
	}
	return cfg
}

// FaceMeshConfig returns the landmark model settings.
func (c *Config) FaceMeshConfig() opencv.FaceMeshConfig {
	cfg := opencv.DefaultFaceMeshConfig()
	cfg.ModelPath = c.modelPath(c.Models.FaceMesh)
	return cfg
}

// ObjectDetectorConfig returns the road model settings.
func (c *Config) ObjectDetectorConfig() opencv.YOLOConfig {
	cfg := opencv.DefaultYOLOConfig()
	cfg.ModelPath = c.modelPath(c.Models.Objects)
	return cfg
}

func (c *Config) modelPath(name string) string {
	if name == "" || filepath.IsAbs(name) || c.Models.Dir == "" {
		return name
	}
	return filepath.Join(c.Models.Dir, name)
}
