package camera

// Preset names for common configurations
const (
	PresetDefault  = "default"
	Preset720p     = "720p"
	PresetLowPower = "low_power"
	PresetPortrait = "portrait"
)

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, Preset720p, PresetLowPower, PresetPortrait}
}

// ApplyPreset returns cfg with the named preset's format and orientation
// applied. Identity and device are kept. ok is false for unknown names.
func ApplyPreset(cfg Config, name string) (Config, bool) {
	switch name {
	case PresetDefault:
		d := DefaultConfig()
		cfg.Width, cfg.Height, cfg.Framerate, cfg.Quality = d.Width, d.Height, d.Framerate, d.Quality
		cfg.Rotation, cfg.Mirror = 0, false
	case Preset720p:
		cfg.Width, cfg.Height = 1280, 720
	case PresetLowPower:
		// Fewer, smaller frames for battery powered installs
		cfg.Width, cfg.Height = 320, 240
		cfg.Framerate = 8
		cfg.Quality = 75
	case PresetPortrait:
		// Phone mounted upright on the dash
		cfg.Rotation = 90
	default:
		return cfg, false
	}
	return cfg, true
}
