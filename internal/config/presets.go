package config

import (
	"maps"
	"slices"
)

// Presets tweak the default configuration. Each call to GetPreset builds a
// fresh value so callers may modify it.
var Presets = map[string]func(*Config){
	"default": func(*Config) {},
	"gentle": func(c *Config) {
		c.Drive.InputMultiplier = 0.5
		c.Elbow.PID.Kp = 0.02
		c.Slide.PID.Kp = 0.1
		c.Heading.Kp = 0.01
		c.Heading.Bound = 0.5
		c.Box.ReleaseHold = 1.5
	},
	"aggressive": func(c *Config) {
		c.Drive.InputMultiplier = 1
		c.Elbow.PID.Kp = 0.08
		c.Elbow.PID.Kd = 0.002
		c.Slide.PID.Kp = 0.35
		c.Heading.Kp = 0.03
		c.Box.ReleaseHold = 0.5
		c.Cycle.SecureDelay = 0.1
	},
	"field-centric": func(c *Config) {
		c.Drive.FieldCentric = true
	},
	"manual": func(c *Config) {
		c.Cycle.Manual = true
	},
}

func GetPreset(name string) *Config {
	tweak, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	tweak(cfg)
	return cfg
}

func ListPresets() []string {
	return slices.Sorted(maps.Keys(Presets))
}
