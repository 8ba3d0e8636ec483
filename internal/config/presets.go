package config

import (
	"sort"

	"github.com/san-kum/demsim/internal/physics"
)

// Presets are complete run configurations by name.
var Presets = map[string]func() *Config{
	// box is the full container: 90 columns of graded grains settling between
	// two walls.
	"box": DefaultConfig,

	"column": func() *Config {
		cfg := DefaultConfig()
		cfg.Scene.SizeX = 0.5
		cfg.Scene.SizeZ = 1.0
		cfg.Steps = 2000
		return cfg
	},

	"pair": func() *Config {
		cfg := DefaultConfig()
		cfg.Scene.SizeX = 0.1
		cfg.Scene.SizeZ = 0.05
		cfg.Scene.Walls = false
		cfg.Gravity = Vec3{}
		cfg.Steps = 200
		cfg.SampleEvery = 1
		return cfg
	},

	"oscillator": func() *Config {
		cfg := DefaultConfig()
		cfg.Backend = BackendAccel
		cfg.Courant = 0.2
		cfg.Drive = &physics.Drive{Amplitude: 0.5, Omega: 2.0}
		cfg.Scene.SizeX = 1.0
		cfg.Scene.SizeZ = 1.0
		cfg.Scene.Walls = false
		cfg.Steps = 5000
		cfg.SampleEvery = 50
		return cfg
	},
}

func GetPreset(name string) *Config {
	f, ok := Presets[name]
	if !ok {
		return nil
	}
	return f()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
