package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/physics"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend != BackendCPU {
		t.Errorf("expected backend cpu, got %s", cfg.Backend)
	}
	if cfg.MaxDt != 0.01 {
		t.Errorf("expected max dt 0.01, got %g", cfg.MaxDt)
	}
	if cfg.Gravity.Vector() != (dem.Vector{Z: -9.8}) {
		t.Errorf("unexpected gravity %+v", cfg.Gravity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestPresetsValid(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if cfg == nil {
				t.Fatal("expected preset, got nil")
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("preset invalid: %v", err)
			}
		})
	}
}

func TestGetPreset_Fresh(t *testing.T) {
	a := GetPreset("column")
	a.Scene.SizeX = 42
	if b := GetPreset("column"); b.Scene.SizeX == 42 {
		t.Error("presets share state between callers")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	want := []string{"box", "column", "oscillator", "pair"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, names[i])
		}
	}
}

func TestValidate_PoissonRange(t *testing.T) {
	for _, nu := range []float64{0, 0.2, 0.49} {
		cfg := DefaultConfig()
		cfg.Scene.Grain.PoissonRatio = nu
		cfg.Scene.Wall.PoissonRatio = nu
		if err := cfg.Validate(); err != nil {
			t.Errorf("poisson ratio %g rejected: %v", nu, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Backend = "gpu" }},
		{"max dt", func(c *Config) { c.MaxDt = 0 }},
		{"courant", func(c *Config) { c.Courant = -0.1 }},
		{"damping", func(c *Config) { c.Damping = -1 }},
		{"workers", func(c *Config) { c.Workers = -1 }},
		{"steps", func(c *Config) { c.Steps = -5 }},
		{"accel without drive", func(c *Config) { c.Backend = BackendAccel }},
		{"drive omega", func(c *Config) { c.Drive = &physics.Drive{Amplitude: 1} }},
		{"diameter", func(c *Config) { c.Scene.Diameter = 0 }},
		{"size", func(c *Config) { c.Scene.SizeZ = -1 }},
		{"grain density", func(c *Config) { c.Scene.Grain.Density = 0 }},
		{"wall density", func(c *Config) { c.Scene.Wall.Density = 0 }},
		{"grain poisson one", func(c *Config) { c.Scene.Grain.PoissonRatio = 1 }},
		{"grain poisson half", func(c *Config) { c.Scene.Grain.PoissonRatio = 0.5 }},
		{"grain poisson negative", func(c *Config) { c.Scene.Grain.PoissonRatio = -0.1 }},
		{"wall poisson", func(c *Config) { c.Scene.Wall.PoissonRatio = 1 }},
		{"grain modulus", func(c *Config) { c.Scene.Grain.YoungsModulus = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, dem.ErrInvalidConfig) {
				t.Errorf("expected invalid config error, got %v", err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("oscillator")
	cfg.Workers = 3

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Backend != BackendAccel || loaded.Workers != 3 {
		t.Errorf("unexpected config %+v", loaded)
	}
	if loaded.Drive == nil || loaded.Drive.Omega != 2.0 {
		t.Errorf("drive not restored: %+v", loaded.Drive)
	}
	if loaded.Scene.Grain.Color != [4]uint8{50, 50, 255, 255} {
		t.Errorf("grain color not restored: %v", loaded.Scene.Grain.Color)
	}
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := []byte("workers: 4\nscene:\n  size_x: 0.3\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Workers != 4 || cfg.Scene.SizeX != 0.3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Scene.Diameter != DefaultDiameter || cfg.MaxDt != DefaultMaxDt {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_dt: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, dem.ErrInvalidConfig) {
		t.Errorf("expected invalid config error, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
