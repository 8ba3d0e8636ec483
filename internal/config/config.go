package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/physics"
)

const (
	BackendCPU   = "cpu"
	BackendAccel = "accel"
)

const (
	DefaultMaxDt    = 0.01
	DefaultCourant  = 0.02
	DefaultDiameter = 50e-3
	DefaultSizeX    = 4500e-3
	DefaultSizeZ    = 2200e-3
	DefaultDensity  = 2.7e3
	DefaultYoungs   = 30e6
	DefaultPoisson  = 0.2
	DefaultGravityZ = -9.8
)

type Config struct {
	Backend     string         `yaml:"backend"`
	Device      string         `yaml:"device"`
	Workers     int            `yaml:"workers"`
	MaxDt       float64        `yaml:"max_dt"`
	Courant     float64        `yaml:"courant"`
	Damping     float64        `yaml:"damping"`
	Gravity     Vec3           `yaml:"gravity"`
	Drive       *physics.Drive `yaml:"drive,omitempty"`
	Steps       int64          `yaml:"steps"`
	EndTime     float64        `yaml:"end_time"`
	SampleEvery int64          `yaml:"sample_every"`
	Scene       SceneConfig    `yaml:"scene"`
}

type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v Vec3) Vector() dem.Vector { return dem.Vector{X: v.X, Y: v.Y, Z: v.Z} }

// SceneConfig describes the particle block and its container.
type SceneConfig struct {
	Diameter float64        `yaml:"diameter"`
	SizeX    float64        `yaml:"size_x"`
	SizeZ    float64        `yaml:"size_z"`
	Walls    bool           `yaml:"walls"`
	Grain    MaterialConfig `yaml:"grain"`
	Wall     MaterialConfig `yaml:"wall"`
}

type MaterialConfig struct {
	Density       float64  `yaml:"density"`
	YoungsModulus float64  `yaml:"youngs_modulus"`
	PoissonRatio  float64  `yaml:"poisson_ratio"`
	Color         [4]uint8 `yaml:"color,flow"`
}

func (m MaterialConfig) Material(id byte) *dem.Material {
	c := dem.Color{R: m.Color[0], G: m.Color[1], B: m.Color[2], A: m.Color[3]}
	return dem.NewMaterial(id, m.Density, m.YoungsModulus, m.PoissonRatio, c)
}

func DefaultConfig() *Config {
	return &Config{
		Backend:     BackendCPU,
		Device:      "auto",
		Workers:     1,
		MaxDt:       DefaultMaxDt,
		Courant:     DefaultCourant,
		Damping:     physics.DefaultDamping,
		Gravity:     Vec3{Z: DefaultGravityZ},
		Steps:       1000,
		SampleEvery: 10,
		Scene: SceneConfig{
			Diameter: DefaultDiameter,
			SizeX:    DefaultSizeX,
			SizeZ:    DefaultSizeZ,
			Walls:    true,
			Grain: MaterialConfig{
				Density:       DefaultDensity,
				YoungsModulus: DefaultYoungs,
				PoissonRatio:  DefaultPoisson,
				Color:         [4]uint8{50, 50, 255, 255},
			},
			Wall: MaterialConfig{
				Density:       DefaultDensity,
				YoungsModulus: DefaultYoungs,
				PoissonRatio:  DefaultPoisson,
				Color:         [4]uint8{200, 200, 200, 255},
			},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be positive, got %g", dem.ErrInvalidConfig, name, v)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendCPU, BackendAccel:
	default:
		return fmt.Errorf("%w: unknown backend %q", dem.ErrInvalidConfig, c.Backend)
	}
	if err := positive("max_dt", c.MaxDt); err != nil {
		return err
	}
	if err := positive("courant", c.Courant); err != nil {
		return err
	}
	if c.Damping < 0 {
		return fmt.Errorf("%w: damping must not be negative, got %g", dem.ErrInvalidConfig, c.Damping)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", dem.ErrInvalidConfig, c.Workers)
	}
	if c.Steps < 0 || c.EndTime < 0 || c.SampleEvery < 0 {
		return fmt.Errorf("%w: steps, end_time and sample_every must not be negative", dem.ErrInvalidConfig)
	}
	if c.Backend == BackendAccel && c.Drive == nil {
		return fmt.Errorf("%w: the accel backend needs a drive", dem.ErrInvalidConfig)
	}
	if c.Drive != nil && c.Drive.Omega == 0 {
		return fmt.Errorf("%w: drive omega must be non-zero", dem.ErrInvalidConfig)
	}
	return c.Scene.Validate()
}

func (s *SceneConfig) Validate() error {
	if err := positive("scene.diameter", s.Diameter); err != nil {
		return err
	}
	if s.SizeX < 0 || s.SizeZ < 0 {
		return fmt.Errorf("%w: scene size must not be negative", dem.ErrInvalidConfig)
	}
	if err := s.Grain.validate("scene.grain"); err != nil {
		return err
	}
	if s.Walls {
		if err := s.Wall.validate("scene.wall"); err != nil {
			return err
		}
	}
	return nil
}

func (m MaterialConfig) validate(name string) error {
	if err := positive(name+".density", m.Density); err != nil {
		return err
	}
	if !(m.YoungsModulus >= 0) || math.IsInf(m.YoungsModulus, 0) {
		return fmt.Errorf("%w: %s.youngs_modulus must not be negative, got %g", dem.ErrInvalidConfig, name, m.YoungsModulus)
	}
	// ν = 1 makes the contact stiffness singular; 0.5 is the incompressible limit.
	if !(m.PoissonRatio >= 0 && m.PoissonRatio < 0.5) {
		return fmt.Errorf("%w: %s.poisson_ratio must be in [0, 0.5), got %g", dem.ErrInvalidConfig, name, m.PoissonRatio)
	}
	return nil
}
