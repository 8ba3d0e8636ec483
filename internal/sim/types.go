package sim

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/physics"
)

const (
	DefaultMaxDt = 0.01

	// DefaultCourant bounds travel per step to 2% of a diameter for the
	// contact model.
	DefaultCourant = 0.02

	// DefaultDriveCourant is the coarser margin used by the driven oscillator.
	DefaultDriveCourant = 0.2
)

// DefaultGravity points down the z axis.
var DefaultGravity = dem.Vector{Z: -9.8}

// CPUConfig configures the all-pairs CPU evaluator.
type CPUConfig struct {
	MaxDt   float64
	Gravity dem.Vector
	// Drive replaces Gravity with an oscillatory field when set.
	Drive   *physics.Drive
	Courant float64
	Damping float64
	// Workers > 1 splits the contact pass across goroutines.
	Workers int
}

func DefaultCPUConfig() CPUConfig {
	return CPUConfig{
		MaxDt:   DefaultMaxDt,
		Gravity: DefaultGravity,
		Courant: DefaultCourant,
		Damping: physics.DefaultDamping,
		Workers: 1,
	}
}

func (c CPUConfig) Validate() error {
	if !(c.MaxDt > 0) {
		return fmt.Errorf("%w: max dt must be positive, got %g", dem.ErrInvalidConfig, c.MaxDt)
	}
	if !(c.Courant > 0) {
		return fmt.Errorf("%w: courant fraction must be positive, got %g", dem.ErrInvalidConfig, c.Courant)
	}
	if c.Damping < 0 {
		return fmt.Errorf("%w: damping must not be negative, got %g", dem.ErrInvalidConfig, c.Damping)
	}
	if c.Drive != nil && c.Drive.Omega == 0 {
		return fmt.Errorf("%w: drive angular frequency must be non-zero", dem.ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", dem.ErrInvalidConfig, c.Workers)
	}
	return nil
}

// AccelConfig configures the accelerator evaluator.
type AccelConfig struct {
	MaxDt   float64
	Drive   physics.Drive
	Courant float64
}

func DefaultAccelConfig() AccelConfig {
	return AccelConfig{
		MaxDt:   DefaultMaxDt,
		Drive:   physics.Drive{Amplitude: 0.5, Omega: 2.0},
		Courant: DefaultDriveCourant,
	}
}

func (c AccelConfig) Validate() error {
	if !(c.MaxDt > 0) {
		return fmt.Errorf("%w: max dt must be positive, got %g", dem.ErrInvalidConfig, c.MaxDt)
	}
	if !(c.Courant > 0) {
		return fmt.Errorf("%w: courant fraction must be positive, got %g", dem.ErrInvalidConfig, c.Courant)
	}
	if c.Drive.Omega == 0 {
		return fmt.Errorf("%w: drive angular frequency must be non-zero", dem.ErrInvalidConfig)
	}
	return nil
}

func workerCount(n int) int {
	if n == 0 {
		return runtime.NumCPU()
	}
	return n
}

// acceptValid drops the particles an evaluator cannot integrate, logging each.
func acceptValid(backend string, added []dem.Particle) []dem.Particle {
	kept := added[:0]
	for _, p := range added {
		if err := p.Validate(); err != nil {
			logrus.WithField("backend", backend).WithError(err).Warn("dropping particle")
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
