// Package scene lays out the initial particle set of a run.
package scene

import (
	"github.com/sirupsen/logrus"

	"github.com/san-kum/demsim/internal/config"
	"github.com/san-kum/demsim/internal/dem"
)

// Material ids used by Build.
const (
	GrainMaterial byte = 0
	WallMaterial  byte = 1
)

const (
	latticeSpacing = 1.001
	wallDiameter   = 0.8
	wallSpacing    = 0.75
)

// Adder accepts particles. Every dem.Simulation is one.
type Adder interface {
	AddParticle(p dem.Particle)
}

// Summary counts what Build added.
type Summary struct {
	Movable int
	Fixed   int
	NextID  uint64
}

func (s Summary) Total() int { return s.Movable + s.Fixed }

// Build fills the SizeX by SizeZ region in the xz plane with free grains on a
// lattice of pitch 1.001·d. Grain diameter grows linearly with height from
// 0.4·d at the bottom to d at the top. With Walls set, a fixed floor and two
// fixed side walls of 0.8·d particles enclose the block one diameter away.
// Ids are assigned sequentially from zero.
func Build(cfg config.SceneConfig, dst Adder) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	grain := cfg.Grain.Material(GrainMaterial)
	wall := cfg.Wall.Material(WallMaterial)

	d := cfg.Diameter
	pitch := d * latticeSpacing
	dw := d * wallDiameter
	wallPitch := dw * wallSpacing
	extra := d

	var s Summary
	add := func(p dem.Particle) error {
		if err := p.Validate(); err != nil {
			return err
		}
		dst.AddParticle(p)
		s.NextID++
		if p.Movable() {
			s.Movable++
		} else {
			s.Fixed++
		}
		return nil
	}

	for x := 0.0; x < cfg.SizeX; x += pitch {
		for z := 0.0; z < cfg.SizeZ; z += pitch {
			size := d * (0.4 + 0.6*z/cfg.SizeZ)
			p := dem.NewParticle(s.NextID, size, grain, dem.FreeMovable).At(dem.Vector{X: x, Z: z})
			if err := add(p); err != nil {
				return s, err
			}
		}
	}

	if cfg.Walls {
		for x := -extra; x < cfg.SizeX+extra; x += wallPitch {
			p := dem.NewParticle(s.NextID, dw, wall, dem.Fixed).At(dem.Vector{X: x, Z: -extra})
			if err := add(p); err != nil {
				return s, err
			}
		}
		for z := -extra; z < cfg.SizeZ+extra; z += wallPitch {
			left := dem.NewParticle(s.NextID, dw, wall, dem.Fixed).At(dem.Vector{X: -extra, Z: z})
			if err := add(left); err != nil {
				return s, err
			}
			right := dem.NewParticle(s.NextID, dw, wall, dem.Fixed).At(dem.Vector{X: cfg.SizeX + extra, Z: z})
			if err := add(right); err != nil {
				return s, err
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"movable": s.Movable,
		"fixed":   s.Fixed,
	}).Info("scene built")
	return s, nil
}
