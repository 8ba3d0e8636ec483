package physics

import (
	"math"

	"github.com/san-kum/demsim/internal/dem"
)

// Drive is a prescribed oscillatory acceleration field:
// (A·cos(ωt), 0, A·cos(t/ω)).
type Drive struct {
	Amplitude float64 `yaml:"amplitude"`
	Omega     float64 `yaml:"omega"`
}

func (d Drive) Acceleration(t float64) dem.Vector {
	return dem.Vector{
		X: d.Amplitude * math.Cos(d.Omega*t),
		Z: d.Amplitude * math.Cos(1/d.Omega*t),
	}
}

// CourantLimit is the largest step that moves a particle at most fraction of
// its diameter. Resting particles impose no limit.
func CourantLimit(fraction, diameter float64, velocity dem.Vector) float64 {
	if velocity.IsZero() {
		return math.Inf(1)
	}
	return fraction * diameter / velocity.Length()
}

// Advance integrates one constant-acceleration step. Fixed particles are untouched.
func Advance(p *dem.Particle, dt float64) {
	if !p.Movable() {
		return
	}
	p.Position = p.Position.Add(p.Velocity.Scale(dt)).Add(p.Acceleration.Scale(dt * dt / 2))
	p.Velocity = p.Velocity.Add(p.Acceleration.Scale(dt))
}
