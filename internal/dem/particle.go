package dem

import (
	"fmt"
	"math"
)

// Kind decides whether the integrator may move a particle.
type Kind uint8

const (
	FreeMovable Kind = iota
	Fixed
)

func (k Kind) String() string {
	switch k {
	case FreeMovable:
		return "free"
	case Fixed:
		return "fixed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Particle is a sphere. ID, Diameter, Material and Kind are fixed at
// construction; evaluators only write Position, Velocity and Acceleration.
type Particle struct {
	ID       uint64
	Diameter float64
	Material *Material
	Kind     Kind

	Position     Vector
	Velocity     Vector
	Acceleration Vector
}

func NewParticle(id uint64, diameter float64, material *Material, kind Kind) Particle {
	return Particle{
		ID:       id,
		Diameter: diameter,
		Material: material,
		Kind:     kind,
	}
}

// At returns a copy of p placed at pos.
func (p Particle) At(pos Vector) Particle {
	p.Position = pos
	return p
}

// Volume is πd³/6.
func (p Particle) Volume() float64 {
	return math.Pi * p.Diameter * p.Diameter * p.Diameter / 6
}

// Mass is density times volume; a particle without material is massless.
func (p Particle) Mass() float64 {
	if p.Material == nil {
		return 0
	}
	return p.Material.Density * p.Volume()
}

func (p Particle) Movable() bool {
	return p.Kind == FreeMovable
}

// Validate reports particles the evaluators cannot integrate.
func (p Particle) Validate() error {
	if p.Material == nil {
		return fmt.Errorf("%w: particle %d has no material", ErrInvalidParticle, p.ID)
	}
	if !(p.Diameter > 0) || math.IsInf(p.Diameter, 0) {
		return fmt.Errorf("%w: particle %d diameter %g", ErrInvalidParticle, p.ID, p.Diameter)
	}
	if p.Movable() && !(p.Mass() > 0) {
		return fmt.Errorf("%w: movable particle %d has mass %g", ErrInvalidParticle, p.ID, p.Mass())
	}
	return nil
}
