package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/demsim/internal/dem"
)

// DefaultDamping is the multiplier on the critical dashpot coefficient. The
// normal is a unit vector, so 1 is critical damping of the pair.
const DefaultDamping = 1.0

// HarmonicMean blends two moduli as 2/(1/a+1/b). A zero operand yields zero,
// so an unset material contributes no stiffness.
func HarmonicMean(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a == b {
		return a
	}
	return 2.0 / (1.0/a + 1.0/b)
}

// Contact is the outcome of testing one pair of particles.
type Contact uint8

const (
	NoContact Contact = iota
	Touching
	// Coincident centres overlap but have no defined normal; no force is applied.
	Coincident
)

func (c Contact) String() string {
	switch c {
	case NoContact:
		return "none"
	case Touching:
		return "touching"
	case Coincident:
		return "coincident"
	default:
		return fmt.Sprintf("contact(%d)", uint8(c))
	}
}

// Coefficients of the spring-dashpot law for one contact.
type Coefficients struct {
	Kn float64 // normal spring
	Cn float64 // normal dashpot
	S0 float64 // tangential reduction factor
}

// NormalStiffness is the Hertzian normal spring for overlap delta:
// sqrt|δ| · 2/3 · E/(1-ν²) · sqrt(d1·d2 / 2(d1+d2)).
func NormalStiffness(delta, e, nu, d1, d2 float64) float64 {
	return math.Sqrt(math.Abs(delta)) * 2.0 / 3.0 * e / (1 - nu*nu) * math.Sqrt(d1*d2/2/(d1+d2))
}

// ContactCoefficients blends the two materials and derives the spring and
// dashpot for overlap delta.
func ContactCoefficients(a, b *dem.Particle, delta, damping float64) Coefficients {
	e := HarmonicMean(a.Material.YoungsModulus, b.Material.YoungsModulus)
	nu := HarmonicMean(a.Material.PoissonRatio, b.Material.PoissonRatio)
	m := (a.Mass() + b.Mass()) / 2

	kn := NormalStiffness(delta, e, nu, a.Diameter, b.Diameter)
	return Coefficients{
		Kn: kn,
		Cn: damping * 2 * math.Sqrt(m*math.Abs(kn)),
		S0: 1.0 / 2 / (1 + nu),
	}
}

// ContactForce returns the force exerted on a by b. The force on b is its
// negation. Particles whose centres are at least one mean diameter apart do
// not interact.
func ContactForce(a, b *dem.Particle, damping float64) (dem.Vector, Contact) {
	rel := a.Position.Sub(b.Position)
	dist := rel.Length()
	gap := dist - (a.Diameter+b.Diameter)/2
	if !(gap < 0) {
		return dem.Vector{}, NoContact
	}
	if dist == 0 {
		return dem.Vector{}, Coincident
	}

	delta := -gap
	c := ContactCoefficients(a, b, delta, damping)

	// n points from b to a.
	n := rel.Div(dist)
	un := n.Scale(b.Velocity.Sub(a.Velocity).Dot(n))

	spring := n.Scale(c.Kn * delta)
	dashpot := un.Scale(c.Cn)
	return spring.Add(dashpot), Touching
}
