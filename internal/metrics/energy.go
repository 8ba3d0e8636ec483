package metrics

import (
	"math"

	"github.com/san-kum/demsim/internal/dem"
)

// Metric folds sampled frames into one number.
type Metric interface {
	Name() string
	Observe(f *dem.Frame)
	Value() float64
	Reset()
}

// KineticEnergy is Σ ½mU² over the movable particles.
func KineticEnergy(ps []dem.Particle) float64 {
	var e float64
	for i := range ps {
		if !ps[i].Movable() {
			continue
		}
		e += 0.5 * ps[i].Mass() * ps[i].Velocity.LengthSq()
	}
	return e
}

// MaxSpeed is the largest |U| over the movable particles.
func MaxSpeed(ps []dem.Particle) float64 {
	var vmax float64
	for i := range ps {
		if ps[i].Movable() {
			vmax = math.Max(vmax, ps[i].Velocity.Length())
		}
	}
	return vmax
}

// CentreOfMass of the movable particles; the origin when there are none.
func CentreOfMass(ps []dem.Particle) dem.Vector {
	var sum dem.Vector
	var mass float64
	for i := range ps {
		if !ps[i].Movable() {
			continue
		}
		m := ps[i].Mass()
		sum = sum.Add(ps[i].Position.Scale(m))
		mass += m
	}
	if mass == 0 {
		return dem.Vector{}
	}
	return sum.Div(mass)
}

// Energy tracks the mean kinetic energy over the samples it saw.
type Energy struct {
	name    string
	total   float64
	last    float64
	samples int
}

func NewEnergy() *Energy {
	return &Energy{name: "kinetic_energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(f *dem.Frame) {
	e.last = KineticEnergy(f.Particles)
	e.total += e.last
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.total / float64(e.samples)
}

func (e *Energy) Last() float64 { return e.last }

func (e *Energy) Reset() {
	e.total = 0
	e.last = 0
	e.samples = 0
}

// Settling is the ratio of the last kinetic energy to the peak seen so far.
// A granular bed at rest approaches zero.
type Settling struct {
	name string
	peak float64
	last float64
}

func NewSettling() *Settling {
	return &Settling{name: "settling"}
}

func (s *Settling) Name() string { return s.name }

func (s *Settling) Observe(f *dem.Frame) {
	s.last = KineticEnergy(f.Particles)
	s.peak = math.Max(s.peak, s.last)
}

func (s *Settling) Value() float64 {
	if s.peak == 0 {
		return 0
	}
	return s.last / s.peak
}

func (s *Settling) Reset() {
	s.peak = 0
	s.last = 0
}
