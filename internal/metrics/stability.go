package metrics

import (
	"math"

	"github.com/san-kum/demsim/internal/dem"
)

// Stability is the fraction of samples in which every particle had a finite
// state and no movable particle exceeded the speed threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(f *dem.Frame) {
	s.samples++
	for i := range f.Particles {
		p := &f.Particles[i]
		if !finite(p.Position) || !finite(p.Velocity) {
			s.violations++
			return
		}
		if p.Movable() && p.Velocity.Length() > s.threshold {
			s.violations++
			return
		}
	}
}

func finite(v dem.Vector) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
