package metrics

import (
	"math"

	"github.com/san-kum/demsim/internal/dem"
)

// Overlap scans every pair and reports the number of overlapping pairs and
// the deepest overlap relative to the smaller diameter. Pairs of fixed
// particles are ignored.
func Overlap(ps []dem.Particle) (pairs int, deepest float64) {
	for i := 0; i < len(ps)-1; i++ {
		a := &ps[i]
		for j := i + 1; j < len(ps); j++ {
			b := &ps[j]
			if !a.Movable() && !b.Movable() {
				continue
			}
			gap := a.Position.Sub(b.Position).Length() - (a.Diameter+b.Diameter)/2
			if !(gap < 0) {
				continue
			}
			pairs++
			deepest = math.Max(deepest, -gap/math.Min(a.Diameter, b.Diameter))
		}
	}
	return pairs, deepest
}

// MaxOverlap is the deepest relative overlap over all samples.
type MaxOverlap struct {
	name    string
	deepest float64
}

func NewMaxOverlap() *MaxOverlap {
	return &MaxOverlap{name: "max_overlap"}
}

func (m *MaxOverlap) Name() string { return m.name }

func (m *MaxOverlap) Observe(f *dem.Frame) {
	_, d := Overlap(f.Particles)
	m.deepest = math.Max(m.deepest, d)
}

func (m *MaxOverlap) Value() float64 { return m.deepest }

func (m *MaxOverlap) Reset() { m.deepest = 0 }
