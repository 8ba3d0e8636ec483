package sim

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/demsim/internal/dem"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

var (
	granite = dem.NewMaterial(1, 2.7e3, 30e6, 0.2, dem.Color{R: 50, G: 50, B: 255, A: 255})
	steel   = dem.NewMaterial(2, 7.8e3, 200e9, 0.3, dem.Color{R: 200, G: 200, B: 200, A: 255})
)

func movable(id uint64, d float64, pos dem.Vector) dem.Particle {
	return dem.NewParticle(id, d, granite, dem.FreeMovable).At(pos)
}

func fixed(id uint64, d float64, pos dem.Vector) dem.Particle {
	return dem.NewParticle(id, d, steel, dem.Fixed).At(pos)
}

// pile drops a block of grains onto a fixed floor. With overlap set the
// grains start pressed together.
func pile(n int, overlap bool) []dem.Particle {
	const d = 0.05
	spacing := 1.001 * d
	base := 0.06
	if overlap {
		spacing = 0.9 * d
		base = 0.045
	}

	ps := make([]dem.Particle, 0, 2*n)
	id := uint64(0)
	for i := 0; i < n; i++ {
		ps = append(ps, fixed(id, d, dem.Vector{X: float64(i) * 0.04}))
		id++
	}
	for i := 0; i < n; i++ {
		pos := dem.Vector{
			X: float64(i%5) * spacing,
			Y: 0.001 * float64(i%3),
			Z: base + float64(i/5)*spacing,
		}
		ps = append(ps, movable(id, d, pos))
		id++
	}
	return ps
}
