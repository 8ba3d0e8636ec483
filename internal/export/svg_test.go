package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/san-kum/demsim/internal/dem"
)

func TestParticlesToSVG(t *testing.T) {
	red := dem.NewMaterial(1, 1000, 1e6, 0.3, dem.Color{R: 255, A: 255})
	ps := []dem.Particle{
		dem.NewParticle(0, 0.1, red, dem.FreeMovable).At(dem.Vector{X: 0, Z: 0}),
		dem.NewParticle(1, 0.1, nil, dem.Fixed).At(dem.Vector{X: 1, Z: 0.5}),
	}
	svg := ParticlesToSVG(ps, 200)

	assert.True(t, strings.HasPrefix(svg, "<?xml"))
	assert.True(t, strings.HasSuffix(svg, "</svg>"))
	assert.Equal(t, 2, strings.Count(svg, "<circle"))
	assert.Contains(t, svg, `fill="#ff0000"`)
	assert.Contains(t, svg, `fill="#00ff00"`)
}

func TestParticlesToSVG_Empty(t *testing.T) {
	assert.Empty(t, ParticlesToSVG(nil, 100))
	assert.Empty(t, ParticlesToSVG([]dem.Particle{{Diameter: 1}}, 0))
}

func TestSeriesToSVG(t *testing.T) {
	svg := SeriesToSVG([]float64{0, 1, 2}, []float64{3, 1, 2}, 100, 50, "#00ff00")

	assert.Contains(t, svg, `stroke="#00ff00"`)
	assert.Equal(t, 2, strings.Count(svg, " L"))
	assert.Contains(t, svg, "M0.0,")
}

func TestSeriesToSVG_Invalid(t *testing.T) {
	assert.Empty(t, SeriesToSVG([]float64{0}, []float64{1}, 100, 50, "#fff"))
	assert.Empty(t, SeriesToSVG([]float64{0, 1}, []float64{1}, 100, 50, "#fff"))
}
