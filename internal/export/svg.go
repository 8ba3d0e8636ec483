package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/viz"
)

const background = "#0a0a0a"

var defaultFill = dem.Color{R: 0, G: 255, B: 0, A: 255}

func hex(c dem.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParticlesToSVG draws each particle as a circle of its true diameter in the
// xz plane, z up, filled with its material colour.
func ParticlesToSVG(ps []dem.Particle, width int) string {
	if len(ps) == 0 || width <= 0 {
		return ""
	}

	b := viz.Fit(ps)
	spanX, spanZ := b.MaxX-b.MinX, b.MaxZ-b.MinZ
	if !(spanX > 0) || !(spanZ > 0) {
		return ""
	}
	scale := float64(width) / spanX
	height := int(math.Ceil(spanZ * scale))

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))

	for i := range ps {
		p := &ps[i]
		x, z := p.Position.X, p.Position.Z
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(z) || math.IsInf(z, 0) {
			continue
		}
		fill := defaultFill
		if p.Material != nil {
			fill = p.Material.Color
		}
		cx := (x - b.MinX) * scale
		cy := float64(height) - (z-b.MinZ)*scale
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.2f" fill="%s"/>
`, cx, cy, p.Diameter*scale/2, hex(fill)))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SeriesToSVG draws values against xs as a polyline.
func SeriesToSVG(xs, values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 || len(xs) != len(values) {
		return ""
	}

	minX, maxX := xs[0], xs[0]
	minY, maxY := values[0], values[0]
	for i := range values {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, values[i]), math.Max(maxY, values[i])
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, background, strokeColor))

	for i := range values {
		x := (xs[i] - minX) / rangeX * float64(width)
		y := float64(height) - (values[i]-minY)/rangeY*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
