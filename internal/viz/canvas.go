package viz

import (
	"math"
	"strings"

	"github.com/san-kum/demsim/internal/dem"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the sub-pixel (x, y). The canvas is Width*2 by Height*4
// sub-pixels with y growing downwards.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// Bounds is a rectangle in the xz plane.
type Bounds struct {
	MinX, MaxX float64
	MinZ, MaxZ float64
}

// Fit returns the bounds of the particle centres, padded by the largest
// diameter. Non-finite positions are ignored.
func Fit(ps []dem.Particle) Bounds {
	b := Bounds{MinX: math.Inf(1), MaxX: math.Inf(-1), MinZ: math.Inf(1), MaxZ: math.Inf(-1)}
	var pad float64
	for i := range ps {
		x, z := ps[i].Position.X, ps[i].Position.Z
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(z) || math.IsInf(z, 0) {
			continue
		}
		b.MinX, b.MaxX = math.Min(b.MinX, x), math.Max(b.MaxX, x)
		b.MinZ, b.MaxZ = math.Min(b.MinZ, z), math.Max(b.MaxZ, z)
		pad = math.Max(pad, ps[i].Diameter)
	}
	if b.MinX > b.MaxX {
		return Bounds{MinX: -1, MaxX: 1, MinZ: -1, MaxZ: 1}
	}
	b.MinX -= pad
	b.MaxX += pad
	b.MinZ -= pad
	b.MaxZ += pad
	return b
}

// Scatter draws one dot per particle centre, projected onto the xz plane with
// z up. Aspect ratio is preserved.
func (c *Canvas) Scatter(ps []dem.Particle, b Bounds) {
	w, h := float64(c.Width*2-1), float64(c.Height*4-1)
	spanX, spanZ := b.MaxX-b.MinX, b.MaxZ-b.MinZ
	if spanX <= 0 || spanZ <= 0 {
		return
	}
	scale := math.Min(w/spanX, h/spanZ)
	for i := range ps {
		px := (ps[i].Position.X - b.MinX) * scale
		pz := (ps[i].Position.Z - b.MinZ) * scale
		if math.IsNaN(px) || math.IsNaN(pz) {
			continue
		}
		c.Set(int(px), int(h-pz))
	}
}
