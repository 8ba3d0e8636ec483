package dem

// Color is the display colour of a material. The simulation never reads it.
type Color struct {
	R, G, B, A uint8
}

// Material holds the physical properties shared by many particles.
// A Material must not be modified after the first particle references it.
type Material struct {
	ID            byte
	Density       float64
	YoungsModulus float64
	PoissonRatio  float64
	Color         Color
}

func NewMaterial(id byte, density, youngsModulus, poissonRatio float64, color Color) *Material {
	return &Material{
		ID:            id,
		Density:       density,
		YoungsModulus: youngsModulus,
		PoissonRatio:  poissonRatio,
		Color:         color,
	}
}
