package dem

import "gonum.org/v1/gonum/spatial/r3"

// Vector is a value type; all arithmetic returns a new vector.
type Vector r3.Vec

func (v Vector) Add(o Vector) Vector {
	return Vector(r3.Add(r3.Vec(v), r3.Vec(o)))
}

func (v Vector) Sub(o Vector) Vector {
	return Vector(r3.Sub(r3.Vec(v), r3.Vec(o)))
}

func (v Vector) Scale(f float64) Vector {
	return Vector(r3.Scale(f, r3.Vec(v)))
}

// Div divides every component by f. The caller guards f != 0.
func (v Vector) Div(f float64) Vector {
	return Vector{X: v.X / f, Y: v.Y / f, Z: v.Z / f}
}

func (v Vector) Neg() Vector {
	return Vector{X: -v.X, Y: -v.Y, Z: -v.Z}
}

func (v Vector) Dot(o Vector) float64 {
	return r3.Dot(r3.Vec(v), r3.Vec(o))
}

func (v Vector) Length() float64 {
	return r3.Norm(r3.Vec(v))
}

func (v Vector) LengthSq() float64 {
	return r3.Norm2(r3.Vec(v))
}

// IsZero reports whether the squared length is exactly zero.
func (v Vector) IsZero() bool {
	return v.LengthSq() == 0
}
