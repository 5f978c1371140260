package geom

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// Plane is the two-dimensional Space.
type Plane struct{}

var _ Space[r2.Vec] = Plane{}

func (Plane) Dims() int { return 2 }
func (Plane) Zero() r2.Vec { return r2.Vec{} }
func (Plane) Add(a, b r2.Vec) r2.Vec { return r2.Add(a, b) }
func (Plane) Sub(a, b r2.Vec) r2.Vec { return r2.Sub(a, b) }
func (Plane) Scale(f float64, v r2.Vec) r2.Vec { return r2.Scale(f, v) }
func (Plane) Dot(a, b r2.Vec) float64 { return r2.Dot(a, b) }
func (Plane) Norm(v r2.Vec) float64 { return r2.Norm(v) }
func (Plane) AlignmentDamping() float64 { return 10 }

func (Plane) IsZero(v r2.Vec) bool {
	return r2.Norm2(v) < epsilon*epsilon
}

func (p Plane) Unit(v r2.Vec) r2.Vec {
	if p.IsZero(v) {
		return r2.Vec{}
	}
	return r2.Unit(v)
}

func (p Plane) Angle(a, b r2.Vec) float64 {
	if p.IsZero(a) || p.IsZero(b) {
		return 0
	}
	return angleDeg(r2.Cos(a, b))
}

// RotateToward steps by min(|pressure|, angle) degrees. The turn direction
// follows the sign of heading × pressure; a colinear pressure, including one
// pointing straight behind, leaves the heading unchanged.
func (p Plane) RotateToward(heading, pressure r2.Vec) r2.Vec {
	if p.IsZero(pressure) {
		return heading
	}
	cross := r2.Cross(heading, pressure)
	if cross == 0 {
		return heading
	}
	step := math.Min(r2.Norm(pressure), p.Angle(heading, pressure))
	if cross < 0 {
		step = -step
	}
	return p.Unit(r2.Rotate(heading, step*math.Pi/180, r2.Vec{}))
}

func (Plane) RandomUnit(rng *rand.Rand) r2.Vec {
	a := rng.Float64() * 2 * math.Pi
	return r2.Vec{X: math.Cos(a), Y: math.Sin(a)}
}

func (Plane) RandomInBox(rng *rand.Rand, half r2.Vec) r2.Vec {
	return r2.Vec{X: uniform(rng, half.X), Y: uniform(rng, half.Y)}
}

func (Plane) Coord(v r2.Vec, i int) float64 {
	if i == 0 {
		return v.X
	}
	return v.Y
}

func (Plane) FromSlice(c []float64) r2.Vec {
	var v r2.Vec
	if len(c) > 0 {
		v.X = c[0]
	}
	if len(c) > 1 {
		v.Y = c[1]
	}
	return v
}
