package geom

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// Volume is the three-dimensional Space.
type Volume struct{}

var _ Space[r3.Vec] = Volume{}

func (Volume) Dims() int { return 3 }
func (Volume) Zero() r3.Vec { return r3.Vec{} }
func (Volume) Add(a, b r3.Vec) r3.Vec { return r3.Add(a, b) }
func (Volume) Sub(a, b r3.Vec) r3.Vec { return r3.Sub(a, b) }
func (Volume) Scale(f float64, v r3.Vec) r3.Vec { return r3.Scale(f, v) }
func (Volume) Dot(a, b r3.Vec) float64 { return r3.Dot(a, b) }
func (Volume) Norm(v r3.Vec) float64 { return r3.Norm(v) }
func (Volume) AlignmentDamping() float64 { return 20 }

func (Volume) IsZero(v r3.Vec) bool {
	return r3.Norm2(v) < epsilon*epsilon
}

func (s Volume) Unit(v r3.Vec) r3.Vec {
	if s.IsZero(v) {
		return r3.Vec{}
	}
	return r3.Unit(v)
}

func (s Volume) Angle(a, b r3.Vec) float64 {
	if s.IsZero(a) || s.IsZero(b) {
		return 0
	}
	return angleDeg(r3.Cos(a, b))
}

// RotateToward steps by min(|pressure|, angle) radians around heading ×
// pressure. When the two are opposed any axis perpendicular to the heading
// is used.
func (s Volume) RotateToward(heading, pressure r3.Vec) r3.Vec {
	if s.IsZero(pressure) {
		return heading
	}
	delta := s.Angle(heading, pressure) * math.Pi / 180
	if delta == 0 {
		return heading
	}
	axis := r3.Cross(heading, pressure)
	if s.IsZero(axis) {
		axis = perpendicular(heading)
	}
	step := math.Min(r3.Norm(pressure), delta)
	return s.Unit(r3.Rotate(heading, step, axis))
}

// perpendicular returns a vector orthogonal to v, crossing with whichever
// basis axis is least aligned with it.
func perpendicular(v r3.Vec) r3.Vec {
	basis := r3.Vec{X: 1}
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	if ay < ax && ay <= az {
		basis = r3.Vec{Y: 1}
	} else if az < ax && az < ay {
		basis = r3.Vec{Z: 1}
	}
	return r3.Cross(v, basis)
}

func (s Volume) RandomUnit(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if !s.IsZero(v) {
			return r3.Unit(v)
		}
	}
}

func (Volume) RandomInBox(rng *rand.Rand, half r3.Vec) r3.Vec {
	return r3.Vec{X: uniform(rng, half.X), Y: uniform(rng, half.Y), Z: uniform(rng, half.Z)}
}

func (Volume) Coord(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func (Volume) FromSlice(c []float64) r3.Vec {
	var v r3.Vec
	if len(c) > 0 {
		v.X = c[0]
	}
	if len(c) > 1 {
		v.Y = c[1]
	}
	if len(c) > 2 {
		v.Z = c[2]
	}
	return v
}
