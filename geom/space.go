// Package geom provides the vector algebra used by the flock, parametrised
// by dimensionality. Plane works on gonum r2 vectors and Volume on r3 vectors;
// everything above this package is written against the Space interface.
package geom

import (
	"math"
	"math/rand"
)

// epsilon below which a vector length is treated as zero.
const epsilon = 1e-9

// Space is the set of vector operations the simulation needs for one
// dimensionality.
type Space[V any] interface {
	// Dims returns the number of coordinates of a vector.
	Dims() int
	Zero() V
	Add(a, b V) V
	Sub(a, b V) V
	Scale(f float64, v V) V
	Dot(a, b V) float64
	Norm(v V) float64
	// Unit returns v scaled to length 1, or the zero vector if v is zero.
	Unit(v V) V
	IsZero(v V) bool
	// Angle returns the unsigned angle between a and b in degrees.
	// It is 0 when either vector is zero.
	Angle(a, b V) float64
	// RotateToward turns heading toward pressure by at most |pressure|
	// and never past the pressure direction. The result is unit length.
	RotateToward(heading, pressure V) V
	// RandomUnit draws a uniformly distributed unit vector.
	RandomUnit(rng *rand.Rand) V
	// RandomInBox draws a point uniformly from [-half, half] componentwise.
	RandomInBox(rng *rand.Rand, half V) V
	// Coord returns the i-th coordinate of v.
	Coord(v V, i int) float64
	// FromSlice builds a vector from coordinates, zero-padding short input.
	FromSlice(c []float64) V
	// AlignmentDamping is the divisor applied to the alignment angle.
	AlignmentDamping() float64
}

// Distance returns |a - b|.
func Distance[V any](s Space[V], a, b V) float64 {
	return s.Norm(s.Sub(a, b))
}

// DistanceSq returns |a - b|².
func DistanceSq[V any](s Space[V], a, b V) float64 {
	d := s.Sub(a, b)
	return s.Dot(d, d)
}

// Within reports whether every coordinate of p lies in [c-half, c+half].
func Within[V any](s Space[V], p, center, half V) bool {
	for i := 0; i < s.Dims(); i++ {
		d := s.Coord(p, i) - s.Coord(center, i)
		if math.Abs(d) > s.Coord(half, i)+epsilon {
			return false
		}
	}
	return true
}

// angleDeg returns the angle for a cosine, clamped against rounding.
func angleDeg(cos float64) float64 {
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

func uniform(rng *rand.Rand, half float64) float64 {
	return (rng.Float64()*2 - 1) * half
}
