// Package systems contains the per-tick flock systems: neighbor indexes,
// steering, motion and the waypoint gate.
package systems

import (
	"fmt"

	"github.com/pthm-cable/flock/geom"
)

// SpatialIndex answers radius queries over a snapshot of positions.
// Results are slot indices into the slice passed to Rebuild.
type SpatialIndex[V any] interface {
	// Rebuild replaces the indexed positions.
	Rebuild(positions []V)
	// QueryRadius appends to dst the slots within radius of center,
	// skipping slot exclude (-1 skips nothing). Order is unspecified.
	// A non-positive radius yields no results.
	QueryRadius(dst []int, center V, radius float64, exclude int) []int
	// Len returns the number of indexed positions.
	Len() int
}

// Index kinds accepted by NewIndex.
const (
	IndexGrid   = "grid"
	IndexKDTree = "kdtree"
	IndexLinear = "linear"
)

// NewIndex builds the named index kind. cellSize is only used by the grid.
func NewIndex[V any](kind string, space geom.Space[V], cellSize float64) (SpatialIndex[V], error) {
	switch kind {
	case IndexGrid, "":
		return NewSpatialGrid(space, cellSize), nil
	case IndexKDTree:
		return NewKDIndex(space), nil
	case IndexLinear:
		return NewLinearIndex(space), nil
	}
	return nil, fmt.Errorf("unknown spatial index %q", kind)
}

// LinearIndex checks every position. It is the reference the other
// indexes are tested against.
type LinearIndex[V any] struct {
	space     geom.Space[V]
	positions []V
}

// NewLinearIndex creates an empty brute-force index.
func NewLinearIndex[V any](space geom.Space[V]) *LinearIndex[V] {
	return &LinearIndex[V]{space: space}
}

func (l *LinearIndex[V]) Rebuild(positions []V) {
	l.positions = append(l.positions[:0], positions...)
}

func (l *LinearIndex[V]) Len() int { return len(l.positions) }

func (l *LinearIndex[V]) QueryRadius(dst []int, center V, radius float64, exclude int) []int {
	if radius <= 0 {
		return dst
	}
	r2 := radius * radius
	for i, p := range l.positions {
		if i == exclude {
			continue
		}
		if geom.DistanceSq(l.space, p, center) <= r2 {
			dst = append(dst, i)
		}
	}
	return dst
}
