package systems

import (
	"math"

	"github.com/pthm-cable/flock/geom"
)

// cellKey addresses a grid cell. Unused trailing axes stay zero.
type cellKey [3]int64

// maxCell bounds cell coordinates so that neighbouring keys never overflow.
const maxCell = 1 << 52

// SpatialGrid provides neighbor lookups using a uniform hash grid.
// The world is unbounded; only occupied cells are stored.
type SpatialGrid[V any] struct {
	space     geom.Space[V]
	cellSize  float64
	positions []V
	cells     map[cellKey][]int
	// cell slices kept across Clear to avoid reallocating
	spare [][]int
}

// NewSpatialGrid creates a grid with the given cell edge length.
// Non-positive sizes fall back to 1.
func NewSpatialGrid[V any](space geom.Space[V], cellSize float64) *SpatialGrid[V] {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialGrid[V]{
		space:    space,
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
}

// CellSize returns the cell edge length.
func (g *SpatialGrid[V]) CellSize() float64 { return g.cellSize }

// Clear removes all entries from the grid.
func (g *SpatialGrid[V]) Clear() {
	for k, c := range g.cells {
		g.spare = append(g.spare, c[:0])
		delete(g.cells, k)
	}
	g.positions = g.positions[:0]
}

// Insert adds a position and returns its slot.
func (g *SpatialGrid[V]) Insert(p V) int {
	slot := len(g.positions)
	g.positions = append(g.positions, p)
	k := g.key(p)
	c, ok := g.cells[k]
	if !ok && len(g.spare) > 0 {
		c = g.spare[len(g.spare)-1]
		g.spare = g.spare[:len(g.spare)-1]
	}
	g.cells[k] = append(c, slot)
	return slot
}

func (g *SpatialGrid[V]) Rebuild(positions []V) {
	g.Clear()
	for _, p := range positions {
		g.Insert(p)
	}
}

func (g *SpatialGrid[V]) Len() int { return len(g.positions) }

func (g *SpatialGrid[V]) QueryRadius(dst []int, center V, radius float64, exclude int) []int {
	if radius <= 0 || len(g.positions) == 0 {
		return dst
	}
	radiusSq := radius * radius

	// Sparse flocks with a large radius touch more cells than entries.
	perAxis := 2*math.Ceil(radius/g.cellSize) + 1
	if math.Pow(perAxis, float64(g.space.Dims())) > float64(len(g.cells)) {
		for _, slots := range g.cells {
			dst = g.collect(dst, slots, center, radiusSq, exclude)
		}
		return dst
	}

	reach := cellIndex(math.Ceil(radius / g.cellSize))
	c := g.key(center)
	var lo, hi cellKey
	for i := 0; i < g.space.Dims(); i++ {
		lo[i] = c[i] - reach
		hi[i] = c[i] + reach
	}

	var k cellKey
	for k[0] = lo[0]; k[0] <= hi[0]; k[0]++ {
		for k[1] = lo[1]; k[1] <= hi[1]; k[1]++ {
			for k[2] = lo[2]; k[2] <= hi[2]; k[2]++ {
				if slots, ok := g.cells[k]; ok {
					dst = g.collect(dst, slots, center, radiusSq, exclude)
				}
			}
		}
	}
	return dst
}

func (g *SpatialGrid[V]) collect(dst, slots []int, center V, radiusSq float64, exclude int) []int {
	for _, s := range slots {
		if s == exclude {
			continue
		}
		if geom.DistanceSq(g.space, g.positions[s], center) <= radiusSq {
			dst = append(dst, s)
		}
	}
	return dst
}

func (g *SpatialGrid[V]) key(p V) cellKey {
	var k cellKey
	for i := 0; i < g.space.Dims() && i < len(k); i++ {
		k[i] = cellIndex(math.Floor(g.space.Coord(p, i) / g.cellSize))
	}
	return k
}

// cellIndex converts a floored coordinate to a cell index, saturating at
// ±maxCell. NaN maps to cell 0.
func cellIndex(x float64) int64 {
	switch {
	case x >= maxCell:
		return maxCell
	case x <= -maxCell:
		return -maxCell
	case x == x:
		return int64(x)
	}
	return 0
}
