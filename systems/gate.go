package systems

// WaypointGate reports whether enough of the flock has reached a goal.
// Apart from a scratch buffer it holds no state between calls.
type WaypointGate[V any] struct {
	Radius    float64
	Threshold float64

	buf []int
}

// Count returns how many indexed members lie within Radius of center.
func (g *WaypointGate[V]) Count(index SpatialIndex[V], center V) int {
	g.buf = index.QueryRadius(g.buf[:0], center, g.Radius, -1)
	return len(g.buf)
}

// IsFilled reports count >= flockSize*Threshold, compared as floats.
func (g *WaypointGate[V]) IsFilled(index SpatialIndex[V], center V, flockSize int) bool {
	return Filled(g.Count(index, center), flockSize, g.Threshold)
}

// Filled is the gate comparison on its own.
func Filled(count, flockSize int, threshold float64) bool {
	return float64(count) >= float64(flockSize)*threshold
}
