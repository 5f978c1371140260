package systems

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/pthm-cable/flock/geom"
)

// kdPoint is a tree entry that remembers its snapshot slot.
type kdPoint struct {
	coords [3]float64
	dims   int
	slot   int
}

func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coords[d] - c.(kdPoint).coords[d]
}

func (p kdPoint) Dims() int { return p.dims }

// Distance returns the squared euclidean distance.
func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(kdPoint)
	var sum float64
	for i := 0; i < p.dims; i++ {
		d := p.coords[i] - q.coords[i]
		sum += d * d
	}
	return sum
}

type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p kdPoints) Len() int { return len(p) }
func (p kdPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

func (p kdPoints) Pivot(d kdtree.Dim) int {
	plane := kdPlane{points: p, dim: d}
	return kdtree.Partition(plane, kdtree.MedianOfMedians(plane))
}

// kdPlane sorts points along one dimension for pivot selection.
type kdPlane struct {
	points kdPoints
	dim    kdtree.Dim
}

func (p kdPlane) Len() int { return len(p.points) }
func (p kdPlane) Less(i, j int) bool {
	return p.points[i].coords[p.dim] < p.points[j].coords[p.dim]
}
func (p kdPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}

// KDIndex answers radius queries with a gonum k-d tree rebuilt on every
// snapshot.
type KDIndex[V any] struct {
	space  geom.Space[V]
	points kdPoints
	tree   *kdtree.Tree
}

// NewKDIndex creates an empty k-d tree index.
func NewKDIndex[V any](space geom.Space[V]) *KDIndex[V] {
	return &KDIndex[V]{space: space}
}

func (k *KDIndex[V]) point(p V, slot int) kdPoint {
	pt := kdPoint{dims: k.space.Dims(), slot: slot}
	for i := 0; i < pt.dims; i++ {
		pt.coords[i] = k.space.Coord(p, i)
	}
	return pt
}

func (k *KDIndex[V]) Rebuild(positions []V) {
	k.points = k.points[:0]
	for i, p := range positions {
		k.points = append(k.points, k.point(p, i))
	}
	if len(k.points) == 0 {
		k.tree = nil
		return
	}
	// New reorders its input, so hand it a copy.
	pts := make(kdPoints, len(k.points))
	copy(pts, k.points)
	k.tree = kdtree.New(pts, false)
}

func (k *KDIndex[V]) Len() int { return len(k.points) }

func (k *KDIndex[V]) QueryRadius(dst []int, center V, radius float64, exclude int) []int {
	if radius <= 0 || k.tree == nil {
		return dst
	}
	keep := kdtree.NewDistKeeper(radius * radius)
	k.tree.NearestSet(keep, k.point(center, -1))
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		slot := c.Comparable.(kdPoint).slot
		if slot == exclude {
			continue
		}
		dst = append(dst, slot)
	}
	return dst
}
