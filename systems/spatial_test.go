package systems

import (
	"math/rand"
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/geom"
)

func TestNewIndexUnknownKind(t *testing.T) {
	if _, err := NewIndex[r2.Vec]("octree", geom.Plane{}, 1); err == nil {
		t.Error("expected an error for an unknown index kind")
	}
}

func TestIndexesAgreeWithLinear2D(t *testing.T) {
	space := geom.Plane{}
	rng := rand.New(rand.NewSource(42))
	positions := make([]r2.Vec, 300)
	for i := range positions {
		positions[i] = space.RandomInBox(rng, r2.Vec{X: 50, Y: 50})
	}
	// Duplicates and points on cell borders.
	positions = append(positions, positions[0], r2.Vec{X: 10, Y: 10}, r2.Vec{X: -10, Y: 0})

	for _, kind := range []string{IndexGrid, IndexKDTree} {
		t.Run(kind, func(t *testing.T) {
			idx, err := NewIndex[r2.Vec](kind, space, 5)
			if err != nil {
				t.Fatal(err)
			}
			checkAgainstLinear[r2.Vec](t, space, idx, positions, rng)
		})
	}
}

func TestIndexesAgreeWithLinear3D(t *testing.T) {
	space := geom.Volume{}
	rng := rand.New(rand.NewSource(9))
	positions := make([]r3.Vec, 200)
	for i := range positions {
		positions[i] = space.RandomInBox(rng, r3.Vec{X: 20, Y: 20, Z: 20})
	}

	for _, kind := range []string{IndexGrid, IndexKDTree} {
		t.Run(kind, func(t *testing.T) {
			idx, err := NewIndex[r3.Vec](kind, space, 3)
			if err != nil {
				t.Fatal(err)
			}
			checkAgainstLinear[r3.Vec](t, space, idx, positions, rng)
		})
	}
}

func checkAgainstLinear[V any](t *testing.T, space geom.Space[V], idx SpatialIndex[V], positions []V, rng *rand.Rand) {
	t.Helper()
	ref := NewLinearIndex(space)
	ref.Rebuild(positions)
	idx.Rebuild(positions)

	if idx.Len() != len(positions) {
		t.Fatalf("Len() = %d, want %d", idx.Len(), len(positions))
	}

	radii := []float64{0, 0.5, 4, 5, 12, 200}
	var got, want []int
	for q := 0; q < 60; q++ {
		exclude := rng.Intn(len(positions)+1) - 1
		center := positions[rng.Intn(len(positions))]
		for _, r := range radii {
			got = idx.QueryRadius(got[:0], center, r, exclude)
			want = ref.QueryRadius(want[:0], center, r, exclude)
			slices.Sort(got)
			slices.Sort(want)
			if !slices.Equal(got, want) {
				t.Fatalf("query r=%v exclude=%d: got %v, want %v", r, exclude, got, want)
			}
		}
	}
}

func TestQueryRadiusExcludesSelf(t *testing.T) {
	positions := []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 3, Y: 0}}
	for _, kind := range []string{IndexGrid, IndexKDTree, IndexLinear} {
		t.Run(kind, func(t *testing.T) {
			idx, _ := NewIndex[r2.Vec](kind, geom.Plane{}, 2)
			idx.Rebuild(positions)
			got := idx.QueryRadius(nil, positions[0], 1, 0)
			if !slices.Equal(got, []int{1}) {
				t.Errorf("got %v, want [1] (inclusive radius, self excluded)", got)
			}
		})
	}
}

func TestEmptyIndex(t *testing.T) {
	for _, kind := range []string{IndexGrid, IndexKDTree, IndexLinear} {
		idx, _ := NewIndex[r2.Vec](kind, geom.Plane{}, 2)
		idx.Rebuild(nil)
		if got := idx.QueryRadius(nil, r2.Vec{}, 10, -1); len(got) != 0 {
			t.Errorf("%s: got %v from empty index", kind, got)
		}
	}
}

func TestSpatialGridRebuildReplaces(t *testing.T) {
	g := NewSpatialGrid[r2.Vec](geom.Plane{}, 1)
	g.Rebuild([]r2.Vec{{X: 0, Y: 0}, {X: 0.5, Y: 0}})
	g.Rebuild([]r2.Vec{{X: 10, Y: 10}})
	if got := g.QueryRadius(nil, r2.Vec{}, 2, -1); len(got) != 0 {
		t.Errorf("stale entries after rebuild: %v", got)
	}
	if got := g.QueryRadius(nil, r2.Vec{X: 10, Y: 10}, 0.1, -1); !slices.Equal(got, []int{0}) {
		t.Errorf("got %v, want [0]", got)
	}
}

func TestSpatialGridFarCoordinates(t *testing.T) {
	positions := []r2.Vec{
		{X: 3e9}, {X: 3e9 + 0.5}, {X: -3e9},
		{X: 1e300}, {X: 2e300},
	}
	// Enough occupied cells that queries walk neighbouring keys.
	for i := 0; i < 12; i++ {
		positions = append(positions, r2.Vec{X: float64(i * 4), Y: 7})
	}

	g := NewSpatialGrid[r2.Vec](geom.Plane{}, 1)
	g.Rebuild(positions)

	tests := []struct {
		name    string
		exclude int
		want    []int
	}{
		{"beyond int32 cells", 0, []int{1}},
		{"mirrored side", 2, nil},
		{"saturated cells", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.QueryRadius(nil, positions[tt.exclude], 1, tt.exclude)
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
