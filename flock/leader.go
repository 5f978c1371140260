package flock

import (
	"math/rand"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/flock/geom"
)

// LeaderOptions configures the follow-the-leader goal.
type LeaderOptions struct {
	Speed float64
	// ArrivalEpsilon is the squared distance at which a new target is picked.
	ArrivalEpsilon float64
	// DirectionalNoise perturbs the travel direction, 0 disables it.
	DirectionalNoise float64
	NoiseFrequency   float64
}

// Leader is a goal that flies at constant speed toward a random target
// inside the boundary, picking a new one on arrival.
type Leader[V any] struct {
	space    geom.Space[V]
	rng      *rand.Rand
	noise    opensimplex.Noise
	opts     LeaderOptions
	origin   V
	boundary V

	position V
	heading  V
	target   V
	elapsed  float64
	arrivals int
}

func newLeader[V any](space geom.Space[V], rng *rand.Rand, seed int64, origin, boundary V, opts LeaderOptions) *Leader[V] {
	l := &Leader[V]{
		space:    space,
		rng:      rng,
		noise:    opensimplex.New(seed),
		opts:     opts,
		origin:   origin,
		boundary: boundary,
	}
	l.position = space.Add(origin, space.RandomInBox(rng, boundary))
	l.heading = space.RandomUnit(rng)
	l.pickTarget()
	return l
}

func (l *Leader[V]) Position() V { return l.position }

// Heading returns the direction of the last move.
func (l *Leader[V]) Heading() V { return l.heading }

// Target returns the point the leader is currently flying to.
func (l *Leader[V]) Target() V { return l.target }

// Arrivals counts how many targets have been reached.
func (l *Leader[V]) Arrivals() int { return l.arrivals }

func (l *Leader[V]) pickTarget() {
	l.target = l.space.Add(l.origin, l.space.RandomInBox(l.rng, l.boundary))
}

// Update advances the leader by one tick.
func (l *Leader[V]) Update(dt float64) {
	s := l.space
	l.elapsed += dt

	toTarget := s.Sub(l.target, l.position)
	dist2 := s.Dot(toTarget, toTarget)
	step := l.opts.Speed * dt
	if dist2 < l.opts.ArrivalEpsilon || dist2 <= step*step {
		if step > 0 {
			l.position = l.target
		}
		l.arrivals++
		l.pickTarget()
		return
	}

	dir := s.Unit(toTarget)
	if l.opts.DirectionalNoise > 0 {
		dir = l.perturb(dir)
	}
	l.heading = dir
	l.position = s.Add(l.position, s.Scale(step, dir))
}

// perturb adds smooth per-axis noise to dir and renormalises.
func (l *Leader[V]) perturb(dir V) V {
	s := l.space
	t := l.elapsed * l.opts.NoiseFrequency
	offset := make([]float64, s.Dims())
	for i := range offset {
		offset[i] = l.opts.DirectionalNoise * l.noise.Eval2(t, float64(i)*31.7)
	}
	out := s.Unit(s.Add(dir, s.FromSlice(offset)))
	if s.IsZero(out) {
		return dir
	}
	return out
}
