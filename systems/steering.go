package systems

import (
	"math/rand"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/geom"
)

// Steering computes the flocking pressure for one agent from its
// neighbors and the shared goal. Every term is zero for an empty
// neighbor set.
type Steering[V any] struct {
	space geom.Space[V]
	rng   *rand.Rand
}

// NewSteering creates a steering engine. rng breaks ties between
// coincident agents.
func NewSteering[V any](space geom.Space[V], rng *rand.Rand) *Steering[V] {
	return &Steering[V]{space: space, rng: rng}
}

// Separation sums unit vectors pointing away from each neighbor.
func (s *Steering[V]) Separation(self components.Body[V], neighbors []components.Body[V]) V {
	sum := s.space.Zero()
	for _, n := range neighbors {
		away := s.space.Sub(self.Position, n.Position)
		if s.space.IsZero(away) {
			sum = s.space.Add(sum, s.space.RandomUnit(s.rng))
			continue
		}
		sum = s.space.Add(sum, s.space.Unit(away))
	}
	return sum
}

// Alignment returns the neighbors' mean heading scaled by how far self's
// heading is from it, in degrees over the space's damping constant.
func (s *Steering[V]) Alignment(self components.Body[V], neighbors []components.Body[V]) V {
	if len(neighbors) == 0 {
		return s.space.Zero()
	}
	sum := s.space.Zero()
	for _, n := range neighbors {
		sum = s.space.Add(sum, n.Heading)
	}
	avg := s.space.Unit(sum)
	if s.space.IsZero(avg) {
		return avg
	}
	diff := s.space.Angle(self.Heading, avg)
	return s.space.Scale(diff/s.space.AlignmentDamping(), avg)
}

// Cohesion points from self to the neighbors' centroid.
func (s *Steering[V]) Cohesion(self components.Body[V], neighbors []components.Body[V]) V {
	if len(neighbors) == 0 {
		return s.space.Zero()
	}
	sum := s.space.Zero()
	for _, n := range neighbors {
		sum = s.space.Add(sum, n.Position)
	}
	centroid := s.space.Scale(1/float64(len(neighbors)), sum)
	return s.space.Sub(centroid, self.Position)
}

// GoalSeek points from self toward goal with unit length.
func (s *Steering[V]) GoalSeek(self components.Body[V], goal V) V {
	return s.space.Unit(s.space.Sub(goal, self.Position))
}

// ComputeHeadingDelta sums the weighted terms. goal may be nil.
// Terms with a zero weight are not evaluated.
func (s *Steering[V]) ComputeHeadingDelta(self components.Body[V], neighbors []components.Body[V], goal *V, w components.Weights) V {
	p := s.space.Zero()
	if w.Separation != 0 {
		p = s.space.Add(p, s.space.Scale(w.Separation, s.Separation(self, neighbors)))
	}
	if w.Alignment != 0 {
		p = s.space.Add(p, s.space.Scale(w.Alignment, s.Alignment(self, neighbors)))
	}
	if w.Cohesion != 0 {
		p = s.space.Add(p, s.space.Scale(w.Cohesion, s.Cohesion(self, neighbors)))
	}
	if goal != nil && w.Goal != 0 {
		p = s.space.Add(p, s.space.Scale(w.Goal, s.GoalSeek(self, *goal)))
	}
	return p
}

// RotateTowardPressure turns heading toward pressure without overshooting.
func (s *Steering[V]) RotateTowardPressure(heading, pressure V) V {
	return s.space.RotateToward(heading, pressure)
}

// UpdateAgent returns the new heading and velocity for one tick.
// A non-positive speed yields a zero velocity.
func (s *Steering[V]) UpdateAgent(self components.Body[V], params components.Steering, neighbors []components.Body[V], goal *V) (heading, velocity V) {
	pressure := s.ComputeHeadingDelta(self, neighbors, goal, params.Weights)
	heading = s.RotateTowardPressure(self.Heading, pressure)
	if params.Speed <= 0 {
		return heading, s.space.Zero()
	}
	return heading, s.space.Scale(params.Speed, heading)
}
