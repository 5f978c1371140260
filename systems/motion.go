package systems

import "github.com/pthm-cable/flock/geom"

// MotionApplier displaces an agent given the velocity chosen this tick.
// The flock never moves agents except through this interface.
type MotionApplier[V any] interface {
	Apply(position, velocity V, dt float64) V
}

// Integrator is the default MotionApplier: explicit Euler, no drag.
type Integrator[V any] struct {
	Space geom.Space[V]
}

// Apply returns position + velocity*dt.
func (m Integrator[V]) Apply(position, velocity V, dt float64) V {
	return m.Space.Add(position, m.Space.Scale(dt, velocity))
}

// MotionFunc adapts a function to MotionApplier.
type MotionFunc[V any] func(position, velocity V, dt float64) V

func (f MotionFunc[V]) Apply(position, velocity V, dt float64) V {
	return f(position, velocity, dt)
}
