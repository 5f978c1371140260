// Package components defines the ECS components of a flock agent.
package components

// AgentID identifies an agent for the lifetime of its flock.
// IDs are never reused.
type AgentID uint32

// Weights scale the steering sub-terms before they are summed.
// Negative values invert a behaviour, zero disables it.
type Weights struct {
	Separation float64 `yaml:"separation" json:"separation"`
	Alignment  float64 `yaml:"alignment" json:"alignment"`
	Cohesion   float64 `yaml:"cohesion" json:"cohesion"`
	Goal       float64 `yaml:"goal" json:"goal"`
}

// Body is the pose of an agent. Heading is always unit length.
type Body[V any] struct {
	Position V
	Heading  V
}

// Motion holds the velocity requested for the current tick.
type Motion[V any] struct {
	Velocity V
}

// Steering holds per-agent tuning.
type Steering struct {
	Weights     Weights
	FlockRadius float64
	Speed       float64
}

// Member ties an entity to its flock identity.
// Seq is the creation order and defines member ordering.
type Member struct {
	ID  AgentID
	Seq uint64
}
