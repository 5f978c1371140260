package game

import (
	"fmt"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/telemetry"
)

// Restore replaces the flock's members with the agents of a snapshot.
// Agents get fresh ids; goal and tick are not restored.
func (g *Game[V]) Restore(s *telemetry.Snapshot) error {
	if s.Dims != g.space.Dims() {
		return fmt.Errorf("snapshot has %d dimensions, game has %d", s.Dims, g.space.Dims())
	}
	g.flock.Start()

	for _, a := range g.flock.Agents() {
		g.flock.RemoveAgent(a.ID)
	}
	for _, a := range s.Agents {
		id := g.flock.CreateAgentWith(g.space.FromSlice(a.Position), components.Steering{
			Weights:     a.Weights,
			FlockRadius: a.FlockRadius,
			Speed:       a.Speed,
		})
		g.flock.SetPose(id, g.space.FromSlice(a.Position), g.space.FromSlice(a.Heading))
	}

	g.logger.Info("snapshot restored",
		"run_id", s.RunID,
		"tick", s.Tick,
		"agents", len(s.Agents),
	)
	return nil
}
