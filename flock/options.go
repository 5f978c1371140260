package flock

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/geom"
	"github.com/pthm-cable/flock/systems"
)

// OptionsFromConfig builds Director options for space from a loaded config.
// The config's dimensions must match the space.
func OptionsFromConfig[V any](cfg *config.Config, space geom.Space[V], logger *slog.Logger) (Options[V], error) {
	if cfg.Simulation.Dimensions != space.Dims() {
		return Options[V]{}, fmt.Errorf("config has %d dimensions, space has %d", cfg.Simulation.Dimensions, space.Dims())
	}
	mode, err := ParseMode(cfg.Flock.Mode)
	if err != nil {
		return Options[V]{}, err
	}

	cellSize := cfg.Simulation.GridCellSize
	if cellSize <= 0 {
		cellSize = cfg.Agent.FlockRadius
	}
	index, err := systems.NewIndex(cfg.Simulation.Index, space, cellSize)
	if err != nil {
		return Options[V]{}, err
	}

	waypoints := make([]V, len(cfg.Flock.Waypoints))
	for i, w := range cfg.Flock.Waypoints {
		waypoints[i] = space.FromSlice(w)
	}

	return Options[V]{
		Space:     space,
		Mode:      mode,
		Size:      cfg.Flock.Size,
		Origin:    space.FromSlice(cfg.Flock.Origin),
		Boundary:  space.FromSlice(cfg.Flock.Boundary),
		Waypoints: waypoints,
		Agent: components.Steering{
			Weights:     cfg.Agent.Weights,
			FlockRadius: cfg.Agent.FlockRadius,
			Speed:       cfg.Agent.Speed,
		},
		GateRadius:    cfg.Gate.Radius,
		GateThreshold: cfg.Gate.TriggerThreshold,
		Leader: LeaderOptions{
			Speed:            cfg.Leader.Speed,
			ArrivalEpsilon:   cfg.Leader.ArrivalEpsilon,
			DirectionalNoise: cfg.Leader.DirectionalNoise,
			NoiseFrequency:   cfg.Leader.NoiseFrequency,
		},
		Index:       index,
		Seed:        cfg.Simulation.Seed,
		SpawnBuffer: cfg.Flock.SpawnBuffer,
		Logger:      logger,
	}, nil
}
