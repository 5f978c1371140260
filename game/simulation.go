package game

import (
	"context"
	"time"

	"github.com/pthm-cable/flock/telemetry"
)

// Step advances the flock one tick and flushes telemetry when a window ends.
func (g *Game[V]) Step() {
	start := time.Now()
	g.perfCollector.StartTick()

	g.flock.Step(g.dt)
	g.tick = int32(g.flock.Tick())

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()
	g.perfCollector.EndTick()

	g.metrics.ObserveTick(time.Since(start))
}

// Run steps until ctx is cancelled or maxTicks is reached (0 = unlimited).
func (g *Game[V]) Run(ctx context.Context, maxTicks int) error {
	for {
		if maxTicks > 0 && int(g.tick) >= maxTicks {
			g.logger.Info("max ticks reached", "tick", g.tick)
			return nil
		}
		select {
		case <-ctx.Done():
			g.logger.Info("run stopped", "tick", g.tick, "reason", ctx.Err())
			return ctx.Err()
		default:
		}
		g.Step()
	}
}
