package game

import (
	"errors"

	"github.com/pthm-cable/flock/flock"
	"github.com/pthm-cable/flock/telemetry"
)

var errNoSnapshotDir = errors.New("no snapshot directory configured")

// subscribe forwards flock events to the collector and metrics.
func (g *Game[V]) subscribe() {
	record := func(ev telemetry.Event) {
		g.collector.Record(ev)
		g.metrics.Record(ev)
	}
	g.subs = append(g.subs,
		g.flock.OnAgentCreated(func(e flock.AgentEvent[V]) {
			record(telemetry.Event{Type: telemetry.EventSpawn, Tick: int32(e.Tick), AgentID: uint32(e.ID)})
		}),
		g.flock.OnAgentRemoved(func(e flock.AgentEvent[V]) {
			record(telemetry.Event{Type: telemetry.EventRemove, Tick: int32(e.Tick), AgentID: uint32(e.ID)})
		}),
		g.flock.OnGoalChanged(func(e flock.GoalChange[V]) {
			record(telemetry.Event{Type: telemetry.EventGoalChange, Tick: int32(e.Tick)})
		}),
		g.flock.OnGateFilled(func(e flock.GateFill[V]) {
			record(telemetry.Event{Type: telemetry.EventGateFill, Tick: int32(e.Tick), Count: e.Count})
		}),
	)
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game[V]) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	stats := g.collector.Flush(g.tick, g.sampleFlock())
	perfStats := g.perfCollector.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats()
		perfStats.LogStats()
		g.logFlockState()
	}

	if err := g.outputManager.WriteTelemetry(stats); err != nil {
		g.logger.Error("failed to write telemetry", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats.ToCSV(g.runID, stats.WindowEndTick)); err != nil {
		g.logger.Error("failed to write perf", "error", err)
	}
	g.metrics.ObserveWindow(stats)

	for _, bm := range g.bookmarkDetector.Check(stats) {
		if g.logStats {
			bm.LogBookmark()
		}
		if err := g.outputManager.WriteBookmark(bm); err != nil {
			g.logger.Error("failed to write bookmark", "error", err)
		}
		if g.snapshotDir != "" {
			g.saveSnapshot(&bm)
		}
	}
}

// sampleFlock gathers the window-end flock sample.
func (g *Game[V]) sampleFlock() telemetry.FlockSample {
	agents := g.flock.Agents()
	positions := make([]V, len(agents))
	headings := make([]V, len(agents))
	for i, a := range agents {
		positions[i] = a.Position
		headings[i] = a.Heading
	}
	goal := g.space.Zero()
	if gl := g.flock.Goal(); gl != nil {
		goal = gl.Position()
	}
	return telemetry.SampleFlock(g.space, positions, headings, goal, g.flock.LastTick().MeanNeighbors)
}

// SaveSnapshot writes the current state to the snapshot directory.
func (g *Game[V]) SaveSnapshot() (string, error) {
	if g.snapshotDir == "" {
		return "", errNoSnapshotDir
	}
	return telemetry.SaveSnapshot(g.CreateSnapshot(nil), g.snapshotDir)
}

func (g *Game[V]) saveSnapshot(bookmark *telemetry.Bookmark) {
	path, err := telemetry.SaveSnapshot(g.CreateSnapshot(bookmark), g.snapshotDir)
	if err != nil {
		g.logger.Error("failed to save snapshot", "error", err)
		return
	}
	g.logger.Info("snapshot saved", "path", path, "tick", g.tick)
}

// CreateSnapshot builds a snapshot from the current state.
func (g *Game[V]) CreateSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	coords := func(v V) []float64 { return telemetry.Coords(g.space, v) }

	snapshot := &telemetry.Snapshot{
		Version:  telemetry.SnapshotVersion,
		RunID:    g.runID,
		Seed:     g.flock.Seed(),
		Tick:     g.tick,
		Mode:     g.flock.Mode().String(),
		Dims:     g.space.Dims(),
		Origin:   coords(g.flock.Origin()),
		Boundary: coords(g.flock.Boundary()),
		Bookmark: bookmark,
	}
	if gl := g.flock.Goal(); gl != nil {
		snapshot.Goal = coords(gl.Position())
	}
	for _, w := range g.flock.Waypoints() {
		snapshot.Waypoints = append(snapshot.Waypoints, coords(w))
	}
	if l := g.flock.Leader(); l != nil {
		snapshot.Leader = &telemetry.LeaderState{
			Position: coords(l.Position()),
			Heading:  coords(l.Heading()),
			Target:   coords(l.Target()),
			Arrivals: l.Arrivals(),
		}
	}

	for _, a := range g.flock.Agents() {
		snapshot.Agents = append(snapshot.Agents, telemetry.AgentState{
			ID:          uint32(a.ID),
			Position:    coords(a.Position),
			Heading:     coords(a.Heading),
			Velocity:    coords(a.Velocity),
			Weights:     a.Steering.Weights,
			FlockRadius: a.Steering.FlockRadius,
			Speed:       a.Steering.Speed,
		})
	}
	return snapshot
}
