package game

// logFlockState logs the goal and, when present, the leader.
func (g *Game[V]) logFlockState() {
	attrs := []any{
		"tick", g.tick,
		"members", g.flock.Len(),
		"mode", g.flock.Mode().String(),
	}
	if gl := g.flock.Goal(); gl != nil {
		attrs = append(attrs, "goal", gl.Position())
	}
	last := g.flock.LastTick()
	attrs = append(attrs, "gate_count", last.GateCount)
	if l := g.flock.Leader(); l != nil {
		attrs = append(attrs,
			"leader", l.Position(),
			"leader_target", l.Target(),
			"leader_arrivals", l.Arrivals(),
		)
	}
	g.logger.Info("flock", attrs...)
}
