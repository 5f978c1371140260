package flock

import (
	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

// Step advances the flock by one fixed tick of length dt.
//
// Every agent decides its heading from positions frozen at the start of the
// tick; headings, velocities and positions are committed together
// afterwards. The gate is evaluated once on the moved positions.
func (d *Director[V]) Step(dt float64) {
	if !d.started {
		d.Start()
	}
	d.tick++
	d.elapsed += dt

	d.phase(telemetry.PhaseIntake)
	d.drainSpawns()

	d.phase(telemetry.PhaseSpatialIndex)
	d.capture()
	d.index.Rebuild(d.positions)

	d.phase(telemetry.PhaseSteering)
	var goal *V
	if d.goal != nil {
		p := d.goal.Position()
		goal = &p
	}
	totalNeighbors := 0
	for i := range d.snapshot {
		self := d.snapshot[i]
		d.slots = d.index.QueryRadius(d.slots[:0], self.Position, d.params[i].FlockRadius, i)
		d.neighbors = d.neighbors[:0]
		for _, s := range d.slots {
			d.neighbors = append(d.neighbors, d.snapshot[s])
		}
		totalNeighbors += len(d.slots)
		d.headings[i], d.velocities[i] = d.steering.UpdateAgent(self, d.params[i], d.neighbors, goal)
	}

	d.phase(telemetry.PhaseMotion)
	for i, e := range d.members {
		body := d.bodyMap.Get(e)
		body.Heading = d.headings[i]
		d.motionMap.Get(e).Velocity = d.velocities[i]
		body.Position = d.motion.Apply(body.Position, d.velocities[i], dt)
		d.positions[i] = body.Position
	}

	if d.leader != nil {
		d.phase(telemetry.PhaseLeader)
		d.leader.Update(dt)
	}

	d.phase(telemetry.PhaseGate)
	d.index.Rebuild(d.positions)
	d.last = TickStats{Tick: d.tick, Members: len(d.members)}
	if n := len(d.members); n > 0 {
		d.last.MeanNeighbors = float64(totalNeighbors) / float64(n)
	}
	if d.mode != ModeFollowLeader {
		d.checkGate()
	}
}

// capture copies member state into the tick snapshot.
func (d *Director[V]) capture() {
	n := len(d.members)
	d.snapshot = resize(d.snapshot, n)
	d.positions = resize(d.positions, n)
	d.params = resize(d.params, n)
	d.headings = resize(d.headings, n)
	d.velocities = resize(d.velocities, n)
	for i, e := range d.members {
		body := d.bodyMap.Get(e)
		d.snapshot[i] = components.Body[V]{
			Position: body.Position,
			Heading:  d.space.Unit(body.Heading),
		}
		d.positions[i] = body.Position
		d.params[i] = *d.steerMap.Get(e)
	}
}

// checkGate advances the goal when enough members are near it.
func (d *Director[V]) checkGate() {
	center := d.goal.Position()
	count := d.gate.Count(d.index, center)
	d.last.GateCount = count
	if !systems.Filled(count, len(d.members), d.gate.Threshold) {
		return
	}
	d.last.GateFilled = true
	d.gateFilled.publish(GateFill[V]{
		Tick:      d.tick,
		Goal:      center,
		Count:     count,
		FlockSize: len(d.members),
	})
	d.advanceGoal()
}

func (d *Director[V]) phase(name string) {
	if d.phases != nil {
		d.phases.StartPhase(name)
	}
}

func resize[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	return s[:n]
}
