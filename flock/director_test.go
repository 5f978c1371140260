package flock

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/geom"
	"github.com/pthm-cable/flock/systems"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func planeOptions(mode Mode) Options[r2.Vec] {
	return Options[r2.Vec]{
		Space:     geom.Plane{},
		Mode:      mode,
		Size:      1,
		Boundary:  r2.Vec{X: 10, Y: 10},
		Waypoints: []r2.Vec{{X: 5}, {Y: 5}},
		Agent: components.Steering{
			Weights:     components.Weights{Separation: 1, Alignment: 1, Cohesion: 1, Goal: 1},
			FlockRadius: 3,
			Speed:       1,
		},
		Leader: LeaderOptions{Speed: 2, ArrivalEpsilon: 0.1},
		Seed:   1,
		Logger: quiet,
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeLazyFlight, ModeWaypoint, ModeFollowLeader} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("swarm")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestNewRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options[r2.Vec])
		want   error
	}{
		{"unknown mode", func(o *Options[r2.Vec]) { o.Mode = Mode(9) }, ErrUnknownMode},
		{"empty flock", func(o *Options[r2.Vec]) { o.Size = 0 }, ErrFlockSize},
		{"oversized flock", func(o *Options[r2.Vec]) { o.Size = 251 }, ErrFlockSize},
		{"waypoint mode without waypoints", func(o *Options[r2.Vec]) { o.Waypoints = nil }, ErrNoWaypoints},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := planeOptions(ModeWaypoint)
			tt.mutate(&opts)
			_, err := New(opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}

	t.Run("lazy flight needs no waypoints", func(t *testing.T) {
		opts := planeOptions(ModeLazyFlight)
		opts.Waypoints = nil
		_, err := New(opts)
		assert.NoError(t, err)
	})
}

func TestWaypointQueueIsCyclic(t *testing.T) {
	a, b, c := r2.Vec{X: 1}, r2.Vec{X: 2}, r2.Vec{X: 3}
	q := NewWaypointQueue([]r2.Vec{a, b, c})

	var got []r2.Vec
	for i := 0; i < 7; i++ {
		got = append(got, q.Next())
		assert.Equal(t, 3, q.Len())
	}
	assert.Equal(t, []r2.Vec{a, b, c, a, b, c, a}, got)
	assert.Equal(t, []r2.Vec{b, c, a}, q.Items())
	assert.Equal(t, b, q.Peek())
}

func TestSingleAgentWaypointsAlternateEveryTick(t *testing.T) {
	p1, p2 := r2.Vec{X: 8, Y: 0}, r2.Vec{X: -8, Y: 3}
	opts := planeOptions(ModeWaypoint)
	opts.Waypoints = []r2.Vec{p1, p2}
	opts.GateThreshold = 0

	d, err := New(opts)
	require.NoError(t, err)

	var goals []r2.Vec
	d.OnGoalChanged(func(ev GoalChange[r2.Vec]) {
		goals = append(goals, ev.Current.Position())
	})
	d.Start()
	require.Equal(t, 1, d.Len())

	for i := 0; i < 6; i++ {
		d.Step(0.1)
		assert.True(t, d.LastTick().GateFilled, "tick %d", i+1)
	}
	assert.Equal(t, []r2.Vec{p1, p2, p1, p2, p1, p2, p1}, goals)
	assert.Equal(t, p1, d.Goal().Position())
}

func TestWaypointSequenceHasPeriodM(t *testing.T) {
	wps := []r2.Vec{{X: 1}, {X: 2}, {X: 3}}
	opts := planeOptions(ModeWaypoint)
	opts.Waypoints = wps
	opts.Size = 5
	opts.GateThreshold = 0

	d, err := New(opts)
	require.NoError(t, err)

	var seq []r2.Vec
	d.OnGoalChanged(func(ev GoalChange[r2.Vec]) { seq = append(seq, ev.Current.Position()) })
	for i := 0; i < 30; i++ {
		d.Step(0.05)
	}
	require.Len(t, seq, 31)
	for i := range seq {
		assert.Equal(t, wps[i%3], seq[i], "goal %d", i)
	}
}

func TestGoalIsReplacedNotMutated(t *testing.T) {
	opts := planeOptions(ModeWaypoint)
	opts.GateThreshold = 0
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()

	first := d.Goal()
	firstPos := first.Position()
	d.Step(0.1)
	assert.NotSame(t, first, d.Goal())
	assert.Equal(t, firstPos, first.Position())
}

func TestLazyFlightGoalsStayInBoundary(t *testing.T) {
	opts := planeOptions(ModeLazyFlight)
	opts.Origin = r2.Vec{X: 100, Y: -50}
	opts.Boundary = r2.Vec{X: 7, Y: 3}
	opts.GateThreshold = 0

	d, err := New(opts)
	require.NoError(t, err)

	changes := 0
	d.OnGoalChanged(func(ev GoalChange[r2.Vec]) {
		changes++
		p := ev.Current.Position()
		assert.True(t, geom.Within[r2.Vec](geom.Plane{}, p, opts.Origin, opts.Boundary), "goal %v outside boundary", p)
	})
	for i := 0; i < 500; i++ {
		d.Step(0.02)
	}
	assert.Equal(t, 501, changes)
}

func TestGateHoldsGoalUntilFilled(t *testing.T) {
	opts := planeOptions(ModeWaypoint)
	opts.Size = 4
	opts.GateRadius = 0.01
	opts.GateThreshold = 1
	opts.Agent.Speed = 0

	d, err := New(opts)
	require.NoError(t, err)
	fills := 0
	d.OnGateFilled(func(GateFill[r2.Vec]) { fills++ })

	for i := 0; i < 10; i++ {
		d.Step(0.1)
	}
	assert.Zero(t, fills)
	assert.Equal(t, opts.Waypoints[0], d.Goal().Position())
}

func TestFollowLeaderSkipsGate(t *testing.T) {
	opts := planeOptions(ModeFollowLeader)
	opts.Size = 3
	opts.GateThreshold = 0

	d, err := New(opts)
	require.NoError(t, err)

	changes, fills := 0, 0
	d.OnGoalChanged(func(GoalChange[r2.Vec]) { changes++ })
	d.OnGateFilled(func(GateFill[r2.Vec]) { fills++ })

	d.Start()
	leader := d.Leader()
	require.NotNil(t, leader)
	assert.Same(t, leader, d.Goal())
	start := leader.Position()

	for i := 0; i < 50; i++ {
		d.Step(0.1)
	}
	assert.Equal(t, 1, changes, "only the initial goal")
	assert.Zero(t, fills)
	assert.Same(t, leader, d.Goal())
	assert.NotEqual(t, start, leader.Position())
}

func TestLeaderReachesTargets(t *testing.T) {
	opts := planeOptions(ModeFollowLeader)
	opts.Leader = LeaderOptions{Speed: 4, ArrivalEpsilon: 0.1}
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()

	l := d.Leader()
	for i := 0; i < 400; i++ {
		d.Step(0.1)
		assert.True(t, geom.Within[r2.Vec](geom.Plane{}, l.Position(), opts.Origin, opts.Boundary))
		assert.True(t, geom.Within[r2.Vec](geom.Plane{}, l.Target(), opts.Origin, opts.Boundary))
	}
	assert.Greater(t, l.Arrivals(), 5)
}

func TestLeaderNoiseKeepsSpeed(t *testing.T) {
	opts := planeOptions(ModeFollowLeader)
	opts.Boundary = r2.Vec{X: 500, Y: 500}
	opts.Leader = LeaderOptions{Speed: 3, ArrivalEpsilon: 0.1, DirectionalNoise: 0.5, NoiseFrequency: 1}
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()

	l := d.Leader()
	for i := 0; i < 20; i++ {
		before := l.Position()
		d.Step(0.5)
		if l.Arrivals() > 0 {
			break
		}
		moved := r2.Norm(r2.Sub(l.Position(), before))
		assert.InDelta(t, 1.5, moved, 1e-9)
	}
}

func TestStartSpawnsInsideBoundary(t *testing.T) {
	opts := planeOptions(ModeLazyFlight)
	opts.Size = 250
	opts.Origin = r2.Vec{X: -20, Y: 4}
	opts.Boundary = r2.Vec{X: 3, Y: 9}
	d, err := New(opts)
	require.NoError(t, err)

	created := 0
	d.OnAgentCreated(func(AgentEvent[r2.Vec]) { created++ })
	d.Start()
	d.Start()

	assert.Equal(t, 250, created)
	agents := d.Agents()
	require.Len(t, agents, 250)
	for i, a := range agents {
		assert.True(t, geom.Within[r2.Vec](geom.Plane{}, a.Position, opts.Origin, opts.Boundary))
		assert.InDelta(t, 1, r2.Norm(a.Heading), 1e-9)
		if i > 0 {
			assert.Greater(t, a.ID, agents[i-1].ID, "creation order")
		}
	}
}

func TestHeadingsStayUnit(t *testing.T) {
	opts := planeOptions(ModeWaypoint)
	opts.Size = 40
	d, err := New(opts)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		d.Step(0.05)
	}
	for _, a := range d.Agents() {
		assert.InDelta(t, 1, r2.Norm(a.Heading), 1e-9)
		assert.InDelta(t, opts.Agent.Speed, r2.Norm(a.Velocity), 1e-9)
	}
}

func TestRequestSpawn(t *testing.T) {
	opts := planeOptions(ModeLazyFlight)
	opts.SpawnBuffer = 2
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()

	var events []AgentEvent[r2.Vec]
	d.OnAgentCreated(func(ev AgentEvent[r2.Vec]) { events = append(events, ev) })

	p := r2.Vec{X: 42, Y: 42}
	assert.True(t, d.RequestSpawn(p))
	assert.True(t, d.RequestSpawn(p))
	assert.False(t, d.RequestSpawn(p), "buffer full")
	assert.Equal(t, 1, d.Len(), "requests are applied on the next tick")

	d.Step(0.1)
	assert.Equal(t, 3, d.Len())
	require.Len(t, events, 2)
	assert.Equal(t, p, events[0].Position)

	spawned, ok := d.Agent(events[1].ID)
	require.True(t, ok)
	assert.InDelta(t, 1, r2.Norm(spawned.Heading), 1e-9)
}

func TestSpawnFromAnotherGoroutine(t *testing.T) {
	d, err := New(planeOptions(ModeLazyFlight))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.SpawnRequests() <- r2.Vec{X: 1}
	}()
	<-done
	d.Step(0.1)
	assert.Equal(t, 2, d.Len())
}

func TestSpawnsRequestedWhileDrainingWaitForNextTick(t *testing.T) {
	d, err := New(planeOptions(ModeLazyFlight))
	require.NoError(t, err)
	d.Start()

	// Every new agent asks for a partner.
	d.OnAgentCreated(func(ev AgentEvent[r2.Vec]) { d.RequestSpawn(ev.Position) })
	require.True(t, d.RequestSpawn(r2.Vec{X: 1}))

	for tick := 1; tick <= 5; tick++ {
		d.Step(0.1)
		assert.Equal(t, 1+tick, d.Len(), "tick %d", tick)
	}
}

func TestMotionApplierMovesEveryMember(t *testing.T) {
	type call struct {
		position, velocity, result r2.Vec
		dt                         float64
	}
	var calls []call
	offset := r2.Vec{X: 1, Y: -2}

	opts := planeOptions(ModeLazyFlight)
	opts.Size = 4
	opts.Motion = systems.MotionFunc[r2.Vec](func(position, velocity r2.Vec, dt float64) r2.Vec {
		out := r2.Add(position, offset)
		calls = append(calls, call{position: position, velocity: velocity, result: out, dt: dt})
		return out
	})
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()

	for tick := 0; tick < 3; tick++ {
		before := d.Agents()
		calls = calls[:0]
		d.Step(0.25)

		after := d.Agents()
		require.Len(t, calls, len(before))
		for i, a := range after {
			c := calls[i]
			assert.Equal(t, before[i].Position, c.position)
			assert.Equal(t, 0.25, c.dt)
			assert.InDelta(t, opts.Agent.Speed*a.Heading.X, c.velocity.X, 1e-12)
			assert.InDelta(t, opts.Agent.Speed*a.Heading.Y, c.velocity.Y, 1e-12)
			assert.Equal(t, c.result, a.Position)
		}
	}
}

func TestSetWeightsTunesOneAgent(t *testing.T) {
	opts := planeOptions(ModeWaypoint)
	opts.Waypoints = []r2.Vec{{X: 5}}
	opts.GateRadius = 0
	opts.GateThreshold = 1
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()
	for _, a := range d.Agents() {
		d.RemoveAgent(a.ID)
	}

	north := r2.Vec{Y: 1}
	tuned := d.CreateAgent(r2.Vec{X: -20})
	frozen := d.CreateAgent(r2.Vec{X: -20, Y: 50})
	d.SetPose(tuned, r2.Vec{X: -20}, north)
	d.SetPose(frozen, r2.Vec{X: -20, Y: 50}, north)

	assert.True(t, d.SetWeights(frozen, components.Weights{}))
	assert.False(t, d.SetWeights(components.AgentID(999), components.Weights{}))

	d.Step(0.1)

	a, ok := d.Agent(tuned)
	require.True(t, ok)
	b, ok := d.Agent(frozen)
	require.True(t, ok)
	assert.Equal(t, opts.Agent.Weights, a.Steering.Weights)
	assert.Equal(t, components.Weights{}, b.Steering.Weights)
	assert.Greater(t, a.Heading.X, 0.0, "default weights turn toward the waypoint")
	assert.Equal(t, north, b.Heading, "zero weights leave the heading unchanged")
}

func TestRemoveAgent(t *testing.T) {
	opts := planeOptions(ModeLazyFlight)
	opts.Size = 3
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()

	var removed []components.AgentID
	d.OnAgentRemoved(func(ev AgentEvent[r2.Vec]) { removed = append(removed, ev.ID) })

	ids := []components.AgentID{}
	for _, a := range d.Agents() {
		ids = append(ids, a.ID)
	}
	assert.True(t, d.RemoveAgent(ids[1]))
	assert.False(t, d.RemoveAgent(ids[1]))
	assert.Equal(t, []components.AgentID{ids[1]}, removed)

	left := d.Agents()
	require.Len(t, left, 2)
	assert.Equal(t, ids[0], left[0].ID)
	assert.Equal(t, ids[2], left[1].ID)

	_, ok := d.Agent(ids[1])
	assert.False(t, ok)

	d.Step(0.1)
	assert.Equal(t, 2, d.LastTick().Members)

	next := d.CreateAgent(r2.Vec{})
	assert.Greater(t, next, ids[2], "ids are not reused")
}

func TestUnsubscribe(t *testing.T) {
	opts := planeOptions(ModeWaypoint)
	opts.GateThreshold = 0
	d, err := New(opts)
	require.NoError(t, err)

	a, b := 0, 0
	subA := d.OnGoalChanged(func(GoalChange[r2.Vec]) { a++ })
	d.OnGoalChanged(func(GoalChange[r2.Vec]) { b++ })

	d.Step(0.1)
	assert.Equal(t, 2, a)
	subA.Unsubscribe()
	subA.Unsubscribe()
	d.Step(0.1)
	assert.Equal(t, 2, a)
	assert.Equal(t, 3, b)
}

func TestSimultaneousUpdateIgnoresMemberOrder(t *testing.T) {
	p1, p2 := r2.Vec{X: 0, Y: 0}, r2.Vec{X: 1.5, Y: 0.5}
	h1, h2 := r2.Vec{X: 0, Y: 1}, r2.Vec{X: -1, Y: 0}

	run := func(first, second r2.Vec, fh, sh r2.Vec) map[r2.Vec]r2.Vec {
		opts := planeOptions(ModeLazyFlight)
		opts.GateRadius = 0
		opts.GateThreshold = 1
		opts.Agent.Weights.Goal = 0
		d, err := New(opts)
		require.NoError(t, err)
		d.Start()
		for _, a := range d.Agents() {
			d.RemoveAgent(a.ID)
		}
		ida := d.CreateAgent(first)
		idb := d.CreateAgent(second)
		d.SetPose(ida, first, fh)
		d.SetPose(idb, second, sh)
		d.Step(0.1)

		out := map[r2.Vec]r2.Vec{}
		a, _ := d.Agent(ida)
		b, _ := d.Agent(idb)
		out[first] = a.Position
		out[second] = b.Position
		return out
	}

	forward := run(p1, p2, h1, h2)
	reverse := run(p2, p1, h2, h1)
	for start, end := range forward {
		other := reverse[start]
		assert.InDelta(t, end.X, other.X, 1e-12)
		assert.InDelta(t, end.Y, other.Y, 1e-12)
	}
}

func TestZeroSpeedDoesNotMove(t *testing.T) {
	opts := planeOptions(ModeLazyFlight)
	opts.Size = 10
	opts.Agent.Speed = 0
	d, err := New(opts)
	require.NoError(t, err)
	d.Start()
	before := d.Agents()
	d.Step(1)
	after := d.Agents()
	for i := range before {
		assert.Equal(t, before[i].Position, after[i].Position)
		assert.Equal(t, r2.Vec{}, after[i].Velocity)
	}
}

func TestVolumeFlock(t *testing.T) {
	opts := Options[r3.Vec]{
		Space:     geom.Volume{},
		Mode:      ModeWaypoint,
		Size:      30,
		Boundary:  r3.Vec{X: 10, Y: 10, Z: 10},
		Waypoints: []r3.Vec{{X: 8}, {Z: -8}},
		Agent: components.Steering{
			Weights:     components.Weights{Separation: 1.5, Alignment: 1, Cohesion: 0.5, Goal: 1},
			FlockRadius: 4,
			Speed:       5,
		},
		GateRadius:    10,
		GateThreshold: 0.3,
		Seed:          3,
		Logger:        quiet,
	}
	d, err := New(opts)
	require.NoError(t, err)

	fills := 0
	d.OnGateFilled(func(ev GateFill[r3.Vec]) {
		fills++
		assert.GreaterOrEqual(t, float64(ev.Count), float64(ev.FlockSize)*0.3)
	})
	for i := 0; i < 3000; i++ {
		d.Step(0.02)
	}
	assert.Greater(t, fills, 0, "flock should reach at least one waypoint")
	for _, a := range d.Agents() {
		assert.InDelta(t, 1, r3.Norm(a.Heading), 1e-9)
		assert.False(t, math.IsNaN(a.Position.X))
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	opts, err := OptionsFromConfig[r3.Vec](cfg, geom.Volume{}, quiet)
	require.NoError(t, err)
	assert.Equal(t, ModeWaypoint, opts.Mode)
	assert.Len(t, opts.Waypoints, len(cfg.Flock.Waypoints))
	assert.Equal(t, r3.Vec{X: 30, Y: 0, Z: 30}, opts.Waypoints[0])
	assert.Equal(t, cfg.Agent.Weights, opts.Agent.Weights)

	d, err := New(opts)
	require.NoError(t, err)
	d.Step(cfg.Simulation.DT)
	assert.Equal(t, cfg.Flock.Size, d.Len())

	_, err = OptionsFromConfig[r2.Vec](cfg, geom.Plane{}, quiet)
	assert.Error(t, err)
}
