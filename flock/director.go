package flock

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/geom"
	"github.com/pthm-cable/flock/systems"
)

// PhaseTimer receives phase boundaries during Step.
type PhaseTimer interface {
	StartPhase(phase string)
}

// Options configures a Director.
type Options[V any] struct {
	Space     geom.Space[V]
	Mode      Mode
	Size      int
	Origin    V
	Boundary  V // half-extents of the spawn volume
	Waypoints []V

	// Agent is the tuning given to every new agent.
	Agent components.Steering

	GateRadius    float64
	GateThreshold float64

	Leader LeaderOptions

	// Index defaults to a grid sized by the flock radius.
	Index systems.SpatialIndex[V]
	// Motion defaults to an Euler integrator.
	Motion systems.MotionApplier[V]

	Seed        int64
	SpawnBuffer int
	Logger      *slog.Logger
	Phases      PhaseTimer
}

// AgentView is a read-only copy of one agent.
type AgentView[V any] struct {
	ID       components.AgentID
	Position V
	Heading  V
	Velocity V
	Steering components.Steering
}

// Director owns a flock: its members, the active goal and the goal
// selection rule. All methods except RequestSpawn and the On* methods must
// be called from the goroutine that drives Step.
type Director[V any] struct {
	space    geom.Space[V]
	mode     Mode
	size     int
	origin   V
	boundary V
	defaults components.Steering
	leadOpts LeaderOptions
	seed     int64
	rng      *rand.Rand
	logger   *slog.Logger
	phases   PhaseTimer

	world     *ecs.World
	agentMap  *ecs.Map4[components.Body[V], components.Motion[V], components.Steering, components.Member]
	bodyMap   *ecs.Map[components.Body[V]]
	motionMap *ecs.Map[components.Motion[V]]
	steerMap  *ecs.Map[components.Steering]
	memberMap *ecs.Map[components.Member]

	// members in creation order
	members []ecs.Entity
	byID    map[components.AgentID]ecs.Entity
	nextID  components.AgentID
	nextSeq uint64

	steering *systems.Steering[V]
	index    systems.SpatialIndex[V]
	gate     *systems.WaypointGate[V]
	motion   systems.MotionApplier[V]

	goal   Goal[V]
	queue  *WaypointQueue[V]
	leader *Leader[V]

	started bool
	tick    uint64
	elapsed float64
	last    TickStats

	spawns chan V

	goalChanged observers[GoalChange[V]]
	gateFilled  observers[GateFill[V]]
	created     observers[AgentEvent[V]]
	removed     observers[AgentEvent[V]]

	// per-tick scratch, indexed by member slot
	snapshot   []components.Body[V]
	positions  []V
	params     []components.Steering
	headings   []V
	velocities []V
	slots      []int
	neighbors  []components.Body[V]
}

// TickStats summarises the last Step.
type TickStats struct {
	Tick          uint64
	Members       int
	MeanNeighbors float64
	GateCount     int
	GateFilled    bool
}

// New validates opts and creates a Director. No agents exist until Start.
func New[V any](opts Options[V]) (*Director[V], error) {
	if opts.Space == nil {
		return nil, fmt.Errorf("flock: nil space")
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, opts.Mode)
	}
	if opts.Size < config.MinFlockSize || opts.Size > config.MaxFlockSize {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrFlockSize, opts.Size, config.MinFlockSize, config.MaxFlockSize)
	}
	if opts.Mode == ModeWaypoint && len(opts.Waypoints) == 0 {
		return nil, ErrNoWaypoints
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	index := opts.Index
	if index == nil {
		index = systems.NewSpatialGrid(opts.Space, max(opts.Agent.FlockRadius, 1))
	}
	motion := opts.Motion
	if motion == nil {
		motion = systems.Integrator[V]{Space: opts.Space}
	}
	buffer := opts.SpawnBuffer
	if buffer <= 0 {
		buffer = 64
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	world := ecs.NewWorld()

	d := &Director[V]{
		space:    opts.Space,
		mode:     opts.Mode,
		size:     opts.Size,
		origin:   opts.Origin,
		boundary: opts.Boundary,
		defaults: opts.Agent,
		leadOpts: opts.Leader,
		seed:     opts.Seed,
		rng:      rng,
		logger:   logger,
		phases:   opts.Phases,

		world:     world,
		agentMap:  ecs.NewMap4[components.Body[V], components.Motion[V], components.Steering, components.Member](world),
		bodyMap:   ecs.NewMap[components.Body[V]](world),
		motionMap: ecs.NewMap[components.Motion[V]](world),
		steerMap:  ecs.NewMap[components.Steering](world),
		memberMap: ecs.NewMap[components.Member](world),
		byID:      make(map[components.AgentID]ecs.Entity),
		nextID:    1,

		steering: systems.NewSteering(opts.Space, rng),
		index:    index,
		gate:     &systems.WaypointGate[V]{Radius: opts.GateRadius, Threshold: opts.GateThreshold},
		motion:   motion,

		spawns: make(chan V, buffer),
	}
	if opts.Mode == ModeWaypoint {
		d.queue = NewWaypointQueue(opts.Waypoints)
	}
	return d, nil
}

// Start selects the initial goal and spawns the configured number of
// agents at random positions inside the boundary. Calling it again has no
// effect; Step calls it if needed.
func (d *Director[V]) Start() {
	if d.started {
		return
	}
	d.started = true

	if d.mode == ModeFollowLeader {
		d.leader = newLeader(d.space, d.rng, d.seed, d.origin, d.boundary, d.leadOpts)
		d.setGoal(d.leader)
	} else {
		d.advanceGoal()
	}

	for i := 0; i < d.size; i++ {
		d.CreateAgent(d.randomPoint())
	}
	d.logger.Debug("flock started",
		"mode", d.mode.String(),
		"members", len(d.members),
	)
}

// Started reports whether Start has run.
func (d *Director[V]) Started() bool { return d.started }

func (d *Director[V]) randomPoint() V {
	return d.space.Add(d.origin, d.space.RandomInBox(d.rng, d.boundary))
}

// CreateAgent adds an agent at p with a random heading and the default
// tuning. It is not gated by mode.
func (d *Director[V]) CreateAgent(p V) components.AgentID {
	return d.CreateAgentWith(p, d.defaults)
}

// CreateAgentWith adds an agent at p with explicit tuning.
func (d *Director[V]) CreateAgentWith(p V, s components.Steering) components.AgentID {
	id := d.nextID
	d.nextID++
	body := components.Body[V]{Position: p, Heading: d.space.RandomUnit(d.rng)}
	motion := components.Motion[V]{Velocity: d.space.Zero()}
	member := components.Member{ID: id, Seq: d.nextSeq}
	d.nextSeq++

	e := d.agentMap.NewEntity(&body, &motion, &s, &member)
	d.members = append(d.members, e)
	d.byID[id] = e

	d.created.publish(AgentEvent[V]{Tick: d.tick, ID: id, Position: p})
	return id
}

// RemoveAgent removes an agent from the flock. It reports false for an
// unknown id.
func (d *Director[V]) RemoveAgent(id components.AgentID) bool {
	e, ok := d.byID[id]
	if !ok {
		return false
	}
	pos := d.bodyMap.Get(e).Position
	for i, m := range d.members {
		if m == e {
			d.members = append(d.members[:i], d.members[i+1:]...)
			break
		}
	}
	delete(d.byID, id)
	d.world.RemoveEntity(e)

	d.removed.publish(AgentEvent[V]{Tick: d.tick, ID: id, Position: pos})
	return true
}

// RequestSpawn queues an agent to be created at p at the start of the next
// tick. It is safe to call from any goroutine and reports false when the
// queue is full.
func (d *Director[V]) RequestSpawn(p V) bool {
	select {
	case d.spawns <- p:
		return true
	default:
		return false
	}
}

// SpawnRequests exposes the inbound spawn channel.
func (d *Director[V]) SpawnRequests() chan<- V { return d.spawns }

// drainSpawns applies the requests queued before this tick began. Requests
// made while draining, including from OnAgentCreated observers, wait for the
// next tick.
func (d *Director[V]) drainSpawns() {
	for n := len(d.spawns); n > 0; n-- {
		select {
		case p := <-d.spawns:
			d.CreateAgent(p)
		default:
			return
		}
	}
}

// setGoal replaces the active goal and notifies observers.
func (d *Director[V]) setGoal(g Goal[V]) {
	prev := d.goal
	d.goal = g
	d.logger.Debug("goal changed",
		"tick", d.tick,
		"mode", d.mode.String(),
		"goal", g.Position(),
	)
	d.goalChanged.publish(GoalChange[V]{Tick: d.tick, Previous: prev, Current: g})
}

// advanceGoal picks the next goal for the flock's mode.
func (d *Director[V]) advanceGoal() {
	switch d.mode {
	case ModeLazyFlight:
		d.setGoal(NewWaypoint(d.randomPoint()))
	case ModeWaypoint:
		d.setGoal(NewWaypoint(d.queue.Next()))
	case ModeFollowLeader:
		// the leader stays the goal for the life of the flock
	}
}

// Subscriptions

// OnGoalChanged registers fn for goal replacements, including the initial
// goal chosen by Start.
func (d *Director[V]) OnGoalChanged(fn func(GoalChange[V])) Subscription {
	return d.goalChanged.subscribe(fn)
}

// OnGateFilled registers fn for gate fills.
func (d *Director[V]) OnGateFilled(fn func(GateFill[V])) Subscription {
	return d.gateFilled.subscribe(fn)
}

// OnAgentCreated registers fn for new agents.
func (d *Director[V]) OnAgentCreated(fn func(AgentEvent[V])) Subscription {
	return d.created.subscribe(fn)
}

// OnAgentRemoved registers fn for removed agents.
func (d *Director[V]) OnAgentRemoved(fn func(AgentEvent[V])) Subscription {
	return d.removed.subscribe(fn)
}

// Accessors

func (d *Director[V]) Space() geom.Space[V] { return d.space }
func (d *Director[V]) Mode() Mode { return d.mode }
func (d *Director[V]) Len() int { return len(d.members) }
func (d *Director[V]) Tick() uint64 { return d.tick }
func (d *Director[V]) Elapsed() float64 { return d.elapsed }
func (d *Director[V]) Seed() int64 { return d.seed }
func (d *Director[V]) Origin() V { return d.origin }
func (d *Director[V]) Boundary() V { return d.boundary }
func (d *Director[V]) LastTick() TickStats { return d.last }

// Goal returns the active goal, or nil before Start.
func (d *Director[V]) Goal() Goal[V] { return d.goal }

// Leader returns the leader in FollowLeader mode, nil otherwise.
func (d *Director[V]) Leader() *Leader[V] { return d.leader }

// Waypoints returns the candidate goals in queue order, nil outside
// Waypoint mode.
func (d *Director[V]) Waypoints() []V {
	if d.queue == nil {
		return nil
	}
	return d.queue.Items()
}

func (d *Director[V]) view(e ecs.Entity) AgentView[V] {
	body := d.bodyMap.Get(e)
	return AgentView[V]{
		ID:       d.memberMap.Get(e).ID,
		Position: body.Position,
		Heading:  body.Heading,
		Velocity: d.motionMap.Get(e).Velocity,
		Steering: *d.steerMap.Get(e),
	}
}

// Agents returns copies of all members in creation order.
func (d *Director[V]) Agents() []AgentView[V] {
	out := make([]AgentView[V], len(d.members))
	for i, e := range d.members {
		out[i] = d.view(e)
	}
	return out
}

// Agent returns a copy of one member.
func (d *Director[V]) Agent(id components.AgentID) (AgentView[V], bool) {
	e, ok := d.byID[id]
	if !ok {
		return AgentView[V]{}, false
	}
	return d.view(e), true
}

// SetWeights replaces the steering weights of one agent.
func (d *Director[V]) SetWeights(id components.AgentID, w components.Weights) bool {
	e, ok := d.byID[id]
	if !ok {
		return false
	}
	d.steerMap.Get(e).Weights = w
	return true
}

// SetPose overrides the pose of one agent. The heading is normalised; a
// zero heading keeps the current one.
func (d *Director[V]) SetPose(id components.AgentID, position, heading V) bool {
	e, ok := d.byID[id]
	if !ok {
		return false
	}
	body := d.bodyMap.Get(e)
	body.Position = position
	if h := d.space.Unit(heading); !d.space.IsZero(h) {
		body.Heading = h
	}
	return true
}
