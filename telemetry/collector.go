package telemetry

import "math"

// Collector accumulates events within time windows and produces WindowStats.
type Collector struct {
	runID               string
	windowDurationTicks int32
	dt                  float64

	windowStartTick int32

	// Event counters for current window
	spawns      int
	removals    int
	goalChanges int
	gateFills   int
	gateCount   int // members inside the gate at the last fill
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(runID string, windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int32(math.Round(windowDurationSec / dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		runID:               runID,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// Record counts an event in the current window.
func (c *Collector) Record(ev Event) {
	switch ev.Type {
	case EventSpawn:
		c.spawns++
	case EventRemove:
		c.removals++
	case EventGoalChange:
		c.goalChanges++
	case EventGateFill:
		c.gateFills++
		c.gateCount = ev.Count
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats from the counters and a flock sample taken at
// window end, then resets counters for the next window.
func (c *Collector) Flush(currentTick int32, sample FlockSample) WindowStats {
	spreadMean, spreadP50, spreadP90 := ComputeSpreadStats(sample.Spread)
	goalMean, _, _ := ComputeSpreadStats(sample.GoalDistance)

	var fillRate float64
	if elapsed := float64(currentTick-c.windowStartTick) * c.dt; elapsed > 0 {
		fillRate = float64(c.gateFills) / elapsed
	}

	stats := WindowStats{
		RunID:           c.runID,
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Members:     sample.Members,
		Spawns:      c.spawns,
		Removals:    c.removals,
		GoalChanges: c.goalChanges,
		GateFills:   c.gateFills,
		FillRate:    fillRate,
		LastFillAt:  c.gateCount,

		Polarization:  sample.Polarization,
		SpreadMean:    spreadMean,
		SpreadP50:     spreadP50,
		SpreadP90:     spreadP90,
		GoalDistMean:  goalMean,
		MeanNeighbors: sample.MeanNeighbors,
	}

	c.windowStartTick = currentTick
	c.spawns = 0
	c.removals = 0
	c.goalChanges = 0
	c.gateFills = 0
	c.gateCount = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
