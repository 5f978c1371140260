package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/geom"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	RunID           string  `csv:"run_id"`
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Membership at window end
	Members int `csv:"members"`

	// Events during window
	Spawns      int     `csv:"spawns"`
	Removals    int     `csv:"removals"`
	GoalChanges int     `csv:"goal_changes"`
	GateFills   int     `csv:"gate_fills"`
	FillRate    float64 `csv:"fill_rate"` // gate fills per simulated second
	LastFillAt  int     `csv:"last_fill_count"`

	// Shape of the flock (sampled at window end)
	Polarization  float64 `csv:"polarization"`
	SpreadMean    float64 `csv:"spread_mean"`
	SpreadP50     float64 `csv:"spread_p50"`
	SpreadP90     float64 `csv:"spread_p90"`
	GoalDistMean  float64 `csv:"goal_dist_mean"`
	MeanNeighbors float64 `csv:"mean_neighbors"`
}

// FlockSample is the per-agent data the collector needs at window end.
type FlockSample struct {
	Members int
	// Polarization is the length of the mean heading, 1 when all agents
	// fly the same way and near 0 when headings cancel.
	Polarization float64
	// Spread holds each agent's distance to the flock centroid.
	Spread []float64
	// GoalDistance holds each agent's distance to the active goal.
	GoalDistance  []float64
	MeanNeighbors float64
}

// SampleFlock computes a FlockSample from positions and headings.
func SampleFlock[V any](space geom.Space[V], positions, headings []V, goal V, meanNeighbors float64) FlockSample {
	n := len(positions)
	s := FlockSample{Members: n, MeanNeighbors: meanNeighbors}
	if n == 0 {
		return s
	}

	centroid := space.Zero()
	for _, p := range positions {
		centroid = space.Add(centroid, p)
	}
	centroid = space.Scale(1/float64(n), centroid)

	heading := space.Zero()
	for _, h := range headings {
		heading = space.Add(heading, h)
	}
	if len(headings) > 0 {
		s.Polarization = space.Norm(heading) / float64(len(headings))
	}

	s.Spread = make([]float64, n)
	s.GoalDistance = make([]float64, n)
	for i, p := range positions {
		s.Spread[i] = geom.Distance(space, p, centroid)
		s.GoalDistance[i] = geom.Distance(space, p, goal)
	}
	return s
}

// ComputeSpreadStats returns the mean, median and 90th percentile of values.
func ComputeSpreadStats(values []float64) (mean, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	return mean, p50, p90
}

// MeanStd returns the mean and sample standard deviation of values.
// The deviation is 0 for fewer than two values.
func MeanStd(values []float64) (mean, std float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	mean, std = stat.MeanStdDev(values, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("members", s.Members),
		slog.Int("spawns", s.Spawns),
		slog.Int("removals", s.Removals),
		slog.Int("goal_changes", s.GoalChanges),
		slog.Int("gate_fills", s.GateFills),
		slog.Float64("fill_rate", s.FillRate),
		slog.Float64("polarization", s.Polarization),
		slog.Float64("spread_mean", s.SpreadMean),
		slog.Float64("spread_p50", s.SpreadP50),
		slog.Float64("spread_p90", s.SpreadP90),
		slog.Float64("goal_dist_mean", s.GoalDistMean),
		slog.Float64("mean_neighbors", s.MeanNeighbors),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"members", s.Members,
		"spawns", s.Spawns,
		"removals", s.Removals,
		"goal_changes", s.GoalChanges,
		"gate_fills", s.GateFills,
		"fill_rate", s.FillRate,
		"polarization", s.Polarization,
		"spread_mean", s.SpreadMean,
		"spread_p90", s.SpreadP90,
		"goal_dist_mean", s.GoalDistMean,
		"mean_neighbors", s.MeanNeighbors,
	)
}
