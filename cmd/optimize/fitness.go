package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/game"
	"github.com/pthm-cable/flock/geom"
	"github.com/pthm-cable/flock/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	maxTicks    int
	seeds       []int64
	baseConfig  *config.Config
	statsWindow float64

	mu          sync.Mutex
	lastQuality float64 // quality from most recent Evaluate call
	failures    int
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		statsWindow: 2.0,
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// Failures returns the number of runs that could not be started.
func (fe *FitnessEvaluator) Failures() int {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.failures
}

// failedFitness is returned for runs that could not be built.
const failedFitness = 1e9

type seedResult struct {
	fitness float64
	quality float64
}

// Evaluate computes fitness for a parameter vector (lower = better),
// averaged over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows, err := fe.runSimulation(cfg, s)
			if err != nil {
				slog.Warn("evaluation run failed", "seed", s, "error", err)
				fe.mu.Lock()
				fe.failures++
				fe.mu.Unlock()
				results[idx] = seedResult{fitness: failedFitness}
				return
			}
			f, q := fe.computeFitness(cfg, windows)
			results[idx] = seedResult{fitness: f, quality: q}
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalQuality float64
	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
	}
	n := float64(len(fe.seeds))

	fe.mu.Lock()
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return totalFitness / n
}

// runSimulation executes one headless run and returns its window stats.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, seed int64) ([]telemetry.WindowStats, error) {
	var windows []telemetry.WindowStats
	opts := game.Options{
		Seed:           seed,
		StatsWindowSec: fe.statsWindow,
		Config:         cfg,
		Logger:         slog.New(slog.DiscardHandler),
		StatsCallback: func(s telemetry.WindowStats) {
			windows = append(windows, s)
		},
	}

	var err error
	switch cfg.Simulation.Dimensions {
	case 2:
		err = runGame[r2.Vec](geom.Plane{}, opts, fe.maxTicks)
	default:
		err = runGame[r3.Vec](geom.Volume{}, opts, fe.maxTicks)
	}
	return windows, err
}

func runGame[V any](space geom.Space[V], opts game.Options, maxTicks int) error {
	g, err := game.New(space, opts)
	if err != nil {
		return err
	}
	defer g.Unload()
	return g.Run(context.Background(), maxTicks)
}

// copyConfig returns a copy of the base config safe to tune.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Recompute()
	return &cfg
}

const qualityWarmupWindows = 2 // skip first N windows while the flock forms

// computeFitness scores a run (lower = better). Gated modes reward goal
// throughput, follow_leader rewards staying close to the leader; both get up
// to 20% credit for a compact, aligned flock.
func (fe *FitnessEvaluator) computeFitness(cfg *config.Config, windows []telemetry.WindowStats) (fitness, quality float64) {
	valid := windows
	if len(windows) > qualityWarmupWindows {
		valid = windows[qualityWarmupWindows:]
	}
	if len(valid) == 0 {
		return 0, 0
	}

	fillRates := make([]float64, len(valid))
	goalDists := make([]float64, len(valid))
	polarization := make([]float64, len(valid))
	spreads := make([]float64, len(valid))
	for i, w := range valid {
		fillRates[i] = w.FillRate
		goalDists[i] = w.GoalDistMean
		polarization[i] = w.Polarization
		spreads[i] = w.SpreadP90
	}
	fillRate, _ := telemetry.MeanStd(fillRates)
	goalDist, _ := telemetry.MeanStd(goalDists)
	pol, _ := telemetry.MeanStd(polarization)
	spread, _ := telemetry.MeanStd(spreads)

	scale := cfg.Gate.Radius
	if scale <= 0 {
		scale = 1
	}
	quality = clamp01(0.5*pol + 0.5*math.Exp(-spread/scale))

	if cfg.Flock.Mode == config.ModeFollowLeader {
		return goalDist * (1.0 - 0.2*quality), quality
	}
	return -fillRate * (1.0 + 0.2*quality), quality
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
