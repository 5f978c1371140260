// Package config provides configuration loading for the flock simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flock/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Mode names accepted in flock.mode.
const (
	ModeLazyFlight   = "lazy_flight"
	ModeWaypoint     = "waypoint"
	ModeFollowLeader = "follow_leader"
)

// Flock size bounds.
const (
	MinFlockSize = 1
	MaxFlockSize = 250
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// ValidationError reports a field that is out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Flock      FlockConfig      `yaml:"flock"`
	Agent      AgentConfig      `yaml:"agent"`
	Gate       GateConfig       `yaml:"gate"`
	Leader     LeaderConfig     `yaml:"leader"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Bookmarks  BookmarksConfig  `yaml:"bookmarks"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds stepping and spatial index parameters.
type SimulationConfig struct {
	Dimensions   int     `yaml:"dimensions"`
	DT           float64 `yaml:"dt"`
	Seed         int64   `yaml:"seed"`
	Index        string  `yaml:"index"` // grid, kdtree or linear
	GridCellSize float64 `yaml:"grid_cell_size"`
}

// FlockConfig describes one flock instance.
type FlockConfig struct {
	Mode        string      `yaml:"mode"`
	Size        int         `yaml:"size"`
	Origin      []float64   `yaml:"origin"`
	Boundary    []float64   `yaml:"boundary"` // half-extents of the spawn volume
	Waypoints   [][]float64 `yaml:"waypoints"`
	SpawnBuffer int         `yaml:"spawn_buffer"`
}

// AgentConfig holds the default per-agent tuning.
type AgentConfig struct {
	FlockRadius float64            `yaml:"flock_radius"`
	Speed       float64            `yaml:"speed"`
	Weights     components.Weights `yaml:"weights"`
}

// GateConfig holds waypoint gate parameters.
type GateConfig struct {
	TriggerThreshold float64 `yaml:"trigger_threshold"`
	Radius           float64 `yaml:"radius"`
}

// LeaderConfig holds follow-the-leader parameters.
type LeaderConfig struct {
	Speed            float64 `yaml:"speed"`
	ArrivalEpsilon   float64 `yaml:"arrival_epsilon"` // squared distance
	DirectionalNoise float64 `yaml:"directional_noise"`
	NoiseFrequency   float64 `yaml:"noise_frequency"`
}

// TelemetryConfig holds telemetry window sizes.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`
	BookmarkHistorySize int     `yaml:"bookmark_history_size"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// BookmarksConfig holds bookmark detection thresholds.
type BookmarksConfig struct {
	FastCycle FastCycleConfig `yaml:"fast_cycle"`
	Scatter   ScatterConfig   `yaml:"scatter"`
	Regroup   RegroupConfig   `yaml:"regroup"`
	Stalled   StalledConfig   `yaml:"stalled"`
}

// FastCycleConfig flags windows with unusually many goal changes.
type FastCycleConfig struct {
	Multiplier     float64 `yaml:"multiplier"`
	MinGoalChanges int     `yaml:"min_goal_changes"`
}

// ScatterConfig flags windows where the flock spreads out.
type ScatterConfig struct {
	Multiplier float64 `yaml:"multiplier"`
	MinSpread  float64 `yaml:"min_spread"`
}

// RegroupConfig flags the flock lining up again after being disordered.
type RegroupConfig struct {
	LowPolarization  float64 `yaml:"low_polarization"`
	HighPolarization float64 `yaml:"high_polarization"`
}

// StalledConfig flags runs where the goal stops advancing.
type StalledConfig struct {
	Windows int `yaml:"windows"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	StatsWindowTicks int32 // Telemetry.StatsWindow in ticks
	TicksPerSecond   float64
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the embedded defaults without touching the
// filesystem.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
	}
	return cfg
}

// computeDerived calculates derived values from the loaded config.
func (c *Config) computeDerived() {
	if c.Simulation.DT > 0 {
		c.Derived.TicksPerSecond = 1 / c.Simulation.DT
		c.Derived.StatsWindowTicks = int32(math.Round(c.Telemetry.StatsWindow / c.Simulation.DT))
	}
	if c.Derived.StatsWindowTicks < 1 {
		c.Derived.StatsWindowTicks = 1
	}
}

// Recompute refreshes derived values after fields were changed in code.
func (c *Config) Recompute() { c.computeDerived() }

// Validate checks every field against its allowed range.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	dims := c.Simulation.Dimensions
	if dims != 2 && dims != 3 {
		return invalid("simulation.dimensions", "must be 2 or 3, got %d", dims)
	}
	if c.Simulation.DT <= 0 {
		return invalid("simulation.dt", "must be positive, got %v", c.Simulation.DT)
	}
	switch c.Simulation.Index {
	case "grid", "kdtree", "linear":
	default:
		return invalid("simulation.index", "unknown index %q", c.Simulation.Index)
	}

	switch c.Flock.Mode {
	case ModeLazyFlight, ModeWaypoint, ModeFollowLeader:
	default:
		return invalid("flock.mode", "unknown mode %q", c.Flock.Mode)
	}
	if c.Flock.Size < MinFlockSize || c.Flock.Size > MaxFlockSize {
		return invalid("flock.size", "must be in [%d, %d], got %d", MinFlockSize, MaxFlockSize, c.Flock.Size)
	}
	if err := checkVector("flock.origin", c.Flock.Origin, dims); err != nil {
		return err
	}
	if err := checkVector("flock.boundary", c.Flock.Boundary, dims); err != nil {
		return err
	}
	for i, b := range c.Flock.Boundary {
		if b < 0 {
			return invalid("flock.boundary", "component %d is negative", i)
		}
	}
	for i, w := range c.Flock.Waypoints {
		if err := checkVector(fmt.Sprintf("flock.waypoints[%d]", i), w, dims); err != nil {
			return err
		}
	}
	if c.Flock.Mode == ModeWaypoint && len(c.Flock.Waypoints) == 0 {
		return invalid("flock.waypoints", "waypoint mode needs at least one waypoint")
	}

	w := c.Agent.Weights
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"agent.weights.separation", w.Separation},
		{"agent.weights.alignment", w.Alignment},
		{"agent.weights.cohesion", w.Cohesion},
		{"agent.weights.goal", w.Goal},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return invalid(f.name, "must be finite, got %v", f.v)
		}
	}

	if t := c.Gate.TriggerThreshold; t < 0 || t > 1 {
		return invalid("gate.trigger_threshold", "must be in [0, 1], got %v", t)
	}
	if r := c.Gate.Radius; r < 0 || r > 100 {
		return invalid("gate.radius", "must be in [0, 100], got %v", r)
	}
	if c.Leader.Speed < 0 {
		return invalid("leader.speed", "must not be negative, got %v", c.Leader.Speed)
	}
	return nil
}

// checkVector accepts nil (all zeros) or exactly dims components.
func checkVector(field string, v []float64, dims int) error {
	if v != nil && len(v) != dims {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("want %d components, got %d", dims, len(v))}
	}
	return nil
}

// WriteYAML writes the current config to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
