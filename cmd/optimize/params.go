package main

import (
	"github.com/pthm-cable/flock/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "separation", Path: "agent.weights.separation", Min: 0, Max: 4, Default: 1.5},
			{Name: "alignment", Path: "agent.weights.alignment", Min: 0, Max: 4, Default: 1},
			{Name: "cohesion", Path: "agent.weights.cohesion", Min: 0, Max: 4, Default: 0.5},
			{Name: "goal", Path: "agent.weights.goal", Min: 0, Max: 4, Default: 1},
			{Name: "flock_radius", Path: "agent.flock_radius", Min: 1, Max: 15, Default: 5},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int { return len(pv.Specs) }

func (s ParamSpec) span() float64 { return s.Max - s.Min }

// mapSpecs applies fn to every value with its spec.
func (pv *ParamVector) mapSpecs(in []float64, fn func(ParamSpec, float64) float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = fn(spec, in[i])
	}
	return out
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	return pv.mapSpecs(make([]float64, len(pv.Specs)), func(s ParamSpec, _ float64) float64 { return s.Default })
}

// Normalize maps raw values onto [0,1] so CMA-ES sees equal scales.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	return pv.mapSpecs(raw, func(s ParamSpec, v float64) float64 { return (v - s.Min) / s.span() })
}

// Denormalize is the inverse of Normalize.
func (pv *ParamVector) Denormalize(unit []float64) []float64 {
	return pv.mapSpecs(unit, func(s ParamSpec, v float64) float64 { return s.Min + v*s.span() })
}

// Clamp limits every value to its bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	return pv.mapSpecs(v, func(s ParamSpec, x float64) float64 { return min(max(x, s.Min), s.Max) })
}

// ApplyToConfig clamps values and writes them into cfg. Order matches Specs.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)
	cfg.Agent.Weights.Separation = c[0]
	cfg.Agent.Weights.Alignment = c[1]
	cfg.Agent.Weights.Cohesion = c[2]
	cfg.Agent.Weights.Goal = c[3]
	cfg.Agent.FlockRadius = c[4]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Agent.Weights.Separation,
		cfg.Agent.Weights.Alignment,
		cfg.Agent.Weights.Cohesion,
		cfg.Agent.Weights.Goal,
		cfg.Agent.FlockRadius,
	}
}
