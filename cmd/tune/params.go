package main

import (
	"math"

	"github.com/pthm-cable/sphgrid/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable hash parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "cell_scale", Path: "hash.cell_scale", Min: 1.0, Max: 4.0, Default: 2.0},
			// Rounded to a power of two and capped at threads_per_group²
			{Name: "buckets_log2", Path: "solver.num_buckets", Min: 8, Max: 20, Default: 20},
			// Jitter is on above 0.5
			{Name: "jitter", Path: "hash.jitter", Min: 0, Max: 1, Default: 1},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = math.Max(spec.Min, math.Min(spec.Max, v[i]))
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct and refreshes
// its derived values. Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)

	cfg.Hash.CellScale = clamped[0]

	buckets := 1 << int(math.Round(clamped[1]))
	if w := cfg.Solver.ThreadsPerGroup; buckets > w*w {
		buckets = w * w
	}
	cfg.Solver.NumBuckets = buckets

	cfg.Hash.Jitter = clamped[2] >= 0.5

	cfg.Recompute()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	jitter := 0.0
	if cfg.Hash.Jitter {
		jitter = 1
	}
	return []float64{
		cfg.Hash.CellScale,
		math.Log2(float64(cfg.Solver.NumBuckets)),
		jitter,
	}
}
