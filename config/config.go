// Package config provides configuration loading and access for the solver.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all solver configuration parameters.
type Config struct {
	Solver    SolverConfig    `yaml:"solver"`
	Fluid     FluidConfig     `yaml:"fluid"`
	Hash      HashConfig      `yaml:"hash"`
	Domain    DomainConfig    `yaml:"domain"`
	Boundary  BoundaryConfig  `yaml:"boundary"`
	Smoothing SmoothingConfig `yaml:"smoothing"`
	Surface   SurfaceConfig   `yaml:"surface"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SolverConfig holds the structural parameters. They are fixed for the
// lifetime of a solver; changing them means building a new one.
type SolverConfig struct {
	NumParticles    int   `yaml:"num_particles"`
	NumBuckets      int   `yaml:"num_buckets"`
	ThreadsPerGroup int   `yaml:"threads_per_group"` // Must be a power of two
	Iterations      int   `yaml:"iterations"`        // density/force/integrate passes per step
	Seed            int64 `yaml:"seed"`              // Seeding and hash jitter RNG
}

// FluidConfig holds the SPH material constants.
type FluidConfig struct {
	Radius      float64 `yaml:"radius"`
	GasConstant float64 `yaml:"gas_constant"`
	RestDensity float64 `yaml:"rest_density"`
	Mass        float64 `yaml:"mass"`
	Viscosity   float64 `yaml:"viscosity"`
	Gravity     float64 `yaml:"gravity"`
	DeltaTime   float64 `yaml:"delta_time"`
}

// HashConfig holds spatial hash parameters.
type HashConfig struct {
	CellScale float64 `yaml:"cell_scale"` // Cell size = cell_scale * radius
	Jitter    bool    `yaml:"jitter"`     // Per-step random grid offset and axis flip
}

// DomainConfig describes the seeding volume.
type DomainConfig struct {
	Min      [3]float64 `yaml:"min"`
	Max      [3]float64 `yaml:"max"`
	InitSize float64    `yaml:"init_size"` // Edge length of each dam-break cluster
}

// BoundaryConfig holds the plane set geometry and response.
type BoundaryConfig struct {
	Mode             string     `yaml:"mode"` // box, wave, ground
	Floor            float64    `yaml:"floor"`
	Ceiling          float64    `yaml:"ceiling"`
	HalfWidth        float64    `yaml:"half_width"` // Walls at x = ±half_width
	HalfDepth        float64    `yaml:"half_depth"` // Walls at z = ±half_depth
	Restitution      float64    `yaml:"restitution"`
	PenaltyStiffness float64    `yaml:"penalty_stiffness"` // 0 disables the force-pass penalty
	PenaltyDamping   float64    `yaml:"penalty_damping"`
	Wave             WaveConfig `yaml:"wave"`
}

// WaveConfig controls the moving side walls of wave mode.
type WaveConfig struct {
	Amplitude float64 `yaml:"amplitude"`  // Inward wall travel
	Rate      float64 `yaml:"rate"`       // Clock multiplier inside sin²
	ClockStep float64 `yaml:"clock_step"` // Clock advance per active step
}

// SmoothingConfig toggles XSPH velocity smoothing.
type SmoothingConfig struct {
	Enabled bool    `yaml:"enabled"`
	Factor  float64 `yaml:"factor"`
}

// SurfaceConfig toggles the renderer-facing surface estimation buffers.
type SurfaceConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`          // Simulation seconds per stats window
	PerfCollectorWindow int     `yaml:"perf_collector_window"` // Steps in the rolling perf window
	DiagnosticsInterval int     `yaml:"diagnostics_interval"`  // Steps between diagnostics (0 = off)
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Radius32   float32    // Fluid.Radius as float32
	RadiusSq32 float32    // Radius squared
	CellSize32 float32    // Hash cell edge
	DT32       float32    // Fluid.DeltaTime as float32
	NumGroups  int        // Bucket thread groups
	MinBounds  mgl32.Vec3 // Domain.Min as float32
	MaxBounds  mgl32.Vec3 // Domain.Max as float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults with derived values filled in.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are broken: %v", err))
	}
	return cfg
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
		// Unmarshal into same struct - only overwrites fields present in file
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

// Clone returns a deep copy. Solvers keep their own clone so later edits to
// a shared config cannot reach a running pipeline.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Recompute refreshes derived values after fields were edited in code.
func (c *Config) Recompute() {
	c.computeDerived()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	d := &c.Derived
	d.Radius32 = float32(c.Fluid.Radius)
	d.RadiusSq32 = d.Radius32 * d.Radius32
	d.CellSize32 = float32(c.Hash.CellScale * c.Fluid.Radius)
	d.DT32 = float32(c.Fluid.DeltaTime)

	d.NumGroups = 0
	if c.Solver.ThreadsPerGroup > 0 {
		d.NumGroups = (c.Solver.NumBuckets + c.Solver.ThreadsPerGroup - 1) / c.Solver.ThreadsPerGroup
	}

	d.MinBounds = mgl32.Vec3{float32(c.Domain.Min[0]), float32(c.Domain.Min[1]), float32(c.Domain.Min[2])}
	d.MaxBounds = mgl32.Vec3{float32(c.Domain.Max[0]), float32(c.Domain.Max[1]), float32(c.Domain.Max[2])}
}

// Validate rejects configurations the pipeline cannot represent. It runs
// before any buffer is allocated.
func (c *Config) Validate() error {
	s := c.Solver
	if s.NumParticles <= 0 {
		return fmt.Errorf("%w: num_particles must be positive, got %d", ErrInvalid, s.NumParticles)
	}
	if s.NumBuckets <= 0 {
		return fmt.Errorf("%w: num_buckets must be positive, got %d", ErrInvalid, s.NumBuckets)
	}
	w := s.ThreadsPerGroup
	if w <= 0 || w&(w-1) != 0 {
		return fmt.Errorf("%w: threads_per_group must be a power of two, got %d", ErrInvalid, w)
	}
	// Two-level scan: the group totals must fit in one group.
	if s.NumBuckets > w*w {
		return fmt.Errorf("%w: num_buckets %d exceeds threads_per_group² (%d)", ErrInvalid, s.NumBuckets, w*w)
	}
	if s.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalid, s.Iterations)
	}

	f := c.Fluid
	switch {
	case f.Radius <= 0:
		return fmt.Errorf("%w: radius must be positive", ErrInvalid)
	case f.Mass <= 0:
		return fmt.Errorf("%w: mass must be positive", ErrInvalid)
	case f.RestDensity <= 0:
		return fmt.Errorf("%w: rest_density must be positive", ErrInvalid)
	case f.DeltaTime <= 0:
		return fmt.Errorf("%w: delta_time must be positive", ErrInvalid)
	}
	if c.Hash.CellScale <= 0 {
		return fmt.Errorf("%w: hash.cell_scale must be positive", ErrInvalid)
	}
	for i := 0; i < 3; i++ {
		if c.Domain.Min[i] >= c.Domain.Max[i] {
			return fmt.Errorf("%w: domain min must be below max on axis %d", ErrInvalid, i)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
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
