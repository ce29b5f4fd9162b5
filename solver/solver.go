// Package solver owns the particle state of one fluid and runs the step
// pipeline over it.
package solver

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/compute"
	"github.com/pthm-cable/sphgrid/config"
	"github.com/pthm-cable/sphgrid/systems"
	"github.com/pthm-cable/sphgrid/telemetry"
)

// Options holds run settings that sit outside the physics config.
type Options struct {
	LogStats       bool    // log window stats and bookmarks via slog
	StatsWindowSec float64 // 0 = use telemetry.stats_window
	OutputDir      string  // CSV output directory, empty disables output
}

// Solver holds the complete fluid state.
type Solver struct {
	mu sync.RWMutex // held for writing by Step, for reading by ReadState

	queueMu  sync.Mutex
	commands []command

	cfg *config.Config
	dev *compute.Device

	particles *components.ParticleBuffer
	index     *systems.SpatialIndex
	acc       *systems.ForceAccumulator
	fluid     *systems.FluidSystem
	boundary  *systems.BoundarySystem
	jitter    *systems.JitterSource
	diag      *systems.DiagnosticsPass
	surface   *systems.SurfaceEstimator // nil unless surface.enabled

	// State
	step        int64
	lastClamped int
	closed      bool

	// Telemetry
	perfCollector    *telemetry.PerfCollector
	collector        *telemetry.Collector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	logStats         bool
}

// New creates a solver with default options.
func New(cfg *config.Config) (*Solver, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions validates cfg, allocates every buffer and seeds the
// dam-break initial state. The solver keeps its own copy of cfg.
func NewWithOptions(cfg *config.Config, opts Options) (*Solver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalid)
	}
	cfg = cfg.Clone()
	cfg.Recompute()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	boundary, err := systems.NewBoundarySystem(cfg.Boundary)
	if err != nil {
		return nil, fmt.Errorf("creating boundary: %w", err)
	}

	n := cfg.Solver.NumParticles
	index, err := systems.NewSpatialIndex(n, cfg.Solver.NumBuckets, cfg.Solver.ThreadsPerGroup, cfg.Derived.CellSize32)
	if err != nil {
		return nil, fmt.Errorf("creating spatial index: %w", err)
	}

	dev := compute.NewDevice(cfg.Solver.ThreadsPerGroup, 0)
	s := &Solver{
		cfg:           cfg,
		dev:           dev,
		particles:     components.NewParticleBuffer(n),
		index:         index,
		acc:           systems.NewForceAccumulator(n),
		fluid:         systems.NewFluidSystem(cfg.Derived.Radius32, systems.NewFluidParams(cfg), dev.NumWorkers()),
		boundary:      boundary,
		jitter:        systems.NewJitterSource(cfg.Solver.Seed, cfg.Derived.CellSize32, cfg.Hash.Jitter),
		diag:          systems.NewDiagnosticsPass(dev),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		logStats:      opts.LogStats,
	}
	if cfg.Surface.Enabled {
		s.surface = systems.NewSurfaceEstimator(n, dev.NumWorkers())
	}

	if err := s.initTelemetry(opts); err != nil {
		dev.Close()
		return nil, err
	}

	seedDamBreak(s.particles, cfg, rand.New(rand.NewSource(cfg.Solver.Seed)))

	slog.Info("solver initialized",
		"particles", n,
		"buckets", cfg.Solver.NumBuckets,
		"threads_per_group", cfg.Solver.ThreadsPerGroup,
		"workers", dev.NumWorkers(),
		"cell_size", cfg.Derived.CellSize32,
		"mode", boundary.Mode().String(),
		"seed", cfg.Solver.Seed,
	)
	return s, nil
}

// Close stops the worker pool and flushes output files. The solver must not
// be stepped afterwards.
func (s *Solver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.dev.Close()
	err := s.outputManager.Close()
	slog.Info("solver closed", "step", s.step)
	return err
}

// StepCount returns the number of completed steps.
func (s *Solver) StepCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.step
}

// LastClamped returns how many particle clamps the last step made, summed
// over its iterations.
func (s *Solver) LastClamped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastClamped
}

// NumParticles returns the fixed particle count.
func (s *Solver) NumParticles() int {
	return s.particles.Len()
}

// Config returns the solver's own copy of its configuration. Callers must
// treat it as read-only.
func (s *Solver) Config() *config.Config {
	return s.cfg
}

// Mode returns the active boundary mode.
func (s *Solver) Mode() components.BoundaryMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundary.Mode()
}

// Particle returns particle i in original index order.
func (s *Solver) Particle(i int) components.Particle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.particles.Get(i)
}

// Diagnostics recomputes hash quality counters against the last build as it
// was hashed. It returns the zero value once the solver is closed.
func (s *Solver) Diagnostics() systems.HashDiagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return systems.HashDiagnostics{}
	}
	return s.diag.Run(s.dev, s.index, s.cfg.Derived.RadiusSq32)
}

// MeasureRecall compares the hash-bucket neighbor search of the last build
// with exhaustive search. It is O(N²) and meant for tuning. It returns the
// zero value once the solver is closed.
func (s *Solver) MeasureRecall() systems.RecallStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return systems.RecallStats{}
	}
	return systems.MeasureRecall(s.dev, s.index, s.cfg.Derived.RadiusSq32)
}

// PerfStats returns the rolling per-stage timings.
func (s *Solver) PerfStats() telemetry.PerfStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perfCollector.Stats()
}
