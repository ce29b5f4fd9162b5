package solver

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/sphgrid/systems"
	"github.com/pthm-cable/sphgrid/telemetry"
)

// bookmarkHistory is the number of windows bookmarks compare against.
const bookmarkHistory = 10

func (s *Solver) initTelemetry(opts Options) error {
	window := s.cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		window = opts.StatsWindowSec
	}
	s.collector = telemetry.NewCollector(window, s.cfg.Fluid.DeltaTime, s.particles.Len())
	s.bookmarkDetector = telemetry.NewBookmarkDetector(bookmarkHistory)

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("creating output manager: %w", err)
	}
	if err := om.WriteConfig(s.cfg); err != nil {
		om.Close()
		return fmt.Errorf("writing config snapshot: %w", err)
	}
	s.outputManager = om
	return nil
}

// record counts a telemetry event in the current window.
func (s *Solver) record(ev telemetry.Event) {
	s.collector.Record(ev)
}

// recordStep runs at the end of every step with the write lock held.
func (s *Solver) recordStep(clamped int, queries systems.QueryStats) {
	if clamped > 0 {
		s.record(telemetry.NewClampEvent(s.step, clamped))
	}
	s.collector.RecordQueries(queries.Accessed, queries.Accepted)

	if iv := s.cfg.Telemetry.DiagnosticsInterval; iv > 0 && s.step%int64(iv) == 0 {
		s.logDiagnostics()
	}
	s.flushTelemetry()
}

// logDiagnostics runs the diagnostics sub-pipeline and reports the result.
func (s *Solver) logDiagnostics() {
	d := s.diag.Run(s.dev, s.index, s.cfg.Derived.RadiusSq32)
	slog.Info("hash diagnostics", "step", s.step, "diagnostics", d)
	if err := s.outputManager.WriteDiagnostics(s.step, d); err != nil {
		slog.Error("failed to write diagnostics", "error", err)
	}
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Solver) flushTelemetry() {
	if !s.collector.ShouldFlush(s.step) {
		return
	}

	stats := s.collector.Flush(s.step, s.sampleFluid())
	perfStats := s.perfCollector.Stats()

	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := s.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := s.outputManager.WritePerf(perfStats, stats.WindowEndStep); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range s.bookmarkDetector.Check(stats) {
		if s.logStats {
			bm.LogBookmark()
		}
		if err := s.outputManager.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
	}
}

// sampleFluid collects per-particle speed, density and pressure. Densities
// are in sorted order, which does not matter for a distribution.
func (s *Solver) sampleFluid() telemetry.FluidSample {
	n := s.particles.Len()
	sample := telemetry.FluidSample{
		Speeds:    make([]float64, n),
		Densities: make([]float64, n),
		Pressures: make([]float64, n),
		Mass:      s.cfg.Fluid.Mass,
		Mode:      s.boundary.Mode().String(),
		WaveClock: float64(s.boundary.Clock()),
	}
	for i := 0; i < n; i++ {
		v := s.particles.Velocity(i)
		sample.Speeds[i] = math.Sqrt(float64(v.Dot(v)))
		sample.Densities[i] = float64(s.acc.Density[i])
		sample.Pressures[i] = float64(s.particles.Pressure(i))
	}
	return sample
}
