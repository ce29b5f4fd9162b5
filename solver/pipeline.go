package solver

import (
	"github.com/pthm-cable/sphgrid/systems"
	"github.com/pthm-cable/sphgrid/telemetry"
)

// Step runs one full pipeline step. Every stage is one or more device
// dispatches and every dispatch is a barrier, so each stage sees the complete
// output of the one before it. Step is a no-op on a closed solver.
func (s *Solver) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.perfCollector.StartStep()

	s.perfCollector.StartPhase(telemetry.PhaseCommands)
	s.applyCommands()

	s.perfCollector.StartPhase(telemetry.PhaseBoundary)
	s.boundary.Advance()
	planes := s.boundary.Planes()

	s.buildIndex()

	var clamped int
	var queries systems.QueryStats
	sorted := s.index.Sorted
	for it := 0; it < s.cfg.Solver.Iterations; it++ {
		s.perfCollector.StartPhase(telemetry.PhaseDensity)
		s.fluid.Density(s.dev, s.index, s.acc)
		queries.Add(s.fluid.QueryStats())

		s.perfCollector.StartPhase(telemetry.PhaseForces)
		s.fluid.Forces(s.dev, s.index, s.acc, planes)

		s.perfCollector.StartPhase(telemetry.PhaseIntegrate)
		clamped += systems.Integrate(s.dev, sorted, s.acc, s.fluid.Params, planes)
	}

	s.perfCollector.StartPhase(telemetry.PhaseWriteBack)
	systems.WriteBack(s.dev, sorted, s.particles, s.index.Inverse)

	if s.surface != nil {
		s.perfCollector.StartPhase(telemetry.PhaseSurface)
		s.surface.Run(s.dev, s.index, s.fluid.Coeffs)
	}

	s.step++
	s.lastClamped = clamped

	s.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	s.recordStep(clamped, queries)

	s.perfCollector.EndStep()
}

// buildIndex runs the counting sort one stage at a time so each stage gets
// its own perf phase.
func (s *Solver) buildIndex() {
	idx := s.index

	s.perfCollector.StartPhase(telemetry.PhaseHashReset)
	j := s.jitter.Advance()
	idx.SetJitter(j)
	idx.Counter.Reset(s.dev)

	s.perfCollector.StartPhase(telemetry.PhaseHashInsert)
	idx.Counter.Insert(s.dev, s.particles, idx.Hasher, j)

	s.perfCollector.StartPhase(telemetry.PhaseScanGroups)
	idx.Scanner.ScanGroups(s.dev, idx.Counter)

	s.perfCollector.StartPhase(telemetry.PhaseScanTotals)
	idx.Scanner.ScanTotals(s.dev)

	s.perfCollector.StartPhase(telemetry.PhaseScanPropagate)
	idx.Scanner.Propagate(s.dev)

	s.perfCollector.StartPhase(telemetry.PhaseScatter)
	idx.Scatter(s.dev, s.particles)
}

// Run advances the solver n steps.
func (s *Solver) Run(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}
