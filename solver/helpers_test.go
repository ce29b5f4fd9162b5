package solver

import (
	"testing"

	"github.com/pthm-cable/sphgrid/config"
)

// smallConfig returns a configuration small enough for fast pipeline tests.
func smallConfig() *config.Config {
	cfg := config.Default()
	cfg.Solver.NumParticles = 64
	cfg.Solver.NumBuckets = 16
	cfg.Solver.ThreadsPerGroup = 4
	cfg.Telemetry.PerfCollectorWindow = 8
	cfg.Recompute()
	return cfg
}

func newTestSolver(t testing.TB, cfg *config.Config, opts Options) *Solver {
	t.Helper()
	s, err := NewWithOptions(cfg, opts)
	if err != nil {
		t.Fatalf("NewWithOptions failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
