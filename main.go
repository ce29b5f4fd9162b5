package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/components"
	"github.com/pthm-cable/sphgrid/config"
	"github.com/pthm-cable/sphgrid/solver"
)

// dragVelocity is the velocity given to particles placed by the injector.
var dragVelocity = mgl32.Vec3{0, -70, 0}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (unset = use config)")
	timeSeed := flag.Bool("time-seed", false, "Seed from the current time, overriding -seed")
	maxSteps := flag.Int("max-steps", 1000, "Stop after N steps (0 = unlimited)")
	mode := flag.String("mode", "", "Initial boundary mode: box, wave or ground (empty = use config)")
	injectEvery := flag.Int("inject-every", 0, "Steps between drag injections (0 = off)")
	injectCount := flag.Int("inject-count", 16, "Particles moved per drag injection")
	cycleEvery := flag.Int("cycle-mode-every", 0, "Steps between boundary mode toggles (0 = off)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg().Clone()

	switch {
	case *timeSeed:
		cfg.Solver.Seed = time.Now().UnixNano()
	case flagPassed(flag.CommandLine, "seed"):
		cfg.Solver.Seed = *seed
	}
	if *mode != "" {
		if _, ok := components.ParseBoundaryMode(*mode); !ok {
			slog.Error("unknown boundary mode", "mode", *mode)
			os.Exit(1)
		}
		cfg.Boundary.Mode = *mode
	}

	opts := solver.Options{
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		OutputDir:      *outputDir,
	}

	s, err := solver.NewWithOptions(cfg, opts)
	if err != nil {
		slog.Error("failed to create solver", "error", err)
		os.Exit(1)
	}

	slog.Info("starting headless simulation",
		"seed", cfg.Solver.Seed,
		"max_steps", *maxSteps,
		"inject_every", *injectEvery,
		"cycle_mode_every", *cycleEvery,
	)

	inj := newInjector(cfg, *injectCount)
	start := time.Now()
	for step := 1; *maxSteps == 0 || step <= *maxSteps; step++ {
		if *injectEvery > 0 && step%*injectEvery == 0 {
			if err := inj.fire(s); err != nil {
				slog.Error("injection failed", "error", err)
			}
		}
		if *cycleEvery > 0 && step%*cycleEvery == 0 {
			s.CycleBoundaryMode()
		}
		s.Step()
	}

	elapsed := time.Since(start)
	slog.Info("max steps reached",
		"step", s.StepCount(),
		"elapsed", elapsed.Round(time.Millisecond).String(),
	)
	s.PerfStats().LogStats()

	if err := s.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
		os.Exit(1)
	}
}

// flagPassed reports whether name was set on the command line, so that zero
// values can be told apart from defaults.
func flagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
