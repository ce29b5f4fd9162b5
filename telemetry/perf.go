package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the solver step. They match the pipeline stage names.
const (
	PhaseCommands      = "commands"
	PhaseBoundary      = "boundary"
	PhaseHashReset     = "hash_reset"
	PhaseHashInsert    = "hash_insert"
	PhaseScanGroups    = "scan_groups"
	PhaseScanTotals    = "scan_totals"
	PhaseScanPropagate = "scan_propagate"
	PhaseScatter       = "scatter"
	PhaseDensity       = "density"
	PhaseForces        = "forces"
	PhaseIntegrate     = "integrate"
	PhaseWriteBack     = "writeback"
	PhaseSurface       = "surface"
	PhaseTelemetry     = "telemetry"
)

// Phases lists every phase in pipeline order.
var Phases = []string{
	PhaseCommands, PhaseBoundary,
	PhaseHashReset, PhaseHashInsert,
	PhaseScanGroups, PhaseScanTotals, PhaseScanPropagate,
	PhaseScatter, PhaseDensity, PhaseForces, PhaseIntegrate,
	PhaseWriteBack, PhaseSurface, PhaseTelemetry,
}

// PerfSample holds timing data for a single step.
type PerfSample struct {
	StepDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	stepStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of steps to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartStep begins timing a new solver step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase. Repeated phases, such as the
// per-iteration density pass, accumulate.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	// End previous phase if any
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndStep finishes timing the current step and records the sample.
func (p *PerfCollector) EndStep() {
	now := time.Now()
	// End final phase
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		StepDuration: now.Sub(p.stepStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	// Step timing
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total step time
	PhasePct map[string]float64

	// Throughput
	StepsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total time.Duration
	var minStep, maxStep time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.StepDuration

		if i == 0 || s.StepDuration < minStep {
			minStep = s.StepDuration
		}
		if s.StepDuration > maxStep {
			maxStep = s.StepDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var stepsPerSec float64
	if avg > 0 {
		stepsPerSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgStepDuration: avg,
		MinStepDuration: minStep,
		MaxStepDuration: maxStep,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		StepsPerSecond:  stepsPerSec,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_step_us", s.AvgStepDuration.Microseconds(),
		"min_step_us", s.MinStepDuration.Microseconds(),
		"max_step_us", s.MaxStepDuration.Microseconds(),
		"steps_per_sec", int(s.StepsPerSecond),
	}

	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}

	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStepDuration.Microseconds()),
		slog.Int64("min_step_us", s.MinStepDuration.Microseconds()),
		slog.Int64("max_step_us", s.MaxStepDuration.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}

	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd        int64   `csv:"window_end"`
	AvgStepUS        int64   `csv:"avg_step_us"`
	MinStepUS        int64   `csv:"min_step_us"`
	MaxStepUS        int64   `csv:"max_step_us"`
	StepsPerSec      float64 `csv:"steps_per_sec"`
	CommandsPct      float64 `csv:"commands_pct"`
	BoundaryPct      float64 `csv:"boundary_pct"`
	HashResetPct     float64 `csv:"hash_reset_pct"`
	HashInsertPct    float64 `csv:"hash_insert_pct"`
	ScanGroupsPct    float64 `csv:"scan_groups_pct"`
	ScanTotalsPct    float64 `csv:"scan_totals_pct"`
	ScanPropagatePct float64 `csv:"scan_propagate_pct"`
	ScatterPct       float64 `csv:"scatter_pct"`
	DensityPct       float64 `csv:"density_pct"`
	ForcesPct        float64 `csv:"forces_pct"`
	IntegratePct     float64 `csv:"integrate_pct"`
	WriteBackPct     float64 `csv:"writeback_pct"`
	SurfacePct       float64 `csv:"surface_pct"`
	TelemetryPct     float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:        windowEnd,
		AvgStepUS:        s.AvgStepDuration.Microseconds(),
		MinStepUS:        s.MinStepDuration.Microseconds(),
		MaxStepUS:        s.MaxStepDuration.Microseconds(),
		StepsPerSec:      s.StepsPerSecond,
		CommandsPct:      s.PhasePct[PhaseCommands],
		BoundaryPct:      s.PhasePct[PhaseBoundary],
		HashResetPct:     s.PhasePct[PhaseHashReset],
		HashInsertPct:    s.PhasePct[PhaseHashInsert],
		ScanGroupsPct:    s.PhasePct[PhaseScanGroups],
		ScanTotalsPct:    s.PhasePct[PhaseScanTotals],
		ScanPropagatePct: s.PhasePct[PhaseScanPropagate],
		ScatterPct:       s.PhasePct[PhaseScatter],
		DensityPct:       s.PhasePct[PhaseDensity],
		ForcesPct:        s.PhasePct[PhaseForces],
		IntegratePct:     s.PhasePct[PhaseIntegrate],
		WriteBackPct:     s.PhasePct[PhaseWriteBack],
		SurfacePct:       s.PhasePct[PhaseSurface],
		TelemetryPct:     s.PhasePct[PhaseTelemetry],
	}
}
