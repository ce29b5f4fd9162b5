package telemetry

// Collector accumulates events within step windows and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationSteps int64
	dt                  float64
	numParticles        int

	// Current window tracking
	windowStartStep int64

	// Event counters for current window
	moveCommands     int
	movedParticles   int
	modeSwitches     int
	clampedParticles int
	queryAccessed    int
	queryAccepted    int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per step (used for step-to-time conversion)
func NewCollector(windowDurationSec, dt float64, numParticles int) *Collector {
	stepsPerWindow := int64(windowDurationSec / dt)
	if stepsPerWindow < 1 {
		stepsPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationSteps: stepsPerWindow,
		dt:                  dt,
		numParticles:        numParticles,
	}
}

// Record counts an event in the current window.
func (c *Collector) Record(ev Event) {
	switch ev.Type {
	case EventMove:
		c.moveCommands++
		c.movedParticles += ev.Count
	case EventModeSwitch:
		c.modeSwitches++
	case EventClamp:
		c.clampedParticles += ev.Count
	}
}

// RecordQueries adds neighbor query work from one step.
func (c *Collector) RecordQueries(accessed, accepted int) {
	c.queryAccessed += accessed
	c.queryAccepted += accepted
}

// ShouldFlush returns true if enough steps have passed to flush the window.
func (c *Collector) ShouldFlush(currentStep int64) bool {
	return currentStep-c.windowStartStep >= c.windowDurationSteps
}

// FluidSample holds per-particle values sampled at window end.
type FluidSample struct {
	Speeds    []float64
	Densities []float64
	Pressures []float64
	Mass      float64
	Mode      string
	WaveClock float64
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentStep int64, sample FluidSample) WindowStats {
	speed := ComputeDistribution(sample.Speeds)
	density := ComputeDistribution(sample.Densities)
	pressure := ComputeDistribution(sample.Pressures)

	var ke float64
	for _, v := range sample.Speeds {
		ke += 0.5 * sample.Mass * v * v
	}

	steps := currentStep - c.windowStartStep
	var clampRate float64
	if steps > 0 && c.numParticles > 0 {
		clampRate = float64(c.clampedParticles) / float64(steps*int64(c.numParticles))
	}
	var acceptRate float64
	if c.queryAccessed > 0 {
		acceptRate = float64(c.queryAccepted) / float64(c.queryAccessed)
	}

	stats := WindowStats{
		WindowStartStep: c.windowStartStep,
		WindowEndStep:   currentStep,
		SimTimeSec:      float64(currentStep) * c.dt,

		Mode:      sample.Mode,
		WaveClock: sample.WaveClock,

		MoveCommands:     c.moveCommands,
		MovedParticles:   c.movedParticles,
		ModeSwitches:     c.modeSwitches,
		ClampedParticles: c.clampedParticles,
		ClampRate:        clampRate,

		SpeedMean: speed.Mean,
		SpeedStd:  speed.Std,
		SpeedP10:  speed.P10,
		SpeedP50:  speed.P50,
		SpeedP90:  speed.P90,
		SpeedMax:  speed.Max,

		DensityMean: density.Mean,
		DensityStd:  density.Std,
		DensityP10:  density.P10,
		DensityP50:  density.P50,
		DensityP90:  density.P90,

		PressureMean: pressure.Mean,
		PressureP90:  pressure.P90,

		KineticEnergy: ke,

		QueryAccessed:   c.queryAccessed,
		QueryAccepted:   c.queryAccepted,
		QueryAcceptRate: acceptRate,
	}

	// Reset for next window
	c.windowStartStep = currentStep
	c.moveCommands = 0
	c.movedParticles = 0
	c.modeSwitches = 0
	c.clampedParticles = 0
	c.queryAccessed = 0
	c.queryAccepted = 0

	return stats
}

// WindowDurationSteps returns the number of steps per window.
func (c *Collector) WindowDurationSteps() int64 {
	return c.windowDurationSteps
}
