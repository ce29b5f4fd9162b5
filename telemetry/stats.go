package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of solver steps.
type WindowStats struct {
	WindowStartStep int64   `csv:"-"`
	WindowEndStep   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Boundary state at window end
	Mode      string  `csv:"mode"`
	WaveClock float64 `csv:"wave_clock"`

	// Events during window
	MoveCommands     int     `csv:"move_commands"`
	MovedParticles   int     `csv:"moved_particles"`
	ModeSwitches     int     `csv:"mode_switches"`
	ClampedParticles int     `csv:"clamped_particles"`
	ClampRate        float64 `csv:"clamp_rate"` // clamped per particle-step

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	// Density distribution (sampled at window end)
	DensityMean float64 `csv:"density_mean"`
	DensityStd  float64 `csv:"density_std"`
	DensityP10  float64 `csv:"density_p10"`
	DensityP50  float64 `csv:"density_p50"`
	DensityP90  float64 `csv:"density_p90"`

	PressureMean float64 `csv:"pressure_mean"`
	PressureP90  float64 `csv:"pressure_p90"`

	KineticEnergy float64 `csv:"kinetic_energy"`

	// Neighbor query work over the window
	QueryAccessed   int     `csv:"query_accessed"`
	QueryAccepted   int     `csv:"query_accepted"`
	QueryAcceptRate float64 `csv:"query_accept_rate"`
}

// Distribution summarises a sample.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
	Max           float64
}

// ComputeDistribution calculates mean, standard deviation and percentiles.
// An empty sample yields the zero Distribution.
func ComputeDistribution(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var d Distribution
	if n > 1 {
		d.Mean, d.Std = stat.MeanStdDev(sorted, nil)
	} else {
		d.Mean = sorted[0]
	}
	d.P10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	d.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	d.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	d.Max = sorted[n-1]
	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartStep),
		slog.Int64("window_end", s.WindowEndStep),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.String("mode", s.Mode),
		slog.Float64("wave_clock", s.WaveClock),
		slog.Int("move_commands", s.MoveCommands),
		slog.Int("moved_particles", s.MovedParticles),
		slog.Int("mode_switches", s.ModeSwitches),
		slog.Int("clamped_particles", s.ClampedParticles),
		slog.Float64("clamp_rate", s.ClampRate),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("density_mean", s.DensityMean),
		slog.Float64("density_std", s.DensityStd),
		slog.Float64("density_p10", s.DensityP10),
		slog.Float64("density_p50", s.DensityP50),
		slog.Float64("density_p90", s.DensityP90),
		slog.Float64("pressure_mean", s.PressureMean),
		slog.Float64("pressure_p90", s.PressureP90),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Int("query_accessed", s.QueryAccessed),
		slog.Int("query_accepted", s.QueryAccepted),
		slog.Float64("query_accept_rate", s.QueryAcceptRate),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndStep,
		"sim_time", s.SimTimeSec,
		"mode", s.Mode,
		"wave_clock", s.WaveClock,
		"move_commands", s.MoveCommands,
		"moved_particles", s.MovedParticles,
		"mode_switches", s.ModeSwitches,
		"clamped_particles", s.ClampedParticles,
		"speed_mean", s.SpeedMean,
		"speed_p90", s.SpeedP90,
		"speed_max", s.SpeedMax,
		"density_mean", s.DensityMean,
		"density_p10", s.DensityP10,
		"density_p90", s.DensityP90,
		"pressure_mean", s.PressureMean,
		"kinetic_energy", s.KineticEnergy,
		"query_accept_rate", s.QueryAcceptRate,
	)
}
